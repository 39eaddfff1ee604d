// Copyright (C) 2025 Entities AI (ops@entitiesai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		interrupted bool
		want        int
	}{
		{name: "clean run", want: 0},
		{name: "generic error", err: errors.New("boom"), want: 1},
		{name: "subprocess code propagated", err: exitCodeError{code: 3}, want: 3},
		{name: "wrapped subprocess code", err: fmt.Errorf("compose: %w", exitCodeError{code: 2}), want: 2},
		{name: "interrupt wins over error", err: exitCodeError{code: 3}, interrupted: true, want: 130},
		{name: "interrupt without error", interrupted: true, want: 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err, tt.interrupted); got != tt.want {
				t.Errorf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStartCommand_OllamaIsOptIn(t *testing.T) {
	f := startCmd.Flags().Lookup("with-ollama")
	if f == nil {
		t.Fatal("start has no --with-ollama flag")
	}
	if f.DefValue != "false" {
		t.Errorf("--with-ollama default = %q, want false", f.DefValue)
	}
	if startCmd.Flags().Lookup("no-ollama") != nil {
		t.Error("start still has a --no-ollama flag")
	}
}

func TestBootstrapAndProvisionFlagSurface(t *testing.T) {
	for _, name := range []string{"db-url", "email", "name", "key-name", "creds-file", "env-file"} {
		if bootstrapAdminCmd.Flags().Lookup(name) == nil {
			t.Errorf("bootstrap-admin missing --%s", name)
		}
	}
	for _, name := range []string{"api-key", "base-url", "email", "name", "key-name", "creds-file"} {
		if createUserCmd.Flags().Lookup(name) == nil {
			t.Errorf("create-user missing --%s", name)
		}
	}
}

func TestResolveAdminEmail(t *testing.T) {
	tests := []struct {
		name    string
		flagVal string
		envVal  string
		want    string
	}{
		{name: "flag wins", flagVal: "a@x", envVal: "b@x", want: "a@x"},
		{name: "env fallback", envVal: "b@x", want: "b@x"},
		{name: "default", want: defaultAdminEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveAdminEmail(tt.flagVal, tt.envVal); got != tt.want {
				t.Errorf("resolveAdminEmail() = %q, want %q", got, tt.want)
			}
		})
	}
}
