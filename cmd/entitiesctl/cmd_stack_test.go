// Copyright (C) 2025 Entities AI (ops@entitiesai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/infra/docker"
)

func TestResolveStackMode(t *testing.T) {
	tests := []struct {
		name          string
		down          bool
		clearVolumes  bool
		nuke          bool
		attached      bool
		forceRecreate bool
		want          stackMode
	}{
		{name: "plain start", want: modeUp},
		{name: "down only", down: true, want: modeDownOnly},
		{name: "clear volumes implies down", clearVolumes: true, want: modeDownOnly},
		{name: "down attached restarts", down: true, attached: true, want: modeDownThenUp},
		{name: "down force-recreate restarts", down: true, forceRecreate: true, want: modeDownThenUp},
		{name: "clear volumes attached restarts", clearVolumes: true, attached: true, want: modeDownThenUp},
		{name: "nuke wins over everything", down: true, clearVolumes: true, nuke: true, attached: true, want: modeNuke},
		{name: "attached alone is up", attached: true, want: modeUp},
		{name: "force-recreate alone is up", forceRecreate: true, want: modeUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveStackMode(tt.down, tt.clearVolumes, tt.nuke, tt.attached, tt.forceRecreate)
			if got != tt.want {
				t.Errorf("resolveStackMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadComposeLenient(t *testing.T) {
	t.Run("missing file yields nil", func(t *testing.T) {
		if cfg := loadComposeLenient(filepath.Join(t.TempDir(), "nope.yaml")); cfg != nil {
			t.Errorf("loadComposeLenient() = %v, want nil", cfg)
		}
	})

	t.Run("malformed yaml yields nil", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "docker-compose.yaml")
		if err := os.WriteFile(path, []byte("services: [not a mapping"), 0644); err != nil {
			t.Fatal(err)
		}
		if cfg := loadComposeLenient(path); cfg != nil {
			t.Errorf("loadComposeLenient() = %v, want nil", cfg)
		}
	})

	t.Run("valid file parses", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "docker-compose.yaml")
		if err := os.WriteFile(path, []byte("services:\n  db:\n    image: mysql:8\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if cfg := loadComposeLenient(path); cfg == nil {
			t.Error("loadComposeLenient() = nil, want parsed config")
		}
	})
}

func TestRunNuke_NonInteractiveStdinRunsNothing(t *testing.T) {
	orig := stdinIsInteractive
	stdinIsInteractive = func() bool { return false }
	defer func() { stdinIsInteractive = orig }()

	mock := &docker.MockExecutor{}
	err := runNuke(mock)
	if err == nil {
		t.Fatal("expected an error when stdin is not a terminal")
	}
	if calls := mock.GetCalls(); len(calls) != 0 {
		t.Errorf("docker was invoked %d times, want 0", len(calls))
	}
}

func TestJoinNonEmpty(t *testing.T) {
	if got := joinNonEmpty(", ", "a", "", "b", ""); got != "a, b" {
		t.Errorf("joinNonEmpty() = %q", got)
	}
	if got := joinNonEmpty(", ", "", ""); got != "" {
		t.Errorf("joinNonEmpty() on empties = %q", got)
	}
}

func TestNoteIf(t *testing.T) {
	if got := noteIf(true, "note"); got != "note" {
		t.Errorf("noteIf(true) = %q", got)
	}
	if got := noteIf(false, "note"); got != "" {
		t.Errorf("noteIf(false) = %q", got)
	}
}
