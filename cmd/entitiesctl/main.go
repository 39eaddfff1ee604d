// Copyright (C) 2025 Entities AI (ops@entitiesai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/EntitiesAI/EntitiesOps/pkg/logging"
)

// exitCodeInterrupted follows the shell convention of 128+SIGINT.
const exitCodeInterrupted = 130

// appLogger is shared by all command handlers. Configured in
// PersistentPreRun once flags are parsed.
var appLogger = logging.Default()

// rootCtx is cancelled on SIGINT/SIGTERM so in-flight subprocesses stop.
var rootCtx context.Context

// exitCodeError propagates a subprocess exit code up to main as the
// process's own exit code.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exited with code %d", e.code)
}

// exitCodeFor maps a command result to the process exit code.
//
// An interrupt wins over everything. A wrapped exitCodeError carries a
// subprocess's own code; any other error is the generic failure 1.
func exitCodeFor(err error, interrupted bool) int {
	if interrupted {
		return exitCodeInterrupted
	}
	var ec exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	if err != nil {
		return 1
	}
	return 0
}

func main() {
	var cancel context.CancelFunc
	rootCtx, cancel = context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	var interrupted atomic.Bool
	go func() {
		<-sigCh
		interrupted.Store(true)
		cancel()
	}()

	err := rootCmd.Execute()
	appLogger.Close()

	var ec exitCodeError
	if err != nil && !errors.As(err, &ec) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	if code := exitCodeFor(err, interrupted.Load()); code != 0 {
		os.Exit(code)
	}
}
