// Copyright (C) 2025 Entities AI (ops@entitiesai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package process provides abstractions for external process execution and
inter-process synchronization.

# Overview

This package contains two main components:

  - Manager: Abstracts external process execution for testability
  - ProcessLocker: File-based locking to prevent concurrent CLI instances

# Manager

Manager enables testable interaction with the operating system's process
management capabilities. All exec.Command calls should go through this
interface to enable mocking in unit tests.

	pm := process.NewDefaultManager()
	stdout, stderr, code, err := pm.RunInDir(ctx, dir, nil, "docker", "ps")
	if err != nil {
	    return fmt.Errorf("failed to list containers: %w", err)
	}

For testing, use MockManager:

	mock := &process.MockManager{
	    RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	        return "mock output", "", 0, nil
	    },
	}

# ProcessLocker

ProcessLocker prevents multiple CLI instances from mutating the stack
simultaneously, avoiding race conditions that could corrupt state. Uses
flock(2) system call for advisory file locking.

	lock := process.NewProcessLock(process.DefaultProcessLockConfig())
	if err := lock.Acquire(); err != nil {
	    fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	    os.Exit(1)
	}
	defer lock.Release()

# Thread Safety

  - Manager implementations are safe for concurrent use
  - ProcessLocker is NOT safe for concurrent use from multiple goroutines

# Limitations

  - Advisory locking only works within cooperating processes
  - flock(2) is unavailable on some network filesystems
*/
package process
