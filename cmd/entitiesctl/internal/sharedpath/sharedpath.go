// Package sharedpath resolves the host directory shared with the stack's
// Samba and sandbox containers.
package sharedpath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EnvKey is the environment variable carrying the shared directory.
const EnvKey = "SHARED_PATH"

// ErrUnsupportedOS is returned for platforms without a default location.
var ErrUnsupportedOS = errors.New("unsupported operating system for shared path")

// Resolve determines the shared directory for the given platform.
//
// # Description
//
// An explicit SHARED_PATH in the environment always wins. Otherwise the
// platform default is used:
//
//   - windows: ~/entities_share
//   - linux:   ~/.local/share/entities_share
//   - darwin:  ~/Library/Application Support/entities_share
//
// # Inputs
//
//   - goos: Target platform (pass runtime.GOOS in production)
//   - getenv: Environment lookup (pass os.Getenv in production)
//
// # Outputs
//
//   - string: Absolute shared directory path
//   - error: ErrUnsupportedOS for unknown platforms
//
// # Example
//
//	path, err := sharedpath.Resolve(runtime.GOOS, os.Getenv)
func Resolve(goos string, getenv func(string) string) (string, error) {
	if explicit := getenv(EnvKey); explicit != "" {
		return explicit, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}

	switch goos {
	case "windows":
		return filepath.Join(home, "entities_share"), nil
	case "linux":
		return filepath.Join(home, ".local", "share", "entities_share"), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "entities_share"), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
	}
}

// Ensure creates the shared directory and exports it to the process env.
//
// # Description
//
// Creates the directory (and parents) when missing and sets SHARED_PATH
// in the current process so child processes (docker compose) inherit it.
//
// # Outputs
//
//   - error: Non-nil if the directory cannot be created
func Ensure(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("create shared directory %s: %w", path, err)
	}
	if err := os.Setenv(EnvKey, path); err != nil {
		return fmt.Errorf("export %s: %w", EnvKey, err)
	}
	return nil
}
