package sharedpath

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// noEnv is a getenv that has nothing set.
func noEnv(string) string { return "" }

func TestResolve_ExplicitEnvWins(t *testing.T) {
	getenv := func(key string) string {
		if key == EnvKey {
			return "/custom/share"
		}
		return ""
	}

	for _, goos := range []string{"linux", "darwin", "windows", "plan9"} {
		got, err := Resolve(goos, getenv)
		if err != nil {
			t.Errorf("Resolve(%q) error = %v", goos, err)
			continue
		}
		if got != "/custom/share" {
			t.Errorf("Resolve(%q) = %q, want explicit env value", goos, got)
		}
	}
}

func TestResolve_PlatformDefaults(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir() error = %v", err)
	}

	tests := []struct {
		goos string
		want string
	}{
		{"windows", filepath.Join(home, "entities_share")},
		{"linux", filepath.Join(home, ".local", "share", "entities_share")},
		{"darwin", filepath.Join(home, "Library", "Application Support", "entities_share")},
	}

	for _, tt := range tests {
		got, err := Resolve(tt.goos, noEnv)
		if err != nil {
			t.Errorf("Resolve(%q) error = %v", tt.goos, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.goos, got, tt.want)
		}
	}
}

func TestResolve_UnsupportedOS(t *testing.T) {
	_, err := Resolve("plan9", noEnv)
	if !errors.Is(err, ErrUnsupportedOS) {
		t.Errorf("Resolve(plan9) error = %v, want ErrUnsupportedOS", err)
	}
}

func TestEnsure_CreatesDirectoryAndExports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "entities_share")
	t.Setenv(EnvKey, "")

	if err := Ensure(path); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("shared path is not a directory")
	}
	if got := os.Getenv(EnvKey); got != path {
		t.Errorf("%s = %q, want %q", EnvKey, got, path)
	}
}

func TestEnsure_ExistingDirectory(t *testing.T) {
	path := t.TempDir()
	t.Setenv(EnvKey, "")

	if err := Ensure(path); err != nil {
		t.Fatalf("Ensure() on existing dir error = %v", err)
	}
}
