package process

import (
	"os"
	"strings"
	"testing"
)

func newTestLock(t *testing.T) *ProcessLock {
	t.Helper()
	return NewProcessLock(ProcessLockConfig{
		LockDir:  t.TempDir(),
		LockName: "entitiesctl-test",
	})
}

func TestProcessLock_AcquireRelease(t *testing.T) {
	lock := newTestLock(t)

	if lock.IsHeld() {
		t.Error("new lock should not be held")
	}
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !lock.IsHeld() {
		t.Error("lock should be held after Acquire")
	}
	if got := lock.HolderPID(); got != os.Getpid() {
		t.Errorf("HolderPID() = %d, want %d", got, os.Getpid())
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if lock.IsHeld() {
		t.Error("lock should not be held after Release")
	}
}

func TestProcessLock_AcquireIsIdempotent(t *testing.T) {
	lock := newTestLock(t)
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lock.Release()

	if err := lock.Acquire(); err != nil {
		t.Errorf("second Acquire() on held lock error = %v", err)
	}
}

func TestProcessLock_ReleaseWithoutAcquire(t *testing.T) {
	lock := newTestLock(t)
	if err := lock.Release(); err != nil {
		t.Errorf("Release() without Acquire error = %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("double Release() error = %v", err)
	}
}

func TestProcessLock_ReacquireAfterRelease(t *testing.T) {
	lock := newTestLock(t)
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := lock.Acquire(); err != nil {
		t.Fatalf("re-Acquire() error = %v", err)
	}
	lock.Release()
}

func TestProcessLock_DefaultsApplied(t *testing.T) {
	lock := NewProcessLock(ProcessLockConfig{})
	if !strings.HasSuffix(lock.LockPath(), "entitiesctl.lock") {
		t.Errorf("LockPath() = %q, want default lock name", lock.LockPath())
	}
	if !strings.HasPrefix(lock.LockPath(), os.TempDir()) {
		t.Errorf("LockPath() = %q, want under temp dir", lock.LockPath())
	}
}

func TestDefaultProcessLockConfig(t *testing.T) {
	cfg := DefaultProcessLockConfig()
	if cfg.LockName != "entitiesctl" {
		t.Errorf("LockName = %q, want entitiesctl", cfg.LockName)
	}
	if cfg.LockDir != os.TempDir() {
		t.Errorf("LockDir = %q, want temp dir", cfg.LockDir)
	}
}
