package process

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests use POSIX shell commands")
	}
}

func TestRunInDir_CapturesOutput(t *testing.T) {
	skipWithoutShell(t)

	m := NewDefaultManager()
	stdout, stderr, exitCode, err := m.RunInDir(context.Background(), "", nil,
		"sh", "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatalf("RunInDir() error = %v", err)
	}
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0", exitCode)
	}
	if strings.TrimSpace(stdout) != "out" {
		t.Errorf("stdout = %q", stdout)
	}
	if strings.TrimSpace(stderr) != "err" {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRunInDir_WorkingDirectory(t *testing.T) {
	skipWithoutShell(t)

	dir := t.TempDir()
	m := NewDefaultManager()
	stdout, _, _, err := m.RunInDir(context.Background(), dir, nil, "pwd")
	if err != nil {
		t.Fatalf("RunInDir() error = %v", err)
	}
	if strings.TrimSpace(stdout) != dir {
		// Paths may differ through symlinks (macOS /tmp); compare suffix.
		if !strings.HasSuffix(strings.TrimSpace(stdout), dir) {
			t.Errorf("pwd = %q, want %q", stdout, dir)
		}
	}
}

func TestRunInDir_EnvInjection(t *testing.T) {
	skipWithoutShell(t)

	m := NewDefaultManager()
	stdout, _, _, err := m.RunInDir(context.Background(), "",
		[]string{"INJECTED_VALUE=hello"},
		"sh", "-c", "echo $INJECTED_VALUE")
	if err != nil {
		t.Fatalf("RunInDir() error = %v", err)
	}
	if strings.TrimSpace(stdout) != "hello" {
		t.Errorf("stdout = %q, want injected value", stdout)
	}
}

func TestRunInDir_NonZeroExit(t *testing.T) {
	skipWithoutShell(t)

	m := NewDefaultManager()
	_, _, exitCode, err := m.RunInDir(context.Background(), "", nil, "sh", "-c", "exit 3")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if exitCode != 3 {
		t.Errorf("exit code = %d, want 3", exitCode)
	}
}

func TestRunInDir_EmptyCommand(t *testing.T) {
	m := NewDefaultManager()
	_, _, exitCode, err := m.RunInDir(context.Background(), "", nil, "")
	if !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("error = %v, want ErrEmptyCommand", err)
	}
	if exitCode != -1 {
		t.Errorf("exit code = %d, want -1 for never-ran", exitCode)
	}
}

func TestRunInDir_MissingBinary(t *testing.T) {
	m := NewDefaultManager()
	_, _, exitCode, err := m.RunInDir(context.Background(), "", nil, "definitely-not-a-real-binary-xyz")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if exitCode != -1 {
		t.Errorf("exit code = %d, want -1 for never-ran", exitCode)
	}
}

func TestRunInDir_ContextCancellation(t *testing.T) {
	skipWithoutShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	m := NewDefaultManager()
	start := time.Now()
	_, _, _, err := m.RunInDir(ctx, "", nil, "sleep", "10")
	if err == nil {
		t.Fatal("expected error after context timeout")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("command was not killed promptly (took %v)", elapsed)
	}
}

func TestRunStreaming(t *testing.T) {
	skipWithoutShell(t)

	var buf bytes.Buffer
	m := NewDefaultManager()
	exitCode, err := m.RunStreaming(context.Background(), "", &buf, "sh", "-c", "echo streamed")
	if err != nil {
		t.Fatalf("RunStreaming() error = %v", err)
	}
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0", exitCode)
	}
	if strings.TrimSpace(buf.String()) != "streamed" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRunStreaming_ExitCodeSurfaced(t *testing.T) {
	skipWithoutShell(t)

	var buf bytes.Buffer
	m := NewDefaultManager()
	exitCode, err := m.RunStreaming(context.Background(), "", &buf, "sh", "-c", "exit 7")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if exitCode != 7 {
		t.Errorf("exit code = %d, want 7", exitCode)
	}
}

func TestMockManager_RecordsCalls(t *testing.T) {
	m := &MockManager{}

	m.RunInDir(context.Background(), "/work", []string{"K=v"}, "docker", "ps")
	m.RunStreaming(context.Background(), "/work", &bytes.Buffer{}, "docker", "compose", "up")

	calls := m.GetCalls()
	if len(calls) != 2 {
		t.Fatalf("recorded %d calls, want 2", len(calls))
	}
	if calls[0].Method != "RunInDir" || calls[0].Name != "docker" || calls[0].Args[0] != "ps" {
		t.Errorf("first call = %+v", calls[0])
	}
	if calls[1].Method != "RunStreaming" || calls[1].Args[1] != "up" {
		t.Errorf("second call = %+v", calls[1])
	}

	m.Reset()
	if len(m.GetCalls()) != 0 {
		t.Error("Reset did not clear calls")
	}
}
