package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
)

// ErrEmptyCommand is returned when a command name is empty.
var ErrEmptyCommand = errors.New("empty command name")

// Manager abstracts external process execution.
//
// # Description
//
// All subprocess invocations in the CLI go through this interface so that
// command handlers and executors can be unit tested without touching the
// host system. Two execution modes are provided: captured (stdout/stderr
// returned as strings) and streaming (output copied to a writer as it is
// produced, for attached compose runs and log tailing).
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Manager interface {
	// RunInDir executes a command in the given working directory with the
	// given extra environment, capturing output.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - dir: Working directory ("" for inherited)
	//   - env: Extra KEY=VALUE entries appended to os.Environ (nil for none)
	//   - name: Command name
	//   - args: Command arguments
	//
	// # Outputs
	//
	//   - string: Captured stdout
	//   - string: Captured stderr
	//   - int: Exit code (-1 if the process never ran)
	//   - error: Non-nil if the command could not be started or exited non-zero
	RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error)

	// RunStreaming executes a command with stdout and stderr copied to w.
	//
	// Used for attached compose runs and log streaming where output must
	// appear as it is produced. Blocks until the command exits or ctx is
	// cancelled.
	//
	// # Outputs
	//
	//   - int: Exit code (-1 if the process never ran)
	//   - error: Non-nil if the command could not be started or exited non-zero
	RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) (int, error)
}

// DefaultManager implements Manager using os/exec.
type DefaultManager struct{}

// NewDefaultManager creates a production process manager.
func NewDefaultManager() *DefaultManager {
	return &DefaultManager{}
}

// RunInDir executes a command and captures its output.
func (m *DefaultManager) RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	if name == "" {
		return "", "", -1, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	if len(env) > 0 {
		cmd.Env = append(cmd.Env, env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := exitCodeOf(cmd, err)
	return stdout.String(), stderr.String(), exitCode, err
}

// RunStreaming executes a command with output copied to w as it is produced.
func (m *DefaultManager) RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) (int, error) {
	if name == "" {
		return -1, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.Stdin = os.Stdin

	err := cmd.Run()
	return exitCodeOf(cmd, err), err
}

// exitCodeOf extracts the exit code after cmd.Run.
//
// Returns -1 when the process never ran (start failure, context cancelled
// before exec).
func exitCodeOf(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

// =============================================================================
// Mock Implementation
// =============================================================================

// ManagerCall records a single invocation on MockManager.
type ManagerCall struct {
	Method string
	Dir    string
	Env    []string
	Name   string
	Args   []string
}

// MockManager is a test double for Manager.
//
// Configure behavior through the function fields. Unset fields return
// success with empty output. All invocations are recorded and can be
// inspected with GetCalls.
type MockManager struct {
	RunInDirFunc     func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error)
	RunStreamingFunc func(ctx context.Context, dir string, w io.Writer, name string, args ...string) (int, error)

	mu    sync.Mutex
	calls []ManagerCall
}

// RunInDir records the call and delegates to RunInDirFunc.
func (m *MockManager) RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	m.record(ManagerCall{Method: "RunInDir", Dir: dir, Env: env, Name: name, Args: args})
	if m.RunInDirFunc != nil {
		return m.RunInDirFunc(ctx, dir, env, name, args...)
	}
	return "", "", 0, nil
}

// RunStreaming records the call and delegates to RunStreamingFunc.
func (m *MockManager) RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) (int, error) {
	m.record(ManagerCall{Method: "RunStreaming", Dir: dir, Name: name, Args: args})
	if m.RunStreamingFunc != nil {
		return m.RunStreamingFunc(ctx, dir, w, name, args...)
	}
	return 0, nil
}

// GetCalls returns a copy of all recorded calls.
func (m *MockManager) GetCalls() []ManagerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ManagerCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// Reset clears recorded calls.
func (m *MockManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockManager) record(c ManagerCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Compile-time interface compliance checks.
var (
	_ Manager = (*DefaultManager)(nil)
	_ Manager = (*MockManager)(nil)
)
