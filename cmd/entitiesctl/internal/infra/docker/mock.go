package docker

import (
	"context"
	"sync"
)

// ExecutorCall records a single invocation on MockExecutor.
type ExecutorCall struct {
	Method string
	Up     *UpOptions
	Down   *DownOptions
	Ollama *OllamaOptions
}

// MockExecutor is a test double for Executor.
//
// Configure behavior through the function fields. Unset fields return
// success with empty results. All invocations are recorded and can be
// inspected with GetCalls.
type MockExecutor struct {
	UpFunc           func(ctx context.Context, opts UpOptions) (*Result, error)
	DownFunc         func(ctx context.Context, opts DownOptions) (*Result, error)
	NukeFunc         func(ctx context.Context) ([]*Result, error)
	EnsureOllamaFunc func(ctx context.Context, opts OllamaOptions) (*OllamaResult, error)

	mu    sync.Mutex
	calls []ExecutorCall
}

// Up records the call and delegates to UpFunc.
func (m *MockExecutor) Up(ctx context.Context, opts UpOptions) (*Result, error) {
	m.record(ExecutorCall{Method: "Up", Up: &opts})
	if m.UpFunc != nil {
		return m.UpFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// Down records the call and delegates to DownFunc.
func (m *MockExecutor) Down(ctx context.Context, opts DownOptions) (*Result, error) {
	m.record(ExecutorCall{Method: "Down", Down: &opts})
	if m.DownFunc != nil {
		return m.DownFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// Nuke records the call and delegates to NukeFunc.
func (m *MockExecutor) Nuke(ctx context.Context) ([]*Result, error) {
	m.record(ExecutorCall{Method: "Nuke"})
	if m.NukeFunc != nil {
		return m.NukeFunc(ctx)
	}
	return []*Result{{Success: true}, {Success: true}}, nil
}

// EnsureOllama records the call and delegates to EnsureOllamaFunc.
func (m *MockExecutor) EnsureOllama(ctx context.Context, opts OllamaOptions) (*OllamaResult, error) {
	m.record(ExecutorCall{Method: "EnsureOllama", Ollama: &opts})
	if m.EnsureOllamaFunc != nil {
		return m.EnsureOllamaFunc(ctx, opts)
	}
	return &OllamaResult{}, nil
}

// GetCalls returns a copy of all recorded calls.
func (m *MockExecutor) GetCalls() []ExecutorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ExecutorCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// Reset clears recorded calls.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockExecutor) record(c ExecutorCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Compile-time interface compliance check.
var _ Executor = (*MockExecutor)(nil)
