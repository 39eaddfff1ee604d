package provision

import (
	"context"
	"sync"
)

// APICall records a single invocation on MockAPI.
type APICall struct {
	Method      string
	UserID      string
	AssistantID string
	ToolID      string
	ToolName    string
	Email       string
}

// MockAPI is a test double for API.
//
// Unset function fields return zero-value successes. All invocations are
// recorded for inspection with GetCalls.
type MockAPI struct {
	CreateUserFunc      func(ctx context.Context, email, fullName string) (*User, error)
	GetUserFunc         func(ctx context.Context, userID string) (*User, error)
	MintKeyFunc         func(ctx context.Context, userID, keyName string) (*Key, error)
	GetAssistantFunc    func(ctx context.Context, assistantID string) (*Assistant, error)
	CreateAssistantFunc func(ctx context.Context, id, name, description string) (*Assistant, error)
	CreateToolFunc      func(ctx context.Context, tool Tool) (*Tool, error)
	AssociateToolFunc   func(ctx context.Context, assistantID, toolID string) error

	mu    sync.Mutex
	calls []APICall
}

// CreateUser records the call and delegates to CreateUserFunc.
func (m *MockAPI) CreateUser(ctx context.Context, email, fullName string) (*User, error) {
	m.record(APICall{Method: "CreateUser", Email: email})
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, email, fullName)
	}
	return &User{ID: "user_mock", Email: email, FullName: fullName}, nil
}

// GetUser records the call and delegates to GetUserFunc.
func (m *MockAPI) GetUser(ctx context.Context, userID string) (*User, error) {
	m.record(APICall{Method: "GetUser", UserID: userID})
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, userID)
	}
	return &User{ID: userID}, nil
}

// MintKey records the call and delegates to MintKeyFunc.
func (m *MockAPI) MintKey(ctx context.Context, userID, keyName string) (*Key, error) {
	m.record(APICall{Method: "MintKey", UserID: userID})
	if m.MintKeyFunc != nil {
		return m.MintKeyFunc(ctx, userID, keyName)
	}
	return &Key{Prefix: "mk_mock1", PlainKey: "mk_mockkey", KeyName: keyName}, nil
}

// GetAssistant records the call and delegates to GetAssistantFunc.
func (m *MockAPI) GetAssistant(ctx context.Context, assistantID string) (*Assistant, error) {
	m.record(APICall{Method: "GetAssistant", AssistantID: assistantID})
	if m.GetAssistantFunc != nil {
		return m.GetAssistantFunc(ctx, assistantID)
	}
	return &Assistant{ID: assistantID}, nil
}

// CreateAssistant records the call and delegates to CreateAssistantFunc.
func (m *MockAPI) CreateAssistant(ctx context.Context, id, name, description string) (*Assistant, error) {
	m.record(APICall{Method: "CreateAssistant", AssistantID: id})
	if m.CreateAssistantFunc != nil {
		return m.CreateAssistantFunc(ctx, id, name, description)
	}
	return &Assistant{ID: id, Name: name, Description: description}, nil
}

// CreateTool records the call and delegates to CreateToolFunc.
func (m *MockAPI) CreateTool(ctx context.Context, tool Tool) (*Tool, error) {
	m.record(APICall{Method: "CreateTool", ToolName: tool.Name})
	if m.CreateToolFunc != nil {
		return m.CreateToolFunc(ctx, tool)
	}
	created := tool
	created.ID = "tool_" + tool.Name
	return &created, nil
}

// AssociateTool records the call and delegates to AssociateToolFunc.
func (m *MockAPI) AssociateTool(ctx context.Context, assistantID, toolID string) error {
	m.record(APICall{Method: "AssociateTool", AssistantID: assistantID, ToolID: toolID})
	if m.AssociateToolFunc != nil {
		return m.AssociateToolFunc(ctx, assistantID, toolID)
	}
	return nil
}

// GetCalls returns a copy of all recorded calls.
func (m *MockAPI) GetCalls() []APICall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]APICall, len(m.calls))
	copy(result, m.calls)
	return result
}

// Reset clears recorded calls.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockAPI) record(c APICall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Compile-time interface compliance check.
var _ API = (*MockAPI)(nil)
