package provision

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EntitiesAI/EntitiesOps/pkg/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.New(logging.Config{Level: logging.LevelError, Service: "test"})
}

// fixedClock pins the service clock for deterministic generated values.
func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func newTestService(t *testing.T, api API) *Service {
	t.Helper()
	svc := NewService(api, testLogger(t))
	svc.now = fixedClock(1700000000)
	return svc
}

func TestProvisionUser_Defaults(t *testing.T) {
	mock := &MockAPI{}
	svc := newTestService(t, mock)

	result, err := svc.ProvisionUser(context.Background(), UserOptions{})
	require.NoError(t, err)

	assert.Equal(t, "test_user_1700000000@example.com", result.User.Email)
	assert.Equal(t, "Regular User 1700000000", result.User.FullName)
	assert.Equal(t, DefaultKeyName, result.Key.KeyName)

	// No admin validation without an AdminUserID.
	for _, call := range mock.GetCalls() {
		assert.NotEqual(t, "GetUser", call.Method)
	}
}

func TestProvisionUser_ExplicitOptions(t *testing.T) {
	mock := &MockAPI{}
	svc := newTestService(t, mock)

	result, err := svc.ProvisionUser(context.Background(), UserOptions{
		Email:    "alice@example.com",
		FullName: "Alice",
		KeyName:  "CI Key",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.Equal(t, "CI Key", result.Key.KeyName)
}

func TestProvisionUser_AdminValidationFailureIsWarning(t *testing.T) {
	mock := &MockAPI{
		GetUserFunc: func(ctx context.Context, userID string) (*User, error) {
			return nil, &APIError{StatusCode: http.StatusForbidden, Method: "GET", Path: "/v1/users/" + userID}
		},
	}
	svc := newTestService(t, mock)

	_, err := svc.ProvisionUser(context.Background(), UserOptions{AdminUserID: "user_admin"})
	require.NoError(t, err, "validation failure must not abort provisioning")

	calls := mock.GetCalls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "GetUser", calls[0].Method)
}

func TestProvisionUser_CreateFailureIsFatal(t *testing.T) {
	mock := &MockAPI{
		CreateUserFunc: func(ctx context.Context, email, fullName string) (*User, error) {
			return nil, &APIError{StatusCode: http.StatusUnauthorized, Method: "POST", Path: "/v1/users"}
		},
	}
	svc := newTestService(t, mock)

	_, err := svc.ProvisionUser(context.Background(), UserOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create user")

	// MintKey must never run after a failed create.
	for _, call := range mock.GetCalls() {
		assert.NotEqual(t, "MintKey", call.Method)
	}
}

func TestEnsureAssistant_AlreadyExists(t *testing.T) {
	mock := &MockAPI{}
	svc := newTestService(t, mock)

	result, err := svc.EnsureAssistant(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, DefaultAssistantID, result.Assistant.ID)
}

func TestEnsureAssistant_CreatesOn404(t *testing.T) {
	mock := &MockAPI{
		GetAssistantFunc: func(ctx context.Context, assistantID string) (*Assistant, error) {
			return nil, &APIError{StatusCode: http.StatusNotFound, Method: "GET", Path: "/v1/assistants/" + assistantID}
		},
	}
	svc := newTestService(t, mock)

	result, err := svc.EnsureAssistant(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "Q", result.Assistant.Name)

	methods := callMethods(mock)
	assert.Equal(t, []string{"GetAssistant", "CreateAssistant"}, methods)
}

func TestEnsureAssistant_OtherErrorIsFatal(t *testing.T) {
	mock := &MockAPI{
		GetAssistantFunc: func(ctx context.Context, assistantID string) (*Assistant, error) {
			return nil, &APIError{StatusCode: http.StatusInternalServerError, Method: "GET", Path: "/v1/assistants/default"}
		},
	}
	svc := newTestService(t, mock)

	_, err := svc.EnsureAssistant(context.Background())
	require.Error(t, err)

	// Creation must not be attempted on an unknown failure.
	assert.Equal(t, []string{"GetAssistant"}, callMethods(mock))
}

func TestProvisionTools_AllSucceed(t *testing.T) {
	mock := &MockAPI{}
	svc := newTestService(t, mock)

	result := svc.ProvisionTools(context.Background(), DefaultAssistantID)
	assert.Equal(t, 4, result.Created)
	assert.Equal(t, 4, result.Associated)
	assert.Empty(t, result.Failed)
}

func TestProvisionTools_PerToolFailureTolerated(t *testing.T) {
	mock := &MockAPI{
		CreateToolFunc: func(ctx context.Context, tool Tool) (*Tool, error) {
			if tool.Name == "web_search" {
				return nil, &APIError{StatusCode: http.StatusUnprocessableEntity, Method: "POST", Path: "/v1/tools"}
			}
			created := tool
			created.ID = "tool_" + tool.Name
			return &created, nil
		},
		AssociateToolFunc: func(ctx context.Context, assistantID, toolID string) error {
			if strings.HasSuffix(toolID, "computer") {
				return &APIError{StatusCode: http.StatusForbidden, Method: "POST", Path: "/v1/assistants"}
			}
			return nil
		},
	}
	svc := newTestService(t, mock)

	result := svc.ProvisionTools(context.Background(), DefaultAssistantID)

	// web_search fails at create, computer fails at associate.
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 2, result.Associated)
	assert.ElementsMatch(t, []string{"web_search", "computer"}, result.Failed)

	// All four tools were still attempted.
	creates := 0
	for _, call := range mock.GetCalls() {
		if call.Method == "CreateTool" {
			creates++
		}
	}
	assert.Equal(t, 4, creates)
}

func TestStandardTools_Shape(t *testing.T) {
	tools := StandardTools()
	require.Len(t, tools, 4)

	wantNames := []string{"code_interpreter", "web_search", "computer", "vector_store_search"}
	for i, tool := range tools {
		assert.Equal(t, wantNames[i], tool.Name)
		assert.Equal(t, "function", tool.Type)
		require.NotNil(t, tool.Fn)
		assert.Equal(t, tool.Name, tool.Fn.Name)
		assert.NotEmpty(t, tool.Fn.Description)
	}
}

func TestAPIError_Hints(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusNotFound, "endpoint"},
		{http.StatusForbidden, "admin"},
		{http.StatusUnauthorized, "key"},
		{http.StatusUnprocessableEntity, "payload"},
		{http.StatusTeapot, ""},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status, Method: "GET", Path: "/x"}
		if tt.want == "" {
			assert.Empty(t, err.Hint(), "status %d", tt.status)
		} else {
			assert.Contains(t, strings.ToLower(err.Hint()), tt.want, "status %d", tt.status)
		}
	}
}

// callMethods flattens recorded calls into their method names.
func callMethods(m *MockAPI) []string {
	calls := m.GetCalls()
	methods := make([]string, len(calls))
	for i, c := range calls {
		methods[i] = c.Method
	}
	return methods
}
