package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/EntitiesAI/EntitiesOps/pkg/logging"
)

// =============================================================================
// API Interface
// =============================================================================

// API is the Entities API surface the provisioning service needs.
//
// Client implements it; tests supply MockAPI.
type API interface {
	CreateUser(ctx context.Context, email, fullName string) (*User, error)
	GetUser(ctx context.Context, userID string) (*User, error)
	MintKey(ctx context.Context, userID, keyName string) (*Key, error)
	GetAssistant(ctx context.Context, assistantID string) (*Assistant, error)
	CreateAssistant(ctx context.Context, id, name, description string) (*Assistant, error)
	CreateTool(ctx context.Context, tool Tool) (*Tool, error)
	AssociateTool(ctx context.Context, assistantID, toolID string) error
}

var _ API = (*Client)(nil)

// =============================================================================
// Constants
// =============================================================================

// DefaultAssistantID is the well-known assistant every stack carries.
const DefaultAssistantID = "default"

// defaultAssistantName is used when the assistant must be created.
const defaultAssistantName = "Q"

// defaultAssistantDescription describes the created assistant.
const defaultAssistantDescription = "Default general-purpose assistant"

// DefaultKeyName names the first key minted for a provisioned user.
const DefaultKeyName = "Default Initial Key"

// =============================================================================
// Standard Tool Set
// =============================================================================

// StandardTools is the fixed tool set attached to the default assistant.
func StandardTools() []Tool {
	return []Tool{
		functionTool("code_interpreter",
			"Execute Python code in a sandboxed interpreter and return the result.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"code": map[string]any{"type": "string", "description": "Python code to execute"},
				},
				"required": []string{"code"},
			}),
		functionTool("web_search",
			"Search the web and return relevant results.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "Search query"},
				},
				"required": []string{"query"},
			}),
		functionTool("computer",
			"Operate a sandboxed computer environment over a shell session.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{"type": "string", "description": "Shell command to run"},
				},
				"required": []string{"command"},
			}),
		functionTool("vector_store_search",
			"Search attached vector stores for semantically similar content.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "Search query"},
					"top_k": map[string]any{"type": "integer", "description": "Number of results"},
				},
				"required": []string{"query"},
			}),
	}
}

func functionTool(name, description string, parameters map[string]any) Tool {
	return Tool{
		Type: "function",
		Name: name,
		Fn: &FunctionSchema{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// =============================================================================
// Service
// =============================================================================

// Service drives user and assistant provisioning flows.
type Service struct {
	api    API
	logger *logging.Logger
	now    func() time.Time
}

// NewService creates a provisioning service.
func NewService(api API, logger *logging.Logger) *Service {
	return &Service{
		api:    api,
		logger: logger,
		now:    time.Now,
	}
}

// UserOptions configures ProvisionUser.
type UserOptions struct {
	// Email for the new user. Empty generates test_user_<unix>@example.com.
	Email string

	// FullName for the new user. Empty generates "Regular User <unix>".
	FullName string

	// KeyName for the minted key. Empty uses DefaultKeyName.
	KeyName string

	// AdminUserID, when set, is retrieved first to validate the admin
	// credentials. Validation failure is a warning, not an error.
	AdminUserID string
}

// UserResult is the outcome of ProvisionUser.
type UserResult struct {
	User *User
	Key  *Key
}

// ProvisionUser creates a regular user and mints their first key.
//
// # Description
//
// Two API calls, no retries. If AdminUserID is set the admin account is
// retrieved first as a credential check; a failure there only warns,
// since some deployments restrict user reads more than user writes.
//
// # Outputs
//
//   - *UserResult: Created user and key (key plaintext shown once)
//   - error: First API failure
func (s *Service) ProvisionUser(ctx context.Context, opts UserOptions) (*UserResult, error) {
	if opts.AdminUserID != "" {
		if _, err := s.api.GetUser(ctx, opts.AdminUserID); err != nil {
			s.logger.Warn("admin credential validation failed, continuing",
				"admin_user_id", opts.AdminUserID,
				"error", err.Error(),
			)
		}
	}

	ts := s.now().Unix()
	email := opts.Email
	if email == "" {
		email = fmt.Sprintf("test_user_%d@example.com", ts)
	}
	fullName := opts.FullName
	if fullName == "" {
		fullName = fmt.Sprintf("Regular User %d", ts)
	}
	keyName := opts.KeyName
	if keyName == "" {
		keyName = DefaultKeyName
	}

	user, err := s.api.CreateUser(ctx, email, fullName)
	if err != nil {
		return nil, describeAPIFailure("create user", err)
	}
	s.logger.Info("user created", "user_id", user.ID, "email", user.Email)

	key, err := s.api.MintKey(ctx, user.ID, keyName)
	if err != nil {
		return nil, describeAPIFailure("mint key", err)
	}
	s.logger.Info("api key minted", "user_id", user.ID, "prefix", key.Prefix)

	return &UserResult{User: user, Key: key}, nil
}

// AssistantResult is the outcome of EnsureAssistant.
type AssistantResult struct {
	Assistant *Assistant
	Created   bool
}

// EnsureAssistant returns the default assistant, creating it when absent.
//
// # Description
//
// A 404 on retrieval means the assistant doesn't exist yet and triggers
// creation; any other retrieval failure is fatal, since creating on top
// of an unknown state could shadow an existing assistant.
func (s *Service) EnsureAssistant(ctx context.Context) (*AssistantResult, error) {
	assistant, err := s.api.GetAssistant(ctx, DefaultAssistantID)
	if err == nil {
		s.logger.Info("default assistant already exists", "assistant_id", assistant.ID)
		return &AssistantResult{Assistant: assistant}, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		return nil, describeAPIFailure("retrieve assistant", err)
	}

	assistant, err = s.api.CreateAssistant(ctx,
		DefaultAssistantID, defaultAssistantName, defaultAssistantDescription)
	if err != nil {
		return nil, describeAPIFailure("create assistant", err)
	}
	s.logger.Info("default assistant created", "assistant_id", assistant.ID)

	return &AssistantResult{Assistant: assistant, Created: true}, nil
}

// ToolsResult summarizes ProvisionTools.
type ToolsResult struct {
	Created    int
	Associated int
	Failed     []string
}

// ProvisionTools creates and attaches the standard tool set.
//
// # Description
//
// Each tool is created then associated to the assistant. A per-tool
// failure is logged with a status hint and skipped; the remaining tools
// still run. The caller decides whether partial failure is fatal (the
// CLI treats an existing assistant with some failed tools as success).
func (s *Service) ProvisionTools(ctx context.Context, assistantID string) *ToolsResult {
	result := &ToolsResult{}

	for _, tool := range StandardTools() {
		created, err := s.api.CreateTool(ctx, tool)
		if err != nil {
			s.logToolFailure("create", tool.Name, err)
			result.Failed = append(result.Failed, tool.Name)
			continue
		}
		result.Created++

		if err := s.api.AssociateTool(ctx, assistantID, created.ID); err != nil {
			s.logToolFailure("associate", tool.Name, err)
			result.Failed = append(result.Failed, tool.Name)
			continue
		}
		result.Associated++
		s.logger.Info("tool attached", "tool", tool.Name, "tool_id", created.ID)
	}

	s.logger.Info("tool provisioning complete",
		"created", result.Created,
		"associated", result.Associated,
		"failed", len(result.Failed),
	)
	return result
}

func (s *Service) logToolFailure(step, tool string, err error) {
	args := []any{"step", step, "tool", tool, "error", err.Error()}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if hint := apiErr.Hint(); hint != "" {
			args = append(args, "hint", hint)
		}
	}
	s.logger.Warn("tool provisioning step failed, skipping tool", args...)
}

// describeAPIFailure wraps an API error with its operator hint.
func describeAPIFailure(action string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if hint := apiErr.Hint(); hint != "" {
			return fmt.Errorf("%s: %w (%s)", action, err, hint)
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}
