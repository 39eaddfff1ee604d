// Package provision creates users, assistants, and tools through the
// Entities API once an admin key exists.
package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrMissingAPIKey is returned when no admin key could be resolved.
	ErrMissingAPIKey = errors.New("no API key provided")
)

// APIError is a non-2xx response from the Entities API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("entities api: %s %s returned %d: %s",
		e.Method, e.Path, e.StatusCode, e.Body)
}

// Hint returns operator guidance for common failure statuses.
func (e *APIError) Hint() string {
	switch e.StatusCode {
	case http.StatusNotFound:
		return "the endpoint or resource does not exist; check the API version and base URL"
	case http.StatusForbidden:
		return "the API key is valid but lacks admin privileges"
	case http.StatusUnauthorized:
		return "the API key was rejected; re-run bootstrap-admin or check the creds file"
	case http.StatusUnprocessableEntity:
		return "the request payload was rejected; the API schema may have changed"
	default:
		return ""
	}
}

// =============================================================================
// Wire Types
// =============================================================================

// User is an API user record.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
}

// Key is a minted API key. PlainKey appears only in the creation response.
type Key struct {
	Prefix   string `json:"prefix"`
	PlainKey string `json:"api_key"`
	KeyName  string `json:"key_name"`
}

// Assistant is an API assistant record.
type Assistant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Tool is an API tool record.
type Tool struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Name string          `json:"name"`
	Fn   *FunctionSchema `json:"function,omitempty"`
}

// FunctionSchema is the function-call definition attached to a tool.
type FunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// =============================================================================
// Client
// =============================================================================

// Client is a thin HTTP client for the Entities API admin surface.
//
// # Description
//
// Five endpoints, JSON in and out, X-API-Key auth. No retries: a failed
// call surfaces immediately with its status and body so the operator can
// act. The base URL defaults to the local published port.
//
// # Thread Safety
//
// Client is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// DefaultBaseURL is the local published API address.
const DefaultBaseURL = "http://localhost:9000"

// NewClient creates a client for the given base URL and admin key.
//
// # Inputs
//
//   - baseURL: API base URL ("" uses DefaultBaseURL)
//   - apiKey: Admin API key (required)
//
// # Outputs
//
//   - *Client: Ready client
//   - error: ErrMissingAPIKey when apiKey is empty
func NewClient(baseURL, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// CreateUser creates a regular (non-admin) user.
func (c *Client) CreateUser(ctx context.Context, email, fullName string) (*User, error) {
	payload := map[string]any{
		"email":     email,
		"full_name": fullName,
		"is_admin":  false,
	}
	var user User
	if err := c.do(ctx, http.MethodPost, "/v1/users", payload, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser retrieves a user by ID.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/v1/users/"+userID, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// MintKey creates an API key for a user. The plaintext appears only in
// this response.
func (c *Client) MintKey(ctx context.Context, userID, keyName string) (*Key, error) {
	payload := map[string]any{"key_name": keyName}
	var key Key
	if err := c.do(ctx, http.MethodPost, "/v1/users/"+userID+"/apikeys", payload, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// GetAssistant retrieves an assistant by ID.
func (c *Client) GetAssistant(ctx context.Context, assistantID string) (*Assistant, error) {
	var assistant Assistant
	if err := c.do(ctx, http.MethodGet, "/v1/assistants/"+assistantID, nil, &assistant); err != nil {
		return nil, err
	}
	return &assistant, nil
}

// CreateAssistant creates an assistant with a fixed ID.
func (c *Client) CreateAssistant(ctx context.Context, id, name, description string) (*Assistant, error) {
	payload := map[string]any{
		"id":          id,
		"name":        name,
		"description": description,
	}
	var assistant Assistant
	if err := c.do(ctx, http.MethodPost, "/v1/assistants", payload, &assistant); err != nil {
		return nil, err
	}
	return &assistant, nil
}

// CreateTool registers a tool.
func (c *Client) CreateTool(ctx context.Context, tool Tool) (*Tool, error) {
	var created Tool
	if err := c.do(ctx, http.MethodPost, "/v1/tools", tool, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// AssociateTool attaches a tool to an assistant.
func (c *Client) AssociateTool(ctx context.Context, assistantID, toolID string) error {
	path := "/v1/assistants/" + assistantID + "/tools/" + toolID
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// do executes one JSON request/response round trip.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request for %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return nil
}
