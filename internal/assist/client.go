package assist

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

var (
	// ErrAuthorization marks credential problems; retrying other models cannot fix them.
	ErrAuthorization = errors.New("assist: authorization failed")
	// ErrMissingKey is returned before any request when no API key is configured.
	ErrMissingKey = fmt.Errorf("%w: API key is missing, set it in Preferences", ErrAuthorization)
	// ErrEmptyPrompt rejects blank prompts.
	ErrEmptyPrompt = errors.New("assist: prompt is empty")
)

// StatusError is a non-2xx answer from the generation endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("assist: status %d: %s", e.Code, e.Body)
}

// Is makes 401, 403, invalid-key and permission answers match ErrAuthorization.
func (e *StatusError) Is(target error) bool {
	if target != ErrAuthorization {
		return false
	}
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden ||
		authFailureText(e.Body)
}

func authFailureText(s string) bool {
	return strings.Contains(s, "API_KEY_INVALID") || strings.Contains(strings.ToLower(s), "permission")
}

// Backend generates text for a prompt with one model.
type Backend interface {
	Generate(ctx context.Context, apiKey, model, prompt string) (string, error)
}

// Client is a Backend speaking a small JSON protocol:
//
//	POST {endpoint}  {"model": "...", "prompt": "..."}  ->  {"text": "..."}
//
// with the key sent as a bearer token.
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

// NewClient creates a Client with the given per-request timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// Generate sends one request.
func (c *Client) Generate(ctx context.Context, apiKey, model, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("assist: decode response: %w", err)
	}
	return out.Text, nil
}
