// Package llm provides the completion gateway used by classification,
// extraction, slot suggestion, and drafting.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aidehq/aide/internal/core"
)

// Gateway is the completion surface the rest of the system consumes. Both
// methods return the raw response text; callers that expect structured
// output pull the first balanced JSON span out of it.
type Gateway interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateChat(ctx context.Context, history []core.Turn, message string) (string, error)
}

// Client calls the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config for the gateway client
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient creates a gateway client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// message is one entry in the API conversation
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request is the Messages API request body
type request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

// response is the Messages API response body
type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *Client) complete(ctx context.Context, req request) (string, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 2048
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", core.ErrGatewayUnavailable, resp.StatusCode, string(respBody))
	}

	var llmResp response
	if err := json.Unmarshal(respBody, &llmResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(llmResp.Content) == 0 {
		return "", core.ErrEmptyResponse
	}

	return llmResp.Content[0].Text, nil
}

// Generate sends a single-turn prompt and returns the response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, request{
		Messages: []message{{Role: "user", Content: prompt}},
	})
}

// GenerateChat continues a conversation. System-role turns in the history
// are dialogue-internal bookkeeping and are not forwarded.
func (c *Client) GenerateChat(ctx context.Context, history []core.Turn, userMessage string) (string, error) {
	messages := make([]message, 0, len(history)+1)
	for _, turn := range history {
		if turn.Role == core.RoleSystem {
			continue
		}
		messages = append(messages, message{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, message{Role: "user", Content: userMessage})

	return c.complete(ctx, request{
		System:   chatSystemPrompt(),
		Messages: messages,
	})
}

func chatSystemPrompt() string {
	return fmt.Sprintf(`You are aide, a helpful personal assistant. You help with research questions, scheduling, and email, and chat naturally about anything else.

Keep answers concise and friendly. Current time: %s`, time.Now().Format(time.RFC1123))
}

// IsConfigured checks if an API key is set
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}
