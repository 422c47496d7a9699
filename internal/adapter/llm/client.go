package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	endpoint      string
	apiKey        string
	modelOverride string
	jsonMode      bool
	httpClient    *http.Client
}

// Ensure Client implements Caller.
var _ Caller = (*Client)(nil)

const bodyPrefixLen = 300

// NewOpenAIClient creates a caller for the OpenAI chat-completions endpoint.
// Responses are requested in JSON-object format.
func NewOpenAIClient(apiKey string) *Client {
	return &Client{
		endpoint:   "https://api.openai.com/v1/chat/completions",
		apiKey:     apiKey,
		jsonMode:   true,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// NewFireworksClient creates a caller for the Fireworks chat-completions
// endpoint. Requests are rewritten to the configured Fireworks model.
func NewFireworksClient(apiKey, model string) *Client {
	return &Client{
		endpoint:      "https://api.fireworks.ai/inference/v1/chat/completions",
		apiKey:        apiKey,
		modelOverride: model,
		httpClient:    &http.Client{Timeout: 120 * time.Second},
	}
}

type chatCompletionRequest struct {
	Model          string                 `json:"model"`
	Messages       []Message              `json:"messages"`
	Temperature    float64                `json:"temperature"`
	ResponseFormat map[string]interface{} `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message *Message `json:"message"`
	} `json:"choices"`
}

// Call sends a chat completion request and returns the assistant content.
// No retries; a non-2xx status fails with the status and a body prefix.
func (c *Client) Call(ctx context.Context, req *Request) (*Response, error) {
	payload := chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}
	if c.modelOverride != "" {
		payload.Model = c.modelOverride
	}
	if c.jsonMode {
		payload.ResponseFormat = map[string]interface{}{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		prefix := string(respBody)
		if len(prefix) > bodyPrefixLen {
			prefix = prefix[:bodyPrefixLen]
		}
		return nil, fmt.Errorf("model API error [%d]: %s", resp.StatusCode, prefix)
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message == nil || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("model API error: missing content")
	}

	return &Response{Content: result.Choices[0].Message.Content}, nil
}
