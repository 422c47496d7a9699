package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// MockCaller is the in-process provider used when no API credentials are
// configured. It returns a canned plan by default, or a canned final when the
// user content contains the "final only" marker.
type MockCaller struct{}

// Ensure MockCaller implements Caller.
var _ Caller = (*MockCaller)(nil)

// NewMockCaller creates the offline mock provider.
func NewMockCaller() *MockCaller {
	return &MockCaller{}
}

// finalOnlyMarker switches the mock from its canned plan to a canned final.
const finalOnlyMarker = "final only"

// contextSeparator is appended by the executor between the user message and
// the serialized context document.
const contextSeparator = "\n\nContext:\n"

// Call inspects the last user message and fabricates a deterministic response.
func (m *MockCaller) Call(ctx context.Context, req *Request) (*Response, error) {
	userContent := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			userContent = req.Messages[i].Content
			break
		}
	}
	userMessage := userContent
	if idx := strings.Index(userMessage, contextSeparator); idx >= 0 {
		userMessage = userMessage[:idx]
	}

	if strings.Contains(userContent, finalOnlyMarker) {
		final := map[string]interface{}{
			"type": "final",
			"result": map[string]interface{}{
				"mock": true,
				"echo": userMessage,
			},
		}
		content, _ := json.Marshal(final)
		return &Response{Content: string(content)}, nil
	}

	plan := map[string]interface{}{
		"type": "plan",
		"agentsToCreate": []map[string]interface{}{
			{
				"slug":         "mock-echo",
				"name":         "Mock Echo",
				"description":  "Echoes its input back as a terminal result.",
				"systemPrompt": "You are a mock echo agent. Always answer with a final result that echoes the user message.",
			},
		},
		"runsToExecute": []map[string]interface{}{
			{
				"slug":        "mock-echo",
				"userMessage": "final only: hi",
			},
		},
	}
	content, _ := json.Marshal(plan)
	return &Response{Content: string(content)}, nil
}
