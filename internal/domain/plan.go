package domain

import (
	"encoding/json"
	"fmt"
)

// ModelOutput is the parsed top-level model response: either a terminal
// final result or a plan directing child agents and runs.
type ModelOutput struct {
	Type           string          `json:"type"`
	Result         json.RawMessage `json:"result,omitempty"`
	AgentsToCreate []AgentSpec     `json:"agentsToCreate,omitempty"`
	RunsToExecute  []ChildRunSpec  `json:"runsToExecute,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

// AgentSpec describes an agent a plan wants created or reused.
type AgentSpec struct {
	Slug         string          `json:"slug"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	SystemPrompt string          `json:"systemPrompt"`
	Resources    json.RawMessage `json:"resources,omitempty"`
	IOSchema     json.RawMessage `json:"ioSchema,omitempty"`
	RoutingHints *RoutingHints   `json:"routingHints,omitempty"`
	Metadata     *SpecMetadata   `json:"metadata,omitempty"`
}

// SpecMetadata is the metadata portion of a plan agent spec.
type SpecMetadata struct {
	Role         string   `json:"role,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Domains      []string `json:"domains,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Hidden       bool     `json:"hidden,omitempty"`
}

// ChildRunSpec names one child run a plan wants executed.
type ChildRunSpec struct {
	Slug        string          `json:"slug"`
	UserMessage string          `json:"userMessage,omitempty"`
	Context     json.RawMessage `json:"context,omitempty"`
}

// planEnvelope holds the raw plan keys so legacy aliases can be normalized.
// Models may emit "agents"/"runs" in place of "agentsToCreate"/"runsToExecute";
// this is a permanent contract, not a deprecation path.
type planEnvelope struct {
	Type           string          `json:"type"`
	Result         json.RawMessage `json:"result"`
	AgentsToCreate json.RawMessage `json:"agentsToCreate"`
	Agents         json.RawMessage `json:"agents"`
	RunsToExecute  json.RawMessage `json:"runsToExecute"`
	Runs           json.RawMessage `json:"runs"`
}

// ParseModelOutput parses a model response strictly as JSON and normalizes
// legacy plan keys. The top-level type must be "plan" or "final".
func ParseModelOutput(content string) (*ModelOutput, error) {
	var env planEnvelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	if env.Type != "plan" && env.Type != "final" {
		return nil, fmt.Errorf("Model response missing type plan/final")
	}

	out := &ModelOutput{
		Type:   env.Type,
		Result: env.Result,
		Raw:    json.RawMessage(content),
	}
	if env.Type == "final" {
		return out, nil
	}

	agents, err := decodeSpecArray[AgentSpec](env.AgentsToCreate, env.Agents)
	if err != nil {
		return nil, fmt.Errorf("plan agentsToCreate is not an array: %w", err)
	}
	runs, err := decodeSpecArray[ChildRunSpec](env.RunsToExecute, env.Runs)
	if err != nil {
		return nil, fmt.Errorf("plan runsToExecute is not an array: %w", err)
	}
	out.AgentsToCreate = agents
	out.RunsToExecute = runs
	return out, nil
}

// decodeSpecArray decodes the primary key, falling back to its legacy alias.
// A missing or null key yields an empty slice; a present non-array fails.
func decodeSpecArray[T any](primary, legacy json.RawMessage) ([]T, error) {
	raw := primary
	if isAbsent(raw) {
		raw = legacy
	}
	if isAbsent(raw) {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
