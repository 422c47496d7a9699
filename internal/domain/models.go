package domain

import (
	"encoding/json"
	"time"
)

// Agent is the stable identity of a versioned LLM persona.
type Agent struct {
	AgentID         string        `json:"agentId"`
	Slug            string        `json:"slug"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	ActiveVersionID string        `json:"activeVersionId"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	CreatedBy       CreatedBy     `json:"createdBy"`
	Metadata        AgentMetadata `json:"metadata"`
}

// AgentMetadata carries routing and provenance data for an agent.
type AgentMetadata struct {
	Role         AgentRole       `json:"role,omitempty"`
	Domains      []string        `json:"domains,omitempty"`
	Capabilities []string        `json:"capabilities,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Hidden       bool            `json:"hidden,omitempty"`
	System       bool            `json:"system,omitempty"`
	Card         json.RawMessage `json:"card,omitempty"`
	Origin       *AgentOrigin    `json:"origin,omitempty"`
}

// AgentOrigin records which run spawned an agent.
type AgentOrigin struct {
	ParentRunID      string `json:"parentRunId,omitempty"`
	RootRunID        string `json:"rootRunId,omitempty"`
	CreatedByAgentID string `json:"createdByAgentId,omitempty"`
	UserMessage      string `json:"userMessage,omitempty"`
}

// AgentVersion is an immutable snapshot of an agent's prompt and configuration.
type AgentVersion struct {
	VersionID    string          `json:"versionId"`
	AgentID      string          `json:"agentId"`
	Version      int             `json:"version"`
	SystemPrompt string          `json:"systemPrompt"`
	Resources    json.RawMessage `json:"resources,omitempty"`
	IOSchema     json.RawMessage `json:"ioSchema,omitempty"`
	RoutingHints *RoutingHints   `json:"routingHints,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	CreatedBy    CreatedBy       `json:"createdBy"`
}

// RoutingHints tune how the engine routes to a version.
type RoutingHints struct {
	Tags           []string `json:"tags,omitempty"`
	PreferredModel string   `json:"preferredModel,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
}

// Session groups runs into a conversation.
type Session struct {
	SessionID string          `json:"sessionId"`
	Title     string          `json:"title,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Run is one execution of one agent version.
type Run struct {
	RunID          string     `json:"runId"`
	SessionID      string     `json:"sessionId"`
	AgentID        string     `json:"agentId,omitempty"`
	AgentVersionID string     `json:"agentVersionId,omitempty"`
	Status         RunStatus  `json:"status"`
	ParentRunID    string     `json:"parentRunId,omitempty"`
	RootRunID      string     `json:"rootRunId"`
	Input          RunInput   `json:"input"`
	Output         *RunOutput `json:"output,omitempty"`
	Error          *RunError  `json:"error,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
}

// RunInput is the user message plus the context injected by the parent run.
type RunInput struct {
	UserMessage string          `json:"userMessage"`
	Context     json.RawMessage `json:"context,omitempty"`
}

// RunOutput wraps the opaque result produced by a successful run.
type RunOutput struct {
	Result json.RawMessage `json:"result"`
}

// RunError records why a run failed and the last event seq at failure time.
type RunError struct {
	Message      string `json:"message"`
	LastEventSeq int64  `json:"lastEventSeq"`
}

// Event is one entry of a run's append-only event stream.
type Event struct {
	EventID string          `json:"eventId"`
	RunID   string          `json:"runId"`
	Seq     int64           `json:"seq"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Workflow is a saved linear DAG of agent nodes.
type Workflow struct {
	WorkflowID  string         `json:"workflowId"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Nodes       []WorkflowNode `json:"nodes"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// WorkflowNode is one step of a workflow. Parents must precede the node in
// the persisted order; no implicit topological sort is performed.
type WorkflowNode struct {
	ID                string   `json:"id"`
	AgentSlug         string   `json:"agentSlug"`
	Label             string   `json:"label,omitempty"`
	IncludeUserPrompt bool     `json:"includeUserPrompt,omitempty"`
	Parents           []string `json:"parents,omitempty"`
}

// RoutingPolicy bounds delegation for a run tree.
type RoutingPolicy struct {
	MaxDepth    int `json:"maxDepth"`
	MaxChildren int `json:"maxChildren"`
}

// RoutingState tracks the delegation path from the root run.
type RoutingState struct {
	VisitedSlugs []string `json:"visitedSlugs"`
	RoutingDepth int      `json:"routingDepth"`
}

// AgentResolution is the outcome of matching a plan agent spec against the
// existing roster.
type AgentResolution struct {
	RequestedSlug     string `json:"requestedSlug"`
	Slug              string `json:"slug"`
	AgentID           string `json:"agentId"`
	AgentVersionID    string `json:"agentVersionId"`
	Reused            bool   `json:"reused"`
	MatchedOn         string `json:"matchedOn"`
	CreatedNewAgent   bool   `json:"createdNewAgent,omitempty"`
	CreatedNewVersion bool   `json:"createdNewVersion,omitempty"`
}
