// Package store provides the persistence gateway for the orchestration engine.
package store

import (
	"context"

	"github.com/xiaot623/planweave/internal/domain"
)

// Store is the typed CRUD surface over the engine's collections.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context, limit int) ([]domain.Session, error)

	// Agents
	CreateAgent(ctx context.Context, agent *domain.Agent) error
	UpdateAgent(ctx context.Context, agent *domain.Agent) error
	GetAgent(ctx context.Context, agentID string) (*domain.Agent, error)
	GetAgentBySlug(ctx context.Context, slug string) (*domain.Agent, error)
	GetAgentByName(ctx context.Context, name string) (*domain.Agent, error)
	ListAgents(ctx context.Context) ([]domain.Agent, error)

	// Agent versions
	CreateAgentVersion(ctx context.Context, version *domain.AgentVersion) error
	GetAgentVersion(ctx context.Context, versionID string) (*domain.AgentVersion, error)
	GetLatestAgentVersion(ctx context.Context, agentID string) (*domain.AgentVersion, error)
	ListAgentVersions(ctx context.Context, agentID string) ([]domain.AgentVersion, error)

	// Runs
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	UpdateRunSucceeded(ctx context.Context, runID string, output *domain.RunOutput) error
	UpdateRunFailed(ctx context.Context, runID string, runErr *domain.RunError) error
	ListRunsBySession(ctx context.Context, sessionID string) ([]domain.Run, error)
	CountRunsByRoot(ctx context.Context, rootRunID string) (int, error)

	// Events
	CreateEvent(ctx context.Context, event *domain.Event) error
	MaxEventSeq(ctx context.Context, runID string) (int64, error)
	GetEventsSince(ctx context.Context, runID string, sinceSeq int64) ([]domain.Event, error)

	// Workflows
	SaveWorkflow(ctx context.Context, workflow *domain.Workflow) error
	GetWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error)
	ListWorkflows(ctx context.Context) ([]domain.Workflow, error)
	DeleteWorkflow(ctx context.Context, workflowID string) error

	Close() error
}
