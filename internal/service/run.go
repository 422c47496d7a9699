package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xiaot623/planweave/internal/domain"
)

// StartRunRequest are the parameters of run.start.
type StartRunRequest struct {
	SessionID   string          `json:"sessionId"`
	UserMessage string          `json:"userMessage"`
	AgentSlug   string          `json:"agentSlug,omitempty"`
	AgentID     string          `json:"agentId,omitempty"`
	ParentRunID string          `json:"parentRunId,omitempty"`
	Context     json.RawMessage `json:"context,omitempty"`
}

// StartRun creates a run and executes it to completion before returning.
// There is no background queue; the caller blocks for the whole run tree.
func (s *Service) StartRun(ctx context.Context, req StartRunRequest) (string, error) {
	if req.SessionID == "" {
		return "", fmt.Errorf("sessionId is required")
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		return "", fmt.Errorf("userMessage is required")
	}
	session, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return "", fmt.Errorf("Session not found: %s", req.SessionID)
	}

	agent, err := s.resolveStartAgent(ctx, req.AgentID, req.AgentSlug)
	if err != nil {
		return "", err
	}

	rootRunID := ""
	parentRunID := ""
	if req.ParentRunID != "" {
		parent, err := s.store.GetRun(ctx, req.ParentRunID)
		if err != nil {
			return "", fmt.Errorf("failed to get parent run: %w", err)
		}
		if parent == nil {
			return "", fmt.Errorf("Run not found: %s", req.ParentRunID)
		}
		parentRunID = parent.RunID
		rootRunID = parent.RootRunID
	}

	run := &domain.Run{
		RunID:          newID("run"),
		SessionID:      req.SessionID,
		AgentID:        agent.AgentID,
		AgentVersionID: agent.ActiveVersionID,
		Status:         domain.RunStatusRunning,
		ParentRunID:    parentRunID,
		RootRunID:      rootRunID,
		Input: domain.RunInput{
			UserMessage: req.UserMessage,
			Context:     req.Context,
		},
		StartedAt: time.Now(),
	}
	if run.RootRunID == "" {
		run.RootRunID = run.RunID
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	// Failures inside execution are recorded on the run document; the caller
	// observes them through run.get rather than through this return value.
	if err := s.ExecuteRun(ctx, run.RunID); err != nil {
		log.Printf("WARN: run %s failed: %v", run.RunID, err)
	}
	return run.RunID, nil
}

// resolveStartAgent maps agentId/agentSlug onto an agent, falling through to
// the bootstrap agent when neither resolves.
func (s *Service) resolveStartAgent(ctx context.Context, agentID, agentSlug string) (*domain.Agent, error) {
	if agentID != "" {
		agent, err := s.store.GetAgent(ctx, agentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get agent: %w", err)
		}
		if agent != nil {
			return agent, nil
		}
	}
	if agentSlug != "" {
		agent, err := s.store.GetAgentBySlug(ctx, agentSlug)
		if err != nil {
			return nil, fmt.Errorf("failed to get agent: %w", err)
		}
		if agent != nil {
			return agent, nil
		}
	}
	return s.EnsureBootstrapAgent(ctx)
}

// GetRun retrieves a run by ID.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("Run not found: %s", runID)
	}
	return run, nil
}

// RunTreeEntry is a run row denormalized with its agent's slug and name.
type RunTreeEntry struct {
	domain.Run
	AgentSlug string `json:"agentSlug,omitempty"`
	AgentName string `json:"agentName,omitempty"`
}

// RunTree lists a session's runs with denormalized agent labels.
func (s *Service) RunTree(ctx context.Context, sessionID string) ([]RunTreeEntry, error) {
	runs, err := s.store.ListRunsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	byID := map[string]*domain.Agent{}
	for i := range agents {
		byID[agents[i].AgentID] = &agents[i]
	}

	entries := make([]RunTreeEntry, 0, len(runs))
	for _, run := range runs {
		entry := RunTreeEntry{Run: run}
		if agent := byID[run.AgentID]; agent != nil {
			entry.AgentSlug = agent.Slug
			entry.AgentName = agent.Name
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
