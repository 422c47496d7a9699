package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/planweave/internal/domain"
)

// AgentDetail bundles an agent with its active version and full history.
type AgentDetail struct {
	Agent         *domain.Agent         `json:"agent"`
	ActiveVersion *domain.AgentVersion  `json:"activeVersion,omitempty"`
	Versions      []domain.AgentVersion `json:"versions"`
}

// ListAgents lists the roster; hidden agents are excluded unless requested.
func (s *Service) ListAgents(ctx context.Context, includeHidden bool) ([]domain.Agent, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	if includeHidden {
		return agents, nil
	}
	visible := make([]domain.Agent, 0, len(agents))
	for _, a := range agents {
		if !a.Metadata.Hidden {
			visible = append(visible, a)
		}
	}
	return visible, nil
}

// GetAgentDetail loads an agent by ID or slug with its version history.
func (s *Service) GetAgentDetail(ctx context.Context, agentID, slug string) (*AgentDetail, error) {
	var agent *domain.Agent
	var err error
	switch {
	case agentID != "":
		agent, err = s.store.GetAgent(ctx, agentID)
	case slug != "":
		agent, err = s.store.GetAgentBySlug(ctx, slug)
	default:
		return nil, fmt.Errorf("agentId or slug is required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("Agent not found")
	}

	versions, err := s.store.ListAgentVersions(ctx, agent.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	detail := &AgentDetail{Agent: agent, Versions: versions}
	if agent.ActiveVersionID != "" {
		active, err := s.store.GetAgentVersion(ctx, agent.ActiveVersionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get active version: %w", err)
		}
		detail.ActiveVersion = active
	}
	return detail, nil
}

// GetAgentVersion loads a version, optionally checking agent ownership.
func (s *Service) GetAgentVersion(ctx context.Context, versionID, agentID string) (*domain.AgentVersion, error) {
	version, err := s.store.GetAgentVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	if version == nil || (agentID != "" && version.AgentID != agentID) {
		return nil, fmt.Errorf("Agent version not found")
	}
	return version, nil
}

// UpdatePrompt appends a new version with the given prompt and activates it.
// Versions are append-only; the previous content is never rewritten.
func (s *Service) UpdatePrompt(ctx context.Context, agentID, newSystemPrompt, editor string) (*domain.AgentVersion, error) {
	if strings.TrimSpace(newSystemPrompt) == "" {
		return nil, fmt.Errorf("newSystemPrompt is required")
	}
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("Agent not found")
	}

	latest, err := s.store.GetLatestAgentVersion(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	nextVersion := 1
	var hints *domain.RoutingHints
	if latest != nil {
		nextVersion = latest.Version + 1
		hints = latest.RoutingHints
	}

	createdBy := domain.CreatedByUser
	if editor == string(domain.CreatedByAgent) {
		createdBy = domain.CreatedByAgent
	}

	version := &domain.AgentVersion{
		VersionID:    newID("ver"),
		AgentID:      agentID,
		Version:      nextVersion,
		SystemPrompt: newSystemPrompt,
		RoutingHints: hints,
		CreatedAt:    time.Now(),
		CreatedBy:    createdBy,
	}
	if err := s.store.CreateAgentVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	agent.ActiveVersionID = version.VersionID
	agent.UpdatedAt = time.Now()
	if err := s.store.UpdateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to activate version: %w", err)
	}
	return version, nil
}

// SetActiveVersion pins an agent's active version to an existing one.
func (s *Service) SetActiveVersion(ctx context.Context, agentID, versionID string) error {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		return fmt.Errorf("Agent not found")
	}
	version, err := s.store.GetAgentVersion(ctx, versionID)
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	if version == nil || version.AgentID != agentID {
		return fmt.Errorf("Agent version not found")
	}

	agent.ActiveVersionID = versionID
	agent.UpdatedAt = time.Now()
	if err := s.store.UpdateAgent(ctx, agent); err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	return nil
}
