package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/planweave/internal/domain"
	"github.com/xiaot623/planweave/internal/routing"
)

// cardProtocolVersion tags the descriptor exposed at the well-known endpoint.
const cardProtocolVersion = "0.3.0"

// ResolveAgentSpec matches a plan agent spec against the existing roster and
// reuses, versions, or creates an agent accordingly. Resolving the same spec
// twice with an identical trimmed prompt yields no new versions.
func (s *Service) ResolveAgentSpec(ctx context.Context, spec domain.AgentSpec, origin domain.AgentOrigin, createdBy domain.CreatedBy) (*domain.AgentResolution, error) {
	if strings.TrimSpace(spec.Slug) == "" || strings.TrimSpace(spec.Name) == "" || strings.TrimSpace(spec.SystemPrompt) == "" {
		return nil, fmt.Errorf("agent spec requires slug, name and systemPrompt")
	}
	tags := effectiveTags(spec)

	matched, matchedOn, err := s.findAgentForSpec(ctx, spec, tags)
	if err != nil {
		return nil, err
	}

	if matched == nil {
		return s.createAgentFromSpec(ctx, spec, tags, origin, createdBy)
	}

	latest, err := s.store.GetLatestAgentVersion(ctx, matched.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}

	samePrompt := latest != nil &&
		strings.TrimSpace(latest.SystemPrompt) == strings.TrimSpace(spec.SystemPrompt)

	if samePrompt {
		if err := s.mergeAgentMetadata(ctx, matched, spec, tags, false); err != nil {
			return nil, err
		}
		return &domain.AgentResolution{
			RequestedSlug:  spec.Slug,
			Slug:           matched.Slug,
			AgentID:        matched.AgentID,
			AgentVersionID: latest.VersionID,
			Reused:         true,
			MatchedOn:      matchedOn,
		}, nil
	}

	// Prompts differ: append a new immutable version and activate it.
	nextVersion := 1
	if latest != nil {
		nextVersion = latest.Version + 1
	}
	version := &domain.AgentVersion{
		VersionID:    newID("ver"),
		AgentID:      matched.AgentID,
		Version:      nextVersion,
		SystemPrompt: spec.SystemPrompt,
		Resources:    spec.Resources,
		IOSchema:     spec.IOSchema,
		RoutingHints: spec.RoutingHints,
		CreatedAt:    time.Now(),
		CreatedBy:    createdBy,
	}
	if err := s.store.CreateAgentVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	matched.ActiveVersionID = version.VersionID
	if err := s.mergeAgentMetadata(ctx, matched, spec, tags, true); err != nil {
		return nil, err
	}

	return &domain.AgentResolution{
		RequestedSlug:     spec.Slug,
		Slug:              matched.Slug,
		AgentID:           matched.AgentID,
		AgentVersionID:    version.VersionID,
		Reused:            false,
		MatchedOn:         matchedOn + "-updated",
		CreatedNewVersion: true,
	}, nil
}

// findAgentForSpec runs the ordered slug → name → tags search.
func (s *Service) findAgentForSpec(ctx context.Context, spec domain.AgentSpec, tags []string) (*domain.Agent, string, error) {
	agent, err := s.store.GetAgentBySlug(ctx, spec.Slug)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up slug: %w", err)
	}
	if agent != nil {
		return agent, "slug", nil
	}

	agent, err = s.store.GetAgentByName(ctx, spec.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up name: %w", err)
	}
	if agent != nil {
		return agent, "name", nil
	}

	if len(tags) > 0 {
		agents, err := s.store.ListAgents(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list agents: %w", err)
		}
		want := map[string]bool{}
		for _, t := range tags {
			want[t] = true
		}
		for i := range agents {
			for _, t := range routing.NormalizeStrings(agents[i].Metadata.Tags) {
				if want[t] {
					return &agents[i], "tags", nil
				}
			}
		}
	}
	return nil, "", nil
}

// createAgentFromSpec inserts a new agent with version 1.
func (s *Service) createAgentFromSpec(ctx context.Context, spec domain.AgentSpec, tags []string, origin domain.AgentOrigin, createdBy domain.CreatedBy) (*domain.AgentResolution, error) {
	now := time.Now()
	agentID := newID("agent")
	versionID := newID("ver")

	md := specMetadata(spec, tags)
	md.Card = buildAgentCard(spec.Slug, spec.Name, spec.Description, tags)
	if origin != (domain.AgentOrigin{}) {
		md.Origin = &origin
	}

	agent := &domain.Agent{
		AgentID:         agentID,
		Slug:            spec.Slug,
		Name:            spec.Name,
		Description:     spec.Description,
		ActiveVersionID: versionID,
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatedBy:       createdBy,
		Metadata:        md,
	}
	if err := s.store.CreateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	version := &domain.AgentVersion{
		VersionID:    versionID,
		AgentID:      agentID,
		Version:      1,
		SystemPrompt: spec.SystemPrompt,
		Resources:    spec.Resources,
		IOSchema:     spec.IOSchema,
		RoutingHints: spec.RoutingHints,
		CreatedAt:    now,
		CreatedBy:    createdBy,
	}
	if err := s.store.CreateAgentVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	return &domain.AgentResolution{
		RequestedSlug:   spec.Slug,
		Slug:            spec.Slug,
		AgentID:         agentID,
		AgentVersionID:  versionID,
		MatchedOn:       "",
		CreatedNewAgent: true,
	}, nil
}

// mergeAgentMetadata folds new tag/domain/description info from a spec into
// an existing agent, persisting only when something changed. mustPersist
// forces the write when the caller already mutated the agent row.
func (s *Service) mergeAgentMetadata(ctx context.Context, agent *domain.Agent, spec domain.AgentSpec, tags []string, mustPersist bool) error {
	changed := mustPersist

	mergedTags := routing.MergeUnique(routing.NormalizeStrings(agent.Metadata.Tags), tags)
	if len(mergedTags) != len(agent.Metadata.Tags) {
		agent.Metadata.Tags = mergedTags
		changed = true
	}
	if spec.Metadata != nil {
		mergedDomains := routing.MergeUnique(agent.Metadata.Domains, routing.NormalizeStrings(spec.Metadata.Domains))
		if len(mergedDomains) != len(agent.Metadata.Domains) {
			agent.Metadata.Domains = mergedDomains
			changed = true
		}
	}
	if agent.Description == "" && spec.Description != "" {
		agent.Description = spec.Description
		changed = true
	}
	if !changed {
		return nil
	}

	agent.UpdatedAt = time.Now()
	if err := s.store.UpdateAgent(ctx, agent); err != nil {
		return fmt.Errorf("failed to merge agent metadata: %w", err)
	}
	return nil
}

// effectiveTags is the union of a spec's routing-hint tags and metadata tags.
func effectiveTags(spec domain.AgentSpec) []string {
	var hintTags, metaTags []string
	if spec.RoutingHints != nil {
		hintTags = routing.NormalizeStrings(spec.RoutingHints.Tags)
	}
	if spec.Metadata != nil {
		metaTags = routing.NormalizeStrings(spec.Metadata.Tags)
	}
	return routing.MergeUnique(hintTags, metaTags)
}

// specMetadata derives agent metadata from a spec, with tag and label
// inference filling what the agent spec leaves out.
func specMetadata(spec domain.AgentSpec, tags []string) domain.AgentMetadata {
	md := domain.AgentMetadata{Tags: tags}
	if spec.Metadata != nil {
		md.Role = domain.AgentRole(spec.Metadata.Role)
		md.Domains = routing.NormalizeStrings(spec.Metadata.Domains)
		md.Capabilities = routing.NormalizeStrings(spec.Metadata.Capabilities)
		md.Hidden = spec.Metadata.Hidden
	}
	if md.Role == "" {
		md.Role = routing.InferRoleFromTags(tags)
	}
	if md.Role == "" {
		md.Role = routing.InferRoleFromLabel(spec.Name, spec.Slug)
	}
	if len(md.Domains) == 0 {
		md.Domains = routing.ExtractDomainsFromTags(tags)
	}
	if len(md.Domains) == 0 {
		if d := routing.InferDomainFromLabel(spec.Name, spec.Slug); d != "" {
			md.Domains = []string{d}
		}
	}
	return md
}

// buildAgentCard synthesizes the A2A-style descriptor exposed via the
// well-known endpoint. skills[0].tags carries the agent spec's effective tags.
func buildAgentCard(slug, name, description string, tags []string) json.RawMessage {
	if tags == nil {
		tags = []string{}
	}
	card := map[string]interface{}{
		"protocolVersion": cardProtocolVersion,
		"name":            name,
		"description":     description,
		"url":             "/.well-known/agent-card.json?slug=" + slug,
		"skills": []map[string]interface{}{
			{
				"id":   slug + "-default",
				"name": name,
				"tags": tags,
			},
		},
	}
	raw, _ := json.Marshal(card)
	return raw
}
