package service

import (
	"context"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/planweave/internal/domain"
)

// bootstrapSlug names the fallback agent used when a run pins no agent.
const bootstrapSlug = "bootstrap"

// bootstrapSystemPrompt seeds the lazily created bootstrap agent.
const bootstrapSystemPrompt = `You are the bootstrap orchestrator agent.
Given a user request, decide whether you can answer it directly or whether it
needs specialised agents. Answer directly with {"type":"final","result":{...}}.
To delegate, answer with {"type":"plan","agentsToCreate":[...],"runsToExecute":[...]},
creating focused agents with clear slugs, names and system prompts.`

// EnsureBootstrapAgent returns the bootstrap agent, creating it on first use.
func (s *Service) EnsureBootstrapAgent(ctx context.Context) (*domain.Agent, error) {
	agent, err := s.store.GetAgentBySlug(ctx, bootstrapSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to look up bootstrap agent: %w", err)
	}
	if agent != nil {
		return agent, nil
	}

	spec := domain.AgentSpec{
		Slug:         bootstrapSlug,
		Name:         "Bootstrap",
		Description:  "Entry-point agent that plans or answers when no agent is pinned.",
		SystemPrompt: bootstrapSystemPrompt,
		Metadata: &domain.SpecMetadata{
			Role: string(domain.RoleRouter),
			Tags: []string{"router"},
		},
	}
	res, err := s.ResolveAgentSpec(ctx, spec, domain.AgentOrigin{}, domain.CreatedBySystem)
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap agent: %w", err)
	}
	agent, err = s.store.GetAgent(ctx, res.AgentID)
	if err != nil || agent == nil {
		return nil, fmt.Errorf("failed to reload bootstrap agent: %w", err)
	}
	markSystem(agent)
	if err := s.store.UpdateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to mark bootstrap agent: %w", err)
	}
	return agent, nil
}

// EnsureMainRouter returns the directory agent, creating it on first use.
// Its slug and display name come from configuration.
func (s *Service) EnsureMainRouter(ctx context.Context) (*domain.Agent, error) {
	agent, err := s.store.GetAgentBySlug(ctx, s.config.MainRouterSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to look up main router: %w", err)
	}
	if agent != nil {
		return agent, nil
	}

	spec := domain.AgentSpec{
		Slug:        s.config.MainRouterSlug,
		Name:        s.config.MainRouterName,
		Description: "Cross-domain directory router with visibility over the full agent roster.",
		SystemPrompt: "You are the main directory router. Inspect the available agents in your " +
			"context and delegate each request to the best-matching router, or answer with a final result.",
		Metadata: &domain.SpecMetadata{
			Role: string(domain.RoleRouter),
			Tags: []string{"router", "domain-router"},
		},
	}
	// Created directly: the resolver's tag search would match the
	// router-tagged bootstrap agent instead of adding the directory agent.
	res, err := s.createAgentFromSpec(ctx, spec, effectiveTags(spec), domain.AgentOrigin{}, domain.CreatedBySystem)
	if err != nil {
		return nil, fmt.Errorf("failed to create main router: %w", err)
	}
	agent, err = s.store.GetAgent(ctx, res.AgentID)
	if err != nil || agent == nil {
		return nil, fmt.Errorf("failed to reload main router: %w", err)
	}
	markSystem(agent)
	if err := s.store.UpdateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to mark main router: %w", err)
	}
	return agent, nil
}

func markSystem(agent *domain.Agent) {
	agent.Metadata.System = true
	agent.CreatedBy = domain.CreatedBySystem
}

// seedManifest is the YAML shape of a seed agents file.
type seedManifest struct {
	Agents []seedAgent `yaml:"agents"`
}

type seedAgent struct {
	Slug         string   `yaml:"slug"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	SystemPrompt string   `yaml:"systemPrompt"`
	Role         string   `yaml:"role"`
	Tags         []string `yaml:"tags"`
	Domains      []string `yaml:"domains"`
	Hidden       bool     `yaml:"hidden"`
}

// LoadSeedAgents applies a YAML manifest of agents through the resolver.
// Re-seeding an unchanged manifest is a no-op: identical prompts reuse the
// existing versions.
func (s *Service) LoadSeedAgents(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	var manifest seedManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	for _, seed := range manifest.Agents {
		spec := domain.AgentSpec{
			Slug:         seed.Slug,
			Name:         seed.Name,
			Description:  seed.Description,
			SystemPrompt: seed.SystemPrompt,
			Metadata: &domain.SpecMetadata{
				Role:    seed.Role,
				Tags:    seed.Tags,
				Domains: seed.Domains,
				Hidden:  seed.Hidden,
			},
		}
		res, err := s.ResolveAgentSpec(ctx, spec, domain.AgentOrigin{}, domain.CreatedBySystem)
		if err != nil {
			return fmt.Errorf("failed to seed agent %q: %w", seed.Slug, err)
		}
		if res.CreatedNewAgent {
			log.Printf("INFO: seeded agent %s", res.Slug)
		}
	}
	return nil
}
