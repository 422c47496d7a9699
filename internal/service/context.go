package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/xiaot623/planweave/internal/domain"
	"github.com/xiaot623/planweave/internal/routing"
)

// a2aInstruction is appended to every agent's system prompt. It pins the
// output contract and the delegation discipline the executor enforces.
const a2aInstruction = `You must answer with a single JSON object and nothing else.
Answer either {"type":"final","result":{...}} to finish, or {"type":"plan","agentsToCreate":[...],"runsToExecute":[...]} to delegate.
Delegation rules:
- Never delegate to yourself.
- Never delegate to a slug listed in routingState.visitedSlugs or twice within one plan.
- Respect routingPolicy.maxDepth and routingPolicy.maxChildren.
- Specialist agents must not create agents and may delegate to at most one router.
- Only the directory agent sees the full roster; everyone else works from the router and specialist indexes in context.`

// spawnCapPerRoot bounds the descendants of one root run.
const spawnCapPerRoot = 10

// modelTemperature is the default sampling temperature for agent calls.
const modelTemperature = 0.2

// buildRunContext assembles the context document shown to the model and the
// routing state (visited slugs including self) used for plan validation.
func (s *Service) buildRunContext(ctx context.Context, run *domain.Run, agent *domain.Agent) (map[string]interface{}, domain.RoutingState, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, domain.RoutingState{}, fmt.Errorf("failed to list agents: %w", err)
	}

	self := routing.BuildAgentSummary(*agent)
	state := routing.ReadRoutingState(run.Input.Context)
	state.VisitedSlugs = routing.MergeUnique(state.VisitedSlugs, []string{agent.Slug})

	doc := map[string]interface{}{
		"availableAgentsSummary": routing.SummarizeAgents(agents),
		"availableRouters":       routing.BuildRouterIndex(agents, s.config.RouterIndexLimit),
		"routingPolicy": domain.RoutingPolicy{
			MaxDepth:    s.config.MaxDepth,
			MaxChildren: s.config.MaxChildren,
		},
		"routingState": state,
		"self":         self,
		"a2a": map[string]interface{}{
			"directoryAgent": map[string]string{
				"slug":    s.config.MainRouterSlug,
				"purpose": "Cross-domain router that sees the full agent roster.",
			},
		},
	}

	if self.Role == domain.RoleRouter {
		// Cross-domain routers see the unfiltered specialist index.
		domains := self.Domains
		if isCrossDomainRouter(self) {
			domains = nil
		}
		doc["availableSpecialists"] = routing.BuildSpecialistIndex(agents, s.config.SpecialistIndexLimit, domains)
	}

	if agent.Slug == s.config.MainRouterSlug {
		roster := make([]routing.AgentSummary, 0, len(agents))
		for _, a := range agents {
			roster = append(roster, routing.BuildAgentSummary(a))
		}
		doc["availableAgents"] = roster
	}

	// Child runs carry plan context injected by their parent.
	if len(run.Input.Context) > 0 {
		var injected map[string]interface{}
		if err := json.Unmarshal(run.Input.Context, &injected); err == nil {
			for _, key := range []string{"parentPlan", "previousResults", "explicitContext"} {
				if v, ok := injected[key]; ok {
					doc[key] = v
				}
			}
		}
	}

	return doc, state, nil
}

func isCrossDomainRouter(self routing.AgentSummary) bool {
	for _, t := range self.Tags {
		if t == "domain-router" {
			return true
		}
	}
	return len(self.Domains) == 0
}

// promptHash fingerprints a model request without storing prompt text.
func promptHash(systemPrompt, userMessage string) string {
	sum := sha256.Sum256([]byte(systemPrompt + userMessage))
	return hex.EncodeToString(sum[:])[:12]
}

// prettyJSON renders the context document appended to the user message.
func prettyJSON(v interface{}) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}
