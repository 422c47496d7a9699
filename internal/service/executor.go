package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xiaot623/planweave/internal/adapter/llm"
	"github.com/xiaot623/planweave/internal/domain"
	"github.com/xiaot623/planweave/internal/routing"
	"github.com/xiaot623/planweave/policy"
)

// ExecuteRun runs one run to a terminal state. Any failure inside execution
// is trapped here: the run is marked failed with an ERROR event, and the
// error is returned for logging only — parents observe children through the
// stored run document, never through this return value.
func (s *Service) ExecuteRun(ctx context.Context, runID string) error {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("Run not found: %s", runID)
	}

	if err := s.executeRun(ctx, run); err != nil {
		s.failRun(ctx, run.RunID, err)
		return err
	}
	return nil
}

// failRun records a trapped failure: the error document keeps the max seq
// observed at the instant of failure, then ERROR and RUN_FINISHED follow.
func (s *Service) failRun(ctx context.Context, runID string, cause error) {
	lastSeq, err := s.store.MaxEventSeq(ctx, runID)
	if err != nil {
		log.Printf("ERROR: failed to read last event seq for %s: %v", runID, err)
	}
	if err := s.store.UpdateRunFailed(ctx, runID, &domain.RunError{
		Message:      cause.Error(),
		LastEventSeq: lastSeq,
	}); err != nil {
		log.Printf("ERROR: failed to mark run %s failed: %v", runID, err)
	}
	if _, err := s.Emit(ctx, runID, domain.EventTypeError, map[string]string{"message": cause.Error()}); err != nil {
		log.Printf("ERROR: failed to record ERROR event for %s: %v", runID, err)
	}
	if _, err := s.Emit(ctx, runID, domain.EventTypeRunFinished, map[string]string{"status": string(domain.RunStatusFailed)}); err != nil {
		log.Printf("ERROR: failed to record RUN_FINISHED event for %s: %v", runID, err)
	}
}

func (s *Service) executeRun(ctx context.Context, run *domain.Run) error {
	if _, err := s.Emit(ctx, run.RunID, domain.EventTypeRunStarted, map[string]string{
		"sessionId": run.SessionID,
		"agentId":   run.AgentID,
	}); err != nil {
		return err
	}

	agent, version, err := s.resolveRunAgent(ctx, run)
	if err != nil {
		return err
	}

	if _, err := s.Emit(ctx, run.RunID, domain.EventTypePromptLoaded, map[string]string{
		"agentVersionId": version.VersionID,
		"agentId":        agent.AgentID,
		"slug":           agent.Slug,
	}); err != nil {
		return err
	}

	contextDoc, state, err := s.buildRunContext(ctx, run, agent)
	if err != nil {
		return err
	}

	systemPrompt := version.SystemPrompt + "\n" + a2aInstruction
	model := s.config.ModelName
	temperature := modelTemperature
	if version.RoutingHints != nil {
		if version.RoutingHints.PreferredModel != "" {
			model = version.RoutingHints.PreferredModel
		}
		if version.RoutingHints.Temperature != nil {
			temperature = *version.RoutingHints.Temperature
		}
	}

	if _, err := s.Emit(ctx, run.RunID, domain.EventTypeModelRequest, map[string]string{
		"model":      model,
		"promptHash": promptHash(systemPrompt, run.Input.UserMessage),
	}); err != nil {
		return err
	}

	userContent := run.Input.UserMessage + "\n\nContext:\n" + prettyJSON(contextDoc)
	resp, err := s.caller.Call(ctx, &llm.Request{
		Model: model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: temperature,
	})
	if err != nil {
		return err
	}

	out, err := domain.ParseModelOutput(resp.Content)
	if err != nil {
		return err
	}
	if _, err := s.Emit(ctx, run.RunID, domain.EventTypeModelResponse, out.Raw); err != nil {
		return err
	}

	if out.Type == "final" {
		result := out.Result
		if len(result) == 0 {
			result = json.RawMessage("null")
		}
		if err := s.store.UpdateRunSucceeded(ctx, run.RunID, &domain.RunOutput{Result: result}); err != nil {
			return err
		}
		_, err := s.Emit(ctx, run.RunID, domain.EventTypeRunFinished, map[string]string{"status": string(domain.RunStatusSucceeded)})
		return err
	}

	return s.executePlan(ctx, run, agent, out, state)
}

// resolveRunAgent loads the agent and pinned version for a run, falling back
// to the bootstrap agent when the run carries none.
func (s *Service) resolveRunAgent(ctx context.Context, run *domain.Run) (*domain.Agent, *domain.AgentVersion, error) {
	var agent *domain.Agent
	var err error
	if run.AgentID != "" {
		agent, err = s.store.GetAgent(ctx, run.AgentID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get agent: %w", err)
		}
		if agent == nil {
			return nil, nil, fmt.Errorf("Agent not found")
		}
	} else {
		agent, err = s.EnsureBootstrapAgent(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	versionID := run.AgentVersionID
	if versionID == "" {
		versionID = agent.ActiveVersionID
	}
	version, err := s.store.GetAgentVersion(ctx, versionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get agent version: %w", err)
	}
	if version == nil || version.AgentID != agent.AgentID {
		return nil, nil, fmt.Errorf("Agent version not found")
	}
	return agent, version, nil
}

// executePlan validates a plan, spawns its agents, executes its child runs
// sequentially, and merges their results.
func (s *Service) executePlan(ctx context.Context, run *domain.Run, agent *domain.Agent, out *domain.ModelOutput, state domain.RoutingState) error {
	self := routing.BuildAgentSummary(*agent)

	runSlugs := make([]string, 0, len(out.RunsToExecute))
	for _, child := range out.RunsToExecute {
		runSlugs = append(runSlugs, child.Slug)
	}

	// Role discipline binds to the computed role, whatever its source.
	if self.Role == domain.RoleSpecialist {
		if len(out.AgentsToCreate) > 0 {
			return fmt.Errorf("Specialist agents cannot create new agents")
		}
		if len(out.RunsToExecute) > 1 {
			return fmt.Errorf("Specialist agents can delegate to at most one router")
		}
		if len(out.RunsToExecute) == 1 {
			known, err := s.knownRouterSlugs(ctx)
			if err != nil {
				return err
			}
			if !known[out.RunsToExecute[0].Slug] {
				return fmt.Errorf("Specialists can only delegate to router agents: %s", out.RunsToExecute[0].Slug)
			}
		}
	}

	alreadySpawned, err := s.store.CountRunsByRoot(ctx, run.RootRunID)
	if err != nil {
		return fmt.Errorf("failed to count runs: %w", err)
	}
	alreadySpawned--

	violations, err := s.policyEngine.Evaluate(ctx, policy.Input{
		RoutingDepth:   state.RoutingDepth,
		MaxDepth:       s.config.MaxDepth,
		MaxChildren:    s.config.MaxChildren,
		RunSlugs:       runSlugs,
		AlreadySpawned: alreadySpawned,
		SpawnCap:       spawnCapPerRoot,
	})
	if err != nil {
		return err
	}
	if violations[policy.ViolationDepthExceeded] {
		return fmt.Errorf("Routing depth exceeded")
	}
	if violations[policy.ViolationFanoutExceeded] {
		return fmt.Errorf("Fan-out limit exceeded")
	}

	seen := map[string]bool{}
	for _, slug := range runSlugs {
		if strings.TrimSpace(slug) == "" {
			return fmt.Errorf("Run spec requires a non-empty slug")
		}
		if seen[slug] {
			return fmt.Errorf("Duplicate slug in plan: %s", slug)
		}
		seen[slug] = true
	}
	for _, slug := range runSlugs {
		for _, visited := range state.VisitedSlugs {
			if slug == visited {
				return fmt.Errorf("Slug already executed in this run tree: %s", slug)
			}
		}
	}
	if violations[policy.ViolationSpawnCapExceeded] {
		return fmt.Errorf("Spawn cap exceeded")
	}
	for _, spec := range out.AgentsToCreate {
		if strings.TrimSpace(spec.Slug) == "" || strings.TrimSpace(spec.Name) == "" || strings.TrimSpace(spec.SystemPrompt) == "" {
			return fmt.Errorf("Agent spec requires slug, name and systemPrompt")
		}
	}

	agentSlugs := make([]string, 0, len(out.AgentsToCreate))
	for _, spec := range out.AgentsToCreate {
		agentSlugs = append(agentSlugs, spec.Slug)
	}
	if _, err := s.Emit(ctx, run.RunID, domain.EventTypeSpawnAgentRequest, map[string]interface{}{
		"agentsToCreate": agentSlugs,
		"runsToExecute":  runSlugs,
	}); err != nil {
		return err
	}

	origin := domain.AgentOrigin{
		ParentRunID:      run.RunID,
		RootRunID:        run.RootRunID,
		CreatedByAgentID: agent.AgentID,
		UserMessage:      run.Input.UserMessage,
	}
	resolutions := map[string]*domain.AgentResolution{}
	createdAgents := make([]string, 0, len(out.AgentsToCreate))
	for _, spec := range out.AgentsToCreate {
		res, err := s.ResolveAgentSpec(ctx, spec, origin, domain.CreatedByAgent)
		if err != nil {
			return err
		}
		resolutions[res.RequestedSlug] = res
		createdAgents = append(createdAgents, res.Slug)
		if _, err := s.Emit(ctx, run.RunID, domain.EventTypeSpawnAgentCreated, res); err != nil {
			return err
		}
	}

	// Children run strictly one after another so previousResults is
	// meaningful and spawn-cap bookkeeping stays race-free.
	childVisited := routing.MergeUnique(state.VisitedSlugs, runSlugs)
	childResults := map[string]interface{}{}
	executedAgents := make([]string, 0, len(out.RunsToExecute))
	for _, child := range out.RunsToExecute {
		previous := map[string]interface{}{}
		for slug, result := range childResults {
			previous[slug] = routing.SummarizeResult(result)
		}

		childCtx := map[string]interface{}{
			"parentPlan":      json.RawMessage(out.Raw),
			"previousResults": previous,
			"explicitContext": rawOrNullValue(child.Context),
			"routingPolicy": domain.RoutingPolicy{
				MaxDepth:    s.config.MaxDepth,
				MaxChildren: s.config.MaxChildren,
			},
			"routingState": domain.RoutingState{
				VisitedSlugs: childVisited,
				RoutingDepth: state.RoutingDepth + 1,
			},
		}
		ctxRaw, err := json.Marshal(childCtx)
		if err != nil {
			return fmt.Errorf("failed to marshal child context: %w", err)
		}

		childAgentID, childVersionID, err := s.resolveChildAgent(ctx, child.Slug, resolutions)
		if err != nil {
			return err
		}

		userMessage := child.UserMessage
		if strings.TrimSpace(userMessage) == "" {
			userMessage = run.Input.UserMessage
		}
		childRun := &domain.Run{
			RunID:          newID("run"),
			SessionID:      run.SessionID,
			AgentID:        childAgentID,
			AgentVersionID: childVersionID,
			Status:         domain.RunStatusRunning,
			ParentRunID:    run.RunID,
			RootRunID:      run.RootRunID,
			Input: domain.RunInput{
				UserMessage: userMessage,
				Context:     ctxRaw,
			},
			StartedAt: time.Now(),
		}
		if err := s.store.CreateRun(ctx, childRun); err != nil {
			return fmt.Errorf("failed to create child run: %w", err)
		}

		if _, err := s.Emit(ctx, run.RunID, domain.EventTypeChildRunStarted, map[string]string{
			"childRunId": childRun.RunID,
			"slug":       child.Slug,
		}); err != nil {
			return err
		}

		// A failed child does not abort the plan; its error becomes its result.
		if err := s.ExecuteRun(ctx, childRun.RunID); err != nil {
			log.Printf("WARN: child run %s (%s) failed: %v", childRun.RunID, child.Slug, err)
		}

		finished, err := s.store.GetRun(ctx, childRun.RunID)
		if err != nil {
			return fmt.Errorf("failed to reload child run: %w", err)
		}
		if finished.Status == domain.RunStatusSucceeded && finished.Output != nil {
			var result interface{}
			if err := json.Unmarshal(finished.Output.Result, &result); err != nil {
				result = string(finished.Output.Result)
			}
			childResults[child.Slug] = result
		} else {
			message := "child run failed"
			if finished.Error != nil {
				message = finished.Error.Message
			}
			childResults[child.Slug] = map[string]interface{}{"error": message}
		}
		executedAgents = append(executedAgents, child.Slug)

		if _, err := s.Emit(ctx, run.RunID, domain.EventTypeChildRunFinished, map[string]string{
			"childRunId": childRun.RunID,
			"status":     string(finished.Status),
		}); err != nil {
			return err
		}
	}

	merged := map[string]interface{}{
		"childResultsBySlug": childResults,
		"planSummary": map[string]interface{}{
			"createdAgents":  createdAgents,
			"executedAgents": executedAgents,
		},
	}
	mergedRaw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal merged result: %w", err)
	}
	if err := s.store.UpdateRunSucceeded(ctx, run.RunID, &domain.RunOutput{Result: mergedRaw}); err != nil {
		return err
	}
	_, err = s.Emit(ctx, run.RunID, domain.EventTypeRunFinished, map[string]string{"status": string(domain.RunStatusSucceeded)})
	return err
}

// resolveChildAgent picks the agent a child run executes: a plan resolution
// first, then an existing slug, then the bootstrap agent.
func (s *Service) resolveChildAgent(ctx context.Context, slug string, resolutions map[string]*domain.AgentResolution) (string, string, error) {
	if res, ok := resolutions[slug]; ok {
		return res.AgentID, res.AgentVersionID, nil
	}
	agent, err := s.store.GetAgentBySlug(ctx, slug)
	if err != nil {
		return "", "", fmt.Errorf("failed to look up child agent: %w", err)
	}
	if agent != nil {
		return agent.AgentID, agent.ActiveVersionID, nil
	}
	bootstrap, err := s.EnsureBootstrapAgent(ctx)
	if err != nil {
		return "", "", err
	}
	return bootstrap.AgentID, bootstrap.ActiveVersionID, nil
}

// knownRouterSlugs collects every slug whose computed role is router.
func (s *Service) knownRouterSlugs(ctx context.Context) (map[string]bool, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	known := map[string]bool{}
	for _, a := range agents {
		if routing.BuildAgentSummary(a).Role == domain.RoleRouter {
			known[a.Slug] = true
		}
	}
	return known, nil
}

// rawOrNullValue keeps explicitContext an explicit null when absent.
func rawOrNullValue(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
