// Package policy evaluates the numeric delegation limits of a plan — routing
// depth, fan-out, and the per-root spawn cap — with an OPA rego policy.
package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Violation codes produced by the delegation policy.
const (
	ViolationDepthExceeded    = "depth_exceeded"
	ViolationFanoutExceeded   = "fanout_exceeded"
	ViolationSpawnCapExceeded = "spawn_cap_exceeded"
)

// Input is the delegation policy input document.
type Input struct {
	RoutingDepth   int      `json:"routing_depth"`
	MaxDepth       int      `json:"max_depth"`
	MaxChildren    int      `json:"max_children"`
	RunSlugs       []string `json:"run_slugs"`
	AlreadySpawned int      `json:"already_spawned"`
	SpawnCap       int      `json:"spawn_cap"`
}

// Engine is the OPA delegation policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the delegation policy for evaluation.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.delegation.violations"),
		rego.Module("delegation.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate returns the set of violation codes for a plan. The caller applies
// them in its own check order; the set itself is unordered.
func (e *Engine) Evaluate(ctx context.Context, input Input) (map[string]bool, error) {
	doc, err := toInputDocument(input)
	if err != nil {
		return nil, err
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	violations := map[string]bool{}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return violations, nil
	}

	codes, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	for _, c := range codes {
		if code, ok := c.(string); ok {
			violations[code] = true
		}
	}
	return violations, nil
}

// toInputDocument round-trips the typed input through JSON so the evaluator
// sees a plain document.
func toInputDocument(input Input) (interface{}, error) {
	if input.RunSlugs == nil {
		input.RunSlugs = []string{}
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal policy input: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode policy input: %w", err)
	}
	return doc, nil
}

// DefaultPolicy is the default delegation policy content.
const DefaultPolicy = `
package delegation

import rego.v1

violations contains "depth_exceeded" if {
	input.routing_depth >= input.max_depth
	count(input.run_slugs) > 0
}

violations contains "fanout_exceeded" if {
	count(input.run_slugs) > input.max_children
}

violations contains "spawn_cap_exceeded" if {
	input.already_spawned + count(input.run_slugs) > input.spawn_cap
}
`
