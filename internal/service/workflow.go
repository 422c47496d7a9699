package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/planweave/internal/domain"
)

// workflowContinueMessage drives nodes that do not include the user prompt.
const workflowContinueMessage = "Continue from previous agent output and produce the next step."

// SaveWorkflowRequest are the parameters of workflow.save.
type SaveWorkflowRequest struct {
	WorkflowID  string                `json:"workflowId,omitempty"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Nodes       []domain.WorkflowNode `json:"nodes"`
}

// SaveWorkflow creates or replaces a workflow after validating its node list.
func (s *Service) SaveWorkflow(ctx context.Context, req SaveWorkflowRequest) (*domain.Workflow, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	if len(req.Nodes) == 0 {
		return nil, fmt.Errorf("nodes are required")
	}
	seen := map[string]bool{}
	for _, node := range req.Nodes {
		if strings.TrimSpace(node.ID) == "" || strings.TrimSpace(node.AgentSlug) == "" {
			return nil, fmt.Errorf("workflow node requires id and agentSlug")
		}
		if seen[node.ID] {
			return nil, fmt.Errorf("duplicate workflow node id: %s", node.ID)
		}
		// Linear iteration is the execution order: parents must come first.
		for _, parent := range node.Parents {
			if !seen[parent] {
				return nil, fmt.Errorf("workflow node %s references parent %s that does not precede it", node.ID, parent)
			}
		}
		seen[node.ID] = true
	}

	now := time.Now()
	workflow := &domain.Workflow{
		WorkflowID:  req.WorkflowID,
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if workflow.WorkflowID == "" {
		workflow.WorkflowID = newID("wf")
	} else if existing, err := s.store.GetWorkflow(ctx, workflow.WorkflowID); err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	} else if existing != nil {
		workflow.CreatedAt = existing.CreatedAt
	}

	if err := s.store.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}
	return workflow, nil
}

// GetWorkflow retrieves a workflow by ID.
func (s *Service) GetWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error) {
	workflow, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if workflow == nil {
		return nil, fmt.Errorf("Workflow not found: %s", workflowID)
	}
	return workflow, nil
}

// ListWorkflows lists all workflows.
func (s *Service) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	workflows, err := s.store.ListWorkflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return workflows, nil
}

// DeleteWorkflow removes a workflow.
func (s *Service) DeleteWorkflow(ctx context.Context, workflowID string) error {
	workflow, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to get workflow: %w", err)
	}
	if workflow == nil {
		return fmt.Errorf("Workflow not found: %s", workflowID)
	}
	return s.store.DeleteWorkflow(ctx, workflowID)
}

// WorkflowNodeResult reports one executed node of a workflow run.
type WorkflowNodeResult struct {
	NodeID    string           `json:"nodeId"`
	AgentSlug string           `json:"agentSlug"`
	RunID     string           `json:"runId"`
	Status    domain.RunStatus `json:"status"`
	Output    json.RawMessage  `json:"output,omitempty"`
}

// RunWorkflow evaluates a workflow's nodes in persisted order. Every declared
// parent must have completed successfully before a node runs; the first
// missing parent output aborts the whole workflow.
func (s *Service) RunWorkflow(ctx context.Context, workflowID, sessionID, userMessage string) ([]WorkflowNodeResult, json.RawMessage, error) {
	workflow, err := s.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, nil, err
	}

	outputs := map[string]json.RawMessage{}
	results := make([]WorkflowNodeResult, 0, len(workflow.Nodes))
	var finalOutput json.RawMessage

	for _, node := range workflow.Nodes {
		parentOutputs := map[string]json.RawMessage{}
		for _, parent := range node.Parents {
			out, ok := outputs[parent]
			if !ok {
				return nil, nil, fmt.Errorf("Parent outputs missing")
			}
			parentOutputs[parent] = out
		}

		nodeContext, err := json.Marshal(map[string]interface{}{
			"parentOutputs":       parentOutputs,
			"workflowUserMessage": userMessage,
			"nodeLabel":           node.Label,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal node context: %w", err)
		}

		message := workflowContinueMessage
		if node.IncludeUserPrompt {
			message = userMessage
		}

		runID, err := s.StartRun(ctx, StartRunRequest{
			SessionID:   sessionID,
			UserMessage: message,
			AgentSlug:   node.AgentSlug,
			Context:     nodeContext,
		})
		if err != nil {
			return nil, nil, err
		}

		run, err := s.GetRun(ctx, runID)
		if err != nil {
			return nil, nil, err
		}

		result := WorkflowNodeResult{
			NodeID:    node.ID,
			AgentSlug: node.AgentSlug,
			RunID:     runID,
			Status:    run.Status,
		}
		if run.Status == domain.RunStatusSucceeded && run.Output != nil {
			result.Output = run.Output.Result
			outputs[node.ID] = run.Output.Result
		}
		results = append(results, result)
		finalOutput = result.Output
	}

	return results, finalOutput, nil
}
