package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/planweave/internal/domain"
)

func echoNodes() []domain.WorkflowNode {
	return []domain.WorkflowNode{
		{ID: "draft", AgentSlug: "demo-echo", Label: "Draft", IncludeUserPrompt: true},
		{ID: "refine", AgentSlug: "demo-echo", Label: "Refine", Parents: []string{"draft"}},
	}
}

func TestSaveWorkflowValidation(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.SaveWorkflow(ctx, SaveWorkflowRequest{Name: "", Nodes: echoNodes()})
	require.Error(t, err)

	_, err = svc.SaveWorkflow(ctx, SaveWorkflowRequest{Name: "demo"})
	require.Error(t, err)

	// A parent must precede its child in the persisted order.
	backwards := []domain.WorkflowNode{
		{ID: "refine", AgentSlug: "demo-echo", Parents: []string{"draft"}},
		{ID: "draft", AgentSlug: "demo-echo"},
	}
	_, err = svc.SaveWorkflow(ctx, SaveWorkflowRequest{Name: "demo", Nodes: backwards})
	require.Error(t, err)

	wf, err := svc.SaveWorkflow(ctx, SaveWorkflowRequest{Name: "demo", Nodes: echoNodes()})
	require.NoError(t, err)
	assert.NotEmpty(t, wf.WorkflowID)

	// Saving again with the same ID replaces the definition.
	updated, err := svc.SaveWorkflow(ctx, SaveWorkflowRequest{
		WorkflowID: wf.WorkflowID,
		Name:       "demo v2",
		Nodes:      echoNodes(),
	})
	require.NoError(t, err)
	assert.Equal(t, wf.WorkflowID, updated.WorkflowID)

	listed, err := svc.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "demo v2", listed[0].Name)
}

func TestRunWorkflowLinear(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	sessionID := mustSession(t, svc)

	_, err := svc.ResolveAgentSpec(ctx, echoSpec(), domain.AgentOrigin{}, domain.CreatedByUser)
	require.NoError(t, err)

	wf, err := svc.SaveWorkflow(ctx, SaveWorkflowRequest{Name: "demo", Nodes: echoNodes()})
	require.NoError(t, err)

	results, finalOutput, err := svc.RunWorkflow(ctx, wf.WorkflowID, sessionID, "final only: start")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "draft", results[0].NodeID)
	assert.Equal(t, domain.RunStatusSucceeded, results[0].Status)
	assert.Equal(t, domain.RunStatusSucceeded, results[1].Status)
	assert.Equal(t, results[1].Output, json.RawMessage(finalOutput))

	// The first node carries the workflow user message; the second gets the
	// continuation prompt and the parent outputs in context.
	firstRun, err := svc.GetRun(ctx, results[0].RunID)
	require.NoError(t, err)
	assert.Equal(t, "final only: start", firstRun.Input.UserMessage)

	secondRun, err := svc.GetRun(ctx, results[1].RunID)
	require.NoError(t, err)
	assert.Equal(t, workflowContinueMessage, secondRun.Input.UserMessage)

	var nodeCtx struct {
		ParentOutputs       map[string]json.RawMessage `json:"parentOutputs"`
		WorkflowUserMessage string                     `json:"workflowUserMessage"`
		NodeLabel           string                     `json:"nodeLabel"`
	}
	require.NoError(t, json.Unmarshal(secondRun.Input.Context, &nodeCtx))
	assert.Equal(t, "final only: start", nodeCtx.WorkflowUserMessage)
	assert.Equal(t, "Refine", nodeCtx.NodeLabel)
	assert.Contains(t, nodeCtx.ParentOutputs, "draft")
}

func TestRunWorkflowMissingParentAborts(t *testing.T) {
	// The first node's model output is not a valid envelope, so the node
	// fails and its dependent cannot start.
	svc := newTestService(t, &fakeCaller{responses: []string{`not json`}})
	ctx := context.Background()
	sessionID := mustSession(t, svc)

	wf, err := svc.SaveWorkflow(ctx, SaveWorkflowRequest{Name: "demo", Nodes: []domain.WorkflowNode{
		{ID: "a", AgentSlug: "missing-agent", IncludeUserPrompt: true},
		{ID: "b", AgentSlug: "missing-agent", Parents: []string{"a"}},
	}})
	require.NoError(t, err)

	_, _, err = svc.RunWorkflow(ctx, wf.WorkflowID, sessionID, "go")
	require.Error(t, err)
	assert.Equal(t, "Parent outputs missing", err.Error())
}
