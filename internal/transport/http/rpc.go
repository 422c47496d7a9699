package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/planweave/internal/domain"
	"github.com/xiaot623/planweave/internal/service"
)

// JSON-RPC error codes.
const (
	codeMethodNotFound = -32601
	codeHandlerError   = -32000
)

// Handler exposes the JSON-RPC surface and the well-known card endpoint.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/rpc", h.RPC)
	e.GET("/.well-known/agent-card.json", h.AgentCard)
	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// RPC dispatches a JSON-RPC 2.0 request. The run-executing methods block
// until the whole run tree terminates.
func (h *Handler) RPC(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read body"})
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil || req.JSONRPC != "2.0" || req.Method == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed JSON-RPC envelope"})
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	result, rpcErr := h.dispatch(c.Request().Context(), req.Method, req.Params)
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return c.JSON(http.StatusOK, resp)
}

// AgentCard serves an agent's card document.
// GET /.well-known/agent-card.json?slug=<slug>
func (h *Handler) AgentCard(c echo.Context) error {
	slug := c.QueryParam("slug")
	if slug == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "slug is required"})
	}
	detail, err := h.service.GetAgentDetail(c.Request().Context(), "", slug)
	if err != nil || detail.Agent == nil || len(detail.Agent.Metadata.Card) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent card not found"})
	}
	return c.JSONBlob(http.StatusOK, detail.Agent.Metadata.Card)
}

func (h *Handler) dispatch(ctx context.Context, method string, params json.RawMessage) (interface{}, *rpcError) {
	handler, ok := h.methods()[method]
	if !ok {
		return nil, &rpcError{Code: codeMethodNotFound, Message: "Method not found: " + method}
	}
	result, err := handler(ctx, params)
	if err != nil {
		return nil, &rpcError{Code: codeHandlerError, Message: err.Error()}
	}
	return result, nil
}

type methodFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

func (h *Handler) methods() map[string]methodFunc {
	return map[string]methodFunc{
		"session.create":         h.sessionCreate,
		"session.get":            h.sessionGet,
		"session.list":           h.sessionList,
		"agent.list":             h.agentList,
		"agent.get":              h.agentGet,
		"agent.version.get":      h.agentVersionGet,
		"agent.updatePrompt":     h.agentUpdatePrompt,
		"agent.setActiveVersion": h.agentSetActiveVersion,
		"run.start":              h.runStart,
		"run.get":                h.runGet,
		"run.events":             h.runEvents,
		"run.tree":               h.runTree,
		"workflow.save":          h.workflowSave,
		"workflow.list":          h.workflowList,
		"workflow.get":           h.workflowGet,
		"workflow.delete":        h.workflowDelete,
		"workflow.run":           h.workflowRun,
	}
}

// decodeParams tolerates an absent params object.
func decodeParams(params json.RawMessage, dest interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	return json.Unmarshal(params, dest)
}

func (h *Handler) sessionCreate(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Title string `json:"title"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	session, err := h.service.CreateSession(ctx, p.Title)
	if err != nil {
		return nil, err
	}
	return map[string]string{"sessionId": session.SessionID}, nil
}

func (h *Handler) sessionGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		SessionID string `json:"sessionId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	session, err := h.service.GetSession(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"session": session}, nil
}

func (h *Handler) sessionList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Limit int `json:"limit"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	sessions, err := h.service.ListSessions(ctx, p.Limit)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return map[string]interface{}{"sessions": sessions}, nil
}

func (h *Handler) agentList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		IncludeHidden bool `json:"includeHidden"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	agents, err := h.service.ListAgents(ctx, p.IncludeHidden)
	if err != nil {
		return nil, err
	}
	if agents == nil {
		agents = []domain.Agent{}
	}
	return map[string]interface{}{"agents": agents}, nil
}

func (h *Handler) agentGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		AgentID string `json:"agentId"`
		Slug    string `json:"slug"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	detail, err := h.service.GetAgentDetail(ctx, p.AgentID, p.Slug)
	if err != nil {
		return nil, err
	}
	if detail.Versions == nil {
		detail.Versions = []domain.AgentVersion{}
	}
	return detail, nil
}

func (h *Handler) agentVersionGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		VersionID string `json:"versionId"`
		AgentID   string `json:"agentId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	version, err := h.service.GetAgentVersion(ctx, p.VersionID, p.AgentID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"version": version}, nil
}

func (h *Handler) agentUpdatePrompt(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		AgentID         string `json:"agentId"`
		NewSystemPrompt string `json:"newSystemPrompt"`
		Editor          string `json:"editor"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	version, err := h.service.UpdatePrompt(ctx, p.AgentID, p.NewSystemPrompt, p.Editor)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"agentVersionId": version.VersionID,
		"version":        version.Version,
	}, nil
}

func (h *Handler) agentSetActiveVersion(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		AgentID   string `json:"agentId"`
		VersionID string `json:"versionId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := h.service.SetActiveVersion(ctx, p.AgentID, p.VersionID); err != nil {
		return nil, err
	}
	return map[string]string{"activeVersionId": p.VersionID}, nil
}

func (h *Handler) runStart(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p service.StartRunRequest
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	runID, err := h.service.StartRun(ctx, p)
	if err != nil {
		return nil, err
	}
	return map[string]string{"runId": runID}, nil
}

func (h *Handler) runGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		RunID string `json:"runId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	run, err := h.service.GetRun(ctx, p.RunID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"run": run}, nil
}

func (h *Handler) runEvents(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		RunID    string `json:"runId"`
		SinceSeq int64  `json:"sinceSeq"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	events, nextSeq, err := h.service.GetRunEvents(ctx, p.RunID, p.SinceSeq)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.Event{}
	}
	return map[string]interface{}{"events": events, "nextSeq": nextSeq}, nil
}

func (h *Handler) runTree(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		SessionID string `json:"sessionId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	runs, err := h.service.RunTree(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"runs": runs}, nil
}

func (h *Handler) workflowSave(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p service.SaveWorkflowRequest
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	workflow, err := h.service.SaveWorkflow(ctx, p)
	if err != nil {
		return nil, err
	}
	return map[string]string{"workflowId": workflow.WorkflowID}, nil
}

func (h *Handler) workflowList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	workflows, err := h.service.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	if workflows == nil {
		workflows = []domain.Workflow{}
	}
	return map[string]interface{}{"workflows": workflows}, nil
}

func (h *Handler) workflowGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		WorkflowID string `json:"workflowId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	workflow, err := h.service.GetWorkflow(ctx, p.WorkflowID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"workflow": workflow}, nil
}

func (h *Handler) workflowDelete(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		WorkflowID string `json:"workflowId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := h.service.DeleteWorkflow(ctx, p.WorkflowID); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (h *Handler) workflowRun(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		WorkflowID  string `json:"workflowId"`
		SessionID   string `json:"sessionId"`
		UserMessage string `json:"userMessage"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	runs, finalOutput, err := h.service.RunWorkflow(ctx, p.WorkflowID, p.SessionID, p.UserMessage)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"runs": runs, "finalOutput": finalOutput}, nil
}
