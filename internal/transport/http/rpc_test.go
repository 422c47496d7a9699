package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/planweave/internal/adapter/llm"
	"github.com/xiaot623/planweave/internal/config"
	"github.com/xiaot623/planweave/internal/domain"
	"github.com/xiaot623/planweave/internal/repository"
	"github.com/xiaot623/planweave/internal/service"
	"github.com/xiaot623/planweave/policy"
)

func newTestHandler(t *testing.T) (*Handler, *service.Service) {
	t.Helper()
	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	cfg := &config.Config{
		Port:                 4000,
		ModelName:            "gpt-4o",
		MaxDepth:             2,
		MaxChildren:          3,
		RouterIndexLimit:     50,
		SpecialistIndexLimit: 50,
		MainRouterSlug:       "main-router",
		MainRouterName:       "Main Router",
	}
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}
	svc := service.New(db, llm.NewMockCaller(), cfg, engine)
	return NewHandler(svc), svc
}

func postRPC(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, rpcResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.RPC(c))

	var resp rpcResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestRPCMalformedEnvelope(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, _ := postRPC(t, h, `{"jsonrpc":"1.0","id":1,"method":"session.create"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = postRPC(t, h, `not json at all`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = postRPC(t, h, `{"jsonrpc":"2.0","id":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRPCUnknownMethod(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, resp := postRPC(t, h, `{"jsonrpc":"2.0","id":1,"method":"nope.nothing","params":{}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRPCSessionLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	_, resp := postRPC(t, h, `{"jsonrpc":"2.0","id":1,"method":"session.create","params":{"title":"demo"}}`)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	sessionID := result["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	_, resp = postRPC(t, h, `{"jsonrpc":"2.0","id":2,"method":"session.list","params":{}}`)
	require.Nil(t, resp.Error)
	sessions := resp.Result.(map[string]interface{})["sessions"].([]interface{})
	assert.Len(t, sessions, 1)

	_, resp = postRPC(t, h, `{"jsonrpc":"2.0","id":3,"method":"session.get","params":{"sessionId":"`+sessionID+`"}}`)
	require.Nil(t, resp.Error)
}

func TestRPCHandlerErrorCode(t *testing.T) {
	h, _ := newTestHandler(t)

	_, resp := postRPC(t, h, `{"jsonrpc":"2.0","id":1,"method":"run.get","params":{"runId":"missing"}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeHandlerError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Run not found")
}

func TestRPCRunStartAndEvents(t *testing.T) {
	h, _ := newTestHandler(t)

	_, resp := postRPC(t, h, `{"jsonrpc":"2.0","id":1,"method":"session.create","params":{}}`)
	require.Nil(t, resp.Error)
	sessionID := resp.Result.(map[string]interface{})["sessionId"].(string)

	_, resp = postRPC(t, h, `{"jsonrpc":"2.0","id":2,"method":"run.start","params":{"sessionId":"`+sessionID+`","userMessage":"final only: hi"}}`)
	require.Nil(t, resp.Error)
	runID := resp.Result.(map[string]interface{})["runId"].(string)
	require.NotEmpty(t, runID)

	_, resp = postRPC(t, h, `{"jsonrpc":"2.0","id":3,"method":"run.get","params":{"runId":"`+runID+`"}}`)
	require.Nil(t, resp.Error)
	run := resp.Result.(map[string]interface{})["run"].(map[string]interface{})
	assert.Equal(t, string(domain.RunStatusSucceeded), run["status"])

	_, resp = postRPC(t, h, `{"jsonrpc":"2.0","id":4,"method":"run.events","params":{"runId":"`+runID+`"}}`)
	require.Nil(t, resp.Error)
	eventsResult := resp.Result.(map[string]interface{})
	events := eventsResult["events"].([]interface{})
	assert.Len(t, events, 5)
	assert.Equal(t, float64(5), eventsResult["nextSeq"])

	_, resp = postRPC(t, h, `{"jsonrpc":"2.0","id":5,"method":"run.tree","params":{"sessionId":"`+sessionID+`"}}`)
	require.Nil(t, resp.Error)
	runs := resp.Result.(map[string]interface{})["runs"].([]interface{})
	require.Len(t, runs, 1)
	entry := runs[0].(map[string]interface{})
	assert.Equal(t, "bootstrap", entry["agentSlug"])
}

func TestWellKnownAgentCard(t *testing.T) {
	e := echo.New()
	h, svc := newTestHandler(t)
	ctx := context.Background()

	// Missing slug → 400.
	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent-card.json", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.AgentCard(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown agent → 404.
	req = httptest.NewRequest(http.MethodGet, "/.well-known/agent-card.json?slug=nope", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, h.AgentCard(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Spawned agents carry a card.
	_, err := svc.ResolveAgentSpec(ctx, domain.AgentSpec{
		Slug:         "carded",
		Name:         "Carded",
		SystemPrompt: "You have a card.",
	}, domain.AgentOrigin{}, domain.CreatedByUser)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/.well-known/agent-card.json?slug=carded", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, h.AgentCard(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var card map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.Equal(t, "Carded", card["name"])
	assert.NotEmpty(t, card["protocolVersion"])
}
