package service

import (
	"context"
	"testing"

	"github.com/xiaot623/planweave/internal/adapter/llm"
	"github.com/xiaot623/planweave/internal/config"
	"github.com/xiaot623/planweave/internal/repository"
	"github.com/xiaot623/planweave/policy"
)

// fakeCaller replays a scripted sequence of model responses; the last one
// repeats once the script is exhausted.
type fakeCaller struct {
	responses []string
	calls     int
}

func (f *fakeCaller) Call(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return &llm.Response{Content: f.responses[idx]}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                 4000,
		ModelName:            "gpt-4o",
		MaxDepth:             2,
		MaxChildren:          3,
		RouterIndexLimit:     50,
		SpecialistIndexLimit: 50,
		MainRouterSlug:       "main-router",
		MainRouterName:       "Main Router",
	}
}

func newTestService(t *testing.T, caller llm.Caller) *Service {
	t.Helper()
	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}
	if caller == nil {
		caller = llm.NewMockCaller()
	}
	return New(db, caller, testConfig(), engine)
}

func mustSession(t *testing.T, svc *Service) string {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), "test")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return session.SessionID
}
