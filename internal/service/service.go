// Package service implements the orchestration engine: session/agent/run
// operations, the recursive run executor, and the workflow runner.
package service

import (
	"github.com/google/uuid"
	"github.com/xiaot623/planweave/internal/adapter/llm"
	"github.com/xiaot623/planweave/internal/config"
	"github.com/xiaot623/planweave/internal/repository"
	"github.com/xiaot623/planweave/policy"
)

// Service wires the store, model caller, and delegation policy together.
type Service struct {
	store        store.Store
	caller       llm.Caller
	config       *config.Config
	policyEngine *policy.Engine
}

// New creates a new service.
func New(store store.Store, caller llm.Caller, cfg *config.Config, policyEngine *policy.Engine) *Service {
	return &Service{
		store:        store,
		caller:       caller,
		config:       cfg,
		policyEngine: policyEngine,
	}
}

// Store exposes the underlying store, mainly for tests and transports.
func (s *Service) Store() store.Store {
	return s.store
}

// newID builds a prefixed short identifier.
func newID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}
