package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaot623/planweave/internal/domain"
)

const (
	sessionListDefault = 50
	sessionListMax     = 200
)

// CreateSession creates a new session.
func (s *Service) CreateSession(ctx context.Context, title string) (*domain.Session, error) {
	session := &domain.Session{
		SessionID: newID("sess"),
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("Session not found: %s", sessionID)
	}
	return session, nil
}

// ListSessions lists recent sessions, clamping limit to 1..200.
func (s *Service) ListSessions(ctx context.Context, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = sessionListDefault
	}
	if limit > sessionListMax {
		limit = sessionListMax
	}
	sessions, err := s.store.ListSessions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
