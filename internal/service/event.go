package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xiaot623/planweave/internal/domain"
)

// Emit appends the next event for a run, allocating seq = current max + 1.
// There is at most one writer per run at a time, so the read-then-write is
// safe; the unique (run_id, seq) index still backs the invariant and a
// duplicate-key failure here signals a protocol bug.
func (s *Service) Emit(ctx context.Context, runID string, eventType domain.EventType, payload interface{}) (int64, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	maxSeq, err := s.store.MaxEventSeq(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to read max event seq: %w", err)
	}

	event := &domain.Event{
		EventID: newID("evt"),
		RunID:   runID,
		Seq:     maxSeq + 1,
		Ts:      time.Now().UnixMilli(),
		Type:    eventType,
		Payload: payloadBytes,
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return 0, fmt.Errorf("failed to append event: %w", err)
	}
	return event.Seq, nil
}

// GetRunEvents returns a run's events with seq > sinceSeq and the next
// cursor value.
func (s *Service) GetRunEvents(ctx context.Context, runID string, sinceSeq int64) ([]domain.Event, int64, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, 0, fmt.Errorf("Run not found: %s", runID)
	}

	events, err := s.store.GetEventsSince(ctx, runID, sinceSeq)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get events: %w", err)
	}
	nextSeq := sinceSeq
	if len(events) > 0 {
		nextSeq = events[len(events)-1].Seq
	}
	return events, nextSeq, nil
}
