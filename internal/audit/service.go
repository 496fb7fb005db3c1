package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"homeservices-platform/internal/calls"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end users.
// - Callers should treat audit logging as best-effort: helper methods swallow
//   repository errors after logging them.

type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) appendBestEffort(ctx context.Context, e Event) {
	if err := s.Append(ctx, e); err != nil {
		s.log.Error("audit append failed", "type", e.Type, "error", err)
	}
}

// TransitionRejected records an illegal call status transition attempt.
func (s *Service) TransitionRejected(ctx context.Context, callID string, from, to calls.CallStatus) {
	s.appendBestEffort(ctx, Event{
		Type:    EventTypeTransitionRejected,
		CallID:  callID,
		Message: fmt.Sprintf("rejected transition %s -> %s", from, to),
	})
}

// DeliveryFailed records a notification channel that exhausted its retries.
func (s *Service) DeliveryFailed(ctx context.Context, envelopeID, channel, reason string) {
	s.appendBestEffort(ctx, Event{
		Type:       EventTypeDeliveryFailed,
		EnvelopeID: envelopeID,
		Message:    fmt.Sprintf("channel %s failed: %s", channel, reason),
	})
}

// ConnectionOpened records an authenticated live connection.
func (s *Service) ConnectionOpened(ctx context.Context, connID, userID string) {
	s.appendBestEffort(ctx, Event{
		Type:        EventTypeConnectionOpened,
		ConnID:      connID,
		ActorUserID: userID,
	})
}

// ConnectionClosed records the end of a live connection.
func (s *Service) ConnectionClosed(ctx context.Context, connID, userID string) {
	s.appendBestEffort(ctx, Event{
		Type:        EventTypeConnectionClosed,
		ConnID:      connID,
		ActorUserID: userID,
	})
}
