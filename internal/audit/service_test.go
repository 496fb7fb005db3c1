package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"homeservices-platform/internal/calls"
)

func newTestAudit() (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func TestAppendRequiresType(t *testing.T) {
	svc, _ := newTestAudit()

	if err := svc.Append(context.Background(), Event{}); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestAppendFillsIDAndTimestamp(t *testing.T) {
	svc, repo := newTestAudit()

	if err := svc.Append(context.Background(), Event{Type: EventTypeConnectionOpened}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("id/timestamp not filled: %+v", evs[0])
	}
}

func TestTransitionRejected(t *testing.T) {
	svc, repo := newTestAudit()

	svc.TransitionRejected(context.Background(), "call-1", calls.CallStatusCompleted, calls.CallStatusRinging)

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.Type != EventTypeTransitionRejected || e.CallID != "call-1" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestDeliveryFailed(t *testing.T) {
	svc, repo := newTestAudit()

	svc.DeliveryFailed(context.Background(), "env-1", "sms", "gateway timeout")

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].EnvelopeID != "env-1" || evs[0].Type != EventTypeDeliveryFailed {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
}
