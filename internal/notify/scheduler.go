package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// DelayStore persists future-dated envelopes keyed and sorted by due time.
//
// A plain expiry-only store is insufficient here: TTL expiry deletes a key,
// it does not call anyone back with the payload. Implementations must support
// an explicit "pull everything due <= now" query that atomically removes what
// it returns (so two overlapping sweeps, or two processes, never dispatch the
// same envelope twice).
type DelayStore interface {
	Put(ctx context.Context, key string, dueAt time.Time, env Envelope) error
	PullDue(ctx context.Context, now time.Time) ([]Envelope, error)
	Delete(ctx context.Context, key string) error
}

// Submitter hands an envelope to the background dispatch pool.
type Submitter interface {
	Submit(env Envelope) bool
}

var ErrSchedulerStore = errors.New("notify: delay store not configured")

// Scheduler delivers future-dated envelopes. There is no exact-time
// guarantee; a due envelope is dispatched within one sweep interval of its
// due time.
type Scheduler struct {
	store    DelayStore
	submit   Submitter
	interval time.Duration

	clock    func() time.Time
	log      *slog.Logger
	sweeping atomic.Bool
}

func NewScheduler(store DelayStore, submit Submitter, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		store:    store,
		submit:   submit,
		interval: interval,
		clock:    time.Now,
		log:      log,
	}
}

// Schedule dispatches immediately when deliverAt is now or past (exactly one
// submission), otherwise persists the envelope for a later sweep.
func (s *Scheduler) Schedule(ctx context.Context, env Envelope, deliverAt time.Time) error {
	now := s.clock().UTC()
	if !deliverAt.After(now) {
		s.submit.Submit(env)
		return nil
	}

	if s.store == nil {
		return ErrSchedulerStore
	}
	env.ScheduledFor = deliverAt.UTC()
	return s.store.Put(ctx, env.ID, deliverAt, env)
}

// Cancel removes a scheduled envelope that has not been swept yet.
func (s *Scheduler) Cancel(ctx context.Context, envelopeID string) error {
	if s.store == nil {
		return ErrSchedulerStore
	}
	return s.store.Delete(ctx, envelopeID)
}

// Run drives the periodic sweep until ctx is cancelled. The sweep is a single
// task; a tick firing while the previous sweep still runs is skipped, never
// queued.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error("scheduler sweep failed", "err", err)
			}
		}
	}
}

// Sweep pulls and submits every due envelope. Returns the number submitted.
// Re-entrant calls are skipped while a sweep is in flight.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.sweeping.Store(false)

	if s.store == nil {
		return 0, ErrSchedulerStore
	}

	due, err := s.store.PullDue(ctx, s.clock().UTC())
	if err != nil {
		return 0, err
	}

	submitted := 0
	for _, env := range due {
		if s.submit.Submit(env) {
			submitted++
		}
	}
	if submitted > 0 {
		s.log.Debug("scheduler sweep dispatched", "count", submitted)
	}
	return submitted, nil
}
