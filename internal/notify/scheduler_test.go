package notify

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	envs []Envelope

	block chan struct{} // when set, Submit waits until closed
}

func (s *recordingSubmitter) Submit(env Envelope) bool {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envs = append(s.envs, env)
	return true
}

func (s *recordingSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.envs)
}

func TestSchedule_PastTimeDispatchesExactlyOnce(t *testing.T) {
	sub := &recordingSubmitter{}
	store := NewMemoryDelayStore()
	s := NewScheduler(store, sub, time.Second, nil)

	now := time.Unix(1700000000, 0).UTC()
	s.clock = func() time.Time { return now }

	env := NewEnvelope("u1", TemplateMessageAlert, []Channel{ChannelEmail}, nil)
	if err := s.Schedule(context.Background(), env, now.Add(-time.Minute)); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if sub.count() != 1 {
		t.Fatalf("expected exactly one immediate dispatch, got %d", sub.count())
	}
	if store.Len() != 0 {
		t.Fatalf("expected nothing persisted for past time, got %d", store.Len())
	}
}

func TestSchedule_FutureNotDispatchedBeforeDue(t *testing.T) {
	sub := &recordingSubmitter{}
	store := NewMemoryDelayStore()
	s := NewScheduler(store, sub, time.Second, nil)

	now := time.Unix(1700000000, 0).UTC()
	s.clock = func() time.Time { return now }

	env := NewEnvelope("u1", TemplateMessageAlert, []Channel{ChannelEmail}, nil)
	due := now.Add(10 * time.Minute)
	if err := s.Schedule(context.Background(), env, due); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if sub.count() != 0 {
		t.Fatalf("expected no dispatch before due time")
	}

	// Sweep just before due: nothing.
	s.clock = func() time.Time { return due.Add(-time.Second) }
	if n, err := s.Sweep(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected empty sweep before due, got n=%d err=%v", n, err)
	}

	// Sweep at/after due: exactly one.
	s.clock = func() time.Time { return due }
	if n, err := s.Sweep(context.Background()); err != nil || n != 1 {
		t.Fatalf("expected one dispatch at due, got n=%d err=%v", n, err)
	}
	if sub.count() != 1 {
		t.Fatalf("expected one submitted envelope, got %d", sub.count())
	}

	// A later sweep must not re-dispatch.
	if n, err := s.Sweep(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected no re-dispatch, got n=%d err=%v", n, err)
	}
}

func TestSweep_SkipsWhileRunning(t *testing.T) {
	sub := &recordingSubmitter{block: make(chan struct{})}
	store := NewMemoryDelayStore()
	s := NewScheduler(store, sub, time.Second, nil)

	now := time.Unix(1700000000, 0).UTC()
	s.clock = func() time.Time { return now }

	env := NewEnvelope("u1", TemplateMessageAlert, []Channel{ChannelEmail}, nil)
	if err := store.Put(context.Background(), env.ID, now.Add(-time.Minute), env); err != nil {
		t.Fatalf("put: %v", err)
	}

	done := make(chan int)
	go func() {
		n, _ := s.Sweep(context.Background())
		done <- n
	}()

	// Wait until the first sweep is blocked inside Submit.
	deadline := time.After(2 * time.Second)
	for !s.sweeping.Load() {
		select {
		case <-deadline:
			t.Fatalf("first sweep never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// Overlapping sweep is skipped, not queued.
	if n, err := s.Sweep(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected overlapping sweep to be skipped, got n=%d err=%v", n, err)
	}

	close(sub.block)
	if n := <-done; n != 1 {
		t.Fatalf("expected first sweep to dispatch one, got %d", n)
	}
}

func TestSchedule_Cancel(t *testing.T) {
	sub := &recordingSubmitter{}
	store := NewMemoryDelayStore()
	s := NewScheduler(store, sub, time.Second, nil)

	now := time.Unix(1700000000, 0).UTC()
	s.clock = func() time.Time { return now }

	env := NewEnvelope("u1", TemplateMessageAlert, []Channel{ChannelEmail}, nil)
	if err := s.Schedule(context.Background(), env, now.Add(time.Minute)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := s.Cancel(context.Background(), env.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	s.clock = func() time.Time { return now.Add(2 * time.Minute) }
	if n, err := s.Sweep(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected nothing after cancel, got n=%d err=%v", n, err)
	}
}
