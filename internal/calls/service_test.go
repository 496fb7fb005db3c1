package calls

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"homeservices-platform/internal/notify"
)

type stubBroadcaster struct {
	mu     sync.Mutex
	events []broadcastCall
}

type broadcastCall struct {
	userID string
	event  string
}

func (b *stubBroadcaster) BroadcastToUser(userID, event string, payload any) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastCall{userID: userID, event: event})
	return 1
}

func (b *stubBroadcaster) countFor(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.userID == userID {
			n++
		}
	}
	return n
}

type stubNotifier struct {
	mu   sync.Mutex
	envs []notify.Envelope
}

func (n *stubNotifier) Submit(env notify.Envelope) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.envs = append(n.envs, env)
	return true
}

func (n *stubNotifier) submitted() []notify.Envelope {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Envelope(nil), n.envs...)
}

func newTestService() (*Service, *stubBroadcaster, *stubNotifier) {
	rt := &stubBroadcaster{}
	nt := &stubNotifier{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(NewMemoryRepo(), rt, nt, log)
	svc.clock = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, rt, nt
}

func TestInitiateCreatesAndAlerts(t *testing.T) {
	svc, rt, nt := newTestService()

	c, err := svc.Initiate(context.Background(), InitiateInput{
		CustomerID:       "cust-1",
		ProviderID:       "prov-1",
		ServiceRequestID: "req-9",
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if c.Status != CallStatusInitiated {
		t.Fatalf("status = %s, want initiated", c.Status)
	}
	if c.CallID == "" {
		t.Fatal("expected a call id")
	}

	// Both participants hear about the new call.
	if rt.countFor("cust-1") != 1 || rt.countFor("prov-1") != 1 {
		t.Fatalf("expected one broadcast per participant, got %+v", rt.events)
	}

	// Provider gets a call alert with live first and SMS/push fallback.
	envs := nt.submitted()
	if len(envs) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(envs))
	}
	env := envs[0]
	if env.RecipientID != "prov-1" || env.TemplateID != notify.TemplateCallAlert {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	wantOrder := []notify.Channel{notify.ChannelLive, notify.ChannelSMS, notify.ChannelPush}
	if len(env.ChannelOrder) != len(wantOrder) {
		t.Fatalf("channel order = %v", env.ChannelOrder)
	}
	for i, ch := range wantOrder {
		if env.ChannelOrder[i] != ch {
			t.Fatalf("channel order = %v, want %v", env.ChannelOrder, wantOrder)
		}
	}
}

func TestInitiateValidation(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Initiate(context.Background(), InitiateInput{ProviderID: "prov-1"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("missing customer: err = %v", err)
	}
	_, err = svc.Initiate(context.Background(), InitiateInput{CustomerID: "u1", ProviderID: "u1"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("self call: err = %v", err)
	}
}

func TestTransitionHappyPath(t *testing.T) {
	svc, rt, _ := newTestService()
	ctx := context.Background()

	c, err := svc.Initiate(ctx, InitiateInput{CustomerID: "cust-1", ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	for _, next := range []CallStatus{CallStatusRinging, CallStatusInProgress, CallStatusCompleted} {
		c, err = svc.Transition(ctx, c.CallID, next)
		if err != nil {
			t.Fatalf("Transition(%s): %v", next, err)
		}
		if c.Status != next {
			t.Fatalf("status = %s, want %s", c.Status, next)
		}
	}

	// Initiate + 3 transitions, each announced to both sides.
	if rt.countFor("cust-1") != 4 || rt.countFor("prov-1") != 4 {
		t.Fatalf("broadcast counts: cust=%d prov=%d", rt.countFor("cust-1"), rt.countFor("prov-1"))
	}
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.Initiate(ctx, InitiateInput{CustomerID: "cust-1", ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	_, err = svc.Transition(ctx, c.CallID, CallStatusCompleted)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	// Stored state must be untouched.
	got, err := svc.Get(ctx, c.CallID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != CallStatusInitiated {
		t.Fatalf("status mutated to %s", got.Status)
	}
}

func TestTransitionUnknownStatusAndMissingCall(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Transition(ctx, "nope", CallStatus("busy")); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status: err = %v", err)
	}
	if _, err := svc.Transition(ctx, "nope", CallStatusRinging); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing call: err = %v", err)
	}
}

func TestRacingTransitionsExactlyOneWins(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.Initiate(ctx, InitiateInput{CustomerID: "cust-1", ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if _, err := svc.Transition(ctx, c.CallID, CallStatusRinging); err != nil {
		t.Fatalf("to ringing: %v", err)
	}
	if _, err := svc.Transition(ctx, c.CallID, CallStatusInProgress); err != nil {
		t.Fatalf("to in_progress: %v", err)
	}

	// From in_progress both completed and failed are individually legal, but
	// once one lands the call is terminal and the other must lose.
	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.Transition(ctx, c.CallID, CallStatusCompleted)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = svc.Transition(ctx, c.CallID, CallStatusFailed)
	}()
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("loser got unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1 (errs: %v)", wins, errs)
	}

	got, err := svc.Get(ctx, c.CallID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Status.IsTerminal() {
		t.Fatalf("final status %s is not terminal", got.Status)
	}
}

func TestCompletedSendsSummaryToBothSides(t *testing.T) {
	svc, _, nt := newTestService()
	ctx := context.Background()

	c, err := svc.Initiate(ctx, InitiateInput{CustomerID: "cust-1", ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	for _, next := range []CallStatus{CallStatusRinging, CallStatusInProgress, CallStatusCompleted} {
		if _, err := svc.Transition(ctx, c.CallID, next); err != nil {
			t.Fatalf("Transition(%s): %v", next, err)
		}
	}

	var summaries []notify.Envelope
	for _, env := range nt.submitted() {
		if env.TemplateID == notify.TemplateCallSummary {
			summaries = append(summaries, env)
		}
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	recipients := map[string]bool{}
	for _, env := range summaries {
		recipients[env.RecipientID] = true
	}
	if !recipients["cust-1"] || !recipients["prov-1"] {
		t.Fatalf("summary recipients = %v", recipients)
	}
}

type stubReporter struct {
	mu    sync.Mutex
	ended []Call
}

func (r *stubReporter) CallEnded(ctx context.Context, c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, c)
}

func (r *stubReporter) endedCalls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.ended...)
}

func TestTerminalTransitionFeedsReporter(t *testing.T) {
	svc, _, _ := newTestService()
	rep := &stubReporter{}
	svc.SetReporter(rep)
	ctx := context.Background()

	c, err := svc.Initiate(ctx, InitiateInput{CustomerID: "cust-1", ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	for _, next := range []CallStatus{CallStatusRinging, CallStatusInProgress} {
		if _, err := svc.Transition(ctx, c.CallID, next); err != nil {
			t.Fatalf("Transition(%s): %v", next, err)
		}
	}
	// Non-terminal transitions must not reach the reporter.
	if got := rep.endedCalls(); len(got) != 0 {
		t.Fatalf("reporter fed before terminal state: %+v", got)
	}

	if _, err := svc.Transition(ctx, c.CallID, CallStatusCompleted); err != nil {
		t.Fatalf("Transition(completed): %v", err)
	}
	got := rep.endedCalls()
	if len(got) != 1 {
		t.Fatalf("ended calls = %d, want 1", len(got))
	}
	if got[0].CallID != c.CallID || got[0].Status != CallStatusCompleted {
		t.Fatalf("unexpected ended call: %+v", got[0])
	}

	// Another call that fails is reported too.
	c2, err := svc.Initiate(ctx, InitiateInput{CustomerID: "cust-2", ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if _, err := svc.Transition(ctx, c2.CallID, CallStatusFailed); err != nil {
		t.Fatalf("Transition(failed): %v", err)
	}
	if got := rep.endedCalls(); len(got) != 2 || got[1].Status != CallStatusFailed {
		t.Fatalf("failed call not reported: %+v", got)
	}
}

func TestUpdateDetails(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.Initiate(ctx, InitiateInput{CustomerID: "cust-1", ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if _, err := svc.UpdateDetails(ctx, c.CallID, -5, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative duration: err = %v", err)
	}

	got, err := svc.UpdateDetails(ctx, c.CallID, 420, "https://recordings.example.com/abc.mp3")
	if err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}
	if got.DurationSeconds != 420 || got.RecordingURL == "" {
		t.Fatalf("details not applied: %+v", got)
	}

	// Empty recording URL keeps the previous one.
	got, err = svc.UpdateDetails(ctx, c.CallID, 421, "")
	if err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}
	if got.RecordingURL != "https://recordings.example.com/abc.mp3" {
		t.Fatalf("recording url overwritten: %q", got.RecordingURL)
	}
}

func TestListFilters(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Initiate(ctx, InitiateInput{CustomerID: "cust-1", ProviderID: "prov-1"}); err != nil {
			t.Fatalf("Initiate: %v", err)
		}
	}
	if _, err := svc.Initiate(ctx, InitiateInput{CustomerID: "cust-2", ProviderID: "prov-1"}); err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	out, err := svc.List(ctx, ListFilter{CustomerID: "cust-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}

	out, err = svc.List(ctx, ListFilter{ProviderID: "prov-1", Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
}
