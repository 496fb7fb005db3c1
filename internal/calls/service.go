package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"homeservices-platform/internal/notify"
)

var (
	ErrValidation        = errors.New("calls: validation failed")
	ErrInvalidTransition = errors.New("calls: invalid status transition")
)

// Broadcaster delivers a realtime event to every live connection of a user.
// It reports how many connections received the event.
type Broadcaster interface {
	BroadcastToUser(userID, event string, payload any) int
}

// Notifier enqueues a notification envelope for background dispatch.
// Submit must not block; it reports whether the envelope was accepted.
type Notifier interface {
	Submit(env notify.Envelope) bool
}

// Auditor records rejected transitions for later inspection.
type Auditor interface {
	TransitionRejected(ctx context.Context, callID string, from, to CallStatus)
}

// Reporter receives calls that reached a terminal state, for aggregation.
type Reporter interface {
	CallEnded(ctx context.Context, c Call)
}

const eventCallStatusChanged = "call_status_changed"

// Service owns the call lifecycle. Transitions for a given call are
// serialized through a per-call lock, so of two racing conflicting
// transitions exactly one wins and the other observes the new state.
type Service struct {
	repo     Repository
	rt       Broadcaster
	notifier Notifier
	auditor  Auditor
	reporter Reporter
	log      *slog.Logger
	clock    func() time.Time

	mu    sync.Mutex
	locks map[string]*callLock
}

type callLock struct {
	sync.Mutex
	refs int
}

func NewService(repo Repository, rt Broadcaster, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		rt:       rt,
		notifier: notifier,
		log:      log,
		clock:    time.Now,
		locks:    make(map[string]*callLock),
	}
}

// SetAuditor is optional; without it rejected transitions are only logged.
func (s *Service) SetAuditor(a Auditor) { s.auditor = a }

// SetReporter is optional; with it every call that ends feeds the summaries.
func (s *Service) SetReporter(r Reporter) { s.reporter = r }

func (s *Service) lockCall(id string) *callLock {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &callLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()
	l.Lock()
	return l
}

func (s *Service) unlockCall(id string, l *callLock) {
	l.Unlock()
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
	s.mu.Unlock()
}

type InitiateInput struct {
	CustomerID       string
	ProviderID       string
	ServiceRequestID string
}

func (in InitiateInput) validate() error {
	if in.CustomerID == "" {
		return fmt.Errorf("%w: customer_id is required", ErrValidation)
	}
	if in.ProviderID == "" {
		return fmt.Errorf("%w: provider_id is required", ErrValidation)
	}
	if in.CustomerID == in.ProviderID {
		return fmt.Errorf("%w: customer and provider must differ", ErrValidation)
	}
	return nil
}

// Initiate creates a new call in status "initiated", announces it to both
// participants, and queues a call alert for the provider with live delivery
// first and SMS/push as fallbacks.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (Call, error) {
	if err := in.validate(); err != nil {
		return Call{}, err
	}

	now := s.clock().UTC()
	c := Call{
		CallID:           uuid.NewString(),
		CustomerID:       in.CustomerID,
		ProviderID:       in.ProviderID,
		ServiceRequestID: in.ServiceRequestID,
		Status:           CallStatusInitiated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Call{}, err
	}

	s.announce(c)
	s.notifyInitiated(c)

	s.log.Info("call initiated",
		"call_id", c.CallID,
		"customer_id", c.CustomerID,
		"provider_id", c.ProviderID,
	)
	return c, nil
}

// Transition moves a call to the next lifecycle status. Illegal moves return
// ErrInvalidTransition and leave the stored call untouched.
func (s *Service) Transition(ctx context.Context, callID string, next CallStatus) (Call, error) {
	if !IsValidStatus(next) {
		return Call{}, fmt.Errorf("%w: unknown status %q", ErrValidation, next)
	}

	l := s.lockCall(callID)
	defer s.unlockCall(callID, l)

	c, err := s.repo.FindByID(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	if !c.Status.CanTransitionTo(next) {
		if s.auditor != nil {
			s.auditor.TransitionRejected(ctx, callID, c.Status, next)
		}
		s.log.Warn("call transition rejected",
			"call_id", callID,
			"from", c.Status,
			"to", next,
		)
		return Call{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, next)
	}

	now := s.clock().UTC()
	if err := s.repo.UpdateStatus(ctx, callID, next, now); err != nil {
		return Call{}, err
	}
	c.Status = next
	c.UpdatedAt = now

	s.announce(c)
	if next == CallStatusCompleted {
		s.notifyCompleted(c)
	}
	if next.IsTerminal() && s.reporter != nil {
		s.reporter.CallEnded(ctx, c)
	}

	s.log.Info("call status changed", "call_id", callID, "status", next)
	return c, nil
}

// UpdateDetails records post-call facts (duration, recording). It is only
// meaningful once a call reached a terminal state.
func (s *Service) UpdateDetails(ctx context.Context, callID string, durationSeconds int, recordingURL string) (Call, error) {
	if durationSeconds < 0 {
		return Call{}, fmt.Errorf("%w: duration must not be negative", ErrValidation)
	}

	l := s.lockCall(callID)
	defer s.unlockCall(callID, l)

	c, err := s.repo.FindByID(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	now := s.clock().UTC()
	if err := s.repo.UpdateDetails(ctx, callID, durationSeconds, recordingURL, now); err != nil {
		return Call{}, err
	}
	c.DurationSeconds = durationSeconds
	if recordingURL != "" {
		c.RecordingURL = recordingURL
	}
	c.UpdatedAt = now
	return c, nil
}

func (s *Service) Get(ctx context.Context, callID string) (Call, error) {
	return s.repo.FindByID(ctx, callID)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Call, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return s.repo.List(ctx, f)
}

// announce pushes the status change to both participants' live connections.
// Delivery is best effort; offline participants catch up via notifications.
func (s *Service) announce(c Call) {
	if s.rt == nil {
		return
	}
	payload := map[string]any{
		"callId":     c.CallID,
		"status":     c.Status,
		"customerId": c.CustomerID,
		"providerId": c.ProviderID,
	}
	s.rt.BroadcastToUser(c.CustomerID, eventCallStatusChanged, payload)
	s.rt.BroadcastToUser(c.ProviderID, eventCallStatusChanged, payload)
}

func (s *Service) notifyInitiated(c Call) {
	if s.notifier == nil {
		return
	}
	env := notify.NewEnvelope(c.ProviderID, notify.TemplateCallAlert,
		[]notify.Channel{notify.ChannelLive, notify.ChannelSMS, notify.ChannelPush},
		map[string]any{
			"callId":     c.CallID,
			"customerId": c.CustomerID,
		})
	if !s.notifier.Submit(env) {
		s.log.Warn("call alert dropped", "call_id", c.CallID, "recipient", c.ProviderID)
	}
}

func (s *Service) notifyCompleted(c Call) {
	if s.notifier == nil {
		return
	}
	payload := map[string]any{
		"callId":          c.CallID,
		"durationSeconds": c.DurationSeconds,
	}
	for _, recipient := range []string{c.CustomerID, c.ProviderID} {
		env := notify.NewEnvelope(recipient, notify.TemplateCallSummary,
			[]notify.Channel{notify.ChannelLive, notify.ChannelEmail},
			payload)
		if !s.notifier.Submit(env) {
			s.log.Warn("call summary dropped", "call_id", c.CallID, "recipient", recipient)
		}
	}
}
