package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"homeservices-platform/internal/auth"
	"homeservices-platform/internal/calls"
	"homeservices-platform/internal/notify"
	"homeservices-platform/internal/rbac"
)

// TokenVerifier checks an access token and returns its claims. Satisfied by
// *auth.Manager.
type TokenVerifier interface {
	Verify(tokenString string, expected auth.TokenType, now time.Time) (auth.Claims, error)
}

// CallStarter lets the event router kick off a call without owning the call
// lifecycle. Satisfied by *calls.Service.
type CallStarter interface {
	Initiate(ctx context.Context, in calls.InitiateInput) (calls.Call, error)
}

// Notifier enqueues a notification envelope for background dispatch.
type Notifier interface {
	Submit(env notify.Envelope) bool
}

// Auditor records the connection lifecycle in the internal audit trail.
// Best effort; implementations must not block the session path.
type Auditor interface {
	ConnectionOpened(ctx context.Context, connID, userID string)
	ConnectionClosed(ctx context.Context, connID, userID string)
}

// Service is the realtime core: it owns the registry and room state, and
// turns inbound events into state changes and fan-out.
type Service struct {
	registry *Registry
	rooms    *Rooms

	tokens   TokenVerifier
	calls    CallStarter
	notifier Notifier
	msgStore MessageStore
	limiter  ConnectionLimiter
	auditor  Auditor

	log   *slog.Logger
	clock func() time.Time
}

func NewService(tokens TokenVerifier, msgStore MessageStore, log *slog.Logger) *Service {
	rooms := NewRooms(log)
	return &Service{
		registry: NewRegistry(rooms),
		rooms:    rooms,
		tokens:   tokens,
		msgStore: msgStore,
		log:      log,
		clock:    time.Now,
	}
}

// SetCallStarter wires the call lifecycle in after construction; the calls
// service in turn broadcasts through this service.
func (s *Service) SetCallStarter(c CallStarter) { s.calls = c }

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetLimiter enables the per-user connection cap. Without it connections are
// unlimited.
func (s *Service) SetLimiter(l ConnectionLimiter) { s.limiter = l }

// SetAuditor is optional; without it the connection lifecycle is only logged.
func (s *Service) SetAuditor(a Auditor) { s.auditor = a }

// Registry exposes the connection registry for collaborators that need
// presence checks.
func (s *Service) Registry() *Registry { return s.registry }

// Unicast delivers an event to every live connection of a user. It reports
// whether at least one connection received it. Satisfies notify.LiveSender.
func (s *Service) Unicast(userID, event string, payload any) bool {
	return s.rooms.Unicast(userID, event, payload)
}

// BroadcastToUser fans an event out to all of a user's connections via the
// private room, returning the delivery count. Satisfies calls.Broadcaster.
func (s *Service) BroadcastToUser(userID, event string, payload any) int {
	return s.rooms.Broadcast(PrivateRoom(userID), event, payload)
}

// BroadcastToRole fans an event out to every connection of a role cohort.
func (s *Service) BroadcastToRole(role, event string, payload any) int {
	return s.rooms.Broadcast(RoleRoom(role), event, payload)
}

// Session is one transport connection's view of the service. Events for a
// session are handled sequentially by the transport's read loop; the session
// itself is not safe for concurrent HandleEvent calls.
type Session struct {
	svc    *Service
	handle Handle

	mu     sync.Mutex
	connID string // empty until authenticated
	userID string
	role   string
}

// HandleConnect starts a session for a freshly accepted transport connection.
// The connection stays anonymous until its authenticate event arrives.
func (s *Service) HandleConnect(h Handle) *Session {
	return &Session{svc: s, handle: h}
}

func (sess *Session) identity() (connID, userID, role string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.connID, sess.userID, sess.role
}

// Authenticated reports whether the session has completed authenticate.
func (sess *Session) Authenticated() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.connID != ""
}

// HandleEvent decodes and dispatches one inbound event. Any error is emitted
// back to this sender only, as an "error" event; nothing is broadcast.
func (sess *Session) HandleEvent(ctx context.Context, name string, data []byte) {
	ev, err := DecodeInbound(name, data)
	if err == nil {
		err = sess.dispatch(ctx, ev)
	}
	if err != nil {
		sess.emitError(name, err)
	}
}

// Close tears the session down: connection unregistered, rooms left, handle
// closed. Safe to call more than once.
func (sess *Session) Close() {
	sess.mu.Lock()
	connID := sess.connID
	userID := sess.userID
	sess.connID = ""
	sess.mu.Unlock()

	if connID != "" {
		sess.svc.registry.Unregister(connID)
		if sess.svc.limiter != nil {
			sess.svc.limiter.Release(context.Background(), userID)
		}
		if sess.svc.auditor != nil {
			sess.svc.auditor.ConnectionClosed(context.Background(), connID, userID)
		}
		sess.svc.log.Info("connection closed", "conn_id", connID, "user_id", userID)
	}
	_ = sess.handle.Close()
}

func (sess *Session) emitError(event string, err error) {
	_ = sess.handle.Emit(EventError, map[string]any{
		"event":   event,
		"message": userFacing(err),
	})
}

// userFacing keeps internal error detail out of client frames.
func userFacing(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrUnauthenticated):
		return "not authenticated"
	case errors.Is(err, ErrAlreadyAuthenticated):
		return "already authenticated"
	case errors.Is(err, ErrTooManyConnections):
		return "too many connections"
	case errors.Is(err, calls.ErrValidation):
		return err.Error()
	case errors.Is(err, calls.ErrInvalidTransition):
		return "invalid call transition"
	case errors.Is(err, calls.ErrNotFound):
		return "call not found"
	default:
		return "internal error"
	}
}

func (sess *Session) handleAuthenticate(ctx context.Context, p *AuthenticatePayload) error {
	if sess.Authenticated() {
		return ErrAlreadyAuthenticated
	}

	userID, role := p.UserID, p.Role
	if p.Token != "" {
		claims, err := sess.svc.tokens.Verify(p.Token, auth.TokenTypeAccess, sess.svc.clock())
		if err != nil {
			return ErrUnauthenticated
		}
		userID, role = claims.UserID, claims.Role
	}
	if !rbac.IsValidRole(role) {
		return ErrUnauthenticated
	}

	if sess.svc.limiter != nil {
		ok, err := sess.svc.limiter.Acquire(ctx, userID)
		if err != nil {
			// Fail open: a limiter outage must not take down realtime.
			sess.svc.log.Error("connection limiter unavailable", "user_id", userID, "error", err)
		} else if !ok {
			return ErrTooManyConnections
		}
	}

	connID := sess.svc.registry.Register(userID, role, sess.handle)

	sess.mu.Lock()
	sess.connID = connID
	sess.userID = userID
	sess.role = role
	sess.mu.Unlock()

	if sess.svc.auditor != nil {
		sess.svc.auditor.ConnectionOpened(ctx, connID, userID)
	}
	sess.svc.log.Info("connection authenticated",
		"conn_id", connID,
		"user_id", userID,
		"role", role,
	)
	return sess.handle.Emit(EventAuthenticated, map[string]any{
		"userId": userID,
		"role":   role,
	})
}

func (sess *Session) handleSendMessage(ctx context.Context, p *SendMessagePayload) error {
	_, userID, _ := sess.identity()
	svc := sess.svc

	m := Message{
		ID:             uuid.NewString(),
		FromUserID:     userID,
		ToUserID:       p.ToUserID,
		Body:           p.Body,
		Kind:           p.Kind,
		ConversationID: p.ConversationID,
		Timestamp:      svc.clock().UTC(),
	}

	// Persistence is best effort; a store outage must not break live chat.
	if svc.msgStore != nil {
		if err := svc.msgStore.Save(ctx, m); err != nil {
			svc.log.Error("message save failed", "message_id", m.ID, "error", err)
		}
	}

	delivered := svc.rooms.Broadcast(PrivateRoom(p.ToUserID), EventMessageReceived, m)
	if delivered == 0 && svc.notifier != nil {
		env := notify.NewEnvelope(p.ToUserID, notify.TemplateMessageAlert,
			[]notify.Channel{notify.ChannelEmail, notify.ChannelPush},
			map[string]any{
				"messageId":  m.ID,
				"fromUserId": m.FromUserID,
				"preview":    preview(m.Body),
			})
		if !svc.notifier.Submit(env) {
			svc.log.Warn("message alert dropped", "message_id", m.ID, "recipient", p.ToUserID)
		}
	}

	return sess.handle.Emit(EventMessageSent, map[string]any{
		"id":        m.ID,
		"toUserId":  m.ToUserID,
		"timestamp": m.Timestamp,
	})
}

const previewLimit = 120

// preview truncates on a rune boundary so the alert payload never carries a
// split multi-byte character.
func preview(body string) string {
	if len(body) <= previewLimit {
		return body
	}
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

func (sess *Session) handleTyping(p *TypingPayload, typing bool) error {
	connID, userID, _ := sess.identity()
	sess.svc.rooms.BroadcastExcept(ConversationRoom(p.ConversationID), connID, EventUserTyping, map[string]any{
		"userId":         userID,
		"conversationId": p.ConversationID,
		"typing":         typing,
	})
	return nil
}

func (sess *Session) handleCallInitiated(ctx context.Context, p *CallInitiatedPayload) error {
	if sess.svc.calls == nil {
		return errors.New("realtime: call service not configured")
	}
	_, userID, _ := sess.identity()
	_, err := sess.svc.calls.Initiate(ctx, calls.InitiateInput{
		CustomerID:       userID,
		ProviderID:       p.ProviderID,
		ServiceRequestID: p.ServiceRequestID,
	})
	return err
}
