package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Channel is one delivery path for a notification.
type Channel string

const (
	ChannelLive  Channel = "live"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Template ids. Rendering is channel-local (see templates.go); producers only
// pick the template and supply the payload.
const (
	TemplateCallAlert    = "call_alert"
	TemplateCallSummary  = "call_summary"
	TemplateMessageAlert = "message_alert"
)

// Envelope is the payload-plus-routing-metadata unit the dispatcher consumes.
//
// Invariants:
// - At most one channel is attempted at a time, in ChannelOrder.
// - The walk stops at the first success unless DeliverAll is set (the zero
//   value keeps the stop-on-first-success default).
// - An envelope is consumed exactly once: dispatched, or dropped after every
//   channel is exhausted.
type Envelope struct {
	ID           string         `json:"id"`
	RecipientID  string         `json:"recipient_id"`
	ChannelOrder []Channel      `json:"channel_order"`
	TemplateID   string         `json:"template_id"`
	Payload      map[string]any `json:"payload,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	ScheduledFor time.Time      `json:"scheduled_for,omitempty"`

	// DeliverAll walks every channel regardless of earlier successes.
	DeliverAll bool `json:"deliver_all,omitempty"`
}

// NewEnvelope builds an envelope with a fresh id. CreatedAt is stamped by the
// caller's clock where determinism matters; this helper uses wall time.
func NewEnvelope(recipientID, templateID string, order []Channel, payload map[string]any) Envelope {
	return Envelope{
		ID:           uuid.NewString(),
		RecipientID:  recipientID,
		ChannelOrder: order,
		TemplateID:   templateID,
		Payload:      payload,
		CreatedAt:    time.Now().UTC(),
	}
}

// ChannelAttempt records the outcome of one channel in the walk.
type ChannelAttempt struct {
	Channel  Channel `json:"channel"`
	Attempts int     `json:"attempts"`
	OK       bool    `json:"ok"`
	Error    string  `json:"error,omitempty"`
}

// DeliveryResult is the outcome of dispatching one envelope.
type DeliveryResult struct {
	EnvelopeID string           `json:"envelope_id"`
	Delivered  bool             `json:"delivered"`
	Channel    Channel          `json:"channel,omitempty"` // first successful channel
	Attempts   []ChannelAttempt `json:"attempts"`
}

// BulkResult summarizes a SendBulk call.
type BulkResult struct {
	SuccessCount int `json:"success_count"`
	FailedCount  int `json:"failed_count"`
}

// Contact is the out-of-band addressing for a recipient, resolved from the
// external user repository at dispatch time.
type Contact struct {
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	DeviceToken string `json:"device_token,omitempty"`
}

// ContactResolver is the external collaborator that maps a user id to their
// contact details.
type ContactResolver interface {
	Contact(ctx context.Context, userID string) (Contact, error)
}
