package calls

import "time"

// Call represents a live call between a customer and a service provider.
//
// NOTE: This is a domain model only. Provider-specific fields (like a media
// server session id) should be stored as separate columns or metadata, not
// mixed into this transport-agnostic core model.
//
// Lifecycle invariant: Status only advances along the transition table below;
// it never regresses into a prior active state, and terminal states accept
// nothing.
type Call struct {
	CallID           string `json:"call_id" db:"call_id"`
	CustomerID       string `json:"customer_id" db:"customer_id"`
	ProviderID       string `json:"provider_id" db:"provider_id"`
	ServiceRequestID string `json:"service_request_id,omitempty" db:"service_request_id"`

	Status CallStatus `json:"status" db:"status"`

	// DurationSeconds is the call duration in seconds.
	// Keep as an int for JSON friendliness; store as INT in Postgres.
	DurationSeconds int `json:"duration" db:"duration"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusCancelled  CallStatus = "cancelled"
)

// allowedTransitions is the full lifecycle table. Terminal states have no
// entry.
var allowedTransitions = map[CallStatus][]CallStatus{
	CallStatusInitiated:  {CallStatusRinging, CallStatusCancelled, CallStatusFailed},
	CallStatusRinging:    {CallStatusInProgress, CallStatusCancelled, CallStatusFailed},
	CallStatusInProgress: {CallStatusCompleted, CallStatusFailed, CallStatusCancelled},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s CallStatus) CanTransitionTo(next CallStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s accepts no further transitions.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusCancelled:
		return true
	default:
		return false
	}
}

func IsValidStatus(s CallStatus) bool {
	switch s {
	case CallStatusInitiated, CallStatusRinging, CallStatusInProgress,
		CallStatusCompleted, CallStatusFailed, CallStatusCancelled:
		return true
	default:
		return false
	}
}
