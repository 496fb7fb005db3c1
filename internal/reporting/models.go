package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics, optionally scoped to
// one provider.

type CallsSummaryRequest struct {
	Range      TimeRange `json:"range"`
	ProviderID string    `json:"provider_id,omitempty"`
}

type CallsSummary struct {
	ProviderID string `json:"provider_id,omitempty"`

	TotalCalls      int `json:"total_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	CancelledCalls  int `json:"cancelled_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`
}

// DeliverySummaryRequest requests aggregated notification delivery metrics.
// Failures are derived from the immutable audit trail.

type DeliverySummaryRequest struct {
	Range TimeRange `json:"range"`
}

type DeliverySummary struct {
	FailedDeliveries  int            `json:"failed_deliveries"`
	FailuresByChannel map[string]int `json:"failures_by_channel"`
}

// DeliveryFailure is one exhausted notification channel, as recorded by the
// dispatcher's audit hook.

type DeliveryFailure struct {
	EnvelopeID string    `json:"envelope_id"`
	Channel    string    `json:"channel"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}
