package notify

import "context"

// Gateway is the provider-agnostic contract for one external channel
// (email/SMS/push).
//
// Rules:
// - No provider SDK calls outside gateway adapters.
// - A nil error return is treated as delivered; no delivery receipt is
//   modeled (documented limitation of the dispatch design).
// - Implementations must respect ctx deadlines; the dispatcher bounds every
//   attempt so a slow provider cannot stall background workers indefinitely.
type Gateway interface {
	Name() string
	Send(ctx context.Context, to Contact, templateID string, payload map[string]any) error
}

// LiveSender is the slice of the realtime service the dispatcher needs: reach
// a user's live connections, reporting false (not an error) when offline.
type LiveSender interface {
	Unicast(userID, event string, payload any) bool
}

// Recorder is the optional audit hook for exhausted deliveries. Best-effort;
// the dispatcher never blocks or fails on it.
type Recorder interface {
	DeliveryFailed(ctx context.Context, envelopeID, channel, reason string)
}

type multiRecorder []Recorder

func (m multiRecorder) DeliveryFailed(ctx context.Context, envelopeID, channel, reason string) {
	for _, r := range m {
		if r != nil {
			r.DeliveryFailed(ctx, envelopeID, channel, reason)
		}
	}
}

// MultiRecorder fans every delivery failure out to all given recorders, so one
// failure can feed both the audit trail and the reporting source.
func MultiRecorder(rs ...Recorder) Recorder {
	return multiRecorder(rs)
}
