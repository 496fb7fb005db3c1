package reporting

import (
	"context"
	"sync"
	"time"

	"homeservices-platform/internal/calls"
)

// MemoryRepo is an in-memory reporting source. It doubles as the call
// service's reporter and the dispatcher's delivery-failure hook, so ended
// calls and exhausted deliveries flow straight into reports.
type MemoryRepo struct {
	mu       sync.Mutex
	calls    []calls.Call
	failures []DeliveryFailure

	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{clock: time.Now}
}

func (r *MemoryRepo) AddCall(c calls.Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// CallEnded satisfies the call service's reporting hook.
func (r *MemoryRepo) CallEnded(ctx context.Context, c calls.Call) {
	r.AddCall(c)
}

// DeliveryFailed satisfies the dispatcher's audit hook.
func (r *MemoryRepo) DeliveryFailed(ctx context.Context, envelopeID, channel, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, DeliveryFailure{
		EnvelopeID: envelopeID,
		Channel:    channel,
		Reason:     reason,
		OccurredAt: r.clock().UTC(),
	})
}

func (r *MemoryRepo) ListCalls(ctx context.Context, from, to time.Time, providerID string) ([]calls.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []calls.Call
	for _, c := range r.calls {
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		if providerID != "" && c.ProviderID != providerID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListDeliveryFailures(ctx context.Context, from, to time.Time) ([]DeliveryFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []DeliveryFailure
	for _, f := range r.failures {
		if f.OccurredAt.Before(from) || !f.OccurredAt.Before(to) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
