package reporting

import (
	"context"
	"errors"
	"time"

	"homeservices-platform/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations should query immutable sources when possible (call records,
// delivery failure trail).

type Repository interface {
	ListCalls(ctx context.Context, from, to time.Time, providerID string) ([]calls.Call, error)
	ListDeliveryFailures(ctx context.Context, from, to time.Time) ([]DeliveryFailure, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func validRange(r TimeRange) bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if !validRange(req.Range) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.Range.From, req.Range.To, req.ProviderID)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{ProviderID: req.ProviderID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		switch c.Status {
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusCancelled:
			out.CancelledCalls++
		case calls.CallStatusInProgress:
			out.InProgressCalls++
		case calls.CallStatusInitiated, calls.CallStatusRinging:
			// not counted separately
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

func (s *Service) DeliverySummary(ctx context.Context, req DeliverySummaryRequest) (DeliverySummary, error) {
	if !validRange(req.Range) {
		return DeliverySummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return DeliverySummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListDeliveryFailures(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return DeliverySummary{}, err
	}

	out := DeliverySummary{FailuresByChannel: make(map[string]int)}
	for _, f := range rows {
		out.FailedDeliveries++
		out.FailuresByChannel[f.Channel]++
	}
	return out, nil
}
