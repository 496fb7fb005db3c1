package calls

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("calls: not found")

// ListFilter narrows and pages a call listing. Zero fields are ignored.
type ListFilter struct {
	CustomerID string
	ProviderID string
	Status     CallStatus

	Limit  int
	Offset int
}

// Repository is the persistence contract for calls. Implemented over Postgres
// in production, in memory for tests.
type Repository interface {
	Create(ctx context.Context, c Call) error
	FindByID(ctx context.Context, id string) (Call, error)
	UpdateStatus(ctx context.Context, id string, status CallStatus, updatedAt time.Time) error
	UpdateDetails(ctx context.Context, id string, durationSeconds int, recordingURL string, updatedAt time.Time) error
	List(ctx context.Context, f ListFilter) ([]Call, error)
}
