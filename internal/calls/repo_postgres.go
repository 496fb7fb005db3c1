package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"homeservices-platform/pkg/utils"
)

// NOTE: This repository assumes the following table exists:
//
// CREATE TABLE calls (
//   call_id            TEXT PRIMARY KEY,
//   customer_id        TEXT NOT NULL,
//   provider_id        TEXT NOT NULL,
//   service_request_id TEXT NOT NULL,
//   status             TEXT NOT NULL,
//   duration_seconds   INT NOT NULL DEFAULT 0,
//   recording_url      TEXT NOT NULL DEFAULT '',
//   created_at         TIMESTAMPTZ NOT NULL,
//   updated_at         TIMESTAMPTZ NOT NULL
// );

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (
  call_id, customer_id, provider_id, service_request_id, status,
  duration_seconds, recording_url, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
`
	_, err := r.db.ExecContext(ctx, q,
		c.CallID,
		c.CustomerID,
		c.ProviderID,
		c.ServiceRequestID,
		c.Status,
		c.DurationSeconds,
		c.RecordingURL,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (Call, error) {
	const q = `
SELECT call_id, customer_id, provider_id, service_request_id, status,
       duration_seconds, recording_url, created_at, updated_at
FROM calls
WHERE call_id = $1
`
	var c Call
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&c.CallID,
		&c.CustomerID,
		&c.ProviderID,
		&c.ServiceRequestID,
		&c.Status,
		&c.DurationSeconds,
		&c.RecordingURL,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

// UpdateStatus locks the call row before writing, so two server instances
// racing on the same call serialize at the database even though each holds
// only its own in-process lock.
func (r *PostgresRepo) UpdateStatus(ctx context.Context, id string, status CallStatus, updatedAt time.Time) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const lockQ = `
SELECT status
FROM calls
WHERE call_id = $1
FOR UPDATE
`
		var current CallStatus
		if err := tx.QueryRowContext(ctx, lockQ, id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		const q = `
UPDATE calls
SET status = $2, updated_at = $3
WHERE call_id = $1
`
		_, err := tx.ExecContext(ctx, q, id, status, updatedAt)
		return err
	})
}

func (r *PostgresRepo) UpdateDetails(ctx context.Context, id string, durationSeconds int, recordingURL string, updatedAt time.Time) error {
	const q = `
UPDATE calls
SET duration_seconds = $2,
    recording_url = CASE WHEN $3 = '' THEN recording_url ELSE $3 END,
    updated_at = $4
WHERE call_id = $1
`
	res, err := r.db.ExecContext(ctx, q, id, durationSeconds, recordingURL, updatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context, f ListFilter) ([]Call, error) {
	q := `
SELECT call_id, customer_id, provider_id, service_request_id, status,
       duration_seconds, recording_url, created_at, updated_at
FROM calls
WHERE 1=1
`
	var args []any
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		q += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if f.ProviderID != "" {
		args = append(args, f.ProviderID)
		q += fmt.Sprintf(" AND provider_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(
			&c.CallID,
			&c.CustomerID,
			&c.ProviderID,
			&c.ServiceRequestID,
			&c.Status,
			&c.DurationSeconds,
			&c.RecordingURL,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
