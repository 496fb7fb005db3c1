package notify

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNoContact = errors.New("notify: no contact on file")

// PostgresContactResolver looks up delivery addresses for a user.
//
// NOTE: assumes the following table exists:
//
// CREATE TABLE user_contacts (
//   user_id      TEXT PRIMARY KEY,
//   phone        TEXT NOT NULL DEFAULT '',
//   email        TEXT NOT NULL DEFAULT '',
//   device_token TEXT NOT NULL DEFAULT ''
// );

type PostgresContactResolver struct {
	db *sql.DB
}

func NewPostgresContactResolver(db *sql.DB) *PostgresContactResolver {
	return &PostgresContactResolver{db: db}
}

func (r *PostgresContactResolver) Contact(ctx context.Context, userID string) (Contact, error) {
	const q = `
SELECT phone, email, device_token
FROM user_contacts
WHERE user_id = $1
`
	var c Contact
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&c.Phone, &c.Email, &c.DeviceToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNoContact
		}
		return Contact{}, err
	}
	return c, nil
}
