package pgroutes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/pkg/errors"
)

// ListUsers returns every user. Attributes that fail to decode are dropped
// rather than failing the listing.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, fcm_token, attributes, created_at, updated_at
FROM users
ORDER BY id
`)
	if err != nil {
		return nil, errors.Wrap(err, "select users")
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		var u models.User
		var token *string
		var attrs []byte
		if err := rows.Scan(&u.ID, &token, &attrs, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		if token != nil {
			u.FCMToken = *token
		}
		if len(attrs) > 0 {
			var m map[string]any
			if json.Unmarshal(attrs, &m) == nil {
				u.Attributes = m
			}
		}
		out = append(out, &u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// UpsertUser creates the user if missing and merges attrs into the stored ones.
func (s *Storage) UpsertUser(ctx context.Context, userID string, attrs map[string]any) error {
	if attrs == nil {
		attrs = map[string]any{}
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return errors.Wrap(err, "marshal attributes")
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(ctx, `
INSERT INTO users (id, attributes, created_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (id)
DO UPDATE SET attributes = users.attributes || EXCLUDED.attributes, updated_at = EXCLUDED.updated_at
`, userID, b, now)
	return errors.Wrap(err, "upsert user")
}

// SetFCMToken stores the device token, creating the user on first contact.
// An empty token clears it.
func (s *Storage) SetFCMToken(ctx context.Context, userID, token string) error {
	var tok *string
	if token != "" {
		tok = &token
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
INSERT INTO users (id, fcm_token, created_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (id)
DO UPDATE SET fcm_token = EXCLUDED.fcm_token, updated_at = EXCLUDED.updated_at
`, userID, tok, now)
	return errors.Wrap(err, "set fcm token")
}
