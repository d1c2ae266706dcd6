package pgroutes

import (
	"context"
	"time"

	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrRouteNotFound = errors.New("favorite route not found")

func (s *Storage) ListFavoriteRoutes(ctx context.Context, userID string) ([]*models.RouteRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  id, user_id, name,
  origin_lat, origin_lng, origin_address,
  destination_lat, destination_lng, destination_address,
  created_at
FROM favorite_routes
WHERE user_id = $1
ORDER BY created_at ASC, id ASC
`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "select favorite routes")
	}
	defer rows.Close()

	var out []*models.RouteRecord
	for rows.Next() {
		var r models.RouteRecord
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.Name,
			&r.OriginLat, &r.OriginLng, &r.OriginAddress,
			&r.DestinationLat, &r.DestinationLng, &r.DestinationAddress,
			&r.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan favorite route")
		}
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// AddFavoriteRoute stores rec under its user and returns the stored record.
// The id is generated when rec.ID is empty.
func (s *Storage) AddFavoriteRoute(ctx context.Context, rec models.RouteRecord) (*models.RouteRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO users (id, created_at, updated_at)
VALUES ($1, $2, $2)
ON CONFLICT (id) DO NOTHING
`, rec.UserID, rec.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "ensure user")
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO favorite_routes (
  id, user_id, name,
  origin_lat, origin_lng, origin_address,
  destination_lat, destination_lng, destination_address,
  created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, rec.ID, rec.UserID, rec.Name,
		rec.OriginLat, rec.OriginLng, rec.OriginAddress,
		rec.DestinationLat, rec.DestinationLng, rec.DestinationAddress,
		rec.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert favorite route")
	}
	return &rec, nil
}

func (s *Storage) DeleteFavoriteRoute(ctx context.Context, userID, routeID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM favorite_routes WHERE user_id = $1 AND id = $2`, userID, routeID)
	if err != nil {
		return errors.Wrap(err, "delete favorite route")
	}
	if tag.RowsAffected() == 0 {
		return ErrRouteNotFound
	}
	return nil
}
