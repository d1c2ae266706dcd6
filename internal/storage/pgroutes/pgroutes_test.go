package pgroutes

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startStorage(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "routewatch_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/routewatch_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func ptr[T any](v T) *T { return &v }

func TestPGRoutes_RepoFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()
	st := startStorage(t)
	require.NoError(t, st.Ping(ctx))

	require.NoError(t, st.UpsertUser(ctx, "u1", map[string]any{"lang": "tr"}))
	require.NoError(t, st.SetFCMToken(ctx, "u1", "tok-1"))
	require.NoError(t, st.SetFCMToken(ctx, "u2", ""))

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "u1", users[0].ID)
	require.Equal(t, "tok-1", users[0].FCMToken)
	require.Equal(t, "tr", users[0].Attributes["lang"])
	require.Empty(t, users[1].FCMToken)

	full, err := st.AddFavoriteRoute(ctx, models.RouteRecord{
		UserID:         "u1",
		Name:           ptr("Commute"),
		OriginLat:      ptr(41.0),
		OriginLng:      ptr(29.0),
		DestinationLat: ptr(41.1),
		DestinationLng: ptr(29.1),
	})
	require.NoError(t, err)
	require.NotEmpty(t, full.ID)

	// coordinates are optional at rest; the scan skips such routes
	_, err = st.AddFavoriteRoute(ctx, models.RouteRecord{
		UserID:    "u1",
		OriginLat: ptr(41.0),
		CreatedAt: full.CreatedAt.Add(time.Second),
	})
	require.NoError(t, err)

	recs, err := st.ListFavoriteRoutes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, full.ID, recs[0].ID)
	require.Equal(t, "Commute", *recs[0].Name)
	require.Nil(t, recs[1].Name)
	require.Nil(t, recs[1].DestinationLat)

	_, err = models.ParseFavoriteRoute(*recs[1])
	require.ErrorIs(t, err, models.ErrIncompleteCoordinates)

	require.NoError(t, st.DeleteFavoriteRoute(ctx, "u1", full.ID))
	require.ErrorIs(t, st.DeleteFavoriteRoute(ctx, "u1", full.ID), ErrRouteNotFound)

	recs, err = st.ListFavoriteRoutes(ctx, "u2")
	require.NoError(t, err)
	require.Empty(t, recs)
}
