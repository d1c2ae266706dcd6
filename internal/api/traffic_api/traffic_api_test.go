package traffic_api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/BearBump/RouteWatch/internal/services/favorites"
	"github.com/BearBump/RouteWatch/internal/services/prediction"
	"github.com/BearBump/RouteWatch/internal/services/prediction/speedtable"
	"github.com/BearBump/RouteWatch/internal/storage/pgroutes"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu     sync.Mutex
	routes map[string][]*models.RouteRecord
	tokens map[string]string
	attrs  map[string]map[string]any
	seq    int
}

func newMemRepo() *memRepo {
	return &memRepo{
		routes: map[string][]*models.RouteRecord{},
		tokens: map[string]string{},
		attrs:  map[string]map[string]any{},
	}
}

func (m *memRepo) ListFavoriteRoutes(ctx context.Context, userID string) ([]*models.RouteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.routes[userID], nil
}

func (m *memRepo) AddFavoriteRoute(ctx context.Context, rec models.RouteRecord) (*models.RouteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	rec.ID = "r" + string(rune('0'+m.seq))
	rec.CreatedAt = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	m.routes[rec.UserID] = append(m.routes[rec.UserID], &rec)
	return &rec, nil
}

func (m *memRepo) DeleteFavoriteRoute(ctx context.Context, userID, routeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.routes[userID] {
		if r.ID == routeID {
			m.routes[userID] = append(m.routes[userID][:i], m.routes[userID][i+1:]...)
			return nil
		}
	}
	return pgroutes.ErrRouteNotFound
}

func (m *memRepo) SetFCMToken(ctx context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID] = token
	return nil
}

func (m *memRepo) UpsertUser(ctx context.Context, userID string, attrs map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attrs[userID] == nil {
		m.attrs[userID] = map[string]any{}
	}
	for k, v := range attrs {
		m.attrs[userID][k] = v
	}
	return nil
}

func newServer(t *testing.T, favs Favorites) *httptest.Server {
	t.Helper()
	api := New(prediction.New(speedtable.Default(), nil, 0), favs, "secret")
	r := chi.NewRouter()
	api.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

const predictionQuery = "/v1/prediction?from_x=28.9784&from_y=41.0082&to_x=29.0083&to_y=41.0422&time=8&is_weekday=1"

func TestPrediction_AuthAndParams(t *testing.T) {
	srv := newServer(t, nil)

	require.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, srv.URL+predictionQuery, "", "").StatusCode)
	require.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, srv.URL+predictionQuery, "wrong", "").StatusCode)
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/v1/prediction?from_x=1", "secret", "").StatusCode)
	require.Equal(t, http.StatusBadRequest,
		do(t, http.MethodGet, srv.URL+strings.Replace(predictionQuery, "time=8", "time=9", 1), "secret", "").StatusCode)

	resp := do(t, http.MethodGet, srv.URL+predictionQuery, "secret", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.InDelta(t, 4.537, body["segment_distance_km"].(float64), 1e-3)
	require.Equal(t, "Moderate", body["estimated_condition"])
	require.Contains(t, body, "estimated_travel_time_minutes")
	params := body["requested_params"].(map[string]any)
	require.Equal(t, 8.0, params["time"])
	require.Equal(t, 1.0, params["is_weekday"])
}

type brokenModel struct{}

func (brokenModel) PredictSpeed(context.Context, prediction.Query, float64) (float64, error) {
	return 0, context.DeadlineExceeded
}
func (brokenModel) Source() string { return "broken" }

func TestPrediction_ModelFailure500(t *testing.T) {
	api := New(prediction.New(brokenModel{}, nil, 0), nil, "secret")
	r := chi.NewRouter()
	api.Register(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+predictionQuery, "secret", "")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestFavoriteRoutes_Flow(t *testing.T) {
	repo := newMemRepo()
	srv := newServer(t, favorites.New(repo))
	base := srv.URL + "/v1/users/u1"

	resp := do(t, http.MethodPost, base+"/favorite-routes", "secret",
		`{"name":"Commute","origin":{"lat":41.0082,"lng":28.9784},"destination":{"lat":41.0422,"lng":29.0083}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created routeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Equal(t, "Commute", created.Name)
	require.NotEmpty(t, created.ID)

	resp = do(t, http.MethodPost, base+"/favorite-routes", "secret", `{"name":"Bad","origin":{"lat":95,"lng":1},"destination":{"lat":1,"lng":1}}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = do(t, http.MethodPost, base+"/favorite-routes", "secret", `{`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/favorite-routes", "secret", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Routes []routeResponse `json:"routes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Routes, 1)
	require.Equal(t, 41.0082, *list.Routes[0].OriginLat)

	require.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, base+"/favorite-routes/"+created.ID, "secret", "").StatusCode)
	require.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, base+"/favorite-routes/"+created.ID, "secret", "").StatusCode)

	require.Equal(t, http.StatusNoContent, do(t, http.MethodPut, base+"/fcm-token", "secret", `{"token":"device-1"}`).StatusCode)
	require.Equal(t, "device-1", repo.tokens["u1"])

	require.Equal(t, http.StatusNoContent, do(t, http.MethodPatch, base, "secret", `{"attributes":{"displayName":"Ayse"}}`).StatusCode)
	require.Equal(t, "Ayse", repo.attrs["u1"]["displayName"])
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodPatch, base, "secret", `{"attributes":{"id":"other"}}`).StatusCode)

	require.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, base+"/favorite-routes", "", "").StatusCode)
}

func TestFavoriteRoutes_NotConfigured(t *testing.T) {
	srv := newServer(t, nil)
	resp := do(t, http.MethodGet, srv.URL+"/v1/users/u1/favorite-routes", "secret", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestToRouteResponse_DefaultName(t *testing.T) {
	require.Equal(t, models.DefaultRouteName, toRouteResponse(&models.RouteRecord{ID: "x"}).Name)
}
