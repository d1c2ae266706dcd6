package traffic_api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/BearBump/RouteWatch/internal/services/favorites"
	"github.com/BearBump/RouteWatch/internal/services/prediction"
	"github.com/BearBump/RouteWatch/internal/storage/pgroutes"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

const APIKeyHeader = "x-api-key"

type Predictor interface {
	Predict(ctx context.Context, q prediction.Query) (prediction.Result, error)
}

type Favorites interface {
	ListRoutes(ctx context.Context, userID string) ([]*models.RouteRecord, error)
	AddRoute(ctx context.Context, userID string, in favorites.RouteInput) (*models.RouteRecord, error)
	DeleteRoute(ctx context.Context, userID, routeID string) error
	SetFCMToken(ctx context.Context, userID string, in favorites.TokenInput) error
	UpdateProfile(ctx context.Context, userID string, in favorites.ProfileInput) error
}

type TrafficAPI struct {
	predictor Predictor
	favorites Favorites
	apiKey    string
}

// New builds the API. favs may be nil when no database is configured; the
// route endpoints then answer 503.
func New(predictor Predictor, favs Favorites, apiKey string) *TrafficAPI {
	return &TrafficAPI{predictor: predictor, favorites: favs, apiKey: apiKey}
}

// Register mounts the /v1 endpoints on r.
func (a *TrafficAPI) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Use(a.requireAPIKey)
		r.Get("/prediction", a.getPrediction)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(a.requireFavorites)
			r.Patch("/", a.patchProfile)
			r.Get("/favorite-routes", a.listRoutes)
			r.Post("/favorite-routes", a.addRoute)
			r.Delete("/favorite-routes/{routeID}", a.deleteRoute)
			r.Put("/fcm-token", a.putFCMToken)
		})
	})
}

func (a *TrafficAPI) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(APIKeyHeader)
		if a.apiKey == "" || subtle.ConstantTimeCompare([]byte(got), []byte(a.apiKey)) != 1 {
			slog.Warn("rejected request with invalid api key", "path", r.URL.Path)
			http.Error(w, "Unauthorized: Invalid API Key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *TrafficAPI) requireFavorites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.favorites == nil {
			writeError(w, http.StatusServiceUnavailable, "favorite routes storage is not configured")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *TrafficAPI) getPrediction(w http.ResponseWriter, r *http.Request) {
	q, err := prediction.ParseQuery(r.URL.Query())
	if err != nil {
		http.Error(w, "Bad Request: Invalid or missing parameters. Error: "+err.Error(), http.StatusBadRequest)
		return
	}
	res, err := a.predictor.Predict(r.Context(), q)
	if err != nil {
		if errors.Is(err, prediction.ErrInvalidParams) {
			http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("prediction failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Prediction or time calculation failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type routeResponse struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	OriginLat          *float64 `json:"originLat"`
	OriginLng          *float64 `json:"originLng"`
	DestinationLat     *float64 `json:"destinationLat"`
	DestinationLng     *float64 `json:"destinationLng"`
	OriginAddress      string   `json:"originAddress,omitempty"`
	DestinationAddress string   `json:"destinationAddress,omitempty"`
	CreatedAt          string   `json:"createdAt,omitempty"`
}

func toRouteResponse(rec *models.RouteRecord) routeResponse {
	out := routeResponse{
		ID:                 rec.ID,
		Name:               models.DefaultRouteName,
		OriginLat:          rec.OriginLat,
		OriginLng:          rec.OriginLng,
		DestinationLat:     rec.DestinationLat,
		DestinationLng:     rec.DestinationLng,
		OriginAddress:      rec.OriginAddress,
		DestinationAddress: rec.DestinationAddress,
	}
	if rec.Name != nil && *rec.Name != "" {
		out.Name = *rec.Name
	}
	if !rec.CreatedAt.IsZero() {
		out.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func (a *TrafficAPI) listRoutes(w http.ResponseWriter, r *http.Request) {
	recs, err := a.favorites.ListRoutes(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]routeResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRouteResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"routes": out})
}

func (a *TrafficAPI) addRoute(w http.ResponseWriter, r *http.Request) {
	var in favorites.RouteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	rec, err := a.favorites.AddRoute(r.Context(), chi.URLParam(r, "userID"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRouteResponse(rec))
}

func (a *TrafficAPI) deleteRoute(w http.ResponseWriter, r *http.Request) {
	err := a.favorites.DeleteRoute(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "routeID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *TrafficAPI) putFCMToken(w http.ResponseWriter, r *http.Request) {
	var in favorites.TokenInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := a.favorites.SetFCMToken(r.Context(), chi.URLParam(r, "userID"), in); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *TrafficAPI) patchProfile(w http.ResponseWriter, r *http.Request) {
	var in favorites.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := a.favorites.UpdateProfile(r.Context(), chi.URLParam(r, "userID"), in); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, favorites.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pgroutes.ErrRouteNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("favorite routes request failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
