package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	trafficapi "github.com/BearBump/RouteWatch/internal/api/traffic_api"
	"github.com/BearBump/RouteWatch/internal/broker/kafka"
	"github.com/BearBump/RouteWatch/internal/metrics"
	"github.com/BearBump/RouteWatch/internal/services/prediction"
	"github.com/BearBump/RouteWatch/internal/services/prediction/speedtable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testKey = "secret"

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

func newTestAPI() *trafficapi.TrafficAPI {
	return trafficapi.New(prediction.New(speedtable.Default(), nil, time.Minute), nil, testKey)
}

type fakeConsumer struct {
	msgs []kafka.Message
}

func (c fakeConsumer) Consume(ctx context.Context, handler kafka.Handler) error {
	for _, m := range c.msgs {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunTrafficAPI_ServesAndRelays(t *testing.T) {
	sw := writeSwagger(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := trafficAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   sw,
		topic:         "traffic.alerts",
		consumerGroup: "g",
		onListen:      func(httpAddr string) { addrCh <- httpAddr },
	}

	relayed := make(chan string, 1)
	relay := func(_ context.Context, key, _ []byte) error {
		relayed <- string(key)
		return nil
	}
	cons := fakeConsumer{msgs: []kafka.Message{{Key: []byte("r1"), Value: []byte(`{}`), Offset: 1}}}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runTrafficAPI(ctx, opts, newTestAPI(), prometheus.NewRegistry(), cons, relay)
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "\"swagger\"")

	resp, err = http.Get("http://" + httpAddr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case key := <-relayed:
		require.Equal(t, "r1", key)
	case <-time.After(2 * time.Second):
		t.Fatal("relay handler was not called")
	}

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting server to stop")
	}
}

func TestRunTrafficAPI_SwaggerRequired(t *testing.T) {
	err := runTrafficAPI(context.Background(), trafficAPIOpts{httpAddr: "127.0.0.1:0"}, newTestAPI(), nil, nil, nil)
	require.Error(t, err)

	err = runTrafficAPI(context.Background(), trafficAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: filepath.Join(t.TempDir(), "missing.json"),
	}, newTestAPI(), nil, nil, nil)
	require.ErrorContains(t, err, "swagger file not found")
}

func TestRouter_Prediction(t *testing.T) {
	h := newRouter(newTestAPI(), nil, trafficAPIOpts{swaggerPath: writeSwagger(t)})

	url := "/v1/prediction?from_x=28.97&from_y=41.01&to_x=29.03&to_y=41.06&time=8&is_weekday=1"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set(trafficapi.APIKeyHeader, testKey)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res prediction.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Greater(t, res.PredictedSpeedKmh, 0.0)
	require.NotEmpty(t, res.EstimatedCondition)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := newRouter(newTestAPI(), nil, trafficAPIOpts{
		swaggerPath: writeSwagger(t),
		corsOrigins: []string{"https://app.example.com"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/v1/prediction", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", trafficapi.APIKeyHeader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).RecordNotification(true)

	h := newRouter(newTestAPI(), reg, trafficAPIOpts{swaggerPath: writeSwagger(t)})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "routewatch_notifications_total")
}
