package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRun("ok")
	c.RecordRun("ok")
	c.RecordRun("error")
	c.RecordRoute("alerted")
	c.RecordRoute("skipped")
	c.RecordRoute("skipped")
	c.RecordNotification(true)
	c.RecordNotification(false)
	c.ObserveDirectionsLatency(120 * time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(c.scanRuns.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.scanRuns.WithLabelValues("error")))
	require.Equal(t, 2.0, testutil.ToFloat64(c.routes.WithLabelValues("skipped")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.notifications.WithLabelValues("sent")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.notifications.WithLabelValues("failed")))
	require.Equal(t, 1, testutil.CollectAndCount(c.directionsLatency))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRoute("ok")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(b), `routewatch_routes_total{outcome="ok"} 1`)
}
