package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/RouteWatch/internal/broker/messages"
	"github.com/BearBump/RouteWatch/internal/integrations/push/fake"
	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/stretchr/testify/require"
)

type failingSender struct{ calls int }

func (s *failingSender) Send(ctx context.Context, deviceToken string, n models.NotificationPayload) error {
	s.calls++
	return errors.New("unregistered")
}

func alertJSON(t *testing.T, token string) []byte {
	t.Helper()
	b, err := json.Marshal(messages.TrafficAlert{
		DeviceToken: token,
		Title:       "Traffic Alert: Commute",
		Body:        "Heavy traffic on 'Commute'. Travel time is ~18 min (1 min delay).",
		Data:        map[string]string{"type": models.AlertTypeTraffic, "routeName": "Commute", "routeId": "r1"},
		RaisedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	return b
}

func TestRelay_Handle_Delivers(t *testing.T) {
	s := fake.New()
	r := NewRelay(s, time.Second)

	require.NoError(t, r.Handle(context.Background(), []byte("r1"), alertJSON(t, "tok")))

	sent := s.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "tok", sent[0].DeviceToken)
	require.Equal(t, "Traffic Alert: Commute", sent[0].Notification.Title)
	require.Equal(t, "r1", sent[0].Notification.Data["routeId"])
}

func TestRelay_Handle_DropsBadMessages(t *testing.T) {
	s := fake.New()
	r := NewRelay(s, 0)

	require.NoError(t, r.Handle(context.Background(), nil, []byte("{not json")))
	require.NoError(t, r.Handle(context.Background(), nil, alertJSON(t, "")))
	require.Empty(t, s.Sent())
}

func TestRelay_Handle_SendFailureIsNotRetried(t *testing.T) {
	s := &failingSender{}
	require.NoError(t, NewRelay(s, time.Second).Handle(context.Background(), nil, alertJSON(t, "tok")))
	require.Equal(t, 1, s.calls)
}

func TestRelay_Handle_CanceledLeavesUncommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewRelay(&failingSender{}, time.Second).Handle(ctx, nil, alertJSON(t, "tok"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRelay_Handle_DropsStaleAlerts(t *testing.T) {
	s := &failingSender{}
	r := NewRelay(s, time.Second).WithMaxAge(30 * time.Minute)
	r.now = func() time.Time { return time.Now().Add(time.Hour) }

	require.NoError(t, r.Handle(context.Background(), []byte("r1"), alertJSON(t, "tok")))
	require.Zero(t, s.calls)

	r.now = time.Now
	require.NoError(t, r.Handle(context.Background(), []byte("r1"), alertJSON(t, "tok")))
	require.Equal(t, 1, s.calls)
}
