package alerts

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/RouteWatch/internal/broker/messages"
	"github.com/BearBump/RouteWatch/internal/integrations/push"
	"github.com/BearBump/RouteWatch/internal/models"
)

// Relay delivers queued traffic alerts. Each alert gets one send attempt;
// failures and undecodable messages are logged and dropped.
type Relay struct {
	sender      push.Sender
	sendTimeout time.Duration
	maxAge      time.Duration
	metrics     Metrics
	now         func() time.Time
}

type Metrics interface {
	RecordNotification(ok bool)
}

func NewRelay(sender push.Sender, sendTimeout time.Duration) *Relay {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Relay{sender: sender, sendTimeout: sendTimeout, now: time.Now}
}

// WithMaxAge drops alerts raised longer than d ago. Zero keeps everything.
func (r *Relay) WithMaxAge(d time.Duration) *Relay {
	r.maxAge = d
	return r
}

func (r *Relay) WithMetrics(m Metrics) *Relay {
	r.metrics = m
	return r
}

// Handle matches the Kafka consumer callback. It only fails when ctx is done,
// which leaves the message uncommitted.
func (r *Relay) Handle(ctx context.Context, key, value []byte) error {
	var m messages.TrafficAlert
	if err := json.Unmarshal(value, &m); err != nil {
		slog.Error("skipping undecodable traffic alert", "key", string(key), "error", err.Error())
		return nil
	}
	if m.DeviceToken == "" {
		slog.Warn("skipping traffic alert without device token", "key", string(key))
		return nil
	}

	if r.maxAge > 0 && !m.RaisedAt.IsZero() {
		if age := r.now().Sub(m.RaisedAt); age > r.maxAge {
			slog.Warn("dropping stale traffic alert", "route_id", m.Data["routeId"], "age", age.Round(time.Second).String())
			return nil
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	err := r.sender.Send(sendCtx, m.DeviceToken, models.NotificationPayload{
		Title: m.Title,
		Body:  m.Body,
		Data:  m.Data,
	})
	cancel()

	if r.metrics != nil {
		r.metrics.RecordNotification(err == nil)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("relay traffic alert failed",
			"token", push.TokenPreview(m.DeviceToken),
			"route_id", m.Data["routeId"],
			"error", err.Error(),
		)
		return nil
	}
	slog.Info("traffic alert relayed", "route_id", m.Data["routeId"], "queued_for", r.now().Sub(m.RaisedAt).Round(time.Millisecond).String())
	return nil
}
