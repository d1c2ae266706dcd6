package fake

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BearBump/RouteWatch/internal/integrations/push"
	"github.com/BearBump/RouteWatch/internal/models"
)

type Sent struct {
	DeviceToken  string
	Notification models.NotificationPayload
}

// FakeSender logs notifications instead of delivering them. Used when no push
// backend is configured.
type FakeSender struct {
	mu   sync.Mutex
	sent []Sent
}

func New() *FakeSender { return &FakeSender{} }

func (f *FakeSender) Send(ctx context.Context, deviceToken string, n models.NotificationPayload) error {
	f.mu.Lock()
	f.sent = append(f.sent, Sent{DeviceToken: deviceToken, Notification: n})
	f.mu.Unlock()

	slog.Info("push send (no backend configured)",
		"token", push.TokenPreview(deviceToken), "title", n.Title, "body", n.Body)
	return nil
}

func (f *FakeSender) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}
