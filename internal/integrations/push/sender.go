package push

import (
	"context"

	"github.com/BearBump/RouteWatch/internal/models"
)

// Sender delivers one notification to one device. Implementations do not
// retry; the error only reports this single attempt.
type Sender interface {
	Send(ctx context.Context, deviceToken string, n models.NotificationPayload) error
}

// TokenPreview shortens a device token for logs.
func TokenPreview(token string) string {
	const keep = 20
	if len(token) <= keep {
		return token
	}
	return token[:keep] + "..."
}
