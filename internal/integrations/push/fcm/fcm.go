package fcm

import (
	"context"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/BearBump/RouteWatch/internal/integrations/push"
	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Sender pushes notifications through Firebase Cloud Messaging.
type Sender struct {
	client messagingClient
}

// New builds a sender from a service account credentials file. An empty
// path falls back to Application Default Credentials.
func New(ctx context.Context, credentialsFile, projectID string) (*Sender, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "init firebase app")
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "init firebase messaging")
	}
	return &Sender{client: client}, nil
}

func newWithClient(c messagingClient) *Sender {
	return &Sender{client: c}
}

func (s *Sender) Send(ctx context.Context, deviceToken string, n models.NotificationPayload) error {
	if deviceToken == "" {
		return errors.New("fcm: empty device token")
	}
	id, err := s.client.Send(ctx, &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
	})
	if err != nil {
		return errors.Wrap(err, "fcm send")
	}
	slog.Info("fcm message sent", "token", push.TokenPreview(deviceToken), "message_id", id)
	return nil
}
