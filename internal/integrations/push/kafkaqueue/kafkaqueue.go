package kafkaqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/RouteWatch/internal/broker/messages"
	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/pkg/errors"
)

const DefaultTopic = "traffic.alerts"

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Sender hands notifications to Kafka; the relay in traffic-api delivers them.
type Sender struct {
	producer Producer
	topic    string
	now      func() time.Time
}

func New(producer Producer, topic string) *Sender {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Sender{producer: producer, topic: topic, now: time.Now}
}

func (s *Sender) Send(ctx context.Context, deviceToken string, n models.NotificationPayload) error {
	if deviceToken == "" {
		return errors.New("kafkaqueue: empty device token")
	}
	b, err := json.Marshal(messages.TrafficAlert{
		DeviceToken: deviceToken,
		Title:       n.Title,
		Body:        n.Body,
		Data:        n.Data,
		RaisedAt:    s.now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "marshal traffic alert")
	}

	key := n.Data["routeId"]
	if key == "" {
		key = deviceToken
	}
	return s.producer.Publish(ctx, s.topic, []byte(key), b)
}
