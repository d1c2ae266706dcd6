package messages

import "time"

// TrafficAlert is a notification queued for asynchronous delivery.
type TrafficAlert struct {
	DeviceToken string            `json:"device_token"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	RaisedAt    time.Time         `json:"raised_at"`
}
