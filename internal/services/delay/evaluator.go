package delay

import (
	"fmt"
	"math"

	"github.com/BearBump/RouteWatch/internal/models"
)

// DefaultThresholdPercentage alerts on any delay of at least one minute.
const DefaultThresholdPercentage = 1

type Rounding int

const (
	RoundHalfEven Rounding = iota
	RoundHalfUp
)

// MinutesRounding decides the >= 1 minute gate at half-minute boundaries:
// 90s rounds to 2 minutes, 30s to 0 and 150s to 2.
const MinutesRounding = RoundHalfEven

// RoundMinutes converts seconds to whole minutes using MinutesRounding.
func RoundMinutes(seconds int64) int64 {
	return roundMinutes(seconds, MinutesRounding)
}

func roundMinutes(seconds int64, mode Rounding) int64 {
	m := float64(seconds) / 60
	if mode == RoundHalfUp {
		return int64(math.Floor(m + 0.5))
	}
	return int64(math.RoundToEven(m))
}

// Metrics derives the delay of a sample relative to its typical duration.
func Metrics(sample models.TrafficSample) models.DelayMetrics {
	d := sample.LiveSeconds - sample.TypicalSeconds
	pct := 0.0
	if sample.TypicalSeconds > 0 {
		pct = float64(d) / float64(sample.TypicalSeconds) * 100
	}
	return models.DelayMetrics{
		DelaySeconds:    d,
		DelayMinutes:    RoundMinutes(d),
		DelayPercentage: pct,
	}
}

// Evaluate fires an alert only when the percentage delay reaches the threshold
// and the absolute delay rounds to at least one minute.
func Evaluate(sample models.TrafficSample, thresholdPercentage int) models.AlertDecision {
	m := Metrics(sample)
	return models.AlertDecision{
		Metrics: m,
		Alert:   m.DelayPercentage >= float64(thresholdPercentage) && m.DelayMinutes >= 1,
	}
}

// BuildNotification renders the push payload for an alerting route.
func BuildNotification(route models.FavoriteRoute, sample models.TrafficSample, decision models.AlertDecision) models.NotificationPayload {
	return models.NotificationPayload{
		Title: fmt.Sprintf("Traffic Alert: %s", route.Name),
		Body: fmt.Sprintf("Heavy traffic on '%s'. Travel time is ~%d min (%d min delay).",
			route.Name, RoundMinutes(sample.LiveSeconds), decision.Metrics.DelayMinutes),
		Data: map[string]string{
			"type":      models.AlertTypeTraffic,
			"routeName": route.Name,
			"routeId":   route.ID,
		},
	}
}
