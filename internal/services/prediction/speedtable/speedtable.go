// Package speedtable is a lookup model: a base speed per time slot and day
// type, adjusted linearly by segment length.
package speedtable

import (
	"context"
	"math"
	"os"

	"github.com/BearBump/RouteWatch/internal/services/prediction"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v4"
)

type Slot struct {
	Time         int     `yaml:"time"`
	IsWeekday    int     `yaml:"is_weekday"`
	BaseSpeedKmh float64 `yaml:"base_speed_kmh"`
}

type Table struct {
	Name string `yaml:"name"`

	// Added per km of segment length, up to MaxDistanceKm.
	SpeedPerKm    float64 `yaml:"speed_per_km"`
	MaxDistanceKm float64 `yaml:"max_distance_km"`
	MinSpeedKmh   float64 `yaml:"min_speed_kmh"`
	MaxSpeedKmh   float64 `yaml:"max_speed_kmh"`
	Slots         []Slot  `yaml:"slots"`

	index map[[2]int]float64
}

// Default is a coarse city profile used when no model file is configured.
func Default() *Table {
	t := &Table{
		Name:          "speed table (built-in)",
		SpeedPerKm:    1.5,
		MaxDistanceKm: 20,
		MinSpeedKmh:   5,
		MaxSpeedKmh:   90,
		Slots: []Slot{
			{Time: 8, IsWeekday: 1, BaseSpeedKmh: 24},
			{Time: 14, IsWeekday: 1, BaseSpeedKmh: 38},
			{Time: 20, IsWeekday: 1, BaseSpeedKmh: 31},
			{Time: 8, IsWeekday: 0, BaseSpeedKmh: 46},
			{Time: 14, IsWeekday: 0, BaseSpeedKmh: 41},
			{Time: 20, IsWeekday: 0, BaseSpeedKmh: 44},
		},
	}
	_ = t.build()
	return t
}

func Load(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read speed table")
	}
	return Parse(b)
}

func Parse(b []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, errors.Wrap(err, "decode speed table")
	}
	if t.Name == "" {
		t.Name = "speed table"
	}
	if err := t.build(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) build() error {
	if len(t.Slots) == 0 {
		return errors.New("speed table has no slots")
	}
	t.index = make(map[[2]int]float64, len(t.Slots))
	for _, s := range t.Slots {
		if s.BaseSpeedKmh < 0 {
			return errors.Errorf("negative base speed for time=%d is_weekday=%d", s.Time, s.IsWeekday)
		}
		t.index[[2]int{s.Time, s.IsWeekday}] = s.BaseSpeedKmh
	}
	return nil
}

func (t *Table) Source() string { return t.Name }

func (t *Table) PredictSpeed(ctx context.Context, q prediction.Query, distanceKm float64) (float64, error) {
	base, ok := t.index[[2]int{q.Time, q.IsWeekday}]
	if !ok {
		return 0, errors.Errorf("no slot for time=%d is_weekday=%d", q.Time, q.IsWeekday)
	}
	d := distanceKm
	if t.MaxDistanceKm > 0 {
		d = math.Min(d, t.MaxDistanceKm)
	}
	v := base + t.SpeedPerKm*d
	if t.MinSpeedKmh > 0 {
		v = math.Max(v, t.MinSpeedKmh)
	}
	if t.MaxSpeedKmh > 0 {
		v = math.Min(v, t.MaxSpeedKmh)
	}
	return v, nil
}
