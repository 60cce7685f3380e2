package dashboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/sensors.dashboard/internal/series"
	"github.com/banshee-data/sensors.dashboard/internal/sth"
	"github.com/banshee-data/sensors.dashboard/internal/units"
)

// ToReadings converts raw STH samples into readings in loc. A value or
// timestamp that does not parse rejects the whole batch.
func ToReadings(samples []sth.Sample, loc *time.Location) ([]series.Reading, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	stamps := make([]string, len(samples))
	for i, s := range samples {
		stamps[i] = s.RecvTime
	}
	times, err := units.NormalizeTimestamps(stamps, loc)
	if err != nil {
		return nil, err
	}

	out := make([]series.Reading, len(samples))
	for i, s := range samples {
		v, err := strconv.ParseFloat(strings.TrimSpace(s.AttrValue), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d (%q): %w", i, s.AttrValue, err)
		}
		out[i] = series.Reading{Time: times[i], Value: v}
	}
	return out, nil
}
