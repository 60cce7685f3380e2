// Package chart renders a signal buffer as a line chart with a dashed mean
// overlay, either as an interactive go-echarts chart or a static PNG.
package chart

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sensors.dashboard/internal/series"
)

// Spec parametrises the renderer for one signal.
type Spec struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Label     string `json:"label"`
	MeanLabel string `json:"mean_label"`
	YAxis     string `json:"y_axis"`
	Color     string `json:"color"`
	MeanColor string `json:"mean_color"`
}

// DefaultMeanColor is used when a Spec leaves MeanColor empty.
const DefaultMeanColor = "blue"

func (s Spec) meanColor() string {
	if s.MeanColor == "" {
		return DefaultMeanColor
	}
	return s.MeanColor
}

func (s Spec) meanLabel() string {
	if s.MeanLabel == "" {
		return "Mean " + s.Label
	}
	return s.MeanLabel
}

// Overlay is the horizontal mean line: two points spanning the first and
// last timestamp at constant height.
type Overlay struct {
	Times  [2]time.Time `json:"times"`
	Values [2]float64   `json:"values"`
}

// Summary describes a non-empty snapshot.
type Summary struct {
	Count   int       `json:"count"`
	Mean    float64   `json:"mean"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	First   time.Time `json:"first"`
	Last    time.Time `json:"last"`
	Overlay Overlay   `json:"overlay"`
}

// Summarize computes the mean and overlay of snap. ok is false when the
// snapshot is empty.
func Summarize(snap series.Snapshot) (sum Summary, ok bool) {
	if snap.Empty() {
		return Summary{}, false
	}
	mean := stat.Mean(snap.Values, nil)
	first := snap.Timestamps[0]
	last := snap.Timestamps[len(snap.Timestamps)-1]
	return Summary{
		Count: len(snap.Values),
		Mean:  mean,
		Min:   floats.Min(snap.Values),
		Max:   floats.Max(snap.Values),
		First: first,
		Last:  last,
		Overlay: Overlay{
			Times:  [2]time.Time{first, last},
			Values: [2]float64{mean, mean},
		},
	}, true
}
