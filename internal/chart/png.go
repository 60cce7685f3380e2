package chart

import (
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sensors.dashboard/internal/series"
)

// PNG dimensions for static exports.
const (
	pngWidth  = 10 * vg.Inch
	pngHeight = 4 * vg.Inch
)

var namedColors = map[string]color.RGBA{
	"red":    {R: 0xe5, G: 0x39, B: 0x35, A: 0xff},
	"green":  {R: 0x43, G: 0xa0, B: 0x47, A: 0xff},
	"orange": {R: 0xfb, G: 0x8c, B: 0x00, A: 0xff},
	"purple": {R: 0x8e, G: 0x24, B: 0xaa, A: 0xff},
	"blue":   {R: 0x1e, G: 0x88, B: 0xe5, A: 0xff},
	"black":  {A: 0xff},
}

// ParseColor maps a CSS colour name from namedColors or a "#rrggbb" string to
// a colour. Unknown values fall back to black.
func ParseColor(s string) color.Color {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c
	}
	if len(s) == 7 && s[0] == '#' {
		if v, err := strconv.ParseUint(s[1:], 16, 32); err == nil {
			return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
		}
	}
	return namedColors["black"]
}

// WritePNG renders the same two series as Line into a PNG image.
func WritePNG(w io.Writer, spec Spec, snap series.Snapshot, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	p := plot.New()
	p.Title.Text = spec.Title
	p.X.Label.Text = "Timestamp"
	p.Y.Label.Text = spec.YAxis
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05", Time: plot.UnixTimeIn(loc)}
	p.Add(plotter.NewGrid())

	sum, ok := Summarize(snap)
	if !ok {
		p.Title.Text = spec.Title + " (no data yet)"
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
	} else {
		xys := make(plotter.XYs, snap.Len())
		for i, v := range snap.Values {
			xys[i] = plotter.XY{X: unixSeconds(snap.Timestamps[i]), Y: v}
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return fmt.Errorf("build %s series: %w", spec.Name, err)
		}
		c := ParseColor(spec.Color)
		line.Color = c
		line.Width = vg.Points(1.5)
		points.Color = c

		meanLine, err := plotter.NewLine(plotter.XYs{
			{X: unixSeconds(sum.Overlay.Times[0]), Y: sum.Overlay.Values[0]},
			{X: unixSeconds(sum.Overlay.Times[1]), Y: sum.Overlay.Values[1]},
		})
		if err != nil {
			return fmt.Errorf("build %s mean: %w", spec.Name, err)
		}
		meanLine.Color = ParseColor(spec.meanColor())
		meanLine.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}

		p.Add(line, points, meanLine)
		p.Legend.Add(spec.Label, line, points)
		p.Legend.Add(spec.meanLabel(), meanLine)
		p.Legend.Top = true
	}

	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("encode %s png: %w", spec.Name, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write %s png: %w", spec.Name, err)
	}
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
