package chart

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/sensors.dashboard/internal/series"
)

// DefaultAssetsHost serves the echarts JavaScript bundle.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// axisTimeLayout is parsed by the echarts time axis as local wall-clock time,
// so the browser shows the display timezone regardless of its own zone.
const axisTimeLayout = "2006-01-02 15:04:05.000"

// Options controls chart presentation.
type Options struct {
	AssetsHost string
	Width      string
	Height     string
	Location   *time.Location
}

func (o Options) withDefaults() Options {
	if o.AssetsHost == "" {
		o.AssetsHost = DefaultAssetsHost
	}
	if o.Width == "" {
		o.Width = "100%"
	}
	if o.Height == "" {
		o.Height = "420px"
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Line builds the interactive chart for one signal: the raw series with point
// markers and, when there is data, the dashed mean overlay. An empty snapshot
// yields a chart with no series.
func Line(spec Spec, snap series.Snapshot, o Options) *charts.Line {
	o = o.withDefaults()

	subtitle := "no data yet"
	sum, ok := Summarize(snap)
	if ok {
		subtitle = fmt.Sprintf("points=%d mean=%.2f last=%s",
			sum.Count, sum.Mean, sum.Last.In(o.Location).Format("15:04:05"))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  spec.Title,
			ChartID:    "chart-" + spec.Name,
			Width:      o.Width,
			Height:     o.Height,
			AssetsHost: o.AssetsHost,
		}),
		charts.WithTitleOpts(opts.Title{Title: spec.Title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Timestamp", Type: "time", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: spec.YAxis, NameLocation: "middle", NameGap: 40}),
	)

	if !ok {
		return line
	}

	raw := make([]opts.LineData, 0, snap.Len())
	for i, v := range snap.Values {
		raw = append(raw, opts.LineData{Value: []interface{}{axisTime(snap.Timestamps[i], o.Location), v}})
	}
	line.AddSeries(spec.Label, raw,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true), Symbol: "circle"}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: spec.Color}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: spec.Color}),
	)

	mean := []opts.LineData{
		{Value: []interface{}{axisTime(sum.Overlay.Times[0], o.Location), sum.Overlay.Values[0]}},
		{Value: []interface{}{axisTime(sum.Overlay.Times[1], o.Location), sum.Overlay.Values[1]}},
	}
	line.AddSeries(spec.meanLabel(), mean,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: spec.meanColor(), Type: "dashed"}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: spec.meanColor()}),
	)
	return line
}

func axisTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(axisTimeLayout)
}

// Panel pairs a Spec with the data it should show.
type Panel struct {
	Spec     Spec
	Snapshot series.Snapshot
}

// PageConfig describes a multi-chart dashboard page.
type PageConfig struct {
	Title string
	// RefreshInterval reloads the page periodically; zero disables it.
	RefreshInterval time.Duration
	Options         Options
}

// RenderPage writes an HTML page with one chart per panel, in order.
func RenderPage(w io.Writer, cfg PageConfig, panels []Panel) error {
	o := cfg.Options.withDefaults()

	page := components.NewPage()
	page.PageTitle = cfg.Title
	page.SetAssetsHost(o.AssetsHost)
	page.SetLayout(components.PageFlexLayout)
	for _, p := range panels {
		page.AddCharts(Line(p.Spec, p.Snapshot, o))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	doc := injectHeader(buf.Bytes(), cfg.Title)
	doc = injectRefresh(doc, cfg.RefreshInterval)
	_, err := w.Write(doc)
	return err
}

// RenderChart writes a standalone HTML page for one panel.
func RenderChart(w io.Writer, p Panel, o Options) error {
	line := Line(p.Spec, p.Snapshot, o)
	if err := line.Render(w); err != nil {
		return fmt.Errorf("render %s chart: %w", p.Spec.Name, err)
	}
	return nil
}

func injectHeader(doc []byte, title string) []byte {
	if title == "" {
		return doc
	}
	header := fmt.Sprintf(`<h1 style="font-family:sans-serif;text-align:center">%s</h1>`, html.EscapeString(title))
	return injectAfter(doc, []byte("<body>"), []byte(header))
}

func injectRefresh(doc []byte, every time.Duration) []byte {
	if every <= 0 {
		return doc
	}
	script := fmt.Sprintf(
		`<script type="text/javascript">setInterval(function () { window.location.reload(); }, %d);</script>`,
		every.Milliseconds())
	idx := bytes.LastIndex(doc, []byte("</body>"))
	if idx < 0 {
		return append(doc, script...)
	}
	out := make([]byte, 0, len(doc)+len(script))
	out = append(out, doc[:idx]...)
	out = append(out, script...)
	return append(out, doc[idx:]...)
}

func injectAfter(doc, marker, insert []byte) []byte {
	idx := bytes.Index(doc, marker)
	if idx < 0 {
		return doc
	}
	idx += len(marker)
	out := make([]byte, 0, len(doc)+len(insert))
	out = append(out, doc[:idx]...)
	out = append(out, insert...)
	return append(out, doc[idx:]...)
}
