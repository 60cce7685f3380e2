package sth

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/sensors.dashboard/internal/timeutil"
)

// Waveform describes the synthetic signal served for one attribute.
type Waveform struct {
	Base      float64
	Amplitude float64
	Period    time.Duration
}

// DefaultWaveforms covers the four attributes shown on the dashboard.
var DefaultWaveforms = map[string]Waveform{
	"luminosity":  {Base: 60, Amplitude: 30, Period: 5 * time.Minute},
	"humidity":    {Base: 55, Amplitude: 10, Period: 10 * time.Minute},
	"temperature": {Base: 24, Amplitude: 4, Period: 15 * time.Minute},
	"voltage":     {Base: 2.5, Amplitude: 2.4, Period: 2 * time.Minute},
}

// FakeServer imitates the STH-Comet history endpoint for dev mode and tests.
// Sample times are aligned to Step so repeated queries return overlapping,
// identical samples, the way the real store does.
type FakeServer struct {
	Clock     timeutil.Clock
	Step      time.Duration
	Service   string
	Waveforms map[string]Waveform
}

// NewFakeServer returns a FakeServer producing one sample per step.
func NewFakeServer(clock timeutil.Clock, step time.Duration) *FakeServer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if step <= 0 {
		step = 5 * time.Second
	}
	return &FakeServer{
		Clock:     clock,
		Step:      step,
		Service:   DefaultService,
		Waveforms: DefaultWaveforms,
	}
}

// Handler returns the HTTP handler serving the history route.
func (f *FakeServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /STH/v1/contextEntities/type/{type}/id/{id}/attributes/{attr}", f.handleHistory)
	return mux
}

type fakeEnvelope struct {
	ContextResponses []fakeContextResponse `json:"contextResponses"`
}

type fakeContextResponse struct {
	ContextElement fakeContextElement `json:"contextElement"`
	StatusCode     fakeStatus         `json:"statusCode"`
}

type fakeContextElement struct {
	Attributes []fakeAttribute `json:"attributes"`
	ID         string          `json:"id"`
	IsPattern  bool            `json:"isPattern"`
	Type       string          `json:"type"`
}

type fakeAttribute struct {
	Name   string   `json:"name"`
	Values []Sample `json:"values"`
}

type fakeStatus struct {
	Code         string `json:"code"`
	ReasonPhrase string `json:"reasonPhrase"`
}

func (f *FakeServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(HeaderService) != f.Service {
		http.Error(w, `{"error":"BadRequest","message":"unknown fiware-service"}`, http.StatusBadRequest)
		return
	}
	attr := r.PathValue("attr")
	wf, ok := f.Waveforms[attr]
	if !ok {
		http.Error(w, `{"error":"NotFound"}`, http.StatusNotFound)
		return
	}
	lastN := 10
	if v := r.URL.Query().Get("lastN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			lastN = n
		}
	}

	env := fakeEnvelope{ContextResponses: []fakeContextResponse{{
		ContextElement: fakeContextElement{
			Attributes: []fakeAttribute{{Name: attr, Values: f.Samples(wf, lastN)}},
			ID:         r.PathValue("id"),
			Type:       r.PathValue("type"),
		},
		StatusCode: fakeStatus{Code: "200", ReasonPhrase: "OK"},
	}}}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env)
}

// Samples returns the n most recent step-aligned samples of wf, oldest first.
func (f *FakeServer) Samples(wf Waveform, n int) []Sample {
	end := f.Clock.Now().UTC().Truncate(f.Step)
	out := make([]Sample, 0, n)
	for k := n - 1; k >= 0; k-- {
		t := end.Add(-time.Duration(k) * f.Step)
		out = append(out, Sample{
			AttrValue: strconv.FormatFloat(wf.At(t), 'f', 2, 64),
			RecvTime:  t.Format("2006-01-02T15:04:05.000Z"),
		})
	}
	return out
}

// At evaluates the waveform at t.
func (wf Waveform) At(t time.Time) float64 {
	if wf.Period <= 0 {
		return wf.Base
	}
	phase := float64(t.UnixNano()%int64(wf.Period)) / float64(wf.Period)
	return wf.Base + wf.Amplitude*math.Sin(2*math.Pi*phase)
}
