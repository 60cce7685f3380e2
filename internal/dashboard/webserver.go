package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/sensors.dashboard/internal/chart"
	"github.com/banshee-data/sensors.dashboard/internal/httputil"
	"github.com/banshee-data/sensors.dashboard/internal/metrics"
	"github.com/banshee-data/sensors.dashboard/internal/monitoring"
	"github.com/banshee-data/sensors.dashboard/internal/security"
	"github.com/banshee-data/sensors.dashboard/internal/series"
	"github.com/banshee-data/sensors.dashboard/internal/version"
)

// DefaultTitle heads the dashboard page.
const DefaultTitle = "Sensor Dashboard: LDR, DHT22 and Voltmeter"

// DefaultRefreshInterval matches the poll interval so each reload can show a
// new cycle.
const DefaultRefreshInterval = 10 * time.Second

// WebServer serves the dashboard page, per-signal charts and JSON views of
// the session buffers.
type WebServer struct {
	address         string
	session         *Session
	poller          *Poller
	title           string
	refreshInterval time.Duration
	assetsHost      string
	server          *http.Server
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address         string
	Session         *Session
	Poller          *Poller
	Title           string
	RefreshInterval time.Duration
	AssetsHost      string
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:         config.Address,
		session:         config.Session,
		poller:          config.Poller,
		title:           config.Title,
		refreshInterval: config.RefreshInterval,
		assetsHost:      config.AssetsHost,
	}
	if ws.title == "" {
		ws.title = DefaultTitle
	}
	if ws.refreshInterval <= 0 {
		ws.refreshInterval = DefaultRefreshInterval
	}

	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Handler exposes the route table, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start binds the configured address and serves until ctx is cancelled.
func (ws *WebServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ws.address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", ws.address, err)
	}
	return ws.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (ws *WebServer) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ln.Addr())
		if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}

	monitoring.Logf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", ws.handleDashboard)
	mux.HandleFunc("GET /chart/{signal}", ws.handleChart)
	mux.HandleFunc("GET /api/signals", ws.handleSignals)
	mux.HandleFunc("GET /api/signals/{signal}", ws.handleSignal)
	mux.HandleFunc("GET /api/status", ws.handleStatus)
	mux.HandleFunc("GET /health", ws.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

func (ws *WebServer) chartOptions() chart.Options {
	return chart.Options{AssetsHost: ws.assetsHost, Location: ws.session.Location}
}

// handleDashboard renders every signal's chart on one self-refreshing page.
func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := chart.RenderPage(&buf, chart.PageConfig{
		Title:           ws.title,
		RefreshInterval: ws.refreshInterval,
		Options:         ws.chartOptions(),
	}, ws.session.Panels())
	if err != nil {
		monitoring.Logf("render dashboard: %v", err)
		httputil.InternalServerError(w, "failed to render dashboard")
		return
	}
	httputil.WriteHTML(w, buf.Bytes())
}

// handleChart renders one signal as HTML, or as PNG when the name carries a
// .png suffix. A "download" query parameter on the PNG form adds an
// attachment filename.
func (ws *WebServer) handleChart(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("signal")
	asPNG := strings.HasSuffix(name, ".png")
	name = strings.TrimSuffix(name, ".png")

	sig, ok := ws.session.Signal(name)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("unknown signal %q", name))
		return
	}
	panel := ws.session.Panel(sig)

	var buf bytes.Buffer
	if asPNG {
		if err := chart.WritePNG(&buf, panel.Spec, panel.Snapshot, ws.session.Location); err != nil {
			monitoring.WithSignal(name).Errorf("render png: %v", err)
			httputil.InternalServerError(w, "failed to render chart")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if r.URL.Query().Has("download") {
			filename := security.SanitizeFilename(fmt.Sprintf("%s-%s.png",
				name, time.Now().In(ws.session.Location).Format("20060102-150405")))
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		}
		_, _ = w.Write(buf.Bytes())
		return
	}

	if err := chart.RenderChart(&buf, panel, ws.chartOptions()); err != nil {
		monitoring.WithSignal(name).Errorf("render chart: %v", err)
		httputil.InternalServerError(w, "failed to render chart")
		return
	}
	httputil.WriteHTML(w, buf.Bytes())
}

type signalSummary struct {
	Signal
	Points  int            `json:"points"`
	Summary *chart.Summary `json:"summary,omitempty"`
}

// handleSignals lists every signal with its buffer summary.
func (ws *WebServer) handleSignals(w http.ResponseWriter, r *http.Request) {
	out := make([]signalSummary, 0, len(ws.session.Signals))
	for _, sig := range ws.session.Signals {
		panel := ws.session.Panel(sig)
		s := signalSummary{Signal: sig, Points: panel.Snapshot.Len()}
		if sum, ok := chart.Summarize(panel.Snapshot); ok {
			s.Summary = &sum
		}
		out = append(out, s)
	}
	httputil.WriteJSONOK(w, out)
}

type signalPoints struct {
	Signal   string `json:"signal"`
	Timezone string `json:"timezone"`
	series.Snapshot
}

// handleSignal returns the buffered readings of one signal, timestamps in
// the display timezone.
func (ws *WebServer) handleSignal(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("signal")
	snap, err := ws.session.Store.Snapshot(name)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	if snap.Timestamps == nil {
		snap = series.Snapshot{Timestamps: []time.Time{}, Values: []float64{}}
	}
	httputil.WriteJSONOK(w, signalPoints{
		Signal:   name,
		Timezone: ws.session.Location.String(),
		Snapshot: snap,
	})
}

type statusResponse struct {
	SessionID    string       `json:"session_id"`
	Started      time.Time    `json:"started"`
	Version      string       `json:"version"`
	GitSHA       string       `json:"git_sha"`
	BuildTime    string       `json:"build_time"`
	State        string       `json:"state"`
	PollInterval string       `json:"poll_interval"`
	Cycles       int64        `json:"cycles"`
	LastCycle    *CycleReport `json:"last_cycle"`
}

// handleStatus reports session and poller state.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		SessionID: ws.session.ID.String(),
		Started:   ws.session.Started,
		Version:   version.Version,
		GitSHA:    version.GitSHA,
		BuildTime: version.BuildTime,
		State:     StateIdle.String(),
	}
	if ws.poller != nil {
		resp.State = ws.poller.State().String()
		resp.PollInterval = ws.poller.Interval().String()
		resp.Cycles = ws.poller.Cycles()
		if last, ok := ws.poller.LastReport(); ok {
			resp.LastCycle = &last
		}
	}
	httputil.WriteJSONOK(w, resp)
}

// handleHealth handles the health check endpoint
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":    "ok",
		"service":   "sensors-dashboard",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
