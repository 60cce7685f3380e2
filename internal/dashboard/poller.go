package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/sensors.dashboard/internal/metrics"
	"github.com/banshee-data/sensors.dashboard/internal/monitoring"
	"github.com/banshee-data/sensors.dashboard/internal/sth"
	"github.com/banshee-data/sensors.dashboard/internal/timeutil"
)

// Poll defaults.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultLastN        = 10
	DefaultFetchTimeout = 5 * time.Second
)

// Fetcher retrieves raw samples for one query. Implementations report
// failures by returning no samples.
type Fetcher interface {
	Fetch(ctx context.Context, q sth.Query) []sth.Sample
}

// State is the poller's position in its tick cycle.
type State int32

const (
	StateIdle State = iota
	StateFetching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	default:
		return "unknown"
	}
}

// SignalResult records what one cycle did to one signal.
type SignalResult struct {
	Signal   string `json:"signal"`
	Fetched  int    `json:"fetched"`
	Appended int    `json:"appended"`
	Size     int    `json:"size"`
	Error    string `json:"error,omitempty"`
}

// CycleReport summarises one poll cycle.
type CycleReport struct {
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration_ns"`
	Results  []SignalResult `json:"results"`
}

// Appended is the total number of readings added across signals.
func (r CycleReport) Appended() int {
	n := 0
	for _, res := range r.Results {
		n += res.Appended
	}
	return n
}

// PollerConfig controls tick period and query size.
type PollerConfig struct {
	Interval     time.Duration
	LastN        int
	FetchTimeout time.Duration
	Clock        timeutil.Clock
}

// Poller fetches every signal once per tick and appends new readings to the
// session's buffers.
type Poller struct {
	session *Session
	fetcher Fetcher
	cfg     PollerConfig

	state  atomic.Int32
	cycles atomic.Int64

	mu   sync.Mutex
	last *CycleReport
}

// NewPoller creates a poller. Zero config fields take the package defaults.
func NewPoller(session *Session, fetcher Fetcher, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.LastN <= 0 {
		cfg.LastN = DefaultLastN
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Poller{session: session, fetcher: fetcher, cfg: cfg}
}

// State reports whether a cycle is in flight.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// Cycles returns the number of completed cycles.
func (p *Poller) Cycles() int64 {
	return p.cycles.Load()
}

// Interval returns the effective tick period.
func (p *Poller) Interval() time.Duration {
	return p.cfg.Interval
}

// LastReport returns the most recent cycle report, if any.
func (p *Poller) LastReport() (CycleReport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return CycleReport{}, false
	}
	return *p.last, true
}

// Run polls once immediately and then on every tick until ctx is cancelled.
// Ticks that arrive during a cycle are dropped by the ticker, not queued.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.cfg.Clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	monitoring.Logf("polling %d signals every %s (lastN=%d)",
		len(p.session.Signals), p.cfg.Interval, p.cfg.LastN)
	p.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("poller stopped after %d cycles", p.Cycles())
			return nil
		case <-ticker.C():
			p.PollOnce(ctx)
		}
	}
}

// PollOnce runs a single cycle: all signals are fetched concurrently, each
// bounded by the fetch timeout, then committed to the buffers in signal
// order.
func (p *Poller) PollOnce(ctx context.Context) CycleReport {
	p.state.Store(int32(StateFetching))
	defer p.state.Store(int32(StateIdle))

	start := p.cfg.Clock.Now()
	signals := p.session.Signals
	fetched := make([][]sth.Sample, len(signals))

	var g errgroup.Group
	for i, sig := range signals {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
			defer cancel()
			fetched[i] = p.fetcher.Fetch(fctx, sig.Query(p.cfg.LastN))
			return nil
		})
	}
	_ = g.Wait()

	report := CycleReport{Started: start, Results: make([]SignalResult, len(signals))}
	for i, sig := range signals {
		report.Results[i] = p.commit(sig, fetched[i])
	}
	report.Duration = p.cfg.Clock.Since(start)

	p.mu.Lock()
	p.last = &report
	p.mu.Unlock()
	p.cycles.Add(1)
	metrics.IncPollCycle()

	monitoring.WithFields(logrus.Fields{
		"cycle":    p.Cycles(),
		"appended": report.Appended(),
		"duration": report.Duration,
	}).Debug("poll cycle complete")
	return report
}

func (p *Poller) commit(sig Signal, samples []sth.Sample) SignalResult {
	res := SignalResult{Signal: sig.Name, Fetched: len(samples)}
	store := p.session.Store

	if len(samples) == 0 {
		res.Size = store.Len(sig.Name)
		return res
	}

	readings, err := ToReadings(samples, p.session.Location)
	if err != nil {
		monitoring.WithSignal(sig.Name).Warnf("rejecting %d samples: %v", len(samples), err)
		res.Error = err.Error()
		res.Size = store.Len(sig.Name)
		return res
	}

	added, size, err := store.AppendNewer(sig.Name, readings)
	if err != nil {
		monitoring.WithSignal(sig.Name).Errorf("append: %v", err)
		res.Error = err.Error()
		return res
	}
	res.Appended = added
	res.Size = size
	metrics.RecordAppend(sig.Name, added, size)
	return res
}
