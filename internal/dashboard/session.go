package dashboard

import (
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sensors.dashboard/internal/chart"
	"github.com/banshee-data/sensors.dashboard/internal/series"
)

// Session is the explicit dashboard state shared by the poll and render
// steps: the signal list, their buffers and the display location.
type Session struct {
	ID       uuid.UUID
	Started  time.Time
	Signals  []Signal
	Store    *series.Store
	Location *time.Location
}

// NewSession creates empty buffers for signals. maxHistory <= 0 keeps every
// reading; a nil loc displays UTC.
func NewSession(signals []Signal, maxHistory int, loc *time.Location, started time.Time) *Session {
	if loc == nil {
		loc = time.UTC
	}
	return &Session{
		ID:       uuid.New(),
		Started:  started,
		Signals:  signals,
		Store:    series.NewStore(signalNames(signals), maxHistory),
		Location: loc,
	}
}

// Signal looks up a signal by name.
func (s *Session) Signal(name string) (Signal, bool) {
	for _, sig := range s.Signals {
		if sig.Name == name {
			return sig, true
		}
	}
	return Signal{}, false
}

// Panel snapshots one signal for rendering.
func (s *Session) Panel(sig Signal) chart.Panel {
	snap, err := s.Store.Snapshot(sig.Name)
	if err != nil {
		// signals and store are built together; an unknown name renders empty
		snap = series.Snapshot{}
	}
	return chart.Panel{Spec: sig.Chart, Snapshot: snap}
}

// Panels snapshots every signal in display order.
func (s *Session) Panels() []chart.Panel {
	panels := make([]chart.Panel, 0, len(s.Signals))
	for _, sig := range s.Signals {
		panels = append(panels, s.Panel(sig))
	}
	return panels
}
