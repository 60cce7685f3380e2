package series

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownSignal is returned for a signal name the store was not built with.
var ErrUnknownSignal = errors.New("unknown signal")

// Store owns one Buffer per signal for the lifetime of a dashboard session.
// Writers are the poll loop; readers are the HTTP handlers, which only ever
// see Snapshots.
type Store struct {
	mu      sync.RWMutex
	order   []string
	buffers map[string]*Buffer
}

// NewStore creates a buffer for each name. maxLen <= 0 means unbounded.
func NewStore(names []string, maxLen int) *Store {
	s := &Store{buffers: make(map[string]*Buffer, len(names))}
	for _, name := range names {
		if _, dup := s.buffers[name]; dup {
			continue
		}
		s.order = append(s.order, name)
		s.buffers[name] = NewBuffer(maxLen)
	}
	return s
}

// Names returns the signal names in creation order.
func (s *Store) Names() []string {
	return append([]string(nil), s.order...)
}

// Append adds readings to the named buffer unconditionally.
func (s *Store) Append(name string, readings []Reading) (added, size int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buffers[name]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
	}
	added = b.Append(readings...)
	return added, b.Len(), nil
}

// AppendNewer adds only the readings newer than the buffer's last timestamp,
// in time order, keeping the buffer sorted. An empty batch is a no-op.
func (s *Store) AppendNewer(name string, readings []Reading) (added, size int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buffers[name]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
	}
	if len(readings) == 0 {
		return 0, b.Len(), nil
	}
	var cutoff Reading
	if last, ok := b.Last(); ok {
		cutoff = last
	}
	added = b.Append(NewerThan(readings, cutoff.Time)...)
	return added, b.Len(), nil
}

// Snapshot returns a copy of the named buffer.
func (s *Store) Snapshot(name string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buffers[name]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
	}
	return b.Snapshot(), nil
}

// Len returns the size of the named buffer, or 0 if unknown.
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.buffers[name]; ok {
		return b.Len()
	}
	return 0
}
