// Package store holds the authoritative in-memory table of lift states.
//
// Lift records are written only by the update scheduler (Replace, Merge,
// Clear) and the connection status only by the stream status callback
// (SetStatus). Everything else reads.
package store

import (
	"maps"
	"sync"

	"smartlift_monitor/internal/models"
)

// UpdateKind tells subscribers what changed.
type UpdateKind string

const (
	UpdateSnapshot UpdateKind = "snapshot"
	UpdateDiff     UpdateKind = "diff"
	UpdateClear    UpdateKind = "clear"
	UpdateStatus   UpdateKind = "status"
)

// Update is delivered to subscribers after every write.
// For UpdateDiff, Lifts holds only the changed records.
type Update struct {
	Kind    UpdateKind             `json:"kind"`
	Version uint64                 `json:"version"`
	Lifts   map[string]models.Lift `json:"lifts,omitempty"`
	Status  models.ConnStatus      `json:"status"`
}

// Store maps lift id to its latest projected state.
type Store struct {
	mu      sync.RWMutex
	lifts   map[string]models.Lift
	status  models.ConnStatus
	version uint64

	subMu  sync.Mutex
	subs   map[int]chan Update
	nextID int
}

// New returns an empty store in the connecting state.
func New() *Store {
	return &Store{
		lifts:  make(map[string]models.Lift),
		status: models.StatusConnecting,
		subs:   make(map[int]chan Update),
	}
}

// Replace swaps the whole table for lifts.
func (s *Store) Replace(lifts map[string]models.Lift) {
	next := make(map[string]models.Lift, len(lifts))
	maps.Copy(next, lifts)

	s.mu.Lock()
	s.lifts = next
	s.version++
	u := Update{Kind: UpdateSnapshot, Version: s.version, Lifts: copyLifts(next), Status: s.status}
	s.mu.Unlock()

	s.publish(u)
}

// Merge overwrites the given lifts and leaves every other key untouched.
func (s *Store) Merge(lifts map[string]models.Lift) {
	if len(lifts) == 0 {
		return
	}
	s.mu.Lock()
	maps.Copy(s.lifts, lifts)
	s.version++
	u := Update{Kind: UpdateDiff, Version: s.version, Lifts: copyLifts(lifts), Status: s.status}
	s.mu.Unlock()

	s.publish(u)
}

// Clear drops every lift.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lifts = make(map[string]models.Lift)
	s.version++
	u := Update{Kind: UpdateClear, Version: s.version, Status: s.status}
	s.mu.Unlock()

	s.publish(u)
}

// SetStatus records the stream connection status. Lift data is kept as is.
func (s *Store) SetStatus(st models.ConnStatus) {
	s.mu.Lock()
	if s.status == st {
		s.mu.Unlock()
		return
	}
	s.status = st
	u := Update{Kind: UpdateStatus, Version: s.version, Status: st}
	s.mu.Unlock()

	s.publish(u)
}

// Lifts returns a copy of the current table.
func (s *Store) Lifts() map[string]models.Lift {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyLifts(s.lifts)
}

// Get returns one lift.
func (s *Store) Get(id string) (models.Lift, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lifts[id]
	return l, ok
}

// Len returns the number of known lifts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lifts)
}

// Status returns the current connection status.
func (s *Store) Status() models.ConnStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Version increases by one on every lift write.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers a listener. Updates that do not fit in the buffer are
// dropped for that subscriber; the returned cancel func closes the channel.
func (s *Store) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Update, buffer)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) publish(u Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func copyLifts(in map[string]models.Lift) map[string]models.Lift {
	out := make(map[string]models.Lift, len(in))
	maps.Copy(out, in)
	return out
}
