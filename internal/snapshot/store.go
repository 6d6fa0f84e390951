package snapshot

import (
	"sync"
	"sync/atomic"
	"time"
)

// Status describes the producer as seen by readers.
type Status struct {
	Ready               bool      `json:"ready"`
	State               string    `json:"state"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastAttempt         time.Time `json:"last_attempt,omitzero"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	Stale               bool      `json:"stale"`
}

// Reader is the read side handed to the API and other consumers.
type Reader interface {
	// Latest returns the newest snapshot or ErrNotReady.
	Latest() (*Snapshot, error)
	// Current returns the newest snapshot (nil before the first) and status.
	Current() (*Snapshot, Status)
	// Subscribe delivers each new snapshot; cancel releases the channel.
	Subscribe() (<-chan *Snapshot, func())
}

// Store holds the latest snapshot. One producer publishes; any number of
// readers load it without locks.
// ⭐ SSOT: 최신 스냅샷은 여기서만 보관
type Store struct {
	latest atomic.Pointer[Snapshot]
	status atomic.Pointer[Status]

	staleAfter time.Duration
	now        func() time.Time

	subMu sync.Mutex
	subs  map[int]chan *Snapshot
	next  int
}

// NewStore creates an empty store. A published snapshot older than
// staleAfter is reported stale; 0 disables staleness.
func NewStore(staleAfter time.Duration) *Store {
	s := &Store{
		staleAfter: staleAfter,
		now:        time.Now,
		subs:       make(map[int]chan *Snapshot),
	}
	s.status.Store(&Status{State: "idle"})
	return s
}

var _ Reader = (*Store)(nil)

// Publish makes snap the current snapshot and resets the failure count.
func (s *Store) Publish(snap *Snapshot) {
	s.latest.Store(snap)

	st := *s.status.Load()
	st.Ready = true
	st.LastSuccess = snap.CapturedAt
	st.LastAttempt = snap.CapturedAt
	st.ConsecutiveFailures = 0
	st.LastError = ""
	s.status.Store(&st)

	s.broadcast(snap)
}

// RecordFailure notes a failed cycle. The published snapshot is untouched.
func (s *Store) RecordFailure(at time.Time, err error) int {
	st := *s.status.Load()
	st.LastAttempt = at
	st.ConsecutiveFailures++
	if err != nil {
		st.LastError = err.Error()
	}
	s.status.Store(&st)
	return st.ConsecutiveFailures
}

// SetState records the producer's current state.
func (s *Store) SetState(state string) {
	st := *s.status.Load()
	st.State = state
	s.status.Store(&st)
}

func (s *Store) Latest() (*Snapshot, error) {
	snap := s.latest.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

func (s *Store) Current() (*Snapshot, Status) {
	snap := s.latest.Load()
	return snap, s.Status()
}

// Status returns a copy of the producer status with staleness evaluated now.
func (s *Store) Status() Status {
	st := *s.status.Load()
	if st.Ready && s.staleAfter > 0 {
		st.Stale = s.now().Sub(st.LastSuccess) > s.staleAfter
	}
	return st
}

// Subscribe returns a single-slot channel: a slow reader sees only the
// newest snapshot, never a backlog.
func (s *Store) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)

	s.subMu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) broadcast(snap *Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
