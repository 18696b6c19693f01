package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/agri-weather-dashboard/internal/observability"
	"github.com/i474232898/agri-weather-dashboard/internal/selection"
	"github.com/i474232898/agri-weather-dashboard/internal/weather"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStateConflict is returned when a state update was based on a
	// revision that is no longer current.
	ErrStateConflict = errors.New("selection changed concurrently")
)

// Session is one dashboard's selector state and its last applied query result.
type Session struct {
	ID        string          `json:"id"`
	State     selection.State `json:"state"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`

	// Generation increases with every state change and every query start.
	Generation uint64 `json:"generation"`

	// Revision increases with every state change only.
	Revision uint64 `json:"revision"`

	Result *weather.Page[weather.DailyRecord] `json:"-"`
}

// SessionStore keeps sessions in memory with age and count retention.
type SessionStore struct {
	mu   sync.Mutex
	data map[string]*Session

	// retention configuration
	maxAge   time.Duration // sessions idle longer than this are dropped
	maxCount int           // oldest sessions are evicted beyond this

	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewSessionStore creates a store. maxAge and maxCount <= 0 mean unlimited.
// clock and metrics may be nil.
func NewSessionStore(maxAge time.Duration, maxCount int, clock clockwork.Clock, metrics *observability.Metrics) *SessionStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionStore{
		data:     make(map[string]*Session),
		maxAge:   maxAge,
		maxCount: maxCount,
		clock:    clock,
		metrics:  metrics,
	}
}

// Create starts a new session with the given state.
func (s *SessionStore) Create(state selection.State) Session {
	now := s.clock.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.data[sess.ID] = sess
	s.evictLocked(sess.ID)
	s.reportLocked()
	return *sess
}

// Get returns a copy of a session and marks it as used.
func (s *SessionStore) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(id)
	if err != nil {
		return Session{}, err
	}
	sess.UpdatedAt = s.clock.Now()
	return *sess, nil
}

// SetState replaces a session's selector state if its revision is still
// base, and returns ErrStateConflict otherwise. Any query started before the
// change becomes stale, and the previous result is dropped.
func (s *SessionStore) SetState(id string, base uint64, state selection.State) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(id)
	if err != nil {
		return Session{}, err
	}
	if sess.Revision != base {
		return Session{}, ErrStateConflict
	}
	sess.State = state
	sess.Revision++
	sess.Generation++
	sess.Result = nil
	sess.UpdatedAt = s.clock.Now()
	return *sess, nil
}

// BeginQuery registers a new query and returns the session as of that moment.
// The query must be built from the returned State, and its result committed
// with the returned Generation. Only the latest started query can commit.
func (s *SessionStore) BeginQuery(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(id)
	if err != nil {
		return Session{}, err
	}
	sess.Generation++
	sess.UpdatedAt = s.clock.Now()
	return *sess, nil
}

// CommitResult stores a query result if gen is still the latest generation.
// It reports whether the result was applied.
func (s *SessionStore) CommitResult(id string, gen uint64, result weather.Page[weather.DailyRecord]) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(id)
	if err != nil {
		return false, err
	}
	if gen != sess.Generation {
		if s.metrics != nil {
			s.metrics.StaleResults.Inc()
		}
		return false, nil
	}
	sess.Result = &result
	sess.UpdatedAt = s.clock.Now()
	return true, nil
}

// Delete removes a session. Unknown ids are ignored.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, id)
	s.reportLocked()
}

// Prune drops expired sessions and returns how many were removed.
func (s *SessionStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.pruneLocked(s.clock.Now())
	s.reportLocked()
	return n
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *SessionStore) lookupLocked(id string) (*Session, error) {
	sess, ok := s.data[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.expired(sess, s.clock.Now()) {
		delete(s.data, id)
		s.reportLocked()
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionStore) expired(sess *Session, now time.Time) bool {
	return s.maxAge > 0 && now.Sub(sess.UpdatedAt) > s.maxAge
}

func (s *SessionStore) pruneLocked(now time.Time) int {
	if s.maxAge <= 0 {
		return 0
	}
	n := 0
	for id, sess := range s.data {
		if s.expired(sess, now) {
			delete(s.data, id)
			n++
		}
	}
	return n
}

// evictLocked removes the least recently used sessions beyond maxCount,
// never the one named by keep.
func (s *SessionStore) evictLocked(keep string) {
	for s.maxCount > 0 && len(s.data) > s.maxCount {
		var oldest *Session
		for id, sess := range s.data {
			if id == keep {
				continue
			}
			if oldest == nil || sess.UpdatedAt.Before(oldest.UpdatedAt) {
				oldest = sess
			}
		}
		delete(s.data, oldest.ID)
	}
}

func (s *SessionStore) reportLocked() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(len(s.data)))
	}
}
