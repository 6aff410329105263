/*
Package session implements issuance and expiry of the opaque per-browser session tokens.

A session is the durable identity of a browser: it outlives any single WebSocket
connection, which is what makes reconnecting into a running game possible. The Store
owns every Session's lifetime, expires idle entries lazily on access, and runs a
periodic sweep so abandoned sessions do not accumulate.
*/
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"omokhub/internal/pkg/logx"
)

const (
	// IDLength is the canonical session identifier length (UUID v4 text form).
	IDLength = 36

	// sweepInterval is how often the background sweep removes expired sessions.
	sweepInterval = 10 * time.Minute
)

// Session records the identity and activity of one browser.
type Session struct {
	// ID is the opaque token handed to the client.
	ID string

	// CreatedAt is when the session was first issued.
	CreatedAt time.Time

	// LastSeenAt is updated on every request carrying this session.
	LastSeenAt time.Time

	// RoomID is the room this session currently occupies, empty when none.
	RoomID string
}

// Store is the concurrent-safe owner of all sessions.
type Store struct {
	// mu protects concurrent access to sessions.
	mu sync.RWMutex

	// sessions maps session ID to its record.
	sessions map[string]*Session

	// ttl is the idle duration after which a session expires.
	ttl time.Duration

	// now returns the current time; replaced in tests to drive expiry deterministically.
	now func() time.Time

	// stop terminates the background sweep goroutine.
	stop chan struct{}

	// wg waits for the sweep goroutine during Close.
	wg sync.WaitGroup

	// structured logger with Store context.
	logger zerolog.Logger
}

// NewStore creates a Store with the given idle TTL and starts the periodic sweep.
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
		logger:   logx.Logger().With().Str("component", "session_store").Logger(),
	}

	s.wg.Add(1)
	go s.sweepLoop()

	return s
}

// Create issues a new session with a globally unique identifier.
// The identifier is regenerated on the (practically impossible) collision
// with a live session, so uniqueness holds unconditionally.
func (s *Store) Create() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	for {
		id = uuid.New().String()
		if _, exists := s.sessions[id]; !exists {
			break
		}
	}

	now := s.now()
	sess := &Session{
		ID:         id,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	s.sessions[id] = sess

	s.logger.Debug().Str("session_id", id).Msg("Session created")

	copied := *sess
	return &copied
}

// Validate reports whether id matches the canonical session format:
// 36 characters, hyphens at offsets 8/13/18/23, lowercase or uppercase hex elsewhere.
// It rejects malformed client-supplied identifiers before they reach any lookup.
func Validate(id string) bool {
	if len(id) != IDLength {
		return false
	}

	for i, c := range id {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
			if !isHex {
				return false
			}
		}
	}

	return true
}

// Touch refreshes the session's LastSeenAt. It returns false (and removes the
// session) when the session is absent or its idle TTL has elapsed; the caller
// then treats the client as brand new.
func (s *Store) Touch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}

	now := s.now()
	if s.expiredLocked(sess, now) {
		delete(s.sessions, id)
		s.logger.Debug().Str("session_id", id).Msg("Session expired on touch")
		return false
	}

	sess.LastSeenAt = now
	return true
}

// Get returns a copy of the session, expiring it lazily if its TTL elapsed.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}

	if s.expiredLocked(sess, s.now()) {
		delete(s.sessions, id)
		s.logger.Debug().Str("session_id", id).Msg("Session expired on access")
		return nil, false
	}

	copied := *sess
	return &copied, true
}

// BindRoom records the room this session currently occupies.
func (s *Store) BindRoom(id, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.RoomID = roomID
	}
}

// ClearRoom detaches the session from whatever room it occupied.
func (s *Store) ClearRoom(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.RoomID = ""
	}
}

// Remove deletes the session outright.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}

// Len returns the number of live sessions, counting entries the sweep has not
// collected yet even if their TTL already elapsed.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// Close stops the background sweep goroutine and waits for it to exit.
func (s *Store) Close() {
	close(s.stop)
	s.wg.Wait()
}

// expiredLocked reports whether the session's idle TTL elapsed at the given time.
// Callers must hold mu.
func (s *Store) expiredLocked(sess *Session, now time.Time) bool {
	return now.Sub(sess.LastSeenAt) >= s.ttl
}

// sweepLoop periodically removes expired sessions so that clients which never
// return do not keep their entries alive until the next lazy access.
func (s *Store) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.sweepExpired()
			if removed > 0 {
				s.logger.Info().Int("removed", removed).Msg("Session sweep finished")
			}

		case <-s.stop:
			return
		}
	}
}

// sweepExpired removes every expired session and returns how many were dropped.
func (s *Store) sweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if s.expiredLocked(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}

	return removed
}
