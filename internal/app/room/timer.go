package room

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"omokhub/internal/pkg/logx"
)

// timerEntry is one scheduled cleanup with the generation it was armed under.
type timerEntry struct {
	timer *time.Timer
	gen   uint64
}

/*
CleanupTimer schedules at most one pending cleanup per room. Re-arming
replaces the pending entry, cancelling makes the callback not run, and a
generation counter closes the race where an already-fired time.Timer callback
would otherwise act on a slot that has been cancelled or re-armed in the
meantime. The fired callback clears its slot before running onFire and
recovers panics, so a failing callback never wedges the slot.
*/
type CleanupTimer struct {
	// mu protects entries and gen.
	mu sync.Mutex

	// entries maps room id to its pending cleanup.
	entries map[string]*timerEntry

	// gen increments on every Schedule, stamping the armed entry.
	gen uint64

	// structured logger with timer context.
	logger zerolog.Logger
}

// NewCleanupTimer creates a timer with no pending entries.
func NewCleanupTimer() *CleanupTimer {
	return &CleanupTimer{
		entries: make(map[string]*timerEntry),
		logger:  logx.Logger().With().Str("component", "cleanup_timer").Logger(),
	}
}

// Schedule arms (or re-arms) the room's cleanup to run onFire after delay.
// An existing pending entry is replaced; its callback will not run.
func (t *CleanupTimer) Schedule(roomID string, delay time.Duration, onFire func(roomID string)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.entries[roomID]; ok {
		existing.timer.Stop()
	}

	t.gen++
	gen := t.gen
	entry := &timerEntry{gen: gen}
	entry.timer = time.AfterFunc(delay, func() {
		t.fire(roomID, gen, onFire)
	})
	t.entries[roomID] = entry

	t.logger.Debug().
		Str("room_id", roomID).
		Dur("delay", delay).
		Msg("Cleanup scheduled")
}

// fire runs when the underlying time.Timer expires. It acts only when the
// slot still holds the same generation: a Stop that lost the race against an
// in-flight expiry ends here, not in onFire.
func (t *CleanupTimer) fire(roomID string, gen uint64, onFire func(roomID string)) {
	t.mu.Lock()
	entry, ok := t.entries[roomID]
	if !ok || entry.gen != gen {
		t.mu.Unlock()
		return
	}
	delete(t.entries, roomID)
	t.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().
				Interface("panic", r).
				Str("room_id", roomID).
				Msg("Cleanup callback panicked")
		}
	}()

	onFire(roomID)
}

// Cancel removes the room's pending cleanup. It returns true only when a
// pending entry existed and its callback had not started, meaning the
// callback is guaranteed not to run.
func (t *CleanupTimer) Cancel(roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[roomID]
	if !ok {
		return false
	}

	entry.timer.Stop()
	delete(t.entries, roomID)

	t.logger.Debug().Str("room_id", roomID).Msg("Cleanup cancelled")
	return true
}

// Pending reports whether the room has a cleanup scheduled.
func (t *CleanupTimer) Pending(roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.entries[roomID]
	return ok
}

// Shutdown stops every pending cleanup. Scheduled callbacks will not run.
func (t *CleanupTimer) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for roomID, entry := range t.entries {
		entry.timer.Stop()
		delete(t.entries, roomID)
	}
}
