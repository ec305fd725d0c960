package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AlarmScheduler manages one-shot wake-ups keyed by monitor key. At most one
// wake-up is outstanding per key: arming a key replaces whatever was pending
// for it. Callbacks run on their own goroutine at or after the requested
// time.
type AlarmScheduler struct {
	logger zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewAlarmScheduler creates an AlarmScheduler with no pending wake-ups
func NewAlarmScheduler(logger zerolog.Logger) *AlarmScheduler {
	return &AlarmScheduler{
		logger: logger.With().Str("component", "AlarmScheduler").Logger(),
		timers: make(map[string]*time.Timer),
	}
}

// Arm registers a one-shot wake-up for key at the given time, replacing any
// pending wake-up for the same key. Times in the past fire immediately.
func (s *AlarmScheduler) Arm(key string, at time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn().Str("key", key).Msg("Arm called after scheduler shutdown, ignoring")
		return
	}

	if existing, ok := s.timers[key]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(time.Until(at), func() {
		s.mu.Lock()
		// A replacement may have raced the firing; only the current handle
		// for the key is allowed to run its callback.
		current := s.timers[key] == timer
		if current {
			delete(s.timers, key)
		}
		s.mu.Unlock()

		if current {
			fn()
		}
	})
	s.timers[key] = timer

	s.logger.Debug().Str("key", key).Time("at", at).Msg("Wake-up armed")
}

// Cancel clears the pending wake-up for key. It is a no-op when none is pending.
func (s *AlarmScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
		s.logger.Debug().Str("key", key).Msg("Wake-up cancelled")
	}
}

// Pending reports whether a wake-up is currently armed for key
func (s *AlarmScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// StopAll cancels every pending wake-up and rejects further arming. Persisted
// monitor state is untouched, so a restart can re-arm from the store.
func (s *AlarmScheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
	s.closed = true
	s.logger.Info().Msg("All pending wake-ups cancelled")
}
