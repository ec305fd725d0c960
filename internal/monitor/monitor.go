// Package monitor implements the per-relationship monitor actor: a
// self-scheduling state machine that periodically checks one upstream for a
// newer release and fires a one-shot notification downstream when it finds
// one.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"tagwatch/internal/models"

	"github.com/rs/zerolog"
)

// Phase is the lifecycle state of a monitor actor
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseScheduled     Phase = "scheduled"
	PhaseChecking      Phase = "checking"
	PhasePaused        Phase = "paused"
	PhaseStopped       Phase = "stopped"
)

const defaultCycleTimeout = 60 * time.Second

// Dependencies carries the external capabilities a monitor acts through
type Dependencies struct {
	Source   ReleaseSource
	Dispatch DispatchSender
	Alarms   AlarmScheduler
	Store    StateStore
	Logger   zerolog.Logger

	// Now is the clock, overridable in tests. Nil means time.Now.
	Now func() time.Time

	// CycleTimeout bounds one full check cycle (fetch plus dispatch)
	CycleTimeout time.Duration
}

// Monitor owns one tracking relationship's configuration and mutable state.
// All state transitions are serialized by its mutex; the two outbound calls
// of a check cycle run outside the lock so that other operations observe the
// Checking phase instead of blocking.
type Monitor struct {
	cfg  models.MonitorConfig
	deps Dependencies

	mu    sync.Mutex
	phase Phase
	state models.MonitorState
}

// New creates a monitor in the Uninitialized phase. It owns no state and has
// no wake-up until Setup or Restore is called.
func New(cfg models.MonitorConfig, deps Dependencies) *Monitor {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.CycleTimeout <= 0 {
		deps.CycleTimeout = defaultCycleTimeout
	}
	deps.Logger = deps.Logger.With().
		Str("component", "Monitor").
		Str("key", cfg.UniqueKey).
		Logger()

	return &Monitor{
		cfg:   cfg,
		deps:  deps,
		phase: PhaseUninitialized,
	}
}

// Key returns the monitor's unique key
func (m *Monitor) Key() string {
	return m.cfg.UniqueKey
}

// Config returns the monitor's immutable configuration
func (m *Monitor) Config() models.MonitorConfig {
	return m.cfg
}

// Setup initializes fresh state, persists it, and schedules the first
// wake-up at now + initial delay.
func (m *Monitor) Setup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseUninitialized {
		return fmt.Errorf("setup called on %s monitor", m.phase)
	}

	m.state = models.MonitorState{}
	if err := m.persistLocked(); err != nil {
		return fmt.Errorf("failed to persist initial state: %w", err)
	}

	m.armLocked(m.cfg.Time.InitialDelay())
	m.phase = PhaseScheduled

	m.deps.Logger.Info().
		Dur("initial_delay", m.cfg.Time.InitialDelay()).
		Msg("Monitor set up")
	return nil
}

// Restore rehydrates a monitor from its persisted record at process start.
// Paused monitors come back paused with no wake-up; running monitors get a
// wake-up at now + check interval.
func (m *Monitor) Restore(state models.MonitorState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseUninitialized {
		return fmt.Errorf("restore called on %s monitor", m.phase)
	}

	m.state = state
	if state.Paused {
		m.phase = PhasePaused
		return nil
	}

	m.armLocked(m.cfg.Time.CheckInterval())
	m.phase = PhaseScheduled
	return nil
}

// SetPaused pauses or resumes the monitor. Pausing cancels the pending
// wake-up without erasing state; resuming restarts the cadence with a
// wake-up at now + check interval. A no-change call is an ack.
func (m *Monitor) SetPaused(paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseStopped:
		return ErrMonitorStopped
	case PhaseUninitialized:
		return ErrNotSetUp
	}

	if m.state.Paused == paused {
		return nil
	}

	m.state.Paused = paused
	if err := m.persistLocked(); err != nil {
		m.state.Paused = !paused
		return fmt.Errorf("failed to persist pause state: %w", err)
	}

	if paused {
		m.deps.Alarms.Cancel(m.cfg.UniqueKey)
		if m.phase != PhaseChecking {
			m.phase = PhasePaused
		}
		// An in-flight cycle finishes and observes Paused at commit time.
		m.deps.Logger.Info().Msg("Monitor paused")
		return nil
	}

	m.armLocked(m.cfg.Time.CheckInterval())
	if m.phase != PhaseChecking {
		m.phase = PhaseScheduled
	}
	m.deps.Logger.Info().Msg("Monitor resumed")
	return nil
}

// Stop cancels any pending wake-up, erases persisted state, and moves the
// monitor to its terminal phase. An in-flight cycle is allowed to finish but
// commits nothing afterwards.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseStopped {
		return nil
	}

	m.deps.Alarms.Cancel(m.cfg.UniqueKey)
	m.phase = PhaseStopped

	if err := m.deps.Store.Delete(m.cfg.UniqueKey); err != nil {
		return fmt.Errorf("failed to erase monitor state: %w", err)
	}

	m.deps.Logger.Info().Msg("Monitor stopped")
	return nil
}

// Snapshot returns a copy of the monitor's config and state for listings
func (m *Monitor) Snapshot() (models.MonitorSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseStopped {
		return models.MonitorSnapshot{}, ErrMonitorStopped
	}

	state := m.state
	if m.state.CurrentVersion != nil {
		version := *m.state.CurrentVersion
		state.CurrentVersion = &version
	}

	return models.MonitorSnapshot{
		UniqueKey: m.cfg.UniqueKey,
		Config:    m.cfg,
		State:     state,
		Phase:     string(m.phase),
	}, nil
}

// persistLocked writes the full record back to the durable slot. Callers
// hold the mutex, which makes the in-memory copy the authoritative read of
// the read-modify-write.
func (m *Monitor) persistLocked() error {
	return m.deps.Store.Put(&models.MonitorRecord{
		Config: m.cfg,
		State:  m.state,
	})
}

// armLocked schedules the next wake-up after the given delay
func (m *Monitor) armLocked(delay time.Duration) {
	m.deps.Alarms.Arm(m.cfg.UniqueKey, m.deps.Now().Add(delay), m.OnWake)
}
