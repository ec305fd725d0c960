package monitor

import (
	"context"

	"tagwatch/internal/models"
)

// OnWake is invoked by the alarm scheduler. It runs one check cycle and
// always re-arms exactly one future wake-up, unless the monitor is paused or
// stopped.
func (m *Monitor) OnWake() {
	m.mu.Lock()
	switch {
	case m.phase == PhaseStopped:
		m.mu.Unlock()
		return
	case m.state.Paused:
		// Paused monitors leave no pending wake-up; resume re-arms.
		if m.phase != PhaseChecking {
			m.phase = PhasePaused
		}
		m.mu.Unlock()
		return
	case m.phase == PhaseChecking:
		// A manual trigger is mid-cycle. Keep the cadence alive without
		// running a second concurrent check for this key.
		m.armLocked(m.cfg.Time.CheckInterval())
		m.mu.Unlock()
		return
	}
	m.phase = PhaseChecking
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.deps.CycleTimeout)
	defer cancel()
	m.runCheckCycle(ctx, true)
}

// TriggerNow runs an out-of-band check cycle immediately. It returns
// ErrCheckInProgress when a cycle is already running, and never disturbs the
// pre-existing scheduled wake-up: the regular cadence continues on its own.
func (m *Monitor) TriggerNow(ctx context.Context) error {
	m.mu.Lock()
	switch m.phase {
	case PhaseStopped:
		m.mu.Unlock()
		return ErrMonitorStopped
	case PhaseUninitialized:
		m.mu.Unlock()
		return ErrNotSetUp
	case PhaseChecking:
		m.mu.Unlock()
		return ErrCheckInProgress
	}
	m.phase = PhaseChecking
	m.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, m.deps.CycleTimeout)
	defer cancel()
	m.runCheckCycle(cctx, false)
	return nil
}

// runCheckCycle performs one fetch/compare/dispatch pass. The caller has
// already moved the monitor into Checking; finishCycle moves it back out and
// re-arms when reschedule is set.
func (m *Monitor) runCheckCycle(ctx context.Context, reschedule bool) {
	base := m.cfg.Base

	release, err := m.deps.Source.FetchLatest(ctx, base.UpstreamOwner, base.UpstreamRepo)
	if err != nil {
		m.deps.Logger.Warn().Err(err).Msg("Release fetch failed")
		m.finishCycle(nil, false, reschedule)
		return
	}

	m.mu.Lock()
	current := m.state.CurrentVersion
	m.mu.Unlock()

	if !release.NewerThan(current, m.cfg.Mode) {
		// Already delivered. A successful no-op cycle resets the failure
		// counter and keeps the steady-state cadence.
		m.deps.Logger.Debug().Str("tag", release.TagName).Msg("No newer release")
		m.finishCycle(nil, true, reschedule)
		return
	}

	payload := models.DispatchPayload{
		Version:         release.TagName,
		SourceTimestamp: release.Timestamp(m.cfg.Mode),
	}
	if err := m.deps.Dispatch.Send(ctx, base.DownstreamOwner, base.DownstreamRepo, base.DispatchTokenSecret, payload); err != nil {
		// The version does not advance, so the same release is retried next
		// cycle: at-least-once delivery.
		m.deps.Logger.Warn().Err(err).Str("tag", release.TagName).Msg("Dispatch failed, will retry")
		m.finishCycle(nil, false, reschedule)
		return
	}

	m.deps.Logger.Info().Str("tag", release.TagName).Msg("New release dispatched")
	m.finishCycle(release, true, reschedule)
}

// finishCycle commits the cycle outcome and re-arms. delivered is non-nil
// only when a dispatch succeeded, which is the only path that advances
// CurrentVersion. A monitor stopped mid-cycle commits nothing.
func (m *Monitor) finishCycle(delivered *models.ReleaseRecord, success, reschedule bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseStopped {
		return
	}

	if success {
		m.state.ConsecutiveFailures = 0
		if delivered != nil {
			m.state.CurrentVersion = delivered
		}
	} else {
		m.state.ConsecutiveFailures++
	}

	if err := m.persistLocked(); err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to persist monitor state")
	}

	if m.state.Paused {
		m.phase = PhasePaused
		return
	}

	if reschedule {
		next := m.cfg.Time.CheckInterval()
		if !success {
			next = m.cfg.Time.RetryInterval()
		}
		m.armLocked(next)
	}
	m.phase = PhaseScheduled
}
