// Package registry coordinates the population of release monitors. It owns
// the unique-key index and forwards lifecycle operations to the individual
// actors; it never mutates actor state directly.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tagwatch/internal/models"
	"tagwatch/internal/monitor"

	"github.com/rs/zerolog"
)

// AlarmScheduler extends the per-monitor alarm contract with a shutdown hook.
type AlarmScheduler interface {
	monitor.AlarmScheduler
	StopAll()
}

// Store is the durable monitor store as the registry sees it. List is needed
// for restore on startup; the per-monitor Put/Delete are forwarded to actors.
type Store interface {
	monitor.StateStore
	List() ([]models.MonitorRecord, error)
}

// Dependencies carries the collaborators shared by every monitor the
// registry creates.
type Dependencies struct {
	Source   monitor.ReleaseSource
	Dispatch monitor.DispatchSender
	Alarms   AlarmScheduler
	Store    Store
	Logger   zerolog.Logger
	// Now and CycleTimeout are optional and passed through to each monitor.
	Now          func() time.Time
	CycleTimeout time.Duration
}

// Registry indexes monitors by unique key. The map is the only shared
// structure; every per-monitor mutation happens inside the actor itself.
type Registry struct {
	mu       sync.RWMutex
	monitors map[string]*monitor.Monitor
	closed   bool

	deps   Dependencies
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Dependencies) *Registry {
	logger := deps.Logger.With().Str("component", "registry").Logger()
	return &Registry{
		monitors: make(map[string]*monitor.Monitor),
		deps:     deps,
		logger:   logger,
	}
}

func (r *Registry) newMonitor(cfg models.MonitorConfig) *monitor.Monitor {
	return monitor.New(cfg, monitor.Dependencies{
		Source:       r.deps.Source,
		Dispatch:     r.deps.Dispatch,
		Alarms:       r.deps.Alarms,
		Store:        r.deps.Store,
		Logger:       r.deps.Logger,
		Now:          r.deps.Now,
		CycleTimeout: r.deps.CycleTimeout,
	})
}

// Register creates a monitor for cfg, schedules its first check and records
// it in the index. The key is reserved before setup so that concurrent
// registrations for the same configuration conflict deterministically; a
// failed setup rolls the reservation back, so a partial registration is
// never observable.
func (r *Registry) Register(cfg models.MonitorConfig) (string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrRegistryClosed
	}
	if _, exists := r.monitors[cfg.UniqueKey]; exists {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrConfigConflict, cfg.UniqueKey)
	}
	m := r.newMonitor(cfg)
	r.monitors[cfg.UniqueKey] = m
	r.mu.Unlock()

	if err := m.Setup(); err != nil {
		r.mu.Lock()
		delete(r.monitors, cfg.UniqueKey)
		r.mu.Unlock()
		if stopErr := m.Stop(); stopErr != nil {
			r.logger.Error().Err(stopErr).Str("unique_key", cfg.UniqueKey).Msg("Rollback stop failed")
		}
		return "", fmt.Errorf("failed to set up monitor %s: %w", cfg.UniqueKey, err)
	}

	r.logger.Info().Str("unique_key", cfg.UniqueKey).Msg("Monitor registered")
	return cfg.UniqueKey, nil
}

// Unregister stops the monitor for uniqueKey, erases its persisted state and
// returns the configuration that was in effect.
func (r *Registry) Unregister(uniqueKey string) (models.MonitorConfig, error) {
	r.mu.Lock()
	m, ok := r.monitors[uniqueKey]
	if !ok {
		r.mu.Unlock()
		return models.MonitorConfig{}, fmt.Errorf("%w: %s", ErrMonitorNotFound, uniqueKey)
	}
	delete(r.monitors, uniqueKey)
	r.mu.Unlock()

	cfg := m.Config()
	if err := m.Stop(); err != nil {
		// The key is already out of the index. Report the cleanup failure but
		// hand the config back so the caller knows what was removed.
		return cfg, fmt.Errorf("failed to stop monitor %s: %w", uniqueKey, err)
	}

	r.logger.Info().Str("unique_key", uniqueKey).Msg("Monitor unregistered")
	return cfg, nil
}

// Keys returns the registered unique keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.monitors))
	for key := range r.monitors {
		keys = append(keys, key)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// List snapshots every registered monitor concurrently. A monitor whose
// snapshot fails contributes an entry carrying the error; it never aborts
// the rest of the listing. Entries are sorted by unique key.
func (r *Registry) List() []models.MonitorSnapshot {
	r.mu.RLock()
	monitors := make(map[string]*monitor.Monitor, len(r.monitors))
	for key, m := range r.monitors {
		monitors[key] = m
	}
	r.mu.RUnlock()

	snapshots := make([]models.MonitorSnapshot, 0, len(monitors))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for key, m := range monitors {
		wg.Add(1)
		go func(key string, m *monitor.Monitor) {
			defer wg.Done()
			snapshot, err := m.Snapshot()
			if err != nil {
				snapshot = models.MonitorSnapshot{UniqueKey: key, Err: err.Error()}
			}
			mu.Lock()
			snapshots = append(snapshots, snapshot)
			mu.Unlock()
		}(key, m)
	}
	wg.Wait()

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].UniqueKey < snapshots[j].UniqueKey
	})
	return snapshots
}

// SetPaused forwards a pause or resume request to the monitor for uniqueKey.
func (r *Registry) SetPaused(uniqueKey string, paused bool) error {
	m, err := r.lookup(uniqueKey)
	if err != nil {
		return err
	}
	return m.SetPaused(paused)
}

// Trigger forwards an out-of-band check request to the monitor for uniqueKey.
// The monitor's regular schedule is not disturbed.
func (r *Registry) Trigger(ctx context.Context, uniqueKey string) error {
	m, err := r.lookup(uniqueKey)
	if err != nil {
		return err
	}
	return m.TriggerNow(ctx)
}

func (r *Registry) lookup(uniqueKey string) (*monitor.Monitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.monitors[uniqueKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMonitorNotFound, uniqueKey)
	}
	return m, nil
}

// Restore reloads every persisted monitor from the store and re-arms its
// schedule. Paused monitors come back paused with no pending wake-up. A
// record that fails to restore is logged and skipped so one bad row cannot
// take the whole population down. Returns the number of monitors restored.
func (r *Registry) Restore() (int, error) {
	records, err := r.deps.Store.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list persisted monitors: %w", err)
	}

	restored := 0
	for _, record := range records {
		key := record.Config.UniqueKey

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return restored, ErrRegistryClosed
		}
		if _, exists := r.monitors[key]; exists {
			r.mu.Unlock()
			r.logger.Warn().Str("unique_key", key).Msg("Skipping persisted monitor, key already registered")
			continue
		}
		m := r.newMonitor(record.Config)
		r.monitors[key] = m
		r.mu.Unlock()

		if err := m.Restore(record.State); err != nil {
			r.mu.Lock()
			delete(r.monitors, key)
			r.mu.Unlock()
			r.logger.Error().Err(err).Str("unique_key", key).Msg("Failed to restore monitor")
			continue
		}
		restored++
	}

	if restored > 0 {
		r.logger.Info().Int("count", restored).Msg("Monitors restored from store")
	}
	return restored, nil
}

// Close stops accepting operations and cancels every pending wake-up.
// Persisted state is left intact so a later Restore picks the population
// back up.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	count := len(r.monitors)
	r.mu.Unlock()

	r.deps.Alarms.StopAll()
	r.logger.Info().Int("count", count).Msg("Registry closed")
}
