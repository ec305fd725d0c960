package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tagwatch/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAlarms records armed wake-ups without real timers; tests fire them
type fakeAlarms struct {
	mu      sync.Mutex
	armed   map[string]fakeAlarm
	cancels int
}

type fakeAlarm struct {
	at time.Time
	fn func()
}

func newFakeAlarms() *fakeAlarms {
	return &fakeAlarms{armed: make(map[string]fakeAlarm)}
}

func (a *fakeAlarms) Arm(key string, at time.Time, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed[key] = fakeAlarm{at: at, fn: fn}
}

func (a *fakeAlarms) Cancel(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.armed, key)
	a.cancels++
}

func (a *fakeAlarms) pendingAt(key string) (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	alarm, ok := a.armed[key]
	return alarm.at, ok
}

// fire consumes the pending wake-up for key and invokes it, as the real
// scheduler would at its deadline. Safe to call from helper goroutines.
func (a *fakeAlarms) fire(t *testing.T, key string) {
	t.Helper()
	a.mu.Lock()
	alarm, ok := a.armed[key]
	delete(a.armed, key)
	a.mu.Unlock()
	if !ok {
		t.Errorf("no pending wake-up for %s", key)
		return
	}
	alarm.fn()
}

// memStore is an in-memory StateStore
type memStore struct {
	mu      sync.Mutex
	records map[string]models.MonitorRecord
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]models.MonitorRecord)}
}

func (s *memStore) Put(record *models.MonitorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.records[record.Config.UniqueKey] = *record
	return nil
}

func (s *memStore) Delete(uniqueKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, uniqueKey)
	return nil
}

func (s *memStore) get(uniqueKey string) (models.MonitorRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[uniqueKey]
	return record, ok
}

// stubSource returns scripted fetch results
type stubSource struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
	block   chan struct{} // when set, FetchLatest waits on it
	entered chan struct{} // when set, closed once FetchLatest is entered
}

type fetchResult struct {
	release *models.ReleaseRecord
	err     error
}

func (s *stubSource) FetchLatest(ctx context.Context, owner, repo string) (*models.ReleaseRecord, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	entered := s.entered
	s.entered = nil
	block := s.block
	s.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx >= len(s.results) {
		return nil, errors.New("unscripted fetch")
	}
	return s.results[idx].release, s.results[idx].err
}

// stubDispatch returns scripted send results
type stubDispatch struct {
	mu       sync.Mutex
	errs     []error
	calls    int
	payloads []models.DispatchPayload
}

func (d *stubDispatch) Send(ctx context.Context, owner, repo, tokenSecret string, payload models.DispatchPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.calls
	d.calls++
	d.payloads = append(d.payloads, payload)
	if idx < len(d.errs) {
		return d.errs[idx]
	}
	return nil
}

func (d *stubDispatch) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type testRig struct {
	monitor  *Monitor
	clock    *fakeClock
	alarms   *fakeAlarms
	store    *memStore
	source   *stubSource
	dispatch *stubDispatch
	key      string
}

func testConfig() models.MonitorConfig {
	return models.NewMonitorConfig(
		models.BaseConfig{
			UpstreamOwner:   "rust-lang",
			UpstreamRepo:    "rust",
			DownstreamOwner: "me",
			DownstreamRepo:  "mirror",
		},
		models.TimeConfig{
			CheckIntervalSeconds: 3600,
			RetryIntervalSeconds: 60,
			InitialDelaySeconds:  60,
		},
		models.ComparisonModePublishedAt,
	)
}

func newTestRig(t *testing.T, source *stubSource, dispatch *stubDispatch) *testRig {
	t.Helper()
	cfg := testConfig()
	clock := newFakeClock()
	alarms := newFakeAlarms()
	store := newMemStore()

	m := New(cfg, Dependencies{
		Source:   source,
		Dispatch: dispatch,
		Alarms:   alarms,
		Store:    store,
		Logger:   zerolog.Nop(),
		Now:      clock.Now,
	})

	return &testRig{
		monitor:  m,
		clock:    clock,
		alarms:   alarms,
		store:    store,
		source:   source,
		dispatch: dispatch,
		key:      cfg.UniqueKey,
	}
}

func release(tag string, published time.Time) *models.ReleaseRecord {
	return &models.ReleaseRecord{TagName: tag, PublishedAt: published, UpdatedAt: published}
}

func TestMonitor_SetupSchedulesFirstWakeUp(t *testing.T) {
	rig := newTestRig(t, &stubSource{}, &stubDispatch{})

	require.NoError(t, rig.monitor.Setup())

	at, ok := rig.alarms.pendingAt(rig.key)
	require.True(t, ok)
	assert.Equal(t, time.Minute, at.Sub(rig.clock.Now()))

	record, ok := rig.store.get(rig.key)
	require.True(t, ok)
	assert.Nil(t, record.State.CurrentVersion)
	assert.False(t, record.State.Paused)
	assert.Zero(t, record.State.ConsecutiveFailures)

	snapshot, err := rig.monitor.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, string(PhaseScheduled), snapshot.Phase)
}

func TestMonitor_SetupTwiceFails(t *testing.T) {
	rig := newTestRig(t, &stubSource{}, &stubDispatch{})
	require.NoError(t, rig.monitor.Setup())
	assert.Error(t, rig.monitor.Setup())
}

func TestMonitor_SetupPersistFailureLeavesUninitialized(t *testing.T) {
	rig := newTestRig(t, &stubSource{}, &stubDispatch{})
	rig.store.putErr = errors.New("disk full")

	assert.Error(t, rig.monitor.Setup())

	_, ok := rig.alarms.pendingAt(rig.key)
	assert.False(t, ok, "no wake-up may exist after a failed setup")
}

// Mirrors the register/fail/retry walkthrough: check=3600s, retry=60s,
// initial delay=60s. Fetch failure, then dispatch failure, then full success.
func TestMonitor_FailureRetryThenSuccess(t *testing.T) {
	published := time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)
	newRelease := release("v1.1.0", published)

	source := &stubSource{results: []fetchResult{
		{err: errors.New("upstream API error 502")},
		{release: newRelease},
		{release: newRelease},
	}}
	dispatch := &stubDispatch{errs: []error{errors.New("dispatch failed with status 500"), nil}}
	rig := newTestRig(t, source, dispatch)

	require.NoError(t, rig.monitor.Setup())
	start := rig.clock.Now()

	// First cycle at t+60s: fetch fails, next wake-up after retry interval.
	rig.clock.Advance(time.Minute)
	rig.alarms.fire(t, rig.key)

	at, ok := rig.alarms.pendingAt(rig.key)
	require.True(t, ok)
	assert.Equal(t, start.Add(2*time.Minute), at, "retry, not check interval")

	record, _ := rig.store.get(rig.key)
	assert.Equal(t, 1, record.State.ConsecutiveFailures)
	assert.Nil(t, record.State.CurrentVersion)
	assert.Zero(t, dispatch.callCount())

	// Second cycle at t+120s: newer release found but dispatch fails.
	rig.clock.Advance(time.Minute)
	rig.alarms.fire(t, rig.key)

	at, ok = rig.alarms.pendingAt(rig.key)
	require.True(t, ok)
	assert.Equal(t, start.Add(3*time.Minute), at)

	record, _ = rig.store.get(rig.key)
	assert.Equal(t, 2, record.State.ConsecutiveFailures)
	assert.Nil(t, record.State.CurrentVersion, "dispatch failure must not advance the version")
	assert.Equal(t, 1, dispatch.callCount())

	// Third cycle at t+180s: fetch and dispatch both succeed.
	rig.clock.Advance(time.Minute)
	rig.alarms.fire(t, rig.key)

	at, ok = rig.alarms.pendingAt(rig.key)
	require.True(t, ok)
	assert.Equal(t, start.Add(3*time.Minute).Add(time.Hour), at, "back to check interval")

	record, _ = rig.store.get(rig.key)
	assert.Zero(t, record.State.ConsecutiveFailures)
	require.NotNil(t, record.State.CurrentVersion)
	assert.Equal(t, "v1.1.0", record.State.CurrentVersion.TagName)
	assert.Equal(t, 2, dispatch.callCount(), "same release dispatched again after the failed attempt")
}

func TestMonitor_NotNewerIsIdempotent(t *testing.T) {
	published := time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)
	same := release("v1.0.0", published)

	source := &stubSource{results: []fetchResult{
		{release: same},
		{release: same},
	}}
	dispatch := &stubDispatch{}
	rig := newTestRig(t, source, dispatch)

	require.NoError(t, rig.monitor.Setup())
	rig.alarms.fire(t, rig.key)
	require.Equal(t, 1, dispatch.callCount(), "first check delivers the null-baseline release")

	// Same release again: no dispatch, version unchanged, still a success.
	rig.alarms.fire(t, rig.key)

	assert.Equal(t, 1, dispatch.callCount())
	record, _ := rig.store.get(rig.key)
	assert.Equal(t, "v1.0.0", record.State.CurrentVersion.TagName)
	assert.Zero(t, record.State.ConsecutiveFailures)

	at, ok := rig.alarms.pendingAt(rig.key)
	require.True(t, ok)
	assert.Equal(t, time.Hour, at.Sub(rig.clock.Now()))
}

func TestMonitor_PauseCancelsWakeUpAndResumeRestartsCadence(t *testing.T) {
	rig := newTestRig(t, &stubSource{}, &stubDispatch{})
	require.NoError(t, rig.monitor.Setup())

	require.NoError(t, rig.monitor.SetPaused(true))

	_, ok := rig.alarms.pendingAt(rig.key)
	assert.False(t, ok, "pause must cancel the pending wake-up")

	record, _ := rig.store.get(rig.key)
	assert.True(t, record.State.Paused)

	snapshot, err := rig.monitor.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, string(PhasePaused), snapshot.Phase)

	// Pausing again is an ack, not an error.
	require.NoError(t, rig.monitor.SetPaused(true))

	require.NoError(t, rig.monitor.SetPaused(false))
	at, ok := rig.alarms.pendingAt(rig.key)
	require.True(t, ok)
	assert.Equal(t, time.Hour, at.Sub(rig.clock.Now()), "resume restarts the cadence from resume time")
}

func TestMonitor_WakeWhilePausedDoesNothing(t *testing.T) {
	source := &stubSource{results: []fetchResult{{release: release("v1.0.0", time.Now())}}}
	rig := newTestRig(t, source, &stubDispatch{})
	require.NoError(t, rig.monitor.Setup())

	// Simulate a wake-up racing the pause: pause first, then deliver the
	// already-fired callback.
	_, ok := rig.alarms.pendingAt(rig.key)
	require.True(t, ok)
	require.NoError(t, rig.monitor.SetPaused(true))

	rig.monitor.OnWake()

	assert.Zero(t, source.calls, "paused monitor must not check")
	_, pending := rig.alarms.pendingAt(rig.key)
	assert.False(t, pending, "paused monitor leaves no pending wake-up")
}

func TestMonitor_TriggerNowWhileCheckingReturnsBusy(t *testing.T) {
	source := &stubSource{
		results: []fetchResult{{err: errors.New("slow fetch")}},
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	rig := newTestRig(t, source, &stubDispatch{})
	require.NoError(t, rig.monitor.Setup())

	done := make(chan struct{})
	go func() {
		defer close(done)
		rig.alarms.fire(t, rig.key)
	}()
	<-source.entered

	err := rig.monitor.TriggerNow(context.Background())
	assert.ErrorIs(t, err, ErrCheckInProgress)

	close(source.block)
	<-done

	assert.Equal(t, 1, source.calls, "no second concurrent cycle")
}

func TestMonitor_TriggerNowKeepsScheduledWakeUp(t *testing.T) {
	source := &stubSource{results: []fetchResult{{release: release("v1.0.0", time.Now())}}}
	rig := newTestRig(t, source, &stubDispatch{})
	require.NoError(t, rig.monitor.Setup())

	before, ok := rig.alarms.pendingAt(rig.key)
	require.True(t, ok)

	require.NoError(t, rig.monitor.TriggerNow(context.Background()))

	after, ok := rig.alarms.pendingAt(rig.key)
	require.True(t, ok)
	assert.Equal(t, before, after, "manual trigger must not disturb the schedule")

	record, _ := rig.store.get(rig.key)
	require.NotNil(t, record.State.CurrentVersion)
	assert.Equal(t, "v1.0.0", record.State.CurrentVersion.TagName)

	snapshot, err := rig.monitor.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, string(PhaseScheduled), snapshot.Phase)
}

func TestMonitor_StopErasesStateAndRejectsOperations(t *testing.T) {
	rig := newTestRig(t, &stubSource{}, &stubDispatch{})
	require.NoError(t, rig.monitor.Setup())

	require.NoError(t, rig.monitor.Stop())

	_, ok := rig.alarms.pendingAt(rig.key)
	assert.False(t, ok)
	_, ok = rig.store.get(rig.key)
	assert.False(t, ok, "stop erases persisted state")

	assert.ErrorIs(t, rig.monitor.SetPaused(true), ErrMonitorStopped)
	assert.ErrorIs(t, rig.monitor.TriggerNow(context.Background()), ErrMonitorStopped)
	_, err := rig.monitor.Snapshot()
	assert.ErrorIs(t, err, ErrMonitorStopped)

	// Stopping again is a no-op.
	require.NoError(t, rig.monitor.Stop())
}

func TestMonitor_StopDuringCheckCommitsNothing(t *testing.T) {
	published := time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)
	source := &stubSource{
		results: []fetchResult{{release: release("v9.9.9", published)}},
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	rig := newTestRig(t, source, &stubDispatch{})
	require.NoError(t, rig.monitor.Setup())

	done := make(chan struct{})
	go func() {
		defer close(done)
		rig.alarms.fire(t, rig.key)
	}()
	<-source.entered

	require.NoError(t, rig.monitor.Stop())
	close(source.block)
	<-done

	_, ok := rig.store.get(rig.key)
	assert.False(t, ok, "in-flight cycle must not resurrect a stopped monitor")
	_, pending := rig.alarms.pendingAt(rig.key)
	assert.False(t, pending, "no wake-up may be re-armed after stop")
}

func TestMonitor_RestoreRunning(t *testing.T) {
	rig := newTestRig(t, &stubSource{}, &stubDispatch{})

	version := release("v2.0.0", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, rig.monitor.Restore(models.MonitorState{
		CurrentVersion:      version,
		ConsecutiveFailures: 3,
	}))

	at, ok := rig.alarms.pendingAt(rig.key)
	require.True(t, ok)
	assert.Equal(t, time.Hour, at.Sub(rig.clock.Now()))

	snapshot, err := rig.monitor.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, string(PhaseScheduled), snapshot.Phase)
	assert.Equal(t, 3, snapshot.State.ConsecutiveFailures)
	assert.Equal(t, "v2.0.0", snapshot.State.CurrentVersion.TagName)
}

func TestMonitor_RestorePausedLeavesNoWakeUp(t *testing.T) {
	rig := newTestRig(t, &stubSource{}, &stubDispatch{})

	require.NoError(t, rig.monitor.Restore(models.MonitorState{Paused: true}))

	_, ok := rig.alarms.pendingAt(rig.key)
	assert.False(t, ok)

	snapshot, err := rig.monitor.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, string(PhasePaused), snapshot.Phase)
}

func TestMonitor_UpdatedAtMode(t *testing.T) {
	base := time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)
	// Same publish time, later update time: only updated_at mode re-delivers.
	first := &models.ReleaseRecord{TagName: "v1.0.0", PublishedAt: base, UpdatedAt: base}
	edited := &models.ReleaseRecord{TagName: "v1.0.0", PublishedAt: base, UpdatedAt: base.Add(time.Hour)}

	source := &stubSource{results: []fetchResult{{release: first}, {release: edited}}}
	dispatch := &stubDispatch{}

	cfg := testConfig()
	cfg.Mode = models.ComparisonModeUpdatedAt
	clock := newFakeClock()
	alarms := newFakeAlarms()
	m := New(cfg, Dependencies{
		Source:   source,
		Dispatch: dispatch,
		Alarms:   alarms,
		Store:    newMemStore(),
		Logger:   zerolog.Nop(),
		Now:      clock.Now,
	})

	require.NoError(t, m.Setup())
	alarms.fire(t, cfg.UniqueKey)
	alarms.fire(t, cfg.UniqueKey)

	require.Equal(t, 2, dispatch.callCount())
	assert.True(t, dispatch.payloads[1].SourceTimestamp.Equal(base.Add(time.Hour)))
}
