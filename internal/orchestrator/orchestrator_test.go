package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/platformctl/internal/inventory"
	"github.com/autopeer-io/platformctl/internal/platform"
)

// recorder collects the observable call sequence across a fake platform and
// fake lock so tests can assert ordering.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakePlatform struct {
	rec *recorder

	setupErr map[platform.Priority]error
	cleanErr error
	waitErr  error
}

func (f *fakePlatform) Name() string { return "fake" }

func (f *fakePlatform) Setup(_ context.Context, prio platform.Priority) error {
	f.rec.add("setup:" + prio.String())
	return f.setupErr[prio]
}

func (f *fakePlatform) Clean(context.Context) error {
	f.rec.add("clean")
	return f.cleanErr
}

func (f *fakePlatform) ResetIn() error {
	f.rec.add("reset:in")
	return nil
}

func (f *fakePlatform) ResetOut() error {
	f.rec.add("reset:out")
	return nil
}

func (f *fakePlatform) WaitReady(context.Context) error {
	f.rec.add("wait")
	return f.waitErr
}

func (f *fakePlatform) Inventory() *inventory.Inventory {
	return inventory.New(nil, nil)
}

func (f *fakePlatform) ReloadCauses(bool) ([]platform.Cause, error) {
	return nil, nil
}

// countingMutex is an in-process Mutex that records acquire/release in the
// shared recorder and tracks the maximum number of concurrent holders.
type countingMutex struct {
	mu        sync.Mutex
	rec       *recorder
	inside    int
	maxInside int
}

func (m *countingMutex) Acquire() error {
	m.mu.Lock()
	if m.rec != nil {
		m.rec.add("lock:acquire")
	}
	m.inside++
	if m.inside > m.maxInside {
		m.maxInside = m.inside
	}
	return nil
}

func (m *countingMutex) Release() error {
	m.inside--
	if m.rec != nil {
		m.rec.add("lock:release")
	}
	m.mu.Unlock()
	return nil
}

type fakeSpawner struct {
	rec *recorder
	err error
}

func (s *fakeSpawner) Spawn() error {
	s.rec.add("spawn")
	return s.err
}

func newTestOrchestrator(rec *recorder, p *fakePlatform, sp Spawner) *Orchestrator {
	return New(p, RuntimeConfig{LockPath: "unused", Simulation: true},
		WithMutex(&countingMutex{rec: rec}),
		WithSpawner(sp),
	)
}

func TestSetupSynchronousOrder(t *testing.T) {
	rec := &recorder{}
	p := &fakePlatform{rec: rec}
	o := newTestOrchestrator(rec, p, &fakeSpawner{rec: rec})

	require.NoError(t, o.Setup(context.Background(), SetupOptions{}))

	assert.Equal(t, []string{
		"lock:acquire",
		"setup:default",
		"lock:release",
		"setup:background",
		"wait",
	}, rec.snapshot())
}

func TestSetupResetOutBetweenTiers(t *testing.T) {
	rec := &recorder{}
	p := &fakePlatform{rec: rec}
	o := newTestOrchestrator(rec, p, &fakeSpawner{rec: rec})

	require.NoError(t, o.Setup(context.Background(), SetupOptions{Reset: true}))

	assert.Equal(t, []string{
		"lock:acquire",
		"setup:default",
		"reset:out",
		"lock:release",
		"setup:background",
		"wait",
	}, rec.snapshot())
}

func TestSetupBackgroundDetached(t *testing.T) {
	rec := &recorder{}
	p := &fakePlatform{rec: rec}
	o := newTestOrchestrator(rec, p, &fakeSpawner{rec: rec})

	require.NoError(t, o.Setup(context.Background(), SetupOptions{Background: true}))

	calls := rec.snapshot()
	assert.Equal(t, []string{
		"lock:acquire",
		"setup:default",
		"lock:release",
		"spawn",
		"setup:background",
	}, calls)
	assert.NotContains(t, calls, "wait", "parent must not block on settling when detached")
}

func TestSetupSpawnFailureFallsBackSynchronously(t *testing.T) {
	rec := &recorder{}
	p := &fakePlatform{rec: rec}
	o := newTestOrchestrator(rec, p, &fakeSpawner{rec: rec, err: errors.New("fork: resource temporarily unavailable")})

	require.NoError(t, o.Setup(context.Background(), SetupOptions{Background: true}))

	assert.Equal(t, []string{
		"lock:acquire",
		"setup:default",
		"lock:release",
		"spawn",
		"setup:background",
		"wait",
	}, rec.snapshot(), "spawn failure must run background setup and settle in-process")
}

func TestSetupCriticalFailureIsFatal(t *testing.T) {
	rec := &recorder{}
	p := &fakePlatform{
		rec:      rec,
		setupErr: map[platform.Priority]error{platform.PriorityDefault: errors.New("scd probe failed")},
	}
	o := newTestOrchestrator(rec, p, &fakeSpawner{rec: rec})

	err := o.Setup(context.Background(), SetupOptions{Background: true})
	require.Error(t, err)
	assert.ErrorContains(t, err, "critical setup failed")

	calls := rec.snapshot()
	assert.NotContains(t, calls, "setup:background", "background must never start after a critical failure")
	assert.Equal(t, "lock:release", calls[len(calls)-1], "lock must be released on the failure path")
}

func TestBackgroundNeverPrecedesDefault(t *testing.T) {
	for _, background := range []bool{false, true} {
		rec := &recorder{}
		p := &fakePlatform{rec: rec}
		o := newTestOrchestrator(rec, p, &fakeSpawner{rec: rec})

		require.NoError(t, o.Setup(context.Background(), SetupOptions{Background: background}))

		var defaultIdx, backgroundIdx int
		for i, call := range rec.snapshot() {
			switch call {
			case "setup:default":
				defaultIdx = i
			case "setup:background":
				backgroundIdx = i
			}
		}
		assert.Less(t, defaultIdx, backgroundIdx)
	}
}

func TestPhaseMachineRejectsOutOfOrderEvents(t *testing.T) {
	rec := &recorder{}
	m := newPhaseMachine(&fakePlatform{rec: rec})

	require.Error(t, m.Event(context.Background(), eventSettle), "settle from idle must be rejected")
	require.Error(t, m.Event(context.Background(), eventBackground), "background from idle must be rejected")
	assert.Empty(t, rec.snapshot(), "rejected transitions must not touch the platform")

	require.NoError(t, m.Event(context.Background(), eventCritical))
	require.NoError(t, m.Event(context.Background(), eventBackground))
	require.NoError(t, m.Event(context.Background(), eventSettle))
}

func TestCleanResetBeforeLock(t *testing.T) {
	rec := &recorder{}
	p := &fakePlatform{rec: rec}
	o := newTestOrchestrator(rec, p, &fakeSpawner{rec: rec})

	require.NoError(t, o.Clean(context.Background(), CleanOptions{Reset: true}))

	assert.Equal(t, []string{
		"reset:in",
		"lock:acquire",
		"clean",
		"lock:release",
	}, rec.snapshot())
}

func TestCleanFailurePropagatesAndReleasesLock(t *testing.T) {
	rec := &recorder{}
	p := &fakePlatform{rec: rec, cleanErr: errors.New("driver busy")}
	o := newTestOrchestrator(rec, p, &fakeSpawner{rec: rec})

	err := o.Clean(context.Background(), CleanOptions{})
	require.Error(t, err)

	calls := rec.snapshot()
	assert.Equal(t, "lock:release", calls[len(calls)-1])
}

func TestConcurrentInvocationsAreSerialized(t *testing.T) {
	mutex := &countingMutex{}
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &recorder{}
			p := &fakePlatform{rec: rec}
			o := New(p, RuntimeConfig{LockPath: "unused"},
				WithMutex(mutex),
				WithSpawner(&fakeSpawner{rec: rec}),
			)
			assert.NoError(t, o.Setup(context.Background(), SetupOptions{}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, mutex.maxInside, "critical sections overlapped")
}
