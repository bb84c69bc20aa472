package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/platformctl/internal/inventory"
	"github.com/autopeer-io/platformctl/internal/platform"
)

func testDrivers() []driverSpec {
	return []driverSpec{
		{name: "scd", prio: platform.PriorityDefault},
		{name: "asic", prio: platform.PriorityDefault},
		{name: "xcvr", prio: platform.PriorityBackground, settle: 30 * time.Millisecond},
		{name: "led", prio: platform.PriorityBackground, settle: 10 * time.Millisecond},
	}
}

func newTestPlatform(t *testing.T) *Platform {
	t.Helper()
	p, err := newPlatform(t.TempDir(), testDrivers())
	require.NoError(t, err)
	return p
}

func TestSetupAndSettle(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()

	require.NoError(t, p.Setup(ctx, platform.PriorityDefault))

	pending, err := p.pendingDrivers()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"xcvr", "led"}, pending,
		"background drivers must not be started by the default tier")

	require.NoError(t, p.Setup(ctx, platform.PriorityBackground))

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, p.WaitReady(waitCtx))

	pending, err = p.pendingDrivers()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWaitReadyHonorsContext(t *testing.T) {
	p := newTestPlatform(t)

	// Nothing started: WaitReady must block until the context gives up.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.WaitReady(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitReadyObservesAnotherProcessState(t *testing.T) {
	// Two Platform values over the same state dir stand in for the parent
	// and the detached settle watcher.
	dir := t.TempDir()
	parent, err := newPlatform(dir, testDrivers())
	require.NoError(t, err)
	watcher, err := newPlatform(dir, testDrivers())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, parent.Setup(ctx, platform.PriorityDefault))

	done := make(chan error, 1)
	go func() {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		done <- watcher.WaitReady(waitCtx)
	}()

	require.NoError(t, parent.Setup(ctx, platform.PriorityBackground))
	require.NoError(t, <-done)
}

func TestCleanRemovesDriverState(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()

	require.NoError(t, p.Setup(ctx, platform.PriorityDefault))
	require.NoError(t, p.Clean(ctx))

	pending, err := p.pendingDrivers()
	require.NoError(t, err)
	assert.Len(t, pending, len(testDrivers()), "clean must forget every started driver")
}

func TestResetLines(t *testing.T) {
	p := newTestPlatform(t)

	line, ok := p.Inventory().Reset("phy0")
	require.True(t, ok)

	// Devices start held in reset.
	state, err := line.Read()
	require.NoError(t, err)
	assert.Equal(t, inventory.LineIn, state)

	require.NoError(t, p.ResetOut())
	state, err = line.Read()
	require.NoError(t, err)
	assert.Equal(t, inventory.LineOut, state)

	require.NoError(t, p.ResetIn())
	state, err = line.Read()
	require.NoError(t, err)
	assert.Equal(t, inventory.LineIn, state)
}

func TestWatchdogRoundTrip(t *testing.T) {
	p := newTestPlatform(t)
	wd := p.Inventory().Watchdog()
	require.NotNil(t, wd)

	status := wd.Status()
	require.NotEmpty(t, status)
	assert.Equal(t, "false", status["enabled"])

	require.True(t, wd.Arm(30000))
	status = wd.Status()
	assert.Equal(t, "true", status["enabled"])
	assert.Equal(t, "5m0s", status["timeout"])

	require.True(t, wd.Stop())
	assert.Equal(t, "false", wd.Status()["enabled"])
}

func TestReloadCausesClearOnRead(t *testing.T) {
	p := newTestPlatform(t)

	causes, err := p.ReloadCauses(false)
	require.NoError(t, err)
	require.Len(t, causes, 1, "a fresh state tree seeds one boot cause")
	assert.Equal(t, "powerloss", causes[0].Name)

	causes, err = p.ReloadCauses(true)
	require.NoError(t, err)
	require.Len(t, causes, 1)

	causes, err = p.ReloadCauses(false)
	require.NoError(t, err)
	assert.Empty(t, causes, "clear-on-read must not report the same cause twice")
}
