package rebootcause

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/platformctl/internal/inventory"
	"github.com/autopeer-io/platformctl/internal/platform"
)

// causePlatform serves scripted reload causes and records whether the fetch
// asked for clear-on-read.
type causePlatform struct {
	causes     []platform.Cause
	clearCalls []bool
}

func (p *causePlatform) Name() string                                 { return "fake" }
func (p *causePlatform) Setup(context.Context, platform.Priority) error { return nil }
func (p *causePlatform) Clean(context.Context) error                  { return nil }
func (p *causePlatform) ResetIn() error                               { return nil }
func (p *causePlatform) ResetOut() error                              { return nil }
func (p *causePlatform) WaitReady(context.Context) error              { return nil }
func (p *causePlatform) Inventory() *inventory.Inventory              { return inventory.New(nil, nil) }

func (p *causePlatform) ReloadCauses(clear bool) ([]platform.Cause, error) {
	p.clearCalls = append(p.clearCalls, clear)
	causes := p.causes
	if clear {
		p.causes = nil
	}
	return causes, nil
}

type nopLock struct {
	acquired int
	released int
}

func (l *nopLock) Acquire() error { l.acquired++; return nil }
func (l *nopLock) Release() error { l.released++; return nil }

func cause(name string, t time.Time) platform.Cause {
	return platform.Cause{Name: name, Time: t}
}

func TestHistoryAccumulatesInOrder(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "causes.json"))
	now := time.Now().Round(time.Second)

	require.NoError(t, store.Update([]platform.Cause{cause("c1", now)}))
	require.NoError(t, store.Update([]platform.Cause{cause("c2", now.Add(time.Hour))}))

	history, err := store.History()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "c1", history[0].Name)
	assert.Equal(t, "c2", history[1].Name)

	latest, err := store.Latest()
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "c2", latest[0].Name)
}

func TestReportFetchesUnderLockWithClear(t *testing.T) {
	p := &causePlatform{causes: []platform.Cause{cause("watchdog", time.Now())}}
	lock := &nopLock{}
	store := NewFileStore(filepath.Join(t.TempDir(), "causes.json"))

	var out bytes.Buffer
	tr := New(p, store, lock, &out)
	require.NoError(t, tr.Report(false))

	assert.Equal(t, []bool{true}, p.clearCalls, "persisted fetches must clear hardware registers")
	assert.Equal(t, 1, lock.acquired)
	assert.Equal(t, 1, lock.released)
	assert.Contains(t, out.String(), "watchdog")
}

func TestReportHistoryVersusLatest(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "causes.json"))
	lock := &nopLock{}
	now := time.Now()

	// First boot reported a power loss.
	p := &causePlatform{causes: []platform.Cause{cause("powerloss", now)}}
	require.NoError(t, New(p, store, lock, &bytes.Buffer{}).Report(false))

	// Second boot reported a watchdog reset; default mode shows only it.
	p = &causePlatform{causes: []platform.Cause{cause("watchdog", now.Add(time.Hour))}}
	var out bytes.Buffer
	require.NoError(t, New(p, store, lock, &out).Report(false))
	assert.NotContains(t, out.String(), "powerloss")
	assert.Contains(t, out.String(), "watchdog")

	// History mode shows both, oldest first.
	p = &causePlatform{}
	out.Reset()
	require.NoError(t, New(p, store, lock, &out).Report(true))
	got := out.String()
	assert.Contains(t, got, "powerloss")
	assert.Contains(t, got, "watchdog")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("powerloss")), bytes.Index(out.Bytes(), []byte("watchdog")))
}

func TestReportEmptyIsExplicit(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "causes.json"))
	var out bytes.Buffer
	tr := New(&causePlatform{}, store, &nopLock{}, &out)

	require.NoError(t, tr.Report(false))
	assert.Contains(t, out.String(), "No reboot causes found")
}

func TestReportWithoutDurableState(t *testing.T) {
	p := &causePlatform{causes: []platform.Cause{cause("thermal", time.Now())}}
	var out bytes.Buffer
	tr := New(p, nil, &nopLock{}, &out)

	require.NoError(t, tr.Report(false))
	assert.Equal(t, []bool{false}, p.clearCalls, "without a store the fetch must not clear hardware state")
	assert.Contains(t, out.String(), "thermal")
}
