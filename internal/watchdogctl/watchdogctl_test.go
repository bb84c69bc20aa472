package watchdogctl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWatchdog struct {
	status   map[string]string
	stopOK   bool
	armOK    bool
	armCalls []int
}

func (f *fakeWatchdog) Status() map[string]string { return f.status }
func (f *fakeWatchdog) Stop() bool                { return f.stopOK }

func (f *fakeWatchdog) Arm(ticks int) bool {
	f.armCalls = append(f.armCalls, ticks)
	return f.armOK
}

func TestEncodeTimeout(t *testing.T) {
	tests := []struct {
		seconds int
		ticks   int
		wantErr bool
	}{
		{0, 0, false},
		{1, 100, false},
		{300, 30000, false},
		{655, 65500, false},
		{656, 0, true}, // 65600 ticks, past the register limit
		{1000, 0, true},
		{-1, 0, true},
	}

	for _, tt := range tests {
		ticks, err := EncodeTimeout(tt.seconds)
		if tt.wantErr {
			assert.Error(t, err, "seconds=%d", tt.seconds)
			continue
		}
		require.NoError(t, err, "seconds=%d", tt.seconds)
		assert.Equal(t, tt.ticks, ticks, "seconds=%d", tt.seconds)
	}
}

func TestArmEncodesSeconds(t *testing.T) {
	wd := &fakeWatchdog{armOK: true}
	c := New(wd, &bytes.Buffer{})

	require.NoError(t, c.Arm(300))
	assert.Equal(t, []int{30000}, wd.armCalls)
}

func TestArmRangeCheckPrecedesDevice(t *testing.T) {
	wd := &fakeWatchdog{armOK: true}
	c := New(wd, &bytes.Buffer{})

	require.Error(t, c.Arm(656))
	assert.Empty(t, wd.armCalls, "out-of-range timeouts must never reach the device")
}

func TestArmDeviceFailureIsFatal(t *testing.T) {
	wd := &fakeWatchdog{armOK: false}
	c := New(wd, &bytes.Buffer{})

	require.Error(t, c.Arm(DefaultTimeoutSeconds))
	assert.Equal(t, []int{30000}, wd.armCalls)
}

func TestStop(t *testing.T) {
	c := New(&fakeWatchdog{stopOK: true}, &bytes.Buffer{})
	require.NoError(t, c.Stop())

	c = New(&fakeWatchdog{stopOK: false}, &bytes.Buffer{})
	require.Error(t, c.Stop())
}

func TestStatusPrintsSortedPairs(t *testing.T) {
	var out bytes.Buffer
	c := New(&fakeWatchdog{status: map[string]string{
		"timeout": "5m0s",
		"enabled": "true",
	}}, &out)

	require.NoError(t, c.Status())
	got := out.String()
	assert.Contains(t, got, "enabled")
	assert.Contains(t, got, "timeout")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("enabled")), bytes.Index(out.Bytes(), []byte("timeout")))
}

func TestStatusEmptyIsAFailure(t *testing.T) {
	c := New(&fakeWatchdog{status: nil}, &bytes.Buffer{})
	require.Error(t, c.Status())

	c = New(&fakeWatchdog{status: map[string]string{}}, &bytes.Buffer{})
	require.Error(t, c.Status(), "empty status must be treated as a failed query, not an unarmed timer")
}
