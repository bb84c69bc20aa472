package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/renameio/v2"

	"github.com/autopeer-io/platformctl/internal/inventory"
	"github.com/autopeer-io/platformctl/internal/platform"
)

// driverSpec describes one simulated driver: its tier and how long it takes
// to settle after being started.
type driverSpec struct {
	name   string
	prio   platform.Priority
	settle time.Duration
}

// The simulated SKU: three critical drivers and three slow background ones.
var simDrivers = []driverSpec{
	{name: "scd", prio: platform.PriorityDefault},
	{name: "asic", prio: platform.PriorityDefault},
	{name: "power-cpld", prio: platform.PriorityDefault},
	{name: "xcvr", prio: platform.PriorityBackground, settle: 1200 * time.Millisecond},
	{name: "fan-cpld", prio: platform.PriorityBackground, settle: 700 * time.Millisecond},
	{name: "led", prio: platform.PriorityBackground, settle: 300 * time.Millisecond},
}

// Devices with reset lines. None of them are background-initialized, which
// keeps the setup --reset contract honest.
var simResetNames = []string{"asic", "phy0", "phy1", "security-chip"}

// driverState is the on-disk record for one started driver.
type driverState struct {
	Name      string    `json:"name"`
	Priority  string    `json:"priority"`
	StartedAt time.Time `json:"startedAt"`
	ReadyAt   time.Time `json:"readyAt"`
}

func (s driverState) settled(now time.Time) bool {
	return !now.Before(s.ReadyAt)
}

// fileResetLine is a reset line backed by a single state file. A missing
// file reads as "in": devices start held in reset.
type fileResetLine struct {
	name string
	path string
}

var _ inventory.ResetLine = (*fileResetLine)(nil)

func (l *fileResetLine) In() error  { return l.write(inventory.LineIn) }
func (l *fileResetLine) Out() error { return l.write(inventory.LineOut) }

func (l *fileResetLine) write(state inventory.LineState) error {
	if err := renameio.WriteFile(l.path, []byte(state), 0o644); err != nil {
		return fmt.Errorf("writing reset line %s: %w", l.name, err)
	}
	return nil
}

func (l *fileResetLine) Read() (inventory.LineState, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return inventory.LineIn, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading reset line %s: %w", l.name, err)
	}
	switch s := inventory.LineState(data); s {
	case inventory.LineIn, inventory.LineOut:
		return s, nil
	default:
		return "", fmt.Errorf("reset line %s holds invalid state %q", l.name, data)
	}
}

// watchdogState is the on-disk record of the simulated watchdog.
type watchdogState struct {
	Armed   bool      `json:"armed"`
	Ticks   int       `json:"ticks"`
	ArmedAt time.Time `json:"armedAt"`
}

// fileWatchdog simulates the hardware watchdog with a JSON state file.
type fileWatchdog struct {
	path string
}

var _ inventory.Watchdog = (*fileWatchdog)(nil)

func (w *fileWatchdog) load() (watchdogState, error) {
	var st watchdogState
	data, err := os.ReadFile(w.path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	return st, json.Unmarshal(data, &st)
}

func (w *fileWatchdog) store(st watchdogState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return renameio.WriteFile(w.path, data, 0o644)
}

func (w *fileWatchdog) Status() map[string]string {
	st, err := w.load()
	if err != nil {
		return nil
	}
	status := map[string]string{
		"enabled": strconv.FormatBool(st.Armed),
	}
	if st.Armed {
		timeout := time.Duration(st.Ticks) * 10 * time.Millisecond
		remaining := timeout - time.Since(st.ArmedAt)
		if remaining < 0 {
			remaining = 0
		}
		status["timeout"] = timeout.String()
		status["remaining"] = remaining.Round(10 * time.Millisecond).String()
	}
	return status
}

func (w *fileWatchdog) Stop() bool {
	st, err := w.load()
	if err != nil {
		return false
	}
	st.Armed = false
	return w.store(st) == nil
}

func (w *fileWatchdog) Arm(ticks int) bool {
	st := watchdogState{Armed: true, Ticks: ticks, ArmedAt: time.Now()}
	return w.store(st) == nil
}

func buildInventory(dir string) *inventory.Inventory {
	resets := make(map[string]inventory.ResetLine, len(simResetNames))
	for _, name := range simResetNames {
		resets[name] = &fileResetLine{
			name: name,
			path: filepath.Join(dir, "resets", name),
		}
	}
	return inventory.New(resets, &fileWatchdog{path: filepath.Join(dir, "watchdog.json")})
}
