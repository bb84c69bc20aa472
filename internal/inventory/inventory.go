// Package inventory defines the device inventory contract the lifecycle
// tooling operates on: named reset lines and the hardware watchdog. Concrete
// platforms populate an Inventory; the controllers only resolve names and
// invoke operations, they never own device state.
package inventory

import (
	"sort"
)

// LineState is the observable state of a reset line.
type LineState string

const (
	// LineIn means the device is held in reset.
	LineIn LineState = "in"
	// LineOut means the device is released from reset.
	LineOut LineState = "out"
)

// ResetLine is a hardware signal holding a device in or out of reset.
type ResetLine interface {
	// In asserts the reset line, holding the device in reset.
	In() error

	// Out deasserts the reset line, releasing the device.
	Out() error

	// Read returns the line's current state.
	Read() (LineState, error)
}

// Watchdog is the hardware watchdog singleton. Stop and Arm report success
// the way the device does: a bare boolean, no error detail.
type Watchdog interface {
	// Status returns the device's diagnostic key/value pairs. An empty map
	// means the query itself failed; the device does not distinguish that
	// from "no status available".
	Status() map[string]string

	// Stop disarms the watchdog.
	Stop() bool

	// Arm starts the watchdog with a timeout in device ticks (hundredths of
	// a second).
	Arm(ticks int) bool
}

// Inventory enumerates the platform's reset lines and watchdog.
type Inventory struct {
	resets   map[string]ResetLine
	watchdog Watchdog
}

// New builds an Inventory over the given reset lines and watchdog.
func New(resets map[string]ResetLine, wd Watchdog) *Inventory {
	if resets == nil {
		resets = map[string]ResetLine{}
	}
	return &Inventory{resets: resets, watchdog: wd}
}

// Resets returns all known reset lines keyed by device name.
func (i *Inventory) Resets() map[string]ResetLine {
	return i.resets
}

// Reset looks up a single reset line by device name.
func (i *Inventory) Reset(name string) (ResetLine, bool) {
	l, ok := i.resets[name]
	return l, ok
}

// ResetNames returns the known device names in sorted order.
func (i *Inventory) ResetNames() []string {
	names := make([]string, 0, len(i.resets))
	for name := range i.resets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Watchdog returns the platform watchdog, or nil if the platform has none.
func (i *Inventory) Watchdog() Watchdog {
	return i.watchdog
}
