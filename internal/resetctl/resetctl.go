// Package resetctl applies reset-line operations to named devices from the
// platform inventory: assert, deassert, phase-ordered toggle, and a listing
// mode.
package resetctl

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"

	"github.com/autopeer-io/platformctl/internal/inventory"
	"github.com/autopeer-io/platformctl/pkg/log"
)

// Action is the reset operation requested for one invocation. Exactly one
// applies; List wins when several are requested.
type Action string

const (
	// ActionNone performs no operation; logged, not an error.
	ActionNone Action = ""
	// ActionIn asserts the reset line on every resolved device.
	ActionIn Action = "in"
	// ActionOut deasserts the reset line on every resolved device.
	ActionOut Action = "out"
	// ActionToggle asserts all lines, sleeps, then deasserts all lines.
	ActionToggle Action = "toggle"
	// ActionList prints every known line and its current state.
	ActionList Action = "list"
)

// DefaultToggleDelay is how long toggled devices are held in reset when the
// caller gives no delay.
const DefaultToggleDelay = 1 * time.Second

// Controller resolves device names against the inventory and applies reset
// operations.
type Controller struct {
	inv   *inventory.Inventory
	out   io.Writer
	log   log.Logger
	sleep func(time.Duration)
}

// Option customizes a Controller.
type Option func(*Controller)

// WithSleep replaces the toggle delay sleep; tests use it to avoid real
// waiting.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Controller) {
		c.sleep = sleep
	}
}

// New builds a Controller over the given inventory, writing listings to out.
func New(inv *inventory.Inventory, out io.Writer, opts ...Option) *Controller {
	c := &Controller{
		inv:   inv,
		out:   out,
		log:   log.WithName("reset"),
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run validates the device names, then applies the requested action. No
// reset operation is invoked on any device unless every name resolved.
func (c *Controller) Run(action Action, devices []string, delay time.Duration) error {
	names, lines, err := c.resolve(devices)
	if err != nil {
		return err
	}

	switch action {
	case ActionList:
		return c.list(names, lines)
	case ActionIn:
		c.log.Info("holding devices in reset", "devices", names)
		return c.apply(names, lines, inventory.ResetLine.In)
	case ActionOut:
		c.log.Info("releasing devices from reset", "devices", names)
		return c.apply(names, lines, inventory.ResetLine.Out)
	case ActionToggle:
		return c.toggle(names, lines, delay)
	case ActionNone:
		c.log.Info("no reset operation requested")
		return nil
	default:
		return fmt.Errorf("unknown reset action %q", action)
	}
}

// resolve maps device names to reset lines. No names means every known
// line. All unknown names are collected and reported together before any
// operation runs.
func (c *Controller) resolve(devices []string) ([]string, []inventory.ResetLine, error) {
	if len(devices) == 0 {
		devices = c.inv.ResetNames()
	}

	lines := make([]inventory.ResetLine, 0, len(devices))
	var unknown []error
	for _, name := range devices {
		line, ok := c.inv.Reset(name)
		if !ok {
			unknown = append(unknown, fmt.Errorf("unknown device %q", name))
			continue
		}
		lines = append(lines, line)
	}
	if len(unknown) > 0 {
		return nil, nil, errors.Join(unknown...)
	}
	return devices, lines, nil
}

func (c *Controller) apply(names []string, lines []inventory.ResetLine, op func(inventory.ResetLine) error) error {
	for i, line := range lines {
		if err := op(line); err != nil {
			return fmt.Errorf("device %s: %w", names[i], err)
		}
	}
	return nil
}

// toggle asserts every line, waits, then deasserts every line. The assert
// phase completes across all devices before any deassert happens; devices
// are never toggled one at a time.
func (c *Controller) toggle(names []string, lines []inventory.ResetLine, delay time.Duration) error {
	if delay <= 0 {
		delay = DefaultToggleDelay
	}
	c.log.Info("toggling devices", "devices", names, "delay", delay)

	if err := c.apply(names, lines, inventory.ResetLine.In); err != nil {
		return err
	}
	c.sleep(delay)
	return c.apply(names, lines, inventory.ResetLine.Out)
}

func (c *Controller) list(names []string, lines []inventory.ResetLine) error {
	table := uitable.New()
	table.AddRow("DEVICE", "RESET")
	for i, line := range lines {
		state, err := line.Read()
		if err != nil {
			return fmt.Errorf("device %s: %w", names[i], err)
		}
		table.AddRow(names[i], string(state))
	}
	_, err := fmt.Fprintln(c.out, table)
	return err
}
