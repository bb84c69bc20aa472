// Package watchdogctl arms, disarms and queries the hardware watchdog,
// converting caller-facing seconds into the device's tick unit and range
// checking before touching hardware.
package watchdogctl

import (
	"fmt"
	"io"
	"sort"

	"github.com/gosuri/uitable"

	"github.com/autopeer-io/platformctl/internal/inventory"
	"github.com/autopeer-io/platformctl/pkg/log"
)

const (
	// DefaultTimeoutSeconds is used when arming without an explicit timeout.
	DefaultTimeoutSeconds = 300

	// ticksPerSecond converts caller seconds into the device's native unit
	// of hundredths of a second.
	ticksPerSecond = 100

	// maxTicks is the exclusive upper bound of the device's timeout
	// register.
	maxTicks = 1 << 16
)

// Controller exposes the three watchdog operations.
type Controller struct {
	wd  inventory.Watchdog
	out io.Writer
	log log.Logger
}

// New builds a Controller for the given watchdog, writing status output to
// out.
func New(wd inventory.Watchdog, out io.Writer) *Controller {
	return &Controller{
		wd:  wd,
		out: out,
		log: log.WithName("watchdog"),
	}
}

// Status queries and prints the watchdog's diagnostic key/value pairs. An
// empty result is reported as a query failure; the device does not
// distinguish "query errored" from "no status available" and neither do we.
func (c *Controller) Status() error {
	status := c.wd.Status()
	if len(status) == 0 {
		return fmt.Errorf("failed to read watchdog status")
	}

	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := uitable.New()
	for _, k := range keys {
		table.AddRow(k, status[k])
	}
	_, err := fmt.Fprintln(c.out, table)
	return err
}

// Stop disarms the watchdog.
func (c *Controller) Stop() error {
	c.log.Info("disarming watchdog")
	if !c.wd.Stop() {
		return fmt.Errorf("failed to disarm watchdog")
	}
	return nil
}

// Arm starts the watchdog with the given timeout in whole seconds. The
// encoded tick value is range checked before the device is touched.
func (c *Controller) Arm(seconds int) error {
	ticks, err := EncodeTimeout(seconds)
	if err != nil {
		return err
	}
	c.log.Info("arming watchdog", "timeoutSeconds", seconds, "ticks", ticks)
	if !c.wd.Arm(ticks) {
		return fmt.Errorf("failed to arm watchdog for %d seconds", seconds)
	}
	return nil
}

// EncodeTimeout converts a timeout in seconds to device ticks, enforcing
// the register's valid range [0, 65536).
func EncodeTimeout(seconds int) (int, error) {
	if seconds < 0 {
		return 0, fmt.Errorf("watchdog timeout %ds is negative", seconds)
	}
	ticks := seconds * ticksPerSecond
	if ticks >= maxTicks {
		return 0, fmt.Errorf("watchdog timeout %ds encodes to %d ticks, exceeding the device maximum of %d", seconds, ticks, maxTicks-1)
	}
	return ticks, nil
}
