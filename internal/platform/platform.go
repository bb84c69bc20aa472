// Package platform defines the contract between the lifecycle tooling and a
// concrete switch platform: the two-tier driver setup protocol, reset fanout,
// the settle operation and reload-cause retrieval. Which drivers a given SKU
// needs is the concrete platform's business.
package platform

import (
	"context"

	"github.com/autopeer-io/platformctl/internal/inventory"
)

// Priority orders driver bring-up. Default-tier work must complete in-process
// before any Background-tier work starts.
type Priority int

const (
	// PriorityDefault covers critical drivers: bring-up is not complete
	// until they have initialized.
	PriorityDefault Priority = iota

	// PriorityBackground covers slow, non-critical drivers whose completion
	// may be deferred past process exit.
	PriorityBackground
)

func (p Priority) String() string {
	switch p {
	case PriorityDefault:
		return "default"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// Platform is the driver catalog for one hardware SKU.
type Platform interface {
	// Name returns the platform's SKU name.
	Name() string

	// Setup initializes all drivers of the given priority tier. It returns
	// only once every driver of that tier has been started; for the
	// background tier, started does not mean settled.
	Setup(ctx context.Context, prio Priority) error

	// Clean tears down the driver bookkeeping created by Setup.
	Clean(ctx context.Context) error

	// ResetIn holds every reset-controlled device in reset.
	ResetIn() error

	// ResetOut releases every reset-controlled device from reset.
	ResetOut() error

	// WaitReady blocks until all asynchronous driver work has settled.
	WaitReady(ctx context.Context) error

	// Inventory exposes the platform's reset lines and watchdog.
	Inventory() *inventory.Inventory

	// ReloadCauses returns the hardware-recorded reasons for the last
	// restart. With clear set, the hardware registers are cleared so the
	// same causes are not reported twice.
	ReloadCauses(clear bool) ([]Cause, error)
}
