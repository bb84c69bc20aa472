// Package orchestrator drives the two-phase, fault-tolerant bring-up and
// teardown of a switch platform's drivers. Critical drivers are initialized
// synchronously under the process lock; background drivers may be handed to
// a detached settle watcher so the caller gets control back quickly.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/autopeer-io/platformctl/internal/filelock"
	"github.com/autopeer-io/platformctl/internal/platform"
	"github.com/autopeer-io/platformctl/pkg/log"
)

// RuntimeConfig carries the per-run settings the orchestrator needs.
// Explicit configuration rather than package state, so tests can isolate
// lock paths per test.
type RuntimeConfig struct {
	// LockPath is the file lock serializing setup/clean/reboot-cause across
	// processes.
	LockPath string

	// Simulation indicates no real hardware is being touched.
	Simulation bool
}

// SetupOptions selects the optional parts of the setup protocol.
type SetupOptions struct {
	// Reset releases reset-controlled devices after critical setup and
	// before background setup. Reset-controlled devices must not be
	// background-initialized; that is the platform catalog's contract, not
	// re-validated here.
	Reset bool

	// Background hands the settle step to a detached watcher process so
	// this invocation returns without blocking on slow drivers.
	Background bool
}

// CleanOptions selects the optional parts of the clean protocol.
type CleanOptions struct {
	// Reset holds reset-controlled devices in reset before teardown.
	Reset bool
}

// Orchestrator runs the setup and clean sequences for one platform.
type Orchestrator struct {
	cfg      RuntimeConfig
	platform platform.Platform
	lock     filelock.Mutex
	spawner  Spawner
	log      log.Logger
}

// Option customizes an Orchestrator; used by tests to substitute the lock
// and the spawner.
type Option func(*Orchestrator)

// WithMutex replaces the file lock.
func WithMutex(m filelock.Mutex) Option {
	return func(o *Orchestrator) {
		o.lock = m
	}
}

// WithSpawner replaces the settle-watcher spawner.
func WithSpawner(s Spawner) Option {
	return func(o *Orchestrator) {
		o.spawner = s
	}
}

// New builds an Orchestrator for the given platform and runtime config.
func New(p platform.Platform, cfg RuntimeConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		platform: p,
		lock:     filelock.New(cfg.LockPath),
		spawner:  NewSettleSpawner("settle"),
		log:      log.WithName("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Setup runs the bring-up protocol: critical drivers under the lock, an
// optional reset release, then background drivers either synchronously or
// behind a detached settle watcher.
func (o *Orchestrator) Setup(ctx context.Context, opts SetupOptions) error {
	m := newPhaseMachine(o.platform)

	// Critical setup and the reset release are the lock-guarded critical
	// section. The lock is released before any detach decision so neither
	// the watcher nor this process holds it while slow drivers settle.
	if err := o.withLock(func() error {
		o.log.Info("starting critical driver setup", "platform", o.platform.Name())
		if err := m.Event(ctx, eventCritical); err != nil {
			return fmt.Errorf("critical setup failed: %w", err)
		}
		if opts.Reset {
			o.log.Info("releasing devices from reset")
			if err := o.platform.ResetOut(); err != nil {
				return fmt.Errorf("reset release failed: %w", err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if opts.Background {
		if err := o.spawner.Spawn(); err != nil {
			// Spawn failure is environmental, not fatal: fall back to the
			// synchronous path so background setup is never silently skipped.
			o.log.Warn("failed to detach settle watcher, running background setup synchronously", "error", err)
			return o.runBackgroundSync(ctx, m)
		}
		o.log.Info("settle watcher detached, starting background driver setup")
		if err := m.Event(ctx, eventBackground); err != nil {
			return fmt.Errorf("background setup failed: %w", err)
		}
		return nil
	}

	return o.runBackgroundSync(ctx, m)
}

// runBackgroundSync performs background setup and settling in-process.
func (o *Orchestrator) runBackgroundSync(ctx context.Context, m *phaseMachine) error {
	o.log.Info("starting background driver setup")
	if err := m.Event(ctx, eventBackground); err != nil {
		return fmt.Errorf("background setup failed: %w", err)
	}
	o.log.Info("waiting for drivers to settle")
	if err := m.Event(ctx, eventSettle); err != nil {
		return fmt.Errorf("waiting for drivers failed: %w", err)
	}
	return nil
}

// Clean runs the teardown protocol. The reset assert happens before the
// lock: it only touches downstream hardware, not the driver bookkeeping the
// lock protects.
func (o *Orchestrator) Clean(ctx context.Context, opts CleanOptions) error {
	if opts.Reset {
		o.log.Info("holding devices in reset")
		if err := o.platform.ResetIn(); err != nil {
			return fmt.Errorf("reset assert failed: %w", err)
		}
	}

	return o.withLock(func() error {
		o.log.Info("cleaning platform drivers", "platform", o.platform.Name())
		if err := o.platform.Clean(ctx); err != nil {
			return fmt.Errorf("clean failed: %w", err)
		}
		return nil
	})
}

// Settle blocks until all asynchronous driver work has settled. This is the
// body of the detached watcher as well as the tail of a synchronous setup.
func (o *Orchestrator) Settle(ctx context.Context) error {
	o.log.Info("waiting for drivers to settle")
	if err := o.platform.WaitReady(ctx); err != nil {
		return fmt.Errorf("waiting for drivers failed: %w", err)
	}
	o.log.Info("drivers settled")
	return nil
}

// Lock exposes the orchestrator's mutex so sibling controllers (the
// reboot-cause tracker) share the same critical section.
func (o *Orchestrator) Lock() filelock.Mutex {
	return o.lock
}

// withLock runs fn while holding the process lock, releasing it on every
// path. Acquisition blocks until the lock is available.
func (o *Orchestrator) withLock(fn func() error) error {
	if err := o.lock.Acquire(); err != nil {
		return fmt.Errorf("acquiring process lock: %w", err)
	}
	defer func() {
		if err := o.lock.Release(); err != nil {
			o.log.Warn("failed to release process lock", "error", err)
		}
	}()
	return fn()
}
