// Package sim implements a file-backed simulated switch platform. Driver
// bring-up, reset lines, the watchdog and reload causes all live under a
// state directory, so every platformctl command is exercisable without
// hardware and a detached settle watcher can observe driver state across
// process boundaries.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/platformctl/internal/inventory"
	"github.com/autopeer-io/platformctl/internal/platform"
	"github.com/autopeer-io/platformctl/pkg/log"
)

func init() {
	platform.Register(platform.SimName, func(cfg *platform.Config) (platform.Platform, error) {
		return New(cfg.StateDir)
	})
}

const (
	driversSubdir = "drivers"
	resetsSubdir  = "resets"
	causesFile    = "reboot-causes.json"

	// settlePollInterval bounds how stale a time-based readiness check can
	// get when no filesystem events arrive.
	settlePollInterval = 100 * time.Millisecond
)

// Platform is the simulated SKU.
type Platform struct {
	dir     string
	drivers []driverSpec
	inv     *inventory.Inventory
	log     log.Logger
}

var _ platform.Platform = (*Platform)(nil)

// New builds a simulated platform rooted at dir, creating the state tree and
// seeding a boot cause on first use.
func New(dir string) (*Platform, error) {
	return newPlatform(dir, simDrivers)
}

func newPlatform(dir string, drivers []driverSpec) (*Platform, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "platformctl-sim")
	}
	for _, sub := range []string{driversSubdir, resetsSubdir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("provisioning sim state dir: %w", err)
		}
	}

	p := &Platform{
		dir:     dir,
		drivers: drivers,
		inv:     buildInventory(dir),
		log:     log.WithName("sim"),
	}
	if err := p.seedCauses(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Platform) Name() string {
	return platform.SimName
}

// StateDir returns the root of the simulated state tree.
func (p *Platform) StateDir() string {
	return p.dir
}

// Setup starts every driver of the given tier concurrently and returns once
// all of them are started. Background drivers are started with a future
// ready time; settling is WaitReady's business.
func (p *Platform) Setup(ctx context.Context, prio platform.Priority) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, spec := range p.drivers {
		if spec.prio != prio {
			continue
		}
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return p.startDriver(spec)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("setup of %s tier: %w", prio, err)
	}
	p.log.Debug("tier started", "priority", prio.String())
	return nil
}

func (p *Platform) startDriver(spec driverSpec) error {
	now := time.Now()
	st := driverState{
		Name:      spec.name,
		Priority:  spec.prio.String(),
		StartedAt: now,
		ReadyAt:   now.Add(spec.settle),
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	path := filepath.Join(p.dir, driversSubdir, spec.name+".json")
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("starting driver %s: %w", spec.name, err)
	}
	return nil
}

// Clean removes all driver bookkeeping, returning the platform to its
// pre-setup state. Reset lines and the watchdog are left alone.
func (p *Platform) Clean(ctx context.Context) error {
	dir := filepath.Join(p.dir, driversSubdir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("cleaning driver state: %w", err)
	}
	return os.MkdirAll(dir, 0o755)
}

// ResetIn holds every reset-controlled device in reset.
func (p *Platform) ResetIn() error {
	return p.forEachReset(inventory.ResetLine.In)
}

// ResetOut releases every reset-controlled device from reset.
func (p *Platform) ResetOut() error {
	return p.forEachReset(inventory.ResetLine.Out)
}

func (p *Platform) forEachReset(op func(inventory.ResetLine) error) error {
	for _, name := range p.inv.ResetNames() {
		line, _ := p.inv.Reset(name)
		if err := op(line); err != nil {
			return err
		}
	}
	return nil
}

// WaitReady blocks until every driver of the simulated SKU is started and
// past its ready time. Filesystem events wake the check when drivers start;
// a poll tick covers purely time-based readiness.
func (p *Platform) WaitReady(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching driver state: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Join(p.dir, driversSubdir)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching driver state: %w", err)
	}

	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()

	for {
		pending, err := p.pendingDrivers()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			p.log.Debug("all drivers settled")
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for drivers %v to settle: %w", pending, ctx.Err())
		case <-ticker.C:
		case <-watcher.Events:
		case err := <-watcher.Errors:
			return fmt.Errorf("watching driver state: %w", err)
		}
	}
}

// pendingDrivers lists drivers not yet started or not yet settled.
func (p *Platform) pendingDrivers() ([]string, error) {
	now := time.Now()
	var pending []string
	for _, spec := range p.drivers {
		st, ok, err := p.readDriver(spec.name)
		if err != nil {
			return nil, err
		}
		if !ok || !st.settled(now) {
			pending = append(pending, spec.name)
		}
	}
	return pending, nil
}

func (p *Platform) readDriver(name string) (driverState, bool, error) {
	var st driverState
	data, err := os.ReadFile(filepath.Join(p.dir, driversSubdir, name+".json"))
	if os.IsNotExist(err) {
		return st, false, nil
	}
	if err != nil {
		return st, false, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		// A concurrent writer may be mid-rename; treat as not started.
		return st, false, nil
	}
	return st, true, nil
}

// Inventory exposes the simulated reset lines and watchdog.
func (p *Platform) Inventory() *inventory.Inventory {
	return p.inv
}

// ReloadCauses reads the recorded boot causes, clearing them when asked so a
// cause is reported at most once.
func (p *Platform) ReloadCauses(clear bool) ([]platform.Cause, error) {
	path := filepath.Join(p.dir, causesFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading reload causes: %w", err)
	}
	var causes []platform.Cause
	if err := json.Unmarshal(data, &causes); err != nil {
		return nil, fmt.Errorf("decoding reload causes: %w", err)
	}
	if clear {
		if err := renameio.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return nil, fmt.Errorf("clearing reload causes: %w", err)
		}
	}
	return causes, nil
}

// seedCauses records a synthetic power-loss cause the first time the state
// tree is provisioned, standing in for what the real hardware latches at
// boot.
func (p *Platform) seedCauses() error {
	path := filepath.Join(p.dir, causesFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	causes := []platform.Cause{{
		Name:        "powerloss",
		Time:        time.Now(),
		Description: "simulated cold boot",
	}}
	data, err := json.Marshal(causes)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}
