package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/autopeer-io/platformctl/cmd/platformctl/app/options"
	"github.com/autopeer-io/platformctl/internal/orchestrator"
	"github.com/autopeer-io/platformctl/internal/platform"
	"github.com/autopeer-io/platformctl/pkg/app"
	"github.com/autopeer-io/platformctl/pkg/log"

	// Register the simulated platform.
	_ "github.com/autopeer-io/platformctl/internal/platform/sim"
)

const (
	commandName = "platformctl"
	commandDesc = `platformctl brings the hardware drivers of a switch platform up and down
in two priority-ordered phases and exposes reset-line, watchdog and
reboot-cause controls. Invocations that touch driver state are serialized
through a file lock, so concurrent runs wait instead of clobbering each
other.`
)

// NewApp assembles the platformctl command tree.
func NewApp() *app.App {
	opts := options.NewOptions()
	a := app.NewApp(
		commandName,
		"Manage switch platform driver lifecycle",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithSilence(),
	)

	a.Command().AddCommand(
		newSetupCmd(a, opts),
		newCleanCmd(a, opts),
		newResetCmd(a, opts),
		newWatchdogCmd(a, opts),
		newRebootCauseCmd(a, opts),
		newSettleCmd(a, opts),
	)
	return a
}

// prepare binds flags and config into opts, initializes logging and, for
// commands that mutate the platform, enforces the root requirement before
// anything else runs.
func prepare(a *app.App, cmd *cobra.Command, opts *options.Options, mutating bool) error {
	if err := a.Prepare(cmd); err != nil {
		return err
	}
	log.Init(opts.Log)

	if mutating && !opts.Platform.Simulation && os.Geteuid() != 0 {
		return fmt.Errorf("%s %s must run as root to touch hardware", commandName, cmd.Name())
	}
	return nil
}

// newPlatform instantiates the selected platform.
func newPlatform(opts *options.Options) (platform.Platform, error) {
	p, err := platform.New(opts.Platform.Config())
	if err != nil {
		return nil, fmt.Errorf("failed to create platform: %w", err)
	}
	return p, nil
}

// newOrchestrator wires the platform, lock and settle spawner together. The
// spawner re-invokes this binary's hidden settle command with the flags
// needed to reach the same platform state.
func newOrchestrator(p platform.Platform, opts *options.Options) *orchestrator.Orchestrator {
	cfg := orchestrator.RuntimeConfig{
		LockPath:   opts.Platform.LockPath,
		Simulation: opts.Platform.Simulation,
	}

	args := []string{"settle",
		"--platform.lock-path", opts.Platform.LockPath,
		"--platform.state-dir", opts.Platform.StateDir,
	}
	if opts.Platform.Simulation {
		args = append(args, "--platform.simulation")
	}
	if opts.Platform.Name != "" {
		args = append(args, "--platform.name", opts.Platform.Name)
	}

	return orchestrator.New(p, cfg, orchestrator.WithSpawner(orchestrator.NewSettleSpawner(args...)))
}
