package app

import (
	"github.com/spf13/cobra"

	"github.com/autopeer-io/platformctl/cmd/platformctl/app/options"
	"github.com/autopeer-io/platformctl/internal/orchestrator"
	"github.com/autopeer-io/platformctl/pkg/app"
)

func newSetupCmd(a *app.App, opts *options.Options) *cobra.Command {
	var (
		reset      bool
		background bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Initialize platform drivers in priority order",
		Long: `Initialize critical drivers synchronously under the process lock, then
background drivers. With --background, settling is handed to a detached
watcher so this invocation returns without blocking on slow drivers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := prepare(a, cmd, opts, true); err != nil {
				return err
			}
			p, err := newPlatform(opts)
			if err != nil {
				return err
			}
			return newOrchestrator(p, opts).Setup(cmd.Context(), orchestrator.SetupOptions{
				Reset:      reset,
				Background: background,
			})
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Release reset-controlled devices after critical setup.")
	cmd.Flags().BoolVar(&background, "background", false, "Do not block on background drivers; detach a settle watcher.")
	return cmd
}

func newCleanCmd(a *app.App, opts *options.Options) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Tear down platform driver state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := prepare(a, cmd, opts, true); err != nil {
				return err
			}
			p, err := newPlatform(opts)
			if err != nil {
				return err
			}
			return newOrchestrator(p, opts).Clean(cmd.Context(), orchestrator.CleanOptions{
				Reset: reset,
			})
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Hold reset-controlled devices in reset before teardown.")
	return cmd
}

func newSettleCmd(a *app.App, opts *options.Options) *cobra.Command {
	return &cobra.Command{
		Use:    "settle",
		Short:  "Wait for all asynchronous driver work to settle, then exit",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := prepare(a, cmd, opts, false); err != nil {
				return err
			}
			p, err := newPlatform(opts)
			if err != nil {
				return err
			}
			return newOrchestrator(p, opts).Settle(cmd.Context())
		},
	}
}
