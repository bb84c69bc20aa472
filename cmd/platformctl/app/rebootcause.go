package app

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/autopeer-io/platformctl/cmd/platformctl/app/options"
	"github.com/autopeer-io/platformctl/internal/filelock"
	"github.com/autopeer-io/platformctl/internal/rebootcause"
	"github.com/autopeer-io/platformctl/pkg/app"
)

func newRebootCauseCmd(a *app.App, opts *options.Options) *cobra.Command {
	var history bool

	cmd := &cobra.Command{
		Use:   "reboot-cause",
		Short: "Report why the system last restarted",
		Long: `Fetch the hardware-recorded reload causes, fold them into the persisted
history, and report them. The default mode shows only the causes from this
fetch; --history shows everything ever recorded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Mutating: the fetch clears hardware registers.
			if err := prepare(a, cmd, opts, true); err != nil {
				return err
			}
			p, err := newPlatform(opts)
			if err != nil {
				return err
			}

			var store rebootcause.Store
			if path := opts.Platform.CauseFile; path != "" {
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return err
				}
				store = rebootcause.NewFileStore(path)
			}

			lock := filelock.New(opts.Platform.LockPath)
			return rebootcause.New(p, store, lock, cmd.OutOrStdout()).Report(history)
		},
	}

	cmd.Flags().BoolVar(&history, "history", false, "Report the full persisted history instead of the latest fetch.")
	return cmd
}
