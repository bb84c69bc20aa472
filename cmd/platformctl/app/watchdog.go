package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/autopeer-io/platformctl/cmd/platformctl/app/options"
	"github.com/autopeer-io/platformctl/internal/watchdogctl"
	"github.com/autopeer-io/platformctl/pkg/app"
)

func newWatchdogCmd(a *app.App, opts *options.Options) *cobra.Command {
	var (
		status     bool
		stop       bool
		armSeconds int
	)

	cmd := &cobra.Command{
		Use:   "watchdog (--status|--stop|--arm[=SECONDS])",
		Short: "Control the hardware watchdog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := prepare(a, cmd, opts, true); err != nil {
				return err
			}

			armRequested := cmd.Flags().Changed("arm")
			if err := exactlyOneWatchdogMode(status, stop, armRequested); err != nil {
				return err
			}

			p, err := newPlatform(opts)
			if err != nil {
				return err
			}
			wd := p.Inventory().Watchdog()
			if wd == nil {
				return fmt.Errorf("platform %s has no watchdog", p.Name())
			}
			ctl := watchdogctl.New(wd, cmd.OutOrStdout())

			switch {
			case status:
				return ctl.Status()
			case stop:
				return ctl.Stop()
			default:
				return ctl.Arm(armSeconds)
			}
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Report the watchdog's diagnostic status.")
	cmd.Flags().BoolVar(&stop, "stop", false, "Disarm the watchdog.")
	cmd.Flags().IntVar(&armSeconds, "arm", watchdogctl.DefaultTimeoutSeconds, "Arm the watchdog with a timeout in seconds.")
	// --arm without a value arms with the default timeout.
	cmd.Flags().Lookup("arm").NoOptDefVal = strconv.Itoa(watchdogctl.DefaultTimeoutSeconds)
	return cmd
}

func exactlyOneWatchdogMode(status, stop, arm bool) error {
	selected := 0
	for _, mode := range []bool{status, stop, arm} {
		if mode {
			selected++
		}
	}
	if selected != 1 {
		return fmt.Errorf("exactly one of --status, --stop or --arm is required")
	}
	return nil
}
