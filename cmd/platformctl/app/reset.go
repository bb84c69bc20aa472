package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/autopeer-io/platformctl/cmd/platformctl/app/options"
	"github.com/autopeer-io/platformctl/internal/resetctl"
	"github.com/autopeer-io/platformctl/pkg/app"
)

func newResetCmd(a *app.App, opts *options.Options) *cobra.Command {
	var (
		in     bool
		out    bool
		toggle bool
		list   bool
		delay  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reset [devices...]",
		Short: "Drive device reset lines",
		Long: `Assert (--in), deassert (--out) or toggle (--toggle) the reset lines of
the named devices, or list all lines and their state (--list). With no
devices named, the operation applies to every known reset line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := prepare(a, cmd, opts, true); err != nil {
				return err
			}

			action, err := resetAction(in, out, toggle, list)
			if err != nil {
				return err
			}

			p, err := newPlatform(opts)
			if err != nil {
				return err
			}
			ctl := resetctl.New(p.Inventory(), cmd.OutOrStdout())
			return ctl.Run(action, args, delay)
		},
	}

	cmd.Flags().BoolVar(&in, "in", false, "Hold the devices in reset.")
	cmd.Flags().BoolVar(&out, "out", false, "Release the devices from reset.")
	cmd.Flags().BoolVar(&toggle, "toggle", false, "Hold the devices in reset, wait, then release them.")
	cmd.Flags().BoolVar(&list, "list", false, "List all reset lines and their current state.")
	cmd.Flags().DurationVar(&delay, "delay", resetctl.DefaultToggleDelay, "How long --toggle holds the devices in reset.")
	return cmd
}

// resetAction maps the mode flags to a single action. List wins over the
// mutating modes; the mutating modes are mutually exclusive; no mode at all
// is a logged no-op.
func resetAction(in, out, toggle, list bool) (resetctl.Action, error) {
	if list {
		return resetctl.ActionList, nil
	}

	selected := 0
	action := resetctl.ActionNone
	if in {
		selected++
		action = resetctl.ActionIn
	}
	if out {
		selected++
		action = resetctl.ActionOut
	}
	if toggle {
		selected++
		action = resetctl.ActionToggle
	}
	if selected > 1 {
		return resetctl.ActionNone, fmt.Errorf("--in, --out and --toggle are mutually exclusive")
	}
	return action, nil
}
