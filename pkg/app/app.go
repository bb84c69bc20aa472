package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/term"
)

// RunFunc is the application's run callback, invoked after flag parsing,
// config binding and option validation.
type RunFunc func() error

// App wraps a cobra command with the option/config plumbing shared by all
// platformctl-style binaries: named flag sets, a config file bound through
// viper, and uniform error reporting.
type App struct {
	name        string
	shortDesc   string
	description string
	options     NamedFlagSetOptions
	runFunc     RunFunc
	silence     bool
	noConfig    bool
	noArgs      bool
	subcommands []*cobra.Command
	cmd         *cobra.Command
}

// Option configures an App.
type Option func(*App)

// WithOptions attaches the command-line options the app exposes.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc sets the run callback.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithDescription sets the long help text.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithSubCommands registers subcommands on the root command. Apps with
// subcommands typically have no run func of their own.
func WithSubCommands(cmds ...*cobra.Command) Option {
	return func(a *App) {
		a.subcommands = append(a.subcommands, cmds...)
	}
}

// WithSilence suppresses cobra's own usage/error printing; errors are
// reported once by Run.
func WithSilence() Option {
	return func(a *App) {
		a.silence = true
	}
}

// WithNoConfig disables the --config flag and config file loading.
func WithNoConfig() Option {
	return func(a *App) {
		a.noConfig = true
	}
}

// WithDefaultValidArgs rejects any positional arguments on the root command.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.noArgs = true
	}
}

// NewApp builds an application with the given name and description.
func NewApp(name string, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
	}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  a.silence,
		SilenceErrors: a.silence,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true
	if a.noArgs {
		cmd.Args = cobra.NoArgs
	}

	for _, sub := range a.subcommands {
		cmd.AddCommand(sub)
	}

	if a.runFunc != nil {
		cmd.RunE = a.runCommand
	}

	var fss cliflag.NamedFlagSets
	if a.options != nil {
		fss = a.options.Flags()
		for _, fs := range fss.FlagSets {
			cmd.PersistentFlags().AddFlagSet(fs)
		}
	}
	if !a.noConfig {
		addConfigFlag(a.name, fss.FlagSet("global"))
		cmd.PersistentFlags().AddFlagSet(fss.FlagSet("global"))
	}

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, fss, cols)

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	if err := a.Prepare(cmd); err != nil {
		return err
	}
	return a.runFunc()
}

// Prepare binds parsed flags and the optional config file into the app's
// options, then completes and validates them. Subcommands call this from
// their own RunE before doing any work.
func (a *App) Prepare(cmd *cobra.Command) error {
	// Undo GOMAXPROCS overrides quietly when running in a cpu-limited cgroup.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	if !a.noConfig {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		if err := loadConfig(a.name); err != nil {
			return err
		}
		if a.options != nil {
			if err := viper.Unmarshal(a.options); err != nil {
				return fmt.Errorf("failed to unmarshal configuration: %w", err)
			}
		}
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Command exposes the underlying cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run parses arguments and executes the application. Any error is printed
// once to stderr and the process exits non-zero.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: error: %v\n", a.name, err)
		os.Exit(1)
	}
}
