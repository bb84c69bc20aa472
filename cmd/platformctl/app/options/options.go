package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/platformctl/pkg/app"
	"github.com/autopeer-io/platformctl/pkg/log"
	"github.com/autopeer-io/platformctl/pkg/options"
)

// Options carries the flags shared by every platformctl subcommand.
type Options struct {
	Platform *options.PlatformOptions `json:"platform" mapstructure:"platform"`
	Log      *log.Options             `json:"log" mapstructure:"log"`

	// Debug is shorthand for --log.level=debug.
	Debug bool `json:"debug" mapstructure:"debug"`

	// Simulation is shorthand for --platform.simulation.
	Simulation bool `json:"simulation" mapstructure:"simulation"`
}

var _ app.NamedFlagSetOptions = (*Options)(nil)

func NewOptions() *Options {
	return &Options{
		Platform: options.NewPlatformOptions(),
		Log:      log.NewOptions(),
	}
}

func (o *Options) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.Platform.AddFlags(fss.FlagSet("platform"))
	o.Log.AddFlags(fss.FlagSet("log"))
	global := fss.FlagSet("global")
	global.BoolVar(&o.Debug, "debug", o.Debug, "Shorthand for --log.level=debug.")
	global.BoolVar(&o.Simulation, "simulation", o.Simulation, "Shorthand for --platform.simulation.")
	return fss
}

func (o *Options) Complete() error {
	if o.Debug {
		o.Log.Level = "debug"
	}
	if o.Simulation {
		o.Platform.Simulation = true
	}
	return o.Platform.Complete()
}

func (o *Options) Validate() error {
	errs := []error{}
	errs = append(errs, o.Platform.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}
