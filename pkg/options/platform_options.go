package options

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/platformctl/internal/platform"
)

const (
	// DefaultLockPath serializes lifecycle invocations system-wide.
	DefaultLockPath = "/var/lock/platformctl.lock"

	// DefaultStateDir is where file-backed platforms keep driver state.
	DefaultStateDir = "/var/run/platformctl"

	// DefaultCauseFile persists the reboot-cause history.
	DefaultCauseFile = "/var/lib/platformctl/reboot-causes.json"
)

// PlatformOptions selects the platform and the filesystem locations the
// lifecycle tooling uses.
type PlatformOptions struct {
	// Name is the hardware SKU to drive. Ignored in simulation.
	Name string `json:"name,omitempty" mapstructure:"name"`

	// Simulation substitutes the file-backed simulated platform and drops
	// the root-permission requirement.
	Simulation bool `json:"simulation,omitempty" mapstructure:"simulation"`

	// LockPath is the process lock file. In simulation it is randomized
	// per run so parallel sim invocations don't serialize against the
	// system lock.
	LockPath string `json:"lock-path,omitempty" mapstructure:"lock-path"`

	// StateDir is the platform state directory.
	StateDir string `json:"state-dir,omitempty" mapstructure:"state-dir"`

	// CauseFile is the reboot-cause history file. Empty disables durable
	// reboot-cause state.
	CauseFile string `json:"cause-file,omitempty" mapstructure:"cause-file"`
}

// NewPlatformOptions returns PlatformOptions with production defaults.
func NewPlatformOptions() *PlatformOptions {
	return &PlatformOptions{
		LockPath:  DefaultLockPath,
		StateDir:  DefaultStateDir,
		CauseFile: DefaultCauseFile,
	}
}

// AddFlags binds command-line flags to the PlatformOptions fields. The
// dotted names line up with the config file's platform section so viper can
// merge both sources.
func (o *PlatformOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "platform.name", o.Name, "The hardware SKU to drive (ignored with --simulation).")
	fs.BoolVar(&o.Simulation, "platform.simulation", o.Simulation, "Run against the simulated platform instead of hardware.")
	fs.StringVar(&o.LockPath, "platform.lock-path", o.LockPath, "Path of the lock file serializing lifecycle invocations.")
	fs.StringVar(&o.StateDir, "platform.state-dir", o.StateDir, "Directory for platform driver state.")
	fs.StringVar(&o.CauseFile, "platform.cause-file", o.CauseFile, "File persisting the reboot-cause history (empty disables it).")
}

// Complete rewrites the defaults for simulation mode: state moves to a
// shared temp tree and the lock path is randomized per run.
func (o *PlatformOptions) Complete() error {
	if !o.Simulation {
		return nil
	}
	if o.StateDir == DefaultStateDir {
		o.StateDir = filepath.Join(os.TempDir(), "platformctl-sim")
	}
	if o.CauseFile == DefaultCauseFile {
		o.CauseFile = filepath.Join(o.StateDir, "cause-history.json")
	}
	if o.LockPath == DefaultLockPath {
		o.LockPath = filepath.Join(os.TempDir(), fmt.Sprintf("platformctl-sim-%d-%04d.lock", os.Getpid(), rand.Intn(10000)))
	}
	return nil
}

// Validate checks the option values.
func (o *PlatformOptions) Validate() []error {
	var errs []error
	if o.LockPath == "" {
		errs = append(errs, fmt.Errorf("lock-path must not be empty"))
	}
	if !o.Simulation && o.Name == "" {
		errs = append(errs, fmt.Errorf("no platform selected: pass --platform.name or --simulation"))
	}
	return errs
}

// Config builds the platform selection config.
func (o *PlatformOptions) Config() *platform.Config {
	return &platform.Config{
		Name:       o.Name,
		Simulation: o.Simulation,
		StateDir:   o.StateDir,
	}
}
