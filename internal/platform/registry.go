package platform

import (
	"fmt"
	"sort"
	"sync"
)

// Config selects and parameterizes a concrete platform.
type Config struct {
	// Name is the SKU name to instantiate. Empty selects the simulated
	// platform when Simulation is set.
	Name string

	// Simulation substitutes the file-backed simulated platform for real
	// hardware.
	Simulation bool

	// StateDir is where file-backed platforms keep their driver state.
	StateDir string
}

// Factory builds a Platform from a Config.
type Factory func(cfg *Config) (Platform, error)

// SimName is the registry name of the simulated platform.
const SimName = "sim"

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register adds a platform factory under the given SKU name. Concrete
// platforms call this from an init function; registering the same name twice
// is a programming error.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("platform: duplicate registration of %q", name))
	}
	registry[name] = factory
}

// New instantiates the platform selected by cfg. In simulation mode the
// simulated platform is used regardless of cfg.Name.
func New(cfg *Config) (Platform, error) {
	name := cfg.Name
	if cfg.Simulation {
		name = SimName
	}
	if name == "" {
		return nil, fmt.Errorf("no platform selected: set platform.name or enable simulation")
	}

	registryMu.Lock()
	factory, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unsupported platform %q (known: %v)", name, Names())
	}
	return factory(cfg)
}

// Names lists the registered platform SKUs in sorted order.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
