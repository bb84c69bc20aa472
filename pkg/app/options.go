package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions is implemented by option structs that expose their
// flags in named groups for structured help output.
type NamedFlagSetOptions interface {
	// Flags returns the option flags grouped by section.
	Flags() cliflag.NamedFlagSets

	// Complete fills in defaults that depend on other options.
	Complete() error

	// Validate checks the final option values.
	Validate() error
}
