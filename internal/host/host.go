// Package host carries the capability flags the embedding host grants the
// type layer.
package host

import (
	"github.com/roach88/lockdown/internal/types"
)

// Capabilities are the ambient flags consumed by managers and function
// preparation.
type Capabilities struct {
	// Debug enables extra runtime re-verification of values against the
	// types preparation already proved.
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// RuntimeTypeInformation permits type_error tolerant micro-ops and
	// attaches context types during invocation.
	RuntimeTypeInformation bool `mapstructure:"runtime_type_information" yaml:"runtime_type_information"`
}

// Default returns the capabilities used when nothing is configured.
func Default() Capabilities {
	return Capabilities{RuntimeTypeInformation: true}
}

// CheckTolerance enforces the feature gate on tolerant type checks: a
// composite type with type_error tolerant micro-ops needs runtime type
// information.
func (c Capabilities) CheckTolerance(t *types.CompositeType) error {
	if c.RuntimeTypeInformation || !t.HasTolerantTypes() {
		return nil
	}
	return types.Fatalf(types.FatalToleranceGate,
		"%s has type_error tolerant micro-ops but runtime type information is disabled", t)
}
