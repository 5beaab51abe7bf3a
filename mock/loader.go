package mock

import (
	"github.com/tetratelabs/wazero"

	"github.com/partite-ai/wacomock/domain"
)

// LoadStrategy decides how a domain is asked to define a generated module.
// Resolve must be a pure function of its arguments.
type LoadStrategy interface {
	Resolve(d domain.Domain, name string, quarantined bool) LoadAction
}

// LoadAction is a concrete loading decision.
type LoadAction struct {
	// Anonymous defines the module without registering its name in the
	// domain, allowing repeated definitions of the same artifact.
	Anonymous bool
	// StartFunctions are run on definition. Empty means none, which keeps
	// interception from firing before an interceptor is bound.
	StartFunctions []string
}

func (a LoadAction) moduleConfig(name string) wazero.ModuleConfig {
	config := wazero.NewModuleConfig().WithStartFunctions(a.StartFunctions...)
	if a.Anonymous {
		return config.WithName("")
	}
	return config.WithName(name)
}

// InjectionStrategy is the default loading policy: register the generated
// module under its synthesized name and run nothing at definition time.
type InjectionStrategy struct{}

var _ LoadStrategy = InjectionStrategy{}

func (InjectionStrategy) Resolve(d domain.Domain, name string, quarantined bool) LoadAction {
	return LoadAction{}
}
