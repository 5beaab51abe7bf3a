package mock

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/partite-ai/wacomock/domain"
	"github.com/partite-ai/wacomock/intercept"
	"github.com/partite-ai/wacomock/types"
)

// MethodMatcher selects which methods of the target surface are intercepted.
type MethodMatcher func(m *types.Method) bool

// MatchAll is the default interception predicate.
func MatchAll(m *types.Method) bool { return true }

// Generator synthesizes mock modules. It is safe for concurrent use; each
// synthesis call is independent and shares only the suffix source and the
// interceptor registry, both of which serialize access internally.
type Generator struct {
	engine   domain.Domain
	ambient  domain.Domain
	access   domain.AccessControl
	support  *intercept.Support
	registry *intercept.Registry
	loader   LoadStrategy
	matcher  MethodMatcher
	readSub  intercept.ReadSubstitution
	names    *suffixSource
}

type Option func(*Generator)

// WithLoader replaces the loading policy.
func WithLoader(strategy LoadStrategy) Option {
	return func(g *Generator) { g.loader = strategy }
}

// WithMatcher replaces the match-all interception predicate.
func WithMatcher(matcher MethodMatcher) Option {
	return func(g *Generator) { g.matcher = matcher }
}

// WithReadSubstitution wires a post-deserialization substitution hook into
// every generated type.
func WithReadSubstitution(sub intercept.ReadSubstitution) Option {
	return func(g *Generator) { g.readSub = sub }
}

// WithAccessControl replaces the access-control capability. Use
// domain.NoopAccessControl on hosts without namespace boundaries.
func WithAccessControl(access domain.AccessControl) Option {
	return func(g *Generator) { g.access = access }
}

// WithAmbient sets the ambient domain of the invoking execution context.
// It defaults to the engine's own domain.
func WithAmbient(ambient domain.Domain) Option {
	return func(g *Generator) { g.ambient = ambient }
}

func NewGenerator(engine domain.Domain, opts ...Option) *Generator {
	g := &Generator{
		engine:   engine,
		ambient:  engine,
		support:  intercept.NewSupport(),
		registry: intercept.NewRegistry(),
		loader:   InjectionStrategy{},
		matcher:  MatchAll,
		names:    newSuffixSource(),
	}
	g.access = intercept.NewDomainAccess(g.support)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Registry() *intercept.Registry {
	return g.registry
}

func (g *Generator) Access() domain.AccessControl {
	return g.access
}

// GeneratedType is the loadable, instantiable result of one synthesis call.
// Its modules live in the resolved domain; Close releases only what this
// call created.
type GeneratedType struct {
	Name        string
	Domain      domain.Domain
	Quarantined bool
	Binary      []byte
	Compiled    wazero.CompiledModule
	Module      api.Module

	companion api.Module
}

func (t *GeneratedType) Close(ctx context.Context) error {
	var firstErr error
	for _, c := range []interface {
		Close(context.Context) error
	}{t.Module, t.Compiled, t.companion} {
		if c == nil {
			continue
		}
		if err := c.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Synthesize produces one new mock type for the given features. Every call
// yields a distinct type: names, descriptors and modules are never cached or
// reused across calls.
func (g *Generator) Synthesize(ctx context.Context, features *MockFeatures) (*GeneratedType, error) {
	target := features.Target

	interfaceDomains := make([]domain.Domain, 0, len(features.Interfaces))
	for _, iface := range features.Interfaces {
		interfaceDomains = append(interfaceDomains, iface.Domain)
	}
	dom := domain.Compose(target.Domain, interfaceDomains, g.ambient, g.engine)
	if dom == nil {
		return nil, &LoadError{Type: target.Name, Err: fmt.Errorf("no domain available to define the mock in")}
	}
	sameDomain := dom == target.Domain

	name, quarantined, queryErr := g.nameFor(target, sameDomain)
	var queryDiag *AccessQueryError
	if queryErr != nil {
		queryDiag = &AccessQueryError{Type: target.Name, Err: queryErr}
	}

	if !sameDomain {
		if !target.Public {
			return nil, &VisibilityError{Type: target.Name}
		}
		for _, iface := range features.Interfaces {
			if !iface.Public {
				return nil, &VisibilityError{Type: iface.Name}
			}
		}
	} else {
		canRead, err := g.access.CanRead(dom, g.engine)
		if err != nil {
			if queryDiag == nil {
				queryDiag = &AccessQueryError{Type: target.Name, Err: err}
			}
			canRead = false
		}
		if !canRead {
			if err := g.access.GrantRead(ctx, dom, g.engine); err != nil {
				return nil, &AccessRepairError{Type: target.Name, Query: queryDiag, Err: err}
			}
		}
	}

	supportName := name + "$Support"
	desc := g.descriptorFor(features, name, supportName, sameDomain)
	artifact, err := desc.emit()
	if err != nil {
		return nil, &DescriptorError{Type: target.Name, Err: err}
	}

	companion, err := g.support.Bind(ctx, dom, supportName, desc.methods, g.registry, g.readSub)
	if err != nil {
		return nil, &LoadError{Type: target.Name, Name: name, Err: err}
	}

	compiled, err := dom.Compile(ctx, artifact)
	if err != nil {
		companion.Close(ctx)
		return nil, &LoadError{Type: target.Name, Name: name, Err: err}
	}

	action := g.loader.Resolve(dom, name, quarantined)
	module, err := dom.Define(ctx, compiled, action.moduleConfig(name))
	if err != nil {
		compiled.Close(ctx)
		companion.Close(ctx)
		return nil, &LoadError{Type: target.Name, Name: name, Err: err}
	}

	return &GeneratedType{
		Name:        name,
		Domain:      dom,
		Quarantined: quarantined,
		Binary:      artifact,
		Compiled:    compiled,
		Module:      module,
		companion:   companion,
	}, nil
}

// Bind attaches an interceptor to a generated instance through its accessor
// capability. A non-nil real module gives Invocation.Real something to fall
// back to.
func (g *Generator) Bind(ctx context.Context, t *GeneratedType, interceptor intercept.Interceptor, real api.Module) (*intercept.Access, error) {
	access, err := intercept.NewAccess(t.Module, g.registry)
	if err != nil {
		return nil, err
	}
	if _, err := access.Set(ctx, interceptor, real); err != nil {
		return nil, err
	}
	return access, nil
}
