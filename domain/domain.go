// Package domain models the isolated code-loading namespaces that generated
// modules are defined into. A domain wraps a wazero runtime; a composite
// domain delegates symbol lookups across several domains in a fixed priority
// order while defining new modules into a runtime of its own.
package domain

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// EngineNamespace is the module name under which the engine's support
// functions are made visible inside a domain. A domain that can resolve this
// name is considered to have a read edge to the engine.
const EngineNamespace = "wacomock"

// Domain is an isolated namespace capable of defining modules and resolving
// module lookups. Domains are never owned by the synthesis engine; it only
// references and composes them.
type Domain interface {
	Name() string
	Runtime() wazero.Runtime
	Lookup(name string) api.Module
	Compile(ctx context.Context, binary []byte) (wazero.CompiledModule, error)
	Define(ctx context.Context, compiled wazero.CompiledModule, config wazero.ModuleConfig) (api.Module, error)
}

// RuntimeDomain is a Domain backed directly by a wazero runtime.
type RuntimeDomain struct {
	name    string
	runtime wazero.Runtime
}

var _ Domain = (*RuntimeDomain)(nil)

func NewRuntimeDomain(name string, runtime wazero.Runtime) *RuntimeDomain {
	return &RuntimeDomain{name: name, runtime: runtime}
}

func (d *RuntimeDomain) Name() string {
	return d.name
}

func (d *RuntimeDomain) Runtime() wazero.Runtime {
	return d.runtime
}

func (d *RuntimeDomain) Lookup(name string) api.Module {
	return d.runtime.Module(name)
}

func (d *RuntimeDomain) Compile(ctx context.Context, binary []byte) (wazero.CompiledModule, error) {
	return d.runtime.CompileModule(ctx, binary)
}

func (d *RuntimeDomain) Define(ctx context.Context, compiled wazero.CompiledModule, config wazero.ModuleConfig) (api.Module, error) {
	return d.runtime.InstantiateModule(ctx, compiled, config)
}

// Composite is a Domain that resolves lookups through its constituents in
// order and defines modules into a fresh runtime of its own. It exists for
// the cross-domain case: a generated module whose collaborators span several
// domains cannot live in any single one of them.
type Composite struct {
	name         string
	constituents []Domain

	mu      sync.Mutex
	runtime wazero.Runtime
}

var _ Domain = (*Composite)(nil)

func (c *Composite) Name() string {
	return c.name
}

func (c *Composite) Runtime() wazero.Runtime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureRuntime(context.Background())
}

func (c *Composite) ensureRuntime(ctx context.Context) wazero.Runtime {
	if c.runtime == nil {
		c.runtime = wazero.NewRuntime(ctx)
	}
	return c.runtime
}

func (c *Composite) Lookup(name string) api.Module {
	for _, d := range c.constituents {
		if m := d.Lookup(name); m != nil {
			return m
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runtime == nil {
		return nil
	}
	return c.runtime.Module(name)
}

func (c *Composite) Compile(ctx context.Context, binary []byte) (wazero.CompiledModule, error) {
	c.mu.Lock()
	rt := c.ensureRuntime(ctx)
	c.mu.Unlock()
	return rt.CompileModule(ctx, binary)
}

func (c *Composite) Define(ctx context.Context, compiled wazero.CompiledModule, config wazero.ModuleConfig) (api.Module, error) {
	c.mu.Lock()
	rt := c.ensureRuntime(ctx)
	c.mu.Unlock()
	return rt.InstantiateModule(ctx, compiled, config)
}

// Close releases the composite's own runtime, and with it every module that
// was defined through this composite. Constituent domains are untouched.
func (c *Composite) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runtime == nil {
		return nil
	}
	err := c.runtime.Close(ctx)
	c.runtime = nil
	return err
}

// Compose combines the domains involved in one synthesis into a single
// domain resolving symbols in priority order: target, interfaces, ambient,
// engine. Composition always succeeds. When every other domain is nil or
// identical to the target, the target domain itself is returned, which is
// what makes same-domain placement observable to the caller.
func Compose(target Domain, interfaces []Domain, ambient Domain, engine Domain) Domain {
	ordered := make([]Domain, 0, len(interfaces)+3)
	ordered = append(ordered, target)
	ordered = append(ordered, interfaces...)
	ordered = append(ordered, ambient, engine)

	var distinct []Domain
	for _, d := range ordered {
		if d == nil {
			continue
		}
		seen := false
		for _, existing := range distinct {
			if existing == d {
				seen = true
				break
			}
		}
		if !seen {
			distinct = append(distinct, d)
		}
	}

	if len(distinct) == 0 {
		return nil
	}
	if len(distinct) == 1 && distinct[0] == target {
		return target
	}
	return &Composite{
		name:         "composite:" + distinct[0].Name(),
		constituents: distinct,
	}
}
