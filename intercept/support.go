package intercept

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/partite-ai/wacomock/domain"
	"github.com/partite-ai/wacomock/types"
)

// Method names on per-mock companion modules. The companion module name is
// chosen by the generator; export names are fixed.
const (
	DispatchPrefix    = "intercept:"
	EqualsEntry       = "intercept:equals"
	HashCodeEntry     = "intercept:hash-code"
	WriteReplaceEntry = "intercept:write-replace"
	ReadObjectEntry   = "intercept:read-object"

	// grantReadExport is the single export of the engine's base support
	// module. Its presence in a domain is the read edge itself; the function
	// exists so probe-style callers on other hosts have something to invoke.
	grantReadExport = "grant-read"
)

// Support installs the engine's host-side modules into domains: the base
// support module whose presence marks a read edge, and the per-mock
// companion module that receives intercepted calls.
type Support struct {
	mu sync.Mutex
}

func NewSupport() *Support {
	return &Support{}
}

// Install defines the base support module in the domain. Idempotent.
func (s *Support) Install(ctx context.Context, d domain.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.Lookup(domain.EngineNamespace) != nil {
		return nil
	}

	_, err := d.Runtime().NewHostModuleBuilder(domain.EngineNamespace).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			// Presence of this module is the grant; nothing left to do.
		}), nil, nil).
		Export(grantReadExport).
		Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("failed to install support module into domain %s: %w", d.Name(), err)
	}
	return nil
}

// Installed reports whether the base support module is visible in the domain.
func (s *Support) Installed(d domain.Domain) bool {
	return d.Lookup(domain.EngineNamespace) != nil
}

// Bind instantiates the companion module a generated mock imports from: one
// dispatch entry per intercepted method plus the special entry points. The
// interceptor for a given call is resolved through the registry using the
// handle the generated code passes as its first argument.
func (s *Support) Bind(ctx context.Context, d domain.Domain, name string, methods []*types.Method, registry *Registry, readSub ReadSubstitution) (api.Module, error) {
	builder := d.Runtime().NewHostModuleBuilder(name)

	for _, m := range methods {
		paramTypes := []api.ValueType{api.ValueTypeI32}
		for _, p := range m.Params {
			vt, err := types.APIValueType(p)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", m.Name, err)
			}
			paramTypes = append(paramTypes, vt)
		}
		var resultTypes []api.ValueType
		for _, rt := range m.Results {
			vt, err := types.APIValueType(rt)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", m.Name, err)
			}
			resultTypes = append(resultTypes, vt)
		}

		method := m
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				interceptor, real := registry.Get(uint32(stack[0]))
				inv := &Invocation{
					Instance: mod,
					Method:   method,
					Args:     append([]uint64(nil), stack[1:1+len(method.Params)]...),
					real:     real,
				}
				results, err := interceptor.Intercept(ctx, inv)
				if err != nil {
					panic(fmt.Sprintf("interceptor failed for %s: %v", method.Name, err))
				}
				if len(results) != len(method.Results) {
					panic(fmt.Sprintf("interceptor returned %d values for %s, want %d", len(results), method.Name, len(method.Results)))
				}
				copy(stack, results)
			}), paramTypes, resultTypes).
			Export(DispatchPrefix + m.Name)
	}

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			interceptor, _ := registry.Get(uint32(stack[0]))
			eq, err := interceptor.Equals(ctx, mod, stack[1])
			if err != nil {
				panic(fmt.Sprintf("interceptor equals failed: %v", err))
			}
			stack[0] = 0
			if eq {
				stack[0] = 1
			}
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export(EqualsEntry)

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			interceptor, _ := registry.Get(uint32(stack[0]))
			hash, err := interceptor.HashCode(ctx, mod)
			if err != nil {
				panic(fmt.Sprintf("interceptor hash-code failed: %v", err))
			}
			stack[0] = uint64(hash)
		}), []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export(HashCodeEntry)

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			interceptor, _ := registry.Get(uint32(stack[0]))
			replacement, err := interceptor.WriteReplace(ctx, mod)
			if err != nil {
				panic(fmt.Sprintf("interceptor write-replace failed: %v", err))
			}
			stack[0] = uint64(replacement)
		}), []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export(WriteReplaceEntry)

	if readSub != nil {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				if err := readSub(ctx, mod, uint32(stack[1])); err != nil {
					panic(fmt.Sprintf("read substitution failed: %v", err))
				}
			}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
			Export(ReadObjectEntry)
	}

	companion, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to bind support module %s: %w", name, err)
	}
	return companion, nil
}

// DomainAccess is the wazero-backed access control: a read edge from a
// domain to the engine exists exactly when the engine's base support module
// is defined inside that domain. Namespace openness is explicit bookkeeping,
// adjusted by the embedding application.
type DomainAccess struct {
	support *Support

	mu    sync.Mutex
	opens map[string]map[string]bool
}

var _ domain.AccessControl = (*DomainAccess)(nil)

func NewDomainAccess(support *Support) *DomainAccess {
	return &DomainAccess{
		support: support,
		opens:   make(map[string]map[string]bool),
	}
}

func (a *DomainAccess) CanRead(from, to domain.Domain) (bool, error) {
	return a.support.Installed(from), nil
}

func (a *DomainAccess) IsOpen(from domain.Domain, namespace string, to domain.Domain) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opens[from.Name()][namespace], nil
}

func (a *DomainAccess) GrantRead(ctx context.Context, from, to domain.Domain) error {
	return a.support.Install(ctx, from)
}

// OpenNamespace records that a namespace of from is open to the engine.
func (a *DomainAccess) OpenNamespace(from domain.Domain, namespace string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opens[from.Name()] == nil {
		a.opens[from.Name()] = make(map[string]bool)
	}
	a.opens[from.Name()][namespace] = true
}
