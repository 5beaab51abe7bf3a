// Package intercept defines the contract between generated mock modules and
// the caller-supplied interception object, plus the host-side support module
// that carries calls from generated code back into Go.
package intercept

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/partite-ai/wacomock/types"
)

// Interceptor receives every intercepted call on a generated instance.
type Interceptor interface {
	// Intercept handles a plain method call. The returned values must match
	// the method's result arity.
	Intercept(ctx context.Context, inv *Invocation) ([]uint64, error)

	// Equals implements identity semantics for the generated instance.
	Equals(ctx context.Context, instance api.Module, other uint64) (bool, error)

	// HashCode implements hashing semantics for the generated instance.
	HashCode(ctx context.Context, instance api.Module) (uint32, error)

	// WriteReplace produces the pre-serialization substitute for the
	// instance, as an opaque handle meaningful to the caller's own
	// serialization scheme.
	WriteReplace(ctx context.Context, instance api.Module) (uint32, error)
}

// ReadSubstitution is a caller-supplied post-deserialization hook wired into
// the generated type as a private read-object member.
type ReadSubstitution func(ctx context.Context, instance api.Module, stream uint32) error

// Invocation describes one intercepted call.
type Invocation struct {
	// Instance is the generated module the call arrived on.
	Instance api.Module
	// Method is the originally declared signature.
	Method *types.Method
	// Args holds the raw call arguments.
	Args []uint64

	real api.Module
}

// Real invokes the original, non-intercepted behavior, when a real
// implementation was bound alongside the interceptor.
func (inv *Invocation) Real(ctx context.Context) ([]uint64, error) {
	if inv.real == nil {
		return nil, fmt.Errorf("method %s has no real implementation to fall back to", inv.Method.Name)
	}
	fn := inv.real.ExportedFunction(inv.Method.Name)
	if fn == nil {
		return nil, fmt.Errorf("real implementation does not export %s", inv.Method.Name)
	}
	return fn.Call(ctx, inv.Args...)
}

type registryEntry struct {
	interceptor Interceptor
	real        api.Module
	set         bool
}

// Registry maps the i32 interceptor handles stored inside generated modules
// to their Go-side interceptors. Handle zero is reserved for the unbound
// state. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries []registryEntry
	free    []uint32
}

func NewRegistry() *Registry {
	return &Registry{
		// Entry zero stays unset so that a freshly generated instance, whose
		// interceptor global is zero, cannot resolve to a live interceptor.
		entries: []registryEntry{{}},
	}
}

func (r *Registry) Add(interceptor Interceptor, real api.Module) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := registryEntry{interceptor: interceptor, real: real, set: true}
	if len(r.free) > 0 {
		idx := r.free[len(r.free)-1]
		r.free = r.free[:len(r.free)-1]
		r.entries[idx] = entry
		return idx
	}
	r.entries = append(r.entries, entry)
	return uint32(len(r.entries) - 1)
}

// Lookup resolves a handle to its interceptor; a never-bound or removed
// handle reports false.
func (r *Registry) Lookup(handle uint32) (Interceptor, api.Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handle >= uint32(len(r.entries)) || !r.entries[handle].set {
		return nil, nil, false
	}
	entry := r.entries[handle]
	return entry.interceptor, entry.real, true
}

// Get is the dispatch-path variant of Lookup. Generated code can only hold
// handles the registry issued, so an unbound handle here is a programming
// error and panics into the calling wasm stack.
func (r *Registry) Get(handle uint32) (Interceptor, api.Module) {
	interceptor, real, ok := r.Lookup(handle)
	if !ok {
		panic(fmt.Sprintf("no interceptor bound for handle %d", handle))
	}
	return interceptor, real
}

func (r *Registry) Remove(handle uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handle >= uint32(len(r.entries)) || !r.entries[handle].set {
		panic(fmt.Sprintf("no interceptor bound for handle %d", handle))
	}
	r.entries[handle] = registryEntry{}
	r.free = append(r.free, handle)
}
