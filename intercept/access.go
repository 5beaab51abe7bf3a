package intercept

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// Exports every generated mock module carries.
const (
	GetInterceptorExport = "wacomock.get-interceptor"
	SetInterceptorExport = "wacomock.set-interceptor"
	WriteReplaceExport   = "wacomock.write-replace"
	SerialVersionExport  = "wacomock.serial-version"
	EqualsExport         = "equals"
	HashCodeExport       = "hash-code"
)

// Access is the minimal "has an interceptor, get/set it" capability over a
// generated instance.
type Access struct {
	module   api.Module
	registry *Registry
}

func NewAccess(module api.Module, registry *Registry) (*Access, error) {
	if module.ExportedFunction(GetInterceptorExport) == nil || module.ExportedFunction(SetInterceptorExport) == nil {
		return nil, fmt.Errorf("module %s does not expose the interceptor accessor capability", module.Name())
	}
	return &Access{module: module, registry: registry}, nil
}

// Handle returns the raw interceptor handle currently stored in the
// instance; zero means unbound.
func (a *Access) Handle(ctx context.Context) (uint32, error) {
	results, err := a.module.ExportedFunction(GetInterceptorExport).Call(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read interceptor: %w", err)
	}
	return uint32(results[0]), nil
}

// Interceptor resolves the instance's current interceptor.
func (a *Access) Interceptor(ctx context.Context) (Interceptor, error) {
	handle, err := a.Handle(ctx)
	if err != nil {
		return nil, err
	}
	if handle == 0 {
		return nil, fmt.Errorf("module %s has no interceptor bound", a.module.Name())
	}
	interceptor, _, ok := a.registry.Lookup(handle)
	if !ok {
		return nil, fmt.Errorf("module %s refers to interceptor handle %d, which is no longer bound", a.module.Name(), handle)
	}
	return interceptor, nil
}

// Set binds an interceptor to the instance and returns its handle. A nil
// real module means Invocation.Real will fail for this instance.
func (a *Access) Set(ctx context.Context, interceptor Interceptor, real api.Module) (uint32, error) {
	handle := a.registry.Add(interceptor, real)
	if _, err := a.module.ExportedFunction(SetInterceptorExport).Call(ctx, uint64(handle)); err != nil {
		a.registry.Remove(handle)
		return 0, fmt.Errorf("failed to set interceptor: %w", err)
	}
	return handle, nil
}
