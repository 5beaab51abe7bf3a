// Package mock synthesizes, at run time, a new wasm module that behaves as a
// subtype of a target module type and redirects every matching export to a
// caller-supplied interceptor.
package mock

import (
	"fmt"

	"github.com/partite-ai/wacomock/types"
)

// SerializationMode selects how serialization-aware the generated type is.
type SerializationMode int

const (
	// SerializationNone generates no serialization capability.
	SerializationNone SerializationMode = iota
	// SerializationBasic marks the generated type serializable within its
	// own domain.
	SerializationBasic
	// SerializationAcrossDomains additionally wires the pre-serialization
	// substitution hook so instances survive a domain boundary.
	SerializationAcrossDomains
)

// MockFeatures describes one synthesis request. Created once per request and
// never mutated.
type MockFeatures struct {
	Target           *types.ModuleType
	Interfaces       []*types.ModuleType
	Serialization    SerializationMode
	StripAnnotations bool
}

func NewMockFeatures(target *types.ModuleType, interfaces []*types.ModuleType, serialization SerializationMode, stripAnnotations bool) (*MockFeatures, error) {
	if target == nil {
		return nil, fmt.Errorf("mock features require a target type")
	}
	seen := make(map[*types.ModuleType]bool, len(interfaces))
	for _, iface := range interfaces {
		if iface == nil {
			return nil, fmt.Errorf("mock features contain a nil interface")
		}
		if iface == target || seen[iface] {
			return nil, fmt.Errorf("duplicate interface %s in mock features", iface.Name)
		}
		seen[iface] = true
	}
	return &MockFeatures{
		Target:           target,
		Interfaces:       append([]*types.ModuleType(nil), interfaces...),
		Serialization:    serialization,
		StripAnnotations: stripAnnotations,
	}, nil
}
