// Package types models the export surface of a module as a mockable type:
// named methods with typed signatures, visibility, origin attributes and
// annotations. The model is explicit on purpose; nothing here is derived
// lazily from the runtime during synthesis.
package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/partite-ai/wacomock/domain"
	"github.com/partite-ai/wacomock/wasm"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// ValueType is a parameter or result type in a method signature.
type ValueType interface {
	valueType()
	String() string
}

type I32 struct{}

func (I32) valueType()     {}
func (I32) String() string { return "i32" }

type I64 struct{}

func (I64) valueType()     {}
func (I64) String() string { return "i64" }

type F32 struct{}

func (F32) valueType()     {}
func (F32) String() string { return "f32" }

type F64 struct{}

func (F64) valueType()     {}
func (F64) String() string { return "f64" }

// Named is a reference to a declared type with its own visibility. Its core
// representation is what actually crosses the call boundary.
type Named struct {
	Name     string
	Repr     ValueType
	Exported bool
}

func (Named) valueType() {}

func (n Named) String() string { return n.Name }

// Core unwraps named references down to the primitive representation.
func Core(vt ValueType) ValueType {
	for {
		named, ok := vt.(Named)
		if !ok {
			return vt
		}
		vt = named.Repr
	}
}

// Public reports whether a signature type may be referenced from a foreign
// domain. Primitives always may; named types only when exported under a
// public name.
func Public(vt ValueType) bool {
	named, ok := vt.(Named)
	if !ok {
		return true
	}
	return named.Exported && PublicName(named.Name)
}

// Method is one callable member of a module type.
type Method struct {
	Name       string
	Params     []ValueType
	Results    []ValueType
	DeclaredBy string
}

func (m *Method) Public() bool {
	return PublicName(m.Name)
}

// SignaturePublic reports whether every type in the signature is publicly
// accessible.
func (m *Method) SignaturePublic() bool {
	for _, p := range m.Params {
		if !Public(p) {
			return false
		}
	}
	for _, r := range m.Results {
		if !Public(r) {
			return false
		}
	}
	return true
}

func (m *Method) String() string {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.String()
	}
	results := make([]string, len(m.Results))
	for i, r := range m.Results {
		results[i] = r.String()
	}
	return fmt.Sprintf("%s(%s) -> (%s)", m.Name, strings.Join(params, ", "), strings.Join(results, ", "))
}

// Annotation is a piece of opaque type-level metadata, carried as a custom
// section on the module binary.
type Annotation struct {
	Name string
	Data []byte
}

// ModuleType is the type to be subtyped by one synthesis call.
type ModuleType struct {
	Name        string
	Namespace   string
	Public      bool
	Sealed      bool
	Signed      bool
	Methods     []*Method
	Annotations []Annotation
	Domain      domain.Domain
}

// RuntimeBuiltin reports whether the type originates from the host runtime's
// own standard library.
func (t *ModuleType) RuntimeBuiltin() bool {
	return IsRuntimeNamespace(t.Namespace)
}

func (t *ModuleType) Method(name string) *Method {
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// PublicName reports whether a qualified name is publicly accessible. Any
// segment starting with an underscore marks the name as internal, matching
// the convention used for runtime plumbing exports such as _start and
// _initialize.
func PublicName(name string) bool {
	if name == "" {
		return false
	}
	for _, segment := range strings.FieldsFunc(name, func(r rune) bool {
		return r == '/' || r == ':' || r == '.'
	}) {
		if strings.HasPrefix(segment, "_") {
			return false
		}
	}
	return true
}

// IsRuntimeNamespace reports whether a namespace belongs to the host
// runtime's standard library.
func IsRuntimeNamespace(ns string) bool {
	return strings.HasPrefix(ns, "wasi")
}

// NamespaceOf extracts the namespace path of a qualified name, e.g.
// "wasi:io/streams" -> "wasi:io".
func NamespaceOf(name string) string {
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return ""
	}
	return name[:idx]
}

// SimpleName extracts the unqualified part of a name.
func SimpleName(name string) string {
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return name
	}
	return name[idx+1:]
}

// FromCompiled derives a module type from a compiled module. The raw binary
// is optional; when present it contributes annotations and the signed-origin
// attribute.
func FromCompiled(name string, compiled wazero.CompiledModule, binary []byte, dom domain.Domain) (*ModuleType, error) {
	if name == "" {
		name = compiled.Name()
	}

	exported := compiled.ExportedFunctions()
	names := make([]string, 0, len(exported))
	for fnName := range exported {
		names = append(names, fnName)
	}
	sort.Strings(names)

	methods := make([]*Method, 0, len(names))
	for _, fnName := range names {
		def := exported[fnName]
		m := &Method{Name: fnName, DeclaredBy: name}
		for _, pt := range def.ParamTypes() {
			vt, err := fromAPIValueType(pt)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", fnName, err)
			}
			m.Params = append(m.Params, vt)
		}
		for _, rt := range def.ResultTypes() {
			vt, err := fromAPIValueType(rt)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", fnName, err)
			}
			m.Results = append(m.Results, vt)
		}
		methods = append(methods, m)
	}

	t := &ModuleType{
		Name:      name,
		Namespace: NamespaceOf(name),
		Public:    PublicName(name),
		Methods:   methods,
		Domain:    dom,
	}

	if binary != nil {
		sections, err := wasm.ReadCustomSections(binary)
		if err != nil {
			return nil, fmt.Errorf("failed to read annotations: %w", err)
		}
		for _, s := range sections {
			t.Annotations = append(t.Annotations, Annotation{Name: s.Name, Data: s.Data})
		}

		signers, err := Signers(binary)
		if err != nil {
			return nil, err
		}
		t.Signed = len(signers) > 0
	}

	return t, nil
}

// APIValueType converts a signature type to its wazero representation.
func APIValueType(vt ValueType) (api.ValueType, error) {
	switch Core(vt).(type) {
	case I32:
		return api.ValueTypeI32, nil
	case I64:
		return api.ValueTypeI64, nil
	case F32:
		return api.ValueTypeF32, nil
	case F64:
		return api.ValueTypeF64, nil
	default:
		return 0, fmt.Errorf("type %s has no core representation", vt)
	}
}

func fromAPIValueType(vt api.ValueType) (ValueType, error) {
	switch vt {
	case api.ValueTypeI32:
		return I32{}, nil
	case api.ValueTypeI64:
		return I64{}, nil
	case api.ValueTypeF32:
		return F32{}, nil
	case api.ValueTypeF64:
		return F64{}, nil
	default:
		return nil, fmt.Errorf("unsupported wazero value type: %v", vt)
	}
}
