package mock

import (
	"fmt"
	"strings"

	"github.com/partite-ai/wacomock/intercept"
	"github.com/partite-ai/wacomock/types"
	"github.com/partite-ai/wacomock/wasm"
)

// serialVersion is the fixed identity tag carried by every generated type to
// disambiguate versionable serialized state.
const serialVersion = 42

// CallSiteSection carries the per-method call-site metadata attached to a
// generated module: the effective receiver followed by the intercepted
// method names, one per line.
const CallSiteSection = "wacomock:callsite"

// SerializableSection marks a generated type as serializable within its own
// domain.
const SerializableSection = "wacomock:serializable"

// Custom sections never copied from the target onto a generated type.
var uncopiedAnnotations = map[string]bool{
	"name":                 true,
	types.SignatureSection: true,
}

// TypeDescriptor is the declarative request for one generated type. It lives
// for the duration of a single synthesis call and is discarded after
// emission.
type TypeDescriptor struct {
	name          string
	supportModule string
	target        *types.ModuleType
	interfaces    []*types.ModuleType
	methods       []*types.Method
	annotations   []types.Annotation
	callSite      bool
	serializable  bool
	crossDomain   bool
	readObject    bool
	serialVersion int64
}

// descriptorFor assembles the member set and metadata of the new type.
// Special members are layered after plain interception: equals and hash-code
// always delegate to their dedicated entry points, never to the plain
// dispatcher, so they are excluded from the matchable surface.
func (g *Generator) descriptorFor(features *MockFeatures, name, supportName string, sameDomain bool) *TypeDescriptor {
	desc := &TypeDescriptor{
		name:          name,
		supportModule: supportName,
		target:        features.Target,
		interfaces:    features.Interfaces,
		callSite:      !features.StripAnnotations,
		serializable:  features.Serialization == SerializationBasic,
		crossDomain:   features.Serialization == SerializationAcrossDomains,
		readObject:    g.readSub != nil,
		serialVersion: serialVersion,
	}

	seen := make(map[string]bool)
	sources := append([]*types.ModuleType{features.Target}, features.Interfaces...)
	for _, source := range sources {
		for _, m := range source.Methods {
			if seen[m.Name] || reservedMember(m.Name) {
				continue
			}
			seen[m.Name] = true
			if !g.matcher(m) {
				continue
			}
			if !sameDomain && suppressCrossDomain(m) {
				continue
			}
			method := m
			if method.DeclaredBy == "" {
				copied := *m
				copied.DeclaredBy = source.Name
				method = &copied
			}
			desc.methods = append(desc.methods, method)
		}
	}

	if !features.StripAnnotations {
		for _, a := range features.Target.Annotations {
			if uncopiedAnnotations[a.Name] {
				continue
			}
			desc.annotations = append(desc.annotations, a)
		}
	}

	return desc
}

// reservedMember reports whether a member name collides with the special
// members every generated type defines itself.
func reservedMember(name string) bool {
	switch name {
	case intercept.EqualsExport, intercept.HashCodeExport,
		intercept.GetInterceptorExport, intercept.SetInterceptorExport,
		intercept.WriteReplaceExport, intercept.SerialVersionExport,
		"read-object":
		return true
	}
	return false
}

// suppressCrossDomain reports whether a method may not be overridden from a
// foreign domain: non-public members, signatures referencing non-public
// types, and runtime plumbing members that must never be intercepted.
func suppressCrossDomain(m *types.Method) bool {
	if !m.Public() || !m.SignaturePublic() {
		return true
	}
	return runtimePlumbing(m)
}

func runtimePlumbing(m *types.Method) bool {
	switch m.Name {
	case "_start", "_initialize", "cabi_realloc", "memory":
		return true
	}
	if strings.HasPrefix(m.Name, "cabi_post_") {
		return true
	}
	return types.IsRuntimeNamespace(types.NamespaceOf(m.DeclaredBy))
}

// emit encodes the descriptor into a loadable module artifact.
func (d *TypeDescriptor) emit() ([]byte, error) {
	typeSection := &wasm.TypeSection{}
	importSection := &wasm.ImportSection{}
	funcSection := &wasm.FuncSection{}
	codeSection := &wasm.CodeSection{}

	addImport := func(name string, params, results []wasm.ValueType) uint32 {
		typeIdx := typeSection.AddFuncType(&wasm.FuncTypeDef{ParamTypes: params, ResultTypes: results})
		importSection.Imports = append(importSection.Imports, &wasm.Import{
			Module:     d.supportModule,
			Name:       name,
			ImportDesc: &wasm.FuncType{TypeIdx: typeIdx},
		})
		return uint32(len(importSection.Imports) - 1)
	}

	dispatchIdx := make([]uint32, len(d.methods))
	methodParams := make([][]wasm.ValueType, len(d.methods))
	methodResults := make([][]wasm.ValueType, len(d.methods))
	for i, m := range d.methods {
		params, results, err := signatureTypes(m)
		if err != nil {
			return nil, err
		}
		methodParams[i] = params
		methodResults[i] = results
		dispatchIdx[i] = addImport(intercept.DispatchPrefix+m.Name,
			append([]wasm.ValueType{wasm.I32{}}, params...), results)
	}

	equalsIdx := addImport(intercept.EqualsEntry, []wasm.ValueType{wasm.I32{}, wasm.I32{}}, []wasm.ValueType{wasm.I32{}})
	hashIdx := addImport(intercept.HashCodeEntry, []wasm.ValueType{wasm.I32{}}, []wasm.ValueType{wasm.I32{}})
	var writeReplaceIdx, readObjectIdx uint32
	if d.crossDomain {
		writeReplaceIdx = addImport(intercept.WriteReplaceEntry, []wasm.ValueType{wasm.I32{}}, []wasm.ValueType{wasm.I32{}})
	}
	if d.readObject {
		readObjectIdx = addImport(intercept.ReadObjectEntry, []wasm.ValueType{wasm.I32{}, wasm.I32{}}, nil)
	}

	numImports := uint32(len(importSection.Imports))
	exportSection := &wasm.ExportSection{}

	addFunc := func(exportName string, params, results []wasm.ValueType, body *wasm.FuncBody) {
		typeIdx := typeSection.AddFuncType(&wasm.FuncTypeDef{ParamTypes: params, ResultTypes: results})
		funcSection.FuncTypeIndices = append(funcSection.FuncTypeIndices, typeIdx)
		codeSection.Bodies = append(codeSection.Bodies, body)
		if exportName != "" {
			funcIdx := numImports + uint32(len(codeSection.Bodies)) - 1
			exportSection.Exports = append(exportSection.Exports, &wasm.Export{
				Name:       exportName,
				ExportDesc: &wasm.FuncExport{Idx: funcIdx},
			})
		}
	}

	// The interception field lives at global 0; dispatch bodies pass it as
	// the leading argument of their support entry point.
	for i, m := range d.methods {
		instrs := []wasm.Instr{wasm.GlobalGet{Idx: 0}}
		for p := range methodParams[i] {
			instrs = append(instrs, wasm.LocalGet{Idx: uint32(p)})
		}
		instrs = append(instrs, wasm.Call{FuncIdx: dispatchIdx[i]})
		addFunc(m.Name, methodParams[i], methodResults[i], &wasm.FuncBody{Instrs: instrs})
	}

	addFunc(intercept.GetInterceptorExport, nil, []wasm.ValueType{wasm.I32{}},
		&wasm.FuncBody{Instrs: []wasm.Instr{wasm.GlobalGet{Idx: 0}}})
	addFunc(intercept.SetInterceptorExport, []wasm.ValueType{wasm.I32{}}, nil,
		&wasm.FuncBody{Instrs: []wasm.Instr{wasm.LocalGet{Idx: 0}, wasm.GlobalSet{Idx: 0}}})

	addFunc(intercept.EqualsExport, []wasm.ValueType{wasm.I32{}}, []wasm.ValueType{wasm.I32{}},
		&wasm.FuncBody{Instrs: []wasm.Instr{wasm.GlobalGet{Idx: 0}, wasm.LocalGet{Idx: 0}, wasm.Call{FuncIdx: equalsIdx}}})
	addFunc(intercept.HashCodeExport, nil, []wasm.ValueType{wasm.I32{}},
		&wasm.FuncBody{Instrs: []wasm.Instr{wasm.GlobalGet{Idx: 0}, wasm.Call{FuncIdx: hashIdx}}})

	if d.crossDomain {
		addFunc(intercept.WriteReplaceExport, nil, []wasm.ValueType{wasm.I32{}},
			&wasm.FuncBody{Instrs: []wasm.Instr{wasm.GlobalGet{Idx: 0}, wasm.Call{FuncIdx: writeReplaceIdx}}})
	}
	if d.readObject {
		// Deliberately unexported: the read substitution member is private
		// to the generated type.
		addFunc("", []wasm.ValueType{wasm.I32{}}, nil,
			&wasm.FuncBody{Instrs: []wasm.Instr{wasm.GlobalGet{Idx: 0}, wasm.LocalGet{Idx: 0}, wasm.Call{FuncIdx: readObjectIdx}}})
	}

	globalSection := &wasm.GlobalSection{
		Globals: []*wasm.Global{
			{Type: &wasm.GlobalType{ValType: wasm.I32{}, Mutable: true}, Init: wasm.I32Const{Value: 0}},
			{Type: &wasm.GlobalType{ValType: wasm.I64{}}, Init: wasm.I64Const{Value: d.serialVersion}},
		},
	}
	exportSection.Exports = append(exportSection.Exports, &wasm.Export{
		Name:       intercept.SerialVersionExport,
		ExportDesc: &wasm.GlobalExport{Idx: 1},
	})

	builder := wasm.NewBuilder()
	builder.AddSection(typeSection)
	builder.AddSection(importSection)
	builder.AddSection(funcSection)
	builder.AddSection(globalSection)
	builder.AddSection(exportSection)
	builder.AddSection(codeSection)

	for _, a := range d.annotations {
		builder.AddSection(&wasm.CustomSection{Name: a.Name, Data: a.Data})
	}
	if d.callSite {
		lines := []string{d.name}
		for _, m := range d.methods {
			lines = append(lines, m.Name)
		}
		builder.AddSection(&wasm.CustomSection{Name: CallSiteSection, Data: []byte(strings.Join(lines, "\n"))})
	}
	if d.serializable {
		builder.AddSection(&wasm.CustomSection{Name: SerializableSection, Data: nil})
	}

	return builder.Build()
}

func signatureTypes(m *types.Method) (params, results []wasm.ValueType, err error) {
	for _, p := range m.Params {
		vt, err := coreValueType(p)
		if err != nil {
			return nil, nil, fmt.Errorf("method %s: %w", m.Name, err)
		}
		params = append(params, vt)
	}
	for _, r := range m.Results {
		vt, err := coreValueType(r)
		if err != nil {
			return nil, nil, fmt.Errorf("method %s: %w", m.Name, err)
		}
		results = append(results, vt)
	}
	return params, results, nil
}

func coreValueType(vt types.ValueType) (wasm.ValueType, error) {
	apiType, err := types.APIValueType(vt)
	if err != nil {
		return nil, err
	}
	return wasm.WazeroValueTypeToValueType(apiType)
}
