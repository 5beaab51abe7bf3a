// Package testutil provides fixtures for exercising the synthesis engine:
// small target modules assembled through the wasm builder, and a recording
// interceptor.
package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/partite-ai/wacomock/intercept"
	"github.com/partite-ai/wacomock/wasm"
)

// ConstModule builds a core module whose exports are nullary functions
// returning fixed i32 constants, plus any given custom sections. Export
// order is deterministic.
func ConstModule(exports map[string]int32, annotations map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)

	typeSection := &wasm.TypeSection{}
	funcSection := &wasm.FuncSection{}
	codeSection := &wasm.CodeSection{}
	exportSection := &wasm.ExportSection{}

	for i, name := range names {
		typeIdx := typeSection.AddFuncType(&wasm.FuncTypeDef{ResultTypes: []wasm.ValueType{wasm.I32{}}})
		funcSection.FuncTypeIndices = append(funcSection.FuncTypeIndices, typeIdx)
		codeSection.Bodies = append(codeSection.Bodies, &wasm.FuncBody{
			Instrs: []wasm.Instr{wasm.I32Const{Value: exports[name]}},
		})
		exportSection.Exports = append(exportSection.Exports, &wasm.Export{
			Name:       name,
			ExportDesc: &wasm.FuncExport{Idx: uint32(i)},
		})
	}

	builder := wasm.NewBuilder()
	builder.AddSection(typeSection)
	builder.AddSection(funcSection)
	builder.AddSection(exportSection)
	builder.AddSection(codeSection)

	annotationNames := make([]string, 0, len(annotations))
	for name := range annotations {
		annotationNames = append(annotationNames, name)
	}
	sort.Strings(annotationNames)
	for _, name := range annotationNames {
		builder.AddSection(&wasm.CustomSection{Name: name, Data: annotations[name]})
	}

	return builder.Build()
}

// RecordingInterceptor records every intercepted call and answers with
// configured or zero values.
type RecordingInterceptor struct {
	mu    sync.Mutex
	calls []*intercept.Invocation

	Returns      map[string][]uint64
	EqualsResult bool
	Hash         uint32
	Replacement  uint32
}

var _ intercept.Interceptor = (*RecordingInterceptor)(nil)

func (r *RecordingInterceptor) Intercept(ctx context.Context, inv *intercept.Invocation) ([]uint64, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	r.mu.Unlock()

	if results, ok := r.Returns[inv.Method.Name]; ok {
		return results, nil
	}
	return make([]uint64, len(inv.Method.Results)), nil
}

func (r *RecordingInterceptor) Equals(ctx context.Context, instance api.Module, other uint64) (bool, error) {
	return r.EqualsResult, nil
}

func (r *RecordingInterceptor) HashCode(ctx context.Context, instance api.Module) (uint32, error) {
	return r.Hash, nil
}

func (r *RecordingInterceptor) WriteReplace(ctx context.Context, instance api.Module) (uint32, error) {
	return r.Replacement, nil
}

// Calls returns a snapshot of the recorded invocations.
func (r *RecordingInterceptor) Calls() []*intercept.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*intercept.Invocation(nil), r.calls...)
}
