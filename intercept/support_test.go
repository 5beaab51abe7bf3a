package intercept_test

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/partite-ai/wacomock/domain"
	"github.com/partite-ai/wacomock/intercept"
	"github.com/partite-ai/wacomock/testutil"
	"github.com/partite-ai/wacomock/types"
)

func TestSupportInstall(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)
	d := domain.NewRuntimeDomain("app", rt)

	support := intercept.NewSupport()
	if support.Installed(d) {
		t.Fatal("expected fresh domain to have no support module")
	}

	if err := support.Install(ctx, d); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	if !support.Installed(d) {
		t.Fatal("expected support module after install")
	}
	if d.Lookup(domain.EngineNamespace) == nil {
		t.Fatal("expected support module to resolve by name")
	}

	// A second install is a no-op, not a name collision.
	if err := support.Install(ctx, d); err != nil {
		t.Fatalf("repeated install failed: %v", err)
	}
}

func TestDomainAccess(t *testing.T) {
	ctx := context.Background()
	rtApp := wazero.NewRuntime(ctx)
	defer rtApp.Close(ctx)
	rtEngine := wazero.NewRuntime(ctx)
	defer rtEngine.Close(ctx)

	app := domain.NewRuntimeDomain("app", rtApp)
	engine := domain.NewRuntimeDomain("engine", rtEngine)

	support := intercept.NewSupport()
	access := intercept.NewDomainAccess(support)

	if ok, err := access.CanRead(app, engine); err != nil || ok {
		t.Fatalf("expected no read edge initially, got %v, %v", ok, err)
	}
	if err := access.GrantRead(ctx, app, engine); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if ok, err := access.CanRead(app, engine); err != nil || !ok {
		t.Fatalf("expected read edge after grant, got %v, %v", ok, err)
	}

	if ok, err := access.IsOpen(app, "example:app", engine); err != nil || ok {
		t.Fatalf("expected namespace closed, got %v, %v", ok, err)
	}
	access.OpenNamespace(app, "example:app")
	if ok, err := access.IsOpen(app, "example:app", engine); err != nil || !ok {
		t.Fatalf("expected namespace open, got %v, %v", ok, err)
	}
	if ok, _ := access.IsOpen(app, "example:other", engine); ok {
		t.Error("expected unrelated namespace to stay closed")
	}
}

// realDelegate forwards intercepted calls to the bound real implementation.
type realDelegate struct {
	testutil.RecordingInterceptor
}

func (r *realDelegate) Intercept(ctx context.Context, inv *intercept.Invocation) ([]uint64, error) {
	return inv.Real(ctx)
}

func TestBindDispatch(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)
	d := domain.NewRuntimeDomain("engine", rt)

	methods := []*types.Method{
		{Name: "next-value", Results: []types.ValueType{types.I32{}}},
		{Name: "add", Params: []types.ValueType{types.I32{}, types.I32{}}, Results: []types.ValueType{types.I32{}}},
	}

	registry := intercept.NewRegistry()
	support := intercept.NewSupport()
	companion, err := support.Bind(ctx, d, "companion", methods, registry, nil)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	interceptor := &testutil.RecordingInterceptor{
		Returns:      map[string][]uint64{"next-value": {99}},
		EqualsResult: true,
		Hash:         31,
	}
	handle := registry.Add(interceptor, nil)

	results, err := companion.ExportedFunction(intercept.DispatchPrefix + "next-value").Call(ctx, uint64(handle))
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if results[0] != 99 {
		t.Errorf("expected 99, got %d", results[0])
	}

	if _, err := companion.ExportedFunction(intercept.DispatchPrefix+"add").Call(ctx, uint64(handle), 3, 4); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	calls := interceptor.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(calls))
	}
	if calls[0].Method.Name != "next-value" || len(calls[0].Args) != 0 {
		t.Errorf("unexpected first call: %s %v", calls[0].Method.Name, calls[0].Args)
	}
	if calls[1].Method.Name != "add" || len(calls[1].Args) != 2 || calls[1].Args[0] != 3 || calls[1].Args[1] != 4 {
		t.Errorf("unexpected second call: %s %v", calls[1].Method.Name, calls[1].Args)
	}

	results, err = companion.ExportedFunction(intercept.EqualsEntry).Call(ctx, uint64(handle), 7)
	if err != nil {
		t.Fatalf("equals failed: %v", err)
	}
	if results[0] != 1 {
		t.Errorf("expected equals true, got %d", results[0])
	}

	results, err = companion.ExportedFunction(intercept.HashCodeEntry).Call(ctx, uint64(handle))
	if err != nil {
		t.Fatalf("hash-code failed: %v", err)
	}
	if results[0] != 31 {
		t.Errorf("expected hash 31, got %d", results[0])
	}
}

func TestBindReadObjectEntry(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)
	d := domain.NewRuntimeDomain("engine", rt)

	registry := intercept.NewRegistry()
	support := intercept.NewSupport()

	var streams []uint32
	readSub := func(ctx context.Context, instance api.Module, stream uint32) error {
		streams = append(streams, stream)
		return nil
	}

	companion, err := support.Bind(ctx, d, "with-read", nil, registry, readSub)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if _, err := companion.ExportedFunction(intercept.ReadObjectEntry).Call(ctx, 0, 42); err != nil {
		t.Fatalf("read-object failed: %v", err)
	}
	if len(streams) != 1 || streams[0] != 42 {
		t.Errorf("unexpected recorded streams: %v", streams)
	}

	// Without a substitution hook the entry point does not exist.
	bare, err := support.Bind(ctx, d, "without-read", nil, registry, nil)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if bare.ExportedFunction(intercept.ReadObjectEntry) != nil {
		t.Error("expected no read-object entry without a substitution hook")
	}
}

func TestInvocationReal(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)
	d := domain.NewRuntimeDomain("engine", rt)

	binary, err := testutil.ConstModule(map[string]int32{"next-value": 7}, nil)
	if err != nil {
		t.Fatalf("failed to build fixture: %v", err)
	}
	real, err := rt.InstantiateWithConfig(ctx, binary, wazero.NewModuleConfig().WithName("real"))
	if err != nil {
		t.Fatalf("failed to instantiate real implementation: %v", err)
	}

	methods := []*types.Method{{Name: "next-value", Results: []types.ValueType{types.I32{}}}}
	registry := intercept.NewRegistry()
	companion, err := intercept.NewSupport().Bind(ctx, d, "delegating", methods, registry, nil)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	handle := registry.Add(&realDelegate{}, real)
	results, err := companion.ExportedFunction(intercept.DispatchPrefix + "next-value").Call(ctx, uint64(handle))
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if results[0] != 7 {
		t.Errorf("expected the real implementation's 7, got %d", results[0])
	}
}
