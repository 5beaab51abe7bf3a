package intercept_test

import (
	"testing"

	"github.com/partite-ai/wacomock/intercept"
	"github.com/partite-ai/wacomock/testutil"
)

func TestRegistryHandles(t *testing.T) {
	r := intercept.NewRegistry()

	a := &testutil.RecordingInterceptor{}
	b := &testutil.RecordingInterceptor{}

	// Handle zero is reserved for the unbound state.
	first := r.Add(a, nil)
	if first != 1 {
		t.Fatalf("expected first handle 1, got %d", first)
	}
	second := r.Add(b, nil)
	if second != 2 {
		t.Fatalf("expected second handle 2, got %d", second)
	}

	if got, _ := r.Get(first); got != intercept.Interceptor(a) {
		t.Error("handle resolved to the wrong interceptor")
	}

	r.Remove(first)
	if _, _, ok := r.Lookup(first); ok {
		t.Error("expected a removed handle not to resolve")
	}
	third := r.Add(a, nil)
	if third != first {
		t.Errorf("expected freed handle %d to be reused, got %d", first, third)
	}
	if _, _, ok := r.Lookup(third); !ok {
		t.Error("expected the reissued handle to resolve")
	}
}

func TestRegistryUnboundPanics(t *testing.T) {
	tests := []struct {
		name   string
		handle uint32
	}{
		{"zero", 0},
		{"out of range", 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := intercept.NewRegistry()
			defer func() {
				if recover() == nil {
					t.Error("expected panic for unbound handle")
				}
			}()
			r.Get(tt.handle)
		})
	}
}
