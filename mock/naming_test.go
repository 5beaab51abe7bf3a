package mock

import (
	"strings"
	"sync"
	"testing"

	"github.com/partite-ai/wacomock/domain"
	"github.com/partite-ai/wacomock/intercept"
	"github.com/partite-ai/wacomock/types"
)

func TestNameForPlacement(t *testing.T) {
	app := domain.NewRuntimeDomain("app", nil)
	engine := domain.NewRuntimeDomain("engine", nil)

	tests := []struct {
		name        string
		target      *types.ModuleType
		sameDomain  bool
		openNS      string
		quarantined bool
	}{
		{
			name:        "cross-domain plain",
			target:      &types.ModuleType{Name: "example:app/counter", Namespace: "example:app", Public: true, Domain: app},
			quarantined: false,
		},
		{
			name:        "cross-domain runtime builtin",
			target:      &types.ModuleType{Name: "wasi:io/streams", Namespace: "wasi:io", Public: true, Domain: app},
			quarantined: true,
		},
		{
			name:        "cross-domain signed",
			target:      &types.ModuleType{Name: "example:app/vetted", Namespace: "example:app", Public: true, Signed: true, Domain: app},
			quarantined: true,
		},
		{
			name:        "cross-domain sealed",
			target:      &types.ModuleType{Name: "example:app/final", Namespace: "example:app", Public: true, Sealed: true, Domain: app},
			quarantined: true,
		},
		{
			name:        "same-domain closed namespace",
			target:      &types.ModuleType{Name: "example:app/counter", Namespace: "example:app", Public: true, Domain: app},
			sameDomain:  true,
			quarantined: true,
		},
		{
			name:        "same-domain open namespace",
			target:      &types.ModuleType{Name: "example:app/counter", Namespace: "example:app", Public: true, Domain: app},
			sameDomain:  true,
			openNS:      "example:app",
			quarantined: false,
		},
		{
			// Restricted origins trump openness.
			name:        "same-domain open but signed",
			target:      &types.ModuleType{Name: "example:app/vetted", Namespace: "example:app", Public: true, Signed: true, Domain: app},
			sameDomain:  true,
			openNS:      "example:app",
			quarantined: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			access := intercept.NewDomainAccess(intercept.NewSupport())
			if tt.openNS != "" {
				access.OpenNamespace(app, tt.openNS)
			}
			g := NewGenerator(engine, WithAccessControl(access))

			name, quarantined, queryErr := g.nameFor(tt.target, tt.sameDomain)
			if queryErr != nil {
				t.Fatalf("unexpected query error: %v", queryErr)
			}
			if quarantined != tt.quarantined {
				t.Errorf("quarantined = %v, expected %v (name %q)", quarantined, tt.quarantined, name)
			}

			wantBase := tt.target.Name
			if tt.quarantined {
				wantBase = QuarantineNamespace + "/" + types.SimpleName(tt.target.Name)
			}
			if !strings.HasPrefix(name, wantBase+"$"+nameMarker+"$") {
				t.Errorf("name %q does not start with %q", name, wantBase+"$"+nameMarker+"$")
			}
		})
	}
}

func TestNameForDistinctNames(t *testing.T) {
	app := domain.NewRuntimeDomain("app", nil)
	engine := domain.NewRuntimeDomain("engine", nil)
	g := NewGenerator(engine)
	target := &types.ModuleType{Name: "example:app/counter", Namespace: "example:app", Public: true, Domain: app}

	const workers = 8
	const perWorker = 25

	names := make(chan string, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				name, _, _ := g.nameFor(target, false)
				names <- name
			}
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]bool)
	for name := range names {
		if seen[name] {
			t.Fatalf("name %q handed out twice", name)
		}
		seen[name] = true
	}
	if len(seen) != workers*perWorker {
		t.Errorf("expected %d names, got %d", workers*perWorker, len(seen))
	}
}
