package mock

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/partite-ai/wacomock/types"
)

// QuarantineNamespace is the dedicated namespace for generated types that
// may not be placed next to their target: restricted-origin targets
// (runtime builtins, signed or sealed), and targets whose namespace is not
// open to the engine on same-domain placement.
const QuarantineNamespace = "wacomock.codegen"

const nameMarker = "WacomockMock"

// suffixSource hands out random non-negative integer suffixes. It is the
// only mutable state shared between concurrent synthesis calls, so access is
// serialized.
type suffixSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newSuffixSource() *suffixSource {
	return &suffixSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *suffixSource) next() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Int31()
}

// nameFor chooses the generated type's name and placement. Naming always
// succeeds; a failed openness query is treated as "not open" and returned so
// the caller can attach it as context if a later repair fails.
func (g *Generator) nameFor(target *types.ModuleType, sameDomain bool) (name string, quarantined bool, queryErr error) {
	quarantine := target.RuntimeBuiltin() || target.Signed || target.Sealed
	if sameDomain && !quarantine {
		open, err := g.access.IsOpen(target.Domain, target.Namespace, g.engine)
		if err != nil {
			queryErr = err
			open = false
		}
		quarantine = !open
	}

	base := target.Name
	if quarantine {
		base = QuarantineNamespace + "/" + types.SimpleName(target.Name)
	}
	name = fmt.Sprintf("%s$%s$%d", base, nameMarker, g.names.next())
	return name, strings.HasPrefix(name, QuarantineNamespace), queryErr
}
