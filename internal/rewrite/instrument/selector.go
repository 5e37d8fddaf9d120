package instrument

import (
	"github.com/ListenOcean/hookinjector/internal/rewrite/rules"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"
)

// MethodContext describes the declaration whose body is being considered.
type MethodContext struct {
	Symbol        *syntax.Symbol
	QualifiedName string
	// Own assembly of the compilation.
	Assembly string
}

func NewMethodContext(sym *syntax.Symbol, assembly string) *MethodContext {
	return &MethodContext{
		Symbol:        sym,
		QualifiedName: QualifiedName(sym, true),
		Assembly:      assembly,
	}
}

// Selection holds the hooks chosen for one body.
type Selection struct {
	MemoryLog      *rules.Hook
	ProfilerSample *rules.Hook
}

func (s Selection) Empty() bool {
	return s.MemoryLog == nil && s.ProfilerSample == nil
}

// Select evaluates every rule of the project in order. A rule excluding the
// name is skipped, otherwise it applies when it has no Inject patterns or
// one of them matches. Each applicable rule overwrites the hooks it
// defines, so the last applicable rule wins. A memory log hook is only
// taken when the body might allocate.
func Select(body *syntax.Node, mc *MethodContext, projectRules []*rules.Rule) Selection {
	var sel Selection
	allocates := -1
	existsCreate := func() bool {
		if allocates < 0 {
			allocates = 0
			if ExistsCreate(body, mc.Assembly, projectRules) {
				allocates = 1
			}
		}
		return allocates == 1
	}

	for _, r := range projectRules {
		if r.Excludes(mc.QualifiedName) || !r.Includes(mc.QualifiedName) {
			continue
		}
		if r.MemoryLog != nil && (r.AlwaysInjects(mc.QualifiedName) || existsCreate()) {
			sel.MemoryLog = r.MemoryLog
		}
		if r.ProfilerSample != nil {
			sel.ProfilerSample = r.ProfilerSample
		}
	}
	return sel
}
