package instrument

import (
	"github.com/ListenOcean/hookinjector/internal/rewrite/rules"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"
)

// ExistsCreate reports whether body might allocate: it contains an object,
// anonymous object, array or stackalloc creation, or a call into another
// assembly that the project's assembly filters let through. assembly is
// the compilation's own assembly.
func ExistsCreate(body *syntax.Node, assembly string, projectRules []*rules.Rule) bool {
	found := false
	body.Walk(func(n *syntax.Node) bool {
		switch {
		case n.Kind.Creation():
			found = true
		case n.Kind == syntax.KindInvocation && !found:
			sym := n.Symbol
			if sym != nil && sym.Assembly != "" && sym.Assembly != assembly {
				found = externalCallCounts(sym.Assembly, projectRules)
			}
		}
		return true
	})
	return found
}

func externalCallCounts(asm string, projectRules []*rules.Rule) bool {
	for _, r := range projectRules {
		if r.ExcludesAssembly(asm) {
			return false
		}
	}
	haveIncludes := false
	for _, r := range projectRules {
		if len(r.IncludeAssemblies) == 0 {
			continue
		}
		haveIncludes = true
		if r.IncludesAssembly(asm) {
			return true
		}
	}
	return !haveIncludes
}
