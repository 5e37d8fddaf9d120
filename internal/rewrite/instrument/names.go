package instrument

import (
	"strings"

	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"
)

// MangledName is a type's name followed by its type parameter names,
// joined with '_' (Box<T, U> is Box_T_U).
func MangledName(sym *syntax.Symbol) string {
	if len(sym.TypeParams) == 0 {
		return sym.Name
	}
	return sym.Name + "_" + strings.Join(sym.TypeParams, "_")
}

// QualifiedName joins the symbol's own name (when includeSelf is set), its
// enclosing types and its enclosing namespaces with '.', outermost first.
// Only type segments are mangled.
func QualifiedName(sym *syntax.Symbol, includeSelf bool) string {
	if sym == nil {
		return ""
	}
	var segs []string
	if includeSelf {
		if sym.Kind == syntax.SymbolType {
			segs = append(segs, MangledName(sym))
		} else {
			segs = append(segs, sym.Name)
		}
	}
	c := sym.Container
	for c != nil && c.Kind == syntax.SymbolType && c.Name != "" {
		segs = append(segs, MangledName(c))
		c = c.Container
	}
	// an unnamed type ends the type chain
	for c != nil && c.Kind != syntax.SymbolNamespace {
		c = c.Container
	}
	for !c.IsGlobal() {
		segs = append(segs, c.Name)
		c = c.Container
	}

	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return strings.Join(segs, ".")
}
