package instrument

import (
	"testing"

	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"

	"github.com/stretchr/testify/assert"
)

func TestQualifiedName(t *testing.T) {
	store := syntax.NewNamespace("Store", nil)
	pair := &syntax.Symbol{Kind: syntax.SymbolType, Name: "Pair", TypeParams: []string{"K", "V"}, Container: store}
	assert.Equal(t, "Store.Pair_K_V", QualifiedName(pair, true))
	assert.Equal(t, "Store", QualifiedName(pair, false))

	ns := syntax.Namespaces([]string{"Game", "UI"}, nil)
	outer := &syntax.Symbol{Kind: syntax.SymbolType, Name: "Outer", TypeParams: []string{"T"}, Container: ns}
	inner := &syntax.Symbol{Kind: syntax.SymbolType, Name: "Inner", Container: outer}
	m := &syntax.Symbol{Kind: syntax.SymbolMethod, Name: "Get", TypeParams: []string{"X"}, Container: inner}
	assert.Equal(t, "Game.UI.Outer_T.Inner.Get", QualifiedName(m, true), "method names are not mangled")
	assert.Equal(t, "Game.UI.Outer_T.Inner", QualifiedName(m, false))

	global := &syntax.Symbol{Kind: syntax.SymbolMethod, Name: "Main", Container: &syntax.Symbol{Kind: syntax.SymbolType, Name: "Program"}}
	assert.Equal(t, "Program.Main", QualifiedName(global, true))

	assert.Equal(t, "", QualifiedName(nil, true))
}

func TestQualifiedNameStopsAtUnnamedType(t *testing.T) {
	ns := syntax.NewNamespace("N", nil)
	anon := &syntax.Symbol{Kind: syntax.SymbolType, Name: "", Container: ns}
	nested := &syntax.Symbol{Kind: syntax.SymbolType, Name: "C", Container: anon}
	m := &syntax.Symbol{Kind: syntax.SymbolMethod, Name: "M", Container: nested}
	assert.Equal(t, "N.C.M", QualifiedName(m, true))
}
