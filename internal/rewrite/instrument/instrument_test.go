package instrument

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ListenOcean/hookinjector/internal/rewrite/rules"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrontend struct {
	style syntax.WrapStyle
	fail  bool
}

func (f *fakeFrontend) Language() string             { return "fake" }
func (f *fakeFrontend) WrapStyle() syntax.WrapStyle { return f.style }

func (f *fakeFrontend) ParseFile(string, []byte, syntax.ParseOptions) (*syntax.Tree, []syntax.Diagnostic, error) {
	return nil, nil, errors.New("not supported")
}

func (f *fakeFrontend) Bind(*syntax.Compilation) []syntax.Diagnostic { return nil }

func (f *fakeFrontend) ParseBlock(text string) (*syntax.Tree, error) {
	if f.fail {
		return nil, errors.New("parse error")
	}
	return syntax.NewFragment(text)
}

const barSource = "namespace P\n{\n\tclass Foo\n\t{\n\t\tvoid Bar()\n\t\t{\n\t\t\t%s\n\t\t}\n\t}\n}\n"

func barSymbol() *syntax.Symbol {
	ns := syntax.NewNamespace("P", nil)
	typ := &syntax.Symbol{Kind: syntax.SymbolType, Name: "Foo", Container: ns, Assembly: "P"}
	return &syntax.Symbol{Kind: syntax.SymbolMethod, Name: "Bar", Container: typ, Assembly: "P"}
}

// barTree builds the skeleton of barSource with stmt as the only statement.
// Every occurrence of each marker in mark becomes a child node of the body.
func barTree(t *testing.T, stmt string, mark map[string]syntax.Kind) (*syntax.Tree, *syntax.Node) {
	t.Helper()
	src := fmt.Sprintf(barSource, stmt)
	tree := syntax.NewTree("Foo.cs", []byte(src))
	mpos := strings.Index(src, "void Bar")
	open := strings.Index(src, "\t\t{\n") + 2
	end := strings.LastIndex(src, "\t\t}") + 3
	require.True(t, mpos > 0 && open > mpos && end > open)

	method := tree.Root.Append(syntax.NewNode(syntax.KindMethod, mpos, end))
	method.Symbol = barSymbol()
	body := method.Append(syntax.NewNode(syntax.KindBlock, open, end))
	for text, kind := range mark {
		i := strings.Index(src, text)
		require.True(t, i > open, text)
		body.Append(syntax.NewNode(kind, i, i+len(text)))
	}
	return tree, body
}

func newRewriter(t *testing.T, dsl string, fe syntax.Frontend) *Rewriter {
	t.Helper()
	table, err := rules.ParseDSL([]byte(dsl))
	require.NoError(t, err)
	return NewRewriter(&Context{
		Table:       table,
		Compilation: &syntax.Compilation{Name: "P", Assembly: "P"},
		Frontend:    fe,
	})
}

func TestRewriteMemoryLog(t *testing.T) {
	tree, _ := barTree(t, "var x = new object();", map[string]syntax.Kind{"new object()": syntax.KindObjectCreation})
	rw := newRewriter(t, `project(P){ InjectMemoryLog(Log,Begin,End); Inject("P\.Foo\.Bar"); }`, &fakeFrontend{})

	res, err := rw.Rewrite(tree)
	require.NoError(t, err)

	want := "namespace P\n{\n\tclass Foo\n\t{\n\t\tvoid Bar()\n" +
		"\t\t{\n" +
		"\t\t\ttry{\n" +
		"\t\t\t\tLog.Begin(\"P.Foo.Bar\");\n" +
		"\t\t{\n" +
		"\t\t\tvar x = new object();\n" +
		"\t\t}\n" +
		"\t\t\t}finally{\n" +
		"\t\t\t\tLog.End(\"P.Foo.Bar\");\n" +
		"\t\t\t}\n" +
		"\t\t}\n\t}\n}\n"
	assert.Equal(t, want, string(res.Text))
	require.Len(t, res.Injections, 1)
	assert.Equal(t, "P.Foo.Bar", res.Injections[0].Name)
	assert.Equal(t, []string{"Log"}, res.Classes())
}

func TestRewriteBothHooksProfilerOutermost(t *testing.T) {
	tree, _ := barTree(t, "var x = new object();", map[string]syntax.Kind{"new object()": syntax.KindObjectCreation})
	rw := newRewriter(t, `project(P){ InjectMemoryLog(Log,Begin,End); InjectProfilerSample(Prof,BeginSample,EndSample); }`, &fakeFrontend{})

	res, err := rw.Rewrite(tree)
	require.NoError(t, err)

	want := "namespace P\n{\n\tclass Foo\n\t{\n\t\tvoid Bar()\n" +
		"\t\t{\n" +
		"\t\t\ttry{\n" +
		"\t\t\t\tProf.BeginSample(\"P.Foo.Bar\");\n" +
		"\t\t\ttry{\n" +
		"\t\t\t\tLog.Begin(\"P.Foo.Bar\");\n" +
		"\t\t{\n" +
		"\t\t\tvar x = new object();\n" +
		"\t\t}\n" +
		"\t\t\t}finally{\n" +
		"\t\t\t\tLog.End(\"P.Foo.Bar\");\n" +
		"\t\t\t}\n" +
		"\t\t\t}finally{\n" +
		"\t\t\t\tProf.EndSample();\n" +
		"\t\t\t}\n" +
		"\t\t}\n\t}\n}\n"
	assert.Equal(t, want, string(res.Text))
	assert.Equal(t, []string{"Log", "Prof"}, res.Classes())
}

func TestRewriteProfilerOnlyWrapsStatements(t *testing.T) {
	tree, _ := barTree(t, "Tick();", nil)
	rw := newRewriter(t, `project(P){ InjectProfilerSample(); }`, &fakeFrontend{})

	res, err := rw.Rewrite(tree)
	require.NoError(t, err)
	want := "namespace P\n{\n\tclass Foo\n\t{\n\t\tvoid Bar()\n" +
		"\t\t{\n" +
		"\t\t\ttry{\n" +
		"\t\t\t\tUnityEngine.Profiling.Profiler.BeginSample(\"P.Foo.Bar\");\n" +
		"\t\t\tTick();\n" +
		"\t\t\t}finally{\n" +
		"\t\t\t\tUnityEngine.Profiling.Profiler.EndSample();\n" +
		"\t\t\t}\n" +
		"\t\t}\n\t}\n}\n"
	assert.Equal(t, want, string(res.Text))
}

func TestRewriteUnchangedWithoutApplicableRule(t *testing.T) {
	mark := map[string]syntax.Kind{"new object()": syntax.KindObjectCreation}
	cases := map[string]string{
		"other project":     `project(Q){ InjectMemoryLog(); InjectProfilerSample(); }`,
		"name not included": `project(P){ InjectMemoryLog(); InjectProfilerSample(); Inject("P\.Foo\.Baz"); }`,
		"name excluded":     `project(P){ InjectMemoryLog(); Inject("Bar"); DontInject("P\.Foo\.Bar"); }`,
		"no hooks":          `project(P){ Inject("Bar"); }`,
	}
	for name, dsl := range cases {
		t.Run(name, func(t *testing.T) {
			tree, _ := barTree(t, "var x = new object();", mark)
			res, err := newRewriter(t, dsl, &fakeFrontend{}).Rewrite(tree)
			require.NoError(t, err)
			assert.Equal(t, string(tree.Source), string(res.Text))
			assert.False(t, res.Changed())
		})
	}
}

func TestMemoryLogNeedsAllocation(t *testing.T) {
	tree, _ := barTree(t, "int x = 1;", nil)
	res, err := newRewriter(t, `project(P){ InjectMemoryLog(); }`, &fakeFrontend{}).Rewrite(tree)
	require.NoError(t, err)
	assert.Equal(t, string(tree.Source), string(res.Text))

	tree, _ = barTree(t, "int x = 1;", nil)
	res, err = newRewriter(t, `project(P){ InjectMemoryLog(); AlwaysInject("Bar$"); }`, &fakeFrontend{}).Rewrite(tree)
	require.NoError(t, err)
	assert.True(t, res.Changed())
	assert.Contains(t, string(res.Text), `MemoryAndCallHook.MemoryLogBegin("P.Foo.Bar");`)
}

func TestLastApplicableRuleWins(t *testing.T) {
	tree, _ := barTree(t, "var a = new int[3];", map[string]syntax.Kind{"new int[3]": syntax.KindArrayCreation})
	dsl := `
project(P){ InjectMemoryLog(H1, B, E); }
project(P){ InjectMemoryLog(H2, B, E); }
project(P){ InjectMemoryLog(H3, B, E); DontInject("Bar"); }
`
	res, err := newRewriter(t, dsl, &fakeFrontend{}).Rewrite(tree)
	require.NoError(t, err)
	require.Len(t, res.Injections, 1)
	assert.Equal(t, "H2", res.Injections[0].MemoryLog.Class)
	assert.Contains(t, string(res.Text), `H2.B("P.Foo.Bar");`)
	assert.NotContains(t, string(res.Text), "H1.")
	assert.NotContains(t, string(res.Text), "H3.")
}

func TestRewriteReparseFailureIsFatal(t *testing.T) {
	tree, _ := barTree(t, "var x = new object();", map[string]syntax.Kind{"new object()": syntax.KindObjectCreation})
	_, err := newRewriter(t, `project(P){ InjectMemoryLog(); }`, &fakeFrontend{fail: true}).Rewrite(tree)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "P.Foo.Bar")
	assert.Contains(t, err.Error(), "Foo.cs")
}

func TestRewriteDeferStyle(t *testing.T) {
	src := "package p\n\nfunc Bar() {\n\tx := new(T)\n\t_ = x\n}\n"
	tree := syntax.NewTree("bar.go", []byte(src))
	open := strings.Index(src, "{")
	method := tree.Root.Append(syntax.NewNode(syntax.KindMethod, strings.Index(src, "func"), len(src)-1))
	method.Symbol = &syntax.Symbol{Kind: syntax.SymbolMethod, Name: "Bar", Container: syntax.NewNamespace("p", nil), Assembly: "p"}
	body := method.Append(syntax.NewNode(syntax.KindBlock, open, len(src)-1))
	i := strings.Index(src, "new(T)")
	body.Append(syntax.NewNode(syntax.KindObjectCreation, i, i+len("new(T)")))

	rw := newRewriter(t, `project(P){
		InjectMemoryLog("github.com/ListenOcean/hookinjector/hooklib", MemoryLogBegin, MemoryLogEnd);
		InjectProfilerSample("github.com/ListenOcean/hookinjector/hooklib", ProfilerBegin, ProfilerEnd);
	}`, &fakeFrontend{style: syntax.WrapDefer})
	res, err := rw.Rewrite(tree)
	require.NoError(t, err)

	want := "package p\n\nfunc Bar() {\n" +
		"\thooklib.ProfilerBegin(\"p.Bar\")\n" +
		"\tdefer hooklib.ProfilerEnd()\n" +
		"\thooklib.MemoryLogBegin(\"p.Bar\")\n" +
		"\tdefer hooklib.MemoryLogEnd(\"p.Bar\")\n" +
		"{\n\tx := new(T)\n\t_ = x\n}\n" +
		"}\n"
	assert.Equal(t, want, string(res.Text))
	assert.Equal(t, []string{"github.com/ListenOcean/hookinjector/hooklib"}, res.Classes())
}

func TestNestedBlocksAreNotTargeted(t *testing.T) {
	// a closure inside the body has its own block; only the outer body is wrapped
	tree, body := barTree(t, "Run(() => { var y = new object(); });", nil)
	src := string(tree.Source)
	lam := strings.Index(src, "() =>")
	inner := strings.Index(src, "{ var y")
	closure := body.Append(syntax.NewNode(syntax.KindClosure, lam, strings.Index(src, "; })")+3))
	block := closure.Append(syntax.NewNode(syntax.KindBlock, inner, strings.Index(src, "; })")+3))
	ni := strings.Index(src, "new object()")
	block.Append(syntax.NewNode(syntax.KindObjectCreation, ni, ni+len("new object()")))

	res, err := newRewriter(t, `project(P){ InjectMemoryLog(L, B, E); }`, &fakeFrontend{}).Rewrite(tree)
	require.NoError(t, err)
	require.Len(t, res.Injections, 1)
	assert.Equal(t, 1, strings.Count(string(res.Text), "L.B("))
}
