package golang

import (
	"strings"
	"testing"

	"github.com/ListenOcean/hookinjector/internal/rewrite/instrument"
	"github.com/ListenOcean/hookinjector/internal/rewrite/rules"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storeSource = `package store

import (
	"fmt"
	"strings"

	"example.com/app/internal/util"
)

type Box[K comparable, V any] struct{ m map[K]V }

func (b *Box[K, V]) Put(k K, v V) {
	if b.m == nil {
		b.m = make(map[K]V)
	}
	b.m[k] = v
}

func Join(parts []string) string {
	return strings.Join(parts, ",")
}

func Describe(v int) string {
	helper()
	util.Touch()
	return fmt.Sprint(v)
}

func helper() {}

//autoinject:ignore
func Skipped() { _ = &Box[int, int]{} }

//go:nosplit
func fast() {}
`

const module = "example.com/app"

func parseOne(t *testing.T, fe *Frontend, path, src string, defines ...string) *syntax.Tree {
	t.Helper()
	tree, diags, err := fe.ParseFile(path, []byte(src), syntax.ParseOptions{Defines: defines, PackagePath: module + "/store"})
	require.NoError(t, err)
	require.Empty(t, diags)
	return tree
}

func names(tree *syntax.Tree) []string {
	var out []string
	for _, m := range tree.Methods() {
		out = append(out, instrument.QualifiedName(m.Symbol, true))
	}
	return out
}

func findMethod(t *testing.T, tree *syntax.Tree, name string) *syntax.Node {
	t.Helper()
	for _, m := range tree.Methods() {
		if m.Symbol.Name == name {
			return m
		}
	}
	t.Fatalf("function %s not found", name)
	return nil
}

func TestParseFileFunctionNames(t *testing.T) {
	tree := parseOne(t, New(), "store.go", storeSource)
	assert.Equal(t, []string{
		"example.com/app/store.Box_K_V.Put",
		"example.com/app/store.Join",
		"example.com/app/store.Describe",
		"example.com/app/store.helper",
	}, names(tree))
}

func TestCreationKinds(t *testing.T) {
	src := "package store\n\ntype T struct{ A []int }\n\nfunc F() {\n\t_ = new(T)\n\t_ = make(chan int)\n\t_ = T{A: []int{1}}\n\t_ = struct{}{}\n\t_ = map[string]T{\"a\": {}}\n}\n"
	tree := parseOne(t, New(), "f.go", src)
	var kinds []syntax.Kind
	syntax.Body(findMethod(t, tree, "F")).Walk(func(n *syntax.Node) bool {
		if n.Kind.Creation() {
			kinds = append(kinds, n.Kind)
		}
		return true
	})
	assert.Equal(t, []syntax.Kind{
		syntax.KindObjectCreation,
		syntax.KindArrayCreation,
		syntax.KindObjectCreation,
		syntax.KindArrayCreation,
		syntax.KindAnonymousObjectCreation,
		syntax.KindArrayCreation,
		syntax.KindImplicitArrayCreation,
	}, kinds)
}

func callTargets(tree *syntax.Tree, body *syntax.Node) map[string]string {
	out := map[string]string{}
	body.Walk(func(n *syntax.Node) bool {
		if n.Kind == syntax.KindInvocation {
			asm := "<nil>"
			if n.Symbol != nil {
				asm = n.Symbol.Assembly
			}
			out[tree.Text(n)] = asm
		}
		return true
	})
	return out
}

func TestBindResolvesCallTargets(t *testing.T) {
	fe := New()
	tree := parseOne(t, fe, "store.go", storeSource)
	c := &syntax.Compilation{Name: module, Assembly: module, Trees: []*syntax.Tree{tree}}
	require.Empty(t, fe.Bind(c))

	assert.Equal(t, map[string]string{
		"helper()":      module,
		"util.Touch()":  module,
		"fmt.Sprint(v)": "fmt",
	}, callTargets(tree, syntax.Body(findMethod(t, tree, "Describe"))))
	assert.Equal(t, map[string]string{
		"strings.Join(parts, \",\")": "strings",
	}, callTargets(tree, syntax.Body(findMethod(t, tree, "Join"))))

	put := findMethod(t, tree, "Put")
	assert.Equal(t, module, put.Symbol.Assembly)
	assert.Equal(t, module, put.Symbol.Container.Assembly)
}

func TestUnresolvedCalls(t *testing.T) {
	src := "package store\n\nfunc F(f func(), s interface{ Run() }) {\n\tf()\n\ts.Run()\n\t_ = len(\"x\")\n}\n"
	fe := New()
	tree := parseOne(t, fe, "f.go", src)
	require.Empty(t, fe.Bind(&syntax.Compilation{Name: module, Assembly: module, Trees: []*syntax.Tree{tree}}))
	syntax.Body(findMethod(t, tree, "F")).Walk(func(n *syntax.Node) bool {
		if n.Kind == syntax.KindInvocation {
			assert.Nil(t, n.Symbol, tree.Text(n))
		}
		return true
	})
}

func TestBindDuplicateFunctions(t *testing.T) {
	fe := New()
	a := parseOne(t, fe, "a.go", "package store\n\nfunc init() {}\n\nfunc Run() {}\n")
	b := parseOne(t, fe, "b.go", "package store\n\nfunc init() {}\n\n// Run again.\nfunc Run() {}\n")
	diags := fe.Bind(&syntax.Compilation{Name: module, Assembly: module, Trees: []*syntax.Tree{b, a}})
	require.Len(t, diags, 1)
	assert.Equal(t, syntax.SeverityError, diags[0].Severity)
	assert.Equal(t, "b.go", diags[0].Path)
	assert.Equal(t, 6, diags[0].Line)
	assert.Contains(t, diags[0].Message, "Run redeclared")
}

func TestBuildConstraints(t *testing.T) {
	src := "//go:build tracing && !purego\n\npackage store\n\nfunc F() {}\n"
	fe := New()
	assert.Empty(t, names(parseOne(t, fe, "f.go", src)))
	assert.Equal(t, []string{"example.com/app/store.F"}, names(parseOne(t, fe, "f.go", src, "tracing")))
	assert.Empty(t, names(parseOne(t, fe, "f.go", src, "tracing", "purego")))

	release := "//go:build go1.18\n\npackage store\n\nfunc F() {}\n"
	assert.Len(t, names(parseOne(t, fe, "f.go", release)), 1)
}

func TestFileIgnoreDirective(t *testing.T) {
	src := "//autoinject:ignore\n\npackage store\n\nfunc F() {}\n"
	assert.Empty(t, names(parseOne(t, New(), "f.go", src)))
}

func TestParseFileSyntaxError(t *testing.T) {
	tree, diags, err := New().ParseFile("bad.go", []byte("package store\n\nfunc F( {\n}\n"), syntax.ParseOptions{})
	require.NoError(t, err)
	require.NotNil(t, tree)
	require.NotEmpty(t, diags)
	assert.Equal(t, "bad.go", diags[0].Path)
	assert.Equal(t, 3, diags[0].Line)
	assert.Empty(t, tree.Methods())
}

func TestParseBlock(t *testing.T) {
	fe := New()
	text := "{\n\thooklib.ProfilerBegin(\"x\")\n\tdefer hooklib.ProfilerEnd()\n\treturn\n}"
	tree, err := fe.ParseBlock(text)
	require.NoError(t, err)
	assert.Equal(t, text, tree.Text(tree.Root.Children[0]))

	_, err = fe.ParseBlock("{\n\tdefer hooklib.End(\n}")
	assert.Error(t, err)
}

func TestFixImports(t *testing.T) {
	fe := New()
	src := []byte("package store // main store\n\nimport \"fmt\"\n\nvar _ = fmt.Sprint\n")
	out, err := fe.FixImports("f.go", src, []string{"fmt", "Profiler", "github.com/ListenOcean/hookinjector/hooklib"})
	require.NoError(t, err)
	assert.Equal(t, "package store // main store\n\nimport \"github.com/ListenOcean/hookinjector/hooklib\"\n\nimport \"fmt\"\n\nvar _ = fmt.Sprint\n", string(out))

	again, err := fe.FixImports("f.go", out, []string{"github.com/ListenOcean/hookinjector/hooklib"})
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestRewriteEndToEnd(t *testing.T) {
	src := "package store\n\nimport \"fmt\"\n\nfunc Make() []int {\n\tfmt.Println(\"make\")\n\treturn make([]int, 4)\n}\n\nfunc Quiet() {}\n"
	fe := New()
	tree := parseOne(t, fe, "store.go", src)
	c := &syntax.Compilation{Name: module, Assembly: module, Trees: []*syntax.Tree{tree}}
	require.Empty(t, fe.Bind(c))

	table, err := rules.ParseDSL([]byte(`project("example.com/app"){
		InjectMemoryLog("github.com/ListenOcean/hookinjector/hooklib", MemoryLogBegin, MemoryLogEnd);
	}`))
	require.NoError(t, err)
	res, err := instrument.NewRewriter(&instrument.Context{Table: table, Compilation: c, Frontend: fe}).Rewrite(tree)
	require.NoError(t, err)
	require.Len(t, res.Injections, 1)

	out, err := fe.FixImports(tree.Path, res.Text, res.Classes())
	require.NoError(t, err)
	want := "package store\n\n" +
		"import \"github.com/ListenOcean/hookinjector/hooklib\"\n\n" +
		"import \"fmt\"\n\n" +
		"func Make() []int {\n" +
		"\thooklib.MemoryLogBegin(\"example.com/app/store.Make\")\n" +
		"\tdefer hooklib.MemoryLogEnd(\"example.com/app/store.Make\")\n" +
		"{\n\tfmt.Println(\"make\")\n\treturn make([]int, 4)\n}\n" +
		"}\n\nfunc Quiet() {}\n"
	assert.Equal(t, want, string(out))
}

func rewriteStore(t *testing.T, fe *Frontend, src, dsl string) (*instrument.Result, string) {
	t.Helper()
	tree := parseOne(t, fe, "store.go", src)
	c := &syntax.Compilation{Name: module, Assembly: module, Trees: []*syntax.Tree{tree}}
	require.Empty(t, fe.Bind(c))
	table, err := rules.ParseDSL([]byte(dsl))
	require.NoError(t, err)
	res, err := instrument.NewRewriter(&instrument.Context{Table: table, Compilation: c, Frontend: fe}).Rewrite(tree)
	require.NoError(t, err)
	out, err := fe.FixImports(tree.Path, res.Text, res.Classes())
	require.NoError(t, err)
	return res, string(out)
}

func TestDefaultHooksCallHooklib(t *testing.T) {
	src := "package store\n\nfunc Make() []int {\n\treturn make([]int, 4)\n}\n"
	res, out := rewriteStore(t, New(), src, `project("example.com/app"){ InjectMemoryLog(); InjectProfilerSample(); }`)
	require.Len(t, res.Injections, 1)
	assert.Equal(t, "github.com/ListenOcean/hookinjector/hooklib", res.Injections[0].MemoryLog.Class)
	assert.Equal(t, []string{"github.com/ListenOcean/hookinjector/hooklib"}, res.Classes())

	assert.Contains(t, out, "package store\n\nimport \"github.com/ListenOcean/hookinjector/hooklib\"\n\nfunc Make() []int {\n")
	assert.Contains(t, out, "\thooklib.ProfilerBegin(\"example.com/app/store.Make\")\n\tdefer hooklib.ProfilerEnd()\n")
	assert.Contains(t, out, "hooklib.MemoryLogBegin(\"example.com/app/store.Make\")")
	assert.Contains(t, out, "defer hooklib.MemoryLogEnd(\"example.com/app/store.Make\")")
	assert.Less(t, strings.Index(out, "ProfilerBegin"), strings.Index(out, "MemoryLogBegin"))
	assert.NotContains(t, out, "UnityEngine")
	assert.NotContains(t, out, "MemoryAndCallHook")
}

func TestHookPackageName(t *testing.T) {
	src := "package store\n\nfunc Make() []int {\n\treturn make([]int, 4)\n}\n"
	_, out := rewriteStore(t, New(), src, `project("example.com/app"){
		InjectMemoryLog("example.com/trace-hooks=hooks", Begin, End);
		InjectProfilerSample("example.com/prof/v2", Begin, End);
	}`)
	assert.Contains(t, out, "import hooks \"example.com/trace-hooks\"\n")
	assert.Contains(t, out, "import \"example.com/prof/v2\"\n")
	assert.Contains(t, out, "\thooks.Begin(\"example.com/app/store.Make\")\n")
	assert.Contains(t, out, "\tprof.Begin(\"example.com/app/store.Make\")\n\tdefer prof.End()\n")
}
