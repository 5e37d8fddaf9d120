package csharp

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"
)

type callSite struct {
	node *syntax.Node
	// receiver expression text, empty for bare calls
	qualifier string
	name      string
	bare      bool
}

type usingDirective struct {
	target string
	alias  string
	static bool
	pos    int
}

type externAlias struct {
	name string
	pos  int
}

// fileInfo is what binding needs from one parsed file.
type fileInfo struct {
	path       string
	usings     []usingDirective
	externs    []externAlias
	calls      []callSite
	types      []string
	namespaces []string
	methods    []string
}

func newFileInfo(path string) *fileInfo {
	return &fileInfo{path: path}
}

func (fi *fileInfo) addUsing(text string, pos int) {
	t := strings.TrimSpace(text)
	t = strings.TrimSpace(strings.TrimSuffix(t, ";"))
	t = strings.TrimSpace(strings.TrimPrefix(t, "global"))
	t = strings.TrimSpace(strings.TrimPrefix(t, "using"))
	u := usingDirective{pos: pos}
	if strings.HasPrefix(t, "static ") {
		u.static = true
		t = t[len("static "):]
	}
	if i := strings.Index(t, "="); i >= 0 {
		u.alias = strings.TrimSpace(t[:i])
		t = t[i+1:]
	}
	u.target = normalizeName(t)
	fi.usings = append(fi.usings, u)
}

// index is the compilation-wide view used to resolve call targets.
type index struct {
	own        string
	types      map[string]bool
	namespaces map[string]bool
	methods    map[string]bool
	// assemblies reachable without an alias
	globals []string
	// extern alias to assembly
	aliased map[string]string
}

func newIndex(c *syntax.Compilation, files []*fileInfo) *index {
	x := &index{
		own:        c.Assembly,
		types:      make(map[string]bool),
		namespaces: make(map[string]bool),
		methods:    make(map[string]bool),
		aliased:    make(map[string]string),
	}
	for _, fi := range files {
		for _, t := range fi.types {
			x.types[t] = true
		}
		for _, m := range fi.methods {
			x.methods[m] = true
		}
		for _, ns := range fi.namespaces {
			segs := strings.Split(ns, ".")
			for i := range segs {
				x.namespaces[strings.Join(segs[:i+1], ".")] = true
			}
		}
	}
	for _, r := range c.References {
		if r.Alias == "" || r.Alias == syntax.GlobalAlias {
			x.globals = append(x.globals, r.Name)
		} else {
			x.aliased[r.Alias] = r.Name
		}
	}
	return x
}

// claim returns the reference assembly whose name is the longest dotted
// prefix of name.
func (x *index) claim(name string) string {
	best := ""
	for _, asm := range x.globals {
		if (name == asm || strings.HasPrefix(name, asm+".")) && len(asm) > len(best) {
			best = asm
		}
	}
	return best
}

// isOwn reports whether a dotted name starts with a type declared in the
// compilation, possibly behind one of its namespaces.
func (x *index) isOwn(segs []string) bool {
	if x.types[segs[0]] {
		return true
	}
	for k := len(segs) - 1; k >= 1; k-- {
		if x.namespaces[strings.Join(segs[:k], ".")] && x.types[segs[k]] {
			return true
		}
	}
	return false
}

func (x *index) resolve(fi *fileInfo, cs callSite) *syntax.Symbol {
	sym := func(asm string) *syntax.Symbol {
		return &syntax.Symbol{Kind: syntax.SymbolMethod, Name: cs.name, Assembly: asm}
	}
	if cs.bare {
		if x.methods[cs.name] {
			return sym(x.own)
		}
		for _, u := range fi.usings {
			if !u.static {
				continue
			}
			if x.isOwn(strings.Split(u.target, ".")) {
				return sym(x.own)
			}
			if asm := x.claim(u.target + "." + cs.name); asm != "" {
				return sym(asm)
			}
		}
		return nil
	}

	q := normalizeName(cs.qualifier)
	switch q {
	case "this", "base":
		return sym(x.own)
	}
	if i := strings.Index(q, "::"); i >= 0 {
		asm, ok := x.aliased[q[:i]]
		if !ok {
			return nil
		}
		return sym(asm)
	}
	if !isDottedName(q) {
		return nil
	}
	segs := strings.Split(q, ".")
	for _, u := range fi.usings {
		if u.alias == segs[0] {
			q = strings.Join(append([]string{u.target}, segs[1:]...), ".")
			segs = strings.Split(q, ".")
			break
		}
	}
	if x.isOwn(segs) {
		return sym(x.own)
	}
	// camelCase receivers are locals, fields or parameters
	if r := []rune(segs[0]); unicode.IsLower(r[0]) && !x.namespaces[segs[0]] {
		return nil
	}
	candidates := []string{q}
	for _, u := range fi.usings {
		if !u.static && u.alias == "" {
			candidates = append(candidates, u.target+"."+q)
		}
	}
	for _, cand := range candidates {
		if asm := x.claim(cand); asm != "" {
			return sym(asm)
		}
	}
	return nil
}

// Bind resolves the call targets of every parsed tree of c and stamps the
// compilation's assembly on declared symbols.
func (f *Frontend) Bind(c *syntax.Compilation) []syntax.Diagnostic {
	var files []*fileInfo
	for _, t := range c.Trees {
		if fi := f.info(t); fi != nil {
			files = append(files, fi)
		}
	}
	x := newIndex(c, files)

	var diags []syntax.Diagnostic
	for _, t := range c.Trees {
		fi := f.info(t)
		if fi == nil {
			continue
		}
		t.Root.Walk(func(n *syntax.Node) bool {
			if n.Kind.MethodLike() || n.Kind == syntax.KindType {
				for s := n.Symbol; s != nil && s.Kind != syntax.SymbolNamespace; s = s.Container {
					s.Assembly = c.Assembly
				}
			}
			return true
		})
		for _, cs := range fi.calls {
			cs.node.Symbol = x.resolve(fi, cs)
		}
		diags = append(diags, x.checkDirectives(t, fi)...)
	}
	return diags
}

func (x *index) checkDirectives(t *syntax.Tree, fi *fileInfo) []syntax.Diagnostic {
	var diags []syntax.Diagnostic
	at := func(sev syntax.Severity, pos int, code, msg string) {
		line, col := syntax.Position(t.Source, pos)
		diags = append(diags, syntax.Diagnostic{Severity: sev, Path: fi.path, Line: line, Column: col, Code: code, Message: msg})
	}
	for _, e := range fi.externs {
		if _, ok := x.aliased[e.name]; !ok {
			at(syntax.SeverityError, e.pos, "CS0430",
				fmt.Sprintf("The extern alias '%s' was not specified in a /reference option", e.name))
		}
	}
	seen := make(map[string]bool)
	for _, u := range fi.usings {
		if u.alias != "" {
			continue
		}
		key := u.target
		if u.static {
			key = "static " + key
		}
		if seen[key] {
			at(syntax.SeverityWarning, u.pos, "CS0105",
				fmt.Sprintf("The using directive for '%s' appeared previously in this namespace", u.target))
		}
		seen[key] = true
	}
	return diags
}
