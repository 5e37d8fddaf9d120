package golang

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"
	"github.com/ListenOcean/hookinjector/utils"
)

// Bind resolves call targets across the packages of c. Packages inside the
// module c.Assembly belong to the own assembly, any other import path is
// its own assembly.
func (f *Frontend) Bind(c *syntax.Compilation) []syntax.Diagnostic {
	type pkgFuncs map[string]bool
	funcs := make(map[string]pkgFuncs)
	var diags []syntax.Diagnostic

	var files []*fileInfo
	trees := make(map[*fileInfo]*syntax.Tree)
	for _, t := range c.Trees {
		if fi := f.info(t); fi != nil {
			files = append(files, fi)
			trees[fi] = t
		}
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].path < files[j].path })

	for _, fi := range files {
		declared := funcs[fi.pkgPath]
		if declared == nil {
			declared = make(pkgFuncs)
			funcs[fi.pkgPath] = declared
		}
		for _, fd := range fi.funcs {
			// init and blank functions may repeat
			if fd.name == "init" || fd.name == "_" {
				continue
			}
			if declared[fd.name] {
				line, col := syntax.Position(trees[fi].Source, fd.pos)
				diags = append(diags, syntax.Diagnostic{
					Severity: syntax.SeverityError,
					Path:     fi.path,
					Line:     line,
					Column:   col,
					Message:  fmt.Sprintf("%s redeclared in package %s", fd.name, fi.pkgName),
				})
			}
			declared[fd.name] = true
		}
	}

	for _, fi := range files {
		trees[fi].Root.Walk(func(n *syntax.Node) bool {
			if n.Kind == syntax.KindMethod || n.Kind == syntax.KindOther {
				for s := n.Symbol; s != nil && s.Kind != syntax.SymbolNamespace; s = s.Container {
					s.Assembly = c.Assembly
				}
			}
			return true
		})
		for _, cs := range fi.calls {
			cs.node.Symbol = resolve(c.Assembly, funcs[fi.pkgPath], cs)
		}
	}
	return diags
}

func resolve(module string, declared map[string]bool, cs callSite) *syntax.Symbol {
	sym := func(asm string) *syntax.Symbol {
		return &syntax.Symbol{Kind: syntax.SymbolMethod, Name: cs.name, Assembly: asm}
	}
	switch {
	case cs.local:
		return nil
	case cs.path != "":
		path := utils.Unvendor(cs.path)
		if inModule(module, path) {
			return sym(module)
		}
		return sym(path)
	case declared[cs.name]:
		return sym(module)
	}
	// builtins, function values and conversions
	return nil
}

func inModule(module, path string) bool {
	return module != "" && (path == module || strings.HasPrefix(path, module+"/"))
}
