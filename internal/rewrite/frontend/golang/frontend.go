// Package golang parses Go sources into rewrite trees. Call targets are
// resolved with the dst import resolver, hooks are wrapped with defer.
package golang

import (
	"fmt"
	"go/ast"
	"go/build/constraint"
	"go/parser"
	"go/scanner"
	"go/token"
	"runtime"
	"strings"
	"sync"

	"github.com/ListenOcean/hookinjector/configs"
	"github.com/ListenOcean/hookinjector/internal/log"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"

	"github.com/dave/dst/decorator"
	"github.com/dave/dst/decorator/resolver/goast"
	"github.com/dave/dst/decorator/resolver/guess"
	"github.com/pkg/errors"
)

const Language = "go"

type Frontend struct {
	mu    sync.Mutex
	files map[*syntax.Tree]*fileInfo
}

func New() *Frontend {
	return &Frontend{files: make(map[*syntax.Tree]*fileInfo)}
}

func (f *Frontend) Language() string { return Language }

func (f *Frontend) WrapStyle() syntax.WrapStyle { return syntax.WrapDefer }

// ParseFile builds the rewrite tree of one file. A file excluded by its
// build constraints or by a file-level ignore directive yields a tree
// without declarations.
func (f *Frontend) ParseFile(path string, src []byte, opts syntax.ParseOptions) (*syntax.Tree, []syntax.Diagnostic, error) {
	tree := syntax.NewTree(path, src)
	fset := token.NewFileSet()
	af, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		var list scanner.ErrorList
		if errors.As(err, &list) {
			return tree, scanDiagnostics(path, list), nil
		}
		return nil, nil, errors.Wrap(err, path)
	}

	if !matchBuildConstraints(af, opts.Defines) {
		log.Debug("file excluded by build constraints", log.String("file", path))
		return tree, nil, nil
	}
	if hasFileDirective(af, configs.IgnoreDirective) {
		log.Debug("file skipped due to ignore directive", log.String("file", path))
		return tree, nil, nil
	}

	pkgPath := opts.PackagePath
	if pkgPath == "" {
		pkgPath = af.Name.Name
	}
	dec := decorator.NewDecoratorWithImports(fset, pkgPath, goast.WithResolver(guess.New()))
	df, err := dec.DecorateFile(af)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decorate %s", path)
	}

	b := &builder{
		fset: fset,
		dec:  dec,
		tree: tree,
		file: &fileInfo{path: path, pkgPath: pkgPath, pkgName: af.Name.Name},
		pkg:  syntax.NewNamespace(pkgPath, nil),
	}
	b.build(df)

	f.mu.Lock()
	f.files[tree] = b.file
	f.mu.Unlock()
	return tree, nil, nil
}

func (f *Frontend) info(t *syntax.Tree) *fileInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[t]
}

func scanDiagnostics(path string, list scanner.ErrorList) []syntax.Diagnostic {
	diags := make([]syntax.Diagnostic, 0, len(list))
	for _, e := range list {
		diags = append(diags, syntax.Diagnostic{
			Severity: syntax.SeverityError,
			Path:     path,
			Line:     e.Pos.Line,
			Column:   e.Pos.Column,
			Message:  e.Msg,
		})
	}
	return diags
}

// matchBuildConstraints evaluates the //go:build line of f. Tags are the
// defines plus the host GOOS, GOARCH and compiler; release tags always
// match.
func matchBuildConstraints(f *ast.File, defines []string) bool {
	tags := map[string]bool{
		runtime.GOOS:     true,
		runtime.GOARCH:   true,
		runtime.Compiler: true,
	}
	for _, d := range defines {
		tags[d] = true
	}
	for _, cg := range f.Comments {
		if cg.Pos() >= f.Package {
			break
		}
		for _, c := range cg.List {
			if !constraint.IsGoBuild(c.Text) {
				continue
			}
			expr, err := constraint.Parse(c.Text)
			if err != nil {
				log.Warn("invalid build constraint", log.String("line", c.Text), log.Err(err))
				continue
			}
			return expr.Eval(func(tag string) bool {
				return tags[tag] || strings.HasPrefix(tag, "go1.")
			})
		}
	}
	return true
}

func (f *Frontend) DefaultMemoryLog() syntax.HookNames {
	return syntax.HookNames{Class: configs.DefaultGoHookPackage, Begin: configs.DefaultGoMemoryLogBegin, End: configs.DefaultGoMemoryLogEnd}
}

func (f *Frontend) DefaultProfilerSample() syntax.HookNames {
	return syntax.HookNames{Class: configs.DefaultGoHookPackage, Begin: configs.DefaultGoProfilerBegin, End: configs.DefaultGoProfilerEnd}
}

// ParseBlock checks that text is a valid function body.
func (f *Frontend) ParseBlock(text string) (*syntax.Tree, error) {
	if _, err := decorator.Parse(fmt.Sprintf(configs.GoFragmentTemplate, text)); err != nil {
		return nil, errors.Wrap(err, "invalid block")
	}
	return syntax.NewFragment(text)
}

// FixImports adds an import for every hook class that is an import path
// the file does not import yet. The rest of the file is left untouched.
func (f *Frontend) FixImports(path string, src []byte, classes []string) ([]byte, error) {
	fset := token.NewFileSet()
	af, err := parser.ParseFile(fset, path, src, parser.ImportsOnly)
	if err != nil {
		return nil, errors.Wrapf(err, "parse imports of %s", path)
	}
	imported := make(map[string]bool, len(af.Imports))
	for _, spec := range af.Imports {
		imported[strings.Trim(spec.Path.Value, "`\"")] = true
	}

	var missing []string
	for _, class := range classes {
		if !strings.Contains(class, "/") {
			continue
		}
		p, name, explicit := syntax.HookPackage(class)
		if imported[p] {
			continue
		}
		imported[p] = true
		if explicit {
			missing = append(missing, fmt.Sprintf("import %s %q\n", name, p))
		} else {
			missing = append(missing, fmt.Sprintf("import %q\n", p))
		}
	}
	if len(missing) == 0 {
		return src, nil
	}

	at := fset.Position(af.Name.End()).Offset
	if i := strings.IndexByte(string(src[at:]), '\n'); i >= 0 {
		at += i + 1
	} else {
		at = len(src)
	}
	var decl strings.Builder
	decl.WriteString("\n")
	for _, imp := range missing {
		decl.WriteString(imp)
	}
	out := make([]byte, 0, len(src)+decl.Len())
	out = append(out, src[:at]...)
	out = append(out, decl.String()...)
	out = append(out, src[at:]...)
	return out, nil
}
