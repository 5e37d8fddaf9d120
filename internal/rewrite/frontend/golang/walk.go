package golang

import (
	"go/ast"
	"go/token"
	"strings"

	"github.com/ListenOcean/hookinjector/configs"
	"github.com/ListenOcean/hookinjector/internal/log"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/dave/dst/dstutil"
)

type callSite struct {
	node *syntax.Node
	name string
	// import path of a package-qualified target, empty for local names
	path string
	// calls through a selector on a local value are left unresolved
	local bool
}

type funcDecl struct {
	name string
	pos  int
}

// fileInfo is what binding needs from one parsed file.
type fileInfo struct {
	path    string
	pkgPath string
	pkgName string
	funcs   []funcDecl
	calls   []callSite
}

type frame struct {
	dst  dst.Node
	node *syntax.Node
}

type builder struct {
	fset  *token.FileSet
	dec   *decorator.Decorator
	tree  *syntax.Tree
	file  *fileInfo
	pkg   *syntax.Symbol
	stack []frame
}

func (b *builder) offsets(n dst.Node) (int, int, bool) {
	an, ok := b.dec.Ast.Nodes[n]
	if !ok || an == nil {
		return 0, 0, false
	}
	return b.offset(an.Pos()), b.offset(an.End()), true
}

func (b *builder) offset(p token.Pos) int {
	return b.fset.Position(p).Offset
}

func (b *builder) push(n dst.Node, kind syntax.Kind) *syntax.Node {
	pos, end, ok := b.offsets(n)
	if !ok {
		return nil
	}
	node := b.stack[len(b.stack)-1].node.Append(syntax.NewNode(kind, pos, end))
	b.stack = append(b.stack, frame{dst: n, node: node})
	return node
}

func (b *builder) build(f *dst.File) {
	b.stack = []frame{{node: b.tree.Root}}
	dstutil.Apply(f, b.pre, b.post)
}

func (b *builder) pre(c *dstutil.Cursor) bool {
	switch n := c.Node().(type) {
	case *dst.FuncDecl:
		b.funcDecl(n)
	case *dst.BlockStmt:
		b.push(n, syntax.KindBlock)
	case *dst.FuncLit:
		b.push(n, syntax.KindClosure)
	case *dst.CompositeLit:
		b.push(n, compositeKind(n))
	case *dst.CallExpr:
		b.callExpr(n)
	}
	return true
}

func (b *builder) post(c *dstutil.Cursor) bool {
	if top := len(b.stack) - 1; top > 0 && b.stack[top].dst == c.Node() {
		b.stack = b.stack[:top]
	}
	return true
}

func (b *builder) funcDecl(fd *dst.FuncDecl) {
	if fd.Recv == nil {
		pos, _, _ := b.offsets(fd)
		b.file.funcs = append(b.file.funcs, funcDecl{name: fd.Name.Name, pos: pos})
	}
	kind := syntax.KindMethod
	if shouldIgnoreFuncDecl(fd) {
		log.Debug("skipping function", log.String("file", b.file.path), log.String("func", fd.Name.Name))
		kind = syntax.KindOther
	}
	node := b.push(fd, kind)
	if node == nil {
		return
	}
	container := b.pkg
	if fd.Recv != nil && len(fd.Recv.List) == 1 {
		container = b.receiverSymbol(fd.Recv.List[0].Type)
	}
	node.Symbol = &syntax.Symbol{
		Kind:       syntax.SymbolMethod,
		Name:       fd.Name.Name,
		TypeParams: fieldNames(fd.Type.TypeParams),
		Container:  container,
	}
}

// receiverSymbol returns the type symbol of a receiver expression such as
// *Box[K, V].
func (b *builder) receiverSymbol(expr dst.Expr) *syntax.Symbol {
	var params []string
	for {
		switch e := expr.(type) {
		case *dst.StarExpr:
			expr = e.X
			continue
		case *dst.ParenExpr:
			expr = e.X
			continue
		case *dst.IndexExpr:
			params = append(params, exprName(e.Index))
			expr = e.X
			continue
		case *dst.IndexListExpr:
			for _, idx := range e.Indices {
				params = append(params, exprName(idx))
			}
			expr = e.X
			continue
		}
		break
	}
	return &syntax.Symbol{
		Kind:       syntax.SymbolType,
		Name:       exprName(expr),
		TypeParams: params,
		Container:  b.pkg,
	}
}

func exprName(e dst.Expr) string {
	if id, ok := e.(*dst.Ident); ok {
		return id.Name
	}
	return ""
}

func fieldNames(fl *dst.FieldList) []string {
	if fl == nil {
		return nil
	}
	var out []string
	for _, f := range fl.List {
		for _, name := range f.Names {
			out = append(out, name.Name)
		}
	}
	return out
}

func compositeKind(n *dst.CompositeLit) syntax.Kind {
	switch n.Type.(type) {
	case nil:
		// element of an enclosing literal with the type elided
		return syntax.KindImplicitArrayCreation
	case *dst.StructType:
		return syntax.KindAnonymousObjectCreation
	case *dst.ArrayType, *dst.MapType:
		return syntax.KindArrayCreation
	}
	return syntax.KindObjectCreation
}

func (b *builder) callExpr(n *dst.CallExpr) {
	if id, ok := n.Fun.(*dst.Ident); ok && id.Path == "" {
		switch id.Name {
		case "new":
			b.push(n, syntax.KindObjectCreation)
			return
		case "make":
			b.push(n, syntax.KindArrayCreation)
			return
		}
	}
	node := b.push(n, syntax.KindInvocation)
	if node == nil {
		return
	}
	cs := callSite{node: node}
	fun := n.Fun
	for {
		// explicit instantiation F[int](x)
		switch e := fun.(type) {
		case *dst.IndexExpr:
			fun = e.X
			continue
		case *dst.IndexListExpr:
			fun = e.X
			continue
		case *dst.ParenExpr:
			fun = e.X
			continue
		}
		break
	}
	switch e := fun.(type) {
	case *dst.Ident:
		cs.name, cs.path = e.Name, e.Path
	case *dst.SelectorExpr:
		cs.name = e.Sel.Name
		if id := leftmostIdent(e.X); id != nil && id.Path != "" {
			cs.path = id.Path
		} else {
			cs.local = true
		}
	default:
		return
	}
	if cs.path == b.file.pkgPath {
		cs.path = ""
	}
	b.file.calls = append(b.file.calls, cs)
}

func leftmostIdent(e dst.Expr) *dst.Ident {
	for {
		switch x := e.(type) {
		case *dst.Ident:
			return x
		case *dst.SelectorExpr:
			e = x.X
		case *dst.CallExpr:
			e = x.Fun
		case *dst.IndexExpr:
			e = x.X
		case *dst.ParenExpr:
			e = x.X
		case *dst.StarExpr:
			e = x.X
		default:
			return nil
		}
	}
}

// Functions left alone:
//   - `_`: explicitly ignored function names.
//   - `.*noescape.*`: any function name containing `noescape` since we would
//     likely break it.
//   - functions having //go:nosplit directives because they are usually
//     low-level functions.
//   - functions having //autoinject:ignore directives.
func shouldIgnoreFuncDecl(fd *dst.FuncDecl) bool {
	fname := fd.Name.Name
	return fd.Body == nil ||
		fname == "_" ||
		strings.Contains(fname, "noescape") ||
		hasDirective(fd, configs.IgnoreDirective) ||
		hasDirective(fd, configs.NoSplitDirective)
}

func hasDirective(n dst.Node, directive string) bool {
	for _, dec := range n.Decorations().Start.All() {
		for _, line := range strings.Split(dec, "\n") {
			if strings.TrimSpace(line) == directive {
				return true
			}
		}
	}
	return false
}

// hasFileDirective looks for directive among the comments preceding the
// package clause.
func hasFileDirective(f *ast.File, directive string) bool {
	for _, cg := range f.Comments {
		if cg.Pos() >= f.Package {
			break
		}
		for _, c := range cg.List {
			if strings.TrimSpace(c.Text) == directive {
				return true
			}
		}
	}
	return false
}
