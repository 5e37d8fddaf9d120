package csharp

import (
	"fmt"
	"strings"

	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"

	sitter "github.com/smacker/go-tree-sitter"
)

var typeDecls = map[string]bool{
	"class_declaration":         true,
	"struct_declaration":        true,
	"interface_declaration":     true,
	"record_declaration":        true,
	"record_struct_declaration": true,
}

var methodDecls = map[string]bool{
	"method_declaration":              true,
	"constructor_declaration":         true,
	"destructor_declaration":          true,
	"operator_declaration":            true,
	"conversion_operator_declaration": true,
}

var memberDecls = map[string]bool{
	"property_declaration": true,
	"indexer_declaration":  true,
	"event_declaration":    true,
}

var closures = map[string]bool{
	"lambda_expression":           true,
	"anonymous_method_expression": true,
	"local_function_statement":    true,
}

// grammar versions disagree on the stackalloc node names
var creations = map[string]syntax.Kind{
	"object_creation_expression":                     syntax.KindObjectCreation,
	"implicit_object_creation_expression":            syntax.KindObjectCreation,
	"anonymous_object_creation_expression":           syntax.KindAnonymousObjectCreation,
	"array_creation_expression":                      syntax.KindArrayCreation,
	"implicit_array_creation_expression":             syntax.KindImplicitArrayCreation,
	"stackalloc_array_creation_expression":           syntax.KindStackAlloc,
	"stack_alloc_array_creation_expression":          syntax.KindStackAlloc,
	"implicit_stackalloc_array_creation_expression":  syntax.KindStackAlloc,
	"implicit_stack_alloc_array_creation_expression": syntax.KindStackAlloc,
	"stackalloc_expression":                          syntax.KindStackAlloc,
	"implicit_stackalloc_expression":                 syntax.KindStackAlloc,
}

type member struct {
	kind string
	name string
}

type builder struct {
	src      []byte
	tree     *syntax.Tree
	inactive regions
	file     *fileInfo
	// property, indexer or event whose accessors are being walked
	member *member
}

func (b *builder) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(b.src)
}

func (b *builder) node(kind syntax.Kind, n *sitter.Node) *syntax.Node {
	return syntax.NewNode(kind, int(n.StartByte()), int(n.EndByte()))
}

func (b *builder) children(n *sitter.Node, parent *syntax.Node, container *syntax.Symbol) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "file_scoped_namespace_declaration" {
			// applies to the rest of the file
			container = b.namespace(c, parent, container)
			continue
		}
		b.walk(c, parent, container)
	}
}

func (b *builder) walk(n *sitter.Node, parent *syntax.Node, container *syntax.Symbol) {
	if b.inactive.contains(int(n.StartByte())) {
		return
	}
	t := n.Type()
	switch {
	case t == "namespace_declaration":
		b.namespace(n, parent, container)

	case typeDecls[t]:
		sym := &syntax.Symbol{
			Kind:       syntax.SymbolType,
			Name:       b.content(n.ChildByFieldName("name")),
			TypeParams: b.typeParams(n),
			Container:  container,
		}
		b.file.types = append(b.file.types, sym.Name)
		node := parent.Append(b.node(syntax.KindType, n))
		node.Symbol = sym
		b.children(n, node, sym)

	case methodDecls[t]:
		sym := &syntax.Symbol{
			Kind:       syntax.SymbolMethod,
			Name:       b.methodName(n),
			TypeParams: b.typeParams(n),
			Container:  container,
		}
		b.file.methods = append(b.file.methods, sym.Name)
		node := parent.Append(b.node(syntax.KindMethod, n))
		node.Symbol = sym
		b.children(n, node, container)

	case memberDecls[t]:
		saved := b.member
		b.member = &member{kind: t, name: b.memberName(n)}
		b.children(n, parent, container)
		b.member = saved

	case t == "accessor_declaration":
		node := parent.Append(b.node(syntax.KindAccessor, n))
		node.Symbol = &syntax.Symbol{
			Kind:      syntax.SymbolMethod,
			Name:      accessorName(b.member, b.accessorKeyword(n)),
			Container: container,
		}
		b.children(n, node, container)

	case t == "block":
		b.children(n, parent.Append(b.node(syntax.KindBlock, n)), container)

	case closures[t]:
		if t == "local_function_statement" {
			b.file.methods = append(b.file.methods, b.content(n.ChildByFieldName("name")))
		}
		b.children(n, parent.Append(b.node(syntax.KindClosure, n)), container)

	case creations[t] != 0:
		b.children(n, parent.Append(b.node(creations[t], n)), container)

	case t == "invocation_expression":
		node := parent.Append(b.node(syntax.KindInvocation, n))
		b.callSite(n, node)
		b.children(n, node, container)

	case t == "using_directive":
		b.file.addUsing(b.content(n), int(n.StartByte()))

	case t == "extern_alias_directive":
		b.file.externs = append(b.file.externs, externAlias{name: b.lastIdentifier(n), pos: int(n.StartByte())})

	default:
		b.children(n, parent, container)
	}
}

func (b *builder) namespace(n *sitter.Node, parent *syntax.Node, container *syntax.Symbol) *syntax.Symbol {
	name := normalizeName(b.content(n.ChildByFieldName("name")))
	ns := syntax.Namespaces(strings.Split(name, "."), container)
	b.file.namespaces = append(b.file.namespaces, QualifiedNamespace(ns))
	node := parent.Append(b.node(syntax.KindNamespace, n))
	node.Symbol = ns
	b.children(n, node, ns)
	return ns
}

// QualifiedNamespace is the dotted name of a namespace chain.
func QualifiedNamespace(ns *syntax.Symbol) string {
	var segs []string
	for ; !ns.IsGlobal(); ns = ns.Container {
		segs = append([]string{ns.Name}, segs...)
	}
	return strings.Join(segs, ".")
}

func (b *builder) typeParams(n *sitter.Node) []string {
	list := n.ChildByFieldName("type_parameters")
	if list == nil {
		list = b.namedChildOfType(n, "type_parameter_list")
	}
	if list == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		switch p.Type() {
		case "type_parameter":
			if name := p.ChildByFieldName("name"); name != nil {
				out = append(out, b.content(name))
			} else {
				out = append(out, b.lastIdentifier(p))
			}
		case "identifier":
			out = append(out, b.content(p))
		}
	}
	return out
}

func (b *builder) namedChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func (b *builder) lastIdentifier(n *sitter.Node) string {
	name := ""
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "identifier" {
			name = b.content(c)
		}
	}
	return name
}

// hasToken reports whether n has a direct child, named or not, of type or
// text tok.
func (b *builder) hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == tok {
			return true
		}
		if c.Type() == "modifier" && strings.TrimSpace(b.content(c)) == tok {
			return true
		}
	}
	return false
}

func (b *builder) memberName(n *sitter.Node) string {
	if n.Type() == "indexer_declaration" {
		return "Item"
	}
	if name := n.ChildByFieldName("name"); name != nil {
		return b.content(name)
	}
	return b.lastIdentifier(n)
}

func (b *builder) accessorKeyword(n *sitter.Node) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return b.content(name)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		switch t := n.Child(i).Type(); t {
		case "get", "set", "init", "add", "remove":
			return t
		}
	}
	return ""
}

func (b *builder) paramCount(n *sitter.Node) int {
	params := n.ChildByFieldName("parameters")
	if params == nil {
		params = b.namedChildOfType(n, "parameter_list")
	}
	if params == nil {
		return 0
	}
	count := 0
	for i := 0; i < int(params.NamedChildCount()); i++ {
		if params.NamedChild(i).Type() == "parameter" {
			count++
		}
	}
	return count
}

func (b *builder) methodName(n *sitter.Node) string {
	switch n.Type() {
	case "constructor_declaration":
		if b.hasToken(n, "static") {
			return ".cctor"
		}
		return ".ctor"
	case "destructor_declaration":
		return "Finalize"
	case "operator_declaration":
		return operatorName(strings.TrimSpace(b.content(n.ChildByFieldName("operator"))), b.paramCount(n))
	case "conversion_operator_declaration":
		if b.hasToken(n, "explicit") {
			return "op_Explicit"
		}
		return "op_Implicit"
	}
	if name := n.ChildByFieldName("name"); name != nil {
		return b.content(name)
	}
	return b.lastIdentifier(n)
}

func (b *builder) callSite(n *sitter.Node, node *syntax.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	cs := callSite{node: node}
	switch fn.Type() {
	case "identifier":
		cs.bare, cs.name = true, b.content(fn)
	case "generic_name":
		cs.bare, cs.name = true, b.lastIdentifier(fn)
	case "member_access_expression":
		cs.qualifier = b.content(fn.ChildByFieldName("expression"))
		name := fn.ChildByFieldName("name")
		if name != nil && name.Type() == "generic_name" {
			cs.name = b.lastIdentifier(name)
		} else {
			cs.name = b.content(name)
		}
	default:
		return
	}
	b.file.calls = append(b.file.calls, cs)
}

func (b *builder) syntaxErrors(n *sitter.Node, out []syntax.Diagnostic) []syntax.Diagnostic {
	pos := int(n.StartByte())
	switch {
	case n.IsMissing():
		if !b.inactive.contains(pos) {
			out = append(out, b.diagnostic(pos, fmt.Sprintf("%s expected", n.Type())))
		}
		return out
	case n.Type() == "ERROR":
		if !b.inactive.contains(pos) {
			text := b.content(n)
			if len(text) > 32 {
				text = text[:32] + "..."
			}
			out = append(out, b.diagnostic(pos, fmt.Sprintf("unexpected %q", text)))
		}
		return out
	case !n.HasError():
		return out
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		out = b.syntaxErrors(n.Child(i), out)
	}
	return out
}

func (b *builder) diagnostic(pos int, msg string) syntax.Diagnostic {
	line, col := syntax.Position(b.src, pos)
	return syntax.Diagnostic{
		Severity: syntax.SeverityError,
		Path:     b.file.path,
		Line:     line,
		Column:   col,
		Message:  msg,
	}
}
