package syntax

import "fmt"

// Kind is the closed set of node kinds the rewrite engine understands. Front
// ends map their own grammar onto these kinds and drop everything else, so a
// Tree is a skeleton over the source: the bytes between nodes are kept
// verbatim by the source slice, never by the nodes.
type Kind uint8

const (
	KindUnit Kind = iota
	KindNamespace
	KindType
	KindMethod
	KindAccessor
	KindBlock
	KindClosure
	KindObjectCreation
	KindAnonymousObjectCreation
	KindArrayCreation
	KindImplicitArrayCreation
	KindStackAlloc
	KindInvocation
	KindOther
)

var kindNames = [...]string{
	KindUnit:                    "Unit",
	KindNamespace:               "Namespace",
	KindType:                    "Type",
	KindMethod:                  "Method",
	KindAccessor:                "Accessor",
	KindBlock:                   "Block",
	KindClosure:                 "Closure",
	KindObjectCreation:          "ObjectCreation",
	KindAnonymousObjectCreation: "AnonymousObjectCreation",
	KindArrayCreation:           "ArrayCreation",
	KindImplicitArrayCreation:   "ImplicitArrayCreation",
	KindStackAlloc:              "StackAlloc",
	KindInvocation:              "Invocation",
	KindOther:                   "Other",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// MethodLike reports whether a block directly below a node of this kind is
// an instrumentable body.
func (k Kind) MethodLike() bool {
	return k == KindMethod || k == KindAccessor
}

// Creation reports whether the kind is one of the allocation expressions.
func (k Kind) Creation() bool {
	switch k {
	case KindObjectCreation, KindAnonymousObjectCreation, KindArrayCreation,
		KindImplicitArrayCreation, KindStackAlloc:
		return true
	}
	return false
}

// Node is a span [Pos, End) of its tree's source.
type Node struct {
	Kind     Kind
	Pos, End int
	Parent   *Node
	Children []*Node
	// Declared symbol for method-like nodes, callee for invocations. Nil when
	// the front end could not resolve it.
	Symbol *Symbol
}

func NewNode(kind Kind, pos, end int) *Node {
	return &Node{Kind: kind, Pos: pos, End: end}
}

// Append adds c as the last child of n.
func (n *Node) Append(c *Node) *Node {
	c.Parent = n
	n.Children = append(n.Children, c)
	return c
}

// Walk calls fn for n and its descendants in source order. Returning false
// from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("%s[%d,%d)", n.Kind, n.Pos, n.End)
}

// Tree is one parsed compilation unit.
type Tree struct {
	// Path relative to the compilation root, slash separated. Output files
	// mirror it.
	Path   string
	Source []byte
	Root   *Node
}

func NewTree(path string, src []byte) *Tree {
	return &Tree{
		Path:   path,
		Source: src,
		Root:   NewNode(KindUnit, 0, len(src)),
	}
}

func (t *Tree) Text(n *Node) string {
	return string(t.Source[n.Pos:n.End])
}

// Methods returns the method-like nodes of the tree in source order.
func (t *Tree) Methods() []*Node {
	var out []*Node
	t.Root.Walk(func(n *Node) bool {
		if n.Kind.MethodLike() {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Body returns the block child of a method-like node, or nil when the
// declaration has no block body.
func Body(n *Node) *Node {
	for _, c := range n.Children {
		if c.Kind == KindBlock {
			return c
		}
	}
	return nil
}
