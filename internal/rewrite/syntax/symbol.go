package syntax

type SymbolKind uint8

const (
	SymbolNamespace SymbolKind = iota
	SymbolType
	SymbolMethod
)

// Symbol is the resolved identity of a declaration or call target.
type Symbol struct {
	Kind       SymbolKind
	Name       string
	TypeParams []string
	// Enclosing type or namespace. Nil means the global namespace.
	Container *Symbol
	// Identity of the assembly (C#) or module/package (Go) that declares it.
	Assembly string
}

func NewNamespace(name string, parent *Symbol) *Symbol {
	return &Symbol{Kind: SymbolNamespace, Name: name, Container: parent}
}

// IsGlobal reports whether s is the global namespace.
func (s *Symbol) IsGlobal() bool {
	return s == nil || (s.Kind == SymbolNamespace && s.Name == "")
}

// Namespaces builds the namespace chain for a dotted name, nested in parent.
func Namespaces(dotted []string, parent *Symbol) *Symbol {
	ns := parent
	for _, seg := range dotted {
		if seg == "" {
			continue
		}
		ns = NewNamespace(seg, ns)
	}
	return ns
}
