package semantic

import "tsllvm/internal/ast"

// ---------------------------------------------------------------------------
// Symbol
// ---------------------------------------------------------------------------

// SymbolKind describes what a symbol represents.
type SymbolKind int

const (
	SymVar       SymbolKind = iota // let/const/var binding
	SymParam                       // function parameter
	SymFunc                        // function declaration
	SymClass                       // class declaration
	SymInterface                   // interface declaration
	SymNamespace                   // namespace (module block)
	SymTypeParam                   // generic type parameter
	SymProperty                    // stored property of a class, interface or object
	SymMethod                      // class or interface method
	SymIndex                       // index signature used by an element access
)

func (k SymbolKind) String() string {
	switch k {
	case SymVar:
		return "variable"
	case SymParam:
		return "parameter"
	case SymFunc:
		return "function"
	case SymClass:
		return "class"
	case SymInterface:
		return "interface"
	case SymNamespace:
		return "namespace"
	case SymTypeParam:
		return "type parameter"
	case SymProperty:
		return "property"
	case SymMethod:
		return "method"
	case SymIndex:
		return "index signature"
	default:
		return "unknown"
	}
}

// Symbol records the declaration a name or member access resolves to.
type Symbol struct {
	Name     string
	Kind     SymbolKind
	Type     *Type    // value type of variables, parameters and properties
	Decl     ast.Node // declaring node; nil for object literal properties
	Const    bool
	Exported bool
	Members  *Scope // namespace members
	Pos      ast.Position
}

// Namespace returns the namespace declaration of a SymNamespace symbol.
func (s *Symbol) Namespace() *ast.NamespaceDecl {
	ns, _ := s.Decl.(*ast.NamespaceDecl)
	return ns
}

// Callable returns the callable declaration of a function, method, index or
// accessor symbol.
func (s *Symbol) Callable() ast.Callable {
	c, _ := s.Decl.(ast.Callable)
	return c
}

// ---------------------------------------------------------------------------
// Scope
// ---------------------------------------------------------------------------

// Scope is a symbol table with an optional parent (lexical scoping).
type Scope struct {
	parent  *Scope
	symbols map[string]*Symbol
	order   []string
}

func newScope(parent *Scope) *Scope {
	return &Scope{parent: parent, symbols: make(map[string]*Symbol)}
}

// define adds a symbol to this scope (overwrites if already present).
func (s *Scope) define(sym *Symbol) {
	if _, ok := s.symbols[sym.Name]; !ok {
		s.order = append(s.order, sym.Name)
	}
	s.symbols[sym.Name] = sym
}

// lookupLocal returns the symbol with the given name in this scope only.
func (s *Scope) lookupLocal(name string) *Symbol {
	return s.symbols[name]
}

// lookup traverses the scope chain (current → parent → …) to find a symbol.
func (s *Scope) lookup(name string) *Symbol {
	if sym := s.symbols[name]; sym != nil {
		return sym
	}
	if s.parent != nil {
		return s.parent.lookup(name)
	}
	return nil
}

// Lookup returns the symbol bound to name in this scope only.
func (s *Scope) Lookup(name string) *Symbol {
	return s.lookupLocal(name)
}

// Names lists the scope's names in definition order.
func (s *Scope) Names() []string {
	return append([]string(nil), s.order...)
}
