package codegen

import (
	"strings"

	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"tsllvm/internal/ast"
)

// ---------------------------------------------------------------------------
// Binding
// ---------------------------------------------------------------------------

// BindingKind tags the variant held by a Binding.
type BindingKind int

const (
	// BindValue is a value used directly: a parameter, a constant or an
	// instruction result.
	BindValue BindingKind = iota
	// BindStorage is a pointer to a stack slot or module global; reads load
	// through it and writes store to it.
	BindStorage
	// BindNamespace is a nested scope: a namespace or a class record.
	BindNamespace
)

// Binding is what an identifier resolves to in the code generator.
type Binding struct {
	Kind  BindingKind
	Value value.Value
	Elem  types.Type // BindStorage only: the type stored at Value
	Scope *Scope     // BindNamespace only
}

func valueBinding(v value.Value) *Binding {
	return &Binding{Kind: BindValue, Value: v}
}

func storageBinding(ptr value.Value, elem types.Type) *Binding {
	return &Binding{Kind: BindStorage, Value: ptr, Elem: elem}
}

func namespaceBinding(s *Scope) *Binding {
	return &Binding{Kind: BindNamespace, Scope: s}
}

// ---------------------------------------------------------------------------
// Scope
// ---------------------------------------------------------------------------

// Scope maps identifiers to bindings in definition order. Class scopes carry
// the TypeRecord of their instantiation.
type Scope struct {
	Name   string
	Record *TypeRecord

	bindings map[string]*Binding
	order    []string
}

// NewScope creates an empty scope.
func NewScope(name string) *Scope {
	return &Scope{Name: name, bindings: make(map[string]*Binding)}
}

// Lookup returns the binding of name in this scope only.
func (s *Scope) Lookup(name string) (*Binding, bool) {
	b, ok := s.bindings[name]
	return b, ok
}

// Set binds name. Binding a name twice in one scope is an error.
func (s *Scope) Set(name string, b *Binding) error {
	if _, ok := s.bindings[name]; ok {
		return errorf(ErrDuplicateDefinition, ast.Position{}, "%q is already defined in scope %q", name, s.Name)
	}
	s.bindings[name] = b
	s.order = append(s.order, name)
	return nil
}

// Names lists the bound names in definition order.
func (s *Scope) Names() []string {
	return append([]string(nil), s.order...)
}

// ---------------------------------------------------------------------------
// SymbolTable
// ---------------------------------------------------------------------------

// SymbolTable is the stack of lexical scopes the generator resolves names
// through. The global scope is always at the bottom.
type SymbolTable struct {
	global *Scope
	stack  []*Scope
}

// NewSymbolTable creates a table holding only the global scope.
func NewSymbolTable() *SymbolTable {
	g := NewScope("global")
	return &SymbolTable{global: g, stack: []*Scope{g}}
}

// Global returns the global scope.
func (st *SymbolTable) Global() *Scope { return st.global }

// Current returns the innermost scope.
func (st *SymbolTable) Current() *Scope { return st.stack[len(st.stack)-1] }

// Depth returns the number of scopes on the stack, the global one included.
func (st *SymbolTable) Depth() int { return len(st.stack) }

// Get resolves a dotted path. The first element is searched from the
// innermost scope outwards; each further element is looked up inside the
// namespace the previous one named.
func (st *SymbolTable) Get(path ...string) (*Binding, error) {
	if len(path) == 0 {
		return nil, errorf(ErrUnknownIdentifier, ast.Position{}, "empty identifier")
	}
	var b *Binding
	for i := len(st.stack) - 1; i >= 0; i-- {
		if found, ok := st.stack[i].Lookup(path[0]); ok {
			b = found
			break
		}
	}
	for i := 1; b != nil && i < len(path); i++ {
		if b.Kind != BindNamespace {
			b = nil
			break
		}
		b, _ = b.Scope.Lookup(path[i])
	}
	if b == nil {
		return nil, errorf(ErrUnknownIdentifier, ast.Position{}, "%q", strings.Join(path, "."))
	}
	return b, nil
}

// Set binds name in the innermost scope.
func (st *SymbolTable) Set(name string, b *Binding) error {
	return st.Current().Set(name, b)
}

// Promote replaces the binding of name in the innermost scope that holds it.
func (st *SymbolTable) Promote(name string, b *Binding) error {
	for i := len(st.stack) - 1; i >= 0; i-- {
		if _, ok := st.stack[i].bindings[name]; ok {
			st.stack[i].bindings[name] = b
			return nil
		}
	}
	return errorf(ErrUnknownIdentifier, ast.Position{}, "%q", name)
}

// WithScope runs body in a fresh scope and pops it on every exit path.
func (st *SymbolTable) WithScope(name string, body func(*Scope) error) error {
	return st.Within(NewScope(name), body)
}

// Within pushes an existing scope, such as a namespace being reopened, runs
// body and pops it again.
func (st *SymbolTable) Within(s *Scope, body func(*Scope) error) error {
	st.stack = append(st.stack, s)
	depth := len(st.stack)
	defer func() { st.stack = st.stack[:depth-1] }()
	return body(s)
}

// enter replaces the stack with global followed by chain and returns a
// function restoring the previous stack. The declaration emitter uses it to
// lower a callee in its own lexical environment.
func (st *SymbolTable) enter(chain []*Scope) (restore func()) {
	saved := st.stack
	stack := make([]*Scope, 0, len(chain)+1)
	stack = append(stack, st.global)
	stack = append(stack, chain...)
	st.stack = stack
	return func() { st.stack = saved }
}
