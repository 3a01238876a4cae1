package semantic

import (
	"fmt"
	"strings"

	"tsllvm/internal/ast"
)

// Info is the result of type checking: the type of every expression and
// declaration, the symbol every name resolves to, and the queries the code
// generator asks about them. Info is read-only once Check returns.
type Info struct {
	Types   map[ast.Node]*Type
	Symbols map[ast.Node]*Symbol
	Global  *Scope

	declTypes   map[ast.Node]*Type     // parameters, properties, index signatures
	returns     map[ast.Callable]*Type // declared return types, in terms of the owner's parameters
	instances   map[string]*Type
	callArgs    map[*ast.CallExpr][]*Type
	stringIface *ast.InterfaceDecl
}

func newInfo() *Info {
	return &Info{
		Types:     make(map[ast.Node]*Type),
		Symbols:   make(map[ast.Node]*Symbol),
		Global:    newScope(nil),
		declTypes: make(map[ast.Node]*Type),
		returns:   make(map[ast.Callable]*Type),
		instances: make(map[string]*Type),
		callArgs:  make(map[*ast.CallExpr][]*Type),
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// TypeOf returns the type of an expression, variable declarator, parameter or
// property declaration, or nil when the node was never checked.
func (info *Info) TypeOf(n ast.Node) *Type {
	if t, ok := info.Types[n]; ok {
		return t
	}
	return info.declTypes[n]
}

// SymbolOf returns the symbol an identifier, property access, element access
// or new expression resolved to.
func (info *Info) SymbolOf(e ast.Expr) *Symbol {
	return info.Symbols[e]
}

// TypeArgumentsOf returns the type arguments of a generic instantiation.
func (info *Info) TypeArgumentsOf(t *Type) []*Type {
	if t == nil {
		return nil
	}
	return t.Args
}

// CallTypeArguments returns the type arguments a call to a generic function
// or method was checked with, explicit or inferred, in parameter order.
func (info *Info) CallTypeArguments(call *ast.CallExpr) []*Type {
	return info.callArgs[call]
}

// PropertiesOf returns the stored properties of a type in declaration order
// with type arguments substituted.
func (info *Info) PropertiesOf(t *Type) []*Property {
	if t == nil {
		return nil
	}
	if t.Kind == KindObject {
		return t.Props
	}
	b := BindingsOf(t)
	var props []*Property
	for _, m := range t.members() {
		pd, ok := m.(*ast.PropertyDecl)
		if !ok {
			continue
		}
		props = append(props, &Property{
			Name:     pd.Name,
			Type:     Substitute(info.declTypes[pd], b),
			Decl:     pd,
			Readonly: pd.Readonly,
		})
	}
	return props
}

// SignatureOf resolves the parameter and return types of a callable for the
// given receiver (nil for free functions). Constructors return the receiver.
func (info *Info) SignatureOf(decl ast.Callable, receiver *Type) *Signature {
	b := BindingsOf(receiver)
	sig := &Signature{Decl: decl, Receiver: receiver}
	for _, p := range decl.CallableParams() {
		sig.Params = append(sig.Params, Substitute(info.declTypes[p], b))
	}
	switch decl := decl.(type) {
	case *ast.ConstructorDecl:
		sig.Return = receiver
	case *ast.PropertyDecl:
		// Accessor of an ambient property: the property type is the result.
		sig.Return = Substitute(info.declTypes[decl], b)
	default:
		sig.Return = Substitute(info.returns[decl], b)
	}
	return sig
}

// LookupMember finds a property or method of t by name.
func (info *Info) LookupMember(t *Type, name string) *Symbol {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case KindString:
		if info.stringIface != nil {
			return info.memberOf(info.stringIface.Members, name, nil)
		}
		if name == "length" {
			return &Symbol{Name: name, Kind: SymProperty, Type: TypeNumber, Const: true}
		}
	case KindClass, KindInterface:
		return info.memberOf(t.members(), name, BindingsOf(t))
	case KindObject:
		for _, p := range t.Props {
			if p.Name == name {
				return &Symbol{Name: name, Kind: SymProperty, Type: p.Type}
			}
		}
	}
	return nil
}

func (info *Info) memberOf(members []ast.Member, name string, b Bindings) *Symbol {
	for _, m := range members {
		if m.MemberName() != name {
			continue
		}
		switch m := m.(type) {
		case *ast.PropertyDecl:
			return &Symbol{Name: name, Kind: SymProperty, Type: Substitute(info.declTypes[m], b), Decl: m, Const: m.Readonly, Pos: m.Pos}
		case *ast.MethodDecl:
			return &Symbol{Name: name, Kind: SymMethod, Decl: m, Const: true, Pos: m.Pos}
		}
	}
	return nil
}

// IndexSignatureOf returns the index signature of t and its element type.
func (info *Info) IndexSignatureOf(t *Type) (*ast.IndexSignature, *Type) {
	if t == nil {
		return nil, nil
	}
	for _, m := range t.members() {
		if sig, ok := m.(*ast.IndexSignature); ok {
			return sig, Substitute(info.declTypes[sig], BindingsOf(t))
		}
	}
	return nil, nil
}

// IsStringInterface reports whether decl is the ambient String interface
// that supplies the members of the string primitive.
func (info *Info) IsStringInterface(decl *ast.InterfaceDecl) bool {
	return decl != nil && decl == info.stringIface
}

// ---------------------------------------------------------------------------
// Assignability
// ---------------------------------------------------------------------------

// IsAssignable reports whether a value of type src can be stored where dst is
// expected. Classes are nominal; object literal types are structurally
// compatible with interfaces that list the same properties.
func (info *Info) IsAssignable(dst, src *Type) bool {
	if dst == nil || src == nil {
		return true
	}
	if Identical(dst, src) || dst.Kind == KindAny || src.Kind == KindAny {
		return true
	}
	if dst.Kind == KindUnion {
		for _, m := range dst.Members {
			if info.IsAssignable(m, src) {
				return true
			}
		}
		return false
	}
	if src.Kind == KindUnion {
		for _, m := range src.Members {
			if !info.IsAssignable(dst, m) {
				return false
			}
		}
		return true
	}
	if dst.Kind == KindInterface && src.Kind == KindObject {
		want := info.PropertiesOf(dst)
		if len(want) != len(src.Props) {
			return false
		}
		for _, p := range want {
			found := false
			for _, q := range src.Props {
				if q.Name == p.Name && info.IsAssignable(p.Type, q.Type) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Instantiation
// ---------------------------------------------------------------------------

// instantiate returns the interned type for a class or interface applied to
// args.
func (info *Info) instantiate(decl ast.Node, args []*Type) *Type {
	key := typeKeyOf(decl, args)
	if t, ok := info.instances[key]; ok {
		return t
	}
	t := &Type{Args: args}
	switch d := decl.(type) {
	case *ast.ClassDecl:
		t.Kind, t.Name, t.Class = KindClass, d.Name, d
	case *ast.InterfaceDecl:
		t.Kind, t.Name, t.Interface = KindInterface, d.Name, d
	}
	info.instances[key] = t
	return t
}

func typeKeyOf(decl ast.Node, args []*Type) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%p", decl)
	if len(args) > 0 {
		b.WriteString("<")
		for i, a := range args {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(typeKey(a))
		}
		b.WriteString(">")
	}
	return b.String()
}

func typeKey(t *Type) string {
	switch t.Kind {
	case KindClass:
		return typeKeyOf(t.Class, t.Args)
	case KindInterface:
		return typeKeyOf(t.Interface, t.Args)
	case KindTypeParam:
		return fmt.Sprintf("%p", t.Param)
	case KindObject, KindUnion:
		return fmt.Sprintf("%p", t)
	default:
		return t.Name
	}
}
