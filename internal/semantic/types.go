package semantic

import (
	"strings"

	"tsllvm/internal/ast"
)

// ---------------------------------------------------------------------------
// Type system
// ---------------------------------------------------------------------------

// Kind classifies a Type.
type Kind int

const (
	KindVoid Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindAny
	KindClass     // class instance, possibly a generic instantiation
	KindInterface // interface instance, possibly a generic instantiation
	KindObject    // anonymous object literal type
	KindTypeParam // unresolved generic parameter
	KindUnion
)

// Type is a semantic type. Primitive types are singletons; class and
// interface instantiations are interned by the checker so that identical
// instantiations share one *Type.
type Type struct {
	Kind      Kind
	Name      string
	Class     *ast.ClassDecl
	Interface *ast.InterfaceDecl
	Param     *ast.TypeParam
	Args      []*Type     // type arguments of an instantiation
	Props     []*Property // KindObject only, in literal order
	Members   []*Type     // KindUnion only
}

// Built-in type singletons.
var (
	TypeVoid    = &Type{Kind: KindVoid, Name: "void"}
	TypeBoolean = &Type{Kind: KindBoolean, Name: "boolean"}
	TypeNumber  = &Type{Kind: KindNumber, Name: "number"}
	TypeString  = &Type{Kind: KindString, Name: "string"}
	TypeAny     = &Type{Kind: KindAny, Name: "any"}
)

// primitiveTypes maps annotation names to their singletons.
var primitiveTypes = map[string]*Type{
	"void":    TypeVoid,
	"boolean": TypeBoolean,
	"number":  TypeNumber,
	"string":  TypeString,
	"any":     TypeAny,
}

// Property is one stored property of a class, interface or object type.
type Property struct {
	Name     string
	Type     *Type
	Decl     *ast.PropertyDecl // nil for object literal properties
	Readonly bool
}

// Signature is the resolved signature of a callable declaration for a given
// receiver.
type Signature struct {
	Decl     ast.Callable
	Receiver *Type // nil for free functions
	Params   []*Type
	Return   *Type
}

// TypeParams returns the generic parameters declared by the type's class or
// interface.
func (t *Type) TypeParams() []*ast.TypeParam {
	switch {
	case t.Class != nil:
		return t.Class.TypeParams
	case t.Interface != nil:
		return t.Interface.TypeParams
	}
	return nil
}

// Namespace returns the namespace chain enclosing the type's declaration.
func (t *Type) Namespace() []string {
	switch {
	case t.Class != nil:
		return t.Class.Namespace
	case t.Interface != nil:
		return t.Interface.Namespace
	}
	return nil
}

// Ambient reports whether the type is declared without an implementation.
func (t *Type) Ambient() bool {
	switch {
	case t.Class != nil:
		return t.Class.Ambient
	case t.Interface != nil:
		return t.Interface.Ambient
	}
	return false
}

// members returns the class or interface member list.
func (t *Type) members() []ast.Member {
	switch {
	case t.Class != nil:
		return t.Class.Members
	case t.Interface != nil:
		return t.Interface.Members
	}
	return nil
}

// IsObjectLike reports whether values of the type are heap references.
func (t *Type) IsObjectLike() bool {
	return t.Kind == KindClass || t.Kind == KindInterface || t.Kind == KindObject
}

func (t *Type) String() string {
	if t == nil {
		return "<unknown>"
	}
	switch t.Kind {
	case KindClass, KindInterface:
		if len(t.Args) == 0 {
			return t.Name
		}
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.String()
		}
		return t.Name + "<" + strings.Join(args, ", ") + ">"
	case KindObject:
		if len(t.Props) == 0 {
			return "{}"
		}
		props := make([]string, len(t.Props))
		for i, p := range t.Props {
			props[i] = p.Name + ": " + p.Type.String()
		}
		return "{ " + strings.Join(props, "; ") + " }"
	case KindUnion:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = m.String()
		}
		return strings.Join(parts, " | ")
	default:
		return t.Name
	}
}

// ---------------------------------------------------------------------------
// Type relations
// ---------------------------------------------------------------------------

// Identical reports whether a and b denote the same type.
func Identical(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindClass, KindInterface:
		if a.Class != b.Class || a.Interface != b.Interface {
			return false
		}
		return identicalList(a.Args, b.Args)
	case KindTypeParam:
		return a.Param == b.Param
	case KindObject:
		if len(a.Props) != len(b.Props) {
			return false
		}
		for i := range a.Props {
			if a.Props[i].Name != b.Props[i].Name || !Identical(a.Props[i].Type, b.Props[i].Type) {
				return false
			}
		}
		return true
	case KindUnion:
		return identicalList(a.Members, b.Members)
	}
	return false
}

func identicalList(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Identical(a[i], b[i]) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Substitution
// ---------------------------------------------------------------------------

// Bindings maps generic parameters to the types substituted for them.
type Bindings map[*ast.TypeParam]*Type

// BindingsOf returns the parameter bindings of a generic instantiation.
func BindingsOf(t *Type) Bindings {
	if t == nil {
		return nil
	}
	params := t.TypeParams()
	if len(params) == 0 || len(params) != len(t.Args) {
		return nil
	}
	b := make(Bindings, len(params))
	for i, p := range params {
		b[p] = t.Args[i]
	}
	return b
}

// Substitute replaces type parameters in t according to b. Types without
// parameters are returned unchanged.
func Substitute(t *Type, b Bindings) *Type {
	if t == nil || len(b) == 0 {
		return t
	}
	switch t.Kind {
	case KindTypeParam:
		if r, ok := b[t.Param]; ok {
			return r
		}
		return t
	case KindClass, KindInterface:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]*Type, len(t.Args))
		changed := false
		for i, a := range t.Args {
			args[i] = Substitute(a, b)
			changed = changed || args[i] != a
		}
		if !changed {
			return t
		}
		cp := *t
		cp.Args = args
		return &cp
	case KindObject:
		props := make([]*Property, len(t.Props))
		for i, p := range t.Props {
			cp := *p
			cp.Type = Substitute(p.Type, b)
			props[i] = &cp
		}
		return &Type{Kind: KindObject, Props: props}
	case KindUnion:
		members := make([]*Type, len(t.Members))
		for i, m := range t.Members {
			members[i] = Substitute(m, b)
		}
		return &Type{Kind: KindUnion, Members: members}
	}
	return t
}

// HasTypeParams reports whether t still mentions an unresolved parameter.
func HasTypeParams(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindTypeParam:
		return true
	case KindClass, KindInterface:
		for _, a := range t.Args {
			if HasTypeParams(a) {
				return true
			}
		}
	case KindObject:
		for _, p := range t.Props {
			if HasTypeParams(p.Type) {
				return true
			}
		}
	case KindUnion:
		for _, m := range t.Members {
			if HasTypeParams(m) {
				return true
			}
		}
	}
	return false
}
