package codegen

import (
	"github.com/llir/llvm/ir/types"

	"tsllvm/internal/ast"
	"tsllvm/internal/semantic"
)

// ---------------------------------------------------------------------------
// Layout: the memory representation of a class or interface instantiation
// ---------------------------------------------------------------------------

// LayoutKind tags a Layout.
type LayoutKind int

const (
	// Concrete layouts list their fields in stored-property order.
	Concrete LayoutKind = iota
	// Opaque layouts belong to ambient types implemented by the runtime;
	// they have no visible fields.
	Opaque
)

func (k LayoutKind) String() string {
	if k == Opaque {
		return "opaque"
	}
	return "concrete"
}

// Layout is Concrete(fields) or Opaque.
type Layout struct {
	Kind   LayoutKind
	Fields []types.Type
}

// TypeRecord describes one instantiated class or interface type.
type TypeRecord struct {
	Name       string // mangled type name
	Decl       ast.Node
	Type       *semantic.Type
	Struct     *types.StructType
	Layout     Layout
	FieldIndex map[string]int
	Scope      *Scope
}

// Ptr returns the pointer type instances of the record are passed around as.
func (r *TypeRecord) Ptr() *types.PointerType {
	return types.NewPointer(r.Struct)
}

// field returns the index and type of a stored property.
func (r *TypeRecord) field(name string, pos ast.Position) (int, types.Type, error) {
	if r.Layout.Kind == Opaque {
		return 0, nil, errorf(ErrInvalidPropertyAccess, pos, "type %s is opaque and has no field %q", r.Name, name)
	}
	i, ok := r.FieldIndex[name]
	if !ok {
		return 0, nil, errorf(ErrInvalidPropertyAccess, pos, "type %s has no field %q", r.Name, name)
	}
	return i, r.Layout.Fields[i], nil
}

// ---------------------------------------------------------------------------
// Type-layout resolution
// ---------------------------------------------------------------------------

// layoutOf maps a semantic type to the LLVM type its values are held in.
func (g *generator) layoutOf(t *semantic.Type, pos ast.Position) (types.Type, error) {
	if t == nil {
		return nil, errorf(ErrUnsupportedType, pos, "unresolved type")
	}
	switch t.Kind {
	case semantic.KindVoid:
		return types.Void, nil
	case semantic.KindBoolean:
		return types.I1, nil
	case semantic.KindNumber:
		return types.Double, nil
	case semantic.KindString:
		return g.stringType, nil
	case semantic.KindClass, semantic.KindInterface:
		if t.Interface != nil && g.oracle.IsStringInterface(t.Interface) {
			return g.stringType, nil
		}
		rec, err := g.recordOf(t, pos)
		if err != nil {
			return nil, err
		}
		return rec.Ptr(), nil
	case semantic.KindObject:
		st, err := g.objectStruct(t, pos)
		if err != nil {
			return nil, err
		}
		return types.NewPointer(st), nil
	}
	return nil, errorf(ErrUnsupportedType, pos, "type %s has no memory layout", t)
}

// objectStruct returns the literal struct of an anonymous object type.
func (g *generator) objectStruct(t *semantic.Type, pos ast.Position) (*types.StructType, error) {
	props := g.oracle.PropertiesOf(t)
	fields := make([]types.Type, len(props))
	for i, p := range props {
		ft, err := g.layoutOf(p.Type, pos)
		if err != nil {
			return nil, err
		}
		fields[i] = ft
	}
	return types.NewStruct(fields...), nil
}

// checkGeneric rejects the generic forms the generator does not
// monomorphize: several type parameters or constrained ones.
func checkGeneric(params []*ast.TypeParam, what string, pos ast.Position) error {
	if len(params) > 1 {
		return errorf(ErrUnsupportedType, pos, "%s has %d type parameters; only one is supported", what, len(params))
	}
	for _, tp := range params {
		if tp.Constraint != nil {
			return errorf(ErrUnsupportedType, pos, "type parameter %s of %s is constrained", tp.Name, what)
		}
	}
	return nil
}

// recordOf returns the record of a class or interface instantiation,
// creating its named struct on first use. The struct is registered before
// its fields are resolved so self-referencing types terminate.
func (g *generator) recordOf(t *semantic.Type, pos ast.Position) (*TypeRecord, error) {
	if semantic.HasTypeParams(t) {
		return nil, errorf(ErrUnsupportedType, pos, "type %s is not fully instantiated", t)
	}
	if err := checkGeneric(t.TypeParams(), t.Name, pos); err != nil {
		return nil, err
	}
	name, err := mangleType(g.oracle, t)
	if err != nil {
		return nil, err
	}
	if rec, ok := g.records[name]; ok {
		return rec, nil
	}

	rec := &TypeRecord{
		Name:       name,
		Type:       t,
		FieldIndex: make(map[string]int),
		Scope:      NewScope(name),
	}
	if t.Class != nil {
		rec.Decl = t.Class
	} else {
		rec.Decl = t.Interface
	}
	rec.Scope.Record = rec

	if t.Ambient() {
		rec.Struct = &types.StructType{Opaque: true}
		rec.Layout = Layout{Kind: Opaque}
	} else {
		rec.Struct = &types.StructType{}
		rec.Layout = Layout{Kind: Concrete}
	}
	g.module.NewTypeDef(name, rec.Struct)
	g.records[name] = rec

	enclosing, err := g.namespaceScope(t.Namespace())
	if err != nil {
		return nil, err
	}
	if err := enclosing.Set(name, namespaceBinding(rec.Scope)); err != nil {
		return nil, errorf(ErrDuplicateDefinition, pos, "type %s is defined twice", name)
	}

	if rec.Layout.Kind == Opaque {
		return rec, nil
	}
	for i, p := range g.oracle.PropertiesOf(t) {
		ft, err := g.layoutOf(p.Type, pos)
		if err != nil {
			return nil, err
		}
		rec.Layout.Fields = append(rec.Layout.Fields, ft)
		rec.FieldIndex[p.Name] = i
	}
	rec.Struct.Fields = rec.Layout.Fields
	return rec, nil
}

// ---------------------------------------------------------------------------
// Sizes
// ---------------------------------------------------------------------------

// sizeOf returns the allocation size of t in bytes under the target's data
// layout: natural alignment, struct size rounded up to its alignment.
func (g *generator) sizeOf(t types.Type) int64 {
	switch t := t.(type) {
	case *types.IntType:
		return int64((t.BitSize + 7) / 8)
	case *types.FloatType:
		return 8
	case *types.PointerType:
		return int64(g.target.PtrSize)
	case *types.ArrayType:
		return int64(t.Len) * g.sizeOf(t.ElemType)
	case *types.StructType:
		var size int64
		for _, f := range t.Fields {
			size = alignTo(size, g.alignOf(f))
			size += g.sizeOf(f)
		}
		return alignTo(size, g.alignOf(t))
	}
	return 0
}

func (g *generator) alignOf(t types.Type) int64 {
	switch t := t.(type) {
	case *types.IntType:
		return g.sizeOf(t)
	case *types.FloatType:
		return int64(g.target.DoubleAlign)
	case *types.PointerType:
		return int64(g.target.PtrSize)
	case *types.ArrayType:
		return g.alignOf(t.ElemType)
	case *types.StructType:
		align := int64(1)
		for _, f := range t.Fields {
			if a := g.alignOf(f); a > align {
				align = a
			}
		}
		return align
	}
	return 1
}

func alignTo(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
