package codegen

import (
	"errors"
	"testing"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"tsllvm/internal/ast"
	"tsllvm/internal/semantic"
)

// stubOracle answers every question with nothing, so the generator's own
// checks are reached without the type checker rejecting the input first.
type stubOracle struct{}

func (stubOracle) TypeOf(ast.Node) *semantic.Type { return nil }

func (stubOracle) PropertiesOf(*semantic.Type) []*semantic.Property { return nil }

func (stubOracle) SignatureOf(decl ast.Callable, receiver *semantic.Type) *semantic.Signature {
	return &semantic.Signature{Decl: decl, Receiver: receiver}
}

func (stubOracle) SymbolOf(ast.Expr) *semantic.Symbol { return nil }

func (stubOracle) TypeArgumentsOf(*semantic.Type) []*semantic.Type { return nil }

func (stubOracle) CallTypeArguments(*ast.CallExpr) []*semantic.Type { return nil }

func (stubOracle) LookupMember(*semantic.Type, string) *semantic.Symbol { return nil }

func (stubOracle) IndexSignatureOf(*semantic.Type) (*ast.IndexSignature, *semantic.Type) {
	return nil, nil
}

func (stubOracle) IsStringInterface(*ast.InterfaceDecl) bool { return false }

var _ Oracle = stubOracle{}

// newTestGenerator returns a generator whose cursor sits in the entry block
// of an empty void function.
func newTestGenerator(t *testing.T) *generator {
	t.Helper()
	g := newGenerator(stubOracle{}, linuxAMD64Target())
	f, err := g.newFunc("scratch", types.Void)
	if err != nil {
		t.Fatal(err)
	}
	g.fn = newFuncState(f, false)
	g.block = g.fn.entry
	return g
}

func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
	var cgErr *Error
	if !errors.As(err, &cgErr) {
		t.Fatalf("expected *codegen.Error, got %T", err)
	}
}

func TestBinaryOpInvalidOperands(t *testing.T) {
	g := newTestGenerator(t)
	num := constant.NewFloat(types.Double, 1)
	str := g.stringConst("s")
	tests := []struct {
		name string
		op   string
		l, r value.Value
	}{
		{"string plus number", "+", str, num},
		{"number minus boolean", "-", num, constant.True},
		{"string equality", "==", str, str},
		{"boolean arithmetic", "*", constant.True, constant.False},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.binaryOp(tt.op, tt.l, tt.r, ast.Position{})
			expectKind(t, err, ErrInvalidOperandTypes)
		})
	}
}

func TestUnknownIdentifier(t *testing.T) {
	g := newTestGenerator(t)
	_, err := g.rvalue(&ast.Ident{Name: "ghost"})
	expectKind(t, err, ErrUnknownIdentifier)

	_, err = g.rvalue(&ast.ThisExpr{})
	expectKind(t, err, ErrUnknownIdentifier)
}

func TestLayoutOfAnyUnsupported(t *testing.T) {
	g := newTestGenerator(t)
	_, err := g.layoutOf(semantic.TypeAny, ast.Position{})
	expectKind(t, err, ErrUnsupportedType)
}

func TestFieldAccessErrors(t *testing.T) {
	concrete := &TypeRecord{
		Name:       "Point",
		Layout:     Layout{Kind: Concrete, Fields: []types.Type{types.Double}},
		FieldIndex: map[string]int{"x": 0},
	}
	if i, ft, err := concrete.field("x", ast.Position{}); err != nil || i != 0 || !ft.Equal(types.Double) {
		t.Fatalf("field(x) = %d, %v, %v", i, ft, err)
	}
	_, _, err := concrete.field("y", ast.Position{})
	expectKind(t, err, ErrInvalidPropertyAccess)

	opaque := &TypeRecord{Name: "Ext", Layout: Layout{Kind: Opaque}}
	_, _, err = opaque.field("x", ast.Position{})
	expectKind(t, err, ErrInvalidPropertyAccess)
}

func TestConstructOpaqueType(t *testing.T) {
	g := newTestGenerator(t)
	class := &ast.ClassDecl{Name: "Ext", Ambient: true}
	recv := &semantic.Type{Kind: semantic.KindClass, Name: "Ext", Class: class}
	err := g.constructPrologue(NewScope("Ext__constructor"), recv, ast.Position{})
	expectKind(t, err, ErrInvalidPropertyAccess)
}

func TestInterfaceMethodWithoutBody(t *testing.T) {
	g := newTestGenerator(t)
	method := &ast.MethodDecl{Name: "area"}
	iface := &ast.InterfaceDecl{Name: "Shape", Members: []ast.Member{method}}
	recv := &semantic.Type{Kind: semantic.KindInterface, Name: "Shape", Interface: iface}

	_, err := g.emitFunction(method, recv, nil, ast.Position{})
	expectKind(t, err, ErrInvalidCallTarget)
	if hasFunc(g.module, "Shape__area") {
		t.Error("nothing should be declared for a rejected call target")
	}
}

func TestMethodNeedsClassScope(t *testing.T) {
	g := newTestGenerator(t)
	// An uninstantiated generic receiver has no record, so its methods must
	// not be lowered.
	tp := &ast.TypeParam{Name: "T"}
	class := &ast.ClassDecl{Name: "Box", TypeParams: []*ast.TypeParam{tp}}
	recv := &semantic.Type{Kind: semantic.KindClass, Name: "Box", Class: class,
		Args: []*semantic.Type{{Kind: semantic.KindTypeParam, Name: "T", Param: tp}}}

	_, err := g.lexicalChain(&ast.MethodDecl{Name: "get"}, recv, ast.Position{})
	expectKind(t, err, ErrUnsupportedType)
}
