package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"tsllvm/internal/ast"
	"tsllvm/internal/semantic"
)

// operand is a lowered expression: a value, or the address of storage
// holding an elem-typed value.
type operand struct {
	v    value.Value
	elem types.Type
}

func (o operand) addressable() bool { return o.elem != nil }

// rvalue lowers e and loads through storage.
func (g *generator) rvalue(e ast.Expr) (value.Value, error) {
	op, err := g.lower(e)
	if err != nil {
		return nil, err
	}
	if op.addressable() {
		return g.block.NewLoad(op.elem, op.v), nil
	}
	return op.v, nil
}

// rvalueAs lowers e for a slot of type want, copying anonymous object
// literals into the interface layout they are assigned to.
func (g *generator) rvalueAs(e ast.Expr, want *semantic.Type) (value.Value, error) {
	v, err := g.rvalue(e)
	if err != nil {
		return nil, err
	}
	return g.convert(v, g.typeOf(e), want, e.GetPos())
}

func (g *generator) convert(v value.Value, from, to *semantic.Type, pos ast.Position) (value.Value, error) {
	if from == nil || to == nil || from.Kind != semantic.KindObject || to.Kind != semantic.KindInterface {
		return v, nil
	}
	rec, err := g.recordOf(to, pos)
	if err != nil {
		return nil, err
	}
	src, err := g.objectStruct(from, pos)
	if err != nil {
		return nil, err
	}
	dst, err := g.allocate(rec.Struct)
	if err != nil {
		return nil, err
	}
	want := make(map[string]*semantic.Type)
	for _, p := range g.oracle.PropertiesOf(to) {
		want[p.Name] = p.Type
	}
	for i, p := range g.oracle.PropertiesOf(from) {
		idx, ft, err := rec.field(p.Name, pos)
		if err != nil {
			return nil, err
		}
		x := g.block.NewLoad(src.Fields[i], g.fieldPtr(src, v, i))
		cv, err := g.convert(x, p.Type, want[p.Name], pos)
		if err != nil {
			return nil, err
		}
		if !cv.Type().Equal(ft) {
			return nil, errorf(ErrInvalidOperandTypes, pos, "property %q does not fit %s", p.Name, rec.Name)
		}
		g.block.NewStore(cv, g.fieldPtr(rec.Struct, dst, idx))
	}
	return dst, nil
}

// storage lowers an assignment target to its address. Parameters are
// promoted to stack slots on their first write.
func (g *generator) storage(e ast.Expr) (operand, error) {
	if id, ok := ast.Unparen(e).(*ast.Ident); ok {
		b, err := g.symbols.Get(id.Name)
		if err != nil {
			return operand{}, errorf(ErrUnknownIdentifier, id.Pos, "%q", id.Name)
		}
		if b.Kind == BindValue && isParam(b.Value) {
			if b, err = g.promote(id.Name, b.Value); err != nil {
				return operand{}, err
			}
		}
		if b.Kind != BindStorage {
			return operand{}, errorf(ErrUnsupportedSyntax, id.Pos, "%q is not assignable", id.Name)
		}
		return operand{v: b.Value, elem: b.Elem}, nil
	}
	op, err := g.lower(e)
	if err != nil {
		return operand{}, err
	}
	if !op.addressable() {
		return operand{}, errorf(ErrUnsupportedSyntax, e.GetPos(), "expression is not assignable")
	}
	return op, nil
}

// lower dispatches on the expression form.
func (g *generator) lower(e ast.Expr) (operand, error) {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return g.lower(e.X)
	case *ast.NumberLit:
		return operand{v: constant.NewFloat(types.Double, e.Value)}, nil
	case *ast.BoolLit:
		return operand{v: constant.NewBool(e.Value)}, nil
	case *ast.StringLit:
		return operand{v: g.stringConst(e.Value)}, nil
	case *ast.Ident:
		return g.lowerIdent(e)
	case *ast.ThisExpr:
		b, err := g.symbols.Get("this")
		if err != nil {
			return operand{}, errorf(ErrUnknownIdentifier, e.Pos, "this is not available here")
		}
		return bindingOperand(b), nil
	case *ast.ArrayLit:
		return g.value(g.lowerArrayLit(e))
	case *ast.ObjectLit:
		return g.value(g.lowerObjectLit(e))
	case *ast.PropertyAccess:
		return g.lowerProperty(e)
	case *ast.ElementAccess:
		return g.lowerElement(e)
	case *ast.CallExpr:
		return g.value(g.lowerCall(e))
	case *ast.NewExpr:
		return g.value(g.lowerNew(e))
	case *ast.UnaryExpr:
		return g.value(g.lowerUnary(e))
	case *ast.PostfixExpr:
		return g.value(g.lowerIncrement(e.X, e.Op, false))
	case *ast.BinaryExpr:
		return g.value(g.lowerBinary(e))
	case *ast.AssignExpr:
		return g.value(g.lowerAssign(e))
	}
	return operand{}, errorf(ErrUnsupportedSyntax, e.GetPos(), "unsupported expression %T", e)
}

func (g *generator) value(v value.Value, err error) (operand, error) {
	return operand{v: v}, err
}

func bindingOperand(b *Binding) operand {
	if b.Kind == BindStorage {
		return operand{v: b.Value, elem: b.Elem}
	}
	return operand{v: b.Value}
}

func (g *generator) lowerIdent(e *ast.Ident) (operand, error) {
	b, err := g.symbols.Get(e.Name)
	if err != nil {
		return operand{}, errorf(ErrUnknownIdentifier, e.Pos, "%q", e.Name)
	}
	if b.Kind == BindNamespace {
		return operand{}, errorf(ErrUnsupportedSyntax, e.Pos, "%q is not a value", e.Name)
	}
	return bindingOperand(b), nil
}

// stringConst returns the string value of a literal. The bytes live in a
// private constant global shared by equal literals.
func (g *generator) stringConst(s string) constant.Constant {
	if c, ok := g.strings[s]; ok {
		return c
	}
	data := constant.NewCharArrayFromString(s)
	global := g.module.NewGlobalDef(fmt.Sprintf(".str.%d", len(g.strings)), data)
	global.Immutable = true
	global.Linkage = enum.LinkagePrivate
	zero := constant.NewInt(types.I32, 0)
	ptr := constant.NewGetElementPtr(data.Typ, global, zero, zero)
	c := constant.NewStruct(g.stringType, ptr, constant.NewInt(types.I32, int64(len(s))))
	g.strings[s] = c
	return c
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

func (g *generator) lowerArrayLit(e *ast.ArrayLit) (value.Value, error) {
	t := g.typeOf(e)
	if t == nil || t.Class == nil {
		return nil, errorf(ErrUnsupportedType, e.Pos, "array literal has no array type")
	}
	ctorDecl := t.Class.Constructor()
	if ctorDecl == nil {
		return nil, errorf(ErrMissingConstructor, e.Pos, "%s has no constructor", t)
	}
	ctor, err := g.emitFunction(ctorDecl, t, nil, e.Pos)
	if err != nil {
		return nil, err
	}
	arr := g.block.NewCall(ctor)
	if len(e.Elems) == 0 {
		return arr, nil
	}

	push := g.oracle.LookupMember(t, "push")
	if push == nil || push.Callable() == nil {
		return nil, errorf(ErrInvalidCallTarget, e.Pos, "%s has no push method", t)
	}
	pushFn, err := g.emitFunction(push.Callable(), t, nil, e.Pos)
	if err != nil {
		return nil, err
	}
	var elem *semantic.Type
	if args := g.oracle.TypeArgumentsOf(t); len(args) == 1 {
		elem = args[0]
	}
	for _, x := range e.Elems {
		v, err := g.rvalueAs(x, elem)
		if err != nil {
			return nil, err
		}
		g.block.NewCall(pushFn, arr, v)
	}
	return arr, nil
}

func (g *generator) lowerObjectLit(e *ast.ObjectLit) (value.Value, error) {
	t := g.typeOf(e)
	if t == nil {
		return nil, errorf(ErrUnsupportedType, e.Pos, "object literal has no type")
	}
	var (
		st    *types.StructType
		index func(name string) (int, error)
		want  = make(map[string]*semantic.Type)
	)
	for _, p := range g.oracle.PropertiesOf(t) {
		want[p.Name] = p.Type
	}
	switch t.Kind {
	case semantic.KindObject:
		s, err := g.objectStruct(t, e.Pos)
		if err != nil {
			return nil, err
		}
		st = s
		index = func(name string) (int, error) {
			for i, p := range t.Props {
				if p.Name == name {
					return i, nil
				}
			}
			return 0, errorf(ErrInvalidPropertyAccess, e.Pos, "object has no property %q", name)
		}
	case semantic.KindInterface, semantic.KindClass:
		rec, err := g.recordOf(t, e.Pos)
		if err != nil {
			return nil, err
		}
		st = rec.Struct
		index = func(name string) (int, error) {
			i, _, err := rec.field(name, e.Pos)
			return i, err
		}
	default:
		return nil, errorf(ErrUnsupportedType, e.Pos, "object literal of type %s", t)
	}

	ptr, err := g.allocate(st)
	if err != nil {
		return nil, err
	}
	for _, p := range e.Props {
		idx, err := index(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := g.rvalueAs(p.Value, want[p.Key])
		if err != nil {
			return nil, err
		}
		g.block.NewStore(v, g.fieldPtr(st, ptr, idx))
	}
	return ptr, nil
}

// ---------------------------------------------------------------------------
// Member access
// ---------------------------------------------------------------------------

// namespacePath returns the dotted path of an expression naming a
// namespace.
func (g *generator) namespacePath(e ast.Expr) ([]string, bool) {
	sym := g.oracle.SymbolOf(e)
	if sym == nil || sym.Kind != semantic.SymNamespace {
		return nil, false
	}
	switch e := ast.Unparen(e).(type) {
	case *ast.Ident:
		return []string{e.Name}, true
	case *ast.PropertyAccess:
		outer, ok := g.namespacePath(e.X)
		if !ok {
			return nil, false
		}
		return append(outer, e.Name), true
	}
	return nil, false
}

func (g *generator) lowerProperty(e *ast.PropertyAccess) (operand, error) {
	if path, ok := g.namespacePath(e.X); ok {
		b, err := g.symbols.Get(append(path, e.Name)...)
		if err != nil {
			return operand{}, errorf(ErrUnknownIdentifier, e.Pos, "%q", e.Name)
		}
		return bindingOperand(b), nil
	}

	base := g.typeOf(e.X)
	if base == nil {
		return operand{}, errorf(ErrInvalidPropertyAccess, e.Pos, "property %q of an untyped value", e.Name)
	}
	switch base.Kind {
	case semantic.KindString:
		if e.Name != "length" {
			return operand{}, errorf(ErrInvalidPropertyAccess, e.Pos, "string has no property %q", e.Name)
		}
		s, err := g.rvalue(e.X)
		if err != nil {
			return operand{}, err
		}
		n := g.block.NewExtractValue(s, 1)
		return operand{v: g.block.NewUIToFP(n, types.Double)}, nil

	case semantic.KindClass, semantic.KindInterface:
		rec, err := g.recordOf(base, e.Pos)
		if err != nil {
			return operand{}, err
		}
		this, err := g.rvalue(e.X)
		if err != nil {
			return operand{}, err
		}
		if rec.Layout.Kind == Opaque {
			return g.accessor(rec, base, this, e)
		}
		idx, ft, err := rec.field(e.Name, e.Pos)
		if err != nil {
			return operand{}, err
		}
		return operand{v: g.fieldPtr(rec.Struct, this, idx), elem: ft}, nil

	case semantic.KindObject:
		st, err := g.objectStruct(base, e.Pos)
		if err != nil {
			return operand{}, err
		}
		this, err := g.rvalue(e.X)
		if err != nil {
			return operand{}, err
		}
		for i, p := range g.oracle.PropertiesOf(base) {
			if p.Name == e.Name {
				return operand{v: g.fieldPtr(st, this, i), elem: st.Fields[i]}, nil
			}
		}
	}
	return operand{}, errorf(ErrInvalidPropertyAccess, e.Pos, "type %s has no property %q", base, e.Name)
}

// accessor reads a property of a runtime-implemented type through its
// accessor function, e.g. Array__number__length.
func (g *generator) accessor(rec *TypeRecord, base *semantic.Type, this value.Value, e *ast.PropertyAccess) (operand, error) {
	sym := g.oracle.LookupMember(base, e.Name)
	if sym == nil {
		return operand{}, errorf(ErrInvalidPropertyAccess, e.Pos, "type %s has no property %q", rec.Name, e.Name)
	}
	pd, ok := sym.Decl.(*ast.PropertyDecl)
	if !ok {
		return operand{}, errorf(ErrInvalidPropertyAccess, e.Pos, "%s.%s is not a property", rec.Name, e.Name)
	}
	f, err := g.emitFunction(pd, base, nil, e.Pos)
	if err != nil {
		return operand{}, err
	}
	return operand{v: g.block.NewCall(f, this)}, nil
}

func (g *generator) lowerElement(e *ast.ElementAccess) (operand, error) {
	base := g.typeOf(e.X)
	sig, _ := g.oracle.IndexSignatureOf(base)
	if sig == nil {
		return operand{}, errorf(ErrInvalidPropertyAccess, e.Pos, "type %s has no index signature", base)
	}
	f, err := g.emitFunction(sig, base, nil, e.Pos)
	if err != nil {
		return operand{}, err
	}
	this, err := g.rvalue(e.X)
	if err != nil {
		return operand{}, err
	}
	idx, err := g.rvalue(e.Index)
	if err != nil {
		return operand{}, err
	}
	elem, err := g.layoutOf(g.typeOf(e), e.Pos)
	if err != nil {
		return operand{}, err
	}
	return operand{v: g.block.NewCall(f, this, idx), elem: elem}, nil
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (g *generator) lowerCall(call *ast.CallExpr) (value.Value, error) {
	callee := ast.Unparen(call.Callee)
	sym := g.oracle.SymbolOf(callee)
	if sym == nil || (sym.Kind != semantic.SymFunc && sym.Kind != semantic.SymMethod) {
		return nil, errorf(ErrInvalidCallTarget, call.Pos, "expression is not callable")
	}
	decl := sym.Callable()
	if decl == nil {
		return nil, errorf(ErrInvalidCallTarget, call.Pos, "%q has no declaration", sym.Name)
	}

	var (
		receiver *semantic.Type
		args     []value.Value
	)
	if sym.Kind == semantic.SymMethod {
		pa, ok := callee.(*ast.PropertyAccess)
		if !ok {
			return nil, errorf(ErrInvalidCallTarget, call.Pos, "method %q called without a receiver", sym.Name)
		}
		receiver = g.typeOf(pa.X)
		this, err := g.rvalue(pa.X)
		if err != nil {
			return nil, err
		}
		args = append(args, this)
	}

	var typeArgs []*semantic.Type
	for _, t := range g.oracle.CallTypeArguments(call) {
		typeArgs = append(typeArgs, semantic.Substitute(t, g.bindings))
	}
	f, err := g.emitFunction(decl, receiver, typeArgs, call.Pos)
	if err != nil {
		return nil, err
	}

	sig := g.oracle.SignatureOf(decl, receiver)
	tb := semantic.Bindings{}
	for i, tp := range callableTypeParams(decl) {
		if i < len(typeArgs) {
			tb[tp] = typeArgs[i]
		}
	}
	for i, arg := range call.Args {
		var want *semantic.Type
		if i < len(sig.Params) {
			want = semantic.Substitute(sig.Params[i], tb)
		}
		v, err := g.rvalueAs(arg, want)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return g.block.NewCall(f, args...), nil
}

func (g *generator) lowerNew(n *ast.NewExpr) (value.Value, error) {
	t := g.typeOf(n)
	if t == nil || t.Class == nil {
		return nil, errorf(ErrInvalidCallTarget, n.Pos, "new needs a class")
	}
	ctorDecl := t.Class.Constructor()
	if ctorDecl == nil {
		return nil, errorf(ErrMissingConstructor, n.Pos, "class %s has no constructor", t)
	}
	f, err := g.emitFunction(ctorDecl, t, nil, n.Pos)
	if err != nil {
		return nil, err
	}
	sig := g.oracle.SignatureOf(ctorDecl, t)
	args := make([]value.Value, 0, len(n.Args))
	for i, arg := range n.Args {
		var want *semantic.Type
		if i < len(sig.Params) {
			want = sig.Params[i]
		}
		v, err := g.rvalueAs(arg, want)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return g.block.NewCall(f, args...), nil
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func isDouble(v value.Value) bool { return v.Type().Equal(types.Double) }
func isBool(v value.Value) bool   { return v.Type().Equal(types.I1) }

func (g *generator) isString(v value.Value) bool { return v.Type().Equal(g.stringType) }

func isPointer(v value.Value) bool {
	_, ok := v.Type().(*types.PointerType)
	return ok
}

// condition lowers e to an i1. Numbers are true when non-zero.
func (g *generator) condition(e ast.Expr) (value.Value, error) {
	v, err := g.rvalue(e)
	if err != nil {
		return nil, err
	}
	return g.truthy(v, e.GetPos())
}

func (g *generator) truthy(v value.Value, pos ast.Position) (value.Value, error) {
	switch {
	case isBool(v):
		return v, nil
	case isDouble(v):
		return g.block.NewFCmp(enum.FPredONE, v, constant.NewFloat(types.Double, 0)), nil
	}
	return nil, errorf(ErrInvalidOperandTypes, pos, "%s cannot be used as a condition", v.Type())
}

func (g *generator) lowerUnary(e *ast.UnaryExpr) (value.Value, error) {
	switch e.Op {
	case "++", "--":
		return g.lowerIncrement(e.X, e.Op, true)
	}
	x, err := g.rvalue(e.X)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "!":
		c, err := g.truthy(x, e.Pos)
		if err != nil {
			return nil, err
		}
		return g.block.NewXor(c, constant.True), nil
	case "-":
		if isDouble(x) {
			return g.block.NewFNeg(x), nil
		}
	case "+":
		if isDouble(x) {
			return x, nil
		}
	case "~":
		if isDouble(x) {
			i := g.block.NewFPToSI(x, types.I32)
			return g.block.NewSIToFP(g.block.NewXor(i, constant.NewInt(types.I32, -1)), types.Double), nil
		}
	}
	return nil, errorf(ErrInvalidOperandTypes, e.Pos, "operator %s on %s", e.Op, x.Type())
}

// lowerIncrement lowers ++x, --x, x++ and x--. Prefix forms yield the new
// value, postfix forms the old one.
func (g *generator) lowerIncrement(x ast.Expr, op string, prefix bool) (value.Value, error) {
	dst, err := g.storage(x)
	if err != nil {
		return nil, err
	}
	if !dst.elem.Equal(types.Double) {
		return nil, errorf(ErrInvalidOperandTypes, x.GetPos(), "operator %s on %s", op, dst.elem)
	}
	old := g.block.NewLoad(dst.elem, dst.v)
	one := constant.NewFloat(types.Double, 1)
	var next value.Value
	if op == "++" {
		next = g.block.NewFAdd(old, one)
	} else {
		next = g.block.NewFSub(old, one)
	}
	g.block.NewStore(next, dst.v)
	if prefix {
		return next, nil
	}
	return old, nil
}

func (g *generator) lowerBinary(e *ast.BinaryExpr) (value.Value, error) {
	if e.Op == "&&" || e.Op == "||" {
		return g.lowerLogical(e)
	}
	l, err := g.rvalue(e.Left)
	if err != nil {
		return nil, err
	}
	r, err := g.rvalue(e.Right)
	if err != nil {
		return nil, err
	}
	return g.binaryOp(e.Op, l, r, e.Pos)
}

// lowerLogical short-circuits && and || through a phi in the join block.
func (g *generator) lowerLogical(e *ast.BinaryExpr) (value.Value, error) {
	l, err := g.condition(e.Left)
	if err != nil {
		return nil, err
	}
	prefix := "and"
	if e.Op == "||" {
		prefix = "or"
	}
	from := g.block
	rhs := g.newBlock(prefix + ".rhs")
	end := g.newBlock(prefix + ".end")
	if e.Op == "&&" {
		from.NewCondBr(l, rhs, end)
	} else {
		from.NewCondBr(l, end, rhs)
	}

	g.block = rhs
	r, err := g.condition(e.Right)
	if err != nil {
		return nil, err
	}
	rhsEnd := g.block
	rhsEnd.NewBr(end)

	g.block = end
	short := constant.NewBool(e.Op == "||")
	return end.NewPhi(ir.NewIncoming(short, from), ir.NewIncoming(r, rhsEnd)), nil
}

var fcmpPreds = map[string]enum.FPred{
	"<":   enum.FPredOLT,
	"<=":  enum.FPredOLE,
	">":   enum.FPredOGT,
	">=":  enum.FPredOGE,
	"==":  enum.FPredOEQ,
	"===": enum.FPredOEQ,
	"!=":  enum.FPredUNE,
	"!==": enum.FPredUNE,
}

func equality(op string) (enum.IPred, bool) {
	switch op {
	case "==", "===":
		return enum.IPredEQ, true
	case "!=", "!==":
		return enum.IPredNE, true
	}
	return 0, false
}

// binaryOp combines two lowered operands. It serves binary expressions and
// compound assignments alike.
func (g *generator) binaryOp(op string, l, r value.Value, pos ast.Position) (value.Value, error) {
	switch {
	case isDouble(l) && isDouble(r):
		switch op {
		case "+":
			return g.block.NewFAdd(l, r), nil
		case "-":
			return g.block.NewFSub(l, r), nil
		case "*":
			return g.block.NewFMul(l, r), nil
		case "/":
			return g.block.NewFDiv(l, r), nil
		case "%":
			return g.block.NewFRem(l, r), nil
		case "&", "|", "^", "<<", ">>", ">>>":
			return g.bitwise(op, l, r), nil
		}
		if pred, ok := fcmpPreds[op]; ok {
			return g.block.NewFCmp(pred, l, r), nil
		}

	case g.isString(l) && g.isString(r):
		if op == "+" {
			return g.concat(l, r)
		}

	case isBool(l) && isBool(r), isPointer(l) && l.Type().Equal(r.Type()):
		if pred, ok := equality(op); ok {
			return g.block.NewICmp(pred, l, r), nil
		}
	}
	return nil, errorf(ErrInvalidOperandTypes, pos, "operator %s on %s and %s", op, l.Type(), r.Type())
}

// bitwise converts both operands to i32, applies op and converts back.
// Shift counts are taken modulo 32.
func (g *generator) bitwise(op string, l, r value.Value) value.Value {
	a := g.block.NewFPToSI(l, types.I32)
	b := g.block.NewFPToSI(r, types.I32)
	var x value.Value
	switch op {
	case "&":
		x = g.block.NewAnd(a, b)
	case "|":
		x = g.block.NewOr(a, b)
	case "^":
		x = g.block.NewXor(a, b)
	case "<<":
		x = g.block.NewShl(a, g.shiftCount(b))
	case ">>":
		x = g.block.NewAShr(a, g.shiftCount(b))
	case ">>>":
		return g.block.NewUIToFP(g.block.NewLShr(a, g.shiftCount(b)), types.Double)
	}
	return g.block.NewSIToFP(x, types.Double)
}

func (g *generator) shiftCount(n value.Value) value.Value {
	return g.block.NewAnd(n, constant.NewInt(types.I32, 31))
}

func (g *generator) lowerAssign(e *ast.AssignExpr) (value.Value, error) {
	dst, err := g.storage(e.Target)
	if err != nil {
		return nil, err
	}
	if e.Op == "=" {
		v, err := g.rvalueAs(e.Value, g.typeOf(e.Target))
		if err != nil {
			return nil, err
		}
		g.block.NewStore(v, dst.v)
		return v, nil
	}
	cur := g.block.NewLoad(dst.elem, dst.v)
	r, err := g.rvalue(e.Value)
	if err != nil {
		return nil, err
	}
	v, err := g.binaryOp(e.BinaryOp(), cur, r, e.Pos)
	if err != nil {
		return nil, err
	}
	g.block.NewStore(v, dst.v)
	return v, nil
}
