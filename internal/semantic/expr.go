package semantic

import (
	"tsllvm/internal/ast"
)

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// checkExpr computes and records the type of e. expected is the contextual
// type, used to type empty array literals, object literals and generic
// instantiations; it may be nil.
func (a *Analyzer) checkExpr(e ast.Expr, expected *Type) *Type {
	t := a.exprType(e, expected)
	if t != nil {
		a.info.Types[e] = t
	}
	return t
}

func (a *Analyzer) exprType(e ast.Expr, expected *Type) *Type {
	switch e := e.(type) {
	case *ast.NumberLit:
		return TypeNumber
	case *ast.StringLit:
		return TypeString
	case *ast.BoolLit:
		return TypeBoolean
	case *ast.Ident:
		return a.checkIdent(e)
	case *ast.ThisExpr:
		if a.fn == nil || a.fn.this == nil {
			a.error(e.Pos, "'this' can only be used inside a class body")
			return nil
		}
		return a.fn.this
	case *ast.ParenExpr:
		return a.checkExpr(e.X, expected)
	case *ast.ArrayLit:
		return a.checkArrayLit(e, expected)
	case *ast.ObjectLit:
		return a.checkObjectLit(e, expected)
	case *ast.PropertyAccess:
		return a.checkPropertyAccess(e)
	case *ast.ElementAccess:
		return a.checkElementAccess(e)
	case *ast.CallExpr:
		return a.checkCall(e, false)
	case *ast.NewExpr:
		return a.checkNew(e, expected)
	case *ast.UnaryExpr:
		return a.checkUnary(e)
	case *ast.PostfixExpr:
		a.expectNumber(a.checkAssignTarget(e.X), e.X.GetPos(), e.Op)
		return TypeNumber
	case *ast.BinaryExpr:
		left := a.checkExpr(e.Left, nil)
		right := a.checkExpr(e.Right, nil)
		return a.binaryResult(e.Op, left, right, e.Pos)
	case *ast.AssignExpr:
		return a.checkAssign(e)
	}
	a.error(e.GetPos(), "unsupported expression")
	return nil
}

func (a *Analyzer) checkIdent(e *ast.Ident) *Type {
	sym := a.scope.lookup(e.Name)
	if sym == nil {
		if e.Name == "undefined" || e.Name == "null" {
			a.errorf(e.Pos, "%s is not supported", e.Name)
		} else {
			a.errorf(e.Pos, "unknown identifier %q", e.Name)
		}
		return nil
	}
	a.info.Symbols[e] = sym
	switch sym.Kind {
	case SymVar, SymParam:
		return sym.Type
	case SymFunc:
		a.errorf(e.Pos, "function %q cannot be used as a value", e.Name)
	default:
		a.errorf(e.Pos, "%s %q cannot be used as a value", sym.Kind, e.Name)
	}
	return nil
}

func (a *Analyzer) checkArrayLit(e *ast.ArrayLit, expected *Type) *Type {
	if a.arrayClass == nil {
		a.error(e.Pos, "array literals need the ambient library")
		return nil
	}
	var elem *Type
	if expected != nil && expected.Class == a.arrayClass && len(expected.Args) == 1 {
		elem = expected.Args[0]
	}
	for i, x := range e.Elems {
		t := a.checkExpr(x, elem)
		switch {
		case t == nil:
		case i == 0 && elem == nil:
			elem = t
		default:
			a.checkAssignable(elem, t, x.GetPos())
		}
	}
	if elem == nil {
		if len(e.Elems) == 0 {
			a.error(e.Pos, "cannot infer the element type of an empty array literal; add a type annotation")
		}
		return nil
	}
	if elem == TypeVoid {
		a.error(e.Pos, "array elements cannot have type void")
		return nil
	}
	return a.info.instantiate(a.arrayClass, []*Type{elem})
}

func (a *Analyzer) checkObjectLit(e *ast.ObjectLit, expected *Type) *Type {
	var want []*Property
	if expected != nil && expected.Kind == KindInterface {
		want = a.info.PropertiesOf(expected)
	}
	obj := &Type{Kind: KindObject}
	seen := make(map[string]bool)
	for _, p := range e.Props {
		if seen[p.Key] {
			a.errorf(p.Pos, "duplicate property %q in object literal", p.Key)
			continue
		}
		seen[p.Key] = true

		var ctx *Type
		for _, w := range want {
			if w.Name == p.Key {
				ctx = w.Type
			}
		}
		t := a.checkExpr(p.Value, ctx)
		if t == TypeVoid {
			a.errorf(p.Pos, "property %q cannot have type void", p.Key)
		}
		obj.Props = append(obj.Props, &Property{Name: p.Key, Type: t})
	}
	if expected != nil && expected.Kind == KindInterface && a.info.IsAssignable(expected, obj) {
		return expected
	}
	return obj
}

// ---------------------------------------------------------------------------
// Member access
// ---------------------------------------------------------------------------

// namespaceOf resolves e to a namespace symbol, or returns nil when e does
// not name a namespace.
func (a *Analyzer) namespaceOf(e ast.Expr) *Symbol {
	switch e := ast.Unparen(e).(type) {
	case *ast.Ident:
		sym := a.scope.lookup(e.Name)
		if sym != nil && sym.Kind == SymNamespace {
			a.info.Symbols[e] = sym
			return sym
		}
	case *ast.PropertyAccess:
		outer := a.namespaceOf(e.X)
		if outer == nil {
			return nil
		}
		sym := outer.Members.lookupLocal(e.Name)
		if sym != nil && sym.Kind == SymNamespace {
			a.checkExported(outer, sym, e.Pos)
			a.info.Symbols[e] = sym
			return sym
		}
	}
	return nil
}

// namespaceMember resolves ns.name, reporting unknown and unexported members.
func (a *Analyzer) namespaceMember(ns *Symbol, e *ast.PropertyAccess) *Symbol {
	sym := ns.Members.lookupLocal(e.Name)
	if sym == nil {
		a.errorf(e.Pos, "namespace %q has no member %q", ns.Name, e.Name)
		return nil
	}
	a.checkExported(ns, sym, e.Pos)
	a.info.Symbols[e] = sym
	return sym
}

func (a *Analyzer) checkExported(ns, sym *Symbol, pos ast.Position) {
	if sym.Exported || a.within(ns.Members) {
		return
	}
	if decl := ns.Namespace(); decl != nil && decl.Ambient {
		return
	}
	a.errorf(pos, "%q is not exported from namespace %q", sym.Name, ns.Name)
}

// within reports whether the current scope is s or nested inside it.
func (a *Analyzer) within(s *Scope) bool {
	for sc := a.scope; sc != nil; sc = sc.parent {
		if sc == s {
			return true
		}
	}
	return false
}

func (a *Analyzer) checkPropertyAccess(e *ast.PropertyAccess) *Type {
	if ns := a.namespaceOf(e.X); ns != nil {
		sym := a.namespaceMember(ns, e)
		if sym == nil {
			return nil
		}
		if sym.Kind == SymVar {
			return sym.Type
		}
		a.errorf(e.Pos, "%s %q cannot be used as a value", sym.Kind, e.Name)
		return nil
	}

	base := a.checkExpr(e.X, nil)
	if base == nil {
		return nil
	}
	member := a.info.LookupMember(base, e.Name)
	if member == nil {
		a.errorf(e.Pos, "property %q does not exist on type %s", e.Name, base)
		return nil
	}
	a.info.Symbols[e] = member
	if member.Kind == SymMethod {
		a.errorf(e.Pos, "method %q cannot be used as a value", e.Name)
		return nil
	}
	return member.Type
}

func (a *Analyzer) checkElementAccess(e *ast.ElementAccess) *Type {
	base := a.checkExpr(e.X, nil)
	index := a.checkExpr(e.Index, TypeNumber)
	a.expectNumber(index, e.Index.GetPos(), "[]")
	if base == nil {
		return nil
	}
	sig, elem := a.info.IndexSignatureOf(base)
	if sig == nil {
		a.errorf(e.Pos, "type %s has no index signature", base)
		return nil
	}
	a.info.Symbols[e] = &Symbol{Name: "subscript", Kind: SymIndex, Type: elem, Decl: sig, Const: sig.Readonly, Pos: sig.Pos}
	return elem
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// callTarget is the declaration a call expression invokes.
type callTarget struct {
	sym      *Symbol
	decl     ast.Callable
	receiver *Type // nil for free functions
}

func (a *Analyzer) resolveCallee(callee ast.Expr) *callTarget {
	switch c := ast.Unparen(callee).(type) {
	case *ast.Ident:
		sym := a.scope.lookup(c.Name)
		if sym == nil {
			a.errorf(c.Pos, "unknown identifier %q", c.Name)
			return nil
		}
		a.info.Symbols[c] = sym
		if sym.Kind != SymFunc {
			a.errorf(c.Pos, "%s %q is not callable", sym.Kind, c.Name)
			return nil
		}
		return &callTarget{sym: sym, decl: sym.Callable()}

	case *ast.PropertyAccess:
		if ns := a.namespaceOf(c.X); ns != nil {
			sym := a.namespaceMember(ns, c)
			if sym == nil {
				return nil
			}
			if sym.Kind != SymFunc {
				a.errorf(c.Pos, "%s %q is not callable", sym.Kind, c.Name)
				return nil
			}
			return &callTarget{sym: sym, decl: sym.Callable()}
		}
		base := a.checkExpr(c.X, nil)
		if base == nil {
			return nil
		}
		member := a.info.LookupMember(base, c.Name)
		if member == nil {
			a.errorf(c.Pos, "property %q does not exist on type %s", c.Name, base)
			return nil
		}
		a.info.Symbols[c] = member
		if member.Kind != SymMethod {
			a.errorf(c.Pos, "property %q is not callable", c.Name)
			return nil
		}
		return &callTarget{sym: member, decl: member.Callable(), receiver: base}
	}

	a.checkExpr(callee, nil)
	a.error(callee.GetPos(), "expression is not callable")
	return nil
}

func typeParamsOf(decl ast.Callable) []*ast.TypeParam {
	switch d := decl.(type) {
	case *ast.FunctionDecl:
		return d.TypeParams
	case *ast.MethodDecl:
		return d.TypeParams
	}
	return nil
}

func (a *Analyzer) checkCall(call *ast.CallExpr, discard bool) *Type {
	target := a.resolveCallee(call.Callee)
	if target == nil {
		for _, arg := range call.Args {
			a.checkExpr(arg, nil)
		}
		return nil
	}
	sig := a.info.SignatureOf(target.decl, target.receiver)
	if len(call.Args) != len(sig.Params) {
		a.errorf(call.Pos, "%q expects %d argument(s), got %d", target.sym.Name, len(sig.Params), len(call.Args))
	}

	tparams := typeParamsOf(target.decl)
	var b Bindings
	if len(tparams) > 0 {
		b = make(Bindings, len(tparams))
		if len(call.TypeArgs) > 0 && len(call.TypeArgs) != len(tparams) {
			a.errorf(call.Pos, "%q expects %d type argument(s), got %d", target.sym.Name, len(tparams), len(call.TypeArgs))
		}
		for i, te := range call.TypeArgs {
			if i < len(tparams) {
				if t := a.resolveType(te); t != nil {
					b[tparams[i]] = t
				}
			}
		}
	} else if len(call.TypeArgs) > 0 {
		a.errorf(call.Pos, "%q is not generic", target.sym.Name)
	}

	args := a.checkArgs(call.Args, sig.Params, b)
	for _, tp := range tparams {
		if b[tp] == nil {
			a.errorf(call.Pos, "cannot infer type argument %s of %q", tp.Name, target.sym.Name)
			return nil
		}
		a.info.callArgs[call] = append(a.info.callArgs[call], b[tp])
	}
	for i, t := range args {
		if i < len(sig.Params) {
			a.checkAssignable(Substitute(sig.Params[i], b), t, call.Args[i].GetPos())
		}
	}

	ret := Substitute(sig.Return, b)
	if ret == TypeVoid && !discard {
		a.errorf(call.Pos, "%q returns void and cannot be used as a value", target.sym.Name)
	}
	if discard && ret != nil {
		a.info.Types[call] = ret
	}
	return ret
}

// checkArgs types each argument against its parameter, inferring generic
// bindings into b as it goes.
func (a *Analyzer) checkArgs(args []ast.Expr, params []*Type, b Bindings) []*Type {
	types := make([]*Type, len(args))
	for i, arg := range args {
		var want *Type
		if i < len(params) {
			want = params[i]
		}
		ctx := Substitute(want, b)
		if HasTypeParams(ctx) && b != nil {
			ctx = nil
		}
		types[i] = a.checkExpr(arg, ctx)
		if b != nil {
			unify(want, types[i], b)
		}
	}
	return types
}

func (a *Analyzer) resolveClassRef(e ast.Expr) *Symbol {
	switch c := ast.Unparen(e).(type) {
	case *ast.Ident:
		sym := a.scope.lookup(c.Name)
		if sym == nil {
			a.errorf(c.Pos, "unknown identifier %q", c.Name)
			return nil
		}
		a.info.Symbols[c] = sym
		return sym
	case *ast.PropertyAccess:
		if ns := a.namespaceOf(c.X); ns != nil {
			return a.namespaceMember(ns, c)
		}
	}
	a.error(e.GetPos(), "expected a class name after 'new'")
	return nil
}

func (a *Analyzer) checkNew(n *ast.NewExpr, expected *Type) *Type {
	sym := a.resolveClassRef(n.Class)
	var class *ast.ClassDecl
	if sym != nil {
		if class, _ = sym.Decl.(*ast.ClassDecl); class == nil {
			a.errorf(n.Pos, "cannot instantiate %s %q", sym.Kind, sym.Name)
		}
	}
	if class == nil {
		for _, arg := range n.Args {
			a.checkExpr(arg, nil)
		}
		return nil
	}
	a.info.Symbols[n] = sym

	var params []*ast.Param
	if ctor := class.Constructor(); ctor != nil {
		params = ctor.Params
	}
	if len(n.Args) != len(params) {
		a.errorf(n.Pos, "constructor of %q expects %d argument(s), got %d", class.Name, len(params), len(n.Args))
	}

	b := make(Bindings, len(class.TypeParams))
	switch {
	case len(n.TypeArgs) > 0:
		if len(n.TypeArgs) != len(class.TypeParams) {
			a.errorf(n.Pos, "class %q expects %d type argument(s), got %d", class.Name, len(class.TypeParams), len(n.TypeArgs))
			return nil
		}
		for i, te := range n.TypeArgs {
			if t := a.resolveType(te); t != nil {
				b[class.TypeParams[i]] = t
			}
		}
	case expected != nil && expected.Class == class && len(expected.Args) == len(class.TypeParams):
		for i, tp := range class.TypeParams {
			b[tp] = expected.Args[i]
		}
	}

	want := make([]*Type, len(params))
	for i, p := range params {
		want[i] = a.info.declTypes[p]
	}
	args := a.checkArgs(n.Args, want, b)

	var targs []*Type
	for _, tp := range class.TypeParams {
		if b[tp] == nil {
			a.errorf(n.Pos, "cannot infer type argument %s of %q; add explicit type arguments", tp.Name, class.Name)
			return nil
		}
		targs = append(targs, b[tp])
	}
	t := a.info.instantiate(class, targs)
	for i, at := range args {
		if i < len(want) {
			a.checkAssignable(Substitute(want[i], b), at, n.Args[i].GetPos())
		}
	}
	return t
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (a *Analyzer) expectNumber(t *Type, pos ast.Position, op string) {
	if t != nil && t != TypeNumber {
		a.errorf(pos, "operator %s requires a number operand, got %s", op, t)
	}
}

func (a *Analyzer) checkUnary(e *ast.UnaryExpr) *Type {
	switch e.Op {
	case "++", "--":
		a.expectNumber(a.checkAssignTarget(e.X), e.X.GetPos(), e.Op)
		return TypeNumber
	case "!":
		t := a.checkExpr(e.X, nil)
		if t != nil && t != TypeBoolean && t != TypeNumber {
			a.errorf(e.Pos, "operator ! requires a boolean operand, got %s", t)
		}
		return TypeBoolean
	default: // - + ~
		a.expectNumber(a.checkExpr(e.X, nil), e.X.GetPos(), e.Op)
		return TypeNumber
	}
}

// binaryResult returns the result type of left op right.
func (a *Analyzer) binaryResult(op string, left, right *Type, pos ast.Position) *Type {
	if left == nil || right == nil {
		switch op {
		case "<", "<=", ">", ">=", "==", "!=", "===", "!==", "&&", "||":
			return TypeBoolean
		case "+":
			return nil
		}
		return TypeNumber
	}

	switch op {
	case "+":
		if left == TypeNumber && right == TypeNumber {
			return TypeNumber
		}
		if left == TypeString && right == TypeString {
			return TypeString
		}
		a.errorf(pos, "operator + cannot be applied to %s and %s", left, right)
		return nil
	case "-", "*", "/", "%", "&", "|", "^", "<<", ">>", ">>>":
		if left != TypeNumber || right != TypeNumber {
			a.errorf(pos, "operator %s cannot be applied to %s and %s", op, left, right)
		}
		return TypeNumber
	case "<", "<=", ">", ">=":
		if left != TypeNumber || right != TypeNumber {
			a.errorf(pos, "operator %s cannot be applied to %s and %s", op, left, right)
		}
		return TypeBoolean
	case "==", "!=", "===", "!==":
		switch {
		case !Identical(left, right):
			a.errorf(pos, "operator %s cannot be applied to %s and %s", op, left, right)
		case left == TypeString:
			a.errorf(pos, "operator %s is not supported on strings", op)
		case left.Kind == KindVoid:
			a.errorf(pos, "operator %s cannot be applied to void", op)
		}
		return TypeBoolean
	case "&&", "||":
		if left != TypeBoolean || right != TypeBoolean {
			a.errorf(pos, "operator %s cannot be applied to %s and %s", op, left, right)
		}
		return TypeBoolean
	}
	a.errorf(pos, "unsupported operator %s", op)
	return nil
}

func (a *Analyzer) checkAssign(e *ast.AssignExpr) *Type {
	target := a.checkAssignTarget(e.Target)
	if e.Op == "=" {
		value := a.checkExpr(e.Value, target)
		a.checkAssignable(target, value, e.Value.GetPos())
		return target
	}
	value := a.checkExpr(e.Value, nil)
	result := a.binaryResult(e.BinaryOp(), target, value, e.Pos)
	if result != nil && target != nil {
		a.checkAssignable(target, result, e.Pos)
	}
	return target
}

// checkAssignTarget checks that e denotes writable storage and returns the
// type stored there.
func (a *Analyzer) checkAssignTarget(e ast.Expr) *Type {
	switch t := ast.Unparen(e).(type) {
	case *ast.Ident:
		sym := a.scope.lookup(t.Name)
		if sym == nil {
			a.errorf(t.Pos, "unknown identifier %q", t.Name)
			return nil
		}
		a.info.Symbols[t] = sym
		switch {
		case sym.Kind != SymVar && sym.Kind != SymParam:
			a.errorf(t.Pos, "cannot assign to %s %q", sym.Kind, t.Name)
			return nil
		case sym.Const:
			a.errorf(t.Pos, "cannot assign to %q because it is a constant", t.Name)
		}
		if sym.Type != nil {
			a.info.Types[t] = sym.Type
		}
		return sym.Type

	case *ast.PropertyAccess:
		if ns := a.namespaceOf(t.X); ns != nil {
			sym := a.namespaceMember(ns, t)
			if sym == nil {
				return nil
			}
			if sym.Kind != SymVar {
				a.errorf(t.Pos, "cannot assign to %s %q", sym.Kind, t.Name)
				return nil
			}
			if sym.Const {
				a.errorf(t.Pos, "cannot assign to %q because it is a constant", t.Name)
			}
			if sym.Type != nil {
				a.info.Types[t] = sym.Type
			}
			return sym.Type
		}
		typ := a.checkExpr(t, nil)
		sym := a.info.Symbols[t]
		if sym != nil && sym.Kind == SymProperty && sym.Const {
			_, onThis := ast.Unparen(t.X).(*ast.ThisExpr)
			if !(onThis && a.fn != nil && a.fn.isCtor) {
				a.errorf(t.Pos, "cannot assign to %q because it is a read-only property", t.Name)
			}
		}
		return typ

	case *ast.ElementAccess:
		typ := a.checkExpr(t, nil)
		if sym := a.info.Symbols[t]; sym != nil && sym.Const {
			a.error(t.Pos, "index signature only permits reading")
		}
		return typ
	}
	a.checkExpr(e, nil)
	a.error(e.GetPos(), "invalid assignment target")
	return nil
}
