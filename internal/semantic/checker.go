package semantic

import (
	"fmt"

	"tsllvm/internal/ast"
)

// ---------------------------------------------------------------------------
// Analyser
// ---------------------------------------------------------------------------

// Analyzer holds the state for a single type-checking pass.
type Analyzer struct {
	info        *Info
	diagnostics []Diagnostic
	scope       *Scope
	fn          *funcContext // the function body we are currently inside
	loopDepth   int          // > 0 when inside a loop
	deferred    []func()     // function and method bodies, checked last

	arrayClass *ast.ClassDecl
	paramTypes map[*ast.TypeParam]*Type
}

// funcContext describes the callable whose body is being checked.
type funcContext struct {
	name   string
	ret    *Type
	this   *Type // nil for free functions
	isCtor bool
}

// Check type-checks a whole program. The returned Info is usable as long as
// the diagnostics contain no errors.
func Check(program *ast.Program) (*Info, []Diagnostic) {
	a := &Analyzer{
		info:       newInfo(),
		paramTypes: make(map[*ast.TypeParam]*Type),
	}
	a.scope = a.info.Global
	a.checkProgram(program)
	return a.info, a.diagnostics
}

// Analyze runs Check and returns only the diagnostics.
func Analyze(program *ast.Program) []Diagnostic {
	_, diags := Check(program)
	return diags
}

// ---- helpers ----

func (a *Analyzer) error(pos ast.Position, msg string) {
	a.diagnostics = append(a.diagnostics, Diagnostic{
		Message:  msg,
		Pos:      pos,
		Severity: Error,
	})
}

func (a *Analyzer) errorf(pos ast.Position, format string, args ...any) {
	a.error(pos, fmt.Sprintf(format, args...))
}

func (a *Analyzer) warn(pos ast.Position, msg string) {
	a.diagnostics = append(a.diagnostics, Diagnostic{
		Message:  msg,
		Pos:      pos,
		Severity: Warning,
	})
}

func (a *Analyzer) pushScope() {
	a.scope = newScope(a.scope)
}

func (a *Analyzer) popScope() {
	a.scope = a.scope.parent
}

// define binds sym in the current scope, reporting redeclarations.
func (a *Analyzer) define(sym *Symbol) bool {
	if existing := a.scope.lookupLocal(sym.Name); existing != nil {
		a.errorf(sym.Pos, "duplicate identifier %q (previously declared at %s)", sym.Name, existing.Pos)
		return false
	}
	a.scope.define(sym)
	return true
}

// ---------------------------------------------------------------------------
// Program analysis
// ---------------------------------------------------------------------------

func (a *Analyzer) checkProgram(prog *ast.Program) {
	// First pass: bind every declaration name so that declarations can refer
	// to each other regardless of source order.
	for _, file := range prog.Files {
		a.declare(file.Stmts, a.info.Global)
	}

	// Second pass: resolve signatures and member types.
	for _, file := range prog.Files {
		a.resolveDecls(file.Stmts, a.info.Global)
	}

	// Third pass: statements in order; bodies are queued and checked once
	// every top-level binding has a type.
	for _, file := range prog.Files {
		for _, stmt := range file.Stmts {
			a.checkStmt(stmt)
		}
	}
	for i := 0; i < len(a.deferred); i++ {
		a.deferred[i]()
	}
}

// declare binds the names of functions, classes, interfaces and namespaces.
// Namespaces with the same name merge.
func (a *Analyzer) declare(stmts []ast.Stmt, scope *Scope) {
	saved := a.scope
	a.scope = scope
	defer func() { a.scope = saved }()

	for _, stmt := range stmts {
		switch d := stmt.(type) {
		case *ast.FunctionDecl:
			a.define(&Symbol{Name: d.Name, Kind: SymFunc, Decl: d, Const: true, Exported: d.Exported, Pos: d.Pos})
		case *ast.ClassDecl:
			a.define(&Symbol{Name: d.Name, Kind: SymClass, Decl: d, Const: true, Exported: d.Exported, Pos: d.Pos})
			if d.Name == "Array" && d.Ambient && len(d.Namespace) == 0 {
				a.arrayClass = d
			}
		case *ast.InterfaceDecl:
			a.define(&Symbol{Name: d.Name, Kind: SymInterface, Decl: d, Const: true, Exported: d.Exported, Pos: d.Pos})
			if d.Name == "String" && d.Ambient && len(d.Namespace) == 0 {
				a.info.stringIface = d
			}
		case *ast.NamespaceDecl:
			sym := scope.lookupLocal(d.Name)
			if sym == nil {
				sym = &Symbol{Name: d.Name, Kind: SymNamespace, Decl: d, Const: true, Exported: d.Exported, Members: newScope(scope), Pos: d.Pos}
				scope.define(sym)
			} else if sym.Kind != SymNamespace {
				a.errorf(d.Pos, "duplicate identifier %q (previously declared at %s)", d.Name, sym.Pos)
				continue
			}
			a.declare(d.Body, sym.Members)
		}
	}
}

// resolveDecls resolves the annotation types of every declaration.
func (a *Analyzer) resolveDecls(stmts []ast.Stmt, scope *Scope) {
	saved := a.scope
	a.scope = scope
	defer func() { a.scope = saved }()

	for _, stmt := range stmts {
		switch d := stmt.(type) {
		case *ast.FunctionDecl:
			a.withTypeParams(d.TypeParams, func() {
				a.resolveCallable(d, d.ReturnType)
			})
		case *ast.ClassDecl:
			a.withTypeParams(d.TypeParams, func() {
				a.resolveMembers(d.Members, true)
			})
		case *ast.InterfaceDecl:
			a.withTypeParams(d.TypeParams, func() {
				a.resolveMembers(d.Members, false)
			})
		case *ast.NamespaceDecl:
			if sym := scope.lookupLocal(d.Name); sym != nil && sym.Members != nil {
				a.resolveDecls(d.Body, sym.Members)
			}
		}
	}
}

// withTypeParams runs fn in a scope that binds the given generic parameters.
func (a *Analyzer) withTypeParams(params []*ast.TypeParam, fn func()) {
	if len(params) == 0 {
		fn()
		return
	}
	a.pushScope()
	defer a.popScope()
	for _, tp := range params {
		a.define(&Symbol{Name: tp.Name, Kind: SymTypeParam, Type: a.typeParamType(tp), Pos: tp.Pos})
		if tp.Constraint != nil {
			a.resolveType(tp.Constraint)
		}
	}
	fn()
}

func (a *Analyzer) typeParamType(tp *ast.TypeParam) *Type {
	if t, ok := a.paramTypes[tp]; ok {
		return t
	}
	t := &Type{Kind: KindTypeParam, Name: tp.Name, Param: tp}
	a.paramTypes[tp] = t
	return t
}

func (a *Analyzer) resolveCallable(decl ast.Callable, ret ast.TypeExpr) {
	for _, p := range decl.CallableParams() {
		if p.Type == nil {
			continue
		}
		t := a.resolveType(p.Type)
		if t == TypeVoid {
			a.errorf(p.Pos, "parameter %q cannot have type void", p.Name)
		}
		if p.Optional {
			a.errorf(p.Pos, "optional parameter %q is not supported", p.Name)
		}
		a.info.declTypes[p] = t
	}
	if ret == nil {
		a.info.returns[decl] = TypeVoid
		return
	}
	a.info.returns[decl] = a.resolveType(ret)
}

func (a *Analyzer) resolveMembers(members []ast.Member, isClass bool) {
	seen := make(map[string]ast.Position)
	for _, m := range members {
		if prev, ok := seen[m.MemberName()]; ok {
			a.errorf(m.GetPos(), "duplicate member %q (previously declared at %s)", m.MemberName(), prev)
			continue
		}
		seen[m.MemberName()] = m.GetPos()

		switch m := m.(type) {
		case *ast.PropertyDecl:
			switch {
			case m.Type != nil:
				a.info.declTypes[m] = a.resolveType(m.Type)
			case m.Init != nil && isClass:
				a.info.declTypes[m] = a.checkExpr(m.Init, nil)
			default:
				a.errorf(m.Pos, "property %q needs a type annotation", m.Name)
			}
			if m.Optional {
				a.errorf(m.Pos, "optional property %q is not supported", m.Name)
			}
		case *ast.MethodDecl:
			a.withTypeParams(m.TypeParams, func() {
				a.resolveCallable(m, m.ReturnType)
			})
		case *ast.ConstructorDecl:
			a.resolveCallable(m, nil)
		case *ast.IndexSignature:
			a.resolveCallable(m, m.Type)
			if pt := a.info.declTypes[m.Param]; pt != nil && pt != TypeNumber {
				a.errorf(m.Pos, "index signature parameter must be number, got %s", pt)
			}
			a.info.declTypes[m] = a.info.returns[m]
		}
	}
}

// ---------------------------------------------------------------------------
// Type resolution
// ---------------------------------------------------------------------------

func (a *Analyzer) resolveType(te ast.TypeExpr) *Type {
	switch te := te.(type) {
	case nil:
		return TypeVoid
	case *ast.TypeRef:
		return a.resolveTypeRef(te)
	case *ast.ArrayTypeExpr:
		elem := a.resolveType(te.Elem)
		if a.arrayClass == nil {
			a.error(te.Pos, "array types need the ambient library")
			return nil
		}
		if elem == nil {
			return nil
		}
		return a.info.instantiate(a.arrayClass, []*Type{elem})
	case *ast.UnionTypeExpr:
		u := &Type{Kind: KindUnion}
		for _, m := range te.Types {
			mt := a.resolveType(m)
			if mt == nil {
				return nil
			}
			u.Members = append(u.Members, mt)
		}
		return u
	}
	return nil
}

func (a *Analyzer) resolveTypeRef(te *ast.TypeRef) *Type {
	if len(te.Name) == 1 {
		if te.Name[0] == "<error>" {
			return nil
		}
		if t, ok := primitiveTypes[te.Name[0]]; ok {
			if len(te.Args) > 0 {
				a.errorf(te.Pos, "type %q is not generic", te.Name[0])
			}
			return t
		}
	}

	var sym *Symbol
	for i, part := range te.Name {
		if i == 0 {
			sym = a.scope.lookup(part)
		} else if sym != nil && sym.Kind == SymNamespace {
			sym = sym.Members.lookupLocal(part)
		} else {
			sym = nil
		}
		if sym == nil {
			a.errorf(te.Pos, "unknown type %q", te.QualifiedName())
			return nil
		}
	}

	switch sym.Kind {
	case SymTypeParam:
		return sym.Type
	case SymClass, SymInterface:
		var params []*ast.TypeParam
		switch d := sym.Decl.(type) {
		case *ast.ClassDecl:
			params = d.TypeParams
		case *ast.InterfaceDecl:
			params = d.TypeParams
		}
		if len(te.Args) != len(params) {
			a.errorf(te.Pos, "type %q expects %d type argument(s), got %d", te.QualifiedName(), len(params), len(te.Args))
			return nil
		}
		args := make([]*Type, len(te.Args))
		for i, arg := range te.Args {
			if args[i] = a.resolveType(arg); args[i] == nil {
				return nil
			}
		}
		return a.info.instantiate(sym.Decl, args)
	}
	a.errorf(te.Pos, "%q is a %s, not a type", te.QualifiedName(), sym.Kind)
	return nil
}

// selfType returns a class instantiated with its own type parameters, the
// type of `this` inside its body.
func (a *Analyzer) selfType(decl *ast.ClassDecl) *Type {
	args := make([]*Type, len(decl.TypeParams))
	for i, tp := range decl.TypeParams {
		args[i] = a.typeParamType(tp)
	}
	if len(args) == 0 {
		args = nil
	}
	return a.info.instantiate(decl, args)
}

// unify binds the type parameters in want to the matching parts of got.
func unify(want, got *Type, b Bindings) {
	if want == nil || got == nil {
		return
	}
	switch want.Kind {
	case KindTypeParam:
		if _, ok := b[want.Param]; !ok {
			b[want.Param] = got
		}
	case KindClass, KindInterface:
		if got.Kind == want.Kind && got.Class == want.Class && got.Interface == want.Interface {
			for i := range want.Args {
				if i < len(got.Args) {
					unify(want.Args[i], got.Args[i], b)
				}
			}
		}
	}
}
