package semantic

import (
	"tsllvm/internal/ast"
)

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (a *Analyzer) checkStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.VarStmt:
		a.checkVarStmt(s)
	case *ast.FunctionDecl:
		a.checkFunctionDecl(s)
	case *ast.ClassDecl:
		a.checkClassDecl(s)
	case *ast.InterfaceDecl:
		if a.fn != nil {
			a.errorf(s.Pos, "interface %q must be declared at top level or in a namespace", s.Name)
		}
	case *ast.NamespaceDecl:
		a.checkNamespaceDecl(s)
	case *ast.TypeAliasDecl:
		a.warn(s.Pos, "type alias "+s.Name+" is ignored")
	case *ast.BlockStmt:
		a.pushScope()
		for _, inner := range s.Stmts {
			a.checkStmt(inner)
		}
		a.popScope()
	case *ast.ExprStmt:
		a.checkExprStmt(s)
	case *ast.ReturnStmt:
		a.checkReturn(s)
	case *ast.IfStmt:
		a.checkCondition(s.Condition)
		a.checkBranch(s.Then)
		if s.Else != nil {
			a.checkBranch(s.Else)
		}
	case *ast.WhileStmt:
		a.checkCondition(s.Condition)
		a.loopDepth++
		a.checkBranch(s.Body)
		a.loopDepth--
	case *ast.ForStmt:
		a.pushScope()
		if s.Init != nil {
			a.checkStmt(s.Init)
		}
		if s.Condition != nil {
			a.checkCondition(s.Condition)
		}
		if call, ok := s.Update.(*ast.CallExpr); ok {
			a.checkCall(call, true)
		} else if s.Update != nil {
			a.checkExpr(s.Update, nil)
		}
		a.loopDepth++
		a.checkBranch(s.Body)
		a.loopDepth--
		a.popScope()
	case *ast.BreakStmt:
		if a.loopDepth == 0 {
			a.error(s.Pos, "break statement outside of a loop")
		}
	case *ast.ContinueStmt:
		if a.loopDepth == 0 {
			a.error(s.Pos, "continue statement outside of a loop")
		}
	case *ast.ThrowStmt:
		a.checkExpr(s.Value, nil)
	case *ast.EmptyStmt:
	}
}

// checkBranch checks the body of an if or loop. A bare declaration gets its
// own scope so it cannot leak into the enclosing block.
func (a *Analyzer) checkBranch(stmt ast.Stmt) {
	if _, ok := stmt.(*ast.BlockStmt); ok {
		a.checkStmt(stmt)
		return
	}
	a.pushScope()
	a.checkStmt(stmt)
	a.popScope()
}

func (a *Analyzer) checkCondition(cond ast.Expr) {
	t := a.checkExpr(cond, nil)
	if t != nil && t != TypeBoolean && t != TypeNumber {
		a.errorf(cond.GetPos(), "condition must be boolean or number, got %s", t)
	}
}

func (a *Analyzer) checkExprStmt(s *ast.ExprStmt) {
	if call, ok := s.Expression.(*ast.CallExpr); ok {
		a.checkCall(call, true)
		return
	}
	a.checkExpr(s.Expression, nil)
}

func (a *Analyzer) checkVarStmt(s *ast.VarStmt) {
	for _, d := range s.Decls {
		var declared *Type
		if d.Type != nil {
			declared = a.resolveType(d.Type)
		}

		var t *Type
		switch {
		case d.Init != nil:
			if s.Ambient {
				a.errorf(d.Pos, "initializers are not allowed in ambient contexts")
			}
			init := a.checkExpr(d.Init, declared)
			if declared != nil {
				a.checkAssignable(declared, init, d.Init.GetPos())
				t = declared
			} else {
				t = init
			}
		case d.Type != nil:
			t = declared
		default:
			a.errorf(d.Pos, "variable %q needs a type annotation or an initializer", d.Name)
		}
		if t == TypeVoid {
			a.errorf(d.Pos, "variable %q cannot have type void", d.Name)
		}

		sym := &Symbol{
			Name:     d.Name,
			Kind:     SymVar,
			Type:     t,
			Decl:     d,
			Const:    s.IsConst(),
			Exported: s.Exported,
			Pos:      d.Pos,
		}
		a.define(sym)
		a.info.declTypes[d] = t
		a.info.Symbols[d] = sym
	}
}

func (a *Analyzer) checkReturn(s *ast.ReturnStmt) {
	if a.fn == nil {
		a.error(s.Pos, "return statement outside of a function")
		if s.Value != nil {
			a.checkExpr(s.Value, nil)
		}
		return
	}
	if s.Value == nil {
		if a.fn.ret != TypeVoid && !a.fn.isCtor {
			a.errorf(s.Pos, "function %q must return a value of type %s", a.fn.name, a.fn.ret)
		}
		return
	}
	if a.fn.isCtor {
		a.error(s.Pos, "constructors cannot return a value")
		a.checkExpr(s.Value, nil)
		return
	}
	t := a.checkExpr(s.Value, a.fn.ret)
	if a.fn.ret == TypeVoid {
		a.errorf(s.Pos, "function %q has no return type annotation but returns a value", a.fn.name)
		return
	}
	a.checkAssignable(a.fn.ret, t, s.Value.GetPos())
}

func (a *Analyzer) checkAssignable(dst, src *Type, pos ast.Position) {
	if !a.info.IsAssignable(dst, src) {
		a.errorf(pos, "type %s is not assignable to %s", src, dst)
	}
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (a *Analyzer) checkFunctionDecl(d *ast.FunctionDecl) {
	if a.fn != nil {
		a.errorf(d.Pos, "function %q must be declared at top level or in a namespace", d.Name)
		return
	}
	if d.Body == nil {
		if !d.Ambient {
			a.errorf(d.Pos, "function %q has no body", d.Name)
		}
		return
	}
	scope := a.scope
	a.deferred = append(a.deferred, func() {
		a.scope = scope
		a.withTypeParams(d.TypeParams, func() {
			a.checkBody(d, &funcContext{name: d.Name, ret: a.info.returns[d]})
		})
		a.scope = a.info.Global
	})
}

func (a *Analyzer) checkClassDecl(d *ast.ClassDecl) {
	if a.fn != nil {
		a.errorf(d.Pos, "class %q must be declared at top level or in a namespace", d.Name)
		return
	}
	scope := a.scope
	a.deferred = append(a.deferred, func() {
		a.scope = scope
		a.withTypeParams(d.TypeParams, func() {
			self := a.selfType(d)
			for _, m := range d.Members {
				a.checkMember(d, self, m)
			}
		})
		a.scope = a.info.Global
	})
}

func (a *Analyzer) checkMember(class *ast.ClassDecl, self *Type, m ast.Member) {
	switch m := m.(type) {
	case *ast.PropertyDecl:
		if m.Init == nil || m.Type == nil {
			// Unannotated initializers were typed while resolving members.
			return
		}
		if class.Ambient {
			a.errorf(m.Pos, "initializers are not allowed in ambient contexts")
		}
		want := a.info.declTypes[m]
		a.checkAssignable(want, a.checkExpr(m.Init, want), m.Init.GetPos())
	case *ast.MethodDecl:
		if m.Body == nil {
			if !class.Ambient {
				a.errorf(m.Pos, "method %q has no body", m.Name)
			}
			return
		}
		a.withTypeParams(m.TypeParams, func() {
			a.checkBody(m, &funcContext{name: class.Name + "." + m.Name, ret: a.info.returns[m], this: self})
		})
	case *ast.ConstructorDecl:
		if m.Body == nil {
			if !class.Ambient {
				a.errorf(m.Pos, "constructor of %q has no body", class.Name)
			}
			return
		}
		a.checkBody(m, &funcContext{name: class.Name + ".constructor", ret: TypeVoid, this: self, isCtor: true})
	case *ast.IndexSignature:
		if !class.Ambient {
			a.errorf(m.Pos, "index signatures are only supported on ambient classes")
		}
	}
}

// checkBody checks a callable body in a fresh scope holding its parameters.
func (a *Analyzer) checkBody(decl ast.Callable, ctx *funcContext) {
	savedFn, savedLoops := a.fn, a.loopDepth
	a.fn, a.loopDepth = ctx, 0
	a.pushScope()
	defer func() {
		a.popScope()
		a.fn, a.loopDepth = savedFn, savedLoops
	}()

	for _, p := range decl.CallableParams() {
		t := a.info.declTypes[p]
		if p.Type == nil {
			a.errorf(p.Pos, "parameter %q needs a type annotation", p.Name)
		}
		sym := &Symbol{Name: p.Name, Kind: SymParam, Type: t, Decl: p, Pos: p.Pos}
		if a.define(sym) {
			a.info.Symbols[p] = sym
		}
	}
	for _, stmt := range decl.CallableBody().Stmts {
		a.checkStmt(stmt)
	}
}

func (a *Analyzer) checkNamespaceDecl(d *ast.NamespaceDecl) {
	if a.fn != nil {
		a.errorf(d.Pos, "namespace %q must be declared at top level or in a namespace", d.Name)
		return
	}
	sym := a.scope.lookupLocal(d.Name)
	if sym == nil || sym.Kind != SymNamespace {
		return
	}
	a.info.Symbols[d] = sym
	saved := a.scope
	a.scope = sym.Members
	for _, stmt := range d.Body {
		a.checkStmt(stmt)
	}
	a.scope = saved
}
