package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"tsllvm/internal/ast"
)

// lowerStmt lowers one statement at the cursor. Code following a terminator
// continues in a fresh block with no predecessors.
func (g *generator) lowerStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.FunctionDecl, *ast.ClassDecl, *ast.InterfaceDecl, *ast.NamespaceDecl, *ast.EmptyStmt:
		// Functions and methods are emitted when first called; types when
		// first used.
		return nil
	case *ast.TypeAliasDecl:
		g.warn(s.Pos, "type alias %s is ignored", s.Name)
		return nil
	case *ast.ThrowStmt:
		g.warn(s.Pos, "throw is not supported and was skipped")
		return nil
	}

	g.ensureOpenBlock()
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		return g.symbols.WithScope("block", func(*Scope) error {
			return g.lowerStmts(s.Stmts)
		})
	case *ast.VarStmt:
		if s.Ambient {
			return nil
		}
		return g.lowerLocalVar(s)
	case *ast.ExprStmt:
		_, err := g.lower(s.Expression)
		return err
	case *ast.ReturnStmt:
		return g.lowerReturn(s)
	case *ast.IfStmt:
		return g.lowerIf(s)
	case *ast.WhileStmt:
		return g.lowerWhile(s)
	case *ast.ForStmt:
		return g.lowerFor(s)
	case *ast.BreakStmt:
		if len(g.fn.loops) == 0 {
			return errorf(ErrUnsupportedSyntax, s.Pos, "break outside a loop")
		}
		g.block.NewBr(g.fn.loops[len(g.fn.loops)-1].brk)
		return nil
	case *ast.ContinueStmt:
		if len(g.fn.loops) == 0 {
			return errorf(ErrUnsupportedSyntax, s.Pos, "continue outside a loop")
		}
		g.block.NewBr(g.fn.loops[len(g.fn.loops)-1].cont)
		return nil
	}
	return errorf(ErrUnsupportedSyntax, stmt.GetPos(), "unsupported statement %T", stmt)
}

func (g *generator) lowerStmts(stmts []ast.Stmt) error {
	for _, stmt := range stmts {
		if err := g.lowerStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

// lowerScoped lowers a loop or branch body. A lone statement gets its own
// scope like a block would.
func (g *generator) lowerScoped(stmt ast.Stmt, name string) error {
	if _, ok := stmt.(*ast.BlockStmt); ok {
		return g.lowerStmt(stmt)
	}
	return g.symbols.WithScope(name, func(*Scope) error {
		return g.lowerStmt(stmt)
	})
}

// lowerLocalVar binds constants to their initializer value and gives every
// other variable a stack slot in the entry block.
func (g *generator) lowerLocalVar(s *ast.VarStmt) error {
	for _, d := range s.Decls {
		t := g.typeOf(d)
		if s.IsConst() && d.Init != nil {
			v, err := g.rvalueAs(d.Init, t)
			if err != nil {
				return err
			}
			if n, ok := v.(interface {
				IsUnnamed() bool
				SetName(string)
			}); ok && n.IsUnnamed() {
				n.SetName(g.fn.uniqueName(d.Name))
			}
			if err := g.symbols.Set(d.Name, valueBinding(v)); err != nil {
				return errorf(ErrDuplicateDefinition, d.Pos, "%q is already defined", d.Name)
			}
			continue
		}

		lt, err := g.layoutOf(t, d.Pos)
		if err != nil {
			return err
		}
		var init value.Value = zeroValue(lt)
		if d.Init != nil {
			if init, err = g.rvalueAs(d.Init, t); err != nil {
				return err
			}
		}
		slot := g.entryAlloca(lt, d.Name)
		g.block.NewStore(init, slot)
		if err := g.symbols.Set(d.Name, storageBinding(slot, lt)); err != nil {
			return errorf(ErrDuplicateDefinition, d.Pos, "%q is already defined", d.Name)
		}
	}
	return nil
}

func (g *generator) lowerReturn(s *ast.ReturnStmt) error {
	if g.fn == g.main {
		return errorf(ErrUnsupportedSyntax, s.Pos, "return outside a function")
	}
	if s.Value == nil {
		if g.fn.isCtor {
			g.block.NewRet(g.fn.this)
		} else {
			g.block.NewRet(nil)
		}
		return nil
	}
	v, err := g.rvalueAs(s.Value, g.fn.ret)
	if err != nil {
		return err
	}
	if want := g.fn.fn.Sig.RetType; !v.Type().Equal(want) {
		return errorf(ErrInvalidOperandTypes, s.Pos, "returning %s from a function returning %s", v.Type(), want)
	}
	g.block.NewRet(v)
	return nil
}

func (g *generator) lowerIf(s *ast.IfStmt) error {
	cond, err := g.condition(s.Condition)
	if err != nil {
		return err
	}
	then := g.newBlock("then")
	els := g.newBlock("else")
	end := g.newBlock("endif")
	g.block.NewCondBr(cond, then, els)

	g.block = then
	if err := g.lowerScoped(s.Then, "then"); err != nil {
		return err
	}
	g.branchTo(end)

	g.block = els
	if s.Else != nil {
		if err := g.lowerScoped(s.Else, "else"); err != nil {
			return err
		}
	}
	g.branchTo(end)

	g.block = end
	return nil
}

// branchTo closes the current block with a jump unless it already ends.
func (g *generator) branchTo(dest *ir.Block) {
	if g.block.Term == nil {
		g.block.NewBr(dest)
	}
}

func (g *generator) lowerWhile(s *ast.WhileStmt) error {
	if err := g.promoteAssigned(s.Condition, s.Body); err != nil {
		return err
	}
	cond := g.newBlock("while.cond")
	body := g.newBlock("while.body")
	end := g.newBlock("while.end")
	g.block.NewBr(cond)

	g.block = cond
	if lit, ok := ast.Unparen(s.Condition).(*ast.BoolLit); ok && lit.Value {
		g.block.NewBr(body)
	} else {
		c, err := g.condition(s.Condition)
		if err != nil {
			return err
		}
		g.block.NewCondBr(c, body, end)
	}

	g.fn.loops = append(g.fn.loops, loopTarget{brk: end, cont: cond})
	g.block = body
	err := g.lowerScoped(s.Body, "while")
	g.fn.loops = g.fn.loops[:len(g.fn.loops)-1]
	if err != nil {
		return err
	}
	g.branchTo(cond)

	g.block = end
	return nil
}

func (g *generator) lowerFor(s *ast.ForStmt) error {
	return g.symbols.WithScope("for", func(*Scope) error {
		if s.Init != nil {
			if err := g.lowerStmt(s.Init); err != nil {
				return err
			}
		}
		var nodes []ast.Node
		if s.Condition != nil {
			nodes = append(nodes, s.Condition)
		}
		if s.Update != nil {
			nodes = append(nodes, s.Update)
		}
		if err := g.promoteAssigned(append(nodes, s.Body)...); err != nil {
			return err
		}

		cond := g.newBlock("for.cond")
		body := g.newBlock("for.body")
		inc := g.newBlock("for.inc")
		end := g.newBlock("for.end")
		g.block.NewBr(cond)

		g.block = cond
		if s.Condition == nil {
			g.block.NewBr(body)
		} else {
			c, err := g.condition(s.Condition)
			if err != nil {
				return err
			}
			g.block.NewCondBr(c, body, end)
		}

		g.fn.loops = append(g.fn.loops, loopTarget{brk: end, cont: inc})
		g.block = body
		err := g.lowerScoped(s.Body, "for.body")
		g.fn.loops = g.fn.loops[:len(g.fn.loops)-1]
		if err != nil {
			return err
		}
		g.branchTo(inc)

		g.block = inc
		if s.Update != nil {
			if _, err := g.lower(s.Update); err != nil {
				return err
			}
		}
		g.branchTo(cond)

		g.block = end
		return nil
	})
}

// promoteAssigned gives every parameter written inside a loop its stack slot
// before the loop header is emitted, so the header and body observe the
// same storage on every iteration.
func (g *generator) promoteAssigned(nodes ...ast.Node) error {
	seen := make(map[string]bool)
	var names []string
	for _, n := range nodes {
		collectAssigned(n, func(name string) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		})
	}
	for _, name := range names {
		b, err := g.symbols.Get(name)
		if err != nil || b.Kind != BindValue || !isParam(b.Value) {
			continue
		}
		if _, err := g.promote(name, b.Value); err != nil {
			return err
		}
	}
	return nil
}

// collectAssigned reports the identifiers n assigns to or increments.
func collectAssigned(n ast.Node, report func(string)) {
	target := func(e ast.Expr) {
		if id, ok := ast.Unparen(e).(*ast.Ident); ok {
			report(id.Name)
		}
	}
	switch n := n.(type) {
	case nil:
	case *ast.BlockStmt:
		for _, s := range n.Stmts {
			collectAssigned(s, report)
		}
	case *ast.VarStmt:
		for _, d := range n.Decls {
			if d.Init != nil {
				collectAssigned(d.Init, report)
			}
		}
	case *ast.ExprStmt:
		collectAssigned(n.Expression, report)
	case *ast.ReturnStmt:
		if n.Value != nil {
			collectAssigned(n.Value, report)
		}
	case *ast.IfStmt:
		collectAssigned(n.Condition, report)
		collectAssigned(n.Then, report)
		if n.Else != nil {
			collectAssigned(n.Else, report)
		}
	case *ast.WhileStmt:
		collectAssigned(n.Condition, report)
		collectAssigned(n.Body, report)
	case *ast.ForStmt:
		if n.Init != nil {
			collectAssigned(n.Init, report)
		}
		if n.Condition != nil {
			collectAssigned(n.Condition, report)
		}
		if n.Update != nil {
			collectAssigned(n.Update, report)
		}
		collectAssigned(n.Body, report)
	case *ast.AssignExpr:
		target(n.Target)
		collectAssigned(n.Target, report)
		collectAssigned(n.Value, report)
	case *ast.UnaryExpr:
		if n.Op == "++" || n.Op == "--" {
			target(n.X)
		}
		collectAssigned(n.X, report)
	case *ast.PostfixExpr:
		target(n.X)
		collectAssigned(n.X, report)
	case *ast.BinaryExpr:
		collectAssigned(n.Left, report)
		collectAssigned(n.Right, report)
	case *ast.ParenExpr:
		collectAssigned(n.X, report)
	case *ast.PropertyAccess:
		collectAssigned(n.X, report)
	case *ast.ElementAccess:
		collectAssigned(n.X, report)
		collectAssigned(n.Index, report)
	case *ast.CallExpr:
		collectAssigned(n.Callee, report)
		for _, a := range n.Args {
			collectAssigned(a, report)
		}
	case *ast.NewExpr:
		for _, a := range n.Args {
			collectAssigned(a, report)
		}
	case *ast.ArrayLit:
		for _, x := range n.Elems {
			collectAssigned(x, report)
		}
	case *ast.ObjectLit:
		for _, p := range n.Props {
			collectAssigned(p.Value, report)
		}
	}
}
