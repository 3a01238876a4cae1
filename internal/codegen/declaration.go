package codegen

import (
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"tsllvm/internal/ast"
	"tsllvm/internal/semantic"
)

func callableTypeParams(decl ast.Callable) []*ast.TypeParam {
	switch d := decl.(type) {
	case *ast.FunctionDecl:
		return d.TypeParams
	case *ast.MethodDecl:
		return d.TypeParams
	}
	return nil
}

// emitFunction returns the LLVM function of decl instantiated for receiver
// and typeArgs, emitting it on first request. A function requested again
// while its body is still being lowered (recursion) resolves to the same
// declaration.
func (g *generator) emitFunction(decl ast.Callable, receiver *semantic.Type, typeArgs []*semantic.Type, pos ast.Position) (*ir.Func, error) {
	name, err := mangleCallable(g.oracle, decl, receiver, typeArgs)
	if err != nil {
		return nil, err
	}
	if name == entryName {
		return nil, errorf(ErrDuplicateDefinition, decl.GetPos(), "%q collides with the program entry point", name)
	}
	if entry, ok := g.funcs[name]; ok {
		return entry.fn, nil
	}

	tparams := callableTypeParams(decl)
	if err := checkGeneric(tparams, name, pos); err != nil {
		return nil, err
	}
	if len(typeArgs) != len(tparams) {
		return nil, errorf(ErrUnsupportedType, pos, "%s needs %d type argument(s), got %d", name, len(tparams), len(typeArgs))
	}
	bindings := semantic.Bindings{}
	for p, t := range semantic.BindingsOf(receiver) {
		bindings[p] = t
	}
	for i, tp := range tparams {
		bindings[tp] = typeArgs[i]
	}

	_, isCtor := decl.(*ast.ConstructorDecl)
	body := decl.CallableBody()
	if body == nil && receiver != nil && receiver.Kind == semantic.KindInterface && !receiver.Ambient() {
		return nil, errorf(ErrInvalidCallTarget, pos, "%s has no implementation", name)
	}

	var recvType types.Type
	if receiver != nil {
		if recvType, err = g.layoutOf(receiver, pos); err != nil {
			return nil, err
		}
	}
	sig := g.oracle.SignatureOf(decl, receiver)
	ret := semantic.Substitute(sig.Return, bindings)
	var retType types.Type
	switch decl.(type) {
	case *ast.ConstructorDecl:
		retType = recvType
	case *ast.IndexSignature:
		elem, err := g.layoutOf(ret, pos)
		if err != nil {
			return nil, err
		}
		retType = types.NewPointer(elem)
	default:
		if retType, err = g.layoutOf(ret, pos); err != nil {
			return nil, err
		}
	}

	var params []*ir.Param
	if receiver != nil && !isCtor {
		params = append(params, ir.NewParam("this", recvType))
	}
	for i, p := range decl.CallableParams() {
		pt, err := g.layoutOf(semantic.Substitute(sig.Params[i], bindings), p.Pos)
		if err != nil {
			return nil, err
		}
		params = append(params, ir.NewParam(p.Name, pt))
	}

	if existing := g.lookupFunc(name); existing != nil {
		// Runtime primitives are declared on first use and may share a name
		// with an ambient member such as String.concat.
		if body == nil && sameSignature(existing, retType, params) {
			g.funcs[name] = &funcEntry{fn: existing, state: stateEmitted}
			return existing, nil
		}
		return nil, errorf(ErrDuplicateDefinition, decl.GetPos(), "function %q is already defined", name)
	}
	f, err := g.newFunc(name, retType, params...)
	if err != nil {
		return nil, err
	}
	if body == nil {
		g.funcs[name] = &funcEntry{fn: f, state: stateEmitted}
		return f, nil
	}

	entry := &funcEntry{fn: f, state: stateInProgress}
	g.funcs[name] = entry
	if err := g.emitBody(decl, f, receiver, ret, bindings); err != nil {
		return nil, err
	}
	entry.state = stateEmitted
	if err := verifyFunc(g.module, f); err != nil {
		return nil, err
	}
	return f, nil
}

func sameSignature(f *ir.Func, ret types.Type, params []*ir.Param) bool {
	if !f.Sig.RetType.Equal(ret) || len(f.Sig.Params) != len(params) {
		return false
	}
	for i, p := range params {
		if !f.Sig.Params[i].Equal(p.Typ) {
			return false
		}
	}
	return true
}

// lexicalChain returns the scopes a body of decl resolves names through,
// outermost first.
func (g *generator) lexicalChain(decl ast.Callable, receiver *semantic.Type, pos ast.Position) ([]*Scope, error) {
	if receiver == nil {
		var ns []string
		if fn, ok := decl.(*ast.FunctionDecl); ok {
			ns = fn.Namespace
		}
		return g.namespaceChain(ns)
	}
	chain, err := g.namespaceChain(receiver.Namespace())
	if err != nil {
		return nil, err
	}
	if receiver.Kind == semantic.KindClass || receiver.Kind == semantic.KindInterface {
		rec, err := g.recordOf(receiver, pos)
		if err != nil {
			return nil, err
		}
		chain = append(chain, rec.Scope)
	}
	return chain, nil
}

// emitBody lowers the body of decl into f. The cursor and scope stack of the
// caller are restored on return.
func (g *generator) emitBody(decl ast.Callable, f *ir.Func, receiver, ret *semantic.Type, bindings semantic.Bindings) error {
	defer g.saveCursor()()

	chain, err := g.lexicalChain(decl, receiver, decl.GetPos())
	if err != nil {
		return err
	}
	g.symbols.enter(chain)

	_, isCtor := decl.(*ast.ConstructorDecl)
	g.fn = newFuncState(f, isCtor)
	g.fn.ret = ret
	g.block = g.fn.entry
	g.bindings = bindings

	parent := g.symbols.Current()
	register := baseName(decl)
	if receiver == nil {
		register = trimNamespace(f.Name(), decl)
	}
	// Instantiations after the first share the base name; the first keeps it.
	if _, taken := parent.Lookup(register); !taken {
		if err := parent.Set(register, valueBinding(f)); err != nil {
			return err
		}
	}

	return g.symbols.WithScope(f.Name(), func(scope *Scope) error {
		params := f.Params
		if receiver != nil && !isCtor {
			g.fn.this = params[0]
			if err := scope.Set("this", valueBinding(params[0])); err != nil {
				return err
			}
			params = params[1:]
		}
		for i, p := range decl.CallableParams() {
			if err := scope.Set(p.Name, valueBinding(params[i])); err != nil {
				return errorf(ErrDuplicateDefinition, p.Pos, "parameter %q is defined twice", p.Name)
			}
		}

		if isCtor {
			if err := g.constructPrologue(scope, receiver, decl.GetPos()); err != nil {
				return err
			}
		}
		for _, stmt := range decl.CallableBody().Stmts {
			if err := g.lowerStmt(stmt); err != nil {
				return err
			}
		}
		return g.finishFunction(decl)
	})
}

// trimNamespace strips the namespace prefix of a free function's mangled
// name, leaving the base name and any type arguments.
func trimNamespace(mangled string, decl ast.Callable) string {
	fn, ok := decl.(*ast.FunctionDecl)
	if !ok || len(fn.Namespace) == 0 {
		return mangled
	}
	return strings.TrimPrefix(mangled, mangleGlobal(fn.Namespace, ""))
}

// constructPrologue allocates the instance, binds this and runs the field
// initializers in declaration order.
func (g *generator) constructPrologue(scope *Scope, receiver *semantic.Type, pos ast.Position) error {
	rec, err := g.recordOf(receiver, pos)
	if err != nil {
		return err
	}
	if rec.Layout.Kind == Opaque {
		return errorf(ErrInvalidPropertyAccess, pos, "cannot construct opaque type %s", rec.Name)
	}
	this, err := g.allocate(rec.Struct)
	if err != nil {
		return err
	}
	if named, ok := this.(interface{ SetName(string) }); ok {
		named.SetName(g.fn.uniqueName("this"))
	}
	g.fn.this = this
	if err := scope.Set("this", valueBinding(this)); err != nil {
		return err
	}

	class, ok := rec.Decl.(*ast.ClassDecl)
	if !ok {
		return nil
	}
	for _, m := range class.Members {
		pd, ok := m.(*ast.PropertyDecl)
		if !ok || pd.Init == nil {
			continue
		}
		idx, _, err := rec.field(pd.Name, pd.Pos)
		if err != nil {
			return err
		}
		want := semantic.Substitute(g.oracle.TypeOf(pd), g.bindings)
		v, err := g.rvalueAs(pd.Init, want)
		if err != nil {
			return err
		}
		g.block.NewStore(v, g.fieldPtr(rec.Struct, this, idx))
	}
	return nil
}

// finishFunction terminates every open block. Blocks nobody branches to end
// in unreachable; the last reachable one returns void, the constructed
// instance, or is an error when the function must return a value.
func (g *generator) finishFunction(decl ast.Callable) error {
	f := g.fn.fn
	for _, b := range f.Blocks {
		if b.Term != nil {
			continue
		}
		switch {
		case b != g.fn.entry && !hasPredecessors(f, b):
			b.NewUnreachable()
		case g.fn.isCtor:
			b.NewRet(g.fn.this)
		case f.Sig.RetType.Equal(types.Void):
			b.NewRet(nil)
		default:
			return errorf(ErrMissingReturn, decl.GetPos(), "function %s lacks an ending return statement", f.Name())
		}
	}
	return nil
}

func hasPredecessors(f *ir.Func, target *ir.Block) bool {
	for _, b := range f.Blocks {
		if b.Term == nil {
			continue
		}
		for _, succ := range b.Term.Succs() {
			if succ == target {
				return true
			}
		}
	}
	return false
}

// promote moves a parameter into a stack slot so it can be assigned. The
// slot is initialized from the parameter at the top of the entry block.
func (g *generator) promote(name string, p value.Value) (*Binding, error) {
	slot := g.entryAlloca(p.Type(), name+".addr")
	g.insertEntryStore(p, slot)
	b := storageBinding(slot, p.Type())
	if err := g.symbols.Promote(name, b); err != nil {
		return nil, err
	}
	return b, nil
}

// insertEntryStore places a store right after the stack slots of the entry
// block, ahead of any code lowered so far.
func (g *generator) insertEntryStore(src, dst value.Value) {
	g.insertEntry(ir.NewStore(src, dst))
}

// isParam reports whether v is a function parameter still bound by value.
func isParam(v value.Value) bool {
	_, ok := v.(*ir.Param)
	return ok
}

func (g *generator) fieldPtr(st types.Type, base value.Value, idx int) value.Value {
	zero := constant.NewInt(types.I32, 0)
	return g.block.NewGetElementPtr(st, base, zero, constant.NewInt(types.I32, int64(idx)))
}
