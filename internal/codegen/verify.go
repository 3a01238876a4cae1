package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"tsllvm/internal/ast"
)

func invalid(format string, args ...any) error {
	return errorf(ErrInvalidModule, ast.Position{}, format, args...)
}

// verifyFunc checks the structural rules of one function body: every block
// ends in a terminator whose successors belong to the function, returns
// match the signature, and calls pass the callee's parameter types.
func verifyFunc(m *ir.Module, f *ir.Func) error {
	if len(f.Blocks) == 0 {
		return nil
	}
	blocks := make(map[*ir.Block]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		blocks[b] = true
	}
	funcs := make(map[*ir.Func]bool, len(m.Funcs))
	for _, fn := range m.Funcs {
		funcs[fn] = true
	}

	ret := f.Sig.RetType
	for _, b := range f.Blocks {
		if b.Term == nil {
			return invalid("%s: block %s has no terminator", f.Name(), b.Name())
		}
		for _, succ := range b.Term.Succs() {
			if !blocks[succ] {
				return invalid("%s: block %s branches outside the function", f.Name(), b.Name())
			}
		}
		if r, ok := b.Term.(*ir.TermRet); ok {
			switch {
			case r.X == nil && !ret.Equal(types.Void):
				return invalid("%s: bare return from a function returning %s", f.Name(), ret)
			case r.X != nil && !r.X.Type().Equal(ret):
				return invalid("%s: returns %s, signature says %s", f.Name(), r.X.Type(), ret)
			}
		}
		for _, inst := range b.Insts {
			call, ok := inst.(*ir.InstCall)
			if !ok {
				continue
			}
			if err := verifyCall(f, call, funcs); err != nil {
				return err
			}
		}
	}
	return nil
}

func verifyCall(f *ir.Func, call *ir.InstCall, funcs map[*ir.Func]bool) error {
	callee, ok := call.Callee.(*ir.Func)
	if !ok {
		return invalid("%s: indirect call", f.Name())
	}
	if !funcs[callee] {
		return invalid("%s: call to %s, which is not in the module", f.Name(), callee.Name())
	}
	params := callee.Sig.Params
	if len(call.Args) != len(params) {
		return invalid("%s: call to %s passes %d argument(s), expected %d", f.Name(), callee.Name(), len(call.Args), len(params))
	}
	for i, arg := range call.Args {
		if !arg.Type().Equal(params[i]) {
			return invalid("%s: argument %d of %s is %s, expected %s", f.Name(), i+1, callee.Name(), arg.Type(), params[i])
		}
	}
	return nil
}

// VerifyModule checks module-wide rules: unique function, type and global
// names, an i32 entry point, and every function body.
func VerifyModule(m *ir.Module) error {
	seen := make(map[string]bool)
	var entry *ir.Func
	for _, f := range m.Funcs {
		if seen[f.Name()] {
			return invalid("function %s is defined twice", f.Name())
		}
		seen[f.Name()] = true
		if f.Name() == entryName {
			entry = f
		}
	}
	if entry == nil {
		return invalid("module has no %s function", entryName)
	}
	if !entry.Sig.RetType.Equal(types.I32) || len(entry.Sig.Params) != 0 {
		return invalid("%s must take no parameters and return i32", entryName)
	}

	typeNames := make(map[string]bool)
	for _, t := range m.TypeDefs {
		if typeNames[t.Name()] {
			return invalid("type %s is defined twice", t.Name())
		}
		typeNames[t.Name()] = true
	}
	globals := make(map[string]bool)
	for _, gl := range m.Globals {
		if globals[gl.Name()] {
			return invalid("global %s is defined twice", gl.Name())
		}
		globals[gl.Name()] = true
	}

	for _, f := range m.Funcs {
		if err := verifyFunc(m, f); err != nil {
			return err
		}
	}
	return nil
}
