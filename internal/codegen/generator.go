package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"tsllvm/internal/ast"
	"tsllvm/internal/semantic"
)

// Oracle answers the type questions the generator asks about the checked
// program. *semantic.Info implements it.
type Oracle interface {
	TypeOf(n ast.Node) *semantic.Type
	PropertiesOf(t *semantic.Type) []*semantic.Property
	SignatureOf(decl ast.Callable, receiver *semantic.Type) *semantic.Signature
	SymbolOf(e ast.Expr) *semantic.Symbol
	TypeArgumentsOf(t *semantic.Type) []*semantic.Type
	CallTypeArguments(call *ast.CallExpr) []*semantic.Type
	LookupMember(t *semantic.Type, name string) *semantic.Symbol
	IndexSignatureOf(t *semantic.Type) (*ast.IndexSignature, *semantic.Type)
	IsStringInterface(decl *ast.InterfaceDecl) bool
}

var _ Oracle = (*semantic.Info)(nil)

// ---------------------------------------------------------------------------
// generator: owns the output module for one compilation
// ---------------------------------------------------------------------------

type generator struct {
	oracle  Oracle
	target  *Target
	module  *ir.Module
	symbols *SymbolTable

	stringType *types.StructType

	// Append-only caches, keyed by mangled name.
	records  map[string]*TypeRecord
	funcs    map[string]*funcEntry
	declared map[string]*ir.Func
	builtins map[string]*ir.Func
	strings  map[string]constant.Constant

	// Module-level constants bound before lowering starts.
	prebound map[*ast.VarDecl]bool

	warnings []Warning

	// Cursor: the function and block instructions are appended to, and the
	// type parameter bindings of the instantiation being lowered.
	fn       *funcState
	block    *ir.Block
	bindings semantic.Bindings

	main *funcState
}

// emitState tracks a function through emission. Absent from the cache means
// unseen.
type emitState int

const (
	stateInProgress emitState = iota + 1
	stateEmitted
)

type funcEntry struct {
	fn    *ir.Func
	state emitState
}

// funcState is the per-function lowering context.
type funcState struct {
	fn      *ir.Func
	entry   *ir.Block
	allocas int // leading entry instructions reserved for stack slots
	names   map[string]int
	loops   []loopTarget
	this    value.Value
	isCtor  bool
	ret     *semantic.Type
}

type loopTarget struct {
	brk  *ir.Block
	cont *ir.Block
}

func newGenerator(oracle Oracle, target *Target) *generator {
	m := ir.NewModule()
	m.TargetTriple = target.Triple
	m.DataLayout = target.DataLayout

	g := &generator{
		oracle:   oracle,
		target:   target,
		module:   m,
		symbols:  NewSymbolTable(),
		records:  make(map[string]*TypeRecord),
		funcs:    make(map[string]*funcEntry),
		declared: make(map[string]*ir.Func),
		builtins: make(map[string]*ir.Func),
		strings:  make(map[string]constant.Constant),
		prebound: make(map[*ast.VarDecl]bool),
	}
	g.stringType = types.NewStruct(types.I8Ptr, types.I32)
	m.NewTypeDef("string", g.stringType)
	return g
}

func newFuncState(f *ir.Func, isCtor bool) *funcState {
	s := &funcState{fn: f, names: make(map[string]int), isCtor: isCtor}
	for _, p := range f.Params {
		s.names[p.Name()]++
	}
	s.entry = f.NewBlock(s.uniqueName("entry"))
	return s
}

// uniqueName returns name, suffixed when the function already uses it.
// Blocks and named values share one namespace.
func (s *funcState) uniqueName(name string) string {
	n := s.names[name]
	s.names[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s.%d", name, n)
}

func (g *generator) warn(pos ast.Position, format string, args ...any) {
	g.warnings = append(g.warnings, Warning{Message: fmt.Sprintf(format, args...), Pos: pos})
}

// ---------------------------------------------------------------------------
// Cursor
// ---------------------------------------------------------------------------

// saveCursor records the insertion point, the type bindings and the scope
// stack. The returned function restores all three; callers defer it around
// on-demand emission of another function.
func (g *generator) saveCursor() (restore func()) {
	fn, block, bindings := g.fn, g.block, g.bindings
	stack := g.symbols.stack
	return func() {
		g.fn, g.block, g.bindings = fn, block, bindings
		g.symbols.stack = stack
	}
}

func (g *generator) newBlock(name string) *ir.Block {
	return g.fn.fn.NewBlock(g.fn.uniqueName(name))
}

// ---------------------------------------------------------------------------
// Module-level lowering
// ---------------------------------------------------------------------------

// lowerProgram fills the module from every file of the program. Top-level
// statements accumulate in the synthetic entry function, which returns 0
// once all files are processed.
func (g *generator) lowerProgram(prog *ast.Program) error {
	mainFn, err := g.newFunc(entryName, types.I32)
	if err != nil {
		return err
	}
	g.main = newFuncState(mainFn, false)
	g.funcs[entryName] = &funcEntry{fn: mainFn, state: stateInProgress}
	g.fn, g.block = g.main, g.main.entry

	for _, file := range prog.Files {
		if err := g.declareGlobals(file.Stmts, nil, file.Ambient); err != nil {
			return err
		}
	}
	for _, file := range prog.Files {
		if file.Ambient {
			continue
		}
		for _, stmt := range file.Stmts {
			if err := g.lowerModuleStmt(stmt, nil); err != nil {
				return err
			}
		}
	}

	g.fn = g.main
	if g.block.Term == nil {
		g.block.NewRet(constant.NewInt(types.I32, 0))
	}
	g.funcs[entryName].state = stateEmitted
	if err := verifyFunc(g.module, mainFn); err != nil {
		return err
	}
	return VerifyModule(g.module)
}

// declareGlobals creates a module global for every file- or namespace-level
// variable so function bodies can reference it regardless of source order.
// Constants initialized with a literal are bound to the constant itself.
func (g *generator) declareGlobals(stmts []ast.Stmt, ns []string, ambient bool) error {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.NamespaceDecl:
			if err := g.declareGlobals(s.Body, s.Path(), ambient || s.Ambient); err != nil {
				return err
			}
		case *ast.VarStmt:
			scope, err := g.namespaceScope(ns)
			if err != nil {
				return err
			}
			for _, d := range s.Decls {
				b, err := g.globalBinding(s, d, ns, ambient || s.Ambient)
				if err != nil {
					return err
				}
				if err := scope.Set(d.Name, b); err != nil {
					return errorf(ErrDuplicateDefinition, d.Pos, "%q is already defined", d.Name)
				}
			}
		}
	}
	return nil
}

func (g *generator) globalBinding(s *ast.VarStmt, d *ast.VarDecl, ns []string, ambient bool) (*Binding, error) {
	if s.IsConst() && !ambient {
		if c := g.literalConstant(d.Init); c != nil {
			g.prebound[d] = true
			return valueBinding(c), nil
		}
	}

	name := mangleGlobal(ns, d.Name)
	if name == entryName {
		return nil, errorf(ErrDuplicateDefinition, d.Pos, "%q collides with the program entry point", name)
	}
	if g.lookupGlobal(name) != nil {
		return nil, errorf(ErrDuplicateDefinition, d.Pos, "global %q is already defined", name)
	}
	lt, err := g.layoutOf(g.typeOf(d), d.Pos)
	if err != nil {
		return nil, err
	}
	if ambient {
		return storageBinding(g.module.NewGlobal(name, lt), lt), nil
	}
	return storageBinding(g.module.NewGlobalDef(name, zeroValue(lt)), lt), nil
}

// literalConstant returns the constant of a literal initializer, or nil.
func (g *generator) literalConstant(e ast.Expr) constant.Constant {
	switch e := ast.Unparen(e).(type) {
	case *ast.NumberLit:
		return constant.NewFloat(types.Double, e.Value)
	case *ast.BoolLit:
		return constant.NewBool(e.Value)
	case *ast.StringLit:
		return g.stringConst(e.Value)
	}
	return nil
}

func (g *generator) lookupGlobal(name string) *ir.Global {
	for _, gl := range g.module.Globals {
		if gl.Name() == name {
			return gl
		}
	}
	return nil
}

// lowerModuleStmt lowers a statement at file or namespace level.
func (g *generator) lowerModuleStmt(stmt ast.Stmt, ns []string) error {
	switch s := stmt.(type) {
	case *ast.VarStmt:
		if s.Ambient {
			return nil
		}
		return g.lowerModuleVar(s, ns)
	case *ast.NamespaceDecl:
		if s.Ambient {
			return nil
		}
		scope, err := g.namespaceScope(s.Path())
		if err != nil {
			return err
		}
		return g.symbols.Within(scope, func(*Scope) error {
			for _, inner := range s.Body {
				if err := g.lowerModuleStmt(inner, s.Path()); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.lowerStmt(stmt)
}

// lowerModuleVar stores the initializers of module-level variables into the
// globals created by declareGlobals.
func (g *generator) lowerModuleVar(s *ast.VarStmt, ns []string) error {
	scope, err := g.namespaceScope(ns)
	if err != nil {
		return err
	}
	for _, d := range s.Decls {
		if g.prebound[d] || d.Init == nil {
			continue
		}
		g.ensureOpenBlock()
		b, ok := scope.Lookup(d.Name)
		if !ok || b.Kind != BindStorage {
			return errorf(ErrUnknownIdentifier, d.Pos, "%q", d.Name)
		}
		v, err := g.rvalueAs(d.Init, g.typeOf(d))
		if err != nil {
			return err
		}
		g.block.NewStore(v, b.Value)
	}
	return nil
}

// namespaceScope returns the scope of a namespace chain, creating missing
// namespaces in their parents. An empty chain is the global scope.
func (g *generator) namespaceScope(ns []string) (*Scope, error) {
	chain, err := g.namespaceChain(ns)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return g.symbols.Global(), nil
	}
	return chain[len(chain)-1], nil
}

func (g *generator) namespaceChain(ns []string) ([]*Scope, error) {
	chain := make([]*Scope, 0, len(ns))
	scope := g.symbols.Global()
	for _, name := range ns {
		b, ok := scope.Lookup(name)
		if !ok {
			inner := NewScope(name)
			if err := scope.Set(name, namespaceBinding(inner)); err != nil {
				return nil, err
			}
			b = namespaceBinding(inner)
		} else if b.Kind != BindNamespace {
			return nil, errorf(ErrDuplicateDefinition, ast.Position{}, "%q is not a namespace", name)
		}
		scope = b.Scope
		chain = append(chain, scope)
	}
	return chain, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// typeOf returns the checked type of n with the current instantiation's type
// arguments substituted.
func (g *generator) typeOf(n ast.Node) *semantic.Type {
	return semantic.Substitute(g.oracle.TypeOf(n), g.bindings)
}

func (g *generator) newFunc(name string, ret types.Type, params ...*ir.Param) (*ir.Func, error) {
	if _, ok := g.declared[name]; ok {
		return nil, errorf(ErrDuplicateDefinition, ast.Position{}, "function %q is already defined", name)
	}
	f := g.module.NewFunc(name, ret, params...)
	g.declared[name] = f
	return f, nil
}

func (g *generator) lookupFunc(name string) *ir.Func {
	return g.declared[name]
}

// entryAlloca reserves a stack slot in the entry block of the current
// function, ahead of every other instruction there.
func (g *generator) entryAlloca(t types.Type, name string) *ir.InstAlloca {
	slot := ir.NewAlloca(t)
	slot.SetName(g.fn.uniqueName(name))
	g.insertEntry(slot)
	return slot
}

func (g *generator) insertEntry(inst ir.Instruction) {
	entry := g.fn.entry
	i := g.fn.allocas
	entry.Insts = append(entry.Insts, nil)
	copy(entry.Insts[i+1:], entry.Insts[i:])
	entry.Insts[i] = inst
	g.fn.allocas++
}

// ensureOpenBlock moves the cursor to a fresh block when the current one is
// already terminated. The new block has no predecessors.
func (g *generator) ensureOpenBlock() {
	if g.block.Term != nil {
		g.block = g.newBlock("after")
	}
}

func zeroValue(t types.Type) constant.Constant {
	switch t := t.(type) {
	case *types.FloatType:
		return constant.NewFloat(t, 0)
	case *types.IntType:
		return constant.NewInt(t, 0)
	case *types.PointerType:
		return constant.NewNull(t)
	}
	return constant.NewZeroInitializer(t)
}
