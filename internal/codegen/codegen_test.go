package codegen

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"tsllvm/internal/ast"
	"tsllvm/internal/loader"
	"tsllvm/internal/semantic"
)

// helper: load source with the ambient library, type check, fail on errors.
func mustCheck(t *testing.T, src string) (*ast.Program, *semantic.Info) {
	t.Helper()
	prog, loadErrs := loader.LoadSource("test.ts", src)
	if len(loadErrs) > 0 {
		t.Fatalf("load errors: %v", loadErrs)
	}
	info, diags := semantic.Check(prog)
	var errs []semantic.Diagnostic
	for _, d := range diags {
		if d.Severity == semantic.Error {
			errs = append(errs, d)
		}
	}
	if len(errs) > 0 {
		t.Fatalf("semantic errors: %v", errs)
	}
	return prog, info
}

func lowerSource(t *testing.T, src string) (*ir.Module, []Warning, error) {
	t.Helper()
	prog, info := mustCheck(t, src)
	return Lower(prog, info, linuxAMD64Target())
}

func mustLower(t *testing.T, src string) *ir.Module {
	t.Helper()
	mod, _, err := lowerSource(t, src)
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	return mod
}

func mustFunc(t *testing.T, mod *ir.Module, name string) *ir.Func {
	t.Helper()
	var found *ir.Func
	count := 0
	for _, f := range mod.Funcs {
		if f.Name() == name {
			found = f
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one function %q, found %d", name, count)
	}
	return found
}

func hasFunc(mod *ir.Module, name string) bool {
	for _, f := range mod.Funcs {
		if f.Name() == name {
			return true
		}
	}
	return false
}

func insts(f *ir.Func) []ir.Instruction {
	var all []ir.Instruction
	for _, b := range f.Blocks {
		all = append(all, b.Insts...)
	}
	return all
}

func count(f *ir.Func, match func(ir.Instruction) bool) int {
	n := 0
	for _, inst := range insts(f) {
		if match(inst) {
			n++
		}
	}
	return n
}

func callsTo(f *ir.Func, callee string) []*ir.InstCall {
	var calls []*ir.InstCall
	for _, inst := range insts(f) {
		if c, ok := inst.(*ir.InstCall); ok {
			if fn, ok := c.Callee.(*ir.Func); ok && fn.Name() == callee {
				calls = append(calls, c)
			}
		}
	}
	return calls
}

func blockNamed(t *testing.T, f *ir.Func, name string) *ir.Block {
	t.Helper()
	for _, b := range f.Blocks {
		if b.Name() == name {
			return b
		}
	}
	t.Fatalf("%s has no block %q", f.Name(), name)
	return nil
}

// ---------------------------------------------------------------------------
// Target helpers for tests
// ---------------------------------------------------------------------------

func linuxAMD64Target() *Target {
	tgt, _ := ResolveTarget("linux", "amd64")
	return tgt
}

func linux386Target() *Target {
	tgt, _ := ResolveTarget("linux", "386")
	return tgt
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestLowerFunctionCall(t *testing.T) {
	mod := mustLower(t, `
function add(a: number, b: number): number { return a + b; }
let r = add(1, 2);`)

	add := mustFunc(t, mod, "add")
	if len(add.Params) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(add.Params))
	}
	for _, p := range add.Params {
		if !p.Typ.Equal(types.Double) {
			t.Errorf("parameter %s has type %s, expected double", p.Name(), p.Typ)
		}
	}
	if !add.Sig.RetType.Equal(types.Double) {
		t.Errorf("return type is %s, expected double", add.Sig.RetType)
	}

	calls := callsTo(mustFunc(t, mod, "main"), "add")
	if len(calls) != 1 {
		t.Fatalf("expected 1 call to add, got %d", len(calls))
	}
	for _, arg := range calls[0].Args {
		if _, ok := arg.(*constant.Float); !ok {
			t.Errorf("expected numeric constant argument, got %T", arg)
		}
	}
}

func TestLowerConstructorAllocation(t *testing.T) {
	mod := mustLower(t, `
class Counter {
  count: number;
  constructor(start: number) { this.count = start; }
}
let c = new Counter(5);`)

	ctor := mustFunc(t, mod, "Counter__constructor")
	allocs := callsTo(ctor, builtinAllocate)
	if len(allocs) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(allocs))
	}
	size, ok := allocs[0].Args[0].(*constant.Int)
	if !ok || size.X.Int64() != 8 {
		t.Errorf("expected allocation of 8 bytes, got %v", allocs[0].Args[0])
	}
	stores := count(ctor, func(i ir.Instruction) bool { _, ok := i.(*ir.InstStore); return ok })
	if stores != 1 {
		t.Errorf("expected 1 field store, got %d", stores)
	}

	last := ctor.Blocks[len(ctor.Blocks)-1]
	ret, ok := last.Term.(*ir.TermRet)
	if !ok {
		t.Fatalf("constructor ends in %T, expected ret", last.Term)
	}
	cast, ok := ret.X.(*ir.InstBitCast)
	if !ok || cast.From != value.Value(allocs[0]) {
		t.Errorf("constructor should return the allocated instance, returns %v", ret.X)
	}
	if len(callsTo(mustFunc(t, mod, "main"), "Counter__constructor")) != 1 {
		t.Error("expected main to call the constructor once")
	}
}

func TestLowerBitwiseAnd(t *testing.T) {
	mod := mustLower(t, `
function mask(a: number, b: number): number { return a & b; }
let m = mask(6, 3);`)

	f := mustFunc(t, mod, "mask")
	toInt := count(f, func(i ir.Instruction) bool { _, ok := i.(*ir.InstFPToSI); return ok })
	and := count(f, func(i ir.Instruction) bool { _, ok := i.(*ir.InstAnd); return ok })
	toFloat := count(f, func(i ir.Instruction) bool { _, ok := i.(*ir.InstSIToFP); return ok })
	if toInt != 2 || and != 1 || toFloat != 1 {
		t.Fatalf("expected fptosi=2 and=1 sitofp=1, got %d %d %d", toInt, and, toFloat)
	}
}

func TestLowerShiftMasksCount(t *testing.T) {
	mod := mustLower(t, `
function shl(a: number, b: number): number { return a << b; }
function ushr(a: number, b: number): number { return a >>> b; }
let x = shl(1, 40) + ushr(8, 1);`)

	shl := mustFunc(t, mod, "shl")
	if n := count(shl, func(i ir.Instruction) bool { _, ok := i.(*ir.InstAnd); return ok }); n != 1 {
		t.Errorf("expected the shift count to be masked once, got %d and(s)", n)
	}
	if n := count(shl, func(i ir.Instruction) bool { _, ok := i.(*ir.InstShl); return ok }); n != 1 {
		t.Errorf("expected 1 shl, got %d", n)
	}
	ushr := mustFunc(t, mod, "ushr")
	if n := count(ushr, func(i ir.Instruction) bool { _, ok := i.(*ir.InstUIToFP); return ok }); n != 1 {
		t.Errorf("expected >>> to convert back unsigned, got %d uitofp", n)
	}
}

func TestLowerGenericMethodEmittedOnce(t *testing.T) {
	mod := mustLower(t, `
class Box<T> {
  value: T;
  constructor(value: T) { this.value = value; }
  get(): T { return this.value; }
}
let b = new Box<number>(1);
let x = b.get();
let y = b.get();`)

	get := mustFunc(t, mod, "Box__number__get")
	calls := callsTo(mustFunc(t, mod, "main"), "Box__number__get")
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	for _, c := range calls {
		if c.Callee != value.Value(get) {
			t.Error("call sites should share one definition")
		}
	}
}

func TestLowerGenericFunctionPerInstantiation(t *testing.T) {
	mod := mustLower(t, `
function identity<T>(x: T): T { return x; }
let a = identity(1);
let b = identity(2);
let s = identity("s");`)

	mustFunc(t, mod, "identity__number")
	mustFunc(t, mod, "identity__string")
	if hasFunc(mod, "identity") {
		t.Error("generic function should not be emitted uninstantiated")
	}
}

func TestLowerGenericMethodTypeArgument(t *testing.T) {
	mod := mustLower(t, `
class Box<T> {
  value: T;
  constructor(value: T) { this.value = value; }
  echo<U>(u: U): U { return u; }
}
let b = new Box<number>(1);
let s = b.echo("x");`)

	mustFunc(t, mod, "Box__number__echo__string")
}

func TestLowerParameterPromotion(t *testing.T) {
	mod := mustLower(t, `
function bump(n: number): number { n = n + 1; return n * 2; }
let r = bump(1);`)

	f := mustFunc(t, mod, "bump")
	entry := f.Blocks[0]
	slot, ok := entry.Insts[0].(*ir.InstAlloca)
	if !ok {
		t.Fatalf("expected a stack slot first, got %T", entry.Insts[0])
	}
	if slot.Name() != "n.addr" {
		t.Errorf("slot is named %q", slot.Name())
	}
	init, ok := entry.Insts[1].(*ir.InstStore)
	if !ok || init.Src != value.Value(f.Params[0]) || init.Dst != value.Value(slot) {
		t.Fatalf("expected the parameter to be stored into its slot, got %v", entry.Insts[1])
	}

	for _, inst := range insts(f)[2:] {
		switch inst := inst.(type) {
		case *ir.InstFAdd:
			if ld, ok := inst.X.(*ir.InstLoad); !ok || ld.Src != value.Value(slot) {
				t.Error("read before the write should load from the slot")
			}
		case *ir.InstFMul:
			if ld, ok := inst.X.(*ir.InstLoad); !ok || ld.Src != value.Value(slot) {
				t.Error("read after the write should load from the slot")
			}
		case *ir.InstStore:
			if inst.Dst != value.Value(slot) {
				t.Error("write should target the slot")
			}
		}
	}
}

func TestLowerLoopPromotesBeforeHeader(t *testing.T) {
	mod := mustLower(t, `
function countdown(n: number): number {
  let steps = 0;
  while (n > 0) { n--; steps++; }
  return steps;
}
let s = countdown(3);`)

	f := mustFunc(t, mod, "countdown")
	cond := blockNamed(t, f, "while.cond")
	var cmp *ir.InstFCmp
	for _, inst := range cond.Insts {
		if c, ok := inst.(*ir.InstFCmp); ok {
			cmp = c
		}
	}
	if cmp == nil {
		t.Fatal("loop header has no comparison")
	}
	ld, ok := cmp.X.(*ir.InstLoad)
	if !ok {
		t.Fatalf("loop header reads %T, expected a load", cmp.X)
	}
	slot, ok := ld.Src.(*ir.InstAlloca)
	if !ok || slot.Name() != "n.addr" {
		t.Errorf("loop header should read the promoted slot, reads %v", ld.Src)
	}
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

const richProgram = `
interface Point { x: number; y: number; }
class Accumulator {
  total: number = 0;
  constructor() {}
  add(p: Point): void { this.total += p.x + p.y; }
}
function classify(n: number): string {
  if (n < 0) {
    return "negative";
  } else if (n == 0) {
    return "zero";
  }
  return "positive";
}
function sum(limit: number): number {
  let acc = 0;
  for (let i = 0; i < limit; i++) {
    if (i % 2 == 0) { continue; }
    if (i > 100) { break; }
    acc += i;
  }
  return acc;
}
let acc = new Accumulator();
acc.add({ x: 1, y: 2 });
let label = classify(sum(10)) + "!";
let xs: number[] = [1, 2, 3];
let first = xs[0] + xs.length;
console.log(label);`

func TestLowerDeterministic(t *testing.T) {
	a := mustLower(t, richProgram).String()
	b := mustLower(t, richProgram).String()
	if a != b {
		t.Fatal("lowering the same input twice produced different modules")
	}
}

func TestLowerTerminators(t *testing.T) {
	mod := mustLower(t, richProgram)
	for _, f := range mod.Funcs {
		for _, b := range f.Blocks {
			if b.Term == nil {
				t.Errorf("%s: block %s has no terminator", f.Name(), b.Name())
			}
		}
	}
	if err := VerifyModule(mod); err != nil {
		t.Fatalf("VerifyModule: %v", err)
	}
}

func TestLowerMemoizesCallees(t *testing.T) {
	mod := mustLower(t, `
function add(a: number, b: number): number { return a + b; }
let x = add(1, 2);
let y = add(3, 4);`)

	add := mustFunc(t, mod, "add")
	calls := callsTo(mustFunc(t, mod, "main"), "add")
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	for _, c := range calls {
		if c.Callee != value.Value(add) {
			t.Error("both calls should target the same function")
		}
	}
}

func TestLowerRecursion(t *testing.T) {
	mod := mustLower(t, `
function fib(n: number): number {
  if (n <= 1) { return n; }
  return fib(n - 1) + fib(n - 2);
}
let f = fib(10);`)

	fib := mustFunc(t, mod, "fib")
	if n := len(callsTo(fib, "fib")); n != 2 {
		t.Errorf("expected 2 recursive calls, got %d", n)
	}
}

func TestScopeDepthRestoredAfterError(t *testing.T) {
	prog, info := mustCheck(t, `
function bad(x: number): number {
  if (x > 0) { { return 1; } }
}
let y = bad(2);`)

	g := newGenerator(info, linuxAMD64Target())
	err := g.lowerProgram(prog)
	if !errors.Is(err, ErrMissingReturn) {
		t.Fatalf("expected ErrMissingReturn, got %v", err)
	}
	if d := g.symbols.Depth(); d != 1 {
		t.Errorf("scope depth after error is %d, expected 1", d)
	}
	if g.fn != g.main {
		t.Error("cursor was not restored to the entry function")
	}
}

func TestLayoutStable(t *testing.T) {
	prog, info := mustCheck(t, `
class Pair {
  a: number;
  b: boolean;
  constructor() { this.a = 1; this.b = true; }
}
let p = new Pair();`)

	user := prog.Files[len(prog.Files)-1]
	decl := user.Stmts[1].(*ast.VarStmt).Decls[0]
	typ := info.TypeOf(decl)

	g := newGenerator(info, linuxAMD64Target())
	first, err := g.recordOf(typ, decl.Pos)
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.recordOf(typ, decl.Pos)
	if err != nil {
		t.Fatal(err)
	}
	if first != second || len(first.Layout.Fields) != 2 {
		t.Fatalf("expected one record with 2 fields, got %d and %d", len(first.Layout.Fields), len(second.Layout.Fields))
	}
	if !first.Layout.Fields[0].Equal(types.Double) || !first.Layout.Fields[1].Equal(types.I1) {
		t.Errorf("unexpected field order: %v", first.Layout.Fields)
	}
	if got := g.sizeOf(first.Struct); got != 16 {
		t.Errorf("expected size 16, got %d", got)
	}
}

func TestSizeOfFollowsTarget(t *testing.T) {
	st := types.NewStruct(types.Double, types.I1)
	tests := []struct {
		target *Target
		size   int64
	}{
		{linuxAMD64Target(), 16},
		{linux386Target(), 12},
	}
	for _, tt := range tests {
		g := newGenerator(nil, tt.target)
		if got := g.sizeOf(st); got != tt.size {
			t.Errorf("%s: sizeOf = %d, expected %d", tt.target, got, tt.size)
		}
		if got := g.sizeOf(types.I8Ptr); got != int64(tt.target.PtrSize) {
			t.Errorf("%s: pointer size = %d", tt.target, got)
		}
	}
}

// ---------------------------------------------------------------------------
// Expressions and statements
// ---------------------------------------------------------------------------

func TestLowerValidPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"globals from functions", "let counter = 0; function bump(): void { counter += 1; } bump();"},
		{"while", "let i = 0; while (i < 10) { i++; }"},
		{"break continue", "while (true) { break; } for (let i = 0; i < 3; ++i) { continue; }"},
		{"number condition", "let n = 3; if (n) { n = 0; }"},
		{"bitwise", "let x = 5; x = x & 3 | 8 ^ 1; x <<= 2; x >>= 1; x >>>= 1; let y = ~x;"},
		{"string members", `let s = "abc"; let n = s.length; let t = s.concat("d");`},
		{"anonymous object", "let o = { a: 1, b: true }; let x = o.a; o.a = 2;"},
		{"namespace", `
namespace Geometry {
  export function area(w: number, h: number): number { return w * h; }
  export const unit = 1;
}
let a = Geometry.area(2, 3) + Geometry.unit;`},
		{"namespace internal access", `
namespace N {
  function hidden(): number { return 1; }
  export function visible(): number { return hidden(); }
}
let v = N.visible();`},
		{"merged namespace", `
namespace M { export function f(): number { return 1; } }
namespace M { export function g(): number { return f() + 1; } }
let x = M.g();`},
		{"forward reference to global", "function read(): number { return later; } let later = 4; let r = read();"},
		{"class methods", `
class Point {
  x: number;
  y: number;
  constructor(x: number, y: number) { this.x = x; this.y = y; }
  norm(): number { return this.x * this.x + this.y * this.y; }
}
let p = new Point(1, 2);
let n = p.norm();
p.x = 3;`},
		{"array element write", "let xs: number[] = [1, 2]; xs[1] = 5; let ys = new Array<number>();"},
		{"void early return", "function f(x: number): void { if (x > 1) { return; } x = 2; } f(3);"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustLower(t, tt.src)
		})
	}
}

func TestLowerStringLiteralDedup(t *testing.T) {
	mod := mustLower(t, `let s = "hi"; let u = "hi"; let v = "other";`)
	n := 0
	for _, g := range mod.Globals {
		if strings.HasPrefix(g.Name(), ".str.") {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("expected 2 string globals, got %d", n)
	}
}

func TestLowerStringConcat(t *testing.T) {
	mod := mustLower(t, `let s = "a" + "b"; let t = s.concat("c");`)
	mustFunc(t, mod, builtinConcat)
	if n := len(callsTo(mustFunc(t, mod, "main"), builtinConcat)); n != 2 {
		t.Errorf("expected 2 concat calls, got %d", n)
	}
}

func TestLowerLogicalShortCircuit(t *testing.T) {
	mod := mustLower(t, `
function both(a: boolean, b: boolean): boolean { return a && b; }
let r = both(true, false);`)

	f := mustFunc(t, mod, "both")
	end := blockNamed(t, f, "and.end")
	if _, ok := end.Insts[0].(*ir.InstPhi); !ok {
		t.Errorf("expected a phi at the join, got %T", end.Insts[0])
	}
	blockNamed(t, f, "and.rhs")
}

func TestLowerArrayRuntime(t *testing.T) {
	mod := mustLower(t, `let xs: number[] = [1, 2]; let n = xs.length; let f = xs[0];`)

	for _, name := range []string{
		"Array__number__constructor",
		"Array__number__push",
		"Array__number__length",
		"Array__number__subscript",
	} {
		f := mustFunc(t, mod, name)
		if len(f.Blocks) != 0 {
			t.Errorf("%s should be a declaration", name)
		}
	}
	sub := mustFunc(t, mod, "Array__number__subscript")
	if !sub.Sig.RetType.Equal(types.NewPointer(types.Double)) {
		t.Errorf("subscript returns %s, expected double*", sub.Sig.RetType)
	}
	if n := len(callsTo(mustFunc(t, mod, "main"), "Array__number__push")); n != 2 {
		t.Errorf("expected 2 push calls, got %d", n)
	}
}

func TestLowerArrayLength(t *testing.T) {
	mod := mustLower(t, `
interface P { x: number; }
let xs: number[] = [1, 2];
let n = xs.length;
let ps = new Array<P>();
let m = ps.length + n;`)

	for _, name := range []string{"Array__number__length", "Array__P__length"} {
		f := mustFunc(t, mod, name)
		if !f.Sig.RetType.Equal(types.Double) {
			t.Errorf("%s returns %s, expected double", name, f.Sig.RetType)
		}
		if len(f.Params) != 1 {
			t.Errorf("%s should take only the receiver, got %d parameters", name, len(f.Params))
		}
		if n := len(callsTo(mustFunc(t, mod, "main"), name)); n != 1 {
			t.Errorf("expected 1 call to %s, got %d", name, n)
		}
	}
}

func TestLowerExplicitTypeArguments(t *testing.T) {
	mod := mustLower(t, `
function identity<T>(v: T): T { return v; }
let n = identity<number>(4);
let s = identity<string>("s") + "!";`)

	id := mustFunc(t, mod, "identity__number")
	calls := callsTo(mustFunc(t, mod, "main"), "identity__number")
	if len(calls) != 1 || calls[0].Callee != value.Value(id) {
		t.Fatalf("expected one call to identity__number, got %d", len(calls))
	}
	mustFunc(t, mod, "identity__string")
}

func TestLowerObjectLiteralConvertsToInterface(t *testing.T) {
	mod := mustLower(t, `
interface P { x: number; y: number; }
function sum(p: P): number { return p.x + p.y; }
let o = { y: 2, x: 1 };
let s = sum(o);`)

	main := mustFunc(t, mod, "main")
	if n := len(callsTo(main, builtinAllocate)); n != 2 {
		t.Errorf("expected the literal and its interface copy to be allocated, got %d allocations", n)
	}
}

func TestLowerNamespaceGlobal(t *testing.T) {
	mod := mustLower(t, `namespace Config { export let level = 3; } let l = Config.level;`)
	found := false
	for _, g := range mod.Globals {
		if g.Name() == "Config__level" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected global Config__level")
	}
	mustFunc(t, mod, "main")
}

func TestLowerNestedNamespaceFunction(t *testing.T) {
	mod := mustLower(t, `
namespace A.B {
  export function f(): number { return 1; }
}
let x = A.B.f();`)
	mustFunc(t, mod, "A__B__f")
}

func TestLowerAmbientFunction(t *testing.T) {
	mod := mustLower(t, `declare function ext(x: number): number; let y = ext(1); console.log("done");`)
	if f := mustFunc(t, mod, "ext"); len(f.Blocks) != 0 {
		t.Error("ambient function should only be declared")
	}
	mustFunc(t, mod, "console__log")
}

func TestLowerConstAdoptsName(t *testing.T) {
	mod := mustLower(t, `
function f(a: number): number { const twice = a * 2; return twice; }
let r = f(1);`)

	f := mustFunc(t, mod, "f")
	named := count(f, func(i ir.Instruction) bool {
		m, ok := i.(*ir.InstFMul)
		return ok && m.Name() == "twice"
	})
	if named != 1 {
		t.Error("constant initializer should carry the constant's name")
	}
	if n := count(f, func(i ir.Instruction) bool { _, ok := i.(*ir.InstAlloca); return ok }); n != 0 {
		t.Errorf("constants need no stack slot, got %d alloca(s)", n)
	}
}

func TestLowerUnreachableLoopExit(t *testing.T) {
	mod := mustLower(t, `
function forever(): number { while (true) { return 1; } }
let x = forever();`)

	f := mustFunc(t, mod, "forever")
	end := blockNamed(t, f, "while.end")
	if _, ok := end.Term.(*ir.TermUnreachable); !ok {
		t.Errorf("exit block without predecessors should be unreachable, got %T", end.Term)
	}
}

func TestLowerWarnings(t *testing.T) {
	_, warnings, err := lowerSource(t, `
type N = number;
function fail(): void { throw "boom"; }
fail();`)
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", warnings)
	}
	if !strings.Contains(warnings[1].String(), "throw") {
		t.Errorf("unexpected warning %q", warnings[1])
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestLowerErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind error
	}{
		{"missing return", "function f(x: number): number { if (x > 0) { return 1; } } let y = f(1);", ErrMissingReturn},
		{"two type parameters", "function first<A, B>(a: A, b: B): A { return a; } let x = first(1, true);", ErrUnsupportedType},
		{"missing constructor", "class Empty { n: number = 1; } let e = new Empty();", ErrMissingConstructor},
		{"entry point collision", "function main(): void {} main();", ErrDuplicateDefinition},
		{"interface method without implementation", "interface Shape { area(): number; } declare let s: Shape; let a = s.area();", ErrInvalidCallTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := lowerSource(t, tt.src)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			var cgErr *Error
			if !errors.As(err, &cgErr) {
				t.Fatalf("expected *codegen.Error, got %T", err)
			}
		})
	}
}

func TestMangle(t *testing.T) {
	if got := mangleGlobal([]string{"A", "B"}, "x"); got != "A__B__x" {
		t.Errorf("mangleGlobal = %q", got)
	}
	if got := mangleGlobal(nil, "x"); got != "x" {
		t.Errorf("mangleGlobal = %q", got)
	}
	for _, typ := range []*semantic.Type{semantic.TypeNumber, semantic.TypeString, semantic.TypeBoolean} {
		got, err := mangleType(nil, typ)
		if err != nil || got != typ.Name {
			t.Errorf("mangleType(%s) = %q, %v", typ, got, err)
		}
	}
	if _, err := mangleType(nil, semantic.TypeAny); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType for any, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

func TestGenerateWritesIR(t *testing.T) {
	prog, info := mustCheck(t, `function add(a: number, b: number): number { return a + b; } let r = add(1, 2);`)

	var log bytes.Buffer
	opts := DefaultOptions()
	opts.Target = linuxAMD64Target()
	opts.BuildDir = t.TempDir()
	opts.Verbose = true
	opts.Log = &log

	result, err := Generate(prog, info, opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.IRFile == "" {
		t.Fatal("expected IR file path")
	}
	data, err := os.ReadFile(result.IRFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "define i32 @main()") {
		t.Error("expected the entry function in the IR file")
	}
	if !strings.Contains(string(data), "x86_64-pc-linux-gnu") {
		t.Error("expected the target triple in the IR file")
	}
	if !strings.Contains(log.String(), "[codegen]") {
		t.Error("expected verbose [codegen] lines")
	}
	if result.ObjFile != "" || result.ExeFile != "" {
		t.Error("object and executable should not be produced by default")
	}
}

func TestGenerateInMemory(t *testing.T) {
	prog, info := mustCheck(t, `let x = 1;`)
	opts := &Options{Target: linuxAMD64Target()}
	result, err := Generate(prog, info, opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.IRFile != "" {
		t.Error("no file should be written")
	}
	if result.Module == nil || !strings.Contains(result.IR, "@main") {
		t.Error("expected the module in the result")
	}
}

func TestToolchainArgs(t *testing.T) {
	tc := NewToolchain(linuxAMD64Target(), "out", "prog")
	args := strings.Join(tc.compileArgs(), " ")
	if !strings.Contains(args, "-mtriple=x86_64-pc-linux-gnu") || !strings.Contains(args, "-filetype=obj") {
		t.Errorf("unexpected llc arguments: %s", args)
	}
	tc.Runtime = []string{"runtime.a"}
	link := strings.Join(tc.linkArgs(), " ")
	if !strings.Contains(link, "runtime.a") {
		t.Errorf("runtime object missing from link arguments: %s", link)
	}
}

// ---------------------------------------------------------------------------
// Targets
// ---------------------------------------------------------------------------

func TestParseTarget(t *testing.T) {
	tests := []struct {
		spec   string
		os     OS
		arch   Arch
		triple string
	}{
		{"linux/amd64", OS_Linux, Arch_x86_64, "x86_64-pc-linux-gnu"},
		{"darwin/arm64", OS_Darwin, Arch_ARM64, "arm64-apple-darwin"},
		{"windows/amd64", OS_Windows, Arch_x86_64, "x86_64-pc-windows-msvc"},
		{"aarch64-unknown-linux-gnu", OS_Linux, Arch_ARM64, "aarch64-unknown-linux-gnu"},
		{"x86_64-apple-darwin", OS_Darwin, Arch_x86_64, "x86_64-apple-darwin"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			tgt, err := ParseTarget(tt.spec)
			if err != nil {
				t.Fatal(err)
			}
			if tgt.OS != tt.os || tgt.Arch != tt.arch || tgt.Triple != tt.triple {
				t.Errorf("got %s %q", tgt, tgt.Triple)
			}
		})
	}

	for _, bad := range []string{"plan9/amd64", "linux/mips", "nonsense"} {
		if _, err := ParseTarget(bad); err == nil {
			t.Errorf("ParseTarget(%q) should fail", bad)
		}
	}
}

func TestTarget32Bit(t *testing.T) {
	tgt := linux386Target()
	if tgt.Is64Bit() || tgt.PtrSize != 4 || tgt.DoubleAlign != 4 {
		t.Errorf("unexpected i386 target: %+v", tgt)
	}
}
