package semantic_test

import (
	"strings"
	"testing"

	"tsllvm/internal/ast"
	"tsllvm/internal/loader"
	"tsllvm/internal/semantic"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func check(t *testing.T, input string) (*ast.Program, *semantic.Info, []semantic.Diagnostic) {
	t.Helper()
	prog, errs := loader.LoadSource("test.ts", input)
	if len(errs) > 0 {
		t.Fatalf("load errors: %v", errs)
	}
	info, diags := semantic.Check(prog)
	return prog, info, diags
}

func analyze(t *testing.T, input string) []semantic.Diagnostic {
	t.Helper()
	_, _, diags := check(t, input)
	return diags
}

func countErrors(diags []semantic.Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Severity == semantic.Error {
			n++
		}
	}
	return n
}

func countWarnings(diags []semantic.Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Severity == semantic.Warning {
			n++
		}
	}
	return n
}

func expectErrors(t *testing.T, diags []semantic.Diagnostic, want int) {
	t.Helper()
	got := countErrors(diags)
	if got != want {
		t.Errorf("expected %d error(s), got %d", want, got)
		for _, d := range diags {
			t.Logf("  %s", d.Error())
		}
	}
}

func expectNoDiagnostics(t *testing.T, diags []semantic.Diagnostic) {
	t.Helper()
	if len(diags) > 0 {
		t.Errorf("expected no diagnostics, got %d", len(diags))
		for _, d := range diags {
			t.Logf("  %s", d.Error())
		}
	}
}

func expectErrorContains(t *testing.T, diags []semantic.Diagnostic, substr string) {
	t.Helper()
	for _, d := range diags {
		if d.Severity == semantic.Error && strings.Contains(d.Message, substr) {
			return
		}
	}
	t.Errorf("expected an error containing %q, diagnostics:", substr)
	for _, d := range diags {
		t.Logf("  %s", d.Error())
	}
}

// userStmts returns the statements of the checked source file.
func userStmts(prog *ast.Program) []ast.Stmt {
	return prog.Files[len(prog.Files)-1].Stmts
}

// ---------------------------------------------------------------------------
// Valid programs
// ---------------------------------------------------------------------------

func TestValidPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"function", "function add(a: number, b: number): number { return a + b; }"},
		{"recursion", "function fib(n: number): number { if (n <= 1) { return n; } return fib(n - 1) + fib(n - 2); }"},
		{"forward call", "function caller(): number { return callee(); } function callee(): number { return 42; }"},
		{"top-level call", "function f(x: number): number { return x * 2; } let y = f(21);"},
		{"globals from functions", "let counter = 0; function bump(): void { counter += 1; }"},
		{"while", "let i = 0; while (i < 10) { i++; }"},
		{"for", "let sum = 0; for (let i = 0; i < 10; i++) { sum += i; }"},
		{"break continue", "while (true) { break; } for (let i = 0; i < 3; ++i) { continue; }"},
		{"number condition", "let n = 3; if (n) { n = 0; }"},
		{"logical", "function f(a: boolean, b: boolean): boolean { return a && b || !a; }"},
		{"bitwise", "let x = 5; x = x & 3 | 8 ^ 1; x <<= 2; x >>= 1; x >>>= 1; let y = ~x;"},
		{"string concat", `let s = "hello" + " " + "world"; s += "!";`},
		{"string members", `let s = "abc"; let n = s.length; let t = s.concat("d");`},
		{"console", `console.log("hi");`},
		{"class", `
class Point {
  x: number;
  y: number;
  constructor(x: number, y: number) { this.x = x; this.y = y; }
  norm(): number { return this.x * this.x + this.y * this.y; }
}
let p = new Point(1, 2);
let n = p.norm();
p.x = 3;`},
		{"readonly in constructor", `
class C {
  readonly id: number;
  constructor(id: number) { this.id = id; }
}`},
		{"generic class", `
class Box<T> {
  value: T;
  constructor(value: T) { this.value = value; }
  get(): T { return this.value; }
}
let b = new Box(42);
let v: number = b.get();
let s = new Box<string>("x").get();`},
		{"arrays", `
let xs: number[] = [1, 2, 3];
xs.push(4);
let n = xs.length;
let first = xs[0];
xs[1] = 5;
let ys = new Array<number>();`},
		{"interface literal", `
interface Point { x: number; y: number; }
let p: Point = { x: 1, y: 2 };
let s = p.x + p.y;`},
		{"anonymous object", "let o = { a: 1, b: true }; let x = o.a;"},
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
		{"nested namespace", `
namespace A.B {
  export function f(): number { return 1; }
}
let x = A.B.f();`},
		{"merged namespace", `
namespace M { export function f(): number { return 1; } }
namespace M { export function g(): number { return f() + 1; } }
let x = M.g();`},
		{"ambient function", "declare function ext(x: number): number; let y = ext(1);"},
		{"throw", `function fail(): void { throw "boom"; }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectNoDiagnostics(t, analyze(t, tt.src))
		})
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		substr string
	}{
		{"unknown identifier", "let x = y;", "unknown identifier"},
		{"const assignment", "const x = 1; x = 2;", "because it is a constant"},
		{"mixed plus", `let x = 1 + "a";`, "operator + cannot be applied"},
		{"return mismatch", `function f(): number { return "a"; }`, "is not assignable"},
		{"missing return value", "function f(): number { return; }", "must return a value"},
		{"void returns value", "function f(): void { return 1; }", "returns a value"},
		{"arity", "function f(a: number): number { return a; } f(1, 2);", "expects 1 argument"},
		{"break outside loop", "break;", "outside of a loop"},
		{"continue outside loop", "function f(): void { continue; }", "outside of a loop"},
		{"unexported member", "namespace N { function hidden(): void {} } N.hidden();", "is not exported"},
		{"readonly property", "let xs = [1]; xs.length = 3;", "read-only property"},
		{"readonly outside constructor", `
class C {
  readonly id: number;
  constructor(id: number) { this.id = id; }
  reset(): void { this.id = 0; }
}`, "read-only property"},
		{"function value", "function f(): void {} let g = f;", "cannot be used as a value"},
		{"method value", "class C { m(): void {} } let c = new C(); let g = c.m;", "cannot be used as a value"},
		{"nested function", "function outer(): void { function inner(): void {} }", "must be declared at top level"},
		{"nested class", "function outer(): void { class Inner {} }", "must be declared at top level"},
		{"empty array", "let xs = [];", "empty array literal"},
		{"this outside class", "let t = this;", "'this' can only be used"},
		{"string equality", `let b = "a" == "b";`, "not supported on strings"},
		{"mixed equality", `let b = 1 == true;`, "operator == cannot be applied"},
		{"new interface", "interface I { x: number; } let i = new I();", "cannot instantiate interface"},
		{"duplicate", "let x = 1; let x = 2;", "duplicate identifier"},
		{"condition", `if ("s") {}`, "condition must be boolean or number"},
		{"unknown property", "let o = { a: 1 }; let b = o.b;", "does not exist"},
		{"no index signature", "let o = { a: 1 }; let b = o[0];", "no index signature"},
		{"unknown type", "let x: Foo = 1;", "unknown type"},
		{"generic arity", "class Box<T> { v: T; constructor(v: T) { this.v = v; } } let b: Box = new Box(1);", "expects 1 type argument"},
		{"cannot infer", "class Box<T> { v: number; constructor() { this.v = 0; } } let b = new Box();", "cannot infer type argument"},
		{"void variable", "function f(): void {} let x = f();", "returns void"},
		{"not callable", "let x = 1; x();", "is not callable"},
		{"return outside function", "return 1;", "outside of a function"},
		{"array element type", `let xs = [1, "a"];`, "is not assignable"},
		{"missing annotation", "let x;", "needs a type annotation"},
		{"optional parameter", "function f(a?: number): void {}", "optional parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectErrorContains(t, analyze(t, tt.src), tt.substr)
		})
	}
}

func TestSingleErrorPerMistake(t *testing.T) {
	expectErrors(t, analyze(t, "let x = y;"), 1)
	expectErrors(t, analyze(t, "function f(a: number): number { return a; } f(1, 2);"), 1)
	expectErrors(t, analyze(t, "function f(): void {} let g = f;"), 1)
}

func TestTypeAliasWarning(t *testing.T) {
	diags := analyze(t, "type N = number;")
	expectErrors(t, diags, 0)
	if got := countWarnings(diags); got != 1 {
		t.Errorf("expected 1 warning, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Info queries
// ---------------------------------------------------------------------------

func TestInfoVariableTypes(t *testing.T) {
	prog, info, diags := check(t, `let n = 1; let s = "x"; let b = n < 2;`)
	expectNoDiagnostics(t, diags)

	want := []*semantic.Type{semantic.TypeNumber, semantic.TypeString, semantic.TypeBoolean}
	for i, stmt := range userStmts(prog) {
		decl := stmt.(*ast.VarStmt).Decls[0]
		if got := info.TypeOf(decl); got != want[i] {
			t.Errorf("%s: type %s, want %s", decl.Name, got, want[i])
		}
	}
}

func TestInfoInstantiationsAreInterned(t *testing.T) {
	prog, info, diags := check(t, `
class Box<T> {
  value: T;
  constructor(value: T) { this.value = value; }
}
let a = new Box(1);
let b = new Box(2);
let c = new Box("s");`)
	expectNoDiagnostics(t, diags)

	stmts := userStmts(prog)
	typeOf := func(i int) *semantic.Type {
		return info.TypeOf(stmts[i].(*ast.VarStmt).Decls[0])
	}
	if typeOf(1) != typeOf(2) {
		t.Error("Box<number> should be interned")
	}
	if typeOf(1) == typeOf(3) {
		t.Error("Box<number> and Box<string> must differ")
	}
	if got := typeOf(3).String(); got != "Box<string>" {
		t.Errorf("type = %s, want Box<string>", got)
	}

	props := info.PropertiesOf(typeOf(1))
	if len(props) != 1 || props[0].Name != "value" || props[0].Type != semantic.TypeNumber {
		t.Errorf("unexpected properties of Box<number>: %+v", props)
	}
	if args := info.TypeArgumentsOf(typeOf(3)); len(args) != 1 || args[0] != semantic.TypeString {
		t.Errorf("unexpected type arguments %v", args)
	}
}

func TestInfoSignatureSubstitution(t *testing.T) {
	prog, info, diags := check(t, `
class Box<T> {
  value: T;
  constructor(value: T) { this.value = value; }
  get(): T { return this.value; }
}
let b = new Box(true);
b.get();`)
	expectNoDiagnostics(t, diags)

	stmts := userStmts(prog)
	call := stmts[2].(*ast.ExprStmt).Expression.(*ast.CallExpr)
	sym := info.SymbolOf(call.Callee)
	if sym == nil || sym.Kind != semantic.SymMethod {
		t.Fatalf("callee symbol = %+v, want a method", sym)
	}
	recv := info.TypeOf(stmts[1].(*ast.VarStmt).Decls[0])
	sig := info.SignatureOf(sym.Callable(), recv)
	if sig.Return != semantic.TypeBoolean {
		t.Errorf("return type = %s, want boolean", sig.Return)
	}

	ctor := stmts[0].(*ast.ClassDecl).Constructor()
	csig := info.SignatureOf(ctor, recv)
	if csig.Return != recv || len(csig.Params) != 1 || csig.Params[0] != semantic.TypeBoolean {
		t.Errorf("unexpected constructor signature %+v", csig)
	}
}

func TestInfoNamespaceSymbols(t *testing.T) {
	prog, info, diags := check(t, `
namespace Shapes {
  export function unit(): number { return 1; }
}
let u = Shapes.unit();`)
	expectNoDiagnostics(t, diags)

	decl := userStmts(prog)[1].(*ast.VarStmt).Decls[0]
	call := decl.Init.(*ast.CallExpr)
	access := call.Callee.(*ast.PropertyAccess)
	if sym := info.SymbolOf(access.X); sym == nil || sym.Kind != semantic.SymNamespace {
		t.Errorf("Shapes resolved to %+v, want a namespace", sym)
	}
	sym := info.SymbolOf(access)
	if sym == nil || sym.Kind != semantic.SymFunc {
		t.Fatalf("Shapes.unit resolved to %+v, want a function", sym)
	}
	fn, ok := sym.Decl.(*ast.FunctionDecl)
	if !ok || len(fn.Namespace) != 1 || fn.Namespace[0] != "Shapes" {
		t.Errorf("unexpected declaration %+v", sym.Decl)
	}
}

func TestInfoObjectLiteralTakesInterfaceType(t *testing.T) {
	prog, info, diags := check(t, `
interface P { x: number; y: number; }
let p: P = { y: 2, x: 1 };`)
	expectNoDiagnostics(t, diags)

	decl := userStmts(prog)[1].(*ast.VarStmt).Decls[0]
	lit := info.TypeOf(decl.Init)
	if lit == nil || lit.Kind != semantic.KindInterface || lit.Name != "P" {
		t.Errorf("literal type = %s, want P", lit)
	}
}

func TestInfoIndexSignature(t *testing.T) {
	prog, info, diags := check(t, "let xs = [1.5]; let x = xs[0];")
	expectNoDiagnostics(t, diags)

	decl := userStmts(prog)[1].(*ast.VarStmt).Decls[0]
	sym := info.SymbolOf(decl.Init)
	if sym == nil || sym.Kind != semantic.SymIndex {
		t.Fatalf("element access resolved to %+v, want an index signature", sym)
	}
	if sym.Type != semantic.TypeNumber {
		t.Errorf("element type = %s, want number", sym.Type)
	}
}

func TestInfoCallTypeArguments(t *testing.T) {
	prog, info, diags := check(t, `
function identity<T>(value: T): T { return value; }
identity("a");
let n = identity<number>(4);`)
	expectNoDiagnostics(t, diags)

	stmts := userStmts(prog)
	inferred := stmts[1].(*ast.ExprStmt).Expression.(*ast.CallExpr)
	if args := info.CallTypeArguments(inferred); len(args) != 1 || args[0] != semantic.TypeString {
		t.Errorf("inferred type arguments = %v, want [string]", args)
	}
	if got := info.TypeOf(inferred); got != semantic.TypeString {
		t.Errorf("statement call type = %s, want string", got)
	}
	explicit := stmts[2].(*ast.VarStmt).Decls[0].Init.(*ast.CallExpr)
	if args := info.CallTypeArguments(explicit); len(args) != 1 || args[0] != semantic.TypeNumber {
		t.Errorf("explicit type arguments = %v, want [number]", args)
	}
}
