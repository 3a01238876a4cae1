package ast

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Source position
// ---------------------------------------------------------------------------

// Position represents a line/column pair in source code (1-based).
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// Node is implemented by every AST node.
type Node interface {
	GetPos() Position
}

// Stmt is implemented by every statement node. Declarations are statements.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

// TypeExpr is implemented by every type annotation node.
type TypeExpr interface {
	Node
	typeNode()
}

// Member is implemented by the members of classes and interfaces.
type Member interface {
	Node
	memberNode()
	MemberName() string
}

// Callable is implemented by every declaration that lowers to a function:
// free functions, methods, constructors, index signatures and accessor
// properties of ambient classes.
type Callable interface {
	Node
	CallableName() string
	CallableParams() []*Param
	CallableBody() *BlockStmt
	CallableReturn() TypeExpr
}

// ---------------------------------------------------------------------------
// Program (root)
// ---------------------------------------------------------------------------

// Program is the set of source files compiled together. Ambient library
// files come first.
type Program struct {
	Files []*SourceFile
}

// SourceFile is one parsed input. Ambient files (.d.ts) only declare.
type SourceFile struct {
	Name    string
	Ambient bool
	Stmts   []Stmt
	Pos     Position
}

func (n *SourceFile) GetPos() Position { return n.Pos }

// ---------------------------------------------------------------------------
// Type annotations
// ---------------------------------------------------------------------------

// TypeRef names a type, optionally qualified and with type arguments:
// number, Box<T>, Shapes.Point.
type TypeRef struct {
	Name []string
	Args []TypeExpr
	Pos  Position
}

func (n *TypeRef) GetPos() Position { return n.Pos }
func (n *TypeRef) typeNode()        {}

// QualifiedName joins the reference path with dots.
func (n *TypeRef) QualifiedName() string { return strings.Join(n.Name, ".") }

// ArrayTypeExpr is the T[] shorthand for Array<T>.
type ArrayTypeExpr struct {
	Elem TypeExpr
	Pos  Position
}

func (n *ArrayTypeExpr) GetPos() Position { return n.Pos }
func (n *ArrayTypeExpr) typeNode()        {}

// UnionTypeExpr is A | B.
type UnionTypeExpr struct {
	Types []TypeExpr
	Pos   Position
}

func (n *UnionTypeExpr) GetPos() Position { return n.Pos }
func (n *UnionTypeExpr) typeNode()        {}

// TypeParam is a generic parameter declaration: <T> or <T extends U>.
type TypeParam struct {
	Name       string
	Constraint TypeExpr
	Pos        Position
}

func (n *TypeParam) GetPos() Position { return n.Pos }

// Param is a single function parameter (name: type).
type Param struct {
	Name     string
	Type     TypeExpr
	Optional bool
	Pos      Position
}

func (n *Param) GetPos() Position { return n.Pos }

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// FunctionDecl: function <name><T>(<params>): <ret> { ... }
// Body is nil for ambient declarations.
type FunctionDecl struct {
	Name       string
	TypeParams []*TypeParam
	Params     []*Param
	ReturnType TypeExpr
	Body       *BlockStmt
	Ambient    bool
	Exported   bool
	Namespace  []string // enclosing namespace chain, outermost first
	Pos        Position
}

func (n *FunctionDecl) GetPos() Position         { return n.Pos }
func (n *FunctionDecl) stmtNode()                {}
func (n *FunctionDecl) CallableName() string     { return n.Name }
func (n *FunctionDecl) CallableParams() []*Param { return n.Params }
func (n *FunctionDecl) CallableBody() *BlockStmt { return n.Body }
func (n *FunctionDecl) CallableReturn() TypeExpr { return n.ReturnType }

// ClassDecl: class <name><T> { members }
type ClassDecl struct {
	Name       string
	TypeParams []*TypeParam
	Members    []Member
	Ambient    bool
	Exported   bool
	Namespace  []string
	Pos        Position
}

func (n *ClassDecl) GetPos() Position { return n.Pos }
func (n *ClassDecl) stmtNode()        {}

// Constructor returns the class's constructor declaration, or nil.
func (n *ClassDecl) Constructor() *ConstructorDecl {
	for _, m := range n.Members {
		if c, ok := m.(*ConstructorDecl); ok {
			return c
		}
	}
	return nil
}

// InterfaceDecl: interface <name><T> { members }
type InterfaceDecl struct {
	Name       string
	TypeParams []*TypeParam
	Members    []Member
	Ambient    bool
	Exported   bool
	Namespace  []string
	Pos        Position
}

func (n *InterfaceDecl) GetPos() Position { return n.Pos }
func (n *InterfaceDecl) stmtNode()        {}

// NamespaceDecl: namespace <name> { ... } (also spelled module).
type NamespaceDecl struct {
	Name      string
	Body      []Stmt
	Ambient   bool
	Exported  bool
	Namespace []string
	Pos       Position
}

func (n *NamespaceDecl) GetPos() Position { return n.Pos }
func (n *NamespaceDecl) stmtNode()        {}

// Path returns the full namespace chain including this namespace.
func (n *NamespaceDecl) Path() []string {
	path := make([]string, 0, len(n.Namespace)+1)
	path = append(path, n.Namespace...)
	return append(path, n.Name)
}

// TypeAliasDecl: type <name> = <type>;
type TypeAliasDecl struct {
	Name string
	Type TypeExpr
	Pos  Position
}

func (n *TypeAliasDecl) GetPos() Position { return n.Pos }
func (n *TypeAliasDecl) stmtNode()        {}

// ---------------------------------------------------------------------------
// Class and interface members
// ---------------------------------------------------------------------------

// PropertyDecl is a stored property (or, on ambient classes, an accessor).
type PropertyDecl struct {
	Name     string
	Type     TypeExpr
	Init     Expr
	Readonly bool
	Optional bool
	Pos      Position
}

func (n *PropertyDecl) GetPos() Position         { return n.Pos }
func (n *PropertyDecl) memberNode()              {}
func (n *PropertyDecl) MemberName() string       { return n.Name }
func (n *PropertyDecl) CallableName() string     { return n.Name }
func (n *PropertyDecl) CallableParams() []*Param { return nil }
func (n *PropertyDecl) CallableBody() *BlockStmt { return nil }
func (n *PropertyDecl) CallableReturn() TypeExpr { return n.Type }

// MethodDecl is a class method or an interface method signature.
type MethodDecl struct {
	Name       string
	TypeParams []*TypeParam
	Params     []*Param
	ReturnType TypeExpr
	Body       *BlockStmt
	Pos        Position
}

func (n *MethodDecl) GetPos() Position         { return n.Pos }
func (n *MethodDecl) memberNode()              {}
func (n *MethodDecl) MemberName() string       { return n.Name }
func (n *MethodDecl) CallableName() string     { return n.Name }
func (n *MethodDecl) CallableParams() []*Param { return n.Params }
func (n *MethodDecl) CallableBody() *BlockStmt { return n.Body }
func (n *MethodDecl) CallableReturn() TypeExpr { return n.ReturnType }

// ConstructorDecl: constructor(<params>) { ... }
type ConstructorDecl struct {
	Params []*Param
	Body   *BlockStmt
	Pos    Position
}

func (n *ConstructorDecl) GetPos() Position         { return n.Pos }
func (n *ConstructorDecl) memberNode()              {}
func (n *ConstructorDecl) MemberName() string       { return "constructor" }
func (n *ConstructorDecl) CallableName() string     { return "constructor" }
func (n *ConstructorDecl) CallableParams() []*Param { return n.Params }
func (n *ConstructorDecl) CallableBody() *BlockStmt { return n.Body }
func (n *ConstructorDecl) CallableReturn() TypeExpr { return nil }

// IndexSignature: [index: number]: T;
type IndexSignature struct {
	Param    *Param
	Type     TypeExpr
	Readonly bool
	Pos      Position
}

func (n *IndexSignature) GetPos() Position         { return n.Pos }
func (n *IndexSignature) memberNode()              {}
func (n *IndexSignature) MemberName() string       { return "subscript" }
func (n *IndexSignature) CallableName() string     { return "subscript" }
func (n *IndexSignature) CallableParams() []*Param { return []*Param{n.Param} }
func (n *IndexSignature) CallableBody() *BlockStmt { return nil }
func (n *IndexSignature) CallableReturn() TypeExpr { return n.Type }

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// BlockStmt is a brace-delimited list of statements.
type BlockStmt struct {
	Stmts []Stmt
	Pos   Position
}

func (n *BlockStmt) GetPos() Position { return n.Pos }
func (n *BlockStmt) stmtNode()        {}

// VarDecl is one declarator of a variable statement.
type VarDecl struct {
	Name string
	Type TypeExpr
	Init Expr
	Pos  Position
}

func (n *VarDecl) GetPos() Position { return n.Pos }

// VarStmt: let|const|var <decl>, <decl>;
type VarStmt struct {
	Kind     string // "let", "const" or "var"
	Decls    []*VarDecl
	Ambient  bool
	Exported bool
	Pos      Position
}

func (n *VarStmt) GetPos() Position { return n.Pos }
func (n *VarStmt) stmtNode()        {}

// IsConst reports whether the bindings are immutable.
func (n *VarStmt) IsConst() bool { return n.Kind == "const" }

// ExprStmt wraps an expression used as a statement.
type ExprStmt struct {
	Expression Expr
	Pos        Position
}

func (n *ExprStmt) GetPos() Position { return n.Pos }
func (n *ExprStmt) stmtNode()        {}

// ReturnStmt: return [<value>];
type ReturnStmt struct {
	Value Expr // nil for bare "return;"
	Pos   Position
}

func (n *ReturnStmt) GetPos() Position { return n.Pos }
func (n *ReturnStmt) stmtNode()        {}

// BreakStmt: break;
type BreakStmt struct {
	Pos Position
}

func (n *BreakStmt) GetPos() Position { return n.Pos }
func (n *BreakStmt) stmtNode()        {}

// ContinueStmt: continue;
type ContinueStmt struct {
	Pos Position
}

func (n *ContinueStmt) GetPos() Position { return n.Pos }
func (n *ContinueStmt) stmtNode()        {}

// IfStmt: if (<cond>) <then> [else <else>]
type IfStmt struct {
	Condition Expr
	Then      Stmt
	Else      Stmt // nil, a block, a single statement or an else-if chain
	Pos       Position
}

func (n *IfStmt) GetPos() Position { return n.Pos }
func (n *IfStmt) stmtNode()        {}

// WhileStmt: while (<cond>) <body>
type WhileStmt struct {
	Condition Expr
	Body      Stmt
	Pos       Position
}

func (n *WhileStmt) GetPos() Position { return n.Pos }
func (n *WhileStmt) stmtNode()        {}

// ForStmt: for (<init>; <cond>; <update>) <body>
// Init is nil, a *VarStmt or an *ExprStmt; Condition and Update may be nil.
type ForStmt struct {
	Init      Stmt
	Condition Expr
	Update    Expr
	Body      Stmt
	Pos       Position
}

func (n *ForStmt) GetPos() Position { return n.Pos }
func (n *ForStmt) stmtNode()        {}

// ThrowStmt: throw <value>;
type ThrowStmt struct {
	Value Expr
	Pos   Position
}

func (n *ThrowStmt) GetPos() Position { return n.Pos }
func (n *ThrowStmt) stmtNode()        {}

// EmptyStmt is a lone semicolon.
type EmptyStmt struct {
	Pos Position
}

func (n *EmptyStmt) GetPos() Position { return n.Pos }
func (n *EmptyStmt) stmtNode()        {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

type Ident struct {
	Name string
	Pos  Position
}

func (n *Ident) GetPos() Position { return n.Pos }
func (n *Ident) exprNode()        {}

type ThisExpr struct {
	Pos Position
}

func (n *ThisExpr) GetPos() Position { return n.Pos }
func (n *ThisExpr) exprNode()        {}

// NumberLit holds the source spelling and its parsed value.
type NumberLit struct {
	Raw   string
	Value float64
	Pos   Position
}

func (n *NumberLit) GetPos() Position { return n.Pos }
func (n *NumberLit) exprNode()        {}

// StringLit holds the quoted source spelling and the unescaped value.
type StringLit struct {
	Raw   string
	Value string
	Pos   Position
}

func (n *StringLit) GetPos() Position { return n.Pos }
func (n *StringLit) exprNode()        {}

type BoolLit struct {
	Value bool
	Pos   Position
}

func (n *BoolLit) GetPos() Position { return n.Pos }
func (n *BoolLit) exprNode()        {}

// ArrayLit: [a, b, c]
type ArrayLit struct {
	Elems []Expr
	Pos   Position
}

func (n *ArrayLit) GetPos() Position { return n.Pos }
func (n *ArrayLit) exprNode()        {}

// ObjectProp is one key: value pair of an object literal.
type ObjectProp struct {
	Key   string
	Value Expr
	Pos   Position
}

func (n *ObjectProp) GetPos() Position { return n.Pos }

// ObjectLit: { key: value, ... }
type ObjectLit struct {
	Props []*ObjectProp
	Pos   Position
}

func (n *ObjectLit) GetPos() Position { return n.Pos }
func (n *ObjectLit) exprNode()        {}

// ParenExpr: ( <expr> )
type ParenExpr struct {
	X   Expr
	Pos Position
}

func (n *ParenExpr) GetPos() Position { return n.Pos }
func (n *ParenExpr) exprNode()        {}

// PropertyAccess: <x>.<name>
type PropertyAccess struct {
	X    Expr
	Name string
	Pos  Position
}

func (n *PropertyAccess) GetPos() Position { return n.Pos }
func (n *PropertyAccess) exprNode()        {}

// ElementAccess: <x>[<index>]
type ElementAccess struct {
	X     Expr
	Index Expr
	Pos   Position
}

func (n *ElementAccess) GetPos() Position { return n.Pos }
func (n *ElementAccess) exprNode()        {}

// CallExpr: <callee><T>(<args>)
type CallExpr struct {
	Callee   Expr
	TypeArgs []TypeExpr
	Args     []Expr
	Pos      Position
}

func (n *CallExpr) GetPos() Position { return n.Pos }
func (n *CallExpr) exprNode()        {}

// NewExpr: new <class><T>(<args>)
type NewExpr struct {
	Class    Expr
	TypeArgs []TypeExpr
	Args     []Expr
	Pos      Position
}

func (n *NewExpr) GetPos() Position { return n.Pos }
func (n *NewExpr) exprNode()        {}

// UnaryExpr is a prefix operator: - + ! ~ ++ --
type UnaryExpr struct {
	Op  string
	X   Expr
	Pos Position
}

func (n *UnaryExpr) GetPos() Position { return n.Pos }
func (n *UnaryExpr) exprNode()        {}

// PostfixExpr is x++ or x--.
type PostfixExpr struct {
	Op  string
	X   Expr
	Pos Position
}

func (n *PostfixExpr) GetPos() Position { return n.Pos }
func (n *PostfixExpr) exprNode()        {}

// BinaryExpr covers arithmetic, comparison, bitwise and logical operators.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
	Pos   Position
}

func (n *BinaryExpr) GetPos() Position { return n.Pos }
func (n *BinaryExpr) exprNode()        {}

// AssignExpr is = or a compound assignment such as += or >>>=.
type AssignExpr struct {
	Op     string
	Target Expr
	Value  Expr
	Pos    Position
}

func (n *AssignExpr) GetPos() Position { return n.Pos }
func (n *AssignExpr) exprNode()        {}

// BinaryOp returns the arithmetic operator of a compound assignment
// ("+" for "+="), or "" for plain assignment.
func (n *AssignExpr) BinaryOp() string {
	return strings.TrimSuffix(n.Op, "=")
}

// Unparen strips any number of enclosing parentheses.
func Unparen(e Expr) Expr {
	for {
		p, ok := e.(*ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}
