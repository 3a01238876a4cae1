package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// DebugString returns a readable multi-line representation of a source file.
func DebugString(file *SourceFile) string {
	var b strings.Builder
	name := file.Name
	if file.Ambient {
		name += " (ambient)"
	}
	fmt.Fprintf(&b, "SourceFile %s\n", name)
	for _, s := range file.Stmts {
		debugStmt(&b, s, 1)
	}
	return b.String()
}

func writeIndent(b *strings.Builder, level int) {
	for i := 0; i < level; i++ {
		b.WriteString("  ")
	}
}

func debugParams(params []*Param) string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name + ": " + TypeString(p.Type)
	}
	return strings.Join(out, ", ")
}

func debugTypeParams(tps []*TypeParam) string {
	if len(tps) == 0 {
		return ""
	}
	names := make([]string, len(tps))
	for i, tp := range tps {
		names[i] = tp.Name
	}
	return "<" + strings.Join(names, ", ") + ">"
}

func debugBody(b *strings.Builder, body *BlockStmt, level int) {
	if body == nil {
		writeIndent(b, level)
		b.WriteString("<no body>\n")
		return
	}
	debugStmt(b, body, level)
}

func debugMember(b *strings.Builder, m Member, level int) {
	writeIndent(b, level)
	switch m := m.(type) {
	case *PropertyDecl:
		fmt.Fprintf(b, "Property %s: %s", m.Name, TypeString(m.Type))
		if m.Init != nil {
			fmt.Fprintf(b, " = %s", ExprString(m.Init))
		}
		b.WriteString("\n")
	case *MethodDecl:
		fmt.Fprintf(b, "Method %s%s(%s): %s\n", m.Name, debugTypeParams(m.TypeParams), debugParams(m.Params), TypeString(m.ReturnType))
		debugBody(b, m.Body, level+1)
	case *ConstructorDecl:
		fmt.Fprintf(b, "Constructor(%s)\n", debugParams(m.Params))
		debugBody(b, m.Body, level+1)
	case *IndexSignature:
		fmt.Fprintf(b, "Index [%s]: %s\n", debugParams([]*Param{m.Param}), TypeString(m.Type))
	}
}

func debugStmt(b *strings.Builder, s Stmt, level int) {
	if blk, ok := s.(*BlockStmt); ok {
		writeIndent(b, level)
		fmt.Fprintf(b, "Block [%d statements]\n", len(blk.Stmts))
		for _, inner := range blk.Stmts {
			debugStmt(b, inner, level+1)
		}
		return
	}

	writeIndent(b, level)
	switch s := s.(type) {
	case *FunctionDecl:
		fmt.Fprintf(b, "Function %s%s(%s): %s\n", s.Name, debugTypeParams(s.TypeParams), debugParams(s.Params), TypeString(s.ReturnType))
		debugBody(b, s.Body, level+1)
	case *ClassDecl:
		fmt.Fprintf(b, "Class %s%s\n", s.Name, debugTypeParams(s.TypeParams))
		for _, m := range s.Members {
			debugMember(b, m, level+1)
		}
	case *InterfaceDecl:
		fmt.Fprintf(b, "Interface %s%s\n", s.Name, debugTypeParams(s.TypeParams))
		for _, m := range s.Members {
			debugMember(b, m, level+1)
		}
	case *NamespaceDecl:
		fmt.Fprintf(b, "Namespace %s\n", s.Name)
		for _, inner := range s.Body {
			debugStmt(b, inner, level+1)
		}
	case *TypeAliasDecl:
		fmt.Fprintf(b, "TypeAlias %s = %s\n", s.Name, TypeString(s.Type))
	case *VarStmt:
		for i, d := range s.Decls {
			if i > 0 {
				writeIndent(b, level)
			}
			fmt.Fprintf(b, "VarStmt %s %s: %s = %s\n", s.Kind, d.Name, TypeString(d.Type), ExprString(d.Init))
		}
	case *ExprStmt:
		fmt.Fprintf(b, "ExprStmt %s\n", ExprString(s.Expression))
	case *ReturnStmt:
		if s.Value != nil {
			fmt.Fprintf(b, "ReturnStmt %s\n", ExprString(s.Value))
		} else {
			b.WriteString("ReturnStmt\n")
		}
	case *BreakStmt:
		b.WriteString("BreakStmt\n")
	case *ContinueStmt:
		b.WriteString("ContinueStmt\n")
	case *IfStmt:
		fmt.Fprintf(b, "IfStmt (%s)\n", ExprString(s.Condition))
		debugStmt(b, s.Then, level+1)
		if s.Else != nil {
			writeIndent(b, level+1)
			b.WriteString("Else:\n")
			debugStmt(b, s.Else, level+2)
		}
	case *WhileStmt:
		fmt.Fprintf(b, "WhileStmt (%s)\n", ExprString(s.Condition))
		debugStmt(b, s.Body, level+1)
	case *ForStmt:
		fmt.Fprintf(b, "ForStmt (; %s; %s)\n", ExprString(s.Condition), ExprString(s.Update))
		if s.Init != nil {
			debugStmt(b, s.Init, level+1)
		}
		debugStmt(b, s.Body, level+1)
	case *ThrowStmt:
		fmt.Fprintf(b, "ThrowStmt %s\n", ExprString(s.Value))
	case *EmptyStmt:
		b.WriteString("EmptyStmt\n")
	default:
		b.WriteString("<unknown stmt>\n")
	}
}

// TypeString renders a type annotation back to source form.
func TypeString(t TypeExpr) string {
	if t == nil {
		return "<none>"
	}
	switch t := t.(type) {
	case *TypeRef:
		s := t.QualifiedName()
		if len(t.Args) > 0 {
			args := make([]string, len(t.Args))
			for i, a := range t.Args {
				args[i] = TypeString(a)
			}
			s += "<" + strings.Join(args, ", ") + ">"
		}
		return s
	case *ArrayTypeExpr:
		return TypeString(t.Elem) + "[]"
	case *UnionTypeExpr:
		parts := make([]string, len(t.Types))
		for i, u := range t.Types {
			parts[i] = TypeString(u)
		}
		return strings.Join(parts, " | ")
	default:
		return "<unknown type>"
	}
}

func exprList(exprs []Expr) string {
	out := make([]string, len(exprs))
	for i, e := range exprs {
		out[i] = ExprString(e)
	}
	return strings.Join(out, ", ")
}

func typeArgList(args []TypeExpr) string {
	if len(args) == 0 {
		return ""
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = TypeString(a)
	}
	return "<" + strings.Join(out, ", ") + ">"
}

// ExprString returns a concise one-line representation of an expression.
func ExprString(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	switch e := e.(type) {
	case *Ident:
		return e.Name
	case *ThisExpr:
		return "this"
	case *NumberLit:
		return e.Raw
	case *StringLit:
		return strconv.Quote(e.Value)
	case *BoolLit:
		return strconv.FormatBool(e.Value)
	case *ArrayLit:
		return "[" + exprList(e.Elems) + "]"
	case *ObjectLit:
		props := make([]string, len(e.Props))
		for i, p := range e.Props {
			props[i] = p.Key + ": " + ExprString(p.Value)
		}
		return "{" + strings.Join(props, ", ") + "}"
	case *ParenExpr:
		return "(" + ExprString(e.X) + ")"
	case *PropertyAccess:
		return ExprString(e.X) + "." + e.Name
	case *ElementAccess:
		return fmt.Sprintf("%s[%s]", ExprString(e.X), ExprString(e.Index))
	case *CallExpr:
		return fmt.Sprintf("%s%s(%s)", ExprString(e.Callee), typeArgList(e.TypeArgs), exprList(e.Args))
	case *NewExpr:
		return fmt.Sprintf("new %s%s(%s)", ExprString(e.Class), typeArgList(e.TypeArgs), exprList(e.Args))
	case *UnaryExpr:
		return fmt.Sprintf("(%s%s)", e.Op, ExprString(e.X))
	case *PostfixExpr:
		return fmt.Sprintf("(%s%s)", ExprString(e.X), e.Op)
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", ExprString(e.Left), e.Op, ExprString(e.Right))
	case *AssignExpr:
		return fmt.Sprintf("(%s %s %s)", ExprString(e.Target), e.Op, ExprString(e.Value))
	default:
		return "<unknown expr>"
	}
}
