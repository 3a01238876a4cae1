package parser

import (
	"fmt"
	"strconv"
	"strings"

	"tsllvm/internal/ast"
	"tsllvm/internal/lexer"
)

// ---------------------------------------------------------------------------
// Precedence levels for Pratt expression parsing
// ---------------------------------------------------------------------------

const (
	precNone       = iota
	precOr         // ||
	precAnd        // &&
	precBitOr      // |
	precBitXor     // ^
	precBitAnd     // &
	precEquality   // == != === !==
	precComparison // < > <= >=
	precShift      // << >> >>>
	precAdditive   // + -
	precMultiply   // * / %
	precUnary      // ! - + ~ ++x --x
	precPostfix    // x++ x--
	precCall       // () . []
)

// ---------------------------------------------------------------------------
// ParseError
// ---------------------------------------------------------------------------

// ParseError represents a single error found during parsing.
type ParseError struct {
	File    string
	Message string
	Line    int
	Column  int
}

func (e ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: line %d, col %d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Column, e.Message)
}

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

// Parser holds the state for a single parse pass over a token stream.
type Parser struct {
	tokens []lexer.Token
	pos    int
	errors []ParseError

	file      string
	ambient   bool     // inside a .d.ts file or a declare block
	namespace []string // enclosing namespace chain

	// trial counts nested speculative parses; undo records the tokens
	// splitGreater rewrote during them.
	trial int
	undo  []tokenEdit
}

type tokenEdit struct {
	index int
	tok   lexer.Token
}

// Parse parses an anonymous, non-ambient source file.
func Parse(tokens []lexer.Token) (*ast.SourceFile, []ParseError) {
	return ParseFile("", tokens, false)
}

// ParseFile parses the tokens of one source file. Every declaration in an
// ambient file is treated as if it carried the declare modifier.
func ParseFile(name string, tokens []lexer.Token, ambient bool) (*ast.SourceFile, []ParseError) {
	p := &Parser{tokens: tokens, file: name, ambient: ambient}
	file := &ast.SourceFile{Name: name, Ambient: ambient, Pos: p.position(p.peek())}
	for !p.check(lexer.EOF) {
		startPos := p.pos
		if stmt := p.parseStatement(); stmt != nil {
			file.Stmts = append(file.Stmts, stmt)
		}
		if p.pos == startPos {
			p.advance()
		}
	}
	return file, p.errors
}

// ---------------------------------------------------------------------------
// Token helpers
// ---------------------------------------------------------------------------

// peek returns the current token without consuming it.
func (p *Parser) peek() lexer.Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return lexer.Token{Type: lexer.EOF}
}

// peekAt returns the token at a given offset from the current position.
func (p *Parser) peekAt(offset int) lexer.Token {
	idx := p.pos + offset
	if idx >= 0 && idx < len(p.tokens) {
		return p.tokens[idx]
	}
	return lexer.Token{Type: lexer.EOF}
}

// advance consumes and returns the current token.
func (p *Parser) advance() lexer.Token {
	tok := p.peek()
	if tok.Type != lexer.EOF {
		p.pos++
	}
	return tok
}

// previous returns the most recently consumed token.
func (p *Parser) previous() lexer.Token {
	if p.pos > 0 {
		return p.tokens[p.pos-1]
	}
	return lexer.Token{Type: lexer.EOF}
}

// check returns true if the current token has the given type.
func (p *Parser) check(typ string) bool {
	return p.peek().Type == typ
}

// match consumes the current token if it matches any of the given types.
func (p *Parser) match(types ...string) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

// expect consumes the current token if it matches typ; otherwise it records
// an error and returns the current token WITHOUT advancing.
func (p *Parser) expect(typ string, msg string) lexer.Token {
	if p.check(typ) {
		return p.advance()
	}
	tok := p.peek()
	p.addError(tok, fmt.Sprintf("%s (got %s %q)", msg, tok.Type, tok.Value))
	return tok
}

// expectSemicolon accepts an explicit ';' or an automatically inserted one
// before '}', at end of input, or at a line break.
func (p *Parser) expectSemicolon(msg string) {
	if p.match(lexer.SEMICOLON) {
		return
	}
	if p.check(lexer.RBRACE) || p.check(lexer.EOF) || p.peek().Line > p.previous().Line {
		return
	}
	p.expect(lexer.SEMICOLON, msg)
}

// addError appends a ParseError at the given token's location.
func (p *Parser) addError(tok lexer.Token, msg string) {
	p.errors = append(p.errors, ParseError{
		File:    p.file,
		Message: msg,
		Line:    tok.Line,
		Column:  tok.Column,
	})
}

// synchronize advances past tokens until it reaches a likely statement
// boundary, allowing the parser to recover from an error and keep going.
func (p *Parser) synchronize() {
	p.advance()
	for !p.check(lexer.EOF) {
		if p.previous().Type == lexer.SEMICOLON {
			return
		}
		switch p.peek().Type {
		case lexer.FUNCTION, lexer.LET, lexer.CONST, lexer.VAR, lexer.CLASS,
			lexer.INTERFACE, lexer.NAMESPACE, lexer.IF, lexer.WHILE, lexer.FOR,
			lexer.RETURN, lexer.BREAK, lexer.CONTINUE, lexer.RBRACE:
			return
		}
		p.advance()
	}
}

// position converts a token into an ast.Position.
func (p *Parser) position(tok lexer.Token) ast.Position {
	return ast.Position{File: p.file, Line: tok.Line, Column: tok.Column}
}

// splitGreater consumes one '>' from the current token, which may be a
// longer operator such as '>>' when type argument lists nest.
func (p *Parser) splitGreater() bool {
	tok := p.peek()
	rest := map[string]string{
		lexer.SHR:         lexer.GT,
		lexer.USHR:        lexer.SHR,
		lexer.GTE:         lexer.ASSIGN,
		lexer.SHR_ASSIGN:  lexer.GTE,
		lexer.USHR_ASSIGN: lexer.SHR_ASSIGN,
	}
	if tok.Type == lexer.GT {
		p.advance()
		return true
	}
	next, ok := rest[tok.Type]
	if !ok {
		return false
	}
	if p.trial > 0 {
		p.undo = append(p.undo, tokenEdit{index: p.pos, tok: tok})
	}
	p.tokens[p.pos] = lexer.Token{Type: next, Value: tok.Value[1:], Line: tok.Line, Column: tok.Column + 1}
	return true
}

// =========================================================================
// Declarations
// =========================================================================

func (p *Parser) parseStatement() ast.Stmt {
	exported := false
	if p.check(lexer.EXPORT) {
		p.advance()
		exported = true
	}
	if p.check(lexer.DECLARE) {
		p.advance()
		saved := p.ambient
		p.ambient = true
		defer func() { p.ambient = saved }()
	}

	switch p.peek().Type {
	case lexer.FUNCTION:
		return p.parseFunctionDecl(exported)
	case lexer.CLASS:
		return p.parseClassDecl(exported)
	case lexer.INTERFACE:
		return p.parseInterfaceDecl(exported)
	case lexer.NAMESPACE, lexer.MODULE:
		return p.parseNamespaceDecl(exported)
	case lexer.LET, lexer.CONST, lexer.VAR:
		stmt := p.parseVarStmt()
		stmt.Exported = exported
		p.expectSemicolon("expected ';' after variable declaration")
		return stmt
	case lexer.TYPE:
		if p.peekAt(1).Type == lexer.IDENT {
			return p.parseTypeAlias()
		}
	}

	if exported {
		p.addError(p.peek(), "expected declaration after 'export'")
	}

	switch p.peek().Type {
	case lexer.LBRACE:
		return p.parseBlock()
	case lexer.SEMICOLON:
		tok := p.advance()
		return &ast.EmptyStmt{Pos: p.position(tok)}
	case lexer.RETURN:
		return p.parseReturnStmt()
	case lexer.BREAK:
		tok := p.advance()
		p.expectSemicolon("expected ';' after break")
		return &ast.BreakStmt{Pos: p.position(tok)}
	case lexer.CONTINUE:
		tok := p.advance()
		p.expectSemicolon("expected ';' after continue")
		return &ast.ContinueStmt{Pos: p.position(tok)}
	case lexer.IF:
		return p.parseIfStmt()
	case lexer.WHILE:
		return p.parseWhileStmt()
	case lexer.FOR:
		return p.parseForStmt()
	case lexer.THROW:
		tok := p.advance()
		value := p.parseExpression()
		p.expectSemicolon("expected ';' after throw")
		return &ast.ThrowStmt{Value: value, Pos: p.position(tok)}
	case lexer.RBRACE:
		p.addError(p.peek(), "unexpected '}'")
		p.advance()
		return nil
	default:
		expr := p.parseExpression()
		p.expectSemicolon("expected ';' after expression statement")
		return &ast.ExprStmt{Expression: expr, Pos: expr.GetPos()}
	}
}

func (p *Parser) enclosing() []string {
	if len(p.namespace) == 0 {
		return nil
	}
	return append([]string(nil), p.namespace...)
}

func (p *Parser) parseFunctionDecl(exported bool) *ast.FunctionDecl {
	tok := p.advance() // consume FUNCTION
	name := p.expect(lexer.IDENT, "expected function name")
	fn := &ast.FunctionDecl{
		Name:      name.Value,
		Ambient:   p.ambient,
		Exported:  exported,
		Namespace: p.enclosing(),
		Pos:       p.position(tok),
	}
	fn.TypeParams = p.parseTypeParams()
	fn.Params = p.parseParamList()
	if p.match(lexer.COLON) {
		fn.ReturnType = p.parseType()
	}
	if p.check(lexer.LBRACE) {
		fn.Body = p.parseBlock()
		if p.ambient {
			p.addError(tok, "an implementation cannot be declared in ambient contexts")
		}
	} else {
		p.expectSemicolon("expected '{' or ';' after function signature")
	}
	return fn
}

func (p *Parser) parseClassDecl(exported bool) *ast.ClassDecl {
	tok := p.advance() // consume CLASS
	name := p.expect(lexer.IDENT, "expected class name")
	cls := &ast.ClassDecl{
		Name:      name.Value,
		Ambient:   p.ambient,
		Exported:  exported,
		Namespace: p.enclosing(),
		Pos:       p.position(tok),
	}
	cls.TypeParams = p.parseTypeParams()
	if p.check(lexer.EXTENDS) {
		p.addError(p.peek(), "class inheritance is not supported")
		p.advance()
		p.parseType()
	}
	cls.Members = p.parseMembers(true)
	return cls
}

func (p *Parser) parseInterfaceDecl(exported bool) *ast.InterfaceDecl {
	tok := p.advance() // consume INTERFACE
	name := p.expect(lexer.IDENT, "expected interface name")
	iface := &ast.InterfaceDecl{
		Name:      name.Value,
		Ambient:   p.ambient,
		Exported:  exported,
		Namespace: p.enclosing(),
		Pos:       p.position(tok),
	}
	iface.TypeParams = p.parseTypeParams()
	if p.check(lexer.EXTENDS) {
		p.addError(p.peek(), "interface inheritance is not supported")
		p.advance()
		p.parseType()
	}
	iface.Members = p.parseMembers(false)
	return iface
}

// parseNamespaceDecl handles `namespace A { ... }`, `module A { ... }` and
// the dotted form `namespace A.B { ... }`, which nests B inside A.
func (p *Parser) parseNamespaceDecl(exported bool) *ast.NamespaceDecl {
	tok := p.advance() // consume NAMESPACE / MODULE
	name := p.expect(lexer.IDENT, "expected namespace name")
	return p.parseNamespaceBody(tok, name.Value, exported)
}

func (p *Parser) parseNamespaceBody(tok lexer.Token, name string, exported bool) *ast.NamespaceDecl {
	ns := &ast.NamespaceDecl{
		Name:      name,
		Ambient:   p.ambient,
		Exported:  exported,
		Namespace: p.enclosing(),
		Pos:       p.position(tok),
	}

	savedNS := p.namespace
	p.namespace = append(p.enclosing(), name)
	defer func() { p.namespace = savedNS }()

	if p.match(lexer.DOT) {
		inner := p.expect(lexer.IDENT, "expected namespace name after '.'")
		ns.Body = []ast.Stmt{p.parseNamespaceBody(inner, inner.Value, true)}
		return ns
	}

	p.expect(lexer.LBRACE, "expected '{' after namespace name")
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		startPos := p.pos
		if stmt := p.parseStatement(); stmt != nil {
			ns.Body = append(ns.Body, stmt)
		}
		if p.pos == startPos {
			p.advance()
		}
	}
	p.expect(lexer.RBRACE, "expected '}' after namespace body")
	return ns
}

func (p *Parser) parseTypeAlias() *ast.TypeAliasDecl {
	tok := p.advance() // consume TYPE
	name := p.advance()
	p.expect(lexer.ASSIGN, "expected '=' in type alias")
	typ := p.parseType()
	p.expectSemicolon("expected ';' after type alias")
	return &ast.TypeAliasDecl{Name: name.Value, Type: typ, Pos: p.position(tok)}
}

// ---- Class and interface members ----

func isAccessModifier(tok lexer.Token) bool {
	if tok.Type != lexer.IDENT {
		return false
	}
	switch tok.Value {
	case "public", "private", "protected":
		return true
	}
	return false
}

func (p *Parser) parseMembers(isClass bool) []ast.Member {
	var members []ast.Member
	p.expect(lexer.LBRACE, "expected '{' to open member list")
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		startPos := p.pos
		if m := p.parseMember(isClass); m != nil {
			members = append(members, m)
		}
		if p.pos == startPos {
			p.synchronize()
		}
	}
	p.expect(lexer.RBRACE, "expected '}' to close member list")
	return members
}

func (p *Parser) parseMember(isClass bool) ast.Member {
	if p.match(lexer.SEMICOLON, lexer.COMMA) {
		return nil
	}
	for isAccessModifier(p.peek()) && (p.peekAt(1).Type == lexer.IDENT || p.peekAt(1).Type == lexer.READONLY) {
		p.advance()
	}
	if p.peek().Type == lexer.IDENT && p.peek().Value == "static" {
		p.addError(p.peek(), "static members are not supported")
		p.advance()
	}
	readonly := p.match(lexer.READONLY)

	tok := p.peek()
	switch {
	case tok.Type == lexer.LBRACKET:
		return p.parseIndexSignature(readonly)
	case tok.Type == lexer.IDENT && tok.Value == "constructor" && p.peekAt(1).Type == lexer.LPAREN:
		p.advance()
		ctor := &ast.ConstructorDecl{Pos: p.position(tok)}
		ctor.Params = p.parseParamList()
		ctor.Body = p.parseMemberBody(isClass)
		return ctor
	case tok.Type != lexer.IDENT && tok.Type != lexer.STRING:
		p.addError(tok, fmt.Sprintf("expected member name, got %s", tok.Type))
		return nil
	}

	p.advance()
	name := tok.Value
	if tok.Type == lexer.STRING {
		name = unquote(tok.Value)
	}
	optional := p.match(lexer.QUESTION)

	if p.check(lexer.LPAREN) || p.check(lexer.LT) {
		m := &ast.MethodDecl{Name: name, Pos: p.position(tok)}
		m.TypeParams = p.parseTypeParams()
		m.Params = p.parseParamList()
		if p.match(lexer.COLON) {
			m.ReturnType = p.parseType()
		}
		m.Body = p.parseMemberBody(isClass)
		return m
	}

	prop := &ast.PropertyDecl{Name: name, Readonly: readonly, Optional: optional, Pos: p.position(tok)}
	if p.match(lexer.COLON) {
		prop.Type = p.parseType()
	}
	if p.match(lexer.ASSIGN) {
		prop.Init = p.parseExpression()
		if !isClass {
			p.addError(tok, "interface properties cannot have initializers")
		}
	}
	p.expectMemberEnd()
	return prop
}

func (p *Parser) parseMemberBody(isClass bool) *ast.BlockStmt {
	if isClass && p.check(lexer.LBRACE) {
		body := p.parseBlock()
		if p.ambient {
			p.addError(p.previous(), "an implementation cannot be declared in ambient contexts")
		}
		return body
	}
	p.expectMemberEnd()
	return nil
}

func (p *Parser) expectMemberEnd() {
	if p.match(lexer.COMMA) {
		return
	}
	p.expectSemicolon("expected ';' after member")
}

func (p *Parser) parseIndexSignature(readonly bool) *ast.IndexSignature {
	tok := p.advance() // consume [
	name := p.expect(lexer.IDENT, "expected index parameter name")
	p.expect(lexer.COLON, "expected ':' after index parameter name")
	param := &ast.Param{Name: name.Value, Type: p.parseType(), Pos: p.position(name)}
	p.expect(lexer.RBRACKET, "expected ']' after index parameter")
	p.expect(lexer.COLON, "expected ':' before index signature type")
	sig := &ast.IndexSignature{Param: param, Type: p.parseType(), Readonly: readonly, Pos: p.position(tok)}
	p.expectMemberEnd()
	return sig
}

// ---- Parameters and types ----

func (p *Parser) parseTypeParams() []*ast.TypeParam {
	if !p.match(lexer.LT) {
		return nil
	}
	var params []*ast.TypeParam
	for {
		name := p.expect(lexer.IDENT, "expected type parameter name")
		tp := &ast.TypeParam{Name: name.Value, Pos: p.position(name)}
		if p.match(lexer.EXTENDS) {
			tp.Constraint = p.parseType()
		}
		params = append(params, tp)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	if !p.splitGreater() {
		p.expect(lexer.GT, "expected '>' after type parameters")
	}
	return params
}

func (p *Parser) parseParamList() []*ast.Param {
	var params []*ast.Param
	p.expect(lexer.LPAREN, "expected '(' before parameters")
	if !p.check(lexer.RPAREN) {
		params = append(params, p.parseParam())
		for p.match(lexer.COMMA) {
			if p.check(lexer.RPAREN) {
				break
			}
			params = append(params, p.parseParam())
		}
	}
	p.expect(lexer.RPAREN, "expected ')' after parameters")
	return params
}

func (p *Parser) parseParam() *ast.Param {
	for isAccessModifier(p.peek()) && p.peekAt(1).Type == lexer.IDENT {
		p.addError(p.peek(), "parameter properties are not supported")
		p.advance()
	}
	name := p.expect(lexer.IDENT, "expected parameter name")
	param := &ast.Param{Name: name.Value, Pos: p.position(name)}
	param.Optional = p.match(lexer.QUESTION)
	if p.match(lexer.COLON) {
		param.Type = p.parseType()
	} else {
		p.addError(name, fmt.Sprintf("parameter '%s' needs a type annotation", name.Value))
	}
	if p.check(lexer.ASSIGN) {
		p.addError(p.peek(), "default parameter values are not supported")
		p.advance()
		p.parseExpression()
	}
	return param
}

// parseType parses a type annotation: a union of array-suffixed primary
// types.
func (p *Parser) parseType() ast.TypeExpr {
	tok := p.peek()
	p.match(lexer.PIPE)
	first := p.parseArrayType()
	if !p.check(lexer.PIPE) {
		return first
	}
	union := &ast.UnionTypeExpr{Types: []ast.TypeExpr{first}, Pos: p.position(tok)}
	for p.match(lexer.PIPE) {
		union.Types = append(union.Types, p.parseArrayType())
	}
	return union
}

func (p *Parser) parseArrayType() ast.TypeExpr {
	t := p.parsePrimaryType()
	for p.check(lexer.LBRACKET) && p.peekAt(1).Type == lexer.RBRACKET {
		tok := p.advance()
		p.advance()
		t = &ast.ArrayTypeExpr{Elem: t, Pos: p.position(tok)}
	}
	return t
}

func (p *Parser) parsePrimaryType() ast.TypeExpr {
	tok := p.peek()
	switch tok.Type {
	case lexer.VOID:
		p.advance()
		return &ast.TypeRef{Name: []string{"void"}, Pos: p.position(tok)}
	case lexer.LPAREN:
		p.advance()
		t := p.parseType()
		p.expect(lexer.RPAREN, "expected ')' after type")
		return t
	case lexer.IDENT:
		p.advance()
		ref := &ast.TypeRef{Name: []string{tok.Value}, Pos: p.position(tok)}
		for p.check(lexer.DOT) && p.peekAt(1).Type == lexer.IDENT {
			p.advance()
			ref.Name = append(ref.Name, p.advance().Value)
		}
		if p.match(lexer.LT) {
			ref.Args = append(ref.Args, p.parseType())
			for p.match(lexer.COMMA) {
				ref.Args = append(ref.Args, p.parseType())
			}
			if !p.splitGreater() {
				p.expect(lexer.GT, "expected '>' after type arguments")
			}
		}
		return ref
	}
	p.addError(tok, fmt.Sprintf("expected type, got %s", tok.Type))
	return &ast.TypeRef{Name: []string{"<error>"}, Pos: p.position(tok)}
}

// =========================================================================
// Statements
// =========================================================================

func (p *Parser) parseBlock() *ast.BlockStmt {
	tok := p.expect(lexer.LBRACE, "expected '{'")
	block := &ast.BlockStmt{Pos: p.position(tok)}

	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		startPos := p.pos
		stmt := p.parseStatement()
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		// Safety: if no tokens were consumed, skip one to avoid an infinite loop.
		if p.pos == startPos {
			p.advance()
		}
	}

	p.expect(lexer.RBRACE, "expected '}'")
	return block
}

// parseVarStmt parses let/const/var declarators without the terminator so
// that it can serve for-loop initializers as well.
func (p *Parser) parseVarStmt() *ast.VarStmt {
	tok := p.advance()
	stmt := &ast.VarStmt{Kind: tok.Value, Ambient: p.ambient, Pos: p.position(tok)}
	for {
		name := p.expect(lexer.IDENT, "expected variable name")
		decl := &ast.VarDecl{Name: name.Value, Pos: p.position(name)}
		if p.match(lexer.COLON) {
			decl.Type = p.parseType()
		}
		if p.match(lexer.ASSIGN) {
			decl.Init = p.parseExpression()
		} else if stmt.IsConst() && !p.ambient {
			p.addError(name, fmt.Sprintf("const '%s' must be initialized", name.Value))
		}
		stmt.Decls = append(stmt.Decls, decl)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	return stmt
}

func (p *Parser) parseReturnStmt() *ast.ReturnStmt {
	tok := p.advance() // consume RETURN
	var value ast.Expr
	if !p.check(lexer.SEMICOLON) && !p.check(lexer.RBRACE) && p.peek().Line == tok.Line {
		value = p.parseExpression()
	}
	p.expectSemicolon("expected ';' after return statement")
	return &ast.ReturnStmt{Value: value, Pos: p.position(tok)}
}

func (p *Parser) parseIfStmt() *ast.IfStmt {
	tok := p.advance() // consume IF
	p.expect(lexer.LPAREN, "expected '(' after 'if'")
	cond := p.parseExpression()
	p.expect(lexer.RPAREN, "expected ')' after if condition")
	then := p.parseStatement()

	var elseStmt ast.Stmt
	if p.match(lexer.ELSE) {
		elseStmt = p.parseStatement()
	}

	return &ast.IfStmt{
		Condition: cond,
		Then:      orEmpty(then, tok),
		Else:      elseStmt,
		Pos:       p.position(tok),
	}
}

func (p *Parser) parseWhileStmt() *ast.WhileStmt {
	tok := p.advance() // consume WHILE
	p.expect(lexer.LPAREN, "expected '(' after 'while'")
	cond := p.parseExpression()
	p.expect(lexer.RPAREN, "expected ')' after while condition")
	body := p.parseStatement()
	return &ast.WhileStmt{Condition: cond, Body: orEmpty(body, tok), Pos: p.position(tok)}
}

func (p *Parser) parseForStmt() *ast.ForStmt {
	tok := p.advance() // consume FOR
	p.expect(lexer.LPAREN, "expected '(' after 'for'")

	stmt := &ast.ForStmt{Pos: p.position(tok)}
	switch {
	case p.check(lexer.SEMICOLON):
	case p.check(lexer.LET) || p.check(lexer.CONST) || p.check(lexer.VAR):
		stmt.Init = p.parseVarStmt()
	default:
		expr := p.parseExpression()
		stmt.Init = &ast.ExprStmt{Expression: expr, Pos: expr.GetPos()}
	}
	p.expect(lexer.SEMICOLON, "expected ';' after for initializer")

	if !p.check(lexer.SEMICOLON) {
		stmt.Condition = p.parseExpression()
	}
	p.expect(lexer.SEMICOLON, "expected ';' after for condition")

	if !p.check(lexer.RPAREN) {
		stmt.Update = p.parseExpression()
	}
	p.expect(lexer.RPAREN, "expected ')' after for clauses")
	stmt.Body = orEmpty(p.parseStatement(), tok)
	return stmt
}

func orEmpty(s ast.Stmt, tok lexer.Token) ast.Stmt {
	if s == nil {
		return &ast.EmptyStmt{Pos: ast.Position{Line: tok.Line, Column: tok.Column}}
	}
	return s
}

// =========================================================================
// Pratt expression parser
// =========================================================================

var assignOps = map[string]bool{
	lexer.ASSIGN:         true,
	lexer.PLUS_ASSIGN:    true,
	lexer.MINUS_ASSIGN:   true,
	lexer.STAR_ASSIGN:    true,
	lexer.SLASH_ASSIGN:   true,
	lexer.PERCENT_ASSIGN: true,
	lexer.AND_ASSIGN:     true,
	lexer.OR_ASSIGN:      true,
	lexer.XOR_ASSIGN:     true,
	lexer.SHL_ASSIGN:     true,
	lexer.SHR_ASSIGN:     true,
	lexer.USHR_ASSIGN:    true,
}

// parseExpression parses an assignment expression. Assignment is
// right-associative and binds looser than every binary operator.
func (p *Parser) parseExpression() ast.Expr {
	left := p.parsePrecedence(precOr)
	if tok := p.peek(); assignOps[tok.Type] {
		p.advance()
		value := p.parseExpression()
		return &ast.AssignExpr{Op: tok.Value, Target: left, Value: value, Pos: p.position(tok)}
	}
	return left
}

// parsePrecedence parses an expression with at least the given minimum
// precedence. This is the core of the Pratt algorithm.
func (p *Parser) parsePrecedence(minPrec int) ast.Expr {
	left := p.parsePrefix()

	for {
		if p.check(lexer.LT) {
			if typeArgs, ok := p.parseCallTypeArgs(); ok {
				tok := p.peek()
				left = &ast.CallExpr{Callee: left, TypeArgs: typeArgs, Args: p.parseArgs(), Pos: p.position(tok)}
				continue
			}
		}
		prec := p.infixPrecedence()
		if prec < minPrec || prec == precNone {
			break
		}
		left = p.parseInfix(left, prec)
	}

	return left
}

// parseCallTypeArgs reads '<' type (',' type)* '>' when it is directly
// followed by '('. Otherwise the '<' is a comparison: the parser rewinds and
// reports false.
func (p *Parser) parseCallTypeArgs() ([]ast.TypeExpr, bool) {
	start, errs, mark := p.pos, len(p.errors), len(p.undo)
	p.trial++
	defer func() { p.trial-- }()

	p.advance() // consume '<'
	args := []ast.TypeExpr{p.parseType()}
	for len(p.errors) == errs && p.match(lexer.COMMA) {
		args = append(args, p.parseType())
	}
	if len(p.errors) == errs && p.splitGreater() && p.check(lexer.LPAREN) {
		if p.trial == 1 {
			p.undo = p.undo[:0]
		}
		return args, true
	}

	for i := len(p.undo) - 1; i >= mark; i-- {
		p.tokens[p.undo[i].index] = p.undo[i].tok
	}
	p.undo = p.undo[:mark]
	p.errors = p.errors[:errs]
	p.pos = start
	return nil, false
}

// ---- Prefix (atoms & unary operators) ----

func (p *Parser) parsePrefix() ast.Expr {
	tok := p.peek()

	switch tok.Type {
	case lexer.IDENT:
		p.advance()
		return &ast.Ident{Name: tok.Value, Pos: p.position(tok)}

	case lexer.THIS:
		p.advance()
		return &ast.ThisExpr{Pos: p.position(tok)}

	case lexer.NUMBER:
		p.advance()
		value, err := parseNumber(tok.Value)
		if err != nil {
			p.addError(tok, fmt.Sprintf("invalid numeric literal %q", tok.Value))
		}
		return &ast.NumberLit{Raw: tok.Value, Value: value, Pos: p.position(tok)}

	case lexer.STRING:
		p.advance()
		return &ast.StringLit{Raw: tok.Value, Value: unquote(tok.Value), Pos: p.position(tok)}

	case lexer.TRUE, lexer.FALSE:
		p.advance()
		return &ast.BoolLit{Value: tok.Type == lexer.TRUE, Pos: p.position(tok)}

	case lexer.LPAREN:
		p.advance()
		expr := p.parseExpression()
		p.expect(lexer.RPAREN, "expected ')' after expression")
		return &ast.ParenExpr{X: expr, Pos: p.position(tok)}

	case lexer.LBRACKET:
		return p.parseArrayLit()

	case lexer.LBRACE:
		return p.parseObjectLit()

	case lexer.NEW:
		return p.parseNewExpr()

	case lexer.BANG, lexer.MINUS, lexer.PLUS, lexer.TILDE, lexer.INC, lexer.DEC:
		p.advance()
		operand := p.parsePrecedence(precUnary)
		return &ast.UnaryExpr{Op: tok.Value, X: operand, Pos: p.position(tok)}

	default:
		p.addError(tok, fmt.Sprintf("unexpected token %s in expression", tok.Type))
		p.advance() // consume the bad token so we make progress
		return &ast.Ident{Name: "<error>", Pos: p.position(tok)}
	}
}

// parseArrayLit parses [expr, expr, ...] or [] (empty array).
func (p *Parser) parseArrayLit() ast.Expr {
	tok := p.advance() // consume '['
	var elems []ast.Expr
	if !p.check(lexer.RBRACKET) {
		elems = append(elems, p.parseExpression())
		for p.match(lexer.COMMA) {
			if p.check(lexer.RBRACKET) {
				break // allow trailing comma
			}
			elems = append(elems, p.parseExpression())
		}
	}
	p.expect(lexer.RBRACKET, "expected ']' after array elements")
	return &ast.ArrayLit{Elems: elems, Pos: p.position(tok)}
}

// parseObjectLit parses { key: value, other, "quoted": value }.
func (p *Parser) parseObjectLit() ast.Expr {
	tok := p.advance() // consume '{'
	lit := &ast.ObjectLit{Pos: p.position(tok)}
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		key := p.peek()
		if key.Type != lexer.IDENT && key.Type != lexer.STRING {
			p.addError(key, fmt.Sprintf("expected property name, got %s", key.Type))
			p.synchronize()
			break
		}
		p.advance()
		prop := &ast.ObjectProp{Key: key.Value, Pos: p.position(key)}
		if key.Type == lexer.STRING {
			prop.Key = unquote(key.Value)
		}
		if p.match(lexer.COLON) {
			prop.Value = p.parseExpression()
		} else if key.Type == lexer.IDENT {
			prop.Value = &ast.Ident{Name: key.Value, Pos: p.position(key)}
		} else {
			p.expect(lexer.COLON, "expected ':' after property name")
		}
		lit.Props = append(lit.Props, prop)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RBRACE, "expected '}' after object literal")
	return lit
}

// parseNewExpr: new <name>(.<name>)*<T>(<args>)
func (p *Parser) parseNewExpr() ast.Expr {
	tok := p.advance() // consume NEW
	n := &ast.NewExpr{Pos: p.position(tok)}
	name := p.expect(lexer.IDENT, "expected class name after 'new'")
	var class ast.Expr = &ast.Ident{Name: name.Value, Pos: p.position(name)}
	for p.check(lexer.DOT) {
		dot := p.advance()
		member := p.expect(lexer.IDENT, "expected name after '.'")
		class = &ast.PropertyAccess{X: class, Name: member.Value, Pos: p.position(dot)}
	}
	n.Class = class
	if p.match(lexer.LT) {
		n.TypeArgs = append(n.TypeArgs, p.parseType())
		for p.match(lexer.COMMA) {
			n.TypeArgs = append(n.TypeArgs, p.parseType())
		}
		if !p.splitGreater() {
			p.expect(lexer.GT, "expected '>' after type arguments")
		}
	}
	if p.check(lexer.LPAREN) {
		n.Args = p.parseArgs()
	}
	return n
}

// ---- Infix precedence table ----

func (p *Parser) infixPrecedence() int {
	tok := p.peek()
	switch tok.Type {
	case lexer.OR:
		return precOr
	case lexer.AND:
		return precAnd
	case lexer.PIPE:
		return precBitOr
	case lexer.CARET:
		return precBitXor
	case lexer.AMPERSAND:
		return precBitAnd
	case lexer.EQ, lexer.NEQ, lexer.STRICT_EQ, lexer.STRICT_NEQ:
		return precEquality
	case lexer.LT, lexer.GT, lexer.LTE, lexer.GTE:
		return precComparison
	case lexer.SHL, lexer.SHR, lexer.USHR:
		return precShift
	case lexer.PLUS, lexer.MINUS:
		return precAdditive
	case lexer.STAR, lexer.SLASH, lexer.PERCENT:
		return precMultiply
	case lexer.INC, lexer.DEC:
		// A line break before ++/-- makes it a prefix of the next statement.
		if tok.Line == p.previous().Line {
			return precPostfix
		}
		return precNone
	case lexer.LPAREN, lexer.DOT, lexer.LBRACKET:
		return precCall
	default:
		return precNone
	}
}

// ---- Infix / postfix dispatch ----

func (p *Parser) parseInfix(left ast.Expr, prec int) ast.Expr {
	tok := p.peek()

	switch tok.Type {
	case lexer.LPAREN:
		return &ast.CallExpr{Callee: left, Args: p.parseArgs(), Pos: p.position(tok)}
	case lexer.DOT:
		return p.parsePropertyAccess(left)
	case lexer.LBRACKET:
		p.advance()
		index := p.parseExpression()
		p.expect(lexer.RBRACKET, "expected ']' after index expression")
		return &ast.ElementAccess{X: left, Index: index, Pos: p.position(tok)}
	case lexer.INC, lexer.DEC:
		p.advance()
		return &ast.PostfixExpr{Op: tok.Value, X: left, Pos: p.position(tok)}
	default:
		// Binary operator (left-associative: recurse with prec+1).
		p.advance()
		right := p.parsePrecedence(prec + 1)
		return &ast.BinaryExpr{
			Op:    tok.Value,
			Left:  left,
			Right: right,
			Pos:   p.position(tok),
		}
	}
}

func (p *Parser) parseArgs() []ast.Expr {
	var args []ast.Expr
	p.expect(lexer.LPAREN, "expected '(' before arguments")
	if !p.check(lexer.RPAREN) {
		args = append(args, p.parseExpression())
		for p.match(lexer.COMMA) {
			if p.check(lexer.RPAREN) {
				break
			}
			args = append(args, p.parseExpression())
		}
	}
	p.expect(lexer.RPAREN, "expected ')' after arguments")
	return args
}

// parsePropertyAccess: <object> . <name>. Keywords are valid property
// names (obj.new, obj.this).
func (p *Parser) parsePropertyAccess(object ast.Expr) ast.Expr {
	dotTok := p.advance() // consume .
	tok := p.peek()
	if tok.Type == lexer.IDENT || isKeyword(tok) {
		p.advance()
		return &ast.PropertyAccess{X: object, Name: tok.Value, Pos: p.position(dotTok)}
	}
	p.addError(tok, "expected property name after '.'")
	return &ast.PropertyAccess{X: object, Name: "<error>", Pos: p.position(dotTok)}
}

func isKeyword(tok lexer.Token) bool {
	if tok.Value == "" {
		return false
	}
	c := tok.Value[0]
	return c >= 'a' && c <= 'z' && tok.Type != lexer.IDENT && tok.Type != lexer.STRING && tok.Type != lexer.NUMBER
}

// ---------------------------------------------------------------------------
// Literal decoding
// ---------------------------------------------------------------------------

func parseNumber(raw string) (float64, error) {
	clean := strings.ReplaceAll(raw, "_", "")
	if len(clean) > 1 && clean[0] == '0' {
		switch clean[1] {
		case 'x', 'X', 'b', 'B', 'o', 'O':
			n, err := strconv.ParseUint(clean, 0, 64)
			return float64(n), err
		}
	}
	return strconv.ParseFloat(clean, 64)
}

// unquote strips the surrounding quotes of a string token and decodes its
// escape sequences.
func unquote(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	body := raw[1 : len(raw)-1]
	if !strings.Contains(body, "\\") {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' || i+1 >= len(body) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
