package lexer

import "fmt"

const (
	// Special
	EOF     = "EOF"
	ILLEGAL = "ILLEGAL"

	// Literals
	IDENT  = "IDENT"  // identifiers: point, length, Array, …
	NUMBER = "NUMBER" // numeric literals: 0, 42, 0xFF, 3.14, 1e10, …
	STRING = "STRING" // string literals: "hello", 'world', …

	// Keywords
	LET       = "LET"
	CONST     = "CONST"
	VAR       = "VAR"
	FUNCTION  = "FUNCTION"
	RETURN    = "RETURN"
	TRUE      = "TRUE"
	FALSE     = "FALSE"
	IF        = "IF"
	ELSE      = "ELSE"
	FOR       = "FOR"
	WHILE     = "WHILE"
	BREAK     = "BREAK"
	CONTINUE  = "CONTINUE"
	CLASS     = "CLASS"
	INTERFACE = "INTERFACE"
	NAMESPACE = "NAMESPACE"
	MODULE    = "MODULE"
	DECLARE   = "DECLARE"
	EXPORT    = "EXPORT"
	NEW       = "NEW"
	THIS      = "THIS"
	VOID      = "VOID"
	READONLY  = "READONLY"
	TYPE      = "TYPE"
	THROW     = "THROW"
	EXTENDS   = "EXTENDS"

	// Delimiters
	LPAREN    = "LPAREN"    // (
	RPAREN    = "RPAREN"    // )
	LBRACE    = "LBRACE"    // {
	RBRACE    = "RBRACE"    // }
	LBRACKET  = "LBRACKET"  // [
	RBRACKET  = "RBRACKET"  // ]
	SEMICOLON = "SEMICOLON" // ;
	COLON     = "COLON"     // :
	COMMA     = "COMMA"     // ,
	DOT       = "DOT"       // .
	QUESTION  = "QUESTION"  // ?

	// Operators
	ASSIGN    = "ASSIGN"    // =
	PLUS      = "PLUS"      // +
	MINUS     = "MINUS"     // -
	STAR      = "STAR"      // *
	SLASH     = "SLASH"     // /
	PERCENT   = "PERCENT"   // %
	AMPERSAND = "AMPERSAND" // &
	BANG      = "BANG"      // !
	PIPE      = "PIPE"      // |
	CARET     = "CARET"     // ^
	TILDE     = "TILDE"     // ~
	SHL       = "SHL"       // <<
	SHR       = "SHR"       // >>
	USHR      = "USHR"      // >>>
	INC       = "INC"       // ++
	DEC       = "DEC"       // --

	// Compound assignment
	PLUS_ASSIGN    = "PLUS_ASSIGN"    // +=
	MINUS_ASSIGN   = "MINUS_ASSIGN"   // -=
	STAR_ASSIGN    = "STAR_ASSIGN"    // *=
	SLASH_ASSIGN   = "SLASH_ASSIGN"   // /=
	PERCENT_ASSIGN = "PERCENT_ASSIGN" // %=
	AND_ASSIGN     = "AND_ASSIGN"     // &=
	OR_ASSIGN      = "OR_ASSIGN"      // |=
	XOR_ASSIGN     = "XOR_ASSIGN"     // ^=
	SHL_ASSIGN     = "SHL_ASSIGN"     // <<=
	SHR_ASSIGN     = "SHR_ASSIGN"     // >>=
	USHR_ASSIGN    = "USHR_ASSIGN"    // >>>=

	// Comparison operators
	EQ         = "EQ"         // ==
	NEQ        = "NEQ"        // !=
	STRICT_EQ  = "STRICT_EQ"  // ===
	STRICT_NEQ = "STRICT_NEQ" // !==
	LT         = "LT"         // <
	GT         = "GT"         // >
	LTE        = "LTE"        // <=
	GTE        = "GTE"        // >=

	// Logical operators
	AND = "AND" // &&
	OR  = "OR"  // ||
)

// keywords maps reserved words to their token types. Primitive type names
// (number, string, boolean, any) are plain identifiers.
var keywords = map[string]string{
	"let":       LET,
	"const":     CONST,
	"var":       VAR,
	"function":  FUNCTION,
	"return":    RETURN,
	"true":      TRUE,
	"false":     FALSE,
	"if":        IF,
	"else":      ELSE,
	"for":       FOR,
	"while":     WHILE,
	"break":     BREAK,
	"continue":  CONTINUE,
	"class":     CLASS,
	"interface": INTERFACE,
	"namespace": NAMESPACE,
	"module":    MODULE,
	"declare":   DECLARE,
	"export":    EXPORT,
	"new":       NEW,
	"this":      THIS,
	"void":      VOID,
	"readonly":  READONLY,
	"type":      TYPE,
	"throw":     THROW,
	"extends":   EXTENDS,
}

// operators lists every operator and delimiter, longest spellings first so
// that a greedy scan picks ">>>=" over ">>" over ">".
var operators = []struct {
	text string
	typ  string
}{
	{">>>=", USHR_ASSIGN},
	{"===", STRICT_EQ},
	{"!==", STRICT_NEQ},
	{">>>", USHR},
	{"<<=", SHL_ASSIGN},
	{">>=", SHR_ASSIGN},
	{"==", EQ},
	{"!=", NEQ},
	{"<=", LTE},
	{">=", GTE},
	{"<<", SHL},
	{">>", SHR},
	{"&&", AND},
	{"||", OR},
	{"++", INC},
	{"--", DEC},
	{"+=", PLUS_ASSIGN},
	{"-=", MINUS_ASSIGN},
	{"*=", STAR_ASSIGN},
	{"/=", SLASH_ASSIGN},
	{"%=", PERCENT_ASSIGN},
	{"&=", AND_ASSIGN},
	{"|=", OR_ASSIGN},
	{"^=", XOR_ASSIGN},
	{"(", LPAREN},
	{")", RPAREN},
	{"{", LBRACE},
	{"}", RBRACE},
	{"[", LBRACKET},
	{"]", RBRACKET},
	{";", SEMICOLON},
	{":", COLON},
	{",", COMMA},
	{".", DOT},
	{"?", QUESTION},
	{"=", ASSIGN},
	{"+", PLUS},
	{"-", MINUS},
	{"*", STAR},
	{"/", SLASH},
	{"%", PERCENT},
	{"&", AMPERSAND},
	{"!", BANG},
	{"|", PIPE},
	{"^", CARET},
	{"~", TILDE},
	{"<", LT},
	{">", GT},
}

// Token represents a single lexical token produced by the lexer.
type Token struct {
	Type   string
	Value  string
	Line   int
	Column int
}

// LexError represents a recoverable error encountered during lexing.
type LexError struct {
	Message string
	Lexeme  string
	Line    int
	Column  int
}

func (e LexError) Error() string {
	return fmt.Sprintf("line %d, col %d: %s (got %q)", e.Line, e.Column, e.Message, e.Lexeme)
}

// Lex splits input into tokens. Lexing never stops at the first problem:
// unterminated strings, bad escapes and stray characters are reported as
// LexErrors and scanning continues. The token slice always ends with EOF.
func Lex(input string) ([]Token, []LexError) {
	var tokens []Token
	var errors []LexError
	line, col, i := 1, 1, 0

	for i < len(input) {
		ch := input[i]
		if isWhitespace(ch) {
			if ch == '\n' {
				line++
				col = 1
			} else if ch != '\r' {
				col++
			}
			i++
			continue
		}

		if ch == '/' && i+1 < len(input) {
			if input[i+1] == '/' {
				i, col = skipLineComment(input, i, col)
				continue
			}
			if input[i+1] == '*' {
				var err *LexError
				i, line, col, err = skipBlockComment(input, i, line, col)
				if err != nil {
					errors = append(errors, *err)
				}
				continue
			}
		}

		if ch == '"' || ch == '\'' {
			tok, errs, newI, newLine, newCol := lexString(input, i, line, col)
			i, line, col = newI, newLine, newCol
			errors = append(errors, errs...)
			if tok != nil {
				tokens = append(tokens, *tok)
			}
			continue
		}

		if isDigit(ch) || (ch == '.' && i+1 < len(input) && isDigit(input[i+1])) {
			tok, newI, newCol := lexNumber(input, i, line, col)
			tokens = append(tokens, tok)
			i, col = newI, newCol
			continue
		}

		if isIdentStart(ch) {
			tok, newI, newCol := lexIdentifier(input, i, line, col)
			tokens = append(tokens, tok)
			i, col = newI, newCol
			continue
		}

		if tok, width := lexOperatorOrDelimiter(input, i, line, col); width > 0 {
			tokens = append(tokens, tok)
			i += width
			col += width
			continue
		}

		errors = append(errors, LexError{
			Message: "unexpected character",
			Lexeme:  string(ch),
			Line:    line,
			Column:  col,
		})
		i++
		col++
	}

	tokens = append(tokens, Token{EOF, "", line, col})
	return tokens, errors
}

func skipLineComment(input string, i int, col int) (int, int) {
	for i < len(input) && input[i] != '\n' {
		i++
		col++
	}
	return i, col
}

func skipBlockComment(input string, i int, line int, col int) (int, int, int, *LexError) {
	startLine, startCol := line, col
	i += 2
	col += 2

	for i < len(input) {
		if input[i] == '*' && i+1 < len(input) && input[i+1] == '/' {
			i += 2
			col += 2
			return i, line, col, nil
		}
		if input[i] == '\n' {
			line++
			col = 1
		} else if input[i] != '\r' {
			col++
		}
		i++
	}

	return i, line, col, &LexError{
		Message: "unterminated block comment",
		Lexeme:  "/*",
		Line:    startLine,
		Column:  startCol,
	}
}

func lexString(input string, start int, line int, col int) (*Token, []LexError, int, int, int) {
	quote := input[start]
	startLine, startCol := line, col
	var errs []LexError
	i := start + 1
	col++

	for i < len(input) {
		ch := input[i]

		if ch == '\n' || ch == '\r' {
			errs = append(errs, LexError{
				Message: "unterminated string literal (newline in string)",
				Lexeme:  input[start:i],
				Line:    startLine,
				Column:  startCol,
			})
			return nil, errs, i, line, col
		}

		if ch == '\\' {
			if i+1 >= len(input) {
				errs = append(errs, LexError{
					Message: "unterminated escape sequence at end of input",
					Lexeme:  "\\",
					Line:    line,
					Column:  col,
				})
				return nil, errs, i + 1, line, col + 1
			}
			next := input[i+1]
			if !isValidEscape(next) {
				errs = append(errs, LexError{
					Message: fmt.Sprintf("invalid escape sequence '\\%c'", next),
					Lexeme:  string([]byte{'\\', next}),
					Line:    line,
					Column:  col,
				})
			}
			i += 2
			col += 2
			continue
		}

		if ch == quote {
			tok := Token{
				Type:   STRING,
				Value:  input[start : i+1],
				Line:   startLine,
				Column: startCol,
			}
			i++
			col++
			return &tok, errs, i, line, col
		}

		i++
		col++
	}

	errs = append(errs, LexError{
		Message: "unterminated string literal (reached end of input)",
		Lexeme:  input[start:],
		Line:    startLine,
		Column:  startCol,
	})
	return nil, errs, i, line, col
}

// lexNumber scans a numeric literal: decimal (42, .5, 3.14), hexadecimal
// (0xFF), binary (0b101), octal (0o17) and scientific notation (1.5e10).
// A dot is only part of the number when a digit follows it, so `1.toString`
// style member access keeps its DOT.
func lexNumber(input string, start int, line int, col int) (Token, int, int) {
	i := start
	startCol := col

	if input[i] == '0' && i+1 < len(input) {
		var digit func(byte) bool
		switch input[i+1] {
		case 'x', 'X':
			digit = isHexDigit
		case 'b', 'B':
			digit = func(c byte) bool { return c == '0' || c == '1' }
		case 'o', 'O':
			digit = func(c byte) bool { return c >= '0' && c <= '7' }
		}
		if digit != nil {
			i += 2
			col += 2
			for i < len(input) && (digit(input[i]) || input[i] == '_') {
				i++
				col++
			}
			return Token{NUMBER, input[start:i], line, startCol}, i, col
		}
	}

	for i < len(input) && (isDigit(input[i]) || input[i] == '_') {
		i++
		col++
	}

	if i < len(input) && input[i] == '.' && i+1 < len(input) && isDigit(input[i+1]) {
		i++
		col++
		for i < len(input) && (isDigit(input[i]) || input[i] == '_') {
			i++
			col++
		}
	}

	if i < len(input) && (input[i] == 'e' || input[i] == 'E') {
		i++
		col++
		if i < len(input) && (input[i] == '+' || input[i] == '-') {
			i++
			col++
		}
		for i < len(input) && isDigit(input[i]) {
			i++
			col++
		}
	}

	return Token{NUMBER, input[start:i], line, startCol}, i, col
}

func lexIdentifier(input string, start int, line int, col int) (Token, int, int) {
	i := start
	startCol := col
	for i < len(input) && isIdentPart(input[i]) {
		i++
		col++
	}
	word := input[start:i]
	tokType := IDENT
	if kw, ok := keywords[word]; ok {
		tokType = kw
	}
	return Token{tokType, word, line, startCol}, i, col
}

// lexOperatorOrDelimiter matches the longest operator or delimiter starting
// at input[i]. Returns the token and the number of characters consumed (0 if
// nothing matched).
func lexOperatorOrDelimiter(input string, i int, line int, col int) (Token, int) {
	rest := input[i:]
	for _, op := range operators {
		if len(rest) >= len(op.text) && rest[:len(op.text)] == op.text {
			return Token{op.typ, op.text, line, col}, len(op.text)
		}
	}
	return Token{}, 0
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentStart(ch byte) bool {
	return isLetter(ch) || ch == '_' || ch == '$'
}

func isIdentPart(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '_' || ch == '$'
}

func isValidEscape(ch byte) bool {
	switch ch {
	case 'n', 'r', 't', 'b', 'f', 'v', '\\', '\'', '"', '0':
		return true
	default:
		return false
	}
}
