package codegen

import (
	"errors"
	"fmt"

	"tsllvm/internal/ast"
)

// Error kinds. Every generation failure wraps exactly one of them, so callers
// can test with errors.Is.
var (
	ErrUnknownIdentifier     = errors.New("unknown identifier")
	ErrDuplicateDefinition   = errors.New("duplicate definition")
	ErrUnsupportedType       = errors.New("unsupported type")
	ErrUnsupportedSyntax     = errors.New("unsupported syntax")
	ErrInvalidCallTarget     = errors.New("invalid call target")
	ErrMissingConstructor    = errors.New("missing constructor")
	ErrInvalidPropertyAccess = errors.New("invalid property access")
	ErrInvalidOperandTypes   = errors.New("invalid operand types")
	ErrMissingReturn         = errors.New("missing return")
	ErrInvalidModule         = errors.New("invalid module")
)

// ---------------------------------------------------------------------------
// Error is a fatal code generation failure at a source position.
// ---------------------------------------------------------------------------

type Error struct {
	Kind    error
	Message string
	Pos     ast.Position
}

func (e *Error) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

func errorf(kind error, pos ast.Position, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// Warning is a non-fatal advisory, such as a statement the generator skipped.
type Warning struct {
	Message string
	Pos     ast.Position
}

func (w Warning) String() string {
	if w.Pos.Line > 0 {
		return fmt.Sprintf("%s: warning: %s", w.Pos, w.Message)
	}
	return "warning: " + w.Message
}
