package loader

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tsllvm/internal/ast"
	"tsllvm/internal/lexer"
	"tsllvm/internal/parser"
)

// LibName is the file name under which the ambient library is reported.
const LibName = "lib.tsllvm.d.ts"

//go:embed lib.tsllvm.d.ts
var ambientLib string

// Lib returns the source of the embedded ambient library.
func Lib() string { return ambientLib }

// ---------------------------------------------------------------------------
// LoadError represents an error while reading, lexing or parsing an input.
// ---------------------------------------------------------------------------

type LoadError struct {
	Message string
	File    string
	Line    int
	Column  int
}

func (e *LoadError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s: line %d, col %d: %s", e.File, e.Line, e.Column, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// ---------------------------------------------------------------------------
// Loader collects the source files of one compilation:
//   - the embedded ambient library, always first
//   - every input file, deduplicated by absolute path
//   - in-memory sources (REPL lines, tests)
//
// Files ending in .d.ts are parsed as ambient declarations.
// ---------------------------------------------------------------------------

type Loader struct {
	// NoLib skips the embedded ambient library.
	NoLib bool

	// seen tracks absolute paths that were already added.
	seen map[string]bool

	files  []*ast.SourceFile
	errors []*LoadError
}

// New creates an empty loader.
func New() *Loader {
	return &Loader{seen: make(map[string]bool)}
}

// AddFile reads and parses a file from disk. Adding the same file twice is
// a no-op.
func (l *Loader) AddFile(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		l.addError(path, fmt.Sprintf("cannot resolve path: %v", err))
		return
	}
	if l.seen[absPath] {
		return
	}
	l.seen[absPath] = true

	content, err := os.ReadFile(absPath)
	if err != nil {
		l.addError(path, fmt.Sprintf("cannot read file: %v", err))
		return
	}
	l.AddSource(path, string(content))
}

// AddSource parses an in-memory source under the given file name.
func (l *Loader) AddSource(name, src string) {
	tokens, lexErrors := lexer.Lex(src)
	if len(lexErrors) > 0 {
		for _, e := range lexErrors {
			l.errors = append(l.errors, &LoadError{
				Message: fmt.Sprintf("%s (got %q)", e.Message, e.Lexeme),
				File:    name,
				Line:    e.Line,
				Column:  e.Column,
			})
		}
		return
	}

	file, parseErrors := parser.ParseFile(name, tokens, isDeclarationFile(name))
	if len(parseErrors) > 0 {
		for _, e := range parseErrors {
			l.errors = append(l.errors, &LoadError{
				Message: e.Message,
				File:    name,
				Line:    e.Line,
				Column:  e.Column,
			})
		}
		return
	}
	l.files = append(l.files, file)
}

// Program returns the loaded files as one program, the ambient library
// first, together with every error collected so far.
func (l *Loader) Program() (*ast.Program, []*LoadError) {
	prog := &ast.Program{}
	errs := l.errors
	if !l.NoLib {
		lib, libErrs := parseLib()
		errs = append(libErrs, errs...)
		if lib != nil {
			prog.Files = append(prog.Files, lib)
		}
	}
	prog.Files = append(prog.Files, l.files...)
	return prog, errs
}

// Files returns the user files loaded so far, excluding the library.
func (l *Loader) Files() []*ast.SourceFile {
	return l.files
}

func (l *Loader) addError(file, msg string) {
	l.errors = append(l.errors, &LoadError{Message: msg, File: file})
}

// parseLib parses a fresh copy of the ambient library. Every program gets
// its own AST so checker results never share nodes.
func parseLib() (*ast.SourceFile, []*LoadError) {
	l := &Loader{seen: make(map[string]bool)}
	l.AddSource(LibName, ambientLib)
	if len(l.files) == 0 {
		return nil, l.errors
	}
	return l.files[0], l.errors
}

func isDeclarationFile(name string) bool {
	return strings.HasSuffix(name, ".d.ts")
}

// ---------------------------------------------------------------------------
// Convenience entry points
// ---------------------------------------------------------------------------

// Load reads the given files into a program.
func Load(paths ...string) (*ast.Program, []*LoadError) {
	l := New()
	for _, p := range paths {
		l.AddFile(p)
	}
	return l.Program()
}

// LoadSource parses a single in-memory source into a program.
func LoadSource(name, src string) (*ast.Program, []*LoadError) {
	l := New()
	l.AddSource(name, src)
	return l.Program()
}
