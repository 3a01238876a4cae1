package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tsllvm/internal/ast"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLibComesFirst(t *testing.T) {
	prog, errs := LoadSource("main.ts", "let x = 1;")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(prog.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(prog.Files))
	}
	if prog.Files[0].Name != LibName || !prog.Files[0].Ambient {
		t.Errorf("first file = %q (ambient=%v), want the ambient library", prog.Files[0].Name, prog.Files[0].Ambient)
	}
	if prog.Files[1].Name != "main.ts" || prog.Files[1].Ambient {
		t.Errorf("second file = %q (ambient=%v), want main.ts", prog.Files[1].Name, prog.Files[1].Ambient)
	}
}

func TestLibDeclarations(t *testing.T) {
	prog, errs := LoadSource("empty.ts", "")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	names := map[string]bool{}
	for _, stmt := range prog.Files[0].Stmts {
		switch d := stmt.(type) {
		case *ast.ClassDecl:
			names[d.Name] = d.Ambient
		case *ast.InterfaceDecl:
			names[d.Name] = d.Ambient
		case *ast.NamespaceDecl:
			names[d.Name] = d.Ambient
		}
	}
	for _, want := range []string{"Array", "String", "Boolean", "Number", "Object", "console"} {
		ambient, ok := names[want]
		if !ok {
			t.Errorf("library does not declare %s", want)
		} else if !ambient {
			t.Errorf("%s should be ambient", want)
		}
	}
}

func TestNoLib(t *testing.T) {
	l := New()
	l.NoLib = true
	l.AddSource("a.ts", "let a = 1;")
	prog, errs := l.Program()
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(prog.Files) != 1 || prog.Files[0].Name != "a.ts" {
		t.Fatalf("expected only a.ts, got %d file(s)", len(prog.Files))
	}
}

func TestAddFileDeduplicates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.ts", "let x = 1;")

	l := New()
	l.AddFile(path)
	l.AddFile(filepath.Join(dir, ".", "main.ts"))
	if got := len(l.Files()); got != 1 {
		t.Errorf("expected 1 file after adding the same path twice, got %d", got)
	}
}

func TestDeclarationFilesAreAmbient(t *testing.T) {
	dir := t.TempDir()
	decl := writeFile(t, dir, "ext.d.ts", "declare function ext(x: number): number;")
	main := writeFile(t, dir, "main.ts", "let y = 2;")

	prog, errs := Load(decl, main)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !prog.Files[1].Ambient {
		t.Errorf("%s should be ambient", prog.Files[1].Name)
	}
	if prog.Files[2].Ambient {
		t.Errorf("%s should not be ambient", prog.Files[2].Name)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		substr string
	}{
		{"lex", `let s = "unterminated;`, "main.ts: line 1"},
		{"parse", "let = 5;", "main.ts: line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := LoadSource("main.ts", tt.src)
			if len(errs) == 0 {
				t.Fatal("expected an error")
			}
			if !strings.Contains(errs[0].Error(), tt.substr) {
				t.Errorf("error %q does not contain %q", errs[0].Error(), tt.substr)
			}
		})
	}
}

func TestMissingFile(t *testing.T) {
	_, errs := Load(filepath.Join(t.TempDir(), "nope.ts"))
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if !strings.Contains(errs[0].Error(), "cannot read file") {
		t.Errorf("unexpected error: %v", errs[0])
	}
}
