package codegen

import (
	"errors"
	"testing"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
)

func num(v float64) *Binding {
	return valueBinding(constant.NewFloat(types.Double, v))
}

func TestSymbolTableShadowing(t *testing.T) {
	st := NewSymbolTable()
	outer := num(1)
	if err := st.Set("x", outer); err != nil {
		t.Fatal(err)
	}

	inner := num(2)
	err := st.WithScope("block", func(*Scope) error {
		if err := st.Set("x", inner); err != nil {
			return err
		}
		b, err := st.Get("x")
		if err != nil {
			return err
		}
		if b != inner {
			t.Error("inner binding should shadow the outer one")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	b, err := st.Get("x")
	if err != nil || b != outer {
		t.Errorf("outer binding should be visible again, got %v, %v", b, err)
	}
}

func TestSymbolTableDuplicate(t *testing.T) {
	st := NewSymbolTable()
	if err := st.Set("x", num(1)); err != nil {
		t.Fatal(err)
	}
	err := st.Set("x", num(2))
	if !errors.Is(err, ErrDuplicateDefinition) {
		t.Fatalf("expected ErrDuplicateDefinition, got %v", err)
	}
}

func TestSymbolTablePath(t *testing.T) {
	st := NewSymbolTable()
	a := NewScope("A")
	b := NewScope("B")
	leaf := num(3)
	if err := b.Set("f", leaf); err != nil {
		t.Fatal(err)
	}
	if err := a.Set("B", namespaceBinding(b)); err != nil {
		t.Fatal(err)
	}
	if err := st.Set("A", namespaceBinding(a)); err != nil {
		t.Fatal(err)
	}

	got, err := st.Get("A", "B", "f")
	if err != nil || got != leaf {
		t.Fatalf("Get(A, B, f) = %v, %v", got, err)
	}

	for _, path := range [][]string{
		{"missing"},
		{"A", "missing"},
		{"A", "B", "f", "g"},
		{},
	} {
		if _, err := st.Get(path...); !errors.Is(err, ErrUnknownIdentifier) {
			t.Errorf("Get(%v) should fail with ErrUnknownIdentifier, got %v", path, err)
		}
	}
}

func TestSymbolTablePromote(t *testing.T) {
	st := NewSymbolTable()
	if err := st.Set("n", num(1)); err != nil {
		t.Fatal(err)
	}
	slot := storageBinding(constant.NewNull(types.NewPointer(types.Double)), types.Double)

	err := st.WithScope("body", func(*Scope) error {
		return st.Promote("n", slot)
	})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := st.Get("n")
	if b != slot {
		t.Error("promotion should replace the binding where it was defined")
	}
	if err := st.Promote("missing", slot); !errors.Is(err, ErrUnknownIdentifier) {
		t.Errorf("expected ErrUnknownIdentifier, got %v", err)
	}
}

func TestWithScopePopsOnError(t *testing.T) {
	st := NewSymbolTable()
	boom := errors.New("boom")
	err := st.WithScope("outer", func(*Scope) error {
		return st.WithScope("inner", func(*Scope) error {
			if st.Depth() != 3 {
				t.Errorf("expected depth 3, got %d", st.Depth())
			}
			return boom
		})
	})
	if err != boom {
		t.Fatalf("expected the body's error, got %v", err)
	}
	if st.Depth() != 1 {
		t.Errorf("expected only the global scope, got depth %d", st.Depth())
	}
}

func TestScopeNamesInOrder(t *testing.T) {
	s := NewScope("ns")
	for _, name := range []string{"c", "a", "b"} {
		if err := s.Set(name, num(0)); err != nil {
			t.Fatal(err)
		}
	}
	got := s.Names()
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

func TestEnterRestoresStack(t *testing.T) {
	st := NewSymbolTable()
	ns := NewScope("N")
	if err := ns.Set("hidden", num(1)); err != nil {
		t.Fatal(err)
	}

	err := st.WithScope("caller", func(*Scope) error {
		if err := st.Set("local", num(2)); err != nil {
			return err
		}
		restore := st.enter([]*Scope{ns})
		if _, err := st.Get("local"); err == nil {
			t.Error("caller locals should not be visible in the callee environment")
		}
		if _, err := st.Get("hidden"); err != nil {
			t.Errorf("namespace members should be visible: %v", err)
		}
		restore()
		_, err := st.Get("local")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}
