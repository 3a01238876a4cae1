package codegen

import (
	"strings"

	"tsllvm/internal/ast"
	"tsllvm/internal/semantic"
)

// entryName is the name of the synthetic whole-program entry function.
const entryName = "main"

// mangleType returns the emission name of a resolved type:
//
//	number, string, boolean
//	<namespace chain "__">? Name ("__" <type argument>)*
//
// Box<number> inside namespace Shapes mangles as Shapes__Box__number.
func mangleType(o Oracle, t *semantic.Type) (string, error) {
	if t == nil {
		return "", errorf(ErrUnsupportedType, ast.Position{}, "unresolved type")
	}
	switch t.Kind {
	case semantic.KindNumber, semantic.KindString, semantic.KindBoolean, semantic.KindVoid:
		return t.Name, nil
	case semantic.KindClass, semantic.KindInterface:
		if t.Interface != nil && o.IsStringInterface(t.Interface) {
			return "string", nil
		}
		parts := append([]string(nil), t.Namespace()...)
		parts = append(parts, t.Name)
		for _, arg := range o.TypeArgumentsOf(t) {
			name, err := mangleType(o, arg)
			if err != nil {
				return "", err
			}
			parts = append(parts, name)
		}
		return strings.Join(parts, "__"), nil
	}
	return "", errorf(ErrUnsupportedType, ast.Position{}, "type %s has no emission name", t)
}

// mangleCallable returns the emission name of a function-like declaration:
// (<enclosing> "__")? <base> ("__" <type argument>)*.
//
// The enclosing name is the mangled receiver type for members, the namespace
// chain for free functions declared in a namespace, and empty otherwise.
// Type arguments of generic functions and methods follow the base name.
func mangleCallable(o Oracle, decl ast.Callable, receiver *semantic.Type, typeArgs []*semantic.Type) (string, error) {
	var parts []string
	if receiver != nil {
		enclosing, err := mangleType(o, receiver)
		if err != nil {
			return "", err
		}
		parts = append(parts, enclosing)
	} else if fn, ok := decl.(*ast.FunctionDecl); ok {
		parts = append(parts, fn.Namespace...)
	}

	parts = append(parts, baseName(decl))
	for _, arg := range typeArgs {
		name, err := mangleType(o, arg)
		if err != nil {
			return "", err
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "__"), nil
}

func baseName(decl ast.Callable) string {
	switch decl.(type) {
	case *ast.ConstructorDecl:
		return "constructor"
	case *ast.IndexSignature:
		return "subscript"
	}
	return decl.CallableName()
}

// mangleGlobal returns the emission name of a module-level variable.
func mangleGlobal(namespace []string, name string) string {
	if len(namespace) == 0 {
		return name
	}
	return strings.Join(namespace, "__") + "__" + name
}
