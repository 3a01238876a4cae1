package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Runtime primitives the generated code calls into.
const (
	builtinAllocate = "gc__allocate"
	builtinConcat   = "string__concat"
)

// builtinSlot names the layout of a builtin parameter or result. The string
// layout belongs to the module, so signatures refer to it symbolically.
type builtinSlot int

const (
	slotI32 builtinSlot = iota
	slotBytePtr
	slotString
)

type builtinSignature struct {
	ret    builtinSlot
	params []builtinSlot
}

// builtinSignatures is the fixed runtime ABI.
var builtinSignatures = map[string]builtinSignature{
	builtinAllocate: {ret: slotBytePtr, params: []builtinSlot{slotI32}},
	builtinConcat:   {ret: slotString, params: []builtinSlot{slotString, slotString}},
}

func (g *generator) slotType(s builtinSlot) types.Type {
	switch s {
	case slotI32:
		return types.I32
	case slotBytePtr:
		return types.I8Ptr
	default:
		return g.stringType
	}
}

// builtin returns the declaration of a runtime primitive, inserting it into
// the module on first reference.
func (g *generator) builtin(name string) (*ir.Func, error) {
	if f, ok := g.builtins[name]; ok {
		return f, nil
	}
	sig, ok := builtinSignatures[name]
	if !ok {
		return nil, fmt.Errorf("unknown builtin %q", name)
	}
	if f := g.lookupFunc(name); f != nil {
		// A body-less declaration of the same name, e.g. String.concat.
		g.builtins[name] = f
		return f, nil
	}
	params := make([]*ir.Param, len(sig.params))
	for i, p := range sig.params {
		params[i] = ir.NewParam("", g.slotType(p))
	}
	f, err := g.newFunc(name, g.slotType(sig.ret), params...)
	if err != nil {
		return nil, err
	}
	g.builtins[name] = f
	return f, nil
}

// allocate emits a runtime allocation sized for st and casts the result to
// a pointer to st.
func (g *generator) allocate(st types.Type) (value.Value, error) {
	alloc, err := g.builtin(builtinAllocate)
	if err != nil {
		return nil, err
	}
	size := constant.NewInt(types.I32, g.sizeOf(st))
	raw := g.block.NewCall(alloc, size)
	return g.block.NewBitCast(raw, types.NewPointer(st)), nil
}

// concat emits a call to the runtime string concatenation.
func (g *generator) concat(a, b value.Value) (value.Value, error) {
	f, err := g.builtin(builtinConcat)
	if err != nil {
		return nil, err
	}
	return g.block.NewCall(f, a, b), nil
}
