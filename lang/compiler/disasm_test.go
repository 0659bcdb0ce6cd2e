package compiler_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thistlelang/thistle/lang/compiler"
	"github.com/thistlelang/thistle/lang/machine"
)

func TestDisassembleBasicArithmetic(t *testing.T) {
	vm := machine.New(nil, nil)
	module := vm.NewModule(vm.NewString("test"), ".")
	fn, err := compiler.Compile(vm, module, []byte(`echo 1 + 2;`))
	require.NoError(t, err)

	var buf bytes.Buffer
	compiler.Disassemble(&buf, fn)
	out := buf.String()

	require.Contains(t, out, "== <script> ==")
	require.Contains(t, out, "CONSTANT")
	require.Contains(t, out, "ADD")
	require.Contains(t, out, "PRINT")
	require.Contains(t, out, "RETURN")
}

func TestDisassembleRecursesIntoNestedFunctions(t *testing.T) {
	vm := machine.New(nil, nil)
	module := vm.NewModule(vm.NewString("test"), ".")
	fn, err := compiler.Compile(vm, module, []byte(`
fun add(a, b) {
    return a + b;
}
echo add(1, 2);
`))
	require.NoError(t, err)

	var buf bytes.Buffer
	compiler.Disassemble(&buf, fn)
	out := buf.String()

	require.Contains(t, out, "== <script> ==")
	require.Contains(t, out, "== add ==")
	require.Contains(t, out, "CLOSURE")
}

func TestDisassembleJumpShowsTarget(t *testing.T) {
	vm := machine.New(nil, nil)
	module := vm.NewModule(vm.NewString("test"), ".")
	fn, err := compiler.Compile(vm, module, []byte(`
if (true) {
    echo 1;
} else {
    echo 2;
}
`))
	require.NoError(t, err)

	var buf bytes.Buffer
	compiler.Disassemble(&buf, fn)
	out := buf.String()

	require.Contains(t, out, "JUMP_IF_FALSE")
	require.Contains(t, out, "->")
}
