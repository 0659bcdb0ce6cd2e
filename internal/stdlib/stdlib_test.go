package stdlib_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thistlelang/thistle/internal/stdlib"
	"github.com/thistlelang/thistle/lang/compiler"
	"github.com/thistlelang/thistle/lang/machine"
)

func run(t *testing.T, src string) (string, machine.InterpretResult) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	vm := machine.New(&stdout, &stderr)
	vm.Compile = compiler.Compile
	stdlib.RegisterAll(vm)
	result := vm.Interpret(context.Background(), []byte(src), "test", ".")
	if result != machine.InterpretOK {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), result
}

func TestIOPrintln(t *testing.T) {
	out, res := run(t, `
using io;
io.println("hello", "world");
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "hello world \n", out)
}

func TestMathSqrt(t *testing.T) {
	out, res := run(t, `
using math;
echo math.sqrt(16);
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "4\n", out)
}

func TestMathConstants(t *testing.T) {
	out, res := run(t, `
using math;
echo math.pi > 3.14;
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "true\n", out)
}

func TestStringsSplitJoin(t *testing.T) {
	out, res := run(t, `
using strings;
var parts = strings.split("a,b,c", ",");
echo strings.join(parts, "-");
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "a-b-c\n", out)
}

func TestStringsUpperLower(t *testing.T) {
	out, res := run(t, `
using strings;
echo strings.upper("shout");
echo strings.lower("QUIET");
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "SHOUT\nquiet\n", out)
}

func TestListAlwaysOnMethods(t *testing.T) {
	out, res := run(t, `
var xs = [1, 2, 3];
xs.append(4);
xs.prepend(0);
echo xs.length();
echo xs.contains(2);
echo xs.find(20);
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "5\ntrue\nnull\n", out)
}

func TestListPushAndEnqueueAliasPrepend(t *testing.T) {
	out, res := run(t, `
var xs = [1];
xs.push(0);
xs.enqueue(-1);
echo xs[0];
echo xs[1];
echo xs[2];
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "-1\n0\n1\n", out)
}

func TestListsModuleFreeFunctions(t *testing.T) {
	out, res := run(t, `
using lists;
var xs = [1, 2, 3];
echo lists.length(xs);
lists.reverse(xs);
echo xs[0];
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "3\n3\n", out)
}

func TestStringLengthMethod(t *testing.T) {
	out, res := run(t, `echo "hello".length();`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "5\n", out)
}

func TestOSGetenvMissingReturnsNull(t *testing.T) {
	out, res := run(t, `
using os;
echo os.getenv("THISTLE_DEFINITELY_UNSET_VAR");
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "null\n", out)
}
