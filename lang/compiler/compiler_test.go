package compiler_test

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thistlelang/thistle/lang/compiler"
	"github.com/thistlelang/thistle/lang/machine"
)

func run(t *testing.T, src string) (string, machine.InterpretResult) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	vm := machine.New(&stdout, &stderr)
	vm.Compile = compiler.Compile
	result := vm.Interpret(context.Background(), []byte(src), "test", ".")
	if result != machine.InterpretOK {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), result
}

func TestEchoArithmetic(t *testing.T) {
	out, res := run(t, `echo 1 + 2 * 3;`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "7\n", out)
}

func TestModuleScopedVar(t *testing.T) {
	out, res := run(t, `
var counter = 0;
fun increment() {
    counter = counter + 1;
}
increment();
increment();
echo counter;
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "2\n", out)
}

func TestConstReassignmentIsCompileError(t *testing.T) {
	_, res := run(t, `
const pi = 3;
pi = 4;
`)
	require.Equal(t, machine.InterpretCompileError, res)
}

func TestLocalDoesNotLeakToModuleScope(t *testing.T) {
	out, res := run(t, `
fun f() {
    local x = 10;
    echo x;
}
f();
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "10\n", out)

	_, res = run(t, `
fun f() {
    local x = 10;
}
f();
echo x;
`)
	require.Equal(t, machine.InterpretRuntimeError, res)
}

func TestClosureCapturesUpvalue(t *testing.T) {
	out, res := run(t, `
fun makeCounter() {
    local n = 0;
    fun increment() {
        n = n + 1;
        return n;
    }
    return increment;
}
var c = makeCounter();
echo c();
echo c();
echo c();
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestClassInheritanceAndSuper(t *testing.T) {
	out, res := run(t, `
class Animal {
    init(name) {
        this.name = name;
    }
    speak() {
        return this.name + " makes a sound";
    }
}
class Dog extends Animal {
    speak() {
        return super.speak() + " (a bark)";
    }
}
var d = Dog("Rex");
echo d.speak();
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "Rex makes a sound (a bark)\n", out)
}

func TestEchoInstancePrintsNameAndInstanceNoBrackets(t *testing.T) {
	out, res := run(t, `
class Dog {}
echo Dog();
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "Dog instance\n", out)
}

func TestBreakAndContinueInLoop(t *testing.T) {
	out, res := run(t, `
local i = 0;
while (true) {
    i = i + 1;
    if (i == 2) {
        continue;
    }
    if (i > 4) {
        break;
    }
    echo i;
}
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "1\n3\n4\n", out)
}

func TestReadingLocalInOwnInitializerIsCompileError(t *testing.T) {
	_, res := run(t, `
fun f() {
    local x = x;
}
`)
	require.Equal(t, machine.InterpretCompileError, res)
}

func TestCallingNonCallableIsRuntimeError(t *testing.T) {
	_, res := run(t, `
var x = 1;
x();
`)
	require.Equal(t, machine.InterpretRuntimeError, res)
}

func TestArityMismatchIsRuntimeError(t *testing.T) {
	_, res := run(t, `
fun f(a, b) { return a + b; }
f(1);
`)
	require.Equal(t, machine.InterpretRuntimeError, res)
}

func TestListLiteralAndIndexAssignment(t *testing.T) {
	out, res := run(t, `
var xs = [1, 2, 3];
xs[1] = 20;
echo xs[0];
echo xs[1];
echo xs[2];
`)
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "1\n20\n3\n", out)
}

func TestCompileErrorReportsLine(t *testing.T) {
	var stdout, stderr bytes.Buffer
	vm := machine.New(&stdout, &stderr)
	vm.Compile = compiler.Compile
	res := vm.Interpret(context.Background(), []byte("echo 1 +;"), "test", ".")
	require.Equal(t, machine.InterpretCompileError, res)
	require.Contains(t, stderr.String(), "line 1")
}

func TestModuleVarShadowsNativeOfSameName(t *testing.T) {
	var stdout, stderr bytes.Buffer
	vm := machine.New(&stdout, &stderr)
	vm.Compile = compiler.Compile
	vm.DefineGlobal("double", func(vm *machine.VM, args []machine.Value) machine.Value {
		return machine.Number(999)
	})

	res := vm.Interpret(context.Background(), []byte(`
var double = 2;
echo double;
`), "test", ".")
	if res != machine.InterpretOK {
		t.Logf("stderr: %s", stderr.String())
	}
	require.Equal(t, machine.InterpretOK, res)
	require.Equal(t, "2\n", stdout.String())
}

func TestManyLocalsCompileErrorOnOverflow(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("fun f() {\n")
	for i := 0; i < 300; i++ {
		sb.WriteString("local x")
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(" = 0;\n")
	}
	sb.WriteString("}\n")
	_, res := run(t, sb.String())
	require.Equal(t, machine.InterpretCompileError, res)
}
