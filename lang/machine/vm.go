// Package machine implements the stack-based virtual machine: call frames,
// the dispatch loop, module loading, and error reporting over the tagged
// Value representation and heap objects defined alongside it.
package machine

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
)

// InterpretResult is the outcome of a top-level Interpret call.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// LibInit builds the ObjModule for a registered standard-library module.
type LibInit func(vm *VM) *ObjModule

// CompileFn compiles source text into a callable top-level function owned
// by module; it is supplied by the compiler package and injected here to
// avoid a machine→compiler import cycle (machine owns the runtime types
// compiler builds). The caller creates module up front (rather than
// Compile creating its own) so that every ObjFunction the compiler
// allocates, including nested function literals, can carry the same
// Module reference from the moment it's created.
type CompileFn func(vm *VM, module *ObjModule, source []byte) (*ObjFunction, error)

// VM is the stack machine: the value stack, the call-frame stack, the
// heap's object list, and every VM-owned table (strings, globals,
// modules, list/string methods).
type VM struct {
	stack      [StackSize]Value
	stackTop   int
	frames     [MaxFrames]CallFrame
	frameCount int

	objects       Obj
	openUpvalues  *ObjUpvalue
	strings       *internTable
	globals       *Table // predeclared natives; immutable from the language
	modules       map[string]*ObjModule
	registry      map[string]LibInit
	lastModule    *ObjModule
	listMethods   *Table
	stringMethods *Table
	initString    *ObjString

	compilerRoots []Obj
	bytesAllocated int
	nextGC         int
	grayStack      []Obj

	// StressGC forces a collection on every allocation, for testing.
	StressGC bool

	Stdout io.Writer
	Stderr io.Writer

	Compile CompileFn

	// instructionBudget bounds how many opcodes run between context
	// cancellation checks, so a long script or REPL line can be
	// interrupted without paying a context check on every instruction.
	instructionBudget int
}

const contextCheckInterval = 1 << 16

// New returns a freshly initialized VM with empty globals and a 1 MiB GC
// threshold, ready to have standard-library modules registered into it.
func New(stdout, stderr io.Writer) *VM {
	vm := &VM{
		strings:           newInternTable(),
		globals:           NewTable(),
		modules:           make(map[string]*ObjModule),
		registry:          make(map[string]LibInit),
		listMethods:       NewTable(),
		stringMethods:     NewTable(),
		nextGC:            initialGCThreshold,
		Stdout:            stdout,
		Stderr:            stderr,
		instructionBudget: contextCheckInterval,
	}
	vm.initString = vm.NewString("init")
	vm.bootstrapMethods()
	return vm
}

// SetInstructionBudget overrides how many opcodes run between context
// cancellation checks (the default is contextCheckInterval). A smaller
// budget makes a running script more promptly responsive to ctx
// cancellation at the cost of checking ctx.Err() more often.
func (vm *VM) SetInstructionBudget(n int) {
	vm.instructionBudget = n
}

// RegisterLib adds a standard-library module initializer under name, for
// the `using` keyword to resolve.
func (vm *VM) RegisterLib(name string, init LibInit) {
	vm.registry[name] = init
}

// DefineGlobal installs a native function into the VM's predeclared
// globals table, a natives table shared and immutable from the language.
func (vm *VM) DefineGlobal(name string, fn NativeFn) {
	key := vm.NewString(name)
	vm.globals.Set(key, FromObj(vm.NewNative(name, fn)))
}

// DefineListMethod registers a native under the VM's list-method table,
// resolved by OP_INVOKE when the receiver is a list.
func (vm *VM) DefineListMethod(name string, fn NativeFn) {
	key := vm.NewString(name)
	vm.listMethods.Set(key, FromObj(vm.NewNative(name, fn)))
}

// DefineStringMethod registers a native under the VM's string-method
// table, resolved by OP_INVOKE when the receiver is a string.
func (vm *VM) DefineStringMethod(name string, fn NativeFn) {
	key := vm.NewString(name)
	vm.stringMethods.Set(key, FromObj(vm.NewNative(name, fn)))
}

// HasGlobal reports whether name is a predeclared native, used by the
// compiler to decide between OP_GET_MODULE and OP_GET_GLOBAL.
func (vm *VM) HasGlobal(name string) bool {
	_, ok := vm.globals.Get(vm.NewString(name))
	return ok
}

// push/pop/peek operate on the value stack. They do not bounds-check in
// the hot path; StackOverflow is detected explicitly at call time.
func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// PushCompilerRoot registers fn as reachable while a nested compile is in
// progress (e.g. compiling a freshly-`OP_MODULE`-imported file), so that a
// GC triggered by constant interning during that compile does not collect
// it.
func (vm *VM) PushCompilerRoot(fn *ObjFunction) {
	vm.compilerRoots = append(vm.compilerRoots, fn)
}

// PopCompilerRoot unregisters the most recently pushed compiler root.
func (vm *VM) PopCompilerRoot() {
	vm.compilerRoots = vm.compilerRoots[:len(vm.compilerRoots)-1]
}

// Interpret compiles and runs source as a module named moduleName, whose
// directory (for resolving relative imports) is dir. The top-level script
// gets its own Module, cached under moduleName like any other import, so
// a file-path import that resolves to moduleName observes the same module
// object.
func (vm *VM) Interpret(ctx context.Context, source []byte, moduleName, dir string) InterpretResult {
	module := vm.NewModule(vm.NewString(moduleName), dir)
	vm.modules[moduleName] = module
	return vm.EvalModule(ctx, source, module)
}

// EvalModule compiles source against module's existing value table and
// runs the result, leaving whatever module-scope bindings it makes behind
// for a later EvalModule call against the same module to observe. This is
// what lets a REPL keep one module alive across lines, each compiled and
// run as its own top-level call, while `var`/`fun`/`class` declarations
// accumulate in module.Values.
func (vm *VM) EvalModule(ctx context.Context, source []byte, module *ObjModule) InterpretResult {
	vm.resetStack()
	vm.lastModule = module

	fn, err := vm.Compile(vm, module, source)
	if err != nil {
		fmt.Fprintln(vm.Stderr, err)
		return InterpretCompileError
	}

	vm.push(FromObj(fn))
	closure := vm.NewClosure(fn)
	vm.pop()
	vm.push(FromObj(closure))
	vm.callValue(FromObj(closure), 0)

	result := vm.run(ctx)
	if result == InterpretOK {
		vm.pop() // discard the script's implicit top-level return value
	}
	return result
}

func (vm *VM) runtimeError(format string, args ...any) {
	fmt.Fprintf(vm.Stderr, format+"\n", args...)
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		fn := f.Closure.Function
		name := "<script>"
		module := "?"
		if fn.Module != nil {
			module = fn.Module.Name.Value
		}
		if fn.Name != nil {
			name = fn.Name.Value
		}
		fmt.Fprintf(vm.Stderr, "  at %s, %s, line %d\n", module, name, f.line())
	}
	vm.resetStack()
}

// RuntimeError reports a runtime error the same way the dispatch loop does
// and returns Bad, so a native function (including ones registered from
// outside this package) can write `return vm.RuntimeError(...)`.
func (vm *VM) RuntimeError(format string, args ...any) Value {
	vm.runtimeError(format, args...)
	return Bad
}

func (vm *VM) call(closure *ObjClosure, argCount int) bool {
	if argCount != closure.Function.Arity {
		vm.runtimeError("expected %d arguments but got %d", closure.Function.Arity, argCount)
		return false
	}
	if vm.frameCount == MaxFrames {
		vm.runtimeError("stack overflow")
		return false
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.Closure = closure
	frame.IP = 0
	frame.Base = vm.stackTop - argCount - 1
	return true
}

func (vm *VM) callValue(callee Value, argCount int) bool {
	if !callee.IsObj() {
		vm.runtimeError("can only call functions and classes")
		return false
	}
	switch o := callee.AsObj().(type) {
	case *ObjClosure:
		return vm.call(o, argCount)
	case *ObjClass:
		inst := vm.NewInstance(o)
		vm.stack[vm.stackTop-argCount-1] = FromObj(inst)
		if init, ok := o.Methods.Get(vm.initString); ok {
			return vm.call(init.AsClosure(), argCount)
		}
		if argCount != 0 {
			vm.runtimeError("expected 0 arguments but got %d", argCount)
			return false
		}
		return true
	case *ObjBoundMethod:
		vm.stack[vm.stackTop-argCount-1] = o.Receiver
		return vm.call(o.Method, argCount)
	case *ObjNative:
		args := vm.stack[vm.stackTop-argCount : vm.stackTop]
		result := o.Fn(vm, args)
		if result.IsBad() {
			return false
		}
		vm.stackTop -= argCount + 1
		vm.push(result)
		return true
	default:
		vm.runtimeError("can only call functions and classes")
		return false
	}
}

// callNativeMethod invokes a list/string method native with the receiver
// included as args[0], so a method body can index its receiver directly:
// argCount still counts only the user-supplied arguments, so the slice
// passed to Fn is argCount+1 long.
func (vm *VM) callNativeMethod(callee Value, argCount int) bool {
	native, ok := callee.AsObj().(*ObjNative)
	if !ok {
		vm.runtimeError("internal: method table entry is not native")
		return false
	}
	args := vm.stack[vm.stackTop-argCount-1 : vm.stackTop]
	result := native.Fn(vm, args)
	if result.IsBad() {
		return false
	}
	vm.stackTop -= argCount + 1
	vm.push(result)
	return true
}

// captureUpvalue returns the existing open upvalue observing slot, or
// creates and links a new one into the descending-sorted open list.
func (vm *VM) captureUpvalue(slot *Value, stackIdx int) *ObjUpvalue {
	var prev *ObjUpvalue
	cur := vm.openUpvalues
	for cur != nil && cur.StackIndex > stackIdx {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.StackIndex == stackIdx {
		return cur
	}
	created := vm.newUpvalue(slot, stackIdx)
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue whose stack slot is >= fromIdx.
func (vm *VM) closeUpvalues(fromIdx int) {
	for vm.openUpvalues != nil && vm.openUpvalues.StackIndex >= fromIdx {
		uv := vm.openUpvalues
		uv.close()
		vm.openUpvalues = uv.NextOpen
	}
}

func (vm *VM) bindMethod(class *ObjClass, name *ObjString) (Value, bool) {
	method, ok := class.Methods.Get(name)
	if !ok {
		return Value{}, false
	}
	bound := vm.NewBoundMethod(vm.peek(0), method.AsClosure())
	return FromObj(bound), true
}

func (vm *VM) invoke(name *ObjString, argCount int) bool {
	receiver := vm.peek(argCount)
	switch {
	case receiver.IsObj():
		switch o := receiver.AsObj().(type) {
		case *ObjInstance:
			if field, ok := o.Fields.Get(name); ok {
				vm.stack[vm.stackTop-argCount-1] = field
				return vm.callValue(field, argCount)
			}
			return vm.invokeFromClass(o.Class, name, argCount)
		case *ObjModule:
			val, ok := o.Values.Get(name)
			if !ok {
				vm.runtimeError("undefined property %q on module %s", name.Value, o.Name.Value)
				return false
			}
			vm.stack[vm.stackTop-argCount-1] = val
			return vm.callValue(val, argCount)
		case *ObjList:
			native, ok := vm.listMethods.Get(name)
			if !ok {
				vm.runtimeError("list has no method %q", name.Value)
				return false
			}
			return vm.callNativeMethod(native, argCount)
		case *ObjString:
			native, ok := vm.stringMethods.Get(name)
			if !ok {
				vm.runtimeError("string has no method %q", name.Value)
				return false
			}
			return vm.callNativeMethod(native, argCount)
		}
	}
	vm.runtimeError("only instances, modules, lists and strings have methods")
	return false
}

func (vm *VM) invokeFromClass(class *ObjClass, name *ObjString, argCount int) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		vm.runtimeError("undefined method %q", name.Value)
		return false
	}
	return vm.call(method.AsClosure(), argCount)
}

// resolveModulePath joins a relative module path with the importing
// module's directory.
func resolveModulePath(path, importerDir string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(importerDir, path))
}

func isIntegerValued(n float64) bool {
	return n == math.Trunc(n) && !math.IsInf(n, 0) && !math.IsNaN(n)
}
