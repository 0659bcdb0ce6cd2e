package stdlib

import (
	"os"

	"github.com/thistlelang/thistle/lang/machine"
)

// initOS builds the `os` module: process args, environment lookup, and
// exit, the ambient process-control surface alongside io/math/strings/lists.
func initOS(vm *machine.VM) *machine.ObjModule {
	m := vm.NewModule(vm.NewString("os"), ".")

	def := func(name string, fn machine.NativeFn) {
		m.Values.Set(vm.NewString(name), machine.FromObj(vm.NewNative(name, fn)))
	}

	def("args", osArgs)
	def("getenv", osGetenv)
	def("exit", osExit)
	return m
}

func osArgs(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 0 {
		return vm.RuntimeError("os.args() takes no arguments")
	}
	items := make([]machine.Value, len(os.Args))
	for i, a := range os.Args {
		items[i] = machine.FromObj(vm.NewString(a))
	}
	return machine.FromObj(vm.NewList(items))
}

func osGetenv(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 1 || !args[0].IsString() {
		return vm.RuntimeError("os.getenv(name) takes one string argument")
	}
	val, ok := os.LookupEnv(args[0].AsString().Value)
	if !ok {
		return machine.Null
	}
	return machine.FromObj(vm.NewString(val))
}

func osExit(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 1 || !args[0].IsNumber() {
		return vm.RuntimeError("os.exit(code) takes one number argument")
	}
	os.Exit(int(args[0].AsNumber()))
	return machine.Null
}
