package stdlib

import (
	"strings"

	"github.com/thistlelang/thistle/lang/machine"
)

// initStrings builds the `strings` module: thin wrappers over the standard
// strings package, the original's non-goal for stdlib method bodies.
func initStrings(vm *machine.VM) *machine.ObjModule {
	m := vm.NewModule(vm.NewString("strings"), ".")

	def := func(name string, fn machine.NativeFn) {
		m.Values.Set(vm.NewString(name), machine.FromObj(vm.NewNative(name, fn)))
	}

	def("split", stringsSplit)
	def("join", stringsJoin)
	def("upper", stringsUpper)
	def("lower", stringsLower)
	def("trim", stringsTrim)
	def("contains", stringsContains)
	def("replace", stringsReplace)
	return m
}

func stringsSplit(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 2 || !args[0].IsString() || !args[1].IsString() {
		return vm.RuntimeError("strings.split(s, sep) takes two string arguments")
	}
	parts := strings.Split(args[0].AsString().Value, args[1].AsString().Value)
	items := make([]machine.Value, len(parts))
	for i, p := range parts {
		items[i] = machine.FromObj(vm.NewString(p))
	}
	return machine.FromObj(vm.NewList(items))
}

func stringsJoin(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 2 || !args[0].IsList() || !args[1].IsString() {
		return vm.RuntimeError("strings.join(list, sep) takes a list and a string argument")
	}
	list := args[0].AsList()
	parts := make([]string, len(list.Items))
	for i, v := range list.Items {
		if !v.IsString() {
			return vm.RuntimeError("strings.join: element %d is not a string", i)
		}
		parts[i] = v.AsString().Value
	}
	return machine.FromObj(vm.NewString(strings.Join(parts, args[1].AsString().Value)))
}

func stringsUpper(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 1 || !args[0].IsString() {
		return vm.RuntimeError("strings.upper(s) takes one string argument")
	}
	return machine.FromObj(vm.NewString(strings.ToUpper(args[0].AsString().Value)))
}

func stringsLower(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 1 || !args[0].IsString() {
		return vm.RuntimeError("strings.lower(s) takes one string argument")
	}
	return machine.FromObj(vm.NewString(strings.ToLower(args[0].AsString().Value)))
}

func stringsTrim(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 1 || !args[0].IsString() {
		return vm.RuntimeError("strings.trim(s) takes one string argument")
	}
	return machine.FromObj(vm.NewString(strings.TrimSpace(args[0].AsString().Value)))
}

func stringsContains(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 2 || !args[0].IsString() || !args[1].IsString() {
		return vm.RuntimeError("strings.contains(s, sub) takes two string arguments")
	}
	return machine.Bool(strings.Contains(args[0].AsString().Value, args[1].AsString().Value))
}

func stringsReplace(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 3 || !args[0].IsString() || !args[1].IsString() || !args[2].IsString() {
		return vm.RuntimeError("strings.replace(s, old, new) takes three string arguments")
	}
	out := strings.ReplaceAll(args[0].AsString().Value, args[1].AsString().Value, args[2].AsString().Value)
	return machine.FromObj(vm.NewString(out))
}
