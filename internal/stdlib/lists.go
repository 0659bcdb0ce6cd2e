package stdlib

import "github.com/thistlelang/thistle/lang/machine"

// initLists builds the `lists` module: free-function versions, taking the
// list as first argument, of the always-on list methods the VM installs
// (natives.go in the machine package), for callers who prefer
// `lists.length(xs)` over `xs.length()`. push and enqueue alias prepend.
func initLists(vm *machine.VM) *machine.ObjModule {
	m := vm.NewModule(vm.NewString("lists"), ".")

	def := func(name string, fn machine.NativeFn) {
		m.Values.Set(vm.NewString(name), machine.FromObj(vm.NewNative(name, fn)))
	}

	def("append", listsAppend)
	def("prepend", listsPrepend)
	def("push", listsPrepend)
	def("pop", listsPop)
	def("enqueue", listsPrepend)
	def("dequeue", listsDequeue)
	def("length", listsLength)
	def("reverse", listsReverse)
	def("contains", listsContains)
	def("find", listsFind)
	def("delete", listsDelete)
	def("insert", listsInsert)
	def("extend", listsExtend)
	return m
}

func requireList(vm *machine.VM, fname string, args []machine.Value, n int) (*machine.ObjList, bool) {
	if len(args) < 1 || !args[0].IsList() {
		vm.RuntimeError("%s expects a list as its first argument", fname)
		return nil, false
	}
	if len(args) != n {
		vm.RuntimeError("%s expects %d argument(s) (%d provided)", fname, n, len(args))
		return nil, false
	}
	return args[0].AsList(), true
}

func listsAppend(vm *machine.VM, args []machine.Value) machine.Value {
	list, ok := requireList(vm, "lists.append(list, value)", args, 2)
	if !ok {
		return machine.Bad
	}
	list.Items = append(list.Items, args[1])
	return machine.Null
}

func listsPrepend(vm *machine.VM, args []machine.Value) machine.Value {
	list, ok := requireList(vm, "lists.prepend(list, value)", args, 2)
	if !ok {
		return machine.Bad
	}
	list.Items = append(list.Items, machine.Null)
	copy(list.Items[1:], list.Items[:len(list.Items)-1])
	list.Items[0] = args[1]
	return machine.Null
}

func listsInsert(vm *machine.VM, args []machine.Value) machine.Value {
	list, ok := requireList(vm, "lists.insert(list, value, index)", args, 3)
	if !ok {
		return machine.Bad
	}
	if !args[2].IsNumber() {
		return vm.RuntimeError("lists.insert: index must be a number")
	}
	index := int(args[2].AsNumber())
	if index < 0 || index > len(list.Items) {
		return vm.RuntimeError("list index out of bounds (given %d, length %d)", index, len(list.Items))
	}
	list.Items = append(list.Items, machine.Null)
	copy(list.Items[index+1:], list.Items[index:len(list.Items)-1])
	list.Items[index] = args[1]
	return machine.Null
}

func listsDelete(vm *machine.VM, args []machine.Value) machine.Value {
	list, ok := requireList(vm, "lists.delete(list, index)", args, 2)
	if !ok {
		return machine.Bad
	}
	if !args[1].IsNumber() {
		return vm.RuntimeError("lists.delete: index must be a number")
	}
	index := int(args[1].AsNumber())
	if index < 0 || index >= len(list.Items) {
		return vm.RuntimeError("list index out of bounds (given %d, length %d)", index, len(list.Items))
	}
	copy(list.Items[index:], list.Items[index+1:])
	list.Items = list.Items[:len(list.Items)-1]
	return machine.Null
}

func listsPop(vm *machine.VM, args []machine.Value) machine.Value {
	list, ok := requireList(vm, "lists.pop(list)", args, 1)
	if !ok {
		return machine.Bad
	}
	if len(list.Items) == 0 {
		return vm.RuntimeError("lists.pop: list is empty")
	}
	out := list.Items[0]
	copy(list.Items[0:], list.Items[1:])
	list.Items = list.Items[:len(list.Items)-1]
	return out
}

func listsDequeue(vm *machine.VM, args []machine.Value) machine.Value {
	list, ok := requireList(vm, "lists.dequeue(list)", args, 1)
	if !ok {
		return machine.Bad
	}
	if len(list.Items) == 0 {
		return vm.RuntimeError("lists.dequeue: list is empty")
	}
	last := len(list.Items) - 1
	out := list.Items[last]
	list.Items = list.Items[:last]
	return out
}

func listsFind(vm *machine.VM, args []machine.Value) machine.Value {
	list, ok := requireList(vm, "lists.find(list, value)", args, 2)
	if !ok {
		return machine.Bad
	}
	for i, v := range list.Items {
		if machine.Equal(v, args[1]) {
			return machine.Number(float64(i))
		}
	}
	return machine.Null
}

func listsContains(vm *machine.VM, args []machine.Value) machine.Value {
	list, ok := requireList(vm, "lists.contains(list, value)", args, 2)
	if !ok {
		return machine.Bad
	}
	for _, v := range list.Items {
		if machine.Equal(v, args[1]) {
			return machine.Bool(true)
		}
	}
	return machine.Bool(false)
}

func listsExtend(vm *machine.VM, args []machine.Value) machine.Value {
	list, ok := requireList(vm, "lists.extend(list, other)", args, 2)
	if !ok {
		return machine.Bad
	}
	if !args[1].IsList() {
		return vm.RuntimeError("lists.extend: second argument must be a list")
	}
	list.Items = append(list.Items, args[1].AsList().Items...)
	return machine.Null
}

func listsLength(vm *machine.VM, args []machine.Value) machine.Value {
	list, ok := requireList(vm, "lists.length(list)", args, 1)
	if !ok {
		return machine.Bad
	}
	return machine.Number(float64(len(list.Items)))
}

func listsReverse(vm *machine.VM, args []machine.Value) machine.Value {
	list, ok := requireList(vm, "lists.reverse(list)", args, 1)
	if !ok {
		return machine.Bad
	}
	items := list.Items
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return machine.Null
}
