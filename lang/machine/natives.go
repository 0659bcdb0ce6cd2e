package machine

// bootstrapMethods installs the list and string methods every receiver of
// that type gets, regardless of which (if any) standard-library modules a
// script ever `using`s, unlike io/math/strings/os which are registered
// lazily into vm.registry and only materialize on a `using` statement.
func (vm *VM) bootstrapMethods() {
	vm.DefineListMethod("append", listAppend)
	vm.DefineListMethod("prepend", listPrepend)
	vm.DefineListMethod("length", listLength)
	vm.DefineListMethod("reverse", listReverse)
	vm.DefineListMethod("contains", listContains)
	vm.DefineListMethod("find", listFind)
	vm.DefineListMethod("delete", listDelete)
	vm.DefineListMethod("insert", listInsert)
	vm.DefineListMethod("push", listPrepend)
	vm.DefineListMethod("pop", listPop)
	vm.DefineListMethod("enqueue", listPrepend)
	vm.DefineListMethod("dequeue", listDequeue)
	vm.DefineListMethod("extend", listExtend)

	vm.DefineStringMethod("length", stringLength)
}

// listAppend appends one value to the end of the list. args[0] is the
// receiver; the real argument is args[1].
func listAppend(vm *VM, args []Value) Value {
	if len(args) != 2 {
		return vm.RuntimeError("append(value) expects exactly one argument (%d provided)", len(args)-1)
	}
	list := args[0].AsList()
	list.Items = append(list.Items, args[1])
	return Null
}

// listPrepend inserts one value at index 0. push and enqueue are
// documented aliases of this same body.
func listPrepend(vm *VM, args []Value) Value {
	if len(args) != 2 {
		return vm.RuntimeError("prepend(value) expects exactly one argument (%d provided)", len(args)-1)
	}
	list := args[0].AsList()
	list.Items = append(list.Items, Null)
	copy(list.Items[1:], list.Items[:len(list.Items)-1])
	list.Items[0] = args[1]
	return Null
}

func listInsert(vm *VM, args []Value) Value {
	if len(args) != 3 {
		return vm.RuntimeError("insert(value, index) expects two arguments (%d provided)", len(args)-1)
	}
	if !args[2].IsNumber() {
		return vm.RuntimeError("wrong argument type for arg 'index' in method insert()")
	}
	list := args[0].AsList()
	index := int(args[2].AsNumber())
	if index < 0 || index > len(list.Items) {
		return vm.RuntimeError("list index out of bounds (given %d, length %d)", index, len(list.Items))
	}
	list.Items = append(list.Items, Null)
	copy(list.Items[index+1:], list.Items[index:len(list.Items)-1])
	list.Items[index] = args[1]
	return Null
}

func listDelete(vm *VM, args []Value) Value {
	if len(args) != 2 {
		return vm.RuntimeError("delete(index) expects exactly one argument (%d provided)", len(args)-1)
	}
	if !args[1].IsNumber() {
		return vm.RuntimeError("wrong argument type for arg 'index' in method delete()")
	}
	list := args[0].AsList()
	index := int(args[1].AsNumber())
	if index < 0 || index >= len(list.Items) {
		return vm.RuntimeError("list index out of bounds (given %d, length %d)", index, len(list.Items))
	}
	deleteAt(list, index)
	return Null
}

func listPop(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return vm.RuntimeError("pop() expects no arguments (%d provided)", len(args)-1)
	}
	list := args[0].AsList()
	if len(list.Items) == 0 {
		return vm.RuntimeError("pop() on an empty list")
	}
	out := list.Items[0]
	deleteAt(list, 0)
	return out
}

func listDequeue(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return vm.RuntimeError("dequeue() expects no arguments (%d provided)", len(args)-1)
	}
	list := args[0].AsList()
	if len(list.Items) == 0 {
		return vm.RuntimeError("dequeue() on an empty list")
	}
	last := len(list.Items) - 1
	out := list.Items[last]
	deleteAt(list, last)
	return out
}

func listFind(vm *VM, args []Value) Value {
	if len(args) != 2 {
		return vm.RuntimeError("find(value) expects one argument (%d provided)", len(args)-1)
	}
	list := args[0].AsList()
	for i, v := range list.Items {
		if Equal(v, args[1]) {
			return Number(float64(i))
		}
	}
	return Null
}

func listContains(vm *VM, args []Value) Value {
	if len(args) != 2 {
		return vm.RuntimeError("contains(value) expects one argument (%d provided)", len(args)-1)
	}
	list := args[0].AsList()
	for _, v := range list.Items {
		if Equal(v, args[1]) {
			return Bool(true)
		}
	}
	return Bool(false)
}

func listExtend(vm *VM, args []Value) Value {
	if len(args) != 2 || !args[1].IsList() {
		return vm.RuntimeError("extend(list) expects one list argument")
	}
	list := args[0].AsList()
	list.Items = append(list.Items, args[1].AsList().Items...)
	return Null
}

func listLength(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return vm.RuntimeError("length() expects exactly zero arguments (%d provided)", len(args)-1)
	}
	return Number(float64(len(args[0].AsList().Items)))
}

func listReverse(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return vm.RuntimeError("reverse() takes no arguments (%d provided)", len(args)-1)
	}
	items := args[0].AsList().Items
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return Null
}

func deleteAt(list *ObjList, index int) {
	copy(list.Items[index:], list.Items[index+1:])
	list.Items = list.Items[:len(list.Items)-1]
}

func stringLength(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return vm.RuntimeError("length() expects exactly zero arguments (%d provided)", len(args)-1)
	}
	return Number(float64(len([]rune(args[0].AsString().Value))))
}
