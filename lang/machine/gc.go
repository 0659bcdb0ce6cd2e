package machine

// initialGCThreshold is the number of estimated bytes allocated before the
// first collection is triggered (1 MiB).
const initialGCThreshold = 1 << 20

// gcHeapGrowFactor is applied to bytesAllocated after a collection to
// compute the next threshold.
const gcHeapGrowFactor = 2

// track registers a freshly allocated object with the VM: it links it at
// the head of the intrusive object list, accounts for its estimated size,
// and triggers a collection if the allocator has crossed its threshold (or
// unconditionally under StressGC). Every object constructor in this file
// funnels through track so that no heap object exists outside of GC's
// reach.
func (vm *VM) track(o Obj, size int) {
	h := o.header()
	h.Next = vm.objects
	vm.objects = o
	vm.bytesAllocated += size

	if vm.StressGC || vm.bytesAllocated > vm.nextGC {
		vm.collectGarbage()
	}
}

// NewString interns s, returning the existing ObjString if one with equal
// bytes already exists, or allocating and interning a new one otherwise.
// The caller must ensure s stays reachable (e.g. by pushing the result
// onto the stack) before any further allocation.
func (vm *VM) NewString(s string) *ObjString {
	if o, ok := vm.strings.find(s); ok {
		return o
	}
	hash := fnv1a32(s)
	o := newObjString(s, hash)
	vm.track(o, len(s)+16)
	vm.strings.add(o)
	return o
}

func (vm *VM) NewList(items []Value) *ObjList {
	o := newObjList(items)
	vm.track(o, 16+8*len(items))
	return o
}

func (vm *VM) NewFunction(module *ObjModule) *ObjFunction {
	o := newObjFunction(module)
	vm.track(o, 64)
	return o
}

func (vm *VM) NewClosure(fn *ObjFunction) *ObjClosure {
	o := newObjClosure(fn)
	vm.track(o, 16+8*len(o.Upvalues))
	return o
}

func (vm *VM) NewClass(name *ObjString) *ObjClass {
	o := newObjClass(name)
	vm.track(o, 32)
	return o
}

func (vm *VM) NewInstance(class *ObjClass) *ObjInstance {
	o := newObjInstance(class)
	vm.track(o, 32)
	return o
}

func (vm *VM) NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	o := newObjBoundMethod(receiver, method)
	vm.track(o, 24)
	return o
}

func (vm *VM) NewNative(name string, fn NativeFn) *ObjNative {
	o := newObjNative(name, fn)
	vm.track(o, 16)
	return o
}

func (vm *VM) NewModule(name *ObjString, dir string) *ObjModule {
	o := newObjModule(name, dir)
	vm.track(o, 32)
	return o
}

// newUpvalue allocates an open upvalue observing stack slot idx. Like every
// other object it goes through track, so it counts toward bytesAllocated
// and participates fully in mark/sweep.
func (vm *VM) newUpvalue(slot *Value, idx int) *ObjUpvalue {
	o := newObjUpvalue(slot, idx)
	vm.track(o, 24)
	return o
}

// markValue marks v's heap object, if it has one, pushing it onto the gray
// worklist if this is the first time it's been seen this collection.
func (vm *VM) markValue(v Value) {
	if v.k == kindObj && v.obj != nil {
		vm.markObject(v.obj)
	}
}

func (vm *VM) markObject(o Obj) {
	if o == nil {
		return
	}
	h := o.header()
	if h.Marked {
		return
	}
	h.Marked = true
	vm.grayStack = append(vm.grayStack, o)
}

func (vm *VM) markTable(t *Table) {
	if t == nil {
		return
	}
	for _, e := range t.entries {
		if e.key != nil {
			vm.markObject(e.key)
			vm.markValue(e.value)
		}
	}
}

// markRoots marks every GC root: the value stack, every frame's closure,
// every open upvalue, the globals table, the modules table, the
// list/string method tables, the init string, and any function currently
// under construction by an in-progress compiler.
func (vm *VM) markRoots() {
	for i := 0; i < vm.stackTop; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].Closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		vm.markObject(uv)
	}
	vm.markTable(vm.globals)
	for _, m := range vm.modules {
		vm.markObject(m)
	}
	vm.markTable(vm.listMethods)
	vm.markTable(vm.stringMethods)
	if vm.initString != nil {
		vm.markObject(vm.initString)
	}
	for _, fn := range vm.compilerRoots {
		vm.markObject(fn)
	}
}

// blacken processes one gray object, marking everything it in turn
// references.
func (vm *VM) blacken(o Obj) {
	switch v := o.(type) {
	case *ObjString, *ObjNative:
		// no references
	case *ObjList:
		for _, item := range v.Items {
			vm.markValue(item)
		}
	case *ObjUpvalue:
		vm.markValue(v.Closed)
	case *ObjClosure:
		vm.markObject(v.Function)
		for _, uv := range v.Upvalues {
			vm.markObject(uv)
		}
	case *ObjFunction:
		if v.Name != nil {
			vm.markObject(v.Name)
		}
		if v.Chunk != nil {
			for _, c := range v.Chunk.Constants {
				vm.markValue(c)
			}
		}
		vm.markObject(v.Module)
	case *ObjClass:
		vm.markObject(v.Name)
		vm.markTable(v.Methods)
	case *ObjInstance:
		vm.markObject(v.Class)
		vm.markTable(v.Fields)
	case *ObjBoundMethod:
		vm.markValue(v.Receiver)
		vm.markObject(v.Method)
	case *ObjModule:
		vm.markObject(v.Name)
		vm.markTable(v.Values)
	}
}

// collectGarbage runs one full tri-colour mark-sweep cycle: mark roots,
// process the gray worklist to black, sweep the intern table (weak
// references first), then sweep the object list.
func (vm *VM) collectGarbage() {
	vm.markRoots()
	for len(vm.grayStack) > 0 {
		n := len(vm.grayStack) - 1
		o := vm.grayStack[n]
		vm.grayStack = vm.grayStack[:n]
		vm.blacken(o)
	}

	vm.strings.sweepUnmarked()
	vm.sweepObjects()

	vm.nextGC = vm.bytesAllocated * gcHeapGrowFactor
	if vm.nextGC < initialGCThreshold {
		vm.nextGC = initialGCThreshold
	}
}

func (vm *VM) sweepObjects() {
	var prev Obj
	obj := vm.objects
	for obj != nil {
		h := obj.header()
		if h.Marked {
			h.Marked = false
			prev = obj
			obj = h.Next
			continue
		}
		unreached := obj
		obj = h.Next
		if prev != nil {
			prev.header().Next = obj
		} else {
			vm.objects = obj
		}
		_ = unreached // eligible for Go's own GC now that it's unlinked
	}
}
