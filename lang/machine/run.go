package machine

import (
	"context"
	"fmt"
	"math"
)

// run executes frames until the call at the current frameCount unwinds
// back below base, returning InterpretOK, or returns InterpretRuntimeError
// as soon as any opcode reports a runtime error. It is re-entrant: OP_MODULE
// invokes it recursively with a deeper base while importing a file.
func (vm *VM) run(ctx context.Context) InterpretResult {
	return vm.loop(ctx, vm.frameCount-1)
}

func (vm *VM) loop(ctx context.Context, base int) InterpretResult {
	frame := &vm.frames[vm.frameCount-1]
	steps := 0

	for {
		if ctx != nil {
			steps++
			if steps >= vm.instructionBudget {
				steps = 0
				if err := ctx.Err(); err != nil {
					vm.runtimeError("interrupted: %s", err)
					return InterpretRuntimeError
				}
			}
		}

		op := OpCode(frame.readByte())
		switch op {
		case OpConstant:
			vm.push(frame.readConstant())
		case OpNull:
			vm.push(Null)
		case OpTrue:
			vm.push(Bool(true))
		case OpFalse:
			vm.push(Bool(false))
		case OpPop:
			vm.pop()

		case OpGetLocal:
			vm.push(vm.stack[frame.Base+int(frame.readByte())])
		case OpSetLocal:
			vm.stack[frame.Base+int(frame.readByte())] = vm.peek(0)

		case OpGetUpvalue:
			vm.push(*frame.Closure.Upvalues[frame.readByte()].Location)
		case OpSetUpvalue:
			*frame.Closure.Upvalues[frame.readByte()].Location = vm.peek(0)

		case OpDefineModule:
			name := frame.readConstant().AsString()
			frame.Closure.Function.Module.Values.Set(name, vm.peek(0))
			vm.pop()
		case OpGetModule:
			name := frame.readConstant().AsString()
			val, ok := frame.Closure.Function.Module.Values.Get(name)
			if !ok {
				vm.runtimeError("undefined variable %q", name.Value)
				return InterpretRuntimeError
			}
			vm.push(val)
		case OpSetModule:
			name := frame.readConstant().AsString()
			if frame.Closure.Function.Module.Values.Set(name, vm.peek(0)) {
				frame.Closure.Function.Module.Values.Delete(name)
				vm.runtimeError("undefined variable %q", name.Value)
				return InterpretRuntimeError
			}
		case OpGetGlobal:
			name := frame.readConstant().AsString()
			val, ok := vm.globals.Get(name)
			if !ok {
				vm.runtimeError("undefined variable %q", name.Value)
				return InterpretRuntimeError
			}
			vm.push(val)

		case OpGetProperty:
			if !vm.getProperty(true) {
				return InterpretRuntimeError
			}
		case OpGetPropertyNoPop:
			if !vm.getProperty(false) {
				return InterpretRuntimeError
			}
		case OpSetProperty:
			name := frame.readConstant().AsString()
			inst, ok := vm.peek(1).AsObj().(*ObjInstance)
			if !ok {
				vm.runtimeError("only instances have settable fields")
				return InterpretRuntimeError
			}
			inst.Fields.Set(name, vm.peek(0))
			val := vm.pop()
			vm.pop()
			vm.push(val)
		case OpGetSuper:
			name := frame.readConstant().AsString()
			super := vm.pop().AsClass()
			method, ok := vm.bindMethod(super, name)
			if !ok {
				vm.runtimeError("undefined method %q", name.Value)
				return InterpretRuntimeError
			}
			vm.pop()
			vm.push(method)

		case OpAdd:
			if !vm.add() {
				return InterpretRuntimeError
			}
		case OpSubtract, OpMultiply, OpDivide, OpMod, OpPower:
			if !vm.numericBinary(op) {
				return InterpretRuntimeError
			}
		case OpNegate:
			if !vm.peek(0).IsNumber() {
				vm.runtimeError("operand must be a number")
				return InterpretRuntimeError
			}
			vm.push(Number(-vm.pop().AsNumber()))
		case OpIncrement:
			if !vm.peek(0).IsNumber() {
				vm.runtimeError("operand must be a number")
				return InterpretRuntimeError
			}
			vm.push(Number(vm.pop().AsNumber() + 1))
		case OpDecrement:
			if !vm.peek(0).IsNumber() {
				vm.runtimeError("operand must be a number")
				return InterpretRuntimeError
			}
			vm.push(Number(vm.pop().AsNumber() - 1))

		case OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(Equal(a, b)))
		case OpGreater, OpLess:
			if !vm.comparison(op) {
				return InterpretRuntimeError
			}
		case OpNot:
			vm.push(Bool(!vm.pop().Truthy()))

		case OpJump:
			offset := frame.readUint16()
			frame.IP += offset
		case OpJumpIfFalse:
			offset := frame.readUint16()
			if !vm.peek(0).Truthy() {
				frame.IP += offset
			}
		case OpLoop:
			offset := frame.readUint16()
			frame.IP -= offset

		case OpCall:
			argCount := int(frame.readByte())
			if !vm.callValue(vm.peek(argCount), argCount) {
				return InterpretRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]
		case OpInvoke:
			name := frame.readConstant().AsString()
			argCount := int(frame.readByte())
			if !vm.invoke(name, argCount) {
				return InterpretRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]
		case OpSuperInvoke:
			name := frame.readConstant().AsString()
			argCount := int(frame.readByte())
			super := vm.pop().AsClass()
			if !vm.invokeFromClass(super, name, argCount) {
				return InterpretRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]
		case OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.Base)
			vm.frameCount--
			vm.stackTop = frame.Base
			vm.push(result)
			if vm.frameCount == base {
				return InterpretOK
			}
			frame = &vm.frames[vm.frameCount-1]

		case OpClosure:
			fn := frame.readConstant().AsFunction()
			closure := vm.NewClosure(fn)
			vm.push(FromObj(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := frame.readByte()
				idx := int(frame.readByte())
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(&vm.stack[frame.Base+idx], frame.Base+idx)
				} else {
					closure.Upvalues[i] = frame.Closure.Upvalues[idx]
				}
			}
		case OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case OpClass:
			name := frame.readConstant().AsString()
			vm.push(FromObj(vm.NewClass(name)))
		case OpInherit:
			superVal := vm.peek(1)
			if !superVal.IsClass() {
				vm.runtimeError("superclass must be a class")
				return InterpretRuntimeError
			}
			sub := vm.peek(0).AsClass()
			superVal.AsClass().Methods.CopyInto(sub.Methods)
			vm.pop()
		case OpMethod:
			name := frame.readConstant().AsString()
			method := vm.pop()
			class := vm.peek(0).AsClass()
			class.Methods.Set(name, method)
		case OpEndClass:
			vm.pop()

		case OpMakeList:
			n := int(frame.readByte())
			items := make([]Value, n)
			// copy while the items are still rooted on the value stack, so a
			// collection triggered by the allocation below cannot lose them
			copy(items, vm.stack[vm.stackTop-n:vm.stackTop])
			list := vm.NewList(items)
			vm.stackTop -= n
			vm.push(FromObj(list))
		case OpSubscriptIdx:
			if !vm.subscriptGet(true) {
				return InterpretRuntimeError
			}
		case OpSubscriptIdxNoPop:
			if !vm.subscriptGet(false) {
				return InterpretRuntimeError
			}
		case OpSubscriptAssign:
			if !vm.subscriptAssign() {
				return InterpretRuntimeError
			}

		case OpModule:
			path := frame.readConstant().AsString()
			if _, ok := vm.importModule(path.Value, frame.Closure.Function.Module.Dir); !ok {
				return InterpretRuntimeError
			}
		case OpModuleBuiltin:
			frame.readByte() // reserved registry index, unused
			name := frame.readConstant().AsString()
			if _, ok := vm.importBuiltin(name.Value); !ok {
				return InterpretRuntimeError
			}
		case OpModuleVar:
			vm.push(FromObj(vm.lastModule))

		case OpPrint:
			v := vm.pop()
			fmt.Fprintln(vm.Stdout, v.Print())

		default:
			vm.runtimeError("unknown opcode %d", op)
			return InterpretRuntimeError
		}
	}
}

func (vm *VM) getProperty(doPop bool) bool {
	recv := vm.peek(0)
	frame := &vm.frames[vm.frameCount-1]
	name := frame.readConstant().AsString()

	if module, ok := recv.AsObj().(*ObjModule); ok {
		val, ok := module.Values.Get(name)
		if !ok {
			vm.runtimeError("undefined property %q on module %s", name.Value, module.Name.Value)
			return false
		}
		if doPop {
			vm.pop()
		}
		vm.push(val)
		return true
	}

	inst, ok := recv.AsObj().(*ObjInstance)
	if !ok {
		vm.runtimeError("only instances and modules have properties")
		return false
	}
	if val, ok := inst.Fields.Get(name); ok {
		if doPop {
			vm.pop()
		}
		vm.push(val)
		return true
	}
	if method, ok := vm.bindMethod(inst.Class, name); ok {
		if doPop {
			vm.pop()
		}
		vm.push(method)
		return true
	}
	vm.runtimeError("undefined property %q", name.Value)
	return false
}

func (vm *VM) add() bool {
	b, a := vm.peek(0), vm.peek(1)
	if a.IsString() || b.IsString() {
		vm.pop()
		vm.pop()
		as := stringify(a)
		bs := stringify(b)
		vm.push(FromObj(vm.NewString(as + bs)))
		return true
	}
	if !a.IsNumber() || !b.IsNumber() {
		vm.runtimeError("operands must be two numbers or at least one string")
		return false
	}
	vm.pop()
	vm.pop()
	vm.push(Number(a.AsNumber() + b.AsNumber()))
	return true
}

func stringify(v Value) string {
	if v.IsString() {
		return v.AsString().Value
	}
	return v.Print()
}

func (vm *VM) numericBinary(op OpCode) bool {
	b, a := vm.peek(0), vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		vm.runtimeError("operands must be numbers")
		return false
	}
	if op == OpMod && (!isIntegerValued(a.AsNumber()) || !isIntegerValued(b.AsNumber())) {
		vm.runtimeError("'%%' requires integer-valued operands")
		return false
	}
	vm.pop()
	vm.pop()
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case OpSubtract:
		vm.push(Number(x - y))
	case OpMultiply:
		vm.push(Number(x * y))
	case OpDivide:
		vm.push(Number(x / y))
	case OpMod:
		xi, yi := int64(x), int64(y)
		vm.push(Number(float64(xi % yi)))
	case OpPower:
		vm.push(Number(math.Pow(x, y)))
	}
	return true
}

func (vm *VM) comparison(op OpCode) bool {
	b, a := vm.peek(0), vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		vm.runtimeError("operands must be numbers")
		return false
	}
	vm.pop()
	vm.pop()
	x, y := a.AsNumber(), b.AsNumber()
	if op == OpGreater {
		vm.push(Bool(x > y))
	} else {
		vm.push(Bool(x < y))
	}
	return true
}

func (vm *VM) subscriptGet(doPop bool) bool {
	idxVal := vm.peek(0)
	recv := vm.peek(1)
	if !idxVal.IsNumber() {
		vm.runtimeError("list index must be a number")
		return false
	}
	list, ok := recv.AsObj().(*ObjList)
	if !ok {
		vm.runtimeError("only lists support subscripting")
		return false
	}
	idx, okIdx := list.resolveIndex(int(idxVal.AsNumber()))
	if !okIdx {
		vm.runtimeError("list index out of range")
		return false
	}
	item := list.Items[idx]
	if doPop {
		vm.pop()
		vm.pop()
	}
	vm.push(item)
	return true
}

// subscriptAssign implements `a[i] = new`, autovivifying with nulls when i
// is beyond the current length (documented boundary behavior: reads
// beyond length error, writes beyond length grow the list).
func (vm *VM) subscriptAssign() bool {
	newVal := vm.pop()
	idxVal := vm.pop()
	recv := vm.pop()
	if !idxVal.IsNumber() {
		vm.runtimeError("list index must be a number")
		return false
	}
	list, ok := recv.AsObj().(*ObjList)
	if !ok {
		vm.runtimeError("only lists support subscript assignment")
		return false
	}
	i := int(idxVal.AsNumber())
	if i < 0 {
		i += len(list.Items)
		if i < 0 {
			vm.runtimeError("list index out of range")
			return false
		}
	}
	for i >= len(list.Items) {
		list.Items = append(list.Items, Null)
	}
	list.Items[i] = newVal
	vm.push(newVal)
	return true
}
