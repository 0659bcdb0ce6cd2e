package stdlib

import (
	"math"

	"github.com/thistlelang/thistle/lang/machine"
)

// initMath builds the `math` module: trig/rounding/root natives plus
// pow/abs/min/max and the pi/e constants.
func initMath(vm *machine.VM) *machine.ObjModule {
	m := vm.NewModule(vm.NewString("math"), ".")

	def := func(name string, fn machine.NativeFn) {
		m.Values.Set(vm.NewString(name), machine.FromObj(vm.NewNative(name, fn)))
	}

	def("sin", mathUnary("math.sin", math.Sin))
	def("cos", mathUnary("math.cos", math.Cos))
	def("tan", mathUnary("math.tan", math.Tan))
	def("asin", mathUnary("math.asin", math.Asin))
	def("acos", mathUnary("math.acos", math.Acos))
	def("atan", mathUnary("math.atan", math.Atan))
	def("floor", mathUnary("math.floor", math.Floor))
	def("ceil", mathUnary("math.ceil", math.Ceil))
	def("ln", mathUnary("math.ln", math.Log))
	def("log", mathUnary("math.log", math.Log10))
	def("sqrt", mathUnary("math.sqrt", math.Sqrt))
	def("abs", mathUnary("math.abs", math.Abs))
	def("pow", mathPow)
	def("min", mathMin)
	def("max", mathMax)

	m.Values.Set(vm.NewString("pi"), machine.Number(math.Pi))
	m.Values.Set(vm.NewString("e"), machine.Number(math.E))
	return m
}

func mathUnary(fname string, f func(float64) float64) machine.NativeFn {
	return func(vm *machine.VM, args []machine.Value) machine.Value {
		if len(args) != 1 || !args[0].IsNumber() {
			return vm.RuntimeError("%s(n) takes one number argument", fname)
		}
		return machine.Number(f(args[0].AsNumber()))
	}
}

func mathPow(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 2 || !args[0].IsNumber() || !args[1].IsNumber() {
		return vm.RuntimeError("math.pow(base, exp) takes two number arguments")
	}
	return machine.Number(math.Pow(args[0].AsNumber(), args[1].AsNumber()))
}

func mathMin(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 2 || !args[0].IsNumber() || !args[1].IsNumber() {
		return vm.RuntimeError("math.min(a, b) takes two number arguments")
	}
	return machine.Number(math.Min(args[0].AsNumber(), args[1].AsNumber()))
}

func mathMax(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 2 || !args[0].IsNumber() || !args[1].IsNumber() {
		return vm.RuntimeError("math.max(a, b) takes two number arguments")
	}
	return machine.Number(math.Max(args[0].AsNumber(), args[1].AsNumber()))
}
