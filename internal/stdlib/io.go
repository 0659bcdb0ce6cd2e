package stdlib

import (
	"bufio"
	"fmt"
	"os"

	"github.com/thistlelang/thistle/lang/machine"
)

// initIO builds the `io` module: print, println, input, readFile, and
// writeFile.
func initIO(vm *machine.VM) *machine.ObjModule {
	m := vm.NewModule(vm.NewString("io"), ".")

	def := func(name string, fn machine.NativeFn) {
		m.Values.Set(vm.NewString(name), machine.FromObj(vm.NewNative(name, fn)))
	}

	def("print", ioPrint)
	def("println", ioPrintln)
	def("input", ioInput)
	def("readFile", ioReadFile)
	def("writeFile", ioWriteFile)
	return m
}

func ioPrint(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) < 1 {
		return vm.RuntimeError("io.print(value, ...) takes at least one argument (%d provided)", len(args))
	}
	for _, a := range args {
		fmt.Fprintf(vm.Stdout, "%s ", a.Print())
	}
	return machine.Null
}

func ioPrintln(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) < 1 {
		return vm.RuntimeError("io.println(value, ...) takes at least one argument (%d provided)", len(args))
	}
	for _, a := range args {
		fmt.Fprintf(vm.Stdout, "%s ", a.Print())
	}
	fmt.Fprintln(vm.Stdout)
	return machine.Null
}

func ioInput(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) > 1 {
		return vm.RuntimeError("io.input(prompt) expects at most 1 argument (%d provided)", len(args))
	}
	if len(args) == 1 {
		if !args[0].IsString() {
			return vm.RuntimeError("io.input(prompt) takes a string-type argument")
		}
		fmt.Fprint(vm.Stdout, args[0].AsString().Value)
	}

	reader := bufio.NewReader(ioStdin(vm))
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return vm.RuntimeError("io.input(prompt) failed to read a line: %s", err)
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return machine.FromObj(vm.NewString(line))
}

// ioStdin is a seam for tests that would otherwise need to replace the
// process's real stdin; production always reads from os.Stdin.
var ioStdin = func(vm *machine.VM) *os.File { return os.Stdin }

func ioReadFile(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 1 || !args[0].IsString() {
		return vm.RuntimeError("io.readFile(path) takes one string argument")
	}
	data, err := os.ReadFile(args[0].AsString().Value)
	if err != nil {
		return vm.RuntimeError("io.readFile: %s", err)
	}
	return machine.FromObj(vm.NewString(string(data)))
}

func ioWriteFile(vm *machine.VM, args []machine.Value) machine.Value {
	if len(args) != 2 || !args[0].IsString() || !args[1].IsString() {
		return vm.RuntimeError("io.writeFile(path, contents) takes two string arguments")
	}
	path := args[0].AsString().Value
	contents := args[1].AsString().Value
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return vm.RuntimeError("io.writeFile: %s", err)
	}
	return machine.Null
}
