package machine

import "os"

// importModule resolves path relative to the current frame's module
// directory, reusing any already-cached Module (cycles are broken by
// returning whatever state the cached module has reached so far), or else
// reading the file, compiling it with the new Module as owner, and
// running its top level to populate its value table.
func (vm *VM) importModule(path string, importerDir string) (*ObjModule, bool) {
	full := resolveModulePath(path, importerDir)
	if m, ok := vm.modules[full]; ok {
		vm.lastModule = m
		return m, true
	}

	src, err := os.ReadFile(full)
	if err != nil {
		vm.runtimeError("cannot import %q: %s", path, err)
		return nil, false
	}

	name := vm.NewString(full)
	module := vm.NewModule(name, dirOf(full))
	vm.modules[full] = module

	vm.push(FromObj(module))
	fn, cerr := vm.Compile(vm, module, src)
	vm.pop()
	if cerr != nil {
		vm.runtimeError("compile error importing %q: %s", path, cerr)
		delete(vm.modules, full)
		return nil, false
	}

	vm.push(FromObj(fn))
	closure := vm.NewClosure(fn)
	vm.pop()
	vm.push(FromObj(closure))
	if !vm.callValue(FromObj(closure), 0) {
		return nil, false
	}
	if vm.run(nil) != InterpretOK {
		return nil, false
	}
	vm.pop() // discard the module top level's implicit return value

	vm.lastModule = module
	return module, true
}

// importBuiltin resolves a registered standard-library module by name,
// caching it under a synthetic key so repeated `using` statements for the
// same name return the same Module.
func (vm *VM) importBuiltin(name string) (*ObjModule, bool) {
	key := "builtin:" + name
	if m, ok := vm.modules[key]; ok {
		vm.lastModule = m
		return m, true
	}
	init, ok := vm.registry[name]
	if !ok {
		vm.runtimeError("unknown standard library %q", name)
		return nil, false
	}
	module := init(vm)
	vm.modules[key] = module
	vm.lastModule = module
	return module, true
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
