// Package stdlib provides the standard-library modules a thistle script
// reaches with `using name`: io, math, strings, lists, and os. Each module
// is registered into a VM's builtin-library registry by RegisterAll before
// any script runs.
package stdlib

import (
	"github.com/dolthub/swiss"

	"github.com/thistlelang/thistle/lang/machine"
)

// registry maps a standard-library module name to the function that builds
// its ObjModule. A swiss-table map is overkill for the handful of builtin
// names this program will ever hold, but it keeps the lookup off the
// GC-rooted value tables and gives every concern in this codebase a
// deliberate map choice rather than defaulting to the builtin one.
var registry = swiss.NewMap[string, machine.LibInit](8)

func register(name string, init machine.LibInit) {
	registry.Put(name, init)
}

func init() {
	register("io", initIO)
	register("math", initMath)
	register("strings", initStrings)
	register("lists", initLists)
	register("os", initOS)
}

// RegisterAll installs every standard-library module into vm's registry, so
// that `using io` and friends resolve.
func RegisterAll(vm *machine.VM) {
	registry.Iter(func(name string, init machine.LibInit) bool {
		vm.RegisterLib(name, init)
		return false
	})
}
