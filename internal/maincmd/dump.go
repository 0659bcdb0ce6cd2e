package maincmd

import (
	"context"
	"os"

	"github.com/mna/mainer"

	"github.com/thistlelang/thistle/lang/compiler"
	"github.com/thistlelang/thistle/lang/machine"
)

// Dump compiles each file argument and prints its disassembled bytecode
// instead of running it.
func (c *Cmd) Dump(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, path := range args {
		if err := dumpFile(stdio, path); err != nil {
			return err
		}
	}
	return nil
}

func dumpFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fail(stdio, exitIO, err)
	}

	vm := machine.New(stdio.Stdout, stdio.Stderr)
	module := vm.NewModule(vm.NewString(path), ".")
	fn, cerr := compiler.Compile(vm, module, src)
	if cerr != nil {
		return fail(stdio, exitCompile, cerr)
	}
	compiler.Disassemble(stdio.Stdout, fn)
	return nil
}
