package maincmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mna/mainer"

	"github.com/thistlelang/thistle/internal/stdlib"
	"github.com/thistlelang/thistle/lang/compiler"
	"github.com/thistlelang/thistle/lang/machine"
)

// Run compiles and executes each file argument in its own fresh VM.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, path := range args {
		if err := runFile(ctx, stdio, path); err != nil {
			return err
		}
	}
	return nil
}

func runFile(ctx context.Context, stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fail(stdio, exitIO, err)
	}

	vm := machine.New(stdio.Stdout, stdio.Stderr)
	vm.Compile = compiler.Compile
	stdlib.RegisterAll(vm)

	dir := filepath.Dir(path)
	switch vm.Interpret(ctx, src, path, dir) {
	case machine.InterpretCompileError:
		return fail(stdio, exitCompile, nil)
	case machine.InterpretRuntimeError:
		return fail(stdio, exitRuntime, nil)
	}
	return nil
}
