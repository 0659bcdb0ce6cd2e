package maincmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mna/mainer"

	"github.com/thistlelang/thistle/internal/stdlib"
	"github.com/thistlelang/thistle/lang/compiler"
	"github.com/thistlelang/thistle/lang/machine"
)

const replPrompt = ">>> "

// Repl runs an interactive read-eval-print loop: one persistent VM and
// module, one line compiled and run at a time, so top-level var/fun/class
// declarations accumulate across lines.
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, args []string) error {
	vm := machine.New(stdio.Stdout, stdio.Stderr)
	vm.Compile = compiler.Compile
	stdlib.RegisterAll(vm)
	module := vm.NewModule(vm.NewString("repl"), ".")

	scanner := bufio.NewScanner(stdio.Stdin)
	fmt.Fprint(stdio.Stdout, replPrompt)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "exit" {
			break
		}
		if line != "" {
			vm.EvalModule(ctx, []byte(line), module)
		}
		fmt.Fprint(stdio.Stdout, replPrompt)
	}
	fmt.Fprintln(stdio.Stdout)
	if err := scanner.Err(); err != nil {
		return fail(stdio, exitIO, err)
	}
	return nil
}
