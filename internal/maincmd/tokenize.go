package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/thistlelang/thistle/lang/scanner"
	"github.com/thistlelang/thistle/lang/token"
)

// Tokenize runs the scanner phase over each file argument and prints one
// line per token.
func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, path := range args {
		if err := tokenizeFile(stdio, path); err != nil {
			return err
		}
	}
	return nil
}

func tokenizeFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fail(stdio, exitIO, err)
	}

	var errs scanner.ErrorList
	var sc scanner.Scanner
	sc.Init(path, src, &errs)

	for {
		tok := sc.Scan()
		fmt.Fprintf(stdio.Stdout, "%4d %-12s %q\n", tok.Line, tok.Kind, tok.Lexeme(src))
		if tok.Kind == token.EOF {
			break
		}
	}
	if err := errs.Err(); err != nil {
		return fail(stdio, exitCompile, err)
	}
	return nil
}
