package compiler

import (
	"fmt"
	"strings"
)

// Error describes a single compile-time error: a parse error, a scope
// violation, or a code-generation limit (too many locals, too many
// constants, a jump too large to encode). Modeled on go/scanner.Error.
type Error struct {
	Module string
	Line   int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s @ %s, line %d", e.Msg, e.Module, e.Line)
}

// ErrorList accumulates compile errors in the order they were produced.
// Modeled on go/scanner.ErrorList: it implements error and Unwrap()
// []error so callers can range over the batch or use errors.Is/As.
type ErrorList []*Error

func (el *ErrorList) add(module string, line int, format string, args ...any) {
	*el = append(*el, &Error{Module: module, Line: line, Msg: fmt.Sprintf(format, args...)})
}

func (el ErrorList) Error() string {
	switch len(el) {
	case 0:
		return "no errors"
	case 1:
		return el[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (and %d more errors)", el[0].Error(), len(el)-1)
	return sb.String()
}

func (el ErrorList) Unwrap() []error {
	errs := make([]error, len(el))
	for i, e := range el {
		errs[i] = e
	}
	return errs
}

func (el ErrorList) Err() error {
	if len(el) == 0 {
		return nil
	}
	return el
}
