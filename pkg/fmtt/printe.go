// Package fmtt holds small debug-print helpers for development runs.
package fmtt

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// PrintErrChain walks an error chain and prints each layer with its type.
func PrintErrChain(err error) {
	if err == nil {
		fmt.Println("<nil>")
		return
	}

	i := 0
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Printf("[%d] %T: %v\n", i, e, e)
		i++
	}
}

// Dump pretty-prints v with full type/field detail. Dev-mode only; the
// output format is not stable.
func Dump(v any) {
	spew.Dump(v)
}
