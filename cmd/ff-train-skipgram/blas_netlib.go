//go:build netlib

package main

import (
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/netlib/blas/netlib"
)

// Building with `-tags netlib` routes the row-level BLAS operations through a
// native implementation instead of the pure-Go one.
func init() {
	blas32.Use(netlib.Implementation{})
}
