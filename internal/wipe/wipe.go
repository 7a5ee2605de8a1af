// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package wipe zeroes buffers holding secret material.
package wipe

import (
	"runtime"

	"golang.org/x/exp/constraints"
)

// Slice overwrites every element of s with zero.
func Slice[T constraints.Integer](s []T) {
	for i := range s {
		s[i] = 0
	}
	runtime.KeepAlive(s)
}

// Slices zeroes each of the slices.
func Slices[T constraints.Integer](s ...[]T) {
	for _, b := range s {
		Slice(b)
	}
}
