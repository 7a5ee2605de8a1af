// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package poly implements arithmetic on univariate polynomials with integer
// coefficients reduced modulo a small prime, together with Euclidean
// division, reduction modulo a ring polynomial, extended Euclid inversion,
// and constrained random sampling.
//
// The arithmetic is the schoolbook reference and is not constant time.
//
// Every operation requires a prime coefficient modulus and operands sharing
// that modulus.  Violating this is a programming error and causes a panic.
// The only recoverable failure is a missing inverse, reported by Inverse as
// ErrNotInvertible.
package poly

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jrick/ntrup/internal/wipe"
)

// ErrNotInvertible is returned by Inverse when the polynomial and the modulus
// polynomial are not coprime.
var ErrNotInvertible = errors.New("poly: polynomial is not invertible")

// Poly is a polynomial with a fixed coefficient capacity.
//
// Coeffs holds the coefficients in ascending order, each in [0, Mod).
// Degree is the index of the highest nonzero coefficient, or -1 for the zero
// polynomial.
type Poly struct {
	Coeffs []int32
	Degree int
	Mod    int32
}

// New returns the zero polynomial with capacity for size coefficients
// reduced modulo mod.
func New(size int, mod int32) *Poly {
	return &Poly{
		Coeffs: make([]int32, size),
		Degree: -1,
		Mod:    mod,
	}
}

// FromCoeffs returns a polynomial with the given coefficients reduced into
// [0, mod).  Negative coefficients are accepted.
func FromCoeffs(mod int32, coeffs ...int32) *Poly {
	p := New(len(coeffs), mod)
	for i, c := range coeffs {
		p.Coeffs[i] = Mod(c, mod)
	}
	p.UpdateDegree()
	return p
}

// Size returns the coefficient capacity of p.
func (p *Poly) Size() int {
	return len(p.Coeffs)
}

// UpdateDegree recomputes the degree from the coefficients.
func (p *Poly) UpdateDegree() {
	p.Degree = len(p.Coeffs) - 1
	p.trimDegree()
}

// trimDegree lowers the degree past any leading zero coefficients.
func (p *Poly) trimDegree() {
	for p.Degree >= 0 && p.Coeffs[p.Degree] == 0 {
		p.Degree--
	}
}

// Zero overwrites every coefficient with zero.  It is used both to reset a
// polynomial and to wipe secret polynomials once they are no longer needed.
func (p *Poly) Zero() {
	if p == nil {
		return
	}
	wipe.Slice(p.Coeffs)
	p.Degree = -1
}

// IsZero reports whether p is the zero polynomial.
func (p *Poly) IsZero() bool {
	return p.Degree < 0 || (p.Degree == 0 && p.Coeffs[0] == 0)
}

// Clone returns a deep copy of p.
func (p *Poly) Clone() *Poly {
	q := New(p.Size(), p.Mod)
	copy(q.Coeffs, p.Coeffs)
	q.Degree = p.Degree
	return q
}

// Set copies the value and modulus of q into p, keeping the capacity of p.
func (p *Poly) Set(q *Poly) {
	if q.Degree >= p.Size() {
		panic("poly: polynomial does not fit in destination")
	}
	n := copy(p.Coeffs, q.Coeffs[:q.Degree+1])
	wipe.Slice(p.Coeffs[n:])
	p.Degree = q.Degree
	p.Mod = q.Mod
}

// Normalize reduces every coefficient into [0, Mod).
func (p *Poly) Normalize() {
	for i := 0; i <= p.Degree; i++ {
		p.Coeffs[i] = Mod(p.Coeffs[i], p.Mod)
	}
	p.trimDegree()
}

// SetMod reduces every coefficient modulo m and makes m the modulus of p.
func (p *Poly) SetMod(m int32) {
	for i := 0; i <= p.Degree; i++ {
		if p.Coeffs[i] != 0 {
			p.Coeffs[i] = Mod(p.Coeffs[i], m)
		}
	}
	p.Mod = m
	p.trimDegree()
}

// Lift returns a copy of p over modulus m, mapping each coefficient to its
// representative in (-Mod/2, Mod/2] before reducing modulo m.  Lifting a
// ternary polynomial from modulus 3 maps {0, 1, 2} to {0, 1, m-1}.
func (p *Poly) Lift(m int32) *Poly {
	q := New(p.Size(), m)
	for i := 0; i <= p.Degree; i++ {
		c := p.Coeffs[i]
		if 2*c > p.Mod {
			c -= p.Mod
		}
		q.Coeffs[i] = Mod(c, m)
	}
	q.UpdateDegree()
	return q
}

// Weight returns the number of nonzero coefficients.
func (p *Poly) Weight() int {
	w := 0
	for i := 0; i <= p.Degree; i++ {
		if p.Coeffs[i] != 0 {
			w++
		}
	}
	return w
}

// Equal reports whether a and b have the same degree, modulus, and
// coefficients.  Capacities may differ.
func Equal(a, b *Poly) bool {
	if a.Degree != b.Degree || a.Mod != b.Mod {
		return false
	}
	for i := 0; i <= a.Degree; i++ {
		if a.Coeffs[i] != b.Coeffs[i] {
			return false
		}
	}
	return true
}

// String renders p in ascending powers, e.g. "2 + x + 4x^3".
func (p *Poly) String() string {
	if p.IsZero() {
		return "0"
	}
	var b strings.Builder
	for i := 0; i <= p.Degree; i++ {
		c := p.Coeffs[i]
		if c == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" + ")
		}
		if c != 1 || i == 0 {
			b.WriteString(strconv.FormatInt(int64(c), 10))
		}
		switch {
		case i == 1:
			b.WriteString("x")
		case i > 1:
			b.WriteString("x^")
			b.WriteString(strconv.Itoa(i))
		}
	}
	return b.String()
}
