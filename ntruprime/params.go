// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package ntruprime implements an NTRU Prime key encapsulation mechanism over
// the ring Z_q[x]/(x^p - x - 1).
//
// A private key is a small polynomial f with coefficients in {0, ±3} and the
// inverse of a random ternary polynomial g in R/3.  The public key is
// h = g/f in R/q.  Encapsulation hides a random ternary r of weight 2t as the
// rounding of h*r to multiples of 3 and derives the shared secret and a key
// confirmation tag from the SHA-512 digest of r.  Decapsulation recovers r
// and re-encrypts it to validate the ciphertext.
//
// The implementation is not constant time.
package ntruprime

import (
	"errors"
	"fmt"

	"github.com/jrick/ntrup/poly"
)

// SharedSecretSize is the size of the shared secret in bytes.
const SharedSecretSize = 32

const (
	tagSize    = 32
	headerSize = 12
	maxP       = 1 << 13
)

// ErrMalformed is returned when a serialized key or ciphertext is
// inconsistent with its parameters.
var ErrMalformed = errors.New("ntruprime: malformed input")

// ErrKeyGeneration is returned when key generation gives up after its
// bounded number of attempts.
var ErrKeyGeneration = errors.New("ntruprime: key generation failed")

// Params describes an NTRU Prime parameter set: the ring degree P, the prime
// modulus Q, and the weight parameter T.  Secret ternary polynomials have
// weight 2T.
type Params struct {
	P, Q, T int
}

// Default is the parameter set p=547, q=3001, t=62, believed to provide 129
// bits of security.
var Default = Params{P: 547, Q: 3001, T: 62}

// String returns a short name for the parameter set.
func (p Params) String() string {
	return fmt.Sprintf("ntrup%d-%d-%d", p.P, p.Q, p.T)
}

// Validate checks that p describes a usable parameter set.
func (p Params) Validate() error {
	switch {
	case p.P < 3 || p.P > maxP || !poly.IsPrime(uint32(p.P)):
		return fmt.Errorf("%w: p=%d must be a prime in [3, %d]", ErrMalformed, p.P, maxP)
	case p.Q >= 1<<12 || !poly.IsPrime(uint32(p.Q)):
		return fmt.Errorf("%w: q=%d must be a prime below 4096", ErrMalformed, p.Q)
	case p.T < 1 || 2*p.T > p.P:
		return fmt.Errorf("%w: t=%d out of range for p=%d", ErrMalformed, p.T, p.P)
	case p.Q < 48*p.T+1:
		return fmt.Errorf("%w: q=%d below 48t+1 for t=%d", ErrMalformed, p.Q, p.T)
	case 2*((p.Q+5)/6) >= 1<<10:
		return fmt.Errorf("%w: q=%d too large for ciphertext packing", ErrMalformed, p.Q)
	}
	return nil
}

func pairsSize(n int) int {
	return 3 * ((n + 1) / 2)
}

// PublicKeySize returns the length of a serialized public key.
func (p Params) PublicKeySize() int {
	return headerSize + pairsSize(p.P)
}

// PrivateKeySize returns the length of a serialized private key.
func (p Params) PrivateKeySize() int {
	return headerSize + pairsSize(p.P) + pairsSize(p.P+1) + pairsSize(p.P)
}

// CiphertextSize returns the length of a ciphertext.  Each packed group of
// three coefficients of the rounded polynomial occupies 4 bytes.
func (p Params) CiphertextSize() int {
	return tagSize + 4*((p.P+2)/3)
}

// ringModulus returns x^p - x - 1 over the coefficient modulus mod.
func (p Params) ringModulus(mod int32) *poly.Poly {
	m := poly.New(p.P+1, mod)
	m.Coeffs[0] = mod - 1
	m.Coeffs[1] = mod - 1
	m.Coeffs[p.P] = 1
	m.Degree = p.P
	return m
}

// center maps x in [0, q) to [q>>1 - q, q>>1).  For odd q this interval is
// [-(q+1)/2, (q-1)/2), not (-q/2, q/2]; rounding and ciphertext packing
// depend on it, so peers must center the same way.
func center(x, q int32) int32 {
	if x >= q>>1 {
		return x - q
	}
	return x
}

// small maps a coefficient of a ternary polynomial over mod to {-1, 0, 1}.
func small(x, mod int32) int32 {
	if 2*x > mod {
		return x - mod
	}
	return x
}

// round3 returns the multiple of 3 nearest to x.  An integer is never
// equidistant from two multiples of 3, so no tie-breaking rule is needed.
func round3(x int32) int32 {
	k := x / 3
	switch x - 3*k {
	case 2:
		k++
	case -2:
		k--
	}
	return 3 * k
}

// roundPoly centers each coefficient of hr and rounds it to the nearest
// multiple of 3, returning the result over q with capacity p.P.
func (p Params) roundPoly(hr *poly.Poly) *poly.Poly {
	q := int32(p.Q)
	c := poly.New(p.P, q)
	for i := 0; i <= hr.Degree; i++ {
		c.Coeffs[i] = poly.Mod(round3(center(hr.Coeffs[i], q)), q)
	}
	c.UpdateDegree()
	return c
}
