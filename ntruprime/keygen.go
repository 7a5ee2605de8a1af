// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ntruprime

import (
	"errors"
	"fmt"
	"io"

	"github.com/jrick/ntrup/internal/entropy"
	"github.com/jrick/ntrup/poly"
)

// maxKeyAttempts bounds the number of polynomials sampled while searching
// for an invertible g or f.
const maxKeyAttempts = 64

var ternary = []int32{0, 1, -1}

// GenerateKey returns a new key pair for the Default parameters with
// randomness read from rand.
func GenerateKey(rand io.Reader) (*PublicKey, *PrivateKey, error) {
	return Default.GenerateKey(rand)
}

// GenerateKey returns a new key pair for p with randomness read from rand.
// The private key should be wiped with Wipe once it is no longer needed.
func (p Params) GenerateKey(rand io.Reader) (*PublicKey, *PrivateKey, error) {
	err := p.Validate()
	if err != nil {
		return nil, nil, err
	}
	src := entropy.New(rand)
	q := int32(p.Q)

	g, ginv, err := sampleInvertible(p.ringModulus(3), func() (*poly.Poly, error) {
		return poly.Sample(src, p.P, 3, ternary, 0, 0)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("ntruprime: sample g: %w", err)
	}
	defer g.Zero()

	mq := p.ringModulus(q)
	f, finv, err := sampleInvertible(mq, func() (*poly.Poly, error) {
		return poly.Sample(src, p.P, q, []int32{0, 3, -3}, 2*p.T, 0)
	})
	if err != nil {
		ginv.Zero()
		return nil, nil, fmt.Errorf("ntruprime: sample f: %w", err)
	}
	defer finv.Zero()

	// h = g/f in R/q, with g lifted from {0, 1, 2} to {0, 1, q-1}.
	gq := g.Lift(q)
	defer gq.Zero()
	h := poly.Mul(gq, finv)
	h.Reduce(mq)

	sk := &PrivateKey{
		PublicKey: PublicKey{Params: p, h: h},
		f:         f,
		ginv:      ginv,
	}
	return sk.Public(), sk, nil
}

// sampleInvertible draws polynomials from sample until one is invertible
// modulo m, returning it together with its inverse.
func sampleInvertible(m *poly.Poly, sample func() (*poly.Poly, error)) (a, inv *poly.Poly, err error) {
	for i := 0; i < maxKeyAttempts; i++ {
		a, err = sample()
		if err != nil {
			return nil, nil, err
		}
		inv, err = poly.Inverse(a, m)
		if err == nil {
			return a, inv, nil
		}
		a.Zero()
		if !errors.Is(err, poly.ErrNotInvertible) {
			return nil, nil, err
		}
	}
	return nil, nil, fmt.Errorf("%w: %w", ErrKeyGeneration, err)
}
