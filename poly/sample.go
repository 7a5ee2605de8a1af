// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package poly

import (
	"errors"
	"fmt"

	"github.com/jrick/ntrup/internal/wipe"
)

// ErrSamplingExhausted is returned when the sampler fails to draw a nonzero
// coefficient within its retry bound.
var ErrSamplingExhausted = errors.New("poly: no nonzero coefficient drawn")

// maxNonzeroDraws bounds the rejection loop for nonzero coefficients.
const maxNonzeroDraws = 256

// Rand is a source of uniformly distributed bounded integers.
type Rand interface {
	// Uint32AtMost returns a uniform integer in [0, max].
	Uint32AtMost(max uint32) (uint32, error)
}

// Sample returns a random polynomial with capacity size over modulus mod
// whose coefficients are drawn uniformly from alphabet.  Alphabet values may
// be negative; they are reduced into [0, mod).
//
// If weight <= 0, every coefficient is drawn independently, except that the
// constant coefficient is redrawn until nonzero.  Otherwise exactly weight
// coefficients, at uniformly random distinct positions, are drawn from the
// nonzero alphabet values and all others are zero.
//
// A positive degree forces the result to have exactly that degree: the
// coefficient at index degree is made nonzero and nothing above it is set.
// The weight, if any, is preserved.  A degree <= 0 leaves the degree
// unconstrained.
func Sample(rnd Rand, size int, mod int32, alphabet []int32, weight, degree int) (*Poly, error) {
	switch {
	case size <= 0:
		return nil, fmt.Errorf("poly: invalid sample size %d", size)
	case len(alphabet) == 0:
		return nil, errors.New("poly: empty sample alphabet")
	case degree >= size:
		return nil, fmt.Errorf("poly: degree %d exceeds capacity %d", degree, size)
	}
	span := size
	if degree > 0 {
		span = degree + 1
	}
	if weight > span {
		return nil, fmt.Errorf("poly: weight %d exceeds %d positions", weight, span)
	}

	alpha := make([]int32, len(alphabet))
	for i, c := range alphabet {
		alpha[i] = Mod(c, mod)
	}

	p := New(size, mod)
	var err error
	if weight <= 0 {
		err = sampleDense(rnd, p, alpha, degree)
	} else {
		err = sampleWeighted(rnd, p, alpha, weight, degree)
	}
	if err != nil {
		p.Zero()
		return nil, err
	}
	return p, nil
}

func sampleDense(rnd Rand, p *Poly, alpha []int32, degree int) error {
	c, err := drawNonzero(rnd, alpha)
	if err != nil {
		return err
	}
	p.Coeffs[0] = c
	last := uint32(len(alpha) - 1)
	for i := 1; i < p.Size(); i++ {
		idx, err := rnd.Uint32AtMost(last)
		if err != nil {
			return err
		}
		p.Coeffs[i] = alpha[idx]
	}
	p.UpdateDegree()

	if degree > 0 {
		wipe.Slice(p.Coeffs[degree+1:])
		if p.Coeffs[degree] == 0 {
			c, err := drawNonzero(rnd, alpha)
			if err != nil {
				return err
			}
			p.Coeffs[degree] = c
		}
		p.Degree = degree
	}
	return nil
}

func sampleWeighted(rnd Rand, p *Poly, alpha []int32, weight, degree int) error {
	span := p.Size()
	if degree > 0 {
		span = degree + 1
	}
	positions := make([]uint32, span)
	defer wipe.Slice(positions)
	for i := range positions {
		positions[i] = uint32(i)
	}
	err := Shuffle(rnd, positions)
	if err != nil {
		return err
	}

	p.Degree = 0
	for _, pos := range positions[:weight] {
		c, err := drawNonzero(rnd, alpha)
		if err != nil {
			return err
		}
		p.Coeffs[pos] = c
		if int(pos) > p.Degree {
			p.Degree = int(pos)
		}
	}

	if degree > 0 && p.Degree != degree {
		// Move the highest coefficient up to the requested degree.
		p.Coeffs[p.Degree] = 0
		c, err := drawNonzero(rnd, alpha)
		if err != nil {
			return err
		}
		p.Coeffs[degree] = c
		p.Degree = degree
	}
	return nil
}

// drawNonzero draws alphabet values until a nonzero one is found.
func drawNonzero(rnd Rand, alpha []int32) (int32, error) {
	nonzero := false
	for _, c := range alpha {
		nonzero = nonzero || c != 0
	}
	if !nonzero {
		return 0, ErrSamplingExhausted
	}
	last := uint32(len(alpha) - 1)
	for i := 0; i < maxNonzeroDraws; i++ {
		idx, err := rnd.Uint32AtMost(last)
		if err != nil {
			return 0, err
		}
		if c := alpha[idx]; c != 0 {
			return c, nil
		}
	}
	return 0, ErrSamplingExhausted
}

// Shuffle permutes buf uniformly at random with the Fisher-Yates algorithm.
func Shuffle(rnd Rand, buf []uint32) error {
	for i := len(buf) - 1; i > 0; i-- {
		j, err := rnd.Uint32AtMost(uint32(i))
		if err != nil {
			return err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}
	return nil
}
