// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ntruprime

import (
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/jrick/ntrup/internal/entropy"
	"github.com/jrick/ntrup/internal/wipe"
	"github.com/jrick/ntrup/poly"
)

// Encapsulate generates a random shared secret and its ciphertext for the
// public key pk.  Randomness is read from rand.
func Encapsulate(rand io.Reader, pk *PublicKey) (ciphertext, secret []byte, err error) {
	q := int32(pk.Q)

	// A uniform random ternary r of weight 2t.
	r, err := poly.Sample(entropy.New(rand), pk.P, q, ternary, 2*pk.T, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("ntruprime: sample r: %w", err)
	}
	defer r.Zero()

	hr := poly.Mul(pk.h, r)
	defer hr.Zero()
	hr.Reduce(pk.ringModulus(q))
	c := pk.roundPoly(hr)
	defer c.Zero()

	rbuf := packSmall(r, pk.P)
	defer wipe.Slice(rbuf)
	digest := sha512.Sum512(rbuf)
	defer wipe.Slice(digest[:])

	ciphertext = make([]byte, pk.CiphertextSize())
	copy(ciphertext, digest[:tagSize])
	pk.packRounded(ciphertext[tagSize:], c)

	secret = make([]byte, SharedSecretSize)
	copy(secret, digest[tagSize:])
	return ciphertext, secret, nil
}

// Decapsulate recovers the shared secret from ciphertext using sk.
//
// The validity result reports whether the ciphertext passed the
// re-encryption check: the recovered r has weight 2t, re-encrypts to the
// same rounded polynomial, and hashes to the key confirmation tag.  A secret
// is returned even when the ciphertext is invalid, and must not be trusted
// in that case.  An error is returned only for a ciphertext of the wrong
// length.
func Decapsulate(sk *PrivateKey, ciphertext []byte) (secret []byte, valid bool, err error) {
	if len(ciphertext) != sk.CiphertextSize() {
		return nil, false, fmt.Errorf("%w: ciphertext length %d, expected %d",
			ErrMalformed, len(ciphertext), sk.CiphertextSize())
	}
	q := int32(sk.Q)
	tag := ciphertext[:tagSize]
	c, canonical := sk.unpackRounded(ciphertext[tagSize:])
	defer c.Zero()

	// f*c in R/q, centered and reduced into R/3.
	mq := sk.ringModulus(q)
	fc := poly.Mul(sk.f, c)
	defer fc.Zero()
	fc.Reduce(mq)
	fc3 := poly.New(fc.Size(), 3)
	defer fc3.Zero()
	for i := 0; i <= fc.Degree; i++ {
		fc3.Coeffs[i] = poly.Mod(center(fc.Coeffs[i], q), 3)
	}
	fc3.UpdateDegree()

	// r = g^-1 * f*c in R/3.
	r := poly.Mul(sk.ginv, fc3)
	defer r.Zero()
	r.Reduce(sk.ringModulus(3))

	rbuf := packSmall(r, sk.P)
	defer wipe.Slice(rbuf)
	digest := sha512.Sum512(rbuf)
	defer wipe.Slice(digest[:])

	// Re-encrypt r and compare against the ciphertext.
	rq := r.Lift(q)
	defer rq.Zero()
	hr := poly.Mul(sk.h, rq)
	defer hr.Zero()
	hr.Reduce(mq)
	c2 := sk.roundPoly(hr)
	defer c2.Zero()

	valid = canonical &&
		r.Weight() == 2*sk.T &&
		poly.Equal(c, c2) &&
		subtle.ConstantTimeCompare(digest[:tagSize], tag) == 1

	secret = make([]byte, SharedSecretSize)
	copy(secret, digest[tagSize:])
	return secret, valid, nil
}
