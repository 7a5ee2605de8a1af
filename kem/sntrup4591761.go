// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kem

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/companyzero/sntrup4591761"
	"github.com/jrick/ntrup/internal/wipe"
)

type kemSNTRUP4591761 struct{}

var _kemSNTRUP4591761 = register(new(kemSNTRUP4591761))

// SNTRUP4591761 returns the KEM implementation for Streamlined NTRU Prime
// 4591^761.
func SNTRUP4591761() KEM {
	return _kemSNTRUP4591761
}

func (kemSNTRUP4591761) String() string {
	return "sntrup4591761"
}

func (kemSNTRUP4591761) PublicKeySize() int {
	return sntrup4591761.PublicKeySize
}

func (kemSNTRUP4591761) CiphertextSize() int {
	return sntrup4591761.CiphertextSize
}

func (k kemSNTRUP4591761) GenerateKey(seed []byte) (pubkey []byte, err error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%v: invalid seed length %d", k, len(seed))
	}

	pub, priv, err := k.generate(seed)
	if err != nil {
		return nil, err
	}
	wipe.Slice(priv[:])
	return pub[:], nil
}

func (k kemSNTRUP4591761) Encapsulate(pubkey []byte) (ciphertext, sharedKey []byte, err error) {
	if len(pubkey) != sntrup4591761.PublicKeySize {
		return nil, nil, fmt.Errorf("%v: invalid pubkey length %d", k, len(pubkey))
	}

	ct, key, err := sntrup4591761.Encapsulate(rand.Reader, (*[sntrup4591761.PublicKeySize]byte)(pubkey))
	if err != nil {
		return nil, nil, err
	}
	return ct[:], key[:], nil
}

func (k kemSNTRUP4591761) Decapsulate(seed, ciphertext []byte) (sharedKey []byte, err error) {
	var priv *[sntrup4591761.PrivateKeySize]byte
	switch len(seed) {
	case SeedSize:
		_, priv, err = k.generate(seed)
		if err != nil {
			return nil, err
		}
		defer wipe.Slice(priv[:])
	case sntrup4591761.PrivateKeySize:
		priv = (*[sntrup4591761.PrivateKeySize]byte)(seed)
	default:
		return nil, fmt.Errorf("%v: invalid privkey length %d", k, len(seed))
	}
	if len(ciphertext) != sntrup4591761.CiphertextSize {
		return nil, fmt.Errorf("%v: invalid ciphertext length %d", k, len(ciphertext))
	}

	key, ok := sntrup4591761.Decapsulate((*[sntrup4591761.CiphertextSize]byte)(ciphertext), priv)
	if ok != 1 {
		wipe.Slice(key[:])
		return nil, errors.New("sntrup4591761: decapsulate failure")
	}
	return key[:], nil
}

func (kemSNTRUP4591761) generate(seed []byte) (*[sntrup4591761.PublicKeySize]byte, *[sntrup4591761.PrivateKeySize]byte, error) {
	csprng := cshake256CSPRNG(seed, []byte("ntrup sntrup4591761 csprng"))
	return sntrup4591761.GenerateKey(csprng)
}
