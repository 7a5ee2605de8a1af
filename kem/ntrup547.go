// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kem

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/jrick/ntrup/internal/wipe"
	"github.com/jrick/ntrup/ntruprime"
)

type kemNTRUPrime struct {
	name   string
	params ntruprime.Params
}

var _kemNTRUP547 = register(&kemNTRUPrime{
	name:   "ntrup547",
	params: ntruprime.Default,
})

// NTRUP547 returns the KEM implementation for NTRU Prime with p=547, q=3001,
// and t=62.
func NTRUP547() KEM {
	return _kemNTRUP547
}

func (k *kemNTRUPrime) String() string {
	return k.name
}

func (k *kemNTRUPrime) PublicKeySize() int {
	return k.params.PublicKeySize()
}

func (k *kemNTRUPrime) CiphertextSize() int {
	return k.params.CiphertextSize()
}

func (k *kemNTRUPrime) GenerateKey(seed []byte) (pubkey []byte, err error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%s: invalid seed length %d", k.name, len(seed))
	}

	pub, priv, err := k.generate(seed)
	if err != nil {
		return nil, err
	}
	defer priv.Wipe()
	return pub.Bytes(), nil
}

func (k *kemNTRUPrime) Encapsulate(pubkey []byte) (ciphertext, sharedKey []byte, err error) {
	if len(pubkey) != k.PublicKeySize() {
		return nil, nil, fmt.Errorf("%s: invalid pubkey length %d", k.name, len(pubkey))
	}
	pk, err := ntruprime.ParsePublicKey(pubkey)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", k.name, err)
	}
	if pk.Params != k.params {
		return nil, nil, fmt.Errorf("%s: pubkey has parameters %v", k.name, pk.Params)
	}

	return ntruprime.Encapsulate(rand.Reader, pk)
}

func (k *kemNTRUPrime) Decapsulate(seed, ciphertext []byte) (sharedKey []byte, err error) {
	var priv *ntruprime.PrivateKey
	switch len(seed) {
	case SeedSize:
		_, priv, err = k.generate(seed)
	case k.params.PrivateKeySize():
		priv, err = ntruprime.ParsePrivateKey(seed)
		if err == nil && priv.Params != k.params {
			priv.Wipe()
			err = fmt.Errorf("privkey has parameters %v", priv.Params)
		}
	default:
		err = fmt.Errorf("invalid privkey length %d", len(seed))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k.name, err)
	}
	defer priv.Wipe()
	if len(ciphertext) != k.CiphertextSize() {
		return nil, fmt.Errorf("%s: invalid ciphertext length %d", k.name, len(ciphertext))
	}

	sharedKey, ok, err := ntruprime.Decapsulate(priv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k.name, err)
	}
	if !ok {
		wipe.Slice(sharedKey)
		return nil, errors.New(k.name + ": decapsulate failure")
	}
	return sharedKey, nil
}

func (k *kemNTRUPrime) generate(seed []byte) (*ntruprime.PublicKey, *ntruprime.PrivateKey, error) {
	csprng := cshake256CSPRNG(seed, []byte("ntrup "+k.name+" csprng"))
	return k.params.GenerateKey(csprng)
}
