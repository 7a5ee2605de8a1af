// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kem

import (
	"bytes"
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"github.com/jrick/ntrup/internal/wipe"
)

const (
	kdfSaltSize          = 32
	x25519PublicKeySize  = 32
	x25519PrivateKeySize = 32
)

// kemX25519Hybrid combines a non-interactive X25519 KEM with a post-quantum
// KEM.  The shared key is derived from both shared secrets, so it remains
// secret as long as either cryptosystem is unbroken.
type kemX25519Hybrid struct {
	pq KEM
}

var (
	_kemX25519NTRUP547      = register(&kemX25519Hybrid{pq: _kemNTRUP547})
	_kemX25519SNTRUP4591761 = register(&kemX25519Hybrid{pq: _kemSNTRUP4591761})
)

// X25519NTRUP547 returns the hybrid KEM combining X25519 and ntrup547.
func X25519NTRUP547() KEM {
	return _kemX25519NTRUP547
}

// X25519SNTRUP4591761 returns the hybrid KEM combining X25519 and
// sntrup4591761.
func X25519SNTRUP4591761() KEM {
	return _kemX25519SNTRUP4591761
}

func (k *kemX25519Hybrid) String() string {
	return "x25519-" + k.pq.String()
}

func (k *kemX25519Hybrid) PublicKeySize() int {
	return x25519PublicKeySize + k.pq.PublicKeySize()
}

func (k *kemX25519Hybrid) CiphertextSize() int {
	return kdfSaltSize + x25519PublicKeySize + k.pq.CiphertextSize()
}

// subkeys derives the X25519 private key and the seed of the post-quantum
// KEM from the hybrid seed.
func (k *kemX25519Hybrid) subkeys(seed []byte) (x25519Priv *ecdh.PrivateKey, pqSeed []byte, err error) {
	name := "ntrup " + k.String()
	x25519SubKey := hkdfSHA512(seed, nil, []byte(name+" subkey x25519"), x25519PrivateKeySize)
	defer wipe.Slice(x25519SubKey)
	x25519Priv, err = ecdh.X25519().NewPrivateKey(x25519SubKey)
	if err != nil {
		return nil, nil, err
	}
	pqSeed = hkdfSHA512(seed, nil, []byte(name+" subkey "+k.pq.String()), SeedSize)
	return x25519Priv, pqSeed, nil
}

func (k *kemX25519Hybrid) GenerateKey(seed []byte) (pubkey []byte, err error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%v: invalid seed length %d", k, len(seed))
	}

	x25519Priv, pqSeed, err := k.subkeys(seed)
	if err != nil {
		return nil, err
	}
	defer wipe.Slice(pqSeed)
	pqPub, err := k.pq.GenerateKey(pqSeed)
	if err != nil {
		return nil, err
	}
	return append(x25519Priv.PublicKey().Bytes(), pqPub...), nil
}

func (k *kemX25519Hybrid) Encapsulate(pubkey []byte) (ciphertext, sharedKey []byte, err error) {
	if len(pubkey) != k.PublicKeySize() {
		return nil, nil, fmt.Errorf("%v: invalid pubkey length %d", k, len(pubkey))
	}
	rPubBytes := pubkey[:x25519PublicKeySize]
	pqPub := pubkey[x25519PublicKeySize:]

	// The ephemeral public key becomes the X25519 ciphertext.
	x25519 := ecdh.X25519()
	ePriv, err := x25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	rPub, err := x25519.NewPublicKey(rPubBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid recipient X25519 public key: %w", err)
	}
	x25519SharedKey, err := ePriv.ECDH(rPub)
	if err != nil {
		return nil, nil, err
	}
	defer wipe.Slice(x25519SharedKey)

	pqCiphertext, pqSharedKey, err := k.pq.Encapsulate(pqPub)
	if err != nil {
		return nil, nil, err
	}
	defer wipe.Slice(pqSharedKey)

	salt := make([]byte, kdfSaltSize)
	_, err = rand.Read(salt)
	if err != nil {
		panic(err)
	}

	ePub := ePriv.PublicKey().Bytes()
	ciphertext = make([]byte, 0, k.CiphertextSize())
	ciphertext = append(ciphertext, salt...)
	ciphertext = append(ciphertext, ePub...)
	ciphertext = append(ciphertext, pqCiphertext...)

	sharedKey = k.combine(x25519SharedKey, pqSharedKey, salt, ePub, rPubBytes, pqPub)
	return ciphertext, sharedKey, nil
}

func (k *kemX25519Hybrid) Decapsulate(seed, ciphertext []byte) (sharedKey []byte, err error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%v: invalid seed length %d", k, len(seed))
	}
	if len(ciphertext) != k.CiphertextSize() {
		return nil, fmt.Errorf("%v: invalid ciphertext length %d", k, len(ciphertext))
	}
	salt := ciphertext[:kdfSaltSize]
	ePubBytes := ciphertext[kdfSaltSize : kdfSaltSize+x25519PublicKeySize]
	pqCiphertext := ciphertext[kdfSaltSize+x25519PublicKeySize:]

	rPriv, pqSeed, err := k.subkeys(seed)
	if err != nil {
		return nil, err
	}
	defer wipe.Slice(pqSeed)

	ePub, err := ecdh.X25519().NewPublicKey(ePubBytes)
	if err != nil {
		return nil, err
	}
	x25519SharedKey, err := rPriv.ECDH(ePub)
	if err != nil {
		return nil, err
	}
	defer wipe.Slice(x25519SharedKey)

	pqSharedKey, err := k.pq.Decapsulate(pqSeed, pqCiphertext)
	if err != nil {
		return nil, err
	}
	defer wipe.Slice(pqSharedKey)
	pqPub, err := k.pq.GenerateKey(pqSeed)
	if err != nil {
		return nil, err
	}

	rPubBytes := rPriv.PublicKey().Bytes()
	return k.combine(x25519SharedKey, pqSharedKey, salt, ePubBytes, rPubBytes, pqPub), nil
}

// combine derives the hybrid shared key from both shared secrets, binding
// it to the salt, both X25519 public keys, the post-quantum public key, and
// the KEM name.
func (k *kemX25519Hybrid) combine(x25519SharedKey, pqSharedKey, salt, ePub, rPub, pqPub []byte) []byte {
	ikm := make([]byte, 0, len(x25519SharedKey)+len(pqSharedKey))
	ikm = append(ikm, x25519SharedKey...)
	ikm = append(ikm, pqSharedKey...)
	defer wipe.Slice(ikm)

	name := k.String()
	var info bytes.Buffer
	info.Grow(len(ePub) + len(rPub) + len(pqPub) + len("ntrup ") + len(name))
	info.Write(ePub)
	info.Write(rPub)
	info.Write(pqPub)
	info.WriteString("ntrup ")
	info.WriteString(name)
	return hkdfSHA512(ikm, salt, info.Bytes(), KeySize)
}
