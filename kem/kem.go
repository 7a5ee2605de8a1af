// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kem

import (
	"fmt"
	"sort"
)

// SeedSize is the required byte length of seeds for GenerateKey.
const SeedSize = 64

// KeySize is the size of the shared key.
const KeySize = 32

// KEM describes the algorithms for a Key Encapsulation Mechanism (KEM) to key
// the encryption stream.
type KEM interface {
	String() string

	// PublicKeySize and CiphertextSize return the fixed lengths of the
	// serialized public key and of ciphertexts.
	PublicKeySize() int
	CiphertextSize() int

	// GenerateKey deterministically derives the KEM public key from the seed.
	// Seeds must provide 64 bytes of entropy.
	// The serialized private key is never exposed by this interface.
	GenerateKey(seed []byte) (pubkey []byte, err error)

	// Encapsulate creates a shared key and a ciphertext to be shared with
	// the recipient.
	Encapsulate(pubkey []byte) (ciphertext, sharedKey []byte, err error)

	// Decapsulate recovers the shared key created by the message sender
	// from the ciphertext.  Ciphertexts failing validation are reported
	// as an error and no key is returned.
	//
	// If seed is not SeedSize, but is instead the size of the KEM's
	// serialized private key, the seed parameter is interpreted as the
	// private key rather than generating the private key from the seed.
	// Only the ntrup547 and sntrup4591761 KEMs support this.
	//
	// The shared key will always be 32-bytes long and suitable to use to
	// key an AEAD.
	Decapsulate(seed, ciphertext []byte) (sharedKey []byte, err error)
}

var registry = map[string]KEM{}

func register(k KEM) KEM {
	registry[k.String()] = k
	return k
}

// Open returns the KEM instance for a cryptosystem name.
func Open(name string) (KEM, error) {
	k, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown KEM %q", name)
	}
	return k, nil
}

// Names returns the sorted names of all KEMs known to Open.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
