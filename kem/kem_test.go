// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kem

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/jrick/ntrup/ntruprime"
)

func randomSeed(t *testing.T) []byte {
	t.Helper()
	seed := make([]byte, SeedSize)
	_, err := rand.Read(seed)
	if err != nil {
		panic(err)
	}
	return seed
}

func TestRoundTrip(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			kem, err := Open(name)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			seed := randomSeed(t)

			pubkey, err := kem.GenerateKey(seed)
			if err != nil {
				t.Fatalf("GenerateKey: %v", err)
			}
			if len(pubkey) != kem.PublicKeySize() {
				t.Fatalf("pubkey length %d, expected %d", len(pubkey), kem.PublicKeySize())
			}

			ciphertext, sharedKey1, err := kem.Encapsulate(pubkey)
			if err != nil {
				t.Fatalf("Encapsulate: %v", err)
			}
			if len(ciphertext) != kem.CiphertextSize() {
				t.Fatalf("ciphertext length %d, expected %d", len(ciphertext), kem.CiphertextSize())
			}

			sharedKey2, err := kem.Decapsulate(seed, ciphertext)
			if err != nil {
				t.Fatalf("Decapsulate: %v", err)
			}

			if len(sharedKey1) != KeySize {
				t.Fatalf("shared key length %d", len(sharedKey1))
			}
			if !bytes.Equal(sharedKey1, sharedKey2) {
				t.Fatalf("Failed to derive same shared key")
			}
		})
	}
}

func TestDeterministicKeys(t *testing.T) {
	for _, name := range Names() {
		kem, _ := Open(name)
		seed := randomSeed(t)
		pub1, err := kem.GenerateKey(seed)
		if err != nil {
			t.Fatalf("%s: GenerateKey: %v", name, err)
		}
		pub2, err := kem.GenerateKey(seed)
		if err != nil {
			t.Fatalf("%s: GenerateKey: %v", name, err)
		}
		if !bytes.Equal(pub1, pub2) {
			t.Fatalf("%s: same seed generated different public keys", name)
		}
	}
}

func TestTamperedCiphertext(t *testing.T) {
	// Offsets address the key confirmation tag of the post-quantum
	// ciphertext.
	tests := []struct {
		name   string
		offset int
	}{
		{"ntrup547", 0},
		{"sntrup4591761", 0},
		{"x25519-ntrup547", kdfSaltSize + x25519PublicKeySize},
		{"x25519-sntrup4591761", kdfSaltSize + x25519PublicKeySize},
	}
	for _, test := range tests {
		name := test.name
		kem, _ := Open(name)
		seed := randomSeed(t)
		pubkey, err := kem.GenerateKey(seed)
		if err != nil {
			t.Fatalf("%s: GenerateKey: %v", name, err)
		}
		ciphertext, _, err := kem.Encapsulate(pubkey)
		if err != nil {
			t.Fatalf("%s: Encapsulate: %v", name, err)
		}
		ciphertext[test.offset] ^= 0x01
		_, err = kem.Decapsulate(seed, ciphertext)
		if err == nil {
			t.Fatalf("%s: tampered ciphertext decapsulated", name)
		}
	}
}

func TestNTRUP547PrivateKeyDecapsulate(t *testing.T) {
	kem := NTRUP547()

	pub, priv, err := ntruprime.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	defer priv.Wipe()

	ciphertext, sharedKey1, err := kem.Encapsulate(pub.Bytes())
	if err != nil {
		t.Fatalf("Encapsulate: %v", err)
	}

	sharedKey2, err := kem.Decapsulate(priv.Bytes(), ciphertext)
	if err != nil {
		t.Fatalf("Decapsulate: %v", err)
	}

	if !bytes.Equal(sharedKey1, sharedKey2) {
		t.Fatalf("Failed to derive same shared key")
	}
}

func TestSntrup4591761LegacyDecapsulate(t *testing.T) {
	kem := SNTRUP4591761()
	seed := randomSeed(t)

	pubkey, privkey, err := kemSNTRUP4591761{}.generate(seed)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	ciphertext, sharedKey1, err := kem.Encapsulate(pubkey[:])
	if err != nil {
		t.Fatalf("Encapsulate: %v", err)
	}

	sharedKey2, err := kem.Decapsulate(privkey[:], ciphertext)
	if err != nil {
		t.Fatalf("Decapsulate: %v", err)
	}

	if !bytes.Equal(sharedKey1, sharedKey2) {
		t.Fatalf("Failed to derive same shared key")
	}
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("rsa")
	if err == nil {
		t.Fatalf("Open accepted an unknown KEM")
	}
}

func TestSntrup4591761KeyLengths(t *testing.T) {
	kem := SNTRUP4591761()
	pubkey, privkey, err := kemSNTRUP4591761{}.generate(randomSeed(t))
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if len(pubkey) != kem.PublicKeySize() {
		t.Fatalf("pubkey length %d, expected %d", len(pubkey), kem.PublicKeySize())
	}

	ciphertext, _, err := kem.Encapsulate(pubkey[:])
	if err != nil {
		t.Fatalf("Encapsulate: %v", err)
	}
	if len(ciphertext) != kem.CiphertextSize() {
		t.Fatalf("ciphertext length %d, expected %d", len(ciphertext), kem.CiphertextSize())
	}

	if _, _, err := kem.Encapsulate(pubkey[1:]); err == nil {
		t.Fatalf("Encapsulate accepted a short pubkey")
	}
	if _, err := kem.Decapsulate(privkey[1:], ciphertext); err == nil {
		t.Fatalf("Decapsulate accepted a short privkey")
	}
	if _, err := kem.Decapsulate(privkey[:], ciphertext[1:]); err == nil {
		t.Fatalf("Decapsulate accepted a short ciphertext")
	}
}
