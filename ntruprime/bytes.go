// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ntruprime

import "io"

// GenerateKeyBytes returns a new serialized key pair for the Default
// parameters.
func GenerateKeyBytes(rand io.Reader) (pubkey, privkey []byte, err error) {
	pk, sk, err := GenerateKey(rand)
	if err != nil {
		return nil, nil, err
	}
	defer sk.Wipe()
	return pk.Bytes(), sk.Bytes(), nil
}

// EncapsulateBytes encapsulates a shared secret for a serialized public key.
func EncapsulateBytes(rand io.Reader, pubkey []byte) (ciphertext, secret []byte, err error) {
	pk, err := ParsePublicKey(pubkey)
	if err != nil {
		return nil, nil, err
	}
	defer pk.h.Zero()
	return Encapsulate(rand, pk)
}

// DecapsulateBytes recovers the shared secret of ciphertext using a
// serialized private key.  As with Decapsulate, a secret is returned even
// when valid is false, and must not be trusted in that case.
func DecapsulateBytes(privkey, ciphertext []byte) (secret []byte, valid bool, err error) {
	sk, err := ParsePrivateKey(privkey)
	if err != nil {
		return nil, false, err
	}
	defer sk.Wipe()
	return Decapsulate(sk, ciphertext)
}
