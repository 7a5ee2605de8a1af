// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kem

import (
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// hkdfSHA512 derives length bytes from the input keying material.
func hkdfSHA512(ikm, salt, info []byte, length int) []byte {
	out := make([]byte, length)
	_, err := io.ReadFull(hkdf.New(sha512.New, ikm, salt, info), out)
	if err != nil {
		panic(err)
	}
	return out
}

func cshake256CSPRNG(key []byte, customization []byte) io.Reader {
	h := sha3.NewCShake256(nil, customization)
	_, err := h.Write(key)
	if err != nil {
		panic(err)
	}
	return h
}
