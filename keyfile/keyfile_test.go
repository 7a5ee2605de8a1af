// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package keyfile

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/jrick/ntrup/kem"
)

var testKDF = NewArgon2idParams(1, 64)

func TestGenerateOpen(t *testing.T) {
	k := kem.NTRUP547()
	passphrase := []byte("passphrase")
	pkw, skw := new(bytes.Buffer), new(bytes.Buffer)
	fp, err := GenerateKeys(rand.Reader, k, pkw, skw, passphrase, testKDF, "test key")
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	if !strings.HasPrefix(fp, "sha512:") {
		t.Fatalf("unexpected fingerprint %q", fp)
	}

	pk, pubkey, err := ReadPublicKey(bytes.NewReader(pkw.Bytes()))
	if err != nil {
		t.Fatalf("ReadPublicKey: %v", err)
	}
	if pk != k {
		t.Fatalf("public key cryptosystem %v, expected %v", pk, k)
	}

	sk, seed, kf, err := OpenSecretKey(bytes.NewReader(skw.Bytes()), passphrase)
	if err != nil {
		t.Fatalf("OpenSecretKey: %v", err)
	}
	if sk != k || kf.Comment != "test key" || kf.Fingerprint != fp {
		t.Fatalf("unexpected secret key fields %v %+v", sk, kf)
	}
	pubkey2, err := sk.GenerateKey(seed)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if !bytes.Equal(pubkey, pubkey2) {
		t.Fatalf("secret key does not match public key")
	}

	_, _, _, err = OpenSecretKey(bytes.NewReader(skw.Bytes()), []byte("wrong"))
	if err == nil {
		t.Fatalf("OpenSecretKey accepted an incorrect passphrase")
	}
}

func TestReencrypt(t *testing.T) {
	k := kem.X25519NTRUP547()
	pkw, skw := new(bytes.Buffer), new(bytes.Buffer)
	_, err := GenerateKeys(rand.Reader, k, pkw, skw, []byte("old"), testKDF, "")
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	_, seed, kf, err := OpenSecretKey(skw, []byte("old"))
	if err != nil {
		t.Fatalf("OpenSecretKey: %v", err)
	}

	skw2 := new(bytes.Buffer)
	err = EncryptSecretKey(rand.Reader, skw2, k, seed, []byte("new"), testKDF, kf)
	if err != nil {
		t.Fatalf("EncryptSecretKey: %v", err)
	}
	_, seed2, kf2, err := OpenSecretKey(skw2, []byte("new"))
	if err != nil {
		t.Fatalf("OpenSecretKey: %v", err)
	}
	if !bytes.Equal(seed, seed2) || kf != kf2 {
		t.Fatalf("reencrypted key differs")
	}
}

func TestReadPublicKeyTampered(t *testing.T) {
	pkw, skw := new(bytes.Buffer), new(bytes.Buffer)
	_, err := GenerateKeys(rand.Reader, kem.SNTRUP4591761(), pkw, skw, nil, testKDF, "")
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	s := strings.Replace(pkw.String(), "cryptosystem: sntrup4591761", "cryptosystem: ntrup547", 1)
	_, _, err = ReadPublicKey(strings.NewReader(s))
	if err == nil {
		t.Fatalf("ReadPublicKey accepted a key of the wrong length")
	}
}
