// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package keyfile

import (
	"bufio"
	"bytes"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/jrick/ntrup/internal/wipe"
	"github.com/jrick/ntrup/kem"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const saltsize = 16

// Argon2idParams describes the difficulty parameters used when deriving a
// symmetric encryption key from a passphrase using the Argon2id KDF.
type Argon2idParams struct {
	Time   uint32
	Memory uint32
}

// NewArgon2idParams creates the Argon2id parameters from time and memory
// (measured in KiB) values.
func NewArgon2idParams(time, memoryKiB uint32) *Argon2idParams {
	return &Argon2idParams{
		Time:   time,
		Memory: memoryKiB,
	}
}

// Keyfields describes keyfile fields that must be preserved when a key is
// reencrypted.
type Keyfields struct {
	Comment     string
	Fingerprint string
}

// Fingerprint returns the fingerprint string identifying a public key.
func Fingerprint(pubkey []byte) string {
	h := sha512.Sum512(pubkey)
	return "sha512:" + base64.StdEncoding.EncodeToString(h[:])
}

// GenerateKeys generates a random public/secret key pair for the KEM k,
// writing the public key to pkw and secret key to skw.  The secret key is the
// KEM seed, encrypted with ChaCha20-Poly1305 using a symmetric key derived
// using Argon2id from passphrase and specified KDF parameters.
// Cryptographically-secure randomness is provided by rand.
func GenerateKeys(rand io.Reader, k kem.KEM, pkw, skw io.Writer, passphrase []byte, kdfp *Argon2idParams, comment string) (fingerprint string, err error) {
	seed := make([]byte, kem.SeedSize)
	defer wipe.Slice(seed)
	_, err = io.ReadFull(rand, seed)
	if err != nil {
		return "", err
	}
	pk, err := k.GenerateKey(seed)
	if err != nil {
		return "", err
	}
	fingerprint = Fingerprint(pk)

	// Write public key
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "ntrup encryption public key\n")
	fmt.Fprintf(buf, "comment: %s\n", comment)
	fmt.Fprintf(buf, "cryptosystem: %s\n", k)
	fmt.Fprintf(buf, "fingerprint: %s\n", fingerprint)
	fmt.Fprintf(buf, "encoding: base64\n")
	fmt.Fprintf(buf, "\n")
	enc := base64.NewEncoder(base64.StdEncoding, buf)
	enc.Write(pk)
	enc.Close()
	fmt.Fprintf(buf, "\n")
	_, err = io.Copy(pkw, buf)
	if err != nil {
		return "", err
	}

	// Write secret key
	kf := Keyfields{
		Comment:     comment,
		Fingerprint: fingerprint,
	}
	err = EncryptSecretKey(rand, skw, k, seed, passphrase, kdfp, kf)
	if err != nil {
		return "", err
	}

	return fingerprint, nil
}

func writeSecretKey(buf *bytes.Buffer, k kem.KEM, seed []byte, kf Keyfields, skKey []byte, salt []byte, time, memory uint32, threads uint8) error {
	fmt.Fprintf(buf, "ntrup encryption secret key\n")
	fmt.Fprintf(buf, "comment: %s\n", kf.Comment)
	fmt.Fprintf(buf, "cryptosystem: %s\n", k)
	fmt.Fprintf(buf, "fingerprint: %s\n", kf.Fingerprint)
	fmt.Fprintf(buf, "encryption: argon2id-chacha20-poly1305\n")
	fmt.Fprintf(buf, "argon2id-salt: %s\n", base64.StdEncoding.EncodeToString(salt))
	fmt.Fprintf(buf, "argon2id-time: %d\n", time)
	fmt.Fprintf(buf, "argon2id-memory: %d\n", memory)
	fmt.Fprintf(buf, "argon2id-threads: %d\n", threads)
	fmt.Fprintf(buf, "encoding: base64\n")
	// Everything above is Associated Data
	data := buf.Bytes()
	fmt.Fprintf(buf, "\n")
	aead, err := chacha20poly1305.New(skKey)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	skCiphertext := aead.Seal(nil, nonce, seed, data)
	enc := base64.NewEncoder(base64.StdEncoding, buf)
	enc.Write(skCiphertext)
	enc.Close()
	fmt.Fprintf(buf, "\n")
	return nil
}

// EncryptSecretKey writes the KEM seed encrypted in keyfile format to skw.
func EncryptSecretKey(rand io.Reader, skw io.Writer, k kem.KEM, seed []byte, passphrase []byte, kdfp *Argon2idParams, kf Keyfields) error {
	if len(seed) != kem.SeedSize {
		return fmt.Errorf("secret key has invalid length %d", len(seed))
	}
	salt := make([]byte, saltsize)
	_, err := io.ReadFull(rand, salt)
	if err != nil {
		return err
	}
	ncpu := uint8(min(runtime.NumCPU(), 255))
	time := kdfp.Time
	memory := kdfp.Memory
	skKey := argon2.IDKey(passphrase, salt, time, memory, ncpu, chacha20poly1305.KeySize)
	defer wipe.Slice(skKey)

	buf := new(bytes.Buffer)
	err = writeSecretKey(buf, k, seed, kf, skKey, salt, time, memory, ncpu)
	if err != nil {
		return err
	}
	_, err = io.Copy(skw, buf)
	return err
}

func readKeyFile(r io.Reader, firstLine string) (fields map[string]string, ad []byte, encodedKey string, err error) {
	fields = make(map[string]string)

	s := bufio.NewScanner(r)
	i := 0
	keyline := false
	adbuf := new(bytes.Buffer)
	for s.Scan() {
		line := s.Text()
		if len(line) > 0 && line[0] == '#' {
			continue
		}
		if keyline {
			encodedKey = line
			break
		}
		if i == 0 {
			if line != firstLine {
				err = fmt.Errorf("first line does not match %q", firstLine)
				return
			}
			fmt.Fprintf(adbuf, "%s\n", line)
			i++
			continue
		}
		if line == "" {
			// uncommented empty line indicates next line is the encoded key
			keyline = true
			continue
		}
		const sep = ": "
		split := strings.Index(line, sep)
		if split == -1 {
			err = errors.New("missing field separator")
			return
		}
		k, v := line[:split], line[split+len(sep):]
		if _, ok := fields[k]; ok {
			err = fmt.Errorf("duplicate field %q", k)
			return
		}
		fields[k] = v
		fmt.Fprintf(adbuf, "%s\n", line)
	}

	return fields, adbuf.Bytes(), encodedKey, nil
}

func requireFields(fields, required map[string]string) error {
	for k, v := range required {
		if fields[k] != v {
			return fmt.Errorf("keyfile field %q must be %q, but is %q", k, v, fields[k])
		}
	}
	return nil
}

// ReadPublicKey reads a public key in the keyfile format from r, returning
// the KEM named by its cryptosystem field.
func ReadPublicKey(r io.Reader) (kem.KEM, []byte, error) {
	fields, _, encodedKey, err := readKeyFile(r, "ntrup encryption public key")
	if err != nil {
		return nil, nil, err
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, nil, err
	}
	err = requireFields(fields, map[string]string{
		"encoding": "base64",
	})
	if err != nil {
		return nil, nil, err
	}
	k, err := kem.Open(fields["cryptosystem"])
	if err != nil {
		return nil, nil, err
	}
	if len(key) != k.PublicKeySize() {
		return nil, nil, fmt.Errorf("%v public key has invalid length %d", k, len(key))
	}
	if fp, ok := fields["fingerprint"]; ok && fp != Fingerprint(key) {
		return nil, nil, errors.New("public key does not match its fingerprint")
	}
	return k, key, nil
}

// OpenSecretKey reads and decrypts an encrypted KEM seed in the keyfile
// format from r.
func OpenSecretKey(r io.Reader, passphrase []byte) (_ kem.KEM, seed []byte, _ Keyfields, err error) {
	e := func(err error) (kem.KEM, []byte, Keyfields, error) {
		return nil, nil, Keyfields{}, err
	}

	fields, keyAD, encodedSealedKey, err := readKeyFile(r, "ntrup encryption secret key")
	if err != nil {
		return e(err)
	}
	sealedKey, err := base64.StdEncoding.DecodeString(encodedSealedKey)
	if err != nil {
		return e(err)
	}
	err = requireFields(fields, map[string]string{
		"encryption": "argon2id-chacha20-poly1305",
		"encoding":   "base64",
	})
	if err != nil {
		return e(err)
	}
	k, err := kem.Open(fields["cryptosystem"])
	if err != nil {
		return e(err)
	}
	salt, err := base64.StdEncoding.DecodeString(fields["argon2id-salt"])
	if err != nil {
		return e(fmt.Errorf("argon2id-salt: %w", err))
	}
	time, err := strconv.ParseUint(fields["argon2id-time"], 10, 32)
	if err != nil {
		return e(fmt.Errorf("argon2id-time: %w", err))
	}
	memory, err := strconv.ParseUint(fields["argon2id-memory"], 10, 32)
	if err != nil {
		return e(fmt.Errorf("argon2id-memory: %w", err))
	}
	ncpu, err := strconv.ParseUint(fields["argon2id-threads"], 10, 8)
	if err != nil {
		return e(fmt.Errorf("argon2id-threads: %w", err))
	}
	derivedKey := argon2.IDKey(passphrase, salt, uint32(time), uint32(memory), uint8(ncpu), chacha20poly1305.KeySize)
	defer wipe.Slice(derivedKey)
	aead, err := chacha20poly1305.New(derivedKey)
	if err != nil {
		return e(err)
	}
	skNonce := make([]byte, aead.NonceSize())
	seed, err = aead.Open(sealedKey[:0], skNonce, sealedKey, keyAD)
	if err != nil {
		return e(err)
	}
	if len(seed) != kem.SeedSize {
		wipe.Slice(seed)
		return e(fmt.Errorf("secret key has invalid length %d", len(seed)))
	}
	var kf Keyfields
	kf.Comment = fields["comment"]
	kf.Fingerprint = fields["fingerprint"]
	return k, seed, kf, nil
}
