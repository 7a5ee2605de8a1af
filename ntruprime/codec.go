// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ntruprime

import (
	"encoding/binary"
	"fmt"

	"github.com/jrick/ntrup/poly"
)

// Serialized keys begin with the parameters as three little endian uint32
// values p, q, and t.  Ring elements follow as pairs of 12-bit coefficients,
// each pair (c0, c1) stored as the 3-byte little endian value c0 + c1*4096.
//
// Ciphertexts are a 32-byte key confirmation tag followed by the rounded
// ring element, packed as triplets of 10-bit values c0 + c1*2^10 + c2*2^20
// in 4-byte little endian words.

// PublicKey is an NTRU Prime public key.
type PublicKey struct {
	Params
	h *poly.Poly
}

// PrivateKey is an NTRU Prime private key.  It embeds its public key.
type PrivateKey struct {
	PublicKey
	f    *poly.Poly
	ginv *poly.Poly
}

// Public returns the public key corresponding to sk.
func (sk *PrivateKey) Public() *PublicKey {
	return &sk.PublicKey
}

// Wipe overwrites the private and public polynomials of sk.  The key is
// unusable afterwards.
func (sk *PrivateKey) Wipe() {
	sk.f.Zero()
	sk.ginv.Zero()
	sk.h.Zero()
}

func coeffAt(c []int32, i int) uint32 {
	if i < len(c) {
		return uint32(c[i])
	}
	return 0
}

// encodePairs writes the first n coefficients of c to dst, which must hold
// pairsSize(n) bytes.
func encodePairs(dst []byte, c []int32, n int) {
	for i := 0; i < n; i += 2 {
		c1 := uint32(0)
		if i+1 < n {
			c1 = coeffAt(c, i+1)
		}
		v := coeffAt(c, i) | c1<<12
		dst[0] = byte(v)
		dst[1] = byte(v >> 8)
		dst[2] = byte(v >> 16)
		dst = dst[3:]
	}
}

// decodePairs reads n coefficients below mod from src into a polynomial with
// capacity size.
func decodePairs(src []byte, n, size int, mod int32) (*poly.Poly, error) {
	p := poly.New(size, mod)
	for i := 0; i < n; i += 2 {
		v := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16
		src = src[3:]
		c0, c1 := int32(v&0xfff), int32(v>>12)
		if i+1 == n && c1 != 0 {
			p.Zero()
			return nil, fmt.Errorf("%w: nonzero padding coefficient", ErrMalformed)
		}
		if c0 >= mod || c1 >= mod {
			p.Zero()
			return nil, fmt.Errorf("%w: coefficient out of range for modulus %d", ErrMalformed, mod)
		}
		p.Coeffs[i] = c0
		if i+1 < n {
			p.Coeffs[i+1] = c1
		}
	}
	p.UpdateDegree()
	return p, nil
}

func (p Params) putHeader(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], uint32(p.P))
	binary.LittleEndian.PutUint32(dst[4:], uint32(p.Q))
	binary.LittleEndian.PutUint32(dst[8:], uint32(p.T))
}

// parseHeader reads and validates the parameters of a serialized key and
// checks the key length with size.
func parseHeader(b []byte, size func(Params) int) (Params, error) {
	if len(b) < headerSize {
		return Params{}, fmt.Errorf("%w: key too short", ErrMalformed)
	}
	p := Params{
		P: int(binary.LittleEndian.Uint32(b[0:])),
		Q: int(binary.LittleEndian.Uint32(b[4:])),
		T: int(binary.LittleEndian.Uint32(b[8:])),
	}
	err := p.Validate()
	if err != nil {
		return Params{}, err
	}
	if len(b) != size(p) {
		return Params{}, fmt.Errorf("%w: key length %d, expected %d for %v",
			ErrMalformed, len(b), size(p), p)
	}
	return p, nil
}

// Bytes returns the serialized public key.
func (pk *PublicKey) Bytes() []byte {
	b := make([]byte, pk.PublicKeySize())
	pk.putHeader(b)
	encodePairs(b[headerSize:], pk.h.Coeffs, pk.P)
	return b
}

// ParsePublicKey decodes a serialized public key.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	p, err := parseHeader(b, Params.PublicKeySize)
	if err != nil {
		return nil, err
	}
	h, err := decodePairs(b[headerSize:], p.P, p.P+1, int32(p.Q))
	if err != nil {
		return nil, err
	}
	return &PublicKey{Params: p, h: h}, nil
}

// Bytes returns the serialized private key.  The caller should wipe the
// result once it has been stored.
func (sk *PrivateKey) Bytes() []byte {
	b := make([]byte, sk.PrivateKeySize())
	sk.putHeader(b)
	off := headerSize
	encodePairs(b[off:], sk.f.Coeffs, sk.P)
	off += pairsSize(sk.P)
	encodePairs(b[off:], sk.ginv.Coeffs, sk.P+1)
	off += pairsSize(sk.P + 1)
	encodePairs(b[off:], sk.h.Coeffs, sk.P)
	return b
}

// ParsePrivateKey decodes a serialized private key.
func ParsePrivateKey(b []byte) (*PrivateKey, error) {
	p, err := parseHeader(b, Params.PrivateKeySize)
	if err != nil {
		return nil, err
	}
	q := int32(p.Q)
	off := headerSize
	f, err := decodePairs(b[off:], p.P, p.P, q)
	if err != nil {
		return nil, err
	}
	off += pairsSize(p.P)
	ginv, err := decodePairs(b[off:], p.P+1, p.P+1, 3)
	if err != nil {
		f.Zero()
		return nil, err
	}
	off += pairsSize(p.P + 1)
	h, err := decodePairs(b[off:], p.P, p.P+1, q)
	if err != nil {
		f.Zero()
		ginv.Zero()
		return nil, err
	}
	return &PrivateKey{PublicKey: PublicKey{Params: p, h: h}, f: f, ginv: ginv}, nil
}

// CiphertextSize returns the ciphertext length for a serialized public key.
func CiphertextSize(pubkey []byte) (int, error) {
	p, err := parseHeader(pubkey, Params.PublicKeySize)
	if err != nil {
		return 0, err
	}
	return p.CiphertextSize(), nil
}

// packSmall encodes the first n coefficients of a ternary polynomial two
// bits each, as c+1 for c in {-1, 0, 1}, four to a byte starting from the
// low bits.
func packSmall(r *poly.Poly, n int) []byte {
	b := make([]byte, (2*n+7)/8)
	for i := 0; i < n; i++ {
		c := int32(0)
		if i < r.Size() {
			c = small(r.Coeffs[i], r.Mod)
		}
		b[i/4] |= byte(c+1) << (2 * (i % 4))
	}
	return b
}

// packRounded writes the ciphertext encoding of the rounded polynomial c to
// dst.  Coefficients of c are multiples of 3; each is divided by 3 in Z_q,
// centered, and offset by (q+5)/6 so that it fits in 10 bits.
func (p Params) packRounded(dst []byte, c *poly.Poly) {
	q := int32(p.Q)
	q6 := (q + 5) / 6
	i3 := int64(poly.ModInversePrime(3, q))
	var v [3]uint32
	for i := 0; i < p.P; i += 3 {
		for j := range v {
			v[j] = 0
			if i+j < p.P {
				k := int32(int64(coeffAt(c.Coeffs, i+j)) * i3 % int64(q))
				v[j] = uint32(center(k, q) + q6)
			}
		}
		binary.LittleEndian.PutUint32(dst, v[0]|v[1]<<10|v[2]<<20)
		dst = dst[4:]
	}
}

// unpackRounded reverses packRounded.  The boolean result reports whether
// the encoding was canonical: no bits set outside the packed values and
// none set in the unused slots of the final word.
func (p Params) unpackRounded(src []byte) (*poly.Poly, bool) {
	q := int32(p.Q)
	q6 := (q + 5) / 6
	c := poly.New(p.P, q)
	canonical := true
	for i := 0; i < p.P; i += 3 {
		w := binary.LittleEndian.Uint32(src)
		src = src[4:]
		canonical = canonical && w>>30 == 0
		for j := 0; j < 3; j++ {
			v := int32(w>>(10*j)) & 0x3ff
			if i+j >= p.P {
				canonical = canonical && v == 0
				continue
			}
			c.Coeffs[i+j] = poly.Mod(3*(v-q6), q)
		}
	}
	c.UpdateDegree()
	return c, canonical
}
