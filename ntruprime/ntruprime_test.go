// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ntruprime

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	mrand "math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrick/ntrup/internal/entropy"
	"github.com/jrick/ntrup/poly"
	"github.com/stretchr/testify/require"
)

var small101 = Params{P: 101, Q: 3001, T: 16}

func TestSizes(t *testing.T) {
	require.Equal(t, 834, Default.PublicKeySize())
	require.Equal(t, 2478, Default.PrivateKeySize())
	require.Equal(t, 764, Default.CiphertextSize())
	require.Equal(t, "ntrup547-3001-62", Default.String())

	pk, sk, err := GenerateKey(rand.Reader)
	require.NoError(t, err)
	defer sk.Wipe()
	require.Len(t, pk.Bytes(), 834)
	require.Len(t, sk.Bytes(), 2478)

	n, err := CiphertextSize(pk.Bytes())
	require.NoError(t, err)
	require.Equal(t, 764, n)
	_, err = CiphertextSize(pk.Bytes()[:100])
	require.ErrorIs(t, err, ErrMalformed)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default.Validate())
	require.NoError(t, small101.Validate())
	for _, p := range []Params{
		{P: 546, Q: 3001, T: 62},  // p not prime
		{P: 2, Q: 3001, T: 1},     // p too small
		{P: 547, Q: 3000, T: 62},  // q not prime
		{P: 547, Q: 4099, T: 62},  // q too large
		{P: 547, Q: 3001, T: 0},   // empty weight
		{P: 547, Q: 3001, T: 274}, // weight exceeds p
		{P: 547, Q: 2801, T: 62},  // q below 48t+1
		{P: 547, Q: 3449, T: 62},  // packed values overflow 10 bits
	} {
		require.ErrorIs(t, p.Validate(), ErrMalformed, "%v", p)
	}
}

func TestRound3(t *testing.T) {
	for x := int32(-1501); x <= 1500; x++ {
		r := round3(x)
		require.Zero(t, r%3)
		require.LessOrEqual(t, math.Abs(float64(x-r)), 1.0)
		require.Equal(t, int32(math.RoundToEven(float64(x)/3))*3, r)
	}
}

func TestCenter(t *testing.T) {
	require.Equal(t, int32(0), center(0, 3001))
	require.Equal(t, int32(1499), center(1499, 3001))
	require.Equal(t, int32(-1501), center(1500, 3001))
	require.Equal(t, int32(-1), center(3000, 3001))
}

func TestRoundTrip(t *testing.T) {
	for _, params := range []Params{Default, small101} {
		pk, sk, err := params.GenerateKey(rand.Reader)
		require.NoError(t, err)
		for i := 0; i < 50; i++ {
			ct, secret, err := Encapsulate(rand.Reader, pk)
			require.NoError(t, err)
			require.Len(t, ct, params.CiphertextSize())
			require.Len(t, secret, SharedSecretSize)

			secret2, valid, err := Decapsulate(sk, ct)
			require.NoError(t, err)
			require.True(t, valid, "%v trial %d", params, i)
			require.Equal(t, secret, secret2)
		}
		sk.Wipe()
	}
}

func TestKeyStructure(t *testing.T) {
	pk, sk, err := Default.GenerateKey(entropy.NewSeeded([]byte("key structure")))
	require.NoError(t, err)
	defer sk.Wipe()
	q := int32(Default.Q)

	require.Equal(t, 2*Default.T, sk.f.Weight())
	for _, c := range sk.f.Coeffs {
		require.Contains(t, []int32{0, 3, q - 3}, c)
	}
	for _, c := range sk.ginv.Coeffs {
		require.Less(t, c, int32(3))
	}

	// h*f recovers the ternary g.
	mq := Default.ringModulus(q)
	g := poly.Mul(pk.h, sk.f)
	g.Reduce(mq)
	for _, c := range g.Coeffs {
		require.Contains(t, []int32{0, 1, q - 1}, c)
	}

	// g * g^-1 = 1 in R/3.
	g3 := poly.New(g.Size(), 3)
	for i, c := range g.Coeffs {
		g3.Coeffs[i] = poly.Mod(small(c, q), 3)
	}
	g3.UpdateDegree()
	one := poly.Mul(g3, sk.ginv)
	one.Reduce(Default.ringModulus(3))
	require.Equal(t, 0, one.Degree)
	require.Equal(t, int32(1), one.Coeffs[0])
}

func TestDeterministicKeys(t *testing.T) {
	pk1, sk1, err := GenerateKey(entropy.NewSeeded([]byte("deterministic")))
	require.NoError(t, err)
	pk2, sk2, err := GenerateKey(entropy.NewSeeded([]byte("deterministic")))
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(pk1.Bytes(), pk2.Bytes()))
	require.Empty(t, cmp.Diff(sk1.Bytes(), sk2.Bytes()))
}

func TestSerialization(t *testing.T) {
	pk, sk, err := GenerateKey(rand.Reader)
	require.NoError(t, err)

	pk2, err := ParsePublicKey(pk.Bytes())
	require.NoError(t, err)
	require.Equal(t, pk.Params, pk2.Params)
	require.True(t, poly.Equal(pk.h, pk2.h))
	require.Empty(t, cmp.Diff(pk.Bytes(), pk2.Bytes()))

	sk2, err := ParsePrivateKey(sk.Bytes())
	require.NoError(t, err)
	require.True(t, poly.Equal(sk.f, sk2.f))
	require.True(t, poly.Equal(sk.ginv, sk2.ginv))
	require.True(t, poly.Equal(sk.h, sk2.h))
	require.Empty(t, cmp.Diff(sk.Bytes(), sk2.Bytes()))
	require.Empty(t, cmp.Diff(pk.Bytes(), sk2.Public().Bytes()))

	// A ciphertext for the reparsed public key decapsulates with the parsed
	// private key.
	ct, secret, err := Encapsulate(rand.Reader, pk2)
	require.NoError(t, err)
	secret2, valid, err := Decapsulate(sk2, ct)
	require.NoError(t, err)
	require.True(t, valid)
	require.Equal(t, secret, secret2)
}

func TestMalformedKeys(t *testing.T) {
	pk, sk, err := GenerateKey(rand.Reader)
	require.NoError(t, err)
	defer sk.Wipe()
	pkb := pk.Bytes()
	skb := sk.Bytes()

	_, err = ParsePublicKey(pkb[:len(pkb)-1])
	require.ErrorIs(t, err, ErrMalformed)
	_, err = ParsePublicKey(append(pkb, 0))
	require.ErrorIs(t, err, ErrMalformed)
	_, err = ParsePublicKey(pkb[:4])
	require.ErrorIs(t, err, ErrMalformed)
	_, err = ParsePrivateKey(pkb)
	require.ErrorIs(t, err, ErrMalformed)
	_, err = ParsePublicKey(skb)
	require.ErrorIs(t, err, ErrMalformed)

	// Unsupported parameters in the header.
	bad := append([]byte(nil), pkb...)
	binary.LittleEndian.PutUint32(bad[4:], 3000)
	_, err = ParsePublicKey(bad)
	require.ErrorIs(t, err, ErrMalformed)

	// A coefficient of h at or above q.
	bad = append([]byte(nil), pkb...)
	bad[headerSize] = 0xff
	bad[headerSize+1] |= 0x0f
	_, err = ParsePublicKey(bad)
	require.ErrorIs(t, err, ErrMalformed)

	// A nonzero padding coefficient after the final odd coefficient.
	bad = append([]byte(nil), pkb...)
	bad[len(bad)-1] |= 0x10
	_, err = ParsePublicKey(bad)
	require.ErrorIs(t, err, ErrMalformed)

	// A coefficient of g^-1 at or above 3.
	bad = append([]byte(nil), skb...)
	off := headerSize + pairsSize(Default.P)
	bad[off] = 0x03
	_, err = ParsePrivateKey(bad)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecapsulateWrongLength(t *testing.T) {
	pk, sk, err := GenerateKey(rand.Reader)
	require.NoError(t, err)
	defer sk.Wipe()
	ct, _, err := Encapsulate(rand.Reader, pk)
	require.NoError(t, err)

	_, _, err = Decapsulate(sk, ct[:len(ct)-1])
	require.ErrorIs(t, err, ErrMalformed)
	_, _, err = Decapsulate(sk, append(ct, 0))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecapsulateTampered(t *testing.T) {
	pk, sk, err := GenerateKey(rand.Reader)
	require.NoError(t, err)
	defer sk.Wipe()
	rng := mrand.New(mrand.NewSource(1))

	for i := 0; i < 1000; i++ {
		ct, secret, err := Encapsulate(rand.Reader, pk)
		require.NoError(t, err)
		pos := rng.Intn(len(ct))
		ct[pos] ^= 1 << rng.Intn(8)

		secret2, valid, err := Decapsulate(sk, ct)
		require.NoError(t, err)
		require.False(t, valid, "trial %d: flipped byte %d accepted", i, pos)
		require.Len(t, secret2, SharedSecretSize)
		if pos < tagSize {
			// Only the tag changed, so the recovered secret is intact.
			require.Equal(t, secret, secret2)
		}
	}
}

func TestCiphertextCanonical(t *testing.T) {
	pk, sk, err := GenerateKey(rand.Reader)
	require.NoError(t, err)
	defer sk.Wipe()
	ct, _, err := Encapsulate(rand.Reader, pk)
	require.NoError(t, err)

	c, canonical := Default.unpackRounded(ct[tagSize:])
	require.True(t, canonical)
	repacked := make([]byte, len(ct)-tagSize)
	Default.packRounded(repacked, c)
	require.Empty(t, cmp.Diff(ct[tagSize:], repacked))
	for i := 0; i <= c.Degree; i++ {
		require.Zero(t, center(c.Coeffs[i], int32(Default.Q))%3)
	}

	// The final word holds one coefficient; its unused slots must be zero.
	ct[len(ct)-2] |= 0x40
	_, canonical = Default.unpackRounded(ct[tagSize:])
	require.False(t, canonical)
}

func TestSampleInvertibleExhausted(t *testing.T) {
	m := Default.ringModulus(3)
	_, _, err := sampleInvertible(m, func() (*poly.Poly, error) {
		return poly.New(Default.P, 3), nil
	})
	require.ErrorIs(t, err, ErrKeyGeneration)
	require.ErrorIs(t, err, poly.ErrNotInvertible)
}

func TestByteAPI(t *testing.T) {
	pub, priv, err := GenerateKeyBytes(rand.Reader)
	require.NoError(t, err)
	require.Len(t, pub, Default.PublicKeySize())
	require.Len(t, priv, Default.PrivateKeySize())

	ct, secret, err := EncapsulateBytes(rand.Reader, pub)
	require.NoError(t, err)
	secret2, valid, err := DecapsulateBytes(priv, ct)
	require.NoError(t, err)
	require.True(t, valid)
	require.Equal(t, secret, secret2)

	// A flipped ciphertext byte is reported through valid while the
	// recovered secret is still returned, matching Decapsulate.
	ct[40] ^= 0x01
	secret2, valid, err = DecapsulateBytes(priv, ct)
	require.NoError(t, err)
	require.False(t, valid)
	require.Len(t, secret2, SharedSecretSize)
	sk, err := ParsePrivateKey(priv)
	require.NoError(t, err)
	secret3, valid, err := Decapsulate(sk, ct)
	require.NoError(t, err)
	require.False(t, valid)
	require.Equal(t, secret3, secret2)

	_, _, err = EncapsulateBytes(rand.Reader, pub[1:])
	require.ErrorIs(t, err, ErrMalformed)
}

func TestEncodePairsKnownAnswer(t *testing.T) {
	c := []int32{1, 2, 0xabc, 0x123, 3000}
	b := make([]byte, pairsSize(len(c)))
	encodePairs(b, c, len(c))
	want := []byte{
		0x01, 0x20, 0x00, // 1 + 2*4096
		0xbc, 0x3a, 0x12, // 0xabc + 0x123*4096
		0xb8, 0x0b, 0x00, // 3000, zero padding
	}
	require.Empty(t, cmp.Diff(want, b))

	p, err := decodePairs(want, len(c), len(c), 3001)
	require.NoError(t, err)
	require.Equal(t, c, p.Coeffs)
}

func TestPublicKeyKnownAnswer(t *testing.T) {
	h := poly.New(Default.P+1, int32(Default.Q))
	h.Coeffs[0] = 1
	h.Coeffs[1] = 2
	h.Coeffs[546] = 3000
	h.UpdateDegree()
	b := (&PublicKey{Params: Default, h: h}).Bytes()
	require.Len(t, b, 834)

	header := []byte{
		0x23, 0x02, 0x00, 0x00, // p = 547
		0xb9, 0x0b, 0x00, 0x00, // q = 3001
		0x3e, 0x00, 0x00, 0x00, // t = 62
	}
	require.Empty(t, cmp.Diff(header, b[:headerSize]))
	require.Empty(t, cmp.Diff([]byte{0x01, 0x20, 0x00}, b[headerSize:headerSize+3]))
	for _, v := range b[headerSize+3 : len(b)-3] {
		require.Zero(t, v)
	}
	// The final pair holds coefficient 546 alone.
	require.Empty(t, cmp.Diff([]byte{0xb8, 0x0b, 0x00}, b[len(b)-3:]))
}

func TestPackSmallKnownAnswer(t *testing.T) {
	r := poly.FromCoeffs(3, 1, -1, 0, 1, -1, 0, 1)
	// c+1 = 2, 0, 1, 2 | 0, 1, 2 from the low bits up.
	require.Empty(t, cmp.Diff([]byte{0x92, 0x24}, packSmall(r, 7)))

	// For p = 547 the final byte carries coefficients 544 to 546.
	r = poly.New(Default.P, 3)
	r.Coeffs[544] = 1
	r.Coeffs[545] = 2
	r.UpdateDegree()
	b := packSmall(r, Default.P)
	require.Len(t, b, 137)
	for _, v := range b[:136] {
		require.Equal(t, byte(0x55), v)
	}
	require.Equal(t, byte(0x12), b[136])

	// r over q encodes identically.
	require.Empty(t, cmp.Diff(b, packSmall(r.Lift(int32(Default.Q)), Default.P)))
}

func TestPackRoundedKnownAnswer(t *testing.T) {
	q := int32(Default.Q)
	c := poly.New(Default.P, q)
	c.Coeffs[1] = 3
	c.Coeffs[2] = q - 3
	c.Coeffs[3] = 1500
	c.Coeffs[4] = q - 1500
	c.Coeffs[546] = 1500
	c.UpdateDegree()

	b := make([]byte, Default.CiphertextSize()-tagSize)
	Default.packRounded(b, c)
	require.Len(t, b, 732)

	// Values are c/3 centered plus (q+5)/6 = 501.
	require.Empty(t, cmp.Diff([]byte{0xf5, 0xd9, 0x47, 0x1f}, b[0:4])) // 501, 502, 500
	require.Empty(t, cmp.Diff([]byte{0xe9, 0x07, 0x50, 0x1f}, b[4:8])) // 1001, 1, 501
	for i := 8; i < len(b)-4; i += 4 {
		require.Empty(t, cmp.Diff([]byte{0xf5, 0xd5, 0x57, 0x1f}, b[i:i+4])) // 501, 501, 501
	}
	// The final word holds coefficient 546 alone.
	require.Empty(t, cmp.Diff([]byte{0xe9, 0x03, 0x00, 0x00}, b[len(b)-4:]))

	c2, canonical := Default.unpackRounded(b)
	require.True(t, canonical)
	require.True(t, poly.Equal(c, c2))
}
