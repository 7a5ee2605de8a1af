// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package poly

func mustShareModulus(a, b *Poly) {
	if a.Mod != b.Mod {
		panic("poly: operands have different moduli")
	}
}

// leadInverse returns the inverse of the leading coefficient of m.
func leadInverse(m *Poly) int64 {
	if m.Degree < 0 {
		panic("poly: division by the zero polynomial")
	}
	u, ok := ModInverse(m.Coeffs[m.Degree], m.Mod)
	if !ok {
		panic("poly: leading coefficient is not a unit; modulus must be prime")
	}
	return int64(u)
}

// Mul returns the product a*b.  The product has capacity
// a.Size()+b.Size() and the modulus of its operands.
func Mul(a, b *Poly) *Poly {
	mustShareModulus(a, b)
	c := New(a.Size()+b.Size(), a.Mod)
	m := int64(a.Mod)
	for i := 0; i <= a.Degree; i++ {
		ai := int64(a.Coeffs[i])
		if ai == 0 {
			continue
		}
		for j := 0; j <= b.Degree; j++ {
			bj := int64(b.Coeffs[j])
			if bj == 0 {
				continue
			}
			c.Coeffs[i+j] = int32((int64(c.Coeffs[i+j]) + ai*bj) % m)
		}
	}
	c.UpdateDegree()
	return c
}

// Div performs long division of a by b, returning the quotient q and
// remainder r with a = q*b + r and deg(r) < deg(b).
//
// The leading coefficient of b must be invertible, which always holds for a
// nonzero b over a prime modulus.
func Div(a, b *Poly) (q, r *Poly) {
	mustShareModulus(a, b)
	u := leadInverse(b)
	m := int64(a.Mod)

	r = a.Clone()
	q = New(max(a.Size(), b.Size()), a.Mod)
	for r.Degree >= b.Degree {
		off := r.Degree - b.Degree
		v := u * int64(r.Coeffs[r.Degree]) % m
		for i := 0; i < b.Degree; i++ {
			if b.Coeffs[i] != 0 {
				r.Coeffs[off+i] = int32(mod64(int64(r.Coeffs[off+i])-v*int64(b.Coeffs[i]), m))
			}
		}
		r.Coeffs[r.Degree] = 0
		r.trimDegree()
		q.Coeffs[off] = int32((int64(q.Coeffs[off]) + v) % m)
	}
	q.UpdateDegree()
	return q, r
}

// Reduce replaces a with a mod m, leaving deg(a) < deg(m).  When the
// capacity of a exceeds that of m it is shrunk to m.Size() after the unused
// coefficients are wiped.
func (a *Poly) Reduce(m *Poly) {
	mustShareModulus(a, m)
	u := leadInverse(m)
	mod := int64(a.Mod)
	for a.Degree >= m.Degree {
		off := a.Degree - m.Degree
		v := u * int64(a.Coeffs[a.Degree]) % mod
		for i := 0; i < m.Degree; i++ {
			if m.Coeffs[i] != 0 {
				a.Coeffs[off+i] = int32(mod64(int64(a.Coeffs[off+i])-v*int64(m.Coeffs[i]), mod))
			}
		}
		a.Coeffs[a.Degree] = 0
		a.trimDegree()
	}
	if a.Size() > m.Size() {
		a.Coeffs = a.Coeffs[:m.Size()]
	}
}

// GCD returns a greatest common divisor of a and b.  The result is not made
// monic.
func GCD(a, b *Poly) *Poly {
	mustShareModulus(a, b)
	s, t := a.Clone(), b.Clone()
	for t.Degree >= 0 {
		g := s.Clone()
		g.Reduce(t)
		s.Zero()
		s, t = t, g
	}
	t.Zero()
	return s
}

// subMul returns x - q*y with at least the capacity of x.
func subMul(x, q, y *Poly) *Poly {
	d := Mul(q, y)
	defer d.Zero()
	c := New(max(x.Size(), d.Degree+1), x.Mod)
	copy(c.Coeffs, x.Coeffs)
	m := x.Mod
	for i := 0; i <= d.Degree; i++ {
		if d.Coeffs[i] != 0 {
			c.Coeffs[i] = Mod(c.Coeffs[i]-d.Coeffs[i], m)
		}
	}
	c.UpdateDegree()
	return c
}

// ExtendedGCD runs the extended Euclidean algorithm on a and b, returning g,
// s, and t with a*s + b*t = g, where g is a greatest common divisor of a and
// b.  All results have capacity at least max(a.Size(), b.Size()).
func ExtendedGCD(a, b *Poly) (g, s, t *Poly) {
	mustShareModulus(a, b)
	size := max(a.Size(), b.Size(), 1)
	mod := a.Mod

	x0, x1 := New(size, mod), New(size, mod)
	y0, y1 := New(size, mod), New(size, mod)
	x0.Coeffs[0], x0.Degree = 1, 0
	y1.Coeffs[0], y1.Degree = 1, 0

	// f and g get capacity size rather than the capacities of a and b.
	f := New(size, mod)
	f.Set(a)
	g = New(size, mod)
	g.Set(b)

	for !g.IsZero() {
		q, r := Div(f, g)

		x2 := subMul(x0, q, x1)
		x0.Zero()
		x0, x1 = x1, x2

		y2 := subMul(y0, q, y1)
		y0.Zero()
		y0, y1 = y1, y2

		q.Zero()
		f.Zero()
		f, g = g, r
	}
	g.Zero()
	x1.Zero()
	y1.Zero()

	return f, x0, y0
}

// Inverse returns the inverse of a modulo the polynomial m, i.e. the b with
// a*b = 1 mod m.  It returns ErrNotInvertible when a and m are not coprime;
// callers usually recover by sampling another a.
func Inverse(a, m *Poly) (*Poly, error) {
	g, s, t := ExtendedGCD(a, m)
	defer g.Zero()
	t.Zero()

	if g.Degree != 0 || g.Coeffs[0] == 0 {
		s.Zero()
		return nil, ErrNotInvertible
	}
	if g.Coeffs[0] != 1 {
		// Rescale so that a*s = 1 rather than the constant g.
		b := int64(ModInversePrime(g.Coeffs[0], g.Mod))
		mod := int64(g.Mod)
		for i := 0; i <= s.Degree; i++ {
			s.Coeffs[i] = int32(int64(s.Coeffs[i]) * b % mod)
		}
	}
	return s, nil
}
