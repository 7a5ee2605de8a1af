// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package poly

// Mod returns a mod m in [0, m) for any sign of a.
func Mod(a, m int32) int32 {
	a %= m
	if a < 0 {
		a += m
	}
	return a
}

func mod64(a, m int64) int64 {
	a %= m
	if a < 0 {
		a += m
	}
	return a
}

// ModExp returns a^n mod p by binary exponentiation.
func ModExp(a, n, p uint64) uint64 {
	x, y := a%p, uint64(1)
	for ; n > 0; n >>= 1 {
		if n&1 != 0 {
			y = y * x % p
		}
		x = x * x % p
	}
	return y
}

// ModInverse returns the inverse of a modulo m using the extended Euclidean
// algorithm (Knuth, TAOCP vol. 2, algorithm X).  The boolean is false when
// gcd(a, m) != 1 and no inverse exists.  m need not be prime.
func ModInverse(a, m int32) (int32, bool) {
	u1, u3 := int64(1), int64(Mod(a, m))
	v1, v3 := int64(0), int64(m)
	odd := true
	for v3 != 0 {
		q := u3 / v3
		u1, v1 = v1, u1+q*v1
		u3, v3 = v3, u3%v3
		odd = !odd
	}
	if u3 != 1 {
		return 0, false
	}
	if !odd {
		return int32(int64(m) - u1), true
	}
	return int32(u1), true
}

// ModInversePrime returns the inverse of a nonzero a modulo the prime p as
// a^(p-2) mod p.
func ModInversePrime(a, p int32) int32 {
	return int32(ModExp(uint64(Mod(a, p)), uint64(p-2), uint64(p)))
}

// IsPrime reports whether n is prime.
func IsPrime(n uint32) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := uint32(3); uint64(d)*uint64(d) <= uint64(n); d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}
