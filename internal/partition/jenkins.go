package partition

import "encoding/binary"

// jenkinsGolden is the initial value of the a and b lanes.
const jenkinsGolden uint64 = 0xe08c1d668b756f82

// Jenkins64 computes Bob Jenkins' 64-bit hash of data with the given seed.
//
// The layout (24-byte little-endian blocks, length folded into c, first byte
// of c reserved) matches the server's Hash64StringWithSeed and must not change.
func Jenkins64(data []byte, seed uint64) uint64 {
	a, b, c := jenkinsGolden, jenkinsGolden, seed

	n := len(data)
	k := data
	for len(k) >= 24 {
		a += binary.LittleEndian.Uint64(k[0:8])
		b += binary.LittleEndian.Uint64(k[8:16])
		c += binary.LittleEndian.Uint64(k[16:24])
		a, b, c = mix64(a, b, c)
		k = k[24:]
	}

	c += uint64(n)
	for i := len(k) - 1; i >= 0; i-- {
		v := uint64(k[i])
		switch {
		case i >= 16:
			c += v << (8 * uint(i-15))
		case i >= 8:
			b += v << (8 * uint(i-8))
		default:
			a += v << (8 * uint(i))
		}
	}

	_, _, c = mix64(a, b, c)
	return c
}

func mix64(a, b, c uint64) (uint64, uint64, uint64) {
	a -= b
	a -= c
	a ^= c >> 43
	b -= c
	b -= a
	b ^= a << 9
	c -= a
	c -= b
	c ^= b >> 8
	a -= b
	a -= c
	a ^= c >> 38
	b -= c
	b -= a
	b ^= a << 23
	c -= a
	c -= b
	c ^= b >> 5
	a -= b
	a -= c
	a ^= c >> 35
	b -= c
	b -= a
	b ^= a << 49
	c -= a
	c -= b
	c ^= b >> 11
	a -= b
	a -= c
	a ^= c >> 12
	b -= c
	b -= a
	b ^= a << 18
	c -= a
	c -= b
	c ^= b >> 22
	return a, b, c
}
