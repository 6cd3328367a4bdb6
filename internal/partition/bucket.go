// Package partition computes the hash partition bucket of a row key.
//
// A hash-sharded table splits the 16-bit space [0, 65535] into tablets. The
// bucket of a row is derived from the canonical encoding of its hash key
// columns, hashed with Jenkins64 under a fixed seed and folded to 16 bits.
// Both steps mirror the server byte for byte.
package partition

// HashSeed is the seed the server uses for partition key hashing.
const HashSeed uint64 = 97

// NumBuckets is the size of the hash partition space.
const NumBuckets = 1 << 16

// Bucket is a position in the 16-bit hash partition space.
type Bucket uint16

// BucketFor folds the Jenkins hash of a canonical key buffer into a bucket.
// An empty buffer is valid and hashes deterministically.
func BucketFor(canonical []byte) Bucket {
	return fold(Jenkins64(canonical, HashSeed))
}

func fold(h uint64) Bucket {
	h1 := h >> 48
	h2 := 3 * ((h >> 32) & 0xffff)
	h3 := 5 * ((h >> 16) & 0xffff)
	h4 := 7 * (h & 0xffff)
	return Bucket((h1 ^ h2 ^ h3 ^ h4) & 0xffff)
}

// Token returns the 64-bit token the server reports from TOKEN() for a bucket:
// the bucket with its sign bit flipped, placed in the upper 16 bits.
func Token(b Bucket) int64 {
	return int64(uint64(b^0x8000) << 48)
}

// BucketFromToken is the inverse of Token.
func BucketFromToken(token int64) Bucket {
	return Bucket(uint64(token)>>48) ^ 0x8000
}
