package subword

import "hash/fnv"

// Words are wrapped in boundary markers before n-gram extraction, so "cat"
// with minn=3 produces "<ca", "cat", "at>" among others.
const (
	boundaryStart = '<'
	boundaryEnd   = '>'
)

// Indexer deterministically maps a word to the hash buckets of its character
// n-grams. It is a pure function of the word and its parameters; it holds no
// state and is safe for concurrent use.
type Indexer struct {
	MinN       int // minimum n-gram length, inclusive
	MaxN       int // maximum n-gram length, inclusive
	BucketsExp uint
}

// NBuckets returns the size of the bucket space, 2^BucketsExp.
func (ix Indexer) NBuckets() int {
	return 1 << ix.BucketsExp
}

// Buckets returns the bucket index of every character n-gram of the word with
// length in [MinN, MaxN], after wrapping the word in boundary markers. Each
// n-gram is hashed with FNV-1a and masked into [0, 2^BucketsExp). The result
// is a multiset: distinct n-grams colliding into one bucket appear once per
// n-gram, and repeated calls for the same word return the same sequence.
func (ix Indexer) Buckets(word string) []int {
	runes := make([]rune, 0, len(word)+2)
	runes = append(runes, boundaryStart)
	runes = append(runes, []rune(word)...)
	runes = append(runes, boundaryEnd)

	mask := uint64(ix.NBuckets() - 1)
	var buckets []int
	for start := 0; start < len(runes); start++ {
		for n := ix.MinN; n <= ix.MaxN && start+n <= len(runes); n++ {
			h := fnv.New64a()
			h.Write([]byte(string(runes[start : start+n])))
			buckets = append(buckets, int(h.Sum64()&mask))
		}
	}
	return buckets
}
