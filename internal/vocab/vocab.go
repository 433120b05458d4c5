package vocab

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/danieldk/finalfrontier/internal/corpus"
	"github.com/danieldk/finalfrontier/internal/subword"
)

// ErrEmpty reports that no token survived the frequency cutoff.
var ErrEmpty = errors.New("vocab: no tokens survive mincount")

// Word is one vocabulary entry. Discard is the probability that an occurrence
// of the word is skipped during training (frequent-word subsampling).
type Word struct {
	Token   string
	Count   int
	Discard float64

	// rows lists the input-matrix rows composing the word's training vector:
	// the word's own row followed by its subword bucket rows. Set by
	// AttachSubwords.
	rows []int
}

// Vocab is an immutable frequency-filtered vocabulary, ordered by descending
// count. Indices are dense and stable once built.
type Vocab struct {
	words       []Word
	index       map[string]int
	totalTokens int
}

// Builder counts token occurrences in a single corpus pass.
type Builder struct {
	counts map[string]int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{counts: make(map[string]int)}
}

// Count adds one occurrence of token.
func (b *Builder) Count(token string) {
	b.counts[token]++
}

// CountCorpus counts every token in the corpus.
func (b *Builder) CountCorpus(c corpus.Corpus) {
	for _, sent := range c {
		for _, tok := range sent {
			b.Count(tok)
		}
	}
}

// Build filters tokens with count < minCount, orders the survivors by
// descending count (ties broken lexically so builds are deterministic), and
// computes each word's discard probability from discardThreshold.
func (b *Builder) Build(minCount int, discardThreshold float64) (*Vocab, error) {
	words := make([]Word, 0, len(b.counts))
	for tok, n := range b.counts {
		if n >= minCount {
			words = append(words, Word{Token: tok, Count: n})
		}
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w (mincount %d)", ErrEmpty, minCount)
	}

	slices.SortFunc(words, func(a, b Word) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Token, b.Token)
	})

	var total int
	for _, w := range words {
		total += w.Count
	}

	index := make(map[string]int, len(words))
	for i := range words {
		words[i].Discard = discardProbability(words[i].Count, total, discardThreshold)
		words[i].rows = []int{i}
		index[words[i].Token] = i
	}

	return &Vocab{words: words, index: index, totalTokens: total}, nil
}

// discardProbability implements the word2vec subsampling formula: with f the
// word's relative frequency and t the threshold, the word is kept with
// probability sqrt(t/f) + t/f, clipped to 1. Higher-frequency words get
// higher discard probability; words with f <= t are never discarded.
func discardProbability(count, total int, threshold float64) float64 {
	f := float64(count) / float64(total)
	keep := math.Sqrt(threshold/f) + threshold/f
	if keep > 1 {
		keep = 1
	}
	return 1 - keep
}

// AttachSubwords precomputes, for every word, the input-matrix rows that
// compose its training vector: the word's own row plus one row per hashed
// n-gram, offset past the vocabulary rows. A nil indexer leaves each word
// with only its own row.
func (v *Vocab) AttachSubwords(ix *subword.Indexer) {
	if ix == nil {
		return
	}
	offset := len(v.words)
	for i := range v.words {
		buckets := ix.Buckets(v.words[i].Token)
		rows := make([]int, 0, len(buckets)+1)
		rows = append(rows, i)
		for _, b := range buckets {
			rows = append(rows, offset+b)
		}
		v.words[i].rows = rows
	}
}

// Len returns the number of vocabulary words.
func (v *Vocab) Len() int {
	return len(v.words)
}

// TotalTokens returns the summed count of all vocabulary words, i.e. the
// number of in-vocabulary tokens in the corpus.
func (v *Vocab) TotalTokens() int {
	return v.totalTokens
}

// Word returns the entry at index i.
func (v *Vocab) Word(i int) Word {
	return v.words[i]
}

// Rows returns the input-matrix rows composing word i's training vector. The
// returned slice must not be modified.
func (v *Vocab) Rows(i int) []int {
	return v.words[i].rows
}

// Idx returns the index of token, if present.
func (v *Vocab) Idx(token string) (int, bool) {
	i, ok := v.index[token]
	return i, ok
}

// Tokens returns all tokens in index order.
func (v *Vocab) Tokens() []string {
	toks := make([]string, len(v.words))
	for i, w := range v.words {
		toks[i] = w.Token
	}
	return toks
}

// IDs maps a sentence to vocabulary indices, dropping out-of-vocabulary
// tokens.
func (v *Vocab) IDs(sent []string) []int {
	ids := make([]int, 0, len(sent))
	for _, tok := range sent {
		if i, ok := v.index[tok]; ok {
			ids = append(ids, i)
		}
	}
	return ids
}
