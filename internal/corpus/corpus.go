package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmpty reports a corpus with no sentences.
var ErrEmpty = errors.New("corpus contains no sentences")

// Corpus is an ordered sequence of sentences, each an ordered sequence of
// tokens. Sentence boundaries are hard walls for context windows.
type Corpus [][]string

// maxLineBytes bounds a single sentence line; corpora routinely exceed
// bufio.Scanner's 64KB default.
const maxLineBytes = 16 * 1024 * 1024

// ReadFile reads a tokenized corpus: tokens space-separated, sentences
// newline-separated. Tokens are NFC-normalized so that byte-level subword
// hashing sees a canonical form. Blank lines are skipped.
func ReadFile(path string) (Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: open %s: %w", path, err)
	}
	defer f.Close()

	var c Corpus
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		sent := make([]string, len(fields))
		for i, tok := range fields {
			sent[i] = norm.NFC.String(tok)
		}
		c = append(c, sent)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("corpus: read %s: %w", path, err)
	}
	if len(c) == 0 {
		return nil, fmt.Errorf("corpus: %s: %w", path, ErrEmpty)
	}
	return c, nil
}

// Tokens returns the total token count.
func (c Corpus) Tokens() int {
	var n int
	for _, sent := range c {
		n += len(sent)
	}
	return n
}

// Shards partitions the sentences into n disjoint contiguous shards that
// together cover the whole corpus. Shard sizes differ by at most one
// sentence. Fewer sentences than shards yields some empty shards.
func (c Corpus) Shards(n int) []Corpus {
	shards := make([]Corpus, n)
	base := len(c) / n
	rem := len(c) % n
	start := 0
	for i := range shards {
		size := base
		if i < rem {
			size++
		}
		shards[i] = c[start : start+size]
		start += size
	}
	return shards
}
