// Package tokenizer counts and splits prompt text into model tokens.
//
// Two implementations are provided: Approx, a dependency-free estimate of
// about four bytes per token, and Tiktoken, which uses a real BPE encoding.
// Tokenizers hold no package-level state; each instance owns its vocabulary.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	Tokenize(text string) []int
	Detokenize(tokens []int) string
	TokenLength(text string) int
}

// Names accepted by New.
const (
	NameApprox = "approx"
	NameCL100K = "cl100k_base"
	NameO200K  = "o200k_base"
)

// bytesPerToken is the chunk size of the approximate tokenizer.
const bytesPerToken = 4

// DefaultVocabularyLimit caps the vocabulary of NewApprox.
const DefaultVocabularyLimit = 1 << 16

// Unknown is the id Approx gives chunks it has no room to remember.
const Unknown = -1

// New returns the tokenizer with the given name. An empty name selects
// the approximate tokenizer; any other name is a tiktoken encoding.
func New(name string) (Tokenizer, error) {
	switch name {
	case "", NameApprox:
		return NewApprox(), nil
	default:
		tk, err := NewTiktoken(name)
		if err != nil {
			return nil, fmt.Errorf("tokenizer %q: %w", name, err)
		}
		return tk, nil
	}
}

// Approx splits text into chunks of at most four bytes, never splitting a
// rune. Chunks get ids from a bounded vocabulary owned by the instance.
// While the vocabulary has room Detokenize(Tokenize(s)) == s; once it is
// full, unseen chunks get the Unknown id and are dropped by Detokenize.
// Token counts are unaffected by the bound.
type Approx struct {
	mu    sync.Mutex
	limit int
	ids   map[string]int
	vocab []string
}

// NewApprox creates an approximate tokenizer with an empty vocabulary of
// at most DefaultVocabularyLimit chunks.
func NewApprox() *Approx {
	return NewApproxLimit(DefaultVocabularyLimit)
}

// NewApproxLimit creates an approximate tokenizer that remembers at most
// limit chunks. A limit below one selects DefaultVocabularyLimit.
func NewApproxLimit(limit int) *Approx {
	if limit < 1 {
		limit = DefaultVocabularyLimit
	}
	return &Approx{limit: limit, ids: make(map[string]int)}
}

// Tokenize implements Tokenizer.
func (a *Approx) Tokenize(text string) []int {
	chunks := split(text)
	if len(chunks) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tokens := make([]int, len(chunks))
	for i, c := range chunks {
		id, ok := a.ids[c]
		if !ok && len(a.vocab) >= a.limit {
			id = Unknown
		} else if !ok {
			id = len(a.vocab)
			a.ids[c] = id
			a.vocab = append(a.vocab, c)
		}
		tokens[i] = id
	}
	return tokens
}

// Detokenize implements Tokenizer. Unknown ids are skipped.
func (a *Approx) Detokenize(tokens []int) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var b strings.Builder
	for _, id := range tokens {
		if id >= 0 && id < len(a.vocab) {
			b.WriteString(a.vocab[id])
		}
	}
	return b.String()
}

// TokenLength implements Tokenizer without growing the vocabulary.
func (a *Approx) TokenLength(text string) int {
	return len(split(text))
}

// VocabularySize returns the number of distinct chunks seen so far.
func (a *Approx) VocabularySize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.vocab)
}

// split cuts text into chunks of at most bytesPerToken bytes on rune
// boundaries. A rune longer than the limit gets a chunk of its own.
func split(text string) []string {
	var chunks []string
	for len(text) > 0 {
		end := 0
		for end < len(text) {
			_, size := utf8.DecodeRuneInString(text[end:])
			if end > 0 && end+size > bytesPerToken {
				break
			}
			end += size
		}
		chunks = append(chunks, text[:end])
		text = text[end:]
	}
	return chunks
}
