package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken wraps a BPE encoding from github.com/pkoukk/tiktoken-go.
type Tiktoken struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding, such as "cl100k_base".
// The encoding's ranks are downloaded and cached on first use unless
// TIKTOKEN_CACHE_DIR points to a prepared cache.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &Tiktoken{name: encoding, enc: enc}, nil
}

// Name returns the encoding name.
func (t *Tiktoken) Name() string {
	return t.name
}

// Tokenize implements Tokenizer. Special tokens are encoded as text.
func (t *Tiktoken) Tokenize(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Detokenize implements Tokenizer.
func (t *Tiktoken) Detokenize(tokens []int) string {
	return t.enc.Decode(tokens)
}

// TokenLength implements Tokenizer.
func (t *Tiktoken) TokenLength(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
