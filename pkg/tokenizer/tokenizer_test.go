package tokenizer

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestApproxSplit(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"short", "abc", []string{"abc"}},
		{"exact", "abcd", []string{"abcd"}},
		{"long", "abcdefghij", []string{"abcd", "efgh", "ij"}},
		{"multibyte", "héllo", []string{"hél", "lo"}},
		{"wide runes", "日本語", []string{"日", "本", "語"}},
		{"emoji", "a😀b", []string{"a", "😀", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, split(tt.text)); diff != "" {
				t.Errorf("split(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestApproxRoundTrip(t *testing.T) {
	tk := NewApprox()
	for _, s := range []string{"", "hello world", "héllo 日本語 😀", "repeat repeat repeat"} {
		if got := tk.Detokenize(tk.Tokenize(s)); got != s {
			t.Errorf("Detokenize(Tokenize(%q)) = %q", s, got)
		}
	}
}

func TestApproxTokenLength(t *testing.T) {
	tk := NewApprox()
	if got := tk.TokenLength("abcdefghij"); got != 3 {
		t.Errorf("TokenLength() = %d, want 3", got)
	}
	if tk.VocabularySize() != 0 {
		t.Errorf("TokenLength grew the vocabulary to %d", tk.VocabularySize())
	}
}

func TestApproxVocabularyPerInstance(t *testing.T) {
	a, b := NewApprox(), NewApprox()
	a.Tokenize("zzzz")
	first := a.Tokenize("abcd")
	second := b.Tokenize("abcd")

	if cmp.Equal(first, second) {
		t.Errorf("instances share ids: %v and %v", first, second)
	}
	if got := b.Detokenize(first); got == "abcd" {
		t.Error("vocabulary leaked between instances")
	}
	if got := a.Tokenize("abcd"); !cmp.Equal(got, first) {
		t.Errorf("repeated Tokenize() = %v, want %v", got, first)
	}
}

func TestApproxVocabularyLimit(t *testing.T) {
	tk := NewApproxLimit(2)
	if got := tk.Detokenize(tk.Tokenize("aaaabbbb")); got != "aaaabbbb" {
		t.Errorf("round trip within limit = %q", got)
	}

	ids := tk.Tokenize("aaaaccccbbbb")
	if diff := cmp.Diff([]int{0, Unknown, 1}, ids); diff != "" {
		t.Errorf("Tokenize() past limit mismatch (-want +got):\n%s", diff)
	}
	if got := tk.Detokenize(ids); got != "aaaabbbb" {
		t.Errorf("Detokenize() = %q, want unknown chunk dropped", got)
	}
	if got := tk.TokenLength("aaaaccccbbbb"); got != 3 {
		t.Errorf("TokenLength() = %d, want 3", got)
	}
	if tk.VocabularySize() != 2 {
		t.Errorf("VocabularySize() = %d, want 2", tk.VocabularySize())
	}
}

func TestApproxDefaultLimit(t *testing.T) {
	for _, limit := range []int{0, -5} {
		if got := NewApproxLimit(limit).limit; got != DefaultVocabularyLimit {
			t.Errorf("NewApproxLimit(%d).limit = %d, want %d", limit, got, DefaultVocabularyLimit)
		}
	}
}

func TestApproxConcurrent(t *testing.T) {
	tk := NewApprox()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tk.Tokenize("the quick brown fox")
			}
		}()
	}
	wg.Wait()
	if got := tk.Detokenize(tk.Tokenize("the quick brown fox")); got != "the quick brown fox" {
		t.Errorf("round trip after concurrent use = %q", got)
	}
}

func TestApproxDetokenizeSkipsUnknown(t *testing.T) {
	tk := NewApprox()
	ids := tk.Tokenize("abcd")
	if got := tk.Detokenize(append([]int{-1, 99}, ids...)); got != "abcd" {
		t.Errorf("Detokenize() = %q, want abcd", got)
	}
}

func TestNewDefaultsToApprox(t *testing.T) {
	for _, name := range []string{"", NameApprox} {
		tk, err := New(name)
		if err != nil {
			t.Fatalf("New(%q) error = %v", name, err)
		}
		if _, ok := tk.(*Approx); !ok {
			t.Errorf("New(%q) = %T, want *Approx", name, tk)
		}
	}
}

func TestNewUnknownEncoding(t *testing.T) {
	if _, err := New("no_such_encoding"); err == nil {
		t.Error("New(no_such_encoding) error = nil, want error")
	}
}
