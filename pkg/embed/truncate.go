package embed

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// Truncator shortens text to at most maxTokens tokens.
type Truncator interface {
	Truncate(text string, maxTokens int) string
}

// TokenTruncator counts tokens with a tiktoken encoding. The encoding is
// loaded on first use; when it cannot be loaded the truncator falls back to
// four characters per token.
type TokenTruncator struct {
	Encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenTruncator returns a truncator using cl100k_base.
func NewTokenTruncator() *TokenTruncator {
	return &TokenTruncator{Encoding: defaultEncoding}
}

func (t *TokenTruncator) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	// at most one token per byte
	if len(text) <= maxTokens {
		return text
	}

	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.Encoding)
		if err == nil {
			t.enc = enc
		}
	})
	if t.enc == nil {
		return CharTruncator{}.Truncate(text, maxTokens)
	}

	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.enc.Decode(tokens[:maxTokens])
}

// CharTruncator approximates four characters per token.
type CharTruncator struct{}

func (CharTruncator) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	rs := []rune(text)
	if limit := maxTokens * 4; len(rs) > limit {
		return string(rs[:limit])
	}
	return text
}
