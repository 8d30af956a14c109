package text

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/bio-nexus/backend/pkg/loader"
)

// maxNULRatio is the share of NUL bytes above which content is treated as binary.
const maxNULRatio = 0.01

// Extractor accepts UTF-8 plain text and markdown.
type Extractor struct{}

// NewExtractor returns a plain text extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns content as text after stripping a byte order mark.
// NUL-heavy content is rejected as binary.
func (e *Extractor) Extract(ctx context.Context, content []byte) (loader.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return loader.Extraction{}, err
	}
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	if IsBinary(content) {
		return loader.Extraction{}, fmt.Errorf("content looks binary")
	}
	return loader.Extraction{Text: string(content)}, nil
}

// IsBinary reports whether more than 1% of the bytes are NUL, or whether
// the sample is mostly invalid UTF-8.
func IsBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	if float64(bytes.Count(content, []byte{0}))/float64(len(content)) > maxNULRatio {
		return true
	}

	sample := content
	if len(sample) > 8192 {
		sample = sample[:8192]
	}
	invalid := 0
	for len(sample) > 0 {
		r, size := utf8.DecodeRune(sample)
		if r == utf8.RuneError && size == 1 {
			invalid++
		}
		sample = sample[size:]
	}
	return invalid*2 > min(len(content), 8192)
}
