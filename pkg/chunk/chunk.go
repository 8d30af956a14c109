package chunk

import (
	"unicode"

	"github.com/bio-nexus/backend/pkg/common"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
	MinLength      = 50

	// snapRatio is how far into a window a sentence break must lie to be
	// used as the window end.
	snapRatio = 0.7
)

// Chunker splits normalized text into overlapping windows that prefer to
// end on a sentence or line break.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Out-of-range values fall back to the defaults.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = min(DefaultOverlap, size/2)
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split cuts text into chunks. Sizes and offsets are counted in runes.
// Chunks shorter than MinLength after trimming are dropped without
// consuming an index. Each chunk is tagged with the section containing its
// first character.
func (c *Chunker) Split(text string, sections []common.Section) []common.Chunk {
	rs := []rune(text)
	n := len(rs)

	var out []common.Chunk
	for start := 0; start < n; {
		end := min(start+c.size, n)
		if end < n {
			end = snap(rs, start, end, c.size)
		}

		lo, hi := trimBounds(rs, start, end)
		if hi-lo >= MinLength {
			out = append(out, common.Chunk{
				Content:     string(rs[lo:hi]),
				SectionType: SectionAt(sections, lo),
				Index:       len(out),
				Start:       lo,
				End:         hi,
			})
		}

		if end >= n {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// snap pulls end back to just after the last sentence or line break in the
// window, provided that point lies at least snapRatio into the window.
func snap(rs []rune, start, end, size int) int {
	floor := start + int(float64(size)*snapRatio)
	for i := end - 1; i >= floor && i > start; i-- {
		switch rs[i] {
		case '\n':
			return i + 1
		case ' ':
			if p := rs[i-1]; p == '.' || p == '!' || p == '?' {
				return i + 1
			}
		}
	}
	return end
}

func trimBounds(rs []rune, lo, hi int) (int, int) {
	for lo < hi && unicode.IsSpace(rs[lo]) {
		lo++
	}
	for hi > lo && unicode.IsSpace(rs[hi-1]) {
		hi--
	}
	return lo, hi
}

// SectionAt returns the type of the section that contains rune offset pos,
// or of the closest section starting before it. Offsets before every section
// map to "other".
func SectionAt(sections []common.Section, pos int) common.SectionType {
	typ := common.SectionOther
	for _, s := range sections {
		if s.Start > pos {
			break
		}
		typ = s.Type
	}
	return typ
}
