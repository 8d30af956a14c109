package chunk

import (
	"strings"
	"testing"

	"github.com/bio-nexus/backend/pkg/common"
)

func overlap(a, b common.Chunk) int {
	if b.Start >= a.End {
		return 0
	}
	return a.End - b.Start
}

func sentenceText(n int) string {
	var sb strings.Builder
	for i := range n {
		if i%7 == 6 {
			sb.WriteString("Microgravity alters bone remodeling in astronauts.\n")
			continue
		}
		sb.WriteString("Radiation exposure increases with mission duration. ")
	}
	return sb.String()
}

func TestSplit_Bounds(t *testing.T) {
	text := sentenceText(120)
	c := New(DefaultSize, DefaultOverlap)
	chunks := c.Split(text, nil)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	rs := []rune(text)
	for i, ch := range chunks {
		if ch.Index != i {
			t.Fatalf("expected contiguous index %d, got %d", i, ch.Index)
		}
		l := len([]rune(ch.Content))
		if l < MinLength || l > DefaultSize {
			t.Fatalf("chunk %d has length %d outside [%d,%d]", i, l, MinLength, DefaultSize)
		}
		if string(rs[ch.Start:ch.End]) != ch.Content {
			t.Fatalf("chunk %d offsets do not match content", i)
		}
		if i > 0 {
			if o := overlap(chunks[i-1], ch); o > DefaultOverlap {
				t.Fatalf("chunk %d overlaps previous by %d", i, o)
			}
			if ch.Start <= chunks[i-1].Start {
				t.Fatalf("chunk %d does not advance", i)
			}
		}
	}
	if last := chunks[len(chunks)-1]; last.End != len([]rune(strings.TrimSpace(text))) {
		t.Fatalf("expected last chunk to reach the end of the text, got %d", last.End)
	}
}

func TestSplit_SnapsToSentence(t *testing.T) {
	text := sentenceText(40)
	chunks := New(DefaultSize, DefaultOverlap).Split(text, nil)
	for _, ch := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(ch.Content, ".") {
			t.Fatalf("expected chunk to end on a sentence, got %q", ch.Content[len(ch.Content)-20:])
		}
	}
}

func TestSplit_HardBoundaryWithoutBreaks(t *testing.T) {
	text := strings.Repeat("a", 2500)
	chunks := New(1000, 200).Split(text, nil)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].End != 1000 || chunks[1].Start != 800 || chunks[2].Start != 1600 {
		t.Fatalf("unexpected boundaries %+v", []int{chunks[0].End, chunks[1].Start, chunks[2].Start})
	}
}

func TestSplit_DropsShortChunks(t *testing.T) {
	if got := New(DefaultSize, DefaultOverlap).Split("too short", nil); len(got) != 0 {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
	if got := New(DefaultSize, DefaultOverlap).Split("", nil); len(got) != 0 {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
}

func TestSplit_MultibyteOffsets(t *testing.T) {
	text := strings.Repeat("Knochenabbau während Schwerelosigkeit ist messbar. ", 40)
	rs := []rune(text)
	for _, ch := range New(300, 50).Split(text, nil) {
		if string(rs[ch.Start:ch.End]) != ch.Content {
			t.Fatalf("expected rune offsets, got mismatch at chunk %d", ch.Index)
		}
	}
}

func TestSectionAt(t *testing.T) {
	sections := []common.Section{
		{Type: common.SectionAbstract, Start: 10, End: 100},
		{Type: common.SectionMethods, Start: 110, End: 300},
	}
	tests := []struct {
		pos  int
		want common.SectionType
	}{
		{0, common.SectionOther},
		{10, common.SectionAbstract},
		{105, common.SectionAbstract},
		{110, common.SectionMethods},
		{5000, common.SectionMethods},
	}
	for _, tt := range tests {
		if got := SectionAt(sections, tt.pos); got != tt.want {
			t.Fatalf("expected %s at %d, got %s", tt.want, tt.pos, got)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(0, -1)
	if c.size != DefaultSize || c.overlap != DefaultOverlap {
		t.Fatalf("expected defaults, got %d/%d", c.size, c.overlap)
	}
	c = New(100, 150)
	if c.overlap != 50 {
		t.Fatalf("expected overlap clamped to 50, got %d", c.overlap)
	}
}
