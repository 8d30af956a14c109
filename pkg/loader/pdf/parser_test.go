package pdf

import (
	"context"
	"strings"
	"testing"
)

func TestSplitPages(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		pages int
	}{
		{"single page", "hello world\n", 1},
		{"trailing feed", "one\fTwo\f", 2},
		{"three pages", "a\fb\fc", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitPages(tt.raw)
			if got.PageCount != tt.pages {
				t.Fatalf("expected %d pages, got %d", tt.pages, got.PageCount)
			}
			if strings.Contains(got.Text, "\f") {
				t.Fatalf("expected no form feeds in text, got %q", got.Text)
			}
		})
	}
}

func TestExtract_RejectsNonPDF(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), []byte("plain text"))
	if err == nil {
		t.Fatal("expected error for non-pdf content")
	}
}
