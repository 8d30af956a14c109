package pptx

import (
	"archive/zip"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/bio-nexus/backend/pkg/loader"
	"github.com/bio-nexus/backend/pkg/loader/doc"
)

var reSlide = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Extractor reads slide text from .pptx presentations.
type Extractor struct{}

// NewExtractor returns a pptx extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

type slidePart struct {
	num  int
	file *zip.File
}

// Extract returns the text of every slide in slide order, one blank line
// between slides. PageCount is the number of slides.
func (e *Extractor) Extract(ctx context.Context, content []byte) (loader.Extraction, error) {
	zr, err := doc.OpenArchive(content)
	if err != nil {
		return loader.Extraction{}, err
	}

	var slides []slidePart
	for _, f := range zr.File {
		m := reSlide.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slidePart{num: n, file: f})
	}
	if len(slides) == 0 {
		return loader.Extraction{}, fmt.Errorf("no slides found in pptx")
	}
	slices.SortFunc(slides, func(a, b slidePart) int { return a.num - b.num })

	texts := make([]string, 0, len(slides))
	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return loader.Extraction{}, err
		}
		text, err := doc.ReadPart(s.file)
		if err != nil {
			return loader.Extraction{}, err
		}
		if text != "" {
			texts = append(texts, text)
		}
	}

	return loader.Extraction{
		Text:      strings.Join(texts, "\n\n"),
		PageCount: len(slides),
	}, nil
}
