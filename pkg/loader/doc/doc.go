package doc

import (
	"context"
	"fmt"

	"github.com/bio-nexus/backend/pkg/loader"
)

// Extractor reads the main body of a .docx document.
type Extractor struct{}

// NewExtractor returns a docx extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text of word/document.xml. Word documents carry no
// reliable page information so PageCount is left at zero.
func (e *Extractor) Extract(ctx context.Context, content []byte) (loader.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return loader.Extraction{}, err
	}

	zr, err := OpenArchive(content)
	if err != nil {
		return loader.Extraction{}, err
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		text, err := ReadPart(f)
		if err != nil {
			return loader.Extraction{}, err
		}
		return loader.Extraction{Text: text}, nil
	}
	return loader.Extraction{}, fmt.Errorf("document.xml not found in docx")
}
