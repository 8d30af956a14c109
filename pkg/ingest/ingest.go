package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/loader"
	"github.com/bio-nexus/backend/pkg/loader/doc"
	"github.com/bio-nexus/backend/pkg/loader/pdf"
	"github.com/bio-nexus/backend/pkg/loader/pptx"
	"github.com/bio-nexus/backend/pkg/loader/text"
	"github.com/bio-nexus/backend/pkg/loader/web"
	"github.com/bio-nexus/backend/pkg/logger"
)

// DefaultExtensions is the allowed upload set when none is configured.
var DefaultExtensions = []string{"pdf", "txt", "md", "docx", "pptx", "html", "htm"}

// DefaultMaxFileSize is the upload ceiling when none is configured.
const DefaultMaxFileSize = 50 << 20

// NewDefaultRegistry registers the built-in extractors for every supported
// format.
func NewDefaultRegistry() *loader.Registry {
	r := loader.NewRegistry()
	r.Register(pdf.NewExtractor(), "pdf")
	r.Register(doc.NewExtractor(), "docx")
	r.Register(pptx.NewExtractor(), "pptx")
	r.Register(web.NewExtractor(), "html", "htm")
	r.Register(text.NewExtractor(), "txt", "md")
	return r
}

// Input is one raw document submitted for ingestion.
type Input struct {
	FileName string
	Content  []byte
	Source   string
}

// Document is the result of ingesting one file. Paper has no ID yet and its
// FullText holds the normalized text that chunk offsets refer to.
type Document struct {
	Paper    common.Paper
	Sections []common.Section
}

// Ingestor validates raw documents and turns them into papers.
type Ingestor struct {
	registry   *loader.Registry
	sections   SectionExtractor
	extensions []string
	maxSize    int64
}

// NewIngestorParams configures an Ingestor. Zero values select the defaults.
type NewIngestorParams struct {
	Registry          *loader.Registry
	SectionExtractor  SectionExtractor
	AllowedExtensions []string
	MaxFileSize       int64
}

// NewIngestor creates an Ingestor.
func NewIngestor(params NewIngestorParams) *Ingestor {
	if params.Registry == nil {
		params.Registry = NewDefaultRegistry()
	}
	if params.SectionExtractor == nil {
		params.SectionExtractor = RegexSections{}
	}
	if len(params.AllowedExtensions) == 0 {
		params.AllowedExtensions = DefaultExtensions
	}
	if params.MaxFileSize <= 0 {
		params.MaxFileSize = DefaultMaxFileSize
	}

	exts := make([]string, 0, len(params.AllowedExtensions))
	for _, e := range params.AllowedExtensions {
		exts = append(exts, loader.NormalizeExt(e))
	}

	return &Ingestor{
		registry:   params.Registry,
		sections:   params.SectionExtractor,
		extensions: exts,
		maxSize:    params.MaxFileSize,
	}
}

// Validate rejects unsupported, empty and oversized files before any
// processing happens.
func (i *Ingestor) Validate(fileName string, size int64) error {
	ext := loader.Ext(fileName)
	if ext == "" || !slices.Contains(i.extensions, ext) || !i.registry.Supports(ext) {
		return common.NewValidationError("file", fmt.Sprintf("unsupported file type %q", ext))
	}
	if size == 0 {
		return common.NewValidationError("file", "file is empty")
	}
	if size > i.maxSize {
		return common.NewValidationError("file", fmt.Sprintf("file exceeds %d MB", i.maxSize>>20))
	}
	return nil
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Ingest extracts, normalizes and annotates one document.
func (i *Ingestor) Ingest(ctx context.Context, in Input) (Document, error) {
	if err := i.Validate(in.FileName, int64(len(in.Content))); err != nil {
		return Document{}, err
	}

	extraction, err := i.registry.Extract(ctx, in.FileName, in.Content)
	if err != nil {
		return Document{}, &common.ExtractionError{File: in.FileName, Err: err}
	}

	body := Normalize(extraction.Text)
	if body == "" {
		return Document{}, &common.ExtractionError{File: in.FileName, Err: fmt.Errorf("no text extracted")}
	}

	sections := i.sections.Sections(body)
	md := ExtractMetadata(body, sections)
	quality := QualityScore(body, sections)

	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = "upload"
	}

	logger.Debug("[Ingest][Ingest] Extracted document",
		"file", in.FileName, "sections", len(sections), "pages", extraction.PageCount, "quality", quality)

	return Document{
		Paper: common.Paper{
			Title:           md.Title,
			Authors:         md.Authors,
			PublicationYear: md.Year,
			Source:          source,
			Abstract:        md.Abstract,
			Keywords:        md.Keywords,
			FullText:        body,
			File: common.FileMetadata{
				FileName:     util.SanitizeFilename(in.FileName),
				FileSize:     int64(len(in.Content)),
				PageCount:    extraction.PageCount,
				QualityScore: quality,
				ContentHash:  ContentHash(in.Content),
			},
		},
		Sections: sections,
	}, nil
}
