package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bio-nexus/backend/pkg/loader"
)

const parseTimeout = 30 * time.Second

// Extractor shells out to poppler's pdftotext.
type Extractor struct {
	Binary  string
	Timeout time.Duration
}

// NewExtractor returns an extractor using pdftotext from PATH.
func NewExtractor() *Extractor {
	return &Extractor{Binary: "pdftotext", Timeout: parseTimeout}
}

// Extract converts the PDF to UTF-8 text. Pages are counted from the form
// feeds pdftotext emits between pages.
func (e *Extractor) Extract(ctx context.Context, content []byte) (loader.Extraction, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(content, " \t\r\n"), []byte("%PDF")) {
		return loader.Extraction{}, fmt.Errorf("not a pdf document")
	}

	bin, err := exec.LookPath(e.Binary)
	if err != nil {
		return loader.Extraction{}, fmt.Errorf("%s not found in PATH: %w", e.Binary, err)
	}

	tmpDir, err := os.MkdirTemp("", "pdfextract-")
	if err != nil {
		return loader.Extraction{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, content, 0o600); err != nil {
		return loader.Extraction{}, fmt.Errorf("failed to write temp PDF: %w", err)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = parseTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(
		cctx,
		bin,
		"-enc", "UTF-8",
		"-eol", "unix",
		"-q",
		pdfPath,
		"-",
	)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if cctx.Err() == context.DeadlineExceeded {
		return loader.Extraction{}, fmt.Errorf("pdftotext timed out")
	}
	if err != nil {
		return loader.Extraction{}, fmt.Errorf("pdftotext failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	return splitPages(string(out)), nil
}

func splitPages(raw string) loader.Extraction {
	pages := strings.Split(raw, "\f")
	// pdftotext terminates the last page with a form feed as well
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return loader.Extraction{
		Text:      strings.Join(pages, "\n\n"),
		PageCount: len(pages),
	}
}
