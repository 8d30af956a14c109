package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/bio-nexus/backend/pkg/loader"

	"codeberg.org/readeck/go-readability/v2"
)

const maxPageBytes = 50 << 20

var documentURL = &url.URL{Scheme: "file", Path: "/document.html"}

// Extractor pulls the readable article text out of an HTML document.
type Extractor struct{}

// NewExtractor returns an HTML extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses content with readability and renders the main article as
// plain text.
func (e *Extractor) Extract(ctx context.Context, content []byte) (loader.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return loader.Extraction{}, err
	}
	text, err := render(bytes.NewReader(content), documentURL)
	if err != nil {
		return loader.Extraction{}, err
	}
	return loader.Extraction{Text: text}, nil
}

func render(r io.Reader, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(r, pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	var builder strings.Builder
	if err := article.RenderText(&builder); err != nil {
		return "", fmt.Errorf("failed to render article text: %w", err)
	}
	return strings.TrimSpace(builder.String()), nil
}

// Page is a downloaded web resource ready for ingestion.
type Page struct {
	FileName string
	Content  []byte
}

// Fetcher downloads remote documents for ingestion.
type Fetcher struct {
	Client *http.Client
}

// NewFetcher returns a fetcher with a bounded request timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch downloads rawURL. HTML responses are named after the last path
// segment with an .html extension so the registry routes them to the
// readability extractor; other content keeps its own extension.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Page{}, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Page{}, fmt.Errorf("failed to fetch url: status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, fmt.Errorf("failed to read response: %w", err)
	}

	return Page{
		FileName: pageName(u, resp.Header.Get("Content-Type")),
		Content:  content,
	}, nil
}

func pageName(u *url.URL, contentType string) string {
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		base = u.Hostname()
	}
	if strings.Contains(contentType, "text/html") {
		if ext := loader.Ext(base); ext != "html" && ext != "htm" {
			base += ".html"
		}
	}
	return base
}
