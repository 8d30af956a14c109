package pptx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"
)

func slideXML(text string) string {
	return `<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">` +
		`<p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func TestExtract_SlideOrder(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range []struct{ name, body string }{
		{"ppt/slides/slide10.xml", slideXML("ten")},
		{"ppt/slides/slide2.xml", slideXML("two")},
		{"ppt/slides/slide1.xml", slideXML("one")},
		{"ppt/presentation.xml", "<p:presentation/>"},
	} {
		w, _ := zw.Create(p.name)
		_, _ = w.Write([]byte(p.body))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close archive: %v", err)
	}

	got, err := NewExtractor().Extract(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.Text != "one\n\ntwo\n\nten" {
		t.Fatalf("expected slides in numeric order, got %q", got.Text)
	}
	if got.PageCount != 3 {
		t.Fatalf("expected 3 slides, got %d", got.PageCount)
	}
}
