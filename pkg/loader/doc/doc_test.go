package doc

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"
)

func buildArchive(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close archive: %v", err)
	}
	return buf.Bytes()
}

const documentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Bone Loss in Microgravity</w:t></w:r></w:p>
<w:p><w:r><w:t>Abstract</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Astronauts lose </w:t></w:r><w:del><w:r><w:t>deleted</w:t></w:r></w:del><w:r><w:t>bone mass.</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>a</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>b</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
</w:body></w:document>`

func TestExtract(t *testing.T) {
	content := buildArchive(t, map[string]string{"word/document.xml": documentXML})

	got, err := NewExtractor().Extract(context.Background(), content)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !strings.HasPrefix(got.Text, "Bone Loss in Microgravity\nAbstract\n") {
		t.Fatalf("expected paragraphs on separate lines, got %q", got.Text)
	}
	if !strings.Contains(got.Text, "Astronauts lose bone mass.") {
		t.Fatalf("expected joined runs without deleted text, got %q", got.Text)
	}
	if strings.Contains(got.Text, "deleted") {
		t.Fatalf("expected deleted revision to be skipped, got %q", got.Text)
	}
}

func TestExtract_Corrupt(t *testing.T) {
	if _, err := NewExtractor().Extract(context.Background(), []byte("not a zip")); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
	empty := buildArchive(t, map[string]string{"other.xml": "<x/>"})
	if _, err := NewExtractor().Extract(context.Background(), empty); err == nil {
		t.Fatal("expected error when document.xml is missing")
	}
}
