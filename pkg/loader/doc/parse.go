package doc

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// xmlPartMax caps the uncompressed size of a single OOXML part.
const xmlPartMax = 50 << 20

var reBlankRuns = regexp.MustCompile(`\n{3,}`)

// OpenArchive opens an OOXML container held in memory.
func OpenArchive(content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return zr, nil
}

// ReadPart returns the text runs of one XML part of an OOXML archive.
func ReadPart(f *zip.File) (string, error) {
	if f.UncompressedSize64 > xmlPartMax {
		return "", fmt.Errorf("%s too large: %d bytes", f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	return ReadText(io.LimitReader(rc, xmlPartMax))
}

// ReadText walks WordprocessingML or DrawingML markup and collects the
// contents of text elements. Paragraphs and table rows end in newlines, table
// cells are tab separated and deleted revisions are skipped. Both dialects
// share the local element names used here.
func ReadText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var sb strings.Builder
	var (
		inText   bool
		delDepth int
		inTable  bool
		cellIdx  int
	)

	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if delDepth > 0 && t.Name.Local != "del" {
				continue
			}
			switch t.Name.Local {
			case "del":
				delDepth++
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			case "noBreakHyphen":
				sb.WriteByte('-')
			case "tbl":
				inTable = true
				cellIdx = 0
				newline()
			case "tr":
				cellIdx = 0
			case "tc":
				if inTable {
					if cellIdx > 0 {
						sb.WriteByte('\t')
					}
					cellIdx++
				}
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "del":
				if delDepth > 0 {
					delDepth--
				}
				continue
			}
			if delDepth > 0 {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p", "tr":
				sb.WriteByte('\n')
			case "tbl":
				inTable = false
				sb.WriteByte('\n')
			}

		case xml.CharData:
			if delDepth == 0 && inText {
				sb.Write(t)
			}
		}
	}

	return tidy(sb.String()), nil
}

func tidy(text string) string {
	text = strings.TrimSpace(text)
	return reBlankRuns.ReplaceAllString(text, "\n\n")
}
