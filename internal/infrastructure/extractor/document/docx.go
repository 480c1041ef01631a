package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

const (
	docxBodyPart    = "word/document.xml"
	maxDocxBodySize = 64 << 20
)

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "open docx", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return "", domain.WrapError(domain.ErrExtraction, "open docx", errors.New("missing "+docxBodyPart))
	}

	rc, err := body.Open()
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "open docx body", err)
	}
	defer rc.Close()

	text, err := paragraphs(io.LimitReader(rc, maxDocxBodySize))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "parse docx body", err)
	}
	return text, nil
}

// paragraphs walks WordprocessingML and emits one line per w:p.
func paragraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out    strings.Builder
		line   strings.Builder
		inText bool
		lines  []string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("xml token: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteByte('\t')
			case "br", "cr":
				line.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				lines = append(lines, strings.TrimRight(line.String(), " \t"))
				line.Reset()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}

	for i, l := range lines {
		if i > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(l)
	}
	return strings.TrimSpace(out.String()), nil
}
