package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "pdf"
	FormatDOCX DocumentFormat = "docx"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Document is a raw upload as received from a caller. It is never mutated.
type Document struct {
	Filename string
	Format   DocumentFormat
	Data     []byte
}

// ParseDocumentFormat accepts a bare format name, a file extension or a MIME type.
func ParseDocumentFormat(raw string) (DocumentFormat, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(v, ";"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	v = strings.TrimPrefix(v, ".")

	switch v {
	case "pdf", mimePDF:
		return FormatPDF, nil
	case "docx", mimeDOCX:
		return FormatDOCX, nil
	default:
		return "", WrapError(ErrUnsupportedFormat, "parse document format", fmt.Errorf("%q", raw))
	}
}

func FormatFromFilename(name string) (DocumentFormat, error) {
	return ParseDocumentFormat(filepath.Ext(name))
}

func (f DocumentFormat) Valid() bool {
	return f == FormatPDF || f == FormatDOCX
}
