package document

import (
	"context"
	"fmt"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

// Extractor turns PDF and DOCX resumes into plain text in reading order.
// A document without any text layer yields an empty string, not an error.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, doc domain.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch doc.Format {
	case domain.FormatPDF:
		return extractPDF(doc.Data)
	case domain.FormatDOCX:
		return extractDOCX(doc.Data)
	default:
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "extract text", fmt.Errorf("format %q of %s", doc.Format, doc.Filename))
	}
}
