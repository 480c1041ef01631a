package document

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

// extractPDF joins the text of non-empty pages with newlines. The pdf package
// panics on some malformed inputs, so panics are reported as extraction errors.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.WrapError(domain.ErrExtraction, "read pdf", fmt.Errorf("malformed document: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "read pdf", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		if content := pageText(page.Content().Text); content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n"), nil
}

// pageText rebuilds lines from positioned glyphs in content-stream order. A
// baseline change of more than half the font size starts a new line; a
// horizontal gap wider than a fifth of the font size becomes a space.
func pageText(glyphs []pdf.Text) string {
	var (
		lines   []string
		line    strings.Builder
		started bool
		lineY   float64
		prev    pdf.Text
	)
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	for _, g := range glyphs {
		if g.S == "" || strings.ContainsAny(g.S, "\r\n") {
			continue
		}
		tolerance := math.Max(1, g.FontSize/2)
		switch {
		case !started:
			started = true
			lineY = g.Y
		case math.Abs(g.Y-lineY) > tolerance:
			flush()
			lineY = g.Y
		case prev.W > 0 && g.X-(prev.X+prev.W) > g.FontSize/5 &&
			g.S != " " && !strings.HasSuffix(line.String(), " "):
			line.WriteByte(' ')
		}
		line.WriteString(g.S)
		prev = g
	}
	flush()
	return strings.Join(lines, "\n")
}
