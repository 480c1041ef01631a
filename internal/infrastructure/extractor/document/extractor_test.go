package document

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/parser/heuristic"
)

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body +
		`</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDOCXParagraphsInOrder(t *testing.T) {
	data := buildDOCX(t,
		`<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Skills:</w:t><w:tab/><w:t xml:space="preserve">Go, </w:t></w:r><w:r><w:t>PostgreSQL</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Line one</w:t><w:br/><w:t>Line two</w:t></w:r></w:p>`,
	)

	text, err := NewExtractor().Extract(context.Background(), domain.Document{Format: domain.FormatDOCX, Data: data})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	want := "Jane Doe\nSkills:\tGo, PostgreSQL\nLine one\nLine two"
	if text != want {
		t.Fatalf("unexpected text:\n%q\nwant\n%q", text, want)
	}
}

func TestExtractDOCXWithoutTextIsEmpty(t *testing.T) {
	data := buildDOCX(t, `<w:p><w:r><w:drawing/></w:r></w:p>`)
	text, err := NewExtractor().Extract(context.Background(), domain.Document{Format: domain.FormatDOCX, Data: data})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

// buildPDF writes a minimal single-font PDF with one content stream per page.
// Each line is placed 16pt below the previous one with Td, as text-only
// generators emit it.
func buildPDF(t *testing.T, pages ...[]string) []byte {
	t.Helper()
	var objects []string
	kids := make([]string, 0, len(pages))
	// 1 catalog, 2 pages, 3 font, then page/content pairs.
	for i, lines := range pages {
		pageObj := 4 + 2*i
		kids = append(kids, fmt.Sprintf("%d 0 R", pageObj))
		var stream strings.Builder
		if len(lines) > 0 {
			stream.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
			for j, line := range lines {
				if j > 0 {
					stream.WriteString("0 -16 Td\n")
				}
				fmt.Fprintf(&stream, "(%s) Tj\n", line)
			}
			stream.WriteString("ET")
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", pageObj+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", stream.Len(), stream.String()),
		)
	}
	objects = append([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}, objects...)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDFKeepsLineBreaks(t *testing.T) {
	data := buildPDF(t, []string{"Experience", "Acme 2018 - 2021", "Skills", "Go, Docker"})

	text, err := NewExtractor().Extract(context.Background(), domain.Document{Format: domain.FormatPDF, Data: data})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	want := "Experience\nAcme 2018 - 2021\nSkills\nGo, Docker"
	if text != want {
		t.Fatalf("unexpected text:\n%q\nwant\n%q", text, want)
	}

	features := heuristic.New(nil, heuristic.WithReferenceYear(2024)).Parse(text)
	if !slices.Contains(features.Skills, "go") || !slices.Contains(features.Skills, "docker") {
		t.Fatalf("expected go and docker skills, got %v", features.Skills)
	}
	if features.ExperienceYears != 3 {
		t.Fatalf("expected 3 years from the dated range, got %v", features.ExperienceYears)
	}
	if _, ok := features.Sections["skills"]; !ok {
		t.Fatalf("expected skills section, got %v", features.Sections)
	}
	if _, ok := features.Sections["experience"]; !ok {
		t.Fatalf("expected experience section, got %v", features.Sections)
	}
}

func TestExtractPDFSkipsBlankPages(t *testing.T) {
	data := buildPDF(t, []string{"Page one"}, nil, []string{"Page three"})

	text, err := NewExtractor().Extract(context.Background(), domain.Document{Format: domain.FormatPDF, Data: data})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if text != "Page one\nPage three" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestPageTextSplitsRowsAndWordGaps(t *testing.T) {
	glyphs := []pdf.Text{
		{FontSize: 10, X: 10, Y: 700, W: 5, S: "G"},
		{FontSize: 10, X: 15, Y: 700, W: 5, S: "o"},
		{FontSize: 10, X: 40, Y: 700, W: 5, S: "S"},
		{FontSize: 10, X: 45, Y: 700.4, W: 5, S: "Q"},
		{FontSize: 10, X: 50, Y: 699.8, W: 5, S: "L"},
		{FontSize: 10, X: 10, Y: 686, W: 5, S: "\n"},
		{FontSize: 10, X: 10, Y: 686, W: 5, S: "A"},
		{FontSize: 10, X: 15, Y: 686, W: 5, S: "W"},
		{FontSize: 10, X: 20, Y: 686, W: 5, S: "S"},
	}
	if got := pageText(glyphs); got != "Go SQL\nAWS" {
		t.Fatalf("pageText() = %q", got)
	}
}

func TestExtractCorruptContainers(t *testing.T) {
	var missingBody bytes.Buffer
	zw := zip.NewWriter(&missingBody)
	_, _ = zw.Create("word/styles.xml")
	_ = zw.Close()

	cases := []struct {
		name string
		doc  domain.Document
	}{
		{name: "pdf garbage", doc: domain.Document{Format: domain.FormatPDF, Data: []byte("not a pdf at all")}},
		{name: "pdf empty", doc: domain.Document{Format: domain.FormatPDF, Data: nil}},
		{name: "docx garbage", doc: domain.Document{Format: domain.FormatDOCX, Data: []byte("PK\x03\x04broken")}},
		{name: "docx missing body", doc: domain.Document{Format: domain.FormatDOCX, Data: missingBody.Bytes()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewExtractor().Extract(context.Background(), tc.doc)
			if !domain.IsKind(err, domain.ErrExtraction) {
				t.Fatalf("expected extraction error, got %v", err)
			}
		})
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), domain.Document{Format: "txt", Data: []byte("hello")})
	if !domain.IsKind(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}
