package xlsx

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

const sheetName = "Ranking"

var columns = []string{
	"Rank",
	"Resume ID",
	"Composite",
	"Semantic",
	"Skills",
	"Experience",
	"Matched Skills",
	"Missing Skills",
	"Explanation",
}

// Exporter renders ranked candidates as a single-sheet workbook.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Export(results []domain.MatchResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, name := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	// Dark blue header with white text.
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#1E3A5F"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	endCell, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheetName, "A1", endCell, headerStyle); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	for rowIdx, r := range results {
		values := []any{
			rowIdx + 1,
			r.ResumeID,
			round3(r.CompositeScore),
			round3(r.SemanticScore),
			round3(r.SkillsScore),
			round3(r.ExperienceScore),
			strings.Join(r.MatchedSkills, ", "),
			strings.Join(r.MissingSkills, ", "),
			strings.Join(r.Explanation, "\n"),
		}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("write row %d: %w", rowIdx+1, err)
			}
		}
	}

	for i := range columns {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := 20.0
		if columns[i] == "Explanation" {
			width = 60
		}
		if err := f.SetColWidth(sheetName, colName, colName, width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
