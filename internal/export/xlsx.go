package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/projectmaat/projectmaat/internal/overview"
)

// XLSX writes the overview grid as a spreadsheet with a bold header,
// a bold average footer and column widths sized to their content.
func XLSX(w io.Writer, m overview.Matrix) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(m.Title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	label := "Team"
	if m.GradingMode == "individual" {
		label = "Leerling"
	}
	header := []string{label}
	for _, c := range m.Columns {
		header = append(header, c.Name)
	}
	header = append(header, AverageRowLabel)

	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	rowNum := 2
	for _, r := range m.Rows {
		if err := setCell(f, sheet, 1, rowNum, r.Label()); err != nil {
			return err
		}
		if len(r.Label()) > widths[0] {
			widths[0] = len(r.Label())
		}
		for j, c := range r.Cells {
			if c.Score == nil {
				continue
			}
			if err := setCell(f, sheet, j+2, rowNum, round1(*c.Score)); err != nil {
				return err
			}
		}
		if r.Average != nil {
			if err := setCell(f, sheet, len(header), rowNum, round1(*r.Average)); err != nil {
				return err
			}
		}
		rowNum++
	}

	footerRow := 0
	if len(m.Rows) > 0 {
		footerRow = rowNum
		if err := setCell(f, sheet, 1, footerRow, AverageRowLabel); err != nil {
			return err
		}
		for j, c := range m.Columns {
			if c.Average == nil {
				continue
			}
			if err := setCell(f, sheet, j+2, footerRow, round1(*c.Average)); err != nil {
				return err
			}
		}
		if m.Overall != nil {
			if err := setCell(f, sheet, len(header), footerRow, round1(*m.Overall)); err != nil {
				return err
			}
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", bold); err != nil {
		return err
	}
	if footerRow > 0 {
		start := fmt.Sprintf("A%d", footerRow)
		end := fmt.Sprintf("%s%d", lastCol, footerRow)
		if err := f.SetCellStyle(sheet, start, end, bold); err != nil {
			return err
		}
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		w := float64(width) + 2
		if w < 10 {
			w = 10
		}
		if w > 40 {
			w = 40
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, v)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// sheetName trims the title to Excel's constraints: max 31 chars, no
// : \ / ? * [ ] characters.
func sheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return ' '
		}
		return r
	}, title)
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Overzicht"
	}
	runes := []rune(name)
	if len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}
