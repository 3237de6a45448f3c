package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

var sheetNameReplacer = strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")")

// XLSXExporter renders a Workbook into an Excel file, one worksheet per sheet.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes each sheet with its title in A1, headers on row 2 and data
// from row 3.
func (e *XLSXExporter) Render(book Workbook) ([]byte, error) {
	if len(book.Sheets) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one sheet")
	}
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx header style: %w", err)
	}

	used := make(map[string]struct{}, len(book.Sheets))
	names := make([]string, 0, len(book.Sheets))
	for i, sheet := range book.Sheets {
		if err := sheet.validate("xlsx"); err != nil {
			return nil, err
		}
		name := sheetName(sheet.Title, i)
		if _, dup := used[name]; dup {
			name = sheetName(fmt.Sprintf("%d %s", i+1, sheet.Title), i)
		}
		used[name] = struct{}{}
		names = append(names, name)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("xlsx sheet %q: %w", name, err)
		}

		if err := f.SetCellValue(name, "A1", sheet.Title); err != nil {
			return nil, fmt.Errorf("xlsx title: %w", err)
		}
		for col, header := range sheet.Headers {
			ref, _ := excelize.CoordinatesToCellName(col+1, 2)
			if err := f.SetCellValue(name, ref, header); err != nil {
				return nil, fmt.Errorf("xlsx header: %w", err)
			}
		}
		first, _ := excelize.CoordinatesToCellName(1, 2)
		last, _ := excelize.CoordinatesToCellName(len(sheet.Headers), 2)
		_ = f.SetCellStyle(name, first, last, headerStyle)

		lastCol, _ := excelize.ColumnNumberToName(len(sheet.Headers))
		_ = f.SetColWidth(name, "A", lastCol, 18)

		for r, row := range sheet.Rows {
			for col, value := range row {
				ref, _ := excelize.CoordinatesToCellName(col+1, r+3)
				if err := f.SetCellValue(name, ref, value); err != nil {
					return nil, fmt.Errorf("xlsx cell %s: %w", ref, err)
				}
			}
		}
	}

	if _, kept := used[defaultSheet]; !kept {
		_ = f.DeleteSheet(defaultSheet)
	}
	if idx, err := f.GetSheetIndex(names[0]); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName strips characters Excel rejects, trims to its 31 character limit
// and fills blanks.
func sheetName(title string, idx int) string {
	title = strings.TrimSpace(sheetNameReplacer.Replace(title))
	if title == "" {
		return fmt.Sprintf("Sheet%d", idx+2)
	}
	runes := []rune(title)
	if len(runes) > 31 {
		runes = runes[:31]
	}
	return string(runes)
}
