package export

import "fmt"

// Dataset is one table of export content. Rows are positional and must
// match Headers in length.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Workbook groups several titled tables, one per page or sheet.
type Workbook struct {
	Title  string
	Sheets []Dataset
}

func (d Dataset) validate(format string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("%s row %d has %d cells, want %d", format, i, len(row), len(d.Headers))
		}
	}
	return nil
}
