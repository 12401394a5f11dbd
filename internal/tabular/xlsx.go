package tabular

import (
	"errors"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheets means the workbook had no readable sheets.
var ErrNoSheets = errors.New("tabular: workbook has no sheets")

// ReadXLSX materializes the first sheet of a spreadsheet into a Table,
// the same shape ReadCSV produces, so the layout resolver and the
// normalizer never care which container a file arrived in.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	return &Table{Headers: rows[0], Rows: rows[1:]}, nil
}
