package tabular

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Delimiters tried in fixed priority order. The regulator's own files
// are semicolon-delimited; the rest cover third-party re-publications.
var delimiters = []rune{';', ',', '\t', '|'}

var (
	// ErrNoDelimiter means no candidate delimiter produced more than
	// one column. The file is skipped, never fatal to the run.
	ErrNoDelimiter = errors.New("tabular: no delimiter produced multiple columns")

	// ErrEmptyFile means the source had no content rows at all.
	ErrEmptyFile = errors.New("tabular: file is empty")
)

// DetectDelimiter tries each candidate delimiter against the first
// line and returns the first one that yields more than one column.
func DetectDelimiter(firstLine string) (rune, error) {
	firstLine = strings.TrimRight(firstLine, "\r\n")
	for _, d := range delimiters {
		r := csv.NewReader(strings.NewReader(firstLine))
		r.Comma = d
		r.LazyQuotes = true
		fields, err := r.Read()
		if err == nil && len(fields) > 1 {
			return d, nil
		}
	}
	return 0, ErrNoDelimiter
}

// ReadCSV materializes a delimited text source into a Table. Encoding
// is auto-detected and decoded to UTF-8 first, then the delimiter is
// sniffed from the first line. Ragged rows are kept; rows that fail CSV
// tokenization entirely are dropped individually.
func ReadCSV(r io.Reader) (*Table, Encoding, error) {
	decoded, enc, err := DecodeReader(r)
	if err != nil {
		return nil, enc, err
	}

	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, enc, err
	}

	text := string(data)
	firstLine, _, _ := strings.Cut(text, "\n")
	if strings.TrimSpace(firstLine) == "" {
		return nil, enc, ErrEmptyFile
	}

	delim, err := DetectDelimiter(firstLine)
	if err != nil {
		return nil, enc, err
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var t Table
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row: skip it, keep the file.
			continue
		}
		if t.Headers == nil {
			t.Headers = rec
			continue
		}
		t.Rows = append(t.Rows, rec)
	}

	if t.Headers == nil {
		return nil, enc, ErrEmptyFile
	}
	return &t, enc, nil
}
