// Package tabular turns raw disclosure files of unknown encoding,
// delimiter and column naming into in-memory tables with resolved
// semantic roles. It is the detection layer of the pipeline: anything
// it cannot make sense of is reported, not guessed at.
package tabular

import "strings"

// Table is a fully materialized tabular file: one header row plus data
// rows. Rows may be ragged; consumers index defensively.
type Table struct {
	Headers []string
	Rows    [][]string
}

// HeaderIndex maps lower-cased, cleaned header names to their column
// position. Computed once per table and reused for every row.
type HeaderIndex map[string]int

// Index builds the HeaderIndex for the table.
func (t *Table) Index() HeaderIndex {
	idx := make(HeaderIndex, len(t.Headers))
	for i, h := range t.Headers {
		key := CleanHeader(h)
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

// CleanHeader normalizes a raw header cell: strips a UTF-8 BOM, Excel's
// ="..." formula wrapper, surrounding quotes and whitespace, and lower-
// cases the result.
func CleanHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	h = strings.TrimSpace(h)
	if strings.HasPrefix(h, "=\"") && strings.HasSuffix(h, "\"") {
		h = h[2 : len(h)-1]
	}
	h = strings.Trim(h, `"`)
	return strings.ToLower(strings.TrimSpace(h))
}

// Cell returns the trimmed value at column i, or "" when the row is too
// short or the index is unresolved (-1).
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
