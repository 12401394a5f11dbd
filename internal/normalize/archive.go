package normalize

import (
	"archive/zip"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cdamasceno/ansledger/internal/ledger"
	"github.com/cdamasceno/ansledger/internal/tabular"
)

// tabularExtensions are the file types worth opening inside a period's
// container. Anything else (PDFs, readme files) is ignored silently.
var tabularExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".tsv":  true,
	".xlsx": true,
}

// Archive walks every tabular entry in one period's ZIP container,
// sniffs and normalizes each, and concatenates the results. Entries
// that fail detection or parsing are logged and skipped; the archive
// never fails as a whole.
func Archive(zr *zip.Reader, p ledger.Period, logger *slog.Logger) []ledger.ExpenseRecord {
	var all []ledger.ExpenseRecord

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name))
		if !tabularExtensions[ext] {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			logSkippedFile(logger, entry.Name, "open: "+err.Error())
			continue
		}
		records := File(entry.Name, rc, p, logger)
		rc.Close()

		if len(records) > 0 {
			logger.Info("file processed",
				"file", entry.Name,
				"period", p.String(),
				"records", len(records),
			)
		}
		all = append(all, records...)
	}

	return all
}

// File sniffs and normalizes a single already-extracted tabular file.
// A file no layout matches yields nil: skipped, not fatal.
func File(name string, r io.Reader, p ledger.Period, logger *slog.Logger) []ledger.ExpenseRecord {
	var (
		table *tabular.Table
		err   error
	)

	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		table, err = tabular.ReadXLSX(r)
	} else {
		var enc tabular.Encoding
		table, enc, err = tabular.ReadCSV(r)
		if err == nil {
			logger.Debug("encoding detected", "file", name, "encoding", enc.String())
		}
	}
	if err != nil {
		logSkippedFile(logger, name, err.Error())
		return nil
	}

	lay, ok := tabular.ResolveLayout(table)
	if !ok {
		logSkippedFile(logger, name, "no layout matched headers")
		return nil
	}

	logger.Debug("layout resolved", "file", name, "layout", lay.Kind.String())
	return Records(table, lay, p)
}
