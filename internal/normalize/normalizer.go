// Package normalize turns sniffed tables into canonical expense
// records and fans out over the files inside one period's archive.
//
// Failure posture follows the rest of the pipeline: a row that cannot
// be converted is skipped, a file that cannot be recognized yields no
// records, and neither ever fails the run.
package normalize

import (
	"log/slog"
	"strings"

	"github.com/cdamasceno/ansledger/internal/cnpj"
	"github.com/cdamasceno/ansledger/internal/ledger"
	"github.com/cdamasceno/ansledger/internal/money"
	"github.com/cdamasceno/ansledger/internal/tabular"
)

// Account-code families kept from standard-layout files: 41xxx are
// claims-expense lines (eventos/sinistros), 42xxx technical provisions.
var expenseAccountPrefixes = []string{"41", "42"}

// Records converts one resolved table into expense records for the
// given period.
//
// Standard layout: rows are filtered to the expense account families,
// the identifier is the internal registry code, and the legal name is a
// placeholder resolved later against the operator registry.
//
// Generic layout: every row is emitted, with the identifier cleaned to
// digits and the legal name taken from the file.
func Records(t *tabular.Table, lay tabular.Layout, p ledger.Period) []ledger.ExpenseRecord {
	if lay.Kind == tabular.LayoutStandard {
		return standardRecords(t, lay, p)
	}
	return genericRecords(t, lay, p)
}

func standardRecords(t *tabular.Table, lay tabular.Layout, p ledger.Period) []ledger.ExpenseRecord {
	var out []ledger.ExpenseRecord
	for _, row := range t.Rows {
		// Files without an account column have nothing to filter on.
		if lay.AccountCode >= 0 && !isExpenseAccount(tabular.Cell(row, lay.AccountCode)) {
			continue
		}

		id := tabular.Cell(row, lay.Identifier)
		if id == "" {
			continue
		}

		out = append(out, ledger.ExpenseRecord{
			Identifier: id,
			LegalName:  "Operadora " + id,
			Year:       p.Year,
			Quarter:    p.Quarter,
			Amount:     money.ParseString(tabular.Cell(row, lay.Amount)),
		})
	}
	return out
}

func genericRecords(t *tabular.Table, lay tabular.Layout, p ledger.Period) []ledger.ExpenseRecord {
	var out []ledger.ExpenseRecord
	for _, row := range t.Rows {
		id := tabular.Cell(row, lay.Identifier)
		name := tabular.Cell(row, lay.LegalName)
		if id == "" && name == "" {
			continue
		}

		if cleaned := cnpj.Clean(id); cleaned != "" {
			id = cleaned
		}

		out = append(out, ledger.ExpenseRecord{
			Identifier: id,
			LegalName:  name,
			Year:       p.Year,
			Quarter:    p.Quarter,
			Amount:     money.ParseString(tabular.Cell(row, lay.Amount)),
		})
	}
	return out
}

func isExpenseAccount(account string) bool {
	for _, prefix := range expenseAccountPrefixes {
		if strings.HasPrefix(account, prefix) {
			return true
		}
	}
	return false
}

// logSkippedFile records why a file produced no records. Split out so
// the archive walker and single-file path report identically.
func logSkippedFile(logger *slog.Logger, name, reason string) {
	logger.Warn("file skipped", "file", name, "reason", reason)
}
