package pipeline

import (
	"log/slog"
	"sort"
	"strconv"

	"github.com/cdamasceno/ansledger/internal/cnpj"
	"github.com/cdamasceno/ansledger/internal/ledger"
	"github.com/cdamasceno/ansledger/internal/registry"
)

// groupKey identifies one consolidation group before identifier
// resolution: distinct files within a period sum into the same group.
type groupKey struct {
	identifier string
	legalName  string
	quarter    int
	year       int
}

// Consolidate folds the raw per-file records into the canonical fact
// table: group-and-sum per (identifier, legal name, quarter, year),
// rewrite internal registry codes via the operator registry, clean the
// CNPJ to digits, and run checksum validation.
//
// Data-quality findings (invalid checksums, CNPJs with more than one
// legal name, zero or negative totals, empty names) are logged but
// never drop a row: downstream consumers decide what to do with them.
// Output order is deterministic, so re-running over identical input
// yields a byte-identical table.
func Consolidate(records []ledger.ExpenseRecord, refs *registry.References, logger *slog.Logger) ([]ledger.ConsolidatedFact, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	sums := make(map[groupKey]float64)
	for _, r := range records {
		k := groupKey{r.Identifier, r.LegalName, r.Quarter, r.Year}
		sums[k] += r.Amount
	}
	logger.Info("records grouped", "records", len(records), "groups", len(sums))

	facts := make([]ledger.ConsolidatedFact, 0, len(sums))
	for k, total := range sums {
		id, name := k.identifier, k.legalName
		if entry, ok := refs.Resolve(id); ok {
			id, name = entry.CNPJ, entry.LegalName
		}

		facts = append(facts, ledger.ConsolidatedFact{
			CNPJ:        cnpj.Clean(id),
			LegalName:   name,
			Quarter:     strconv.Itoa(k.quarter) + "T",
			Year:        strconv.Itoa(k.year),
			TotalAmount: total,
		})
	}

	sort.Slice(facts, func(i, j int) bool {
		a, b := facts[i], facts[j]
		if a.CNPJ != b.CNPJ {
			return a.CNPJ < b.CNPJ
		}
		if a.LegalName != b.LegalName {
			return a.LegalName < b.LegalName
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Quarter < b.Quarter
	})

	logQualityFlags(facts, logger)
	return facts, nil
}

// logQualityFlags reports data-quality counts. Rows are retained
// regardless of outcome; the flags exist for the logs only.
func logQualityFlags(facts []ledger.ConsolidatedFact, logger *slog.Logger) {
	var invalid, zeroed, negative, emptyNames int
	namesByCNPJ := make(map[string]map[string]bool)

	for _, f := range facts {
		if !cnpj.Valid(f.CNPJ) {
			invalid++
		}
		switch {
		case f.TotalAmount == 0:
			zeroed++
		case f.TotalAmount < 0:
			negative++
		}
		if f.LegalName == "" {
			emptyNames++
		}

		if namesByCNPJ[f.CNPJ] == nil {
			namesByCNPJ[f.CNPJ] = make(map[string]bool)
		}
		namesByCNPJ[f.CNPJ][f.LegalName] = true
	}

	multiName := 0
	for _, names := range namesByCNPJ {
		if len(names) > 1 {
			multiName++
		}
	}

	logger.Info("consolidation flags",
		"facts", len(facts),
		"invalid_cnpj", invalid,
		"zero_amounts", zeroed,
		"negative_amounts", negative,
		"empty_legal_names", emptyNames,
		"cnpj_with_multiple_names", multiName,
	)
}
