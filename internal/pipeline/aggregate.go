package pipeline

import (
	"sort"

	"github.com/cdamasceno/ansledger/internal/ledger"
)

// aggKey groups summaries per operator legal name and federation unit.
type aggKey struct {
	legalName string
	uf        string
}

// Aggregate rolls enriched facts up by (legal name, UF).
//
// The regulator reports quarterly amounts cumulatively within the
// calendar year: 1T=100, 2T=250, 3T=400 means the true annual total is
// 400, not 750. TotalExpense is therefore the maximum observed amount,
// never the sum, and MeanExpense divides that total by the number of
// contributing quarters instead of averaging cumulative values.
//
// Facts without a UF never made the cadastral join and are excluded
// here by design; they remain present in the consolidated output.
// StdDev stays 0: a real deviation needs differenced quarter values,
// which this rollup does not compute.
func Aggregate(facts []ledger.EnrichedFact) []ledger.AggregatedSummary {
	groups := make(map[aggKey]*ledger.AggregatedSummary)

	for _, f := range facts {
		if f.UF == "" {
			continue
		}

		k := aggKey{f.LegalName, f.UF}
		s, ok := groups[k]
		if !ok {
			s = &ledger.AggregatedSummary{
				LegalName:  f.LegalName,
				UF:         f.UF,
				MinExpense: f.TotalAmount,
				MaxExpense: f.TotalAmount,
			}
			groups[k] = s
		}

		s.QuarterCount++
		if f.TotalAmount < s.MinExpense {
			s.MinExpense = f.TotalAmount
		}
		if f.TotalAmount > s.MaxExpense {
			s.MaxExpense = f.TotalAmount
		}
	}

	out := make([]ledger.AggregatedSummary, 0, len(groups))
	for _, s := range groups {
		s.TotalExpense = s.MaxExpense
		if s.QuarterCount > 0 {
			s.MeanExpense = s.TotalExpense / float64(s.QuarterCount)
		}
		// StdDev and CoefVariation stay zero; see type doc.
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalExpense != out[j].TotalExpense {
			return out[i].TotalExpense > out[j].TotalExpense
		}
		if out[i].LegalName != out[j].LegalName {
			return out[i].LegalName < out[j].LegalName
		}
		return out[i].UF < out[j].UF
	})

	return out
}
