package pipeline

import (
	"log/slog"

	"github.com/cdamasceno/ansledger/internal/cnpj"
	"github.com/cdamasceno/ansledger/internal/ledger"
)

// Enrich left-joins the fact table against the cadastral reference on
// cleaned CNPJ. The reference is deduplicated first-occurrence-wins
// (duplicates are logged); facts without a match keep empty cadastral
// fields and are retained for downstream consumers.
func Enrich(facts []ledger.ConsolidatedFact, cadastral []ledger.CadastralEntry, logger *slog.Logger) []ledger.EnrichedFact {
	byCNPJ := make(map[string]ledger.CadastralEntry, len(cadastral))
	duplicates := 0
	for _, e := range cadastral {
		key := cnpj.Clean(e.CNPJ)
		if key == "" {
			continue
		}
		if _, exists := byCNPJ[key]; exists {
			duplicates++
			continue
		}
		byCNPJ[key] = e
	}
	if duplicates > 0 {
		logger.Warn("duplicate cadastral entries dropped", "duplicates", duplicates, "kept", len(byCNPJ))
	}

	enriched := make([]ledger.EnrichedFact, 0, len(facts))
	matched := 0
	for _, f := range facts {
		ef := ledger.EnrichedFact{ConsolidatedFact: f}
		if e, ok := byCNPJ[cnpj.Clean(f.CNPJ)]; ok {
			ef.RegistryCode = e.RegistryCode
			ef.Modality = e.Modality
			ef.UF = e.UF
			ef.HasCadastralMatch = e.RegistryCode != ""
			if ef.HasCadastralMatch {
				matched++
			}
		}
		enriched = append(enriched, ef)
	}

	logger.Info("enrichment complete",
		"facts", len(enriched),
		"with_cadastral", matched,
		"without_cadastral", len(enriched)-matched,
	)
	return enriched
}
