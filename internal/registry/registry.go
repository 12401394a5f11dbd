// Package registry loads the run-scoped reference snapshots: the
// operator registry (internal ANS code → canonical identity) and the
// cadastral attributes used for enrichment.
//
// Both views come from the regulator's active-operator snapshot and are
// loaded once per pipeline run into an explicit References object that
// is passed by reference into the consolidation and enrichment stages.
// Nothing here is process-global; a new run builds a new References.
package registry

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/cdamasceno/ansledger/internal/cnpj"
	"github.com/cdamasceno/ansledger/internal/ledger"
	"github.com/cdamasceno/ansledger/internal/tabular"
)

// ErrMissingColumns means the snapshot did not expose the required
// columns under any known alias. The pipeline degrades to running
// without references rather than failing.
var ErrMissingColumns = errors.New("registry: required columns not found in snapshot")

// Column alias tables for the snapshot, tried in order.
var (
	codeAliases      = []string{"registro_ans", "reg_ans", "cd_operadora", "registro_operadora"}
	cnpjAliases      = []string{"cnpj", "nu_cnpj", "cd_cnpj", "num_cnpj", "cnpj_operadora"}
	nameAliases      = []string{"razao_social", "nm_razao_social", "nome_fantasia"}
	modalityAliases  = []string{"modalidade", "nm_modalidade", "tp_modalidade"}
	ufAliases        = []string{"uf", "sg_uf", "estado", "sigla_uf"}
)

// References holds both reference views for one pipeline run.
type References struct {
	// Operators maps internal registry code to canonical identity.
	// First occurrence wins on duplicate codes.
	Operators map[string]ledger.RegistryEntry

	// Cadastral is the enrichment reference in snapshot order; the
	// Enricher deduplicates it by cleaned CNPJ.
	Cadastral []ledger.CadastralEntry
}

// Empty returns a References with no data, used when the snapshot is
// unavailable and the run proceeds in degraded mode.
func Empty() *References {
	return &References{Operators: map[string]ledger.RegistryEntry{}}
}

// Resolve looks up an internal registry code. The second return is
// false when the code is unknown; callers keep the original value, and
// downstream checksum validation flags it.
func (r *References) Resolve(code string) (ledger.RegistryEntry, bool) {
	entry, ok := r.Operators[strings.TrimSpace(code)]
	return entry, ok
}

// Load builds both reference views from one snapshot table.
func Load(t *tabular.Table, logger *slog.Logger) (*References, error) {
	ops, err := loadOperators(t, logger)
	if err != nil {
		return nil, err
	}
	cad, err := loadCadastral(t, logger)
	if err != nil {
		return nil, err
	}
	return &References{Operators: ops, Cadastral: cad}, nil
}

// loadOperators builds the InternalCode → identity mapping. Rows
// missing any of the three required fields are skipped.
func loadOperators(t *tabular.Table, logger *slog.Logger) (map[string]ledger.RegistryEntry, error) {
	idx := t.Index()
	codeCol := lookup(idx, codeAliases)
	cnpjCol := lookup(idx, cnpjAliases)
	nameCol := lookup(idx, nameAliases)
	if codeCol < 0 || cnpjCol < 0 || nameCol < 0 {
		return nil, ErrMissingColumns
	}

	ops := make(map[string]ledger.RegistryEntry, len(t.Rows))
	skipped := 0
	for _, row := range t.Rows {
		code := tabular.Cell(row, codeCol)
		id := tabular.Cell(row, cnpjCol)
		name := tabular.Cell(row, nameCol)
		if code == "" || id == "" || name == "" {
			skipped++
			continue
		}
		if _, exists := ops[code]; exists {
			continue
		}
		ops[code] = ledger.RegistryEntry{InternalCode: code, CNPJ: id, LegalName: name}
	}

	logger.Info("operator registry loaded", "operators", len(ops), "skipped_rows", skipped)
	return ops, nil
}

// loadCadastral extracts the enrichment attributes. CNPJ, registry code
// and UF are required; modality may be absent from older snapshots.
func loadCadastral(t *tabular.Table, logger *slog.Logger) ([]ledger.CadastralEntry, error) {
	idx := t.Index()
	cnpjCol := lookup(idx, cnpjAliases)
	codeCol := lookup(idx, codeAliases)
	modCol := lookup(idx, modalityAliases)
	ufCol := lookup(idx, ufAliases)
	if cnpjCol < 0 || codeCol < 0 || ufCol < 0 {
		return nil, ErrMissingColumns
	}

	entries := make([]ledger.CadastralEntry, 0, len(t.Rows))
	for _, row := range t.Rows {
		id := cnpj.Clean(tabular.Cell(row, cnpjCol))
		if id == "" {
			continue
		}
		entries = append(entries, ledger.CadastralEntry{
			CNPJ:         id,
			RegistryCode: tabular.Cell(row, codeCol),
			Modality:     tabular.Cell(row, modCol),
			UF:           strings.ToUpper(tabular.Cell(row, ufCol)),
		})
	}

	logger.Info("cadastral reference loaded", "entries", len(entries))
	return entries, nil
}

func lookup(idx tabular.HeaderIndex, aliases []string) int {
	for _, a := range aliases {
		if pos, ok := idx[a]; ok {
			return pos
		}
	}
	return -1
}
