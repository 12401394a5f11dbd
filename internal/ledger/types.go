// Package ledger defines the value records that flow through the
// expense pipeline. All entities are immutable once created and live
// for a single pipeline run; nothing here touches I/O.
package ledger

import "fmt"

// Period identifies one regulatory quarter filing.
type Period struct {
	Year    int
	Quarter int // 1-4
}

// Label returns the regulator's quarter notation, e.g. "1T".
func (p Period) Label() string {
	return fmt.Sprintf("%dT", p.Quarter)
}

func (p Period) String() string {
	return fmt.Sprintf("%dT%d", p.Quarter, p.Year)
}

// ExpenseRecord is one normalized expense line extracted from a raw
// tabular file. Identifier may still hold an internal ANS registry
// code rather than a CNPJ; the Consolidator resolves it later.
type ExpenseRecord struct {
	Identifier string
	LegalName  string
	Year       int
	Quarter    int
	Amount     float64
}

// RegistryEntry maps an internal ANS registry code to the operator's
// canonical identity. Loaded once per run from the active-operator
// snapshot; keyed uniquely by InternalCode (first occurrence wins).
type RegistryEntry struct {
	InternalCode string
	CNPJ         string
	LegalName    string
}

// CadastralEntry carries the cadastral attributes used for enrichment.
// Deduplicated by cleaned CNPJ, first occurrence wins.
type CadastralEntry struct {
	CNPJ         string
	RegistryCode string
	Modality     string
	UF           string
}

// ConsolidatedFact is one row of the canonical fact table: unique per
// (CNPJ, LegalName, Quarter, Year) after grouping. CNPJ is digits-only;
// it may still fail checksum validation, which is flagged upstream but
// never drops the row.
type ConsolidatedFact struct {
	CNPJ        string
	LegalName   string
	Quarter     string // "1T".."4T"
	Year        string
	TotalAmount float64
}

// EnrichedFact is a ConsolidatedFact left-joined against the cadastral
// reference. The cadastral fields stay empty when no match exists.
type EnrichedFact struct {
	ConsolidatedFact
	RegistryCode      string
	Modality          string
	UF                string
	HasCadastralMatch bool
}

// AggregatedSummary is the per (LegalName, UF) rollup. Source quarterly
// amounts are cumulative within a calendar year, so TotalExpense is the
// maximum observed value, never the sum, and MeanExpense divides that
// total by the number of contributing quarters.
//
// StdDev and CoefVariation are fixed at zero: a true quarter-over-quarter
// deviation would require differencing the cumulative values, which this
// design does not perform. Known limitation, kept deliberately.
type AggregatedSummary struct {
	LegalName     string
	UF            string
	TotalExpense  float64
	QuarterCount  int
	MinExpense    float64
	MaxExpense    float64
	MeanExpense   float64
	StdDev        float64
	CoefVariation float64
}
