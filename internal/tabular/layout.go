package tabular

// LayoutKind tags which naming convention a file was recognized under.
type LayoutKind int

const (
	// LayoutStandard is the regulator's accounting-statement layout:
	// per-account balance lines keyed by internal registry code.
	LayoutStandard LayoutKind = iota

	// LayoutGeneric is the loose fallback for re-published files that
	// already carry an identifier, a legal name and an amount.
	LayoutGeneric
)

func (k LayoutKind) String() string {
	if k == LayoutStandard {
		return "standard"
	}
	return "generic"
}

// Layout holds the resolved column positions for the semantic roles a
// file exposes. Positions are -1 when the role is absent.
type Layout struct {
	Kind        LayoutKind
	Identifier  int
	Description int
	AccountCode int
	LegalName   int
	Amount      int
}

// Role alias tables, tried in order within each role. These are the
// header spellings observed across the regulator's historical filings.
var (
	standardIdentifierAliases  = []string{"reg_ans", "cd_operadora", "registro_operadora"}
	standardDescriptionAliases = []string{"descricao"}
	standardAccountAliases     = []string{"cd_conta_contabil"}
	standardAmountAliases      = []string{"vl_saldo_final", "vl_saldo_inicial"}

	genericIdentifierAliases = []string{"cnpj", "cd_cnpj", "num_cnpj", "cnpj_operadora", "reg_ans"}
	genericNameAliases       = []string{"razao_social", "razaosocial", "nome_operadora", "operadora", "nm_razao_social", "descricao"}
	genericAmountAliases     = []string{"valor", "vl_despesa", "despesa", "valor_despesa", "vl_saldo", "vl_saldo_final", "vl_saldo_inicial"}
)

// layoutMatcher is a pure function from a header index to an optional
// layout. Matchers are tried in fixed priority order; the first success
// wins.
type layoutMatcher func(HeaderIndex) (Layout, bool)

var layoutMatchers = []layoutMatcher{matchStandard, matchGeneric}

// ResolveLayout tries each known layout against the table's headers.
// The second return is false when no layout matches; the caller skips
// the file without failing the run.
func ResolveLayout(t *Table) (Layout, bool) {
	idx := t.Index()
	for _, match := range layoutMatchers {
		if lay, ok := match(idx); ok {
			return lay, true
		}
	}
	return Layout{}, false
}

// matchStandard requires identifier, description and amount columns;
// the account-code column is optional (older filings omit it, and the
// normalizer then has nothing to filter on).
func matchStandard(idx HeaderIndex) (Layout, bool) {
	lay := Layout{
		Kind:        LayoutStandard,
		Identifier:  lookup(idx, standardIdentifierAliases),
		Description: lookup(idx, standardDescriptionAliases),
		AccountCode: lookup(idx, standardAccountAliases),
		Amount:      lookup(idx, standardAmountAliases),
		LegalName:   -1,
	}
	if lay.Identifier < 0 || lay.Description < 0 || lay.Amount < 0 {
		return Layout{}, false
	}
	return lay, true
}

// matchGeneric needs identifier, legal name and amount; no account
// code, so every row passes through unfiltered.
func matchGeneric(idx HeaderIndex) (Layout, bool) {
	lay := Layout{
		Kind:        LayoutGeneric,
		Identifier:  lookup(idx, genericIdentifierAliases),
		LegalName:   lookup(idx, genericNameAliases),
		Amount:      lookup(idx, genericAmountAliases),
		Description: -1,
		AccountCode: -1,
	}
	if lay.Identifier < 0 || lay.LegalName < 0 || lay.Amount < 0 {
		return Layout{}, false
	}
	return lay, true
}

// lookup returns the position of the first alias present in idx, -1
// when none match.
func lookup(idx HeaderIndex, aliases []string) int {
	for _, a := range aliases {
		if pos, ok := idx[a]; ok {
			return pos
		}
	}
	return -1
}
