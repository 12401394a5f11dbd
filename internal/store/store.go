// Package store persists pipeline results in PostgreSQL and serves the
// read queries behind the HTTP API. Each pipeline run fully replaces
// the previous load; the tables always reflect exactly one run.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cdamasceno/ansledger/internal/ledger"
)

// ErrNotFound is returned by single-row lookups with no match.
var ErrNotFound = errors.New("store: not found")

// Store wraps the connection pool with the schema this service owns.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Operator is one row of the operadoras table.
type Operator struct {
	CNPJ         string `json:"cnpj"`
	LegalName    string `json:"razao_social"`
	RegistryCode string `json:"registro_ans,omitempty"`
	Modality     string `json:"modalidade,omitempty"`
	UF           string `json:"uf,omitempty"`
}

// Expense is one consolidated quarter total for an operator.
type Expense struct {
	CNPJ        string  `json:"cnpj"`
	LegalName   string  `json:"razao_social"`
	Quarter     string  `json:"trimestre"`
	Year        string  `json:"ano"`
	TotalAmount float64 `json:"valor_despesas"`
}

// Summary is one row of the despesas_agregadas rollup.
type Summary struct {
	LegalName    string  `json:"razao_social"`
	UF           string  `json:"uf"`
	TotalExpense float64 `json:"total_despesas"`
	QuarterCount int     `json:"qtd_trimestres"`
	MinExpense   float64 `json:"min_despesa"`
	MaxExpense   float64 `json:"max_despesa"`
	MeanExpense  float64 `json:"media_despesas"`
}

// Stats is the service-wide overview served by the API.
type Stats struct {
	Operators     int64   `json:"total_operadoras"`
	ExpenseRows   int64   `json:"total_registros_despesas"`
	TotalExpense  float64 `json:"total_despesas"`
	DistinctUFs   int64   `json:"total_ufs"`
	QuartersKnown int64   `json:"total_trimestres"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS operadoras (
		cnpj TEXT PRIMARY KEY,
		razao_social TEXT NOT NULL,
		registro_ans TEXT NOT NULL DEFAULT '',
		modalidade TEXT NOT NULL DEFAULT '',
		uf TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS despesas_consolidadas (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		cnpj TEXT NOT NULL,
		razao_social TEXT NOT NULL,
		trimestre TEXT NOT NULL,
		ano TEXT NOT NULL,
		valor_despesas DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_despesas_cnpj ON despesas_consolidadas (cnpj)`,
	`CREATE TABLE IF NOT EXISTS despesas_agregadas (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		razao_social TEXT NOT NULL,
		uf TEXT NOT NULL,
		total_despesas DOUBLE PRECISION NOT NULL,
		qtd_trimestres INT NOT NULL,
		min_despesa DOUBLE PRECISION NOT NULL,
		max_despesa DOUBLE PRECISION NOT NULL,
		media_despesas DOUBLE PRECISION NOT NULL,
		desvio_padrao DOUBLE PRECISION NOT NULL,
		coef_variacao DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agregadas_total ON despesas_agregadas (total_despesas DESC)`,
}

// EnsureSchema creates the tables and indexes when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

// LoadRun replaces all persisted data with one pipeline run's output.
// The swap happens in a single transaction, so readers never observe a
// half-loaded state.
func (s *Store) LoadRun(ctx context.Context, enriched []ledger.EnrichedFact, summaries []ledger.AggregatedSummary) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"operadoras", "despesas_consolidadas", "despesas_agregadas"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if err := copyOperators(ctx, tx, enriched); err != nil {
		return err
	}
	if err := copyExpenses(ctx, tx, enriched); err != nil {
		return err
	}
	if err := copySummaries(ctx, tx, summaries); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// copyOperators derives the operator table from the enriched facts,
// one row per distinct CNPJ.
func copyOperators(ctx context.Context, tx pgx.Tx, enriched []ledger.EnrichedFact) error {
	seen := make(map[string]bool, len(enriched))
	var rows [][]any
	for _, f := range enriched {
		if f.CNPJ == "" || seen[f.CNPJ] {
			continue
		}
		seen[f.CNPJ] = true
		rows = append(rows, []any{f.CNPJ, f.LegalName, f.RegistryCode, f.Modality, f.UF})
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"operadoras"},
		[]string{"cnpj", "razao_social", "registro_ans", "modalidade", "uf"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("loading operadoras: %w", err)
	}
	return nil
}

func copyExpenses(ctx context.Context, tx pgx.Tx, enriched []ledger.EnrichedFact) error {
	rows := make([][]any, 0, len(enriched))
	for _, f := range enriched {
		rows = append(rows, []any{f.CNPJ, f.LegalName, f.Quarter, f.Year, f.TotalAmount})
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"despesas_consolidadas"},
		[]string{"cnpj", "razao_social", "trimestre", "ano", "valor_despesas"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("loading despesas_consolidadas: %w", err)
	}
	return nil
}

func copySummaries(ctx context.Context, tx pgx.Tx, summaries []ledger.AggregatedSummary) error {
	rows := make([][]any, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []any{
			s.LegalName, s.UF, s.TotalExpense, s.QuarterCount,
			s.MinExpense, s.MaxExpense, s.MeanExpense, s.StdDev, s.CoefVariation,
		})
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"despesas_agregadas"},
		[]string{
			"razao_social", "uf", "total_despesas", "qtd_trimestres",
			"min_despesa", "max_despesa", "media_despesas", "desvio_padrao", "coef_variacao",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("loading despesas_agregadas: %w", err)
	}
	return nil
}

// ListOperators pages through operators, optionally filtered by a
// case-insensitive substring match on name or CNPJ.
func (s *Store) ListOperators(ctx context.Context, search string, page, limit int) ([]Operator, int64, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	// Empty search matches everything; the digits-only variant lets a
	// masked CNPJ query hit the digits-only stored form.
	namePattern := "%" + search + "%"
	cnpjPattern := "%" + digitsOnly(search) + "%"
	where := "WHERE ($1 = '' OR razao_social ILIKE $2 OR cnpj LIKE $3)"

	var total int64
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM operadoras "+where,
		search, namePattern, cnpjPattern,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT cnpj, razao_social, registro_ans, modalidade, uf
		FROM operadoras `+where+`
		ORDER BY razao_social, cnpj
		LIMIT $4 OFFSET $5`,
		search, namePattern, cnpjPattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Operator
	for rows.Next() {
		var o Operator
		if err := rows.Scan(&o.CNPJ, &o.LegalName, &o.RegistryCode, &o.Modality, &o.UF); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// GetOperator fetches one operator by digits-only CNPJ.
func (s *Store) GetOperator(ctx context.Context, cnpj string) (*Operator, error) {
	var o Operator
	err := s.pool.QueryRow(ctx, `
		SELECT cnpj, razao_social, registro_ans, modalidade, uf
		FROM operadoras WHERE cnpj = $1`, cnpj,
	).Scan(&o.CNPJ, &o.LegalName, &o.RegistryCode, &o.Modality, &o.UF)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// OperatorExpenses lists an operator's consolidated quarter totals,
// most recent first.
func (s *Store) OperatorExpenses(ctx context.Context, cnpj string) ([]Expense, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cnpj, razao_social, trimestre, ano, valor_despesas
		FROM despesas_consolidadas
		WHERE cnpj = $1
		ORDER BY ano DESC, trimestre DESC`, cnpj)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.CNPJ, &e.LegalName, &e.Quarter, &e.Year, &e.TotalAmount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TopOperators returns the highest-expense rollup rows.
func (s *Store) TopOperators(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT razao_social, uf, total_despesas, qtd_trimestres,
		       min_despesa, max_despesa, media_despesas
		FROM despesas_agregadas
		ORDER BY total_despesas DESC, razao_social, uf
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.LegalName, &s.UF, &s.TotalExpense, &s.QuarterCount,
			&s.MinExpense, &s.MaxExpense, &s.MeanExpense); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Stats computes the service-wide overview.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM operadoras),
			(SELECT COUNT(*) FROM despesas_consolidadas),
			(SELECT COALESCE(SUM(total_despesas), 0) FROM despesas_agregadas),
			(SELECT COUNT(DISTINCT uf) FROM despesas_agregadas),
			(SELECT COUNT(DISTINCT (ano, trimestre)) FROM despesas_consolidadas)`,
	).Scan(&st.Operators, &st.ExpenseRows, &st.TotalExpense, &st.DistinctUFs, &st.QuartersKnown)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// digitsOnly strips formatting so a masked CNPJ search still matches
// the digits-only stored form.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
