package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdamasceno/ansledger/internal/store"
)

// stubQueries serves canned data to the handlers.
type stubQueries struct {
	operators []store.Operator
	expenses  []store.Expense
	summaries []store.Summary
	stats     *store.Stats
	err       error

	lastSearch string
	lastLimit  int
}

func (q *stubQueries) ListOperators(_ context.Context, search string, page, limit int) ([]store.Operator, int64, error) {
	q.lastSearch = search
	q.lastLimit = limit
	return q.operators, int64(len(q.operators)), q.err
}

func (q *stubQueries) GetOperator(_ context.Context, cnpj string) (*store.Operator, error) {
	if q.err != nil {
		return nil, q.err
	}
	for _, o := range q.operators {
		if o.CNPJ == cnpj {
			return &o, nil
		}
	}
	return nil, store.ErrNotFound
}

func (q *stubQueries) OperatorExpenses(context.Context, string) ([]store.Expense, error) {
	return q.expenses, q.err
}

func (q *stubQueries) TopOperators(_ context.Context, limit int) ([]store.Summary, error) {
	q.lastLimit = limit
	return q.summaries, q.err
}

func (q *stubQueries) Stats(context.Context) (*store.Stats, error) {
	return q.stats, q.err
}

func doRequest(t *testing.T, q Queries, path string) *httptest.ResponseRecorder {
	t.Helper()
	srv := NewServer(q, ":0")
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleListOperators(t *testing.T) {
	q := &stubQueries{operators: []store.Operator{
		{CNPJ: "11222333000181", LegalName: "OPERADORA ALFA", UF: "SP"},
	}}

	rec := doRequest(t, q, "/api/operadoras?search=alfa&limit=500")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alfa", q.lastSearch)
	assert.Equal(t, maxPageSize, q.lastLimit, "limit must be capped")

	var resp struct {
		Data       []store.Operator `json:"data"`
		TotalItems int64            `json:"total_items"`
		Page       int              `json:"page"`
		TotalPages int              `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "OPERADORA ALFA", resp.Data[0].LegalName)
	assert.Equal(t, int64(1), resp.TotalItems)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 1, resp.TotalPages)
}

func TestHandleGetOperator_AcceptsMaskedCNPJ(t *testing.T) {
	q := &stubQueries{operators: []store.Operator{
		{CNPJ: "11222333000181", LegalName: "OPERADORA ALFA"},
	}}

	rec := doRequest(t, q, "/api/operadoras/11.222.333.0001-81")
	require.Equal(t, http.StatusOK, rec.Code)

	var o store.Operator
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, "11222333000181", o.CNPJ)
}

func TestHandleGetOperator_NotFound(t *testing.T) {
	rec := doRequest(t, &stubQueries{}, "/api/operadoras/99888777000166")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "operator not found", resp.Error)
}

func TestHandleGetOperator_InvalidCNPJ(t *testing.T) {
	rec := doRequest(t, &stubQueries{}, "/api/operadoras/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOperatorExpenses(t *testing.T) {
	q := &stubQueries{expenses: []store.Expense{
		{CNPJ: "11222333000181", Quarter: "1T", Year: "2024", TotalAmount: 150},
	}}

	rec := doRequest(t, q, "/api/operadoras/11222333000181/despesas")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		CNPJ     string          `json:"cnpj"`
		Despesas []store.Expense `json:"despesas"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "11222333000181", resp.CNPJ)
	require.Len(t, resp.Despesas, 1)
	assert.InDelta(t, 150.0, resp.Despesas[0].TotalAmount, 1e-9)
}

func TestHandleTopOperators_DefaultLimit(t *testing.T) {
	q := &stubQueries{summaries: []store.Summary{
		{LegalName: "OPERADORA ALFA", UF: "SP", TotalExpense: 400},
	}}

	rec := doRequest(t, q, "/api/despesas/top")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultTopLimit, q.lastLimit)
}

func TestHandleStats(t *testing.T) {
	q := &stubQueries{stats: &store.Stats{Operators: 7, TotalExpense: 1234.5}}

	rec := doRequest(t, q, "/api/estatisticas")
	require.Equal(t, http.StatusOK, rec.Code)

	var st store.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, int64(7), st.Operators)
}

func TestQueryFailureIsSanitized(t *testing.T) {
	q := &stubQueries{err: errors.New("pq: connection refused on 10.0.0.5")}

	rec := doRequest(t, q, "/api/operadoras")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal error", resp.Error)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, &stubQueries{}, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
