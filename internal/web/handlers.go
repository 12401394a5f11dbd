package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cdamasceno/ansledger/internal/cnpj"
	"github.com/cdamasceno/ansledger/internal/logging"
	"github.com/cdamasceno/ansledger/internal/store"
)

// Paging bounds for list endpoints.
const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultTopLimit = 10
)

// pagedResponse is the envelope for paginated list endpoints.
type pagedResponse struct {
	Data       any   `json:"data"`
	TotalItems int64 `json:"total_items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// errorResponse is the JSON structure for API error responses.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListOperators serves GET /api/operadoras with optional search
// and pagination.
func (s *Server) handleListOperators(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	page := parseIntParam(r, "page", 1)
	limit := parseIntParam(r, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}

	operators, total, err := s.queries.ListOperators(r.Context(), search, page, limit)
	if err != nil {
		s.respondInternalError(w, r, err)
		return
	}
	if operators == nil {
		operators = []store.Operator{}
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	respondJSON(w, http.StatusOK, pagedResponse{
		Data:       operators,
		TotalItems: total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	})
}

// handleGetOperator serves GET /api/operadoras/{cnpj}. The path value
// accepts both masked and digits-only CNPJs.
func (s *Server) handleGetOperator(w http.ResponseWriter, r *http.Request) {
	id := cnpj.Clean(chi.URLParam(r, "cnpj"))
	if id == "" {
		respondError(w, r, http.StatusBadRequest, "invalid CNPJ")
		return
	}

	operator, err := s.queries.GetOperator(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "operator not found")
		return
	}
	if err != nil {
		s.respondInternalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, operator)
}

// handleOperatorExpenses serves GET /api/operadoras/{cnpj}/despesas.
func (s *Server) handleOperatorExpenses(w http.ResponseWriter, r *http.Request) {
	id := cnpj.Clean(chi.URLParam(r, "cnpj"))
	if id == "" {
		respondError(w, r, http.StatusBadRequest, "invalid CNPJ")
		return
	}

	expenses, err := s.queries.OperatorExpenses(r.Context(), id)
	if err != nil {
		s.respondInternalError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []store.Expense{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"cnpj": id, "despesas": expenses})
}

// handleTopOperators serves GET /api/despesas/top.
func (s *Server) handleTopOperators(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultTopLimit)
	if limit > maxPageSize {
		limit = maxPageSize
	}

	summaries, err := s.queries.TopOperators(r.Context(), limit)
	if err != nil {
		s.respondInternalError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []store.Summary{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": summaries, "limit": limit})
}

// handleStats serves GET /api/estatisticas.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queries.Stats(r.Context())
	if err != nil {
		s.respondInternalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// respondInternalError logs the technical error with the request ID
// and returns a sanitized message to the client.
func (s *Server) respondInternalError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.WithFields(r.Context(), "path", r.URL.Path, "method", r.Method)
	logger.Error("request failed", "error", err)
	respondError(w, r, http.StatusInternalServerError, "internal error")
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		w.Header().Set("X-Request-Id", reqID)
	}
	respondJSON(w, status, errorResponse{Error: message})
}

// respondJSON encodes v as JSON and writes it with status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
