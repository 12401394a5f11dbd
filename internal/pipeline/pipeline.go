// Package pipeline turns raw quarter filings into the consolidated and
// aggregated expense outputs. It owns the run lifecycle: period listing,
// per-period extraction, reference loading, consolidation, cadastral
// enrichment, aggregation and output writing.
package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cdamasceno/ansledger/internal/ledger"
	"github.com/cdamasceno/ansledger/internal/normalize"
	"github.com/cdamasceno/ansledger/internal/registry"
	"github.com/cdamasceno/ansledger/internal/tabular"
)

// Source provides the run's inputs. The production implementation is
// the open-data portal client; tests supply in-memory fakes.
type Source interface {
	// Periods lists available quarter filings, newest first.
	Periods(ctx context.Context) ([]ledger.Period, error)

	// OpenPeriod opens the filing archive for one period. The caller
	// closes the returned closer when done with the reader.
	OpenPeriod(ctx context.Context, p ledger.Period) (*zip.Reader, io.Closer, error)

	// OperatorSnapshot opens the active-operator reference CSV.
	OperatorSnapshot(ctx context.Context) (io.ReadCloser, error)
}

// Config narrows the run to what the engine needs to know.
type Config struct {
	// MaxPeriods caps how many filings are processed, newest first.
	// Zero means all available.
	MaxPeriods int

	// ResultsDir receives the output CSVs and ZIPs.
	ResultsDir string
}

// Result summarizes one completed run.
type Result struct {
	RunID uuid.UUID

	Facts     []ledger.ConsolidatedFact
	Enriched  []ledger.EnrichedFact
	Summaries []ledger.AggregatedSummary

	PeriodsProcessed []ledger.Period
	PeriodsFailed    []ledger.Period

	FactsPath     string
	SummariesPath string
}

// Service runs the pipeline end to end.
type Service struct {
	source Source
	cfg    Config
	logger *slog.Logger
}

func NewService(source Source, cfg Config, logger *slog.Logger) *Service {
	return &Service{source: source, cfg: cfg, logger: logger}
}

// Run executes one full pipeline pass.
//
// Failure posture: a period that cannot be opened or yields nothing is
// skipped with a warning; a missing operator snapshot degrades the run
// to unresolved identifiers instead of aborting it. Only an empty
// period listing or an empty consolidation input is terminal.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New()
	logger := s.logger.With("run_id", runID.String())

	periods, err := s.source.Periods(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing quarter filings: %w", err)
	}
	if len(periods) == 0 {
		return nil, ErrNoPeriods
	}
	if s.cfg.MaxPeriods > 0 && len(periods) > s.cfg.MaxPeriods {
		periods = periods[:s.cfg.MaxPeriods]
	}
	logger.Info("run started", "periods", len(periods))

	result := &Result{RunID: runID}

	var records []ledger.ExpenseRecord
	for _, p := range periods {
		recs, err := s.extractPeriod(ctx, p, logger)
		if err != nil {
			logger.Warn("period skipped", "period", p.String(), "error", err)
			result.PeriodsFailed = append(result.PeriodsFailed, p)
			continue
		}
		records = append(records, recs...)
		result.PeriodsProcessed = append(result.PeriodsProcessed, p)
	}

	refs := s.loadReferences(ctx, logger)

	facts, err := Consolidate(records, refs, logger)
	if err != nil {
		return nil, err
	}
	result.Facts = facts

	result.Enriched = Enrich(facts, refs.Cadastral, logger)
	result.Summaries = Aggregate(result.Enriched)

	if s.cfg.ResultsDir != "" {
		if err := WriteOutputs(s.cfg.ResultsDir, result.Facts, result.Summaries); err != nil {
			return nil, err
		}
		result.FactsPath = filepath.Join(s.cfg.ResultsDir, FactsFileName)
		result.SummariesPath = filepath.Join(s.cfg.ResultsDir, SummariesFileName)
	}

	logger.Info("run finished",
		"periods_processed", len(result.PeriodsProcessed),
		"periods_failed", len(result.PeriodsFailed),
		"facts", len(result.Facts),
		"summaries", len(result.Summaries),
	)
	return result, nil
}

// extractPeriod opens one filing archive and normalizes every tabular
// entry inside it.
func (s *Service) extractPeriod(ctx context.Context, p ledger.Period, logger *slog.Logger) ([]ledger.ExpenseRecord, error) {
	zr, closer, err := s.source.OpenPeriod(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("opening filing: %w", err)
	}
	defer closer.Close()

	records := normalize.Archive(zr, p, logger)
	if len(records) == 0 {
		return nil, fmt.Errorf("no expense records extracted")
	}
	logger.Info("period extracted", "period", p.String(), "records", len(records))
	return records, nil
}

// loadReferences fetches and parses the operator snapshot. Any failure
// degrades to empty references: consolidation then passes identifiers
// through unresolved and enrichment finds no matches.
func (s *Service) loadReferences(ctx context.Context, logger *slog.Logger) *registry.References {
	rc, err := s.source.OperatorSnapshot(ctx)
	if err != nil {
		logger.Warn("operator snapshot unavailable, continuing without references", "error", err)
		return registry.Empty()
	}
	defer rc.Close()

	table, _, err := tabular.ReadCSV(rc)
	if err != nil {
		logger.Warn("operator snapshot unreadable, continuing without references", "error", err)
		return registry.Empty()
	}

	refs, err := registry.Load(table, logger)
	if err != nil {
		logger.Warn("operator snapshot rejected, continuing without references", "error", err)
		return registry.Empty()
	}
	return refs
}
