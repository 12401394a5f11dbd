package pipeline

import "errors"

var (
	// ErrNoRecords is the run's only terminal data error: nothing
	// survived to the consolidation boundary, so there is no output to
	// produce. Per-file and per-period failures never reach here on
	// their own; only the complete absence of usable data does.
	ErrNoRecords = errors.New("pipeline: no records survived to consolidation")

	// ErrNoPeriods means the source listed no quarter filings at all.
	ErrNoPeriods = errors.New("pipeline: no quarter filings available")
)
