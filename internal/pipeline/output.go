package pipeline

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cdamasceno/ansledger/internal/ledger"
)

// Output file names, fixed by the downstream consumers of the run.
const (
	FactsFileName     = "consolidado_despesas.csv"
	SummariesFileName = "despesas_agregadas.csv"
)

// utf8BOM is prepended to both outputs so spreadsheet tools pick the
// right encoding without prompting.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteFacts writes the consolidated fact table as UTF-8-BOM CSV.
func WriteFacts(w io.Writer, facts []ledger.ConsolidatedFact) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"CNPJ", "RazaoSocial", "Trimestre", "Ano", "ValorDespesas"}); err != nil {
		return err
	}
	for _, f := range facts {
		rec := []string{f.CNPJ, f.LegalName, f.Quarter, f.Year, formatAmount(f.TotalAmount)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaries writes the aggregated rollup as UTF-8-BOM CSV, already
// sorted descending by total expense.
func WriteSummaries(w io.Writer, summaries []ledger.AggregatedSummary) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{
		"RazaoSocial", "UF", "Total_Despesas", "Qtd_Trimestres",
		"Min_Despesa", "Max_Despesa", "Media_Despesas", "Desvio_Padrao", "Coef_Variacao",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range summaries {
		rec := []string{
			s.LegalName,
			s.UF,
			formatAmount(s.TotalExpense),
			strconv.Itoa(s.QuarterCount),
			formatAmount(s.MinExpense),
			formatAmount(s.MaxExpense),
			formatAmount(s.MeanExpense),
			formatAmount(s.StdDev),
			formatAmount(s.CoefVariation),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteOutputs writes both CSVs into dir and compresses each into a
// sibling single-entry ZIP with the same base name.
func WriteOutputs(dir string, facts []ledger.ConsolidatedFact, summaries []ledger.AggregatedSummary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}

	if err := writeFileAndZip(dir, FactsFileName, func(w io.Writer) error {
		return WriteFacts(w, facts)
	}); err != nil {
		return fmt.Errorf("writing consolidated output: %w", err)
	}

	if err := writeFileAndZip(dir, SummariesFileName, func(w io.Writer) error {
		return WriteSummaries(w, summaries)
	}); err != nil {
		return fmt.Errorf("writing aggregated output: %w", err)
	}

	return nil
}

// writeFileAndZip writes name into dir via build, then zips the result
// as <name minus .csv>.zip containing the single CSV entry.
func writeFileAndZip(dir, name string, build func(io.Writer) error) error {
	csvPath := filepath.Join(dir, name)

	f, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	if err := build(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	zipPath := csvPath[:len(csvPath)-len(filepath.Ext(csvPath))] + ".zip"
	zf, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer zf.Close()

	zw := zip.NewWriter(zf)
	entry, err := zw.Create(name)
	if err != nil {
		return err
	}
	src, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer src.Close()
	if _, err := io.Copy(entry, src); err != nil {
		return err
	}
	return zw.Close()
}

// formatAmount renders monetary values with two decimal places, the
// precision both outputs are consumed at.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
