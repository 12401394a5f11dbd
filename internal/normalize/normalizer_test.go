package normalize

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/cdamasceno/ansledger/internal/ledger"
	"github.com/cdamasceno/ansledger/internal/tabular"
)

var testPeriod = ledger.Period{Year: 2024, Quarter: 1}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func standardTable(rows [][]string) (*tabular.Table, tabular.Layout) {
	t := &tabular.Table{
		Headers: []string{"REG_ANS", "CD_CONTA_CONTABIL", "DESCRICAO", "VL_SALDO_FINAL"},
		Rows:    rows,
	}
	lay, ok := tabular.ResolveLayout(t)
	if !ok {
		panic("standard layout must resolve")
	}
	return t, lay
}

func TestRecords_StandardAccountFilter(t *testing.T) {
	table, lay := standardTable([][]string{
		{"123", "41001", "Eventos conhecidos", "100,50"},
		{"123", "42010", "Provisoes tecnicas", "200"},
		{"123", "39900", "Receita", "999"},
		{"123", "11101", "Caixa", "50"},
	})

	records := Records(table, lay, testPeriod)

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (only 41/42 accounts)", len(records))
	}
	if records[0].Amount != 100.50 {
		t.Errorf("amount = %v, want 100.50", records[0].Amount)
	}
	if records[0].LegalName != "Operadora 123" {
		t.Errorf("legal name = %q, want placeholder", records[0].LegalName)
	}
	if records[0].Year != 2024 || records[0].Quarter != 1 {
		t.Errorf("period not propagated: %+v", records[0])
	}
}

func TestRecords_StandardSkipsEmptyIdentifier(t *testing.T) {
	table, lay := standardTable([][]string{
		{"", "41001", "Eventos", "10"},
		{"77", "41002", "Eventos", "20"},
	})

	records := Records(table, lay, testPeriod)
	if len(records) != 1 || records[0].Identifier != "77" {
		t.Fatalf("records = %+v, want single record for 77", records)
	}
}

func TestRecords_StandardRaggedRow(t *testing.T) {
	table, lay := standardTable([][]string{
		{"123", "41001"}, // too short: missing amount, kept with 0.0
		{"456", "42001", "Provisao", "30"},
	})

	records := Records(table, lay, testPeriod)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Amount != 0 {
		t.Errorf("short row amount = %v, want 0 fallback", records[0].Amount)
	}
}

func TestRecords_Generic(t *testing.T) {
	table := &tabular.Table{
		Headers: []string{"CNPJ", "RAZAO_SOCIAL", "VALOR"},
		Rows: [][]string{
			{"11.222.333/0001-81", "Operadora Alfa", "R$ 1.234,56"},
			{"00000000000191", "Operadora Beta", "10"},
		},
	}
	lay, ok := tabular.ResolveLayout(table)
	if !ok {
		t.Fatal("generic layout must resolve")
	}

	records := Records(table, lay, testPeriod)

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (no account filter on generic)", len(records))
	}
	if records[0].Identifier != "11222333000181" {
		t.Errorf("identifier = %q, want cleaned digits", records[0].Identifier)
	}
	if records[0].LegalName != "Operadora Alfa" {
		t.Errorf("legal name = %q", records[0].LegalName)
	}
	if records[0].Amount != 1234.56 {
		t.Errorf("amount = %v, want 1234.56", records[0].Amount)
	}
}

func buildZip(t *testing.T, files map[string]string) *zip.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	return zr
}

func TestArchive(t *testing.T) {
	zr := buildZip(t, map[string]string{
		"1T2024/despesas.csv": "REG_ANS;CD_CONTA_CONTABIL;DESCRICAO;VL_SALDO_FINAL\n123;41001;Eventos;10,5\n123;39900;Receita;99\n",
		"1T2024/extra.txt":    "CNPJ,RAZAO_SOCIAL,VALOR\n00000000000191,Beta,20\n",
		"1T2024/leiame.pdf":   "%PDF-1.4 not tabular",
		"1T2024/broken.csv":   "sem delimitador reconhecivel",
	})

	records := Archive(zr, testPeriod, discardLogger())

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	var total float64
	for _, r := range records {
		total += r.Amount
	}
	if total != 30.5 {
		t.Errorf("total = %v, want 30.5", total)
	}
}

func TestFile_NoLayoutIsSkipped(t *testing.T) {
	src := "foo;bar;baz\n1;2;3\n"
	records := File("odd.csv", bytes.NewReader([]byte(src)), testPeriod, discardLogger())
	if records != nil {
		t.Errorf("records = %+v, want nil for unmatched layout", records)
	}
}
