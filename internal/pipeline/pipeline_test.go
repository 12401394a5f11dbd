package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdamasceno/ansledger/internal/ledger"
)

// fakeSource serves filings and the operator snapshot from memory.
type fakeSource struct {
	periods  []ledger.Period
	archives map[ledger.Period][]byte
	snapshot string

	periodsErr  error
	snapshotErr error
}

func (f *fakeSource) Periods(context.Context) ([]ledger.Period, error) {
	return f.periods, f.periodsErr
}

func (f *fakeSource) OpenPeriod(_ context.Context, p ledger.Period) (*zip.Reader, io.Closer, error) {
	data, ok := f.archives[p]
	if !ok {
		return nil, nil, errors.New("filing not available")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, err
	}
	return zr, io.NopCloser(nil), nil
}

func (f *fakeSource) OperatorSnapshot(context.Context) (io.ReadCloser, error) {
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return io.NopCloser(strings.NewReader(f.snapshot)), nil
}

func filingArchive(t *testing.T, csv string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("despesas.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const standardFiling = "REG_ANS;DESCRICAO;CD_CONTA_CONTABIL;VL_SALDO_FINAL\n" +
	"123456;Eventos conhecidos;41111;\"1.000,50\"\n" +
	"123456;Receita;31111;\"999,99\"\n"

const operatorSnapshot = "Registro_ANS;CNPJ;Razao_Social;Modalidade;UF\n" +
	"123456;11.222.333/0001-81;OPERADORA ALFA;Cooperativa Médica;SP\n"

func TestServiceRun_EndToEnd(t *testing.T) {
	p := ledger.Period{Year: 2024, Quarter: 1}
	src := &fakeSource{
		periods:  []ledger.Period{p},
		archives: map[ledger.Period][]byte{p: filingArchive(t, standardFiling)},
		snapshot: operatorSnapshot,
	}

	svc := NewService(src, Config{ResultsDir: t.TempDir()}, discardLogger())
	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Facts, 1)
	assert.Equal(t, "11222333000181", result.Facts[0].CNPJ)
	assert.Equal(t, "OPERADORA ALFA", result.Facts[0].LegalName)
	assert.InDelta(t, 1000.50, result.Facts[0].TotalAmount, 1e-9)

	require.Len(t, result.Summaries, 1)
	assert.Equal(t, "SP", result.Summaries[0].UF)
	assert.Equal(t, []ledger.Period{p}, result.PeriodsProcessed)
	assert.FileExists(t, result.FactsPath)
	assert.FileExists(t, result.SummariesPath)
}

func TestServiceRun_SkipsFailedPeriod(t *testing.T) {
	ok := ledger.Period{Year: 2024, Quarter: 2}
	bad := ledger.Period{Year: 2024, Quarter: 1}
	src := &fakeSource{
		periods:  []ledger.Period{ok, bad},
		archives: map[ledger.Period][]byte{ok: filingArchive(t, standardFiling)},
		snapshot: operatorSnapshot,
	}

	svc := NewService(src, Config{}, discardLogger())
	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []ledger.Period{ok}, result.PeriodsProcessed)
	assert.Equal(t, []ledger.Period{bad}, result.PeriodsFailed)
	assert.Len(t, result.Facts, 1)
}

func TestServiceRun_DegradesWithoutSnapshot(t *testing.T) {
	p := ledger.Period{Year: 2024, Quarter: 1}
	src := &fakeSource{
		periods:     []ledger.Period{p},
		archives:    map[ledger.Period][]byte{p: filingArchive(t, standardFiling)},
		snapshotErr: errors.New("portal unavailable"),
	}

	svc := NewService(src, Config{}, discardLogger())
	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Facts, 1)
	assert.Equal(t, "123456", result.Facts[0].CNPJ)
	require.Len(t, result.Enriched, 1)
	assert.False(t, result.Enriched[0].HasCadastralMatch)
	assert.Empty(t, result.Summaries)
}

func TestServiceRun_NoPeriods(t *testing.T) {
	svc := NewService(&fakeSource{}, Config{}, discardLogger())
	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoPeriods)
}

func TestServiceRun_AllPeriodsEmpty(t *testing.T) {
	p := ledger.Period{Year: 2024, Quarter: 1}
	src := &fakeSource{
		periods:  []ledger.Period{p},
		snapshot: operatorSnapshot,
	}

	svc := NewService(src, Config{}, discardLogger())
	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestServiceRun_MaxPeriods(t *testing.T) {
	p1 := ledger.Period{Year: 2024, Quarter: 2}
	p2 := ledger.Period{Year: 2024, Quarter: 1}
	src := &fakeSource{
		periods: []ledger.Period{p1, p2},
		archives: map[ledger.Period][]byte{
			p1: filingArchive(t, standardFiling),
			p2: filingArchive(t, standardFiling),
		},
		snapshot: operatorSnapshot,
	}

	svc := NewService(src, Config{MaxPeriods: 1}, discardLogger())
	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ledger.Period{p1}, result.PeriodsProcessed)
}
