package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdamasceno/ansledger/internal/ledger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseQuarterFile(t *testing.T) {
	tests := []struct {
		name    string
		dirYear int
		want    ledger.Period
		ok      bool
	}{
		{"1T2024.zip", 2024, ledger.Period{Year: 2024, Quarter: 1}, true},
		{"3t2023.zip", 2023, ledger.Period{Year: 2023, Quarter: 3}, true},
		{"2-Trimestre.zip", 2022, ledger.Period{Year: 2022, Quarter: 2}, true},
		{"4Trimestre.zip", 2021, ledger.Period{Year: 2021, Quarter: 4}, true},
		{"2020_1_Trimestre.zip", 2020, ledger.Period{Year: 2020, Quarter: 1}, true},
		{"2020-2-trimestre.zip", 2020, ledger.Period{Year: 2020, Quarter: 2}, true},
		{"demonstracoes_1T.zip", 2024, ledger.Period{Year: 2024, Quarter: 1}, true},
		{"Leia-me.pdf", 2024, ledger.Period{}, false},
		{"5T2024.zip", 2024, ledger.Period{}, false},
		{"relatorio.zip", 2024, ledger.Period{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseQuarterFile(tt.name, tt.dirYear)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseListing(t *testing.T) {
	page := `<html><body><pre>
<a href="../">Parent Directory</a>
<a href="?C=M;O=A">Name</a>
<a href="2023/">2023/</a>
<a href="2024/">2024/</a>
<a href="http://example.com/elsewhere">off-site</a>
<a href="Leia-me.txt">Leia-me.txt</a>
</pre></body></html>`

	entries, err := parseListing(bytes.NewReader([]byte(page)))
	require.NoError(t, err)
	assert.Equal(t, []string{"2023/", "2024/", "Leia-me.txt"}, entries)
}

// portal fakes the directory layout of the open-data server.
func portal(t *testing.T, archive []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/demonstracoes_contabeis/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/demonstracoes_contabeis/":
			io.WriteString(w, `<a href="../">..</a><a href="2023/">2023/</a><a href="2024/">2024/</a>`)
		case "/demonstracoes_contabeis/2024/":
			io.WriteString(w, `<a href="1T2024.zip">1T2024.zip</a><a href="2T2024.zip">2T2024.zip</a>`)
		case "/demonstracoes_contabeis/2023/":
			io.WriteString(w, `<a href="4T2023.zip">4T2023.zip</a>`)
		case "/demonstracoes_contabeis/2024/1T2024.zip",
			"/demonstracoes_contabeis/2024/2T2024.zip",
			"/demonstracoes_contabeis/2023/4T2023.zip":
			w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/operadoras_de_plano_de_saude_ativas/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/operadoras_de_plano_de_saude_ativas/":
			io.WriteString(w, `<a href="Relatorio_cadop_2024-01.csv">old</a><a href="Relatorio_cadop_2024-06.csv">new</a>`)
		case "/operadoras_de_plano_de_saude_ativas/Relatorio_cadop_2024-06.csv":
			io.WriteString(w, "Registro_ANS;CNPJ;Razao_Social\n123456;11222333000181;OPERADORA ALFA\n")
		default:
			http.NotFound(w, r)
		}
	})
	return httptest.NewServer(mux)
}

func testArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("despesas.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("REG_ANS;DESCRICAO;VL_SALDO_FINAL\n123456;Eventos;10,00\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:         srv.URL + "/",
		DataDir:         t.TempDir(),
		Timeout:         5 * time.Second,
		DownloadTimeout: 5 * time.Second,
	}, discardLogger())
}

func TestClientPeriods(t *testing.T) {
	srv := portal(t, testArchive(t))
	defer srv.Close()

	periods, err := testClient(t, srv).Periods(context.Background())
	require.NoError(t, err)

	want := []ledger.Period{
		{Year: 2024, Quarter: 2},
		{Year: 2024, Quarter: 1},
		{Year: 2023, Quarter: 4},
	}
	assert.Equal(t, want, periods)
}

func TestClientOpenPeriod_CachesDownload(t *testing.T) {
	srv := portal(t, testArchive(t))
	c := testClient(t, srv)

	ctx := context.Background()
	_, err := c.Periods(ctx)
	require.NoError(t, err)

	p := ledger.Period{Year: 2024, Quarter: 1}
	zr, closer, err := c.OpenPeriod(ctx, p)
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "despesas.csv", zr.File[0].Name)
	require.NoError(t, closer.Close())

	// Second open must come from the cache, not the portal.
	srv.Close()
	zr, closer, err = c.OpenPeriod(ctx, p)
	require.NoError(t, err)
	assert.Len(t, zr.File, 1)
	require.NoError(t, closer.Close())
}

func TestClientOpenPeriod_Unlisted(t *testing.T) {
	srv := portal(t, testArchive(t))
	defer srv.Close()

	_, _, err := testClient(t, srv).OpenPeriod(context.Background(), ledger.Period{Year: 1999, Quarter: 1})
	assert.Error(t, err)
}

func TestClientOperatorSnapshot_PicksNewest(t *testing.T) {
	srv := portal(t, testArchive(t))
	defer srv.Close()

	rc, err := testClient(t, srv).OperatorSnapshot(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "OPERADORA ALFA")
}
