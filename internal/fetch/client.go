// Package fetch is the open-data portal client. It crawls the
// regulator's FTP-style directory listings for quarter filing archives
// and the active-operator snapshot, caching downloads on disk so a
// re-run never refetches an archive it already holds.
package fetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/cdamasceno/ansledger/internal/ledger"
)

// Portal paths under the base URL.
const (
	statementsPath = "demonstracoes_contabeis/"
	operatorsPath  = "operadoras_de_plano_de_saude_ativas/"
)

// Quarter archive naming varies across publication years; patterns are
// tried in order against the bare file name.
var (
	quarterYearPattern  = regexp.MustCompile(`(?i)^(\d)T(\d{4})\.zip$`)
	quarterWordPattern  = regexp.MustCompile(`(?i)^(\d)-?Trimestre\.zip$`)
	yearQuarterPattern  = regexp.MustCompile(`(?i)^(\d{4})[_-](\d)[_-]?Trimestre\.zip$`)
	looseQuarterPattern = regexp.MustCompile(`(?i)(\d)T`)

	yearDirPattern = regexp.MustCompile(`^(\d{4})/?$`)
)

// Config holds the portal endpoints and timeouts.
type Config struct {
	// BaseURL is the portal root, ending in a slash.
	BaseURL string

	// DataDir caches downloaded archives and snapshots.
	DataDir string

	// Timeout bounds directory listing requests.
	Timeout time.Duration

	// DownloadTimeout bounds archive downloads.
	DownloadTimeout time.Duration
}

// Client lists and downloads portal artifacts. It implements the
// pipeline's Source.
type Client struct {
	cfg      Config
	listing  *http.Client
	download *http.Client
	logger   *slog.Logger

	// filingURLs remembers where each listed period's archive lives;
	// populated by Periods, read by OpenPeriod.
	filingURLs map[ledger.Period]string
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		listing:    &http.Client{Timeout: cfg.Timeout},
		download:   &http.Client{Timeout: cfg.DownloadTimeout},
		logger:     logger,
		filingURLs: make(map[ledger.Period]string),
	}
}

// Periods crawls the statements directory and returns every quarter
// filing it can identify, newest first.
func (c *Client) Periods(ctx context.Context) ([]ledger.Period, error) {
	root := c.cfg.BaseURL + statementsPath
	entries, err := c.listDirectory(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("listing statements directory: %w", err)
	}

	var years []int
	for _, e := range entries {
		if m := yearDirPattern.FindStringSubmatch(e); m != nil {
			y, _ := strconv.Atoi(m[1])
			years = append(years, y)
		}
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("no year directories under %s", root)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	var periods []ledger.Period
	for _, year := range years {
		yearURL := fmt.Sprintf("%s%d/", root, year)
		files, err := c.listDirectory(ctx, yearURL)
		if err != nil {
			c.logger.Warn("year directory unreadable, skipping", "year", year, "error", err)
			continue
		}

		for _, f := range files {
			p, ok := parseQuarterFile(f, year)
			if !ok {
				continue
			}
			if _, seen := c.filingURLs[p]; seen {
				continue
			}
			c.filingURLs[p] = yearURL + f
			periods = append(periods, p)
		}
	}

	sort.Slice(periods, func(i, j int) bool {
		if periods[i].Year != periods[j].Year {
			return periods[i].Year > periods[j].Year
		}
		return periods[i].Quarter > periods[j].Quarter
	})

	c.logger.Info("portal crawl complete", "years", len(years), "periods", len(periods))
	return periods, nil
}

// OpenPeriod returns the filing archive for p, downloading it into the
// cache dir first when absent.
func (c *Client) OpenPeriod(ctx context.Context, p ledger.Period) (*zip.Reader, io.Closer, error) {
	src, ok := c.filingURLs[p]
	if !ok {
		return nil, nil, fmt.Errorf("period %s was not listed", p)
	}

	path := filepath.Join(c.cfg.DataDir, fmt.Sprintf("%d_%s.zip", p.Year, p.Label()))
	if err := c.ensureDownloaded(ctx, src, path); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("opening cached archive %s: %w", path, err)
	}
	return zr, f, nil
}

// OperatorSnapshot downloads the newest active-operator CSV and opens
// it from the cache.
func (c *Client) OperatorSnapshot(ctx context.Context) (io.ReadCloser, error) {
	root := c.cfg.BaseURL + operatorsPath
	entries, err := c.listDirectory(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("listing operators directory: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		if strings.HasSuffix(strings.ToLower(e), ".csv") {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no snapshot CSV under %s", root)
	}
	// Listings are name-sorted; the newest dated snapshot sorts last.
	sort.Strings(candidates)
	name := candidates[len(candidates)-1]

	path := filepath.Join(c.cfg.DataDir, "operadoras_ativas.csv")
	if err := c.ensureDownloaded(ctx, root+name, path); err != nil {
		return nil, err
	}
	return os.Open(path)
}

// ensureDownloaded fetches src into path unless a non-empty cached copy
// already exists. Downloads go through a temp file so a partial fetch
// never poisons the cache.
func (c *Client) ensureDownloaded(ctx context.Context, src, path string) error {
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		c.logger.Debug("using cached download", "path", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	c.logger.Info("downloading", "url", src)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: unexpected status %s", src, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// listDirectory fetches an HTML index page and returns the bare names
// of the entries it links to.
func (c *Client) listDirectory(ctx context.Context, dirURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dirURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.listing.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return parseListing(resp.Body)
}

// parseListing extracts anchor targets from a directory index page,
// keeping only relative entries (files and immediate subdirectories).
func parseListing(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var entries []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if name, ok := listingEntry(attr.Val); ok {
					entries = append(entries, name)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return entries, nil
}

// listingEntry filters an href down to a plain directory entry name.
// Absolute URLs, parent links and query-style sort links are dropped.
func listingEntry(href string) (string, bool) {
	if href == "" || strings.HasPrefix(href, "?") || strings.HasPrefix(href, "#") {
		return "", false
	}
	if strings.Contains(href, "://") || strings.HasPrefix(href, "/") {
		return "", false
	}
	if href == "../" || href == ".." {
		return "", false
	}
	name, err := url.PathUnescape(href)
	if err != nil {
		name = href
	}
	return name, true
}

// parseQuarterFile matches one file name against the known quarter
// archive naming schemes. dirYear is the year directory the file sits
// in, used when the name itself does not carry one.
func parseQuarterFile(name string, dirYear int) (ledger.Period, bool) {
	if m := quarterYearPattern.FindStringSubmatch(name); m != nil {
		q, _ := strconv.Atoi(m[1])
		y, _ := strconv.Atoi(m[2])
		return validPeriod(y, q)
	}
	if m := quarterWordPattern.FindStringSubmatch(name); m != nil {
		q, _ := strconv.Atoi(m[1])
		return validPeriod(dirYear, q)
	}
	if m := yearQuarterPattern.FindStringSubmatch(name); m != nil {
		y, _ := strconv.Atoi(m[1])
		q, _ := strconv.Atoi(m[2])
		return validPeriod(y, q)
	}
	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		if m := looseQuarterPattern.FindStringSubmatch(name); m != nil {
			q, _ := strconv.Atoi(m[1])
			return validPeriod(dirYear, q)
		}
	}
	return ledger.Period{}, false
}

func validPeriod(year, quarter int) (ledger.Period, bool) {
	if quarter < 1 || quarter > 4 || year < 2000 {
		return ledger.Period{}, false
	}
	return ledger.Period{Year: year, Quarter: quarter}, true
}
