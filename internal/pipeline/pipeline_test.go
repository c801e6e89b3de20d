package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/shelter-watch/internal/logger"
	"github.com/pfrederiksen/shelter-watch/internal/observability"
	"github.com/pfrederiksen/shelter-watch/internal/pipeline"
	"github.com/pfrederiksen/shelter-watch/internal/scraper"
	"github.com/pfrederiksen/shelter-watch/internal/shelter"
	"github.com/pfrederiksen/shelter-watch/internal/timeseries"
)

const (
	titlePrefix = "今治市 避難所情報 :"
	indexURL    = "https://city-imabari.my.salesforce-sites.com/K_PUB_VF_HinanjyoList"
	detailBase  = "https://city-imabari.my.salesforce-sites.com/K_PUB_VF_HinanjyoDetail?id="
)

var jst = time.FixedZone("JST", 9*60*60)

// --- fakes ---

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string][]error
	calls    map[string]int

	// clock, when set, is advanced by latency on every fetch.
	clock   *clockwork.FakeClock
	latency time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:    make(map[string]string),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[rawURL]++
	if f.clock != nil {
		f.clock.Advance(f.latency)
	}
	if err := ctx.Err(); err != nil {
		return nil, &scraper.FetchError{URL: rawURL, Err: err}
	}
	if errs := f.failures[rawURL]; len(errs) > 0 {
		f.failures[rawURL] = errs[1:]
		return nil, errs[0]
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, &scraper.FetchError{URL: rawURL, StatusCode: http.StatusNotFound}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc.Url, _ = url.Parse(rawURL)
	return doc, nil
}

func (f *fakeFetcher) callCount(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func unavailable(rawURL string, n int) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = &scraper.FetchError{URL: rawURL, StatusCode: http.StatusServiceUnavailable}
	}
	return errs
}

// --- helpers ---

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/fixtures/" + name)
	require.NoError(t, err, "failed to load test fixture")
	return string(data)
}

type entry struct {
	status, date, title, href string
}

// indexPage renders entries newest first, the way the site lists them.
func indexPage(entries ...entry) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="volunteer">`)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		link := e.title
		if e.href != "" {
			link = fmt.Sprintf(`<a href="%s">%s</a>`, e.href, e.title)
		}
		fmt.Fprintf(&b, `<dl><dt>%s</dt><dd><p>%s</p><p>%s</p></dd></dl>`, e.status, e.date, link)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func detailPage(rows ...string) string {
	return `<html><body><p>補足情報：避難所を開設しています。</p><table class="listViewTable"><tbody>` +
		strings.Join(rows, "") + `</tbody></table></body></html>`
}

func shelterRow(name string, occupants int) string {
	return fmt.Sprintf(`<tr><td>%s</td><td>開設</td><td>今治市</td>`+
		`<td><a onclick="showMap('lat=34.0&lng=132.9')">地図</a></td>`+
		`<td>000-0000</td><td>50</td><td>1</td><td>%d</td></tr>`, name, occupants)
}

func testOptions() pipeline.Options {
	return pipeline.Options{
		IndexURL: indexURL,
		List: scraper.ListOptions{
			Keyword:     "今治市長沢林野火災",
			TitlePrefix: titlePrefix,
			Location:    jst,
		},
		Concurrency:     1,
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func newTestPipeline(f pipeline.Fetcher, opts pipeline.Options) (*pipeline.Pipeline, *observability.Metrics, *clockwork.FakeClock) {
	metrics := observability.NewMetrics()
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.March, 25, 6, 0, 0, 0, time.UTC))
	log := logger.New(logger.LevelDebug, &bytes.Buffer{})
	return pipeline.New(f, opts, log, metrics, clock), metrics, clock
}

// --- tests ---

func TestRun_Fixtures(t *testing.T) {
	f := newFakeFetcher()
	f.pages[indexURL] = loadFixture(t, "index.html")
	f.pages[detailBase+"a1"] = loadFixture(t, "detail.html")
	f.pages[detailBase+"a2"] = `<html><body><p>表はありません</p></body></html>`
	// a3 is missing and answers 404.

	p, metrics, clock := newTestPipeline(f, testOptions())

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Announcements, 3)
	assert.Equal(t, "今治市長沢林野火災（第1報）", result.Announcements[0].Title)
	assert.Equal(t, "今治市長沢林野火災（第2報）", result.Announcements[1].Title)
	assert.Equal(t, "今治市長沢林野火災（第3報）", result.Announcements[2].Title)
	assert.Equal(t, detailBase+"a2", result.Announcements[1].Link)
	assert.Equal(t, "開設中", result.Announcements[2].Status)
	assert.Contains(t, result.Announcements[0].Information, "補足情報")
	assert.Empty(t, result.Announcements[2].Information, "skipped page contributes no information")

	first := time.Date(2025, time.March, 23, 20, 40, 0, 0, jst)
	require.Len(t, result.Snapshots, 3)
	for _, s := range result.Snapshots {
		assert.True(t, s.Date.Equal(first), "snapshot %s stamped with %v", s.ShelterName, s.Date)
	}
	assert.Equal(t, "長沢公民館", result.Snapshots[0].ShelterName)

	s := result.Summary
	assert.Equal(t, 3, s.Announcements)
	assert.Equal(t, 3, s.Snapshots)
	assert.Equal(t, 1, s.DetailPagesSkipped)
	assert.Equal(t, 1, s.Anomalies[scraper.AnomalyCoordinateNotFound])
	assert.Equal(t, 1, s.Anomalies[scraper.AnomalyTableNotFound])
	assert.Equal(t, 2, s.AnomalyTotal())
	assert.Equal(t, []scraper.AnomalyKind{scraper.AnomalyCoordinateNotFound, scraper.AnomalyTableNotFound}, s.AnomalyKinds())
	assert.Equal(t, clock.Now(), s.StartedAt)
	assert.Equal(t, time.Duration(0), s.Duration())

	assert.Equal(t, 1, f.callCount(detailBase+"a3"), "404 is not retried")

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.AnnouncementsListed))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.SnapshotsParsed))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DetailPagesSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Fetches.WithLabelValues(observability.PageIndex, observability.OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Fetches.WithLabelValues(observability.PageDetail, observability.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Fetches.WithLabelValues(observability.PageDetail, observability.OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Anomalies.WithLabelValues(string(scraper.AnomalyTableNotFound))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LastRunSuccess))
}

// fetchDurations returns the sample count and sum of the fetch duration
// histogram for page.
func fetchDurations(t *testing.T, metrics *observability.Metrics, page string) (uint64, float64) {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "shelter_watch_fetch_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "page" && lp.GetValue() == page {
					return m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()
				}
			}
		}
	}
	t.Fatalf("no fetch duration samples for page %q", page)
	return 0, 0
}

func TestRun_FetchDurationUsesClock(t *testing.T) {
	f := newFakeFetcher()
	f.pages[indexURL] = indexPage(
		entry{"開設", "2025/03/23 20:00", "今治市長沢林野火災（第1報）", detailBase + "a"},
		entry{"開設", "2025/03/24 08:00", "今治市長沢林野火災（第2報）", detailBase + "b"},
	)
	f.pages[detailBase+"a"] = detailPage(shelterRow("X", 7))
	f.pages[detailBase+"b"] = detailPage(shelterRow("X", 4))

	p, metrics, clock := newTestPipeline(f, testOptions())
	f.clock = clock
	f.latency = 250 * time.Millisecond
	started := clock.Now()

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	count, sum := fetchDurations(t, metrics, observability.PageIndex)
	assert.Equal(t, uint64(1), count)
	assert.InDelta(t, 0.25, sum, 1e-9)

	count, sum = fetchDurations(t, metrics, observability.PageDetail)
	assert.Equal(t, uint64(2), count)
	assert.InDelta(t, 0.5, sum, 1e-9)

	assert.Equal(t, started, result.Summary.StartedAt)
	assert.Equal(t, 750*time.Millisecond, result.Summary.Duration())
	assert.InDelta(t, 0.75, testutil.ToFloat64(metrics.RunDuration), 1e-9)
}

func TestRun_TwoAnnouncementsBuildDelta(t *testing.T) {
	f := newFakeFetcher()
	f.pages[indexURL] = indexPage(
		entry{"開設", "2025/03/23 20:00", "今治市長沢林野火災（第1報）", detailBase + "a"},
		entry{"開設", "2025/03/24 08:00", "今治市長沢林野火災（第2報）", detailBase + "b"},
	)
	f.pages[detailBase+"a"] = detailPage(shelterRow("X", 7))
	f.pages[detailBase+"b"] = detailPage(shelterRow("X", 4))

	p, _, _ := newTestPipeline(f, testOptions())
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	m := timeseries.Build(result.Announcements, result.Snapshots)
	assert.Equal(t, []string{"X"}, m.Shelters())
	assert.Equal(t, []int{7, 4}, m.Cumulative().Column("X"))
	assert.Equal(t, []int{7, -3}, m.Delta().Column("X"))
}

func TestRun_RetriesTemporaryFailures(t *testing.T) {
	f := newFakeFetcher()
	f.pages[indexURL] = indexPage(entry{"開設", "2025/03/23 20:00", "今治市長沢林野火災（第1報）", detailBase + "a"})
	f.pages[detailBase+"a"] = detailPage(shelterRow("X", 7))
	f.failures[indexURL] = unavailable(indexURL, 1)
	f.failures[detailBase+"a"] = unavailable(detailBase+"a", 2)

	p, metrics, _ := newTestPipeline(f, testOptions())
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, f.callCount(indexURL))
	assert.Equal(t, 3, f.callCount(detailBase+"a"))
	assert.Len(t, result.Snapshots, 1)
	assert.Equal(t, 0, result.Summary.DetailPagesSkipped)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Fetches.WithLabelValues(observability.PageDetail, observability.OutcomeRetry)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Fetches.WithLabelValues(observability.PageIndex, observability.OutcomeRetry)))
}

func TestRun_SkipsDetailPageAfterRetries(t *testing.T) {
	f := newFakeFetcher()
	f.pages[indexURL] = indexPage(
		entry{"開設", "2025/03/23 20:00", "今治市長沢林野火災（第1報）", detailBase + "a"},
		entry{"開設", "2025/03/24 08:00", "今治市長沢林野火災（第2報）", detailBase + "b"},
	)
	f.pages[detailBase+"a"] = detailPage(shelterRow("X", 7))
	f.pages[detailBase+"b"] = detailPage(shelterRow("X", 4))
	f.failures[detailBase+"a"] = unavailable(detailBase+"a", 10)

	opts := testOptions()
	opts.MaxAttempts = 2
	p, _, _ := newTestPipeline(f, opts)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, f.callCount(detailBase+"a"))
	require.Len(t, result.Announcements, 2, "announcement row is kept when its page fails")
	assert.Equal(t, detailBase+"a", result.Announcements[0].Link)
	require.Len(t, result.Snapshots, 1)
	assert.Equal(t, 4, result.Snapshots[0].Occupants)
	assert.Equal(t, 1, result.Summary.DetailPagesSkipped)
}

func TestRun_IndexFailureAborts(t *testing.T) {
	f := newFakeFetcher()
	f.failures[indexURL] = unavailable(indexURL, 10)

	p, metrics, _ := newTestPipeline(f, testOptions())
	result, err := p.Run(context.Background())

	require.Error(t, err)
	assert.Nil(t, result)
	var fe *scraper.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, 3, f.callCount(indexURL))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.LastRunSuccess))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Fetches.WithLabelValues(observability.PageIndex, observability.OutcomeError)))
}

func TestRun_MissingLinkKeepsAnnouncement(t *testing.T) {
	f := newFakeFetcher()
	f.pages[indexURL] = indexPage(entry{"開設", "2025/03/23 20:00", "今治市長沢林野火災（第1報）", ""})

	p, _, _ := newTestPipeline(f, testOptions())
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Announcements, 1)
	assert.Empty(t, result.Announcements[0].Link)
	assert.Empty(t, result.Snapshots)
	assert.Equal(t, 0, result.Summary.DetailPagesSkipped)
	assert.Equal(t, 1, result.Summary.Anomalies[scraper.AnomalyLinkMissing])
}

func TestRun_UnparsedDateKeepsRows(t *testing.T) {
	f := newFakeFetcher()
	f.pages[indexURL] = indexPage(entry{"開設", "日時未定", "今治市長沢林野火災（第1報）", detailBase + "a"})
	f.pages[detailBase+"a"] = detailPage(shelterRow("X", 7))

	p, _, _ := newTestPipeline(f, testOptions())
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Announcements, 1)
	assert.False(t, result.Announcements[0].HasDate())
	require.Len(t, result.Snapshots, 1)
	assert.True(t, result.Snapshots[0].Date.IsZero())
	assert.Equal(t, 1, result.Summary.Anomalies[scraper.AnomalyDateUnparsed])
}

func TestRun_NoMatches(t *testing.T) {
	f := newFakeFetcher()
	f.pages[indexURL] = indexPage(entry{"閉鎖", "2025/03/10 08:00", "大雨警報に伴う避難所開設", detailBase + "x"})

	p, _, _ := newTestPipeline(f, testOptions())
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Announcements)
	assert.Empty(t, result.Snapshots)
	assert.Equal(t, 0, f.callCount(detailBase+"x"))
}

func TestRun_ConcurrentPreservesOrder(t *testing.T) {
	f := newFakeFetcher()
	var entries []entry
	for i := 1; i <= 12; i++ {
		link := fmt.Sprintf("%s%02d", detailBase, i)
		entries = append(entries, entry{
			status: "開設",
			date:   fmt.Sprintf("2025/03/%02d 12:00", i),
			title:  fmt.Sprintf("今治市長沢林野火災（第%d報）", i),
			href:   link,
		})
		f.pages[link] = detailPage(shelterRow(fmt.Sprintf("S%02d", i), i))
	}
	f.pages[indexURL] = indexPage(entries...)

	opts := testOptions()
	opts.Concurrency = 4
	p, _, _ := newTestPipeline(f, opts)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Announcements, 12)
	require.Len(t, result.Snapshots, 12)
	for i := range 12 {
		assert.Equal(t, fmt.Sprintf("今治市長沢林野火災（第%d報）", i+1), result.Announcements[i].Title)
		assert.Equal(t, fmt.Sprintf("S%02d", i+1), result.Snapshots[i].ShelterName)
		assert.Equal(t, i+1, result.Snapshots[i].Occupants)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	f := newFakeFetcher()
	f.pages[indexURL] = indexPage()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _, _ := newTestPipeline(f, testOptions())
	_, err := p.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.callCount(indexURL))
}

func TestRun_HTTP(t *testing.T) {
	var gotUA string
	mux := http.NewServeMux()
	mux.HandleFunc("/K_PUB_VF_HinanjyoList", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, indexPage(
			entry{"開設", "2025/03/23 20:00", "今治市 避難所情報 :今治市長沢林野火災（第1報）", "K_PUB_VF_HinanjyoDetail?id=a"},
		))
	})
	mux.HandleFunc("/K_PUB_VF_HinanjyoDetail", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, detailPage(shelterRow("長沢公民館", 7)))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	opts := testOptions()
	opts.IndexURL = server.URL + "/K_PUB_VF_HinanjyoList"
	p, _, _ := newTestPipeline(scraper.New(scraper.WithUserAgent("shelter-watch-test")), opts)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "shelter-watch-test", gotUA)
	require.Len(t, result.Announcements, 1)
	assert.Equal(t, "今治市長沢林野火災（第1報）", result.Announcements[0].Title)
	assert.Equal(t, server.URL+"/K_PUB_VF_HinanjyoDetail?id=a", result.Announcements[0].Link)
	assert.Equal(t, "補足情報:避難所を開設しています。", result.Announcements[0].Information)

	require.Len(t, result.Snapshots, 1)
	snap := result.Snapshots[0]
	assert.Equal(t, "長沢公民館", snap.ShelterName)
	assert.Equal(t, 7, snap.Occupants)
	assert.Equal(t, shelter.StatusOpen, snap.OpenStatus)
	assert.True(t, snap.Date.Equal(time.Date(2025, time.March, 23, 20, 0, 0, 0, jst)))
}
