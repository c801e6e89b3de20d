package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/shelter-watch/internal/logger"
	"github.com/pfrederiksen/shelter-watch/internal/observability"
	"github.com/pfrederiksen/shelter-watch/internal/scraper"
	"github.com/pfrederiksen/shelter-watch/internal/shelter"
)

// Fetcher retrieves and parses one page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*goquery.Document, error)
}

// Options configures a run.
type Options struct {
	IndexURL string
	List     scraper.ListOptions

	// Concurrency bounds the number of detail pages fetched at once.
	// 1 fetches sequentially.
	Concurrency int

	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = time.Second
	}
	if o.MaxInterval < o.InitialInterval {
		o.MaxInterval = o.InitialInterval
	}
	return o
}

// Summary describes a finished run.
type Summary struct {
	StartedAt          time.Time                   `json:"started_at"`
	FinishedAt         time.Time                   `json:"finished_at"`
	Announcements      int                         `json:"announcements"`
	Snapshots          int                         `json:"snapshots"`
	DetailPagesSkipped int                         `json:"detail_pages_skipped"`
	Anomalies          map[scraper.AnomalyKind]int `json:"anomalies"`
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// AnomalyTotal sums the anomaly counts of every kind.
func (s Summary) AnomalyTotal() int {
	total := 0
	for _, n := range s.Anomalies {
		total += n
	}
	return total
}

// AnomalyKinds returns the recorded kinds in sorted order.
func (s Summary) AnomalyKinds() []scraper.AnomalyKind {
	kinds := make([]scraper.AnomalyKind, 0, len(s.Anomalies))
	for k := range s.Anomalies {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Result holds the two exported tables of a run.
type Result struct {
	Announcements []shelter.Announcement
	Snapshots     []shelter.Snapshot
	Summary       Summary
}

// batch is the outcome of one announcement's detail page.
type batch struct {
	announcement shelter.Announcement
	snapshots    []shelter.Snapshot
	anomalies    []scraper.Anomaly
	skipped      bool
}

// Pipeline orchestrates the index listing and detail parsing of one run.
type Pipeline struct {
	fetcher Fetcher
	opts    Options
	logger  *logger.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// New creates a Pipeline. A nil log, metrics, or clock falls back to the
// default logger, a fresh metrics registry, and the real clock.
func New(f Fetcher, opts Options, log *logger.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	if log == nil {
		log = logger.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		fetcher: f,
		opts:    opts.withDefaults(),
		logger:  log,
		metrics: metrics,
		clock:   clock,
	}
}

// Run executes one scrape. It returns an error only when the index page
// cannot be fetched or ctx is cancelled; per-page problems are logged,
// counted, and reflected in the Summary.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := p.clock.Now()
	p.logger.Info("Starting scrape", logger.Fields{
		"index_url":   p.opts.IndexURL,
		"keyword":     p.opts.List.Keyword,
		"concurrency": p.opts.Concurrency,
	})

	result := &Result{
		Announcements: make([]shelter.Announcement, 0),
		Snapshots:     make([]shelter.Snapshot, 0),
		Summary: Summary{
			StartedAt: started,
			Anomalies: make(map[scraper.AnomalyKind]int),
		},
	}

	doc, err := p.fetch(ctx, observability.PageIndex, p.opts.IndexURL)
	if err != nil {
		p.finish(result, false)
		return nil, fmt.Errorf("fetching announcement index: %w", err)
	}

	base := doc.Url
	if base == nil {
		base, _ = url.Parse(p.opts.IndexURL)
	}
	listing := scraper.ListAnnouncements(doc, base, p.opts.List)
	p.recordAnomalies(&result.Summary, p.opts.IndexURL, listing.Anomalies)
	p.metrics.AnnouncementsListed.Add(float64(len(listing.Refs)))

	p.logger.Info("Listed announcements", logger.Fields{
		"matched":   len(listing.Refs),
		"anomalies": len(listing.Anomalies),
	})

	batches := make([]batch, len(listing.Refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, ref := range listing.Refs {
		g.Go(func() error {
			batches[i] = p.collect(gctx, ref)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		p.finish(result, false)
		return nil, err
	}

	for _, b := range batches {
		result.Announcements = append(result.Announcements, b.announcement)
		result.Snapshots = append(result.Snapshots, b.snapshots...)
		p.recordAnomalies(&result.Summary, b.announcement.Link, b.anomalies)
		if b.skipped {
			result.Summary.DetailPagesSkipped++
		}
	}

	result.Summary.Announcements = len(result.Announcements)
	result.Summary.Snapshots = len(result.Snapshots)
	p.metrics.SnapshotsParsed.Add(float64(len(result.Snapshots)))
	p.metrics.DetailPagesSkipped.Add(float64(result.Summary.DetailPagesSkipped))
	p.finish(result, true)

	p.logger.Info("Scrape complete", logger.Fields{
		"announcements":        result.Summary.Announcements,
		"snapshots":            result.Summary.Snapshots,
		"detail_pages_skipped": result.Summary.DetailPagesSkipped,
		"anomalies":            result.Summary.AnomalyTotal(),
		"duration":             result.Summary.Duration().String(),
	})

	return result, nil
}

// collect fetches and parses the detail page of ref. The announcement is
// always returned, even when its page could not be fetched.
func (p *Pipeline) collect(ctx context.Context, ref scraper.AnnouncementRef) batch {
	b := batch{announcement: shelter.Announcement{
		Title:  ref.Title,
		Status: ref.Status,
		Date:   ref.Date,
		Link:   ref.Link,
	}}
	if ref.Link == "" {
		return b
	}

	doc, err := p.fetch(ctx, observability.PageDetail, ref.Link)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("Skipping detail page", logger.Fields{
				"url":   ref.Link,
				"title": ref.Title,
			}, err)
		}
		b.skipped = true
		return b
	}

	detail := scraper.ParseDetail(doc)
	b.announcement.Information = detail.Information
	b.snapshots = shelter.Stamp(detail.Rows, ref.Date)
	b.anomalies = detail.Anomalies

	p.logger.Debug("Parsed detail page", logger.Fields{
		"url":       ref.Link,
		"shelters":  len(b.snapshots),
		"defaulted": detail.Defaulted,
	})
	return b
}

// fetch retrieves rawURL, retrying temporary failures with exponential
// backoff up to MaxAttempts attempts in total.
func (p *Pipeline) fetch(ctx context.Context, page, rawURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	operation := func() error {
		start := p.clock.Now()
		d, err := p.fetcher.Fetch(ctx, rawURL)
		p.metrics.FetchDuration.WithLabelValues(page).Observe(p.clock.Since(start).Seconds())
		if err != nil {
			var fe *scraper.FetchError
			if errors.As(err, &fe) && fe.Temporary() {
				return err
			}
			return backoff.Permanent(err)
		}
		doc = d
		return nil
	}

	notify := func(err error, wait time.Duration) {
		p.metrics.Fetches.WithLabelValues(page, observability.OutcomeRetry).Inc()
		p.logger.Warn("Retrying fetch", logger.Fields{
			"url":   rawURL,
			"error": err.Error(),
			"wait":  wait.String(),
		})
	}

	if err := backoff.RetryNotify(operation, p.newBackOff(ctx), notify); err != nil {
		p.metrics.Fetches.WithLabelValues(page, observability.OutcomeError).Inc()
		return nil, err
	}
	p.metrics.Fetches.WithLabelValues(page, observability.OutcomeSuccess).Inc()
	return doc, nil
}

func (p *Pipeline) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.InitialInterval
	b.MaxInterval = p.opts.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.opts.MaxAttempts-1)), ctx)
}

func (p *Pipeline) recordAnomalies(s *Summary, pageURL string, anomalies []scraper.Anomaly) {
	for _, a := range anomalies {
		s.Anomalies[a.Kind]++
		p.metrics.Anomalies.WithLabelValues(string(a.Kind)).Inc()

		fields := logger.Fields{
			"kind": string(a.Kind),
			"url":  pageURL,
			"row":  a.Row,
		}
		if a.Shelter != "" {
			fields["shelter"] = a.Shelter
		}
		if a.Err != nil {
			fields["reason"] = a.Err.Error()
		}
		p.logger.Warn("Parse anomaly", fields)
	}
}

func (p *Pipeline) finish(result *Result, success bool) {
	result.Summary.FinishedAt = p.clock.Now()
	p.metrics.RunDuration.Set(result.Summary.Duration().Seconds())
	p.metrics.LastRunTimestamp.Set(float64(result.Summary.FinishedAt.Unix()))
	if success {
		p.metrics.LastRunSuccess.Set(1)
	} else {
		p.metrics.LastRunSuccess.Set(0)
	}
}
