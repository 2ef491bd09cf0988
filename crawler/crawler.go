// Package crawler drives pagination, listing resolution, phone validation,
// and lead persistence for one site.
package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/elanleads/go-scrape-leads/config"
	"github.com/elanleads/go-scrape-leads/export"
	"github.com/elanleads/go-scrape-leads/fetch"
	"github.com/elanleads/go-scrape-leads/models"
	"github.com/elanleads/go-scrape-leads/phone"
	"github.com/elanleads/go-scrape-leads/sink"
	"github.com/elanleads/go-scrape-leads/sites"
)

// maxInvalidSamples bounds the rejected-phone examples kept for the
// end-of-run report.
const maxInvalidSamples = 5

// Controller owns one crawl run. Workers resolve listings concurrently;
// all counting and persistence happens on the controller goroutine, so
// CrawlStats needs no locking.
type Controller struct {
	cfg       *config.Config
	parser    sites.Parser
	fetcher   *fetch.Fetcher
	resolver  *Resolver
	validator phone.Validator
	sink      sink.Sink
	writer    export.Writer
	metrics   *Metrics
	delay     *rate.Limiter
}

// NewController wires the crawl pipeline for the parser's site.
func NewController(
	cfg *config.Config,
	parser sites.Parser,
	fetcher *fetch.Fetcher,
	validator phone.Validator,
	snk sink.Sink,
	writer export.Writer,
	metrics *Metrics,
) *Controller {
	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}

	return &Controller{
		cfg:       cfg,
		parser:    parser,
		fetcher:   fetcher,
		resolver:  NewResolver(fetcher, parser),
		validator: validator,
		sink:      snk,
		writer:    writer,
		metrics:   metrics,
		delay:     rate.NewLimiter(limit, 1),
	}
}

// result carries one listing's outcome from a worker to the controller.
type result struct {
	ref models.ListingRef
	rec *models.RawRecord
	err error
}

// Run paginates the catalog until the page limit, the listing quota, an
// empty page, or cancellation. Pages are processed one at a time: every
// listing on page N is resolved and counted before page N+1 is fetched.
func (c *Controller) Run(ctx context.Context) (*models.CrawlStats, error) {
	stats := &models.CrawlStats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	seen := make(map[string]struct{})
	dispatched := 0

	for page := 1; c.cfg.MaxPages <= 0 || page <= c.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pageURL := c.parser.ListingPageURL(page)
		body, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			if fetch.IsCancelled(err) {
				return stats, err
			}
			slog.Error("catalog page unavailable, stopping pagination",
				slog.String("url", pageURL),
				slog.Int("page", page),
				slog.Any("error", err),
			)
			c.metrics.IncError("catalog_page")
			break
		}

		refs, err := c.parser.ListingRefs(body, page)
		if err != nil {
			slog.Error("catalog page parse failed, stopping pagination",
				slog.String("url", pageURL),
				slog.Any("error", err),
			)
			c.metrics.IncError("catalog_parse")
			break
		}
		batch := make([]models.ListingRef, 0, len(refs))
		for _, ref := range refs {
			if _, dup := seen[ref.URL]; dup {
				continue
			}
			seen[ref.URL] = struct{}{}
			if c.cfg.MaxListings > 0 && dispatched >= c.cfg.MaxListings {
				break
			}
			batch = append(batch, ref)
			dispatched++
		}

		// Sites clamp the start offset past the last page and serve the
		// final page again; a page with no new listings ends the crawl.
		if len(batch) == 0 {
			slog.Info("catalog exhausted",
				slog.Int("page", page),
				slog.Int("stale_refs", len(refs)),
			)
			break
		}

		stats.PagesProcessed++
		stats.ListingsFound += len(batch)

		slog.Info("processing catalog page",
			slog.Int("page", page),
			slog.Int("listings", len(batch)),
		)

		if err := c.processBatch(ctx, stats, batch); err != nil {
			return stats, err
		}

		if c.cfg.MaxListings > 0 && dispatched >= c.cfg.MaxListings {
			slog.Info("listing quota reached", slog.Int("dispatched", dispatched))
			break
		}
	}

	return stats, nil
}

// processBatch resolves one page's listings concurrently and aggregates
// their outcomes. It returns only on cancellation; per-listing failures
// are counted as skips.
func (c *Controller) processBatch(ctx context.Context, stats *models.CrawlStats, batch []models.ListingRef) error {
	if len(batch) == 0 {
		return nil
	}

	results := make(chan result, len(batch))
	g, gctx := errgroup.WithContext(ctx)

	for _, ref := range batch {
		if err := c.delay.Wait(ctx); err != nil {
			break
		}
		g.Go(func() error {
			rec, err := c.resolver.Resolve(gctx, ref)
			results <- result{ref: ref, rec: rec, err: err}
			if err != nil && fetch.IsCancelled(err) {
				return err
			}
			return nil
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	for res := range results {
		c.aggregate(ctx, stats, res)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// aggregate applies one listing outcome to the run stats and, for valid
// phones, persists and exports the lead. Runs only on the controller
// goroutine.
func (c *Controller) aggregate(ctx context.Context, stats *models.CrawlStats, res result) {
	if res.err != nil {
		stats.SkippedCount++
		label := "unavailable"
		if _, ok := res.err.(*ParseFailureError); ok {
			label = "parse_failure"
		}
		c.metrics.IncListing(label)
		slog.Warn("listing skipped",
			slog.String("url", res.ref.URL),
			slog.String("reason", label),
			slog.Any("error", res.err),
		)
		return
	}

	stats.ResolvedCount++
	rec := res.rec

	if rec.PhoneCandidate == "" {
		stats.MissingPhone++
		c.metrics.IncListing("missing_phone")
		slog.Debug("listing had no phone", slog.String("url", rec.URL))
		return
	}
	c.metrics.IncListing("resolved")

	v := c.validator.Validate(rec.PhoneCandidate)
	if !v.Valid {
		stats.InvalidCount++
		c.metrics.IncPhone(string(v.Reason))
		if len(stats.InvalidSamples) < maxInvalidSamples {
			stats.InvalidSamples = append(stats.InvalidSamples, models.InvalidSample{
				Raw:    v.Raw,
				Reason: string(v.Reason),
				URL:    rec.URL,
			})
		}
		slog.Debug("phone rejected",
			slog.String("url", rec.URL),
			slog.String("reason", string(v.Reason)),
		)
		return
	}

	stats.ValidCount++
	c.metrics.IncPhone("valid")

	lead, err := c.buildLead(rec, v.Normalized)
	if err != nil {
		stats.PersistErrors++
		c.metrics.IncLead("error")
		slog.Error("lead assembly failed", slog.String("url", rec.URL), slog.Any("error", err))
		return
	}

	outcome, err := c.sink.Upsert(ctx, lead)
	switch outcome {
	case sink.Inserted:
		stats.InsertedCount++
		c.metrics.IncLead("inserted")
		if werr := c.writer.Write([]*models.Lead{lead}); werr != nil {
			slog.Error("export write failed", slog.String("phone", lead.Phone), slog.Any("error", werr))
		}
	case sink.DuplicateSkipped:
		stats.DuplicateCount++
		c.metrics.IncLead("duplicate")
		slog.Debug("duplicate phone skipped",
			slog.String("phone", lead.Phone),
			slog.String("url", rec.URL),
		)
	default:
		stats.PersistErrors++
		c.metrics.IncLead("error")
		slog.Error("lead persist failed",
			slog.String("phone", lead.Phone),
			slog.Any("error", err),
		)
	}
}

func (c *Controller) buildLead(rec *models.RawRecord, normalized string) (*models.Lead, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal raw record: %w", err)
	}

	name := rec.SellerName
	if name == "" {
		name = rec.Title
	}

	return &models.Lead{
		Name:      name,
		Phone:     normalized,
		Website:   string(rec.Site),
		Link:      rec.URL,
		ScrapedAt: time.Now().UTC(),
		RawData:   string(raw),
	}, nil
}

func (c *Controller) fetchPage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.fetcher.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
