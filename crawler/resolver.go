package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/elanleads/go-scrape-leads/fetch"
	"github.com/elanleads/go-scrape-leads/models"
	"github.com/elanleads/go-scrape-leads/sites"
)

// PageUnavailableError marks a listing whose page could not be fetched
// after retries. The listing is skipped, never the whole run.
type PageUnavailableError struct {
	Ref models.ListingRef
	Err error
}

func (e *PageUnavailableError) Error() string {
	return fmt.Sprintf("listing page unavailable: %s: %v", e.Ref.URL, e.Err)
}

func (e *PageUnavailableError) Unwrap() error {
	return e.Err
}

// ParseFailureError marks a listing page that was fetched but could not
// be parsed into a record.
type ParseFailureError struct {
	Ref models.ListingRef
	Err error
}

func (e *ParseFailureError) Error() string {
	return fmt.Sprintf("listing parse failed: %s: %v", e.Ref.URL, e.Err)
}

func (e *ParseFailureError) Unwrap() error {
	return e.Err
}

// Resolver turns a listing reference into a raw record: fetch the page,
// parse it, and when the phone is hidden run the reveal exchange. A failed
// reveal degrades to scanning the page itself rather than failing the
// listing.
type Resolver struct {
	fetcher *fetch.Fetcher
	parser  sites.Parser
}

// NewResolver builds a resolver for one site.
func NewResolver(fetcher *fetch.Fetcher, parser sites.Parser) *Resolver {
	return &Resolver{fetcher: fetcher, parser: parser}
}

// Resolve fetches and parses one listing. Errors are typed so the caller
// can count skips without string matching.
func (r *Resolver) Resolve(ctx context.Context, ref models.ListingRef) (*models.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, &PageUnavailableError{Ref: ref, Err: err}
	}

	resp, err := r.fetcher.Do(ctx, req)
	if err != nil {
		return nil, &PageUnavailableError{Ref: ref, Err: err}
	}

	rec, err := r.parser.ParseListing(ref, resp.Body)
	if err != nil {
		return nil, &ParseFailureError{Ref: ref, Err: err}
	}

	if rec.PhoneCandidate == "" && rec.RevealToken != "" {
		if phone, ok := r.reveal(ctx, ref, rec.RevealToken); ok {
			rec.PhoneCandidate = phone
		}
	}

	if rec.PhoneCandidate == "" {
		if phone, ok := r.parser.FallbackPhone(resp.Body); ok {
			slog.Debug("phone recovered from page body",
				slog.String("url", ref.URL),
			)
			rec.PhoneCandidate = phone
		}
	}

	return rec, nil
}

// reveal runs the AJAX exchange that trades a page token for the phone.
// Any failure is logged and absorbed; the fallback scan still runs.
func (r *Resolver) reveal(ctx context.Context, ref models.ListingRef, token string) (string, bool) {
	req, err := r.parser.RevealRequest(ctx, ref, token)
	if err != nil {
		slog.Warn("reveal request build failed",
			slog.String("url", ref.URL),
			slog.Any("error", err),
		)
		return "", false
	}

	resp, err := r.fetcher.DoPhase(ctx, req, "reveal")
	if err != nil {
		slog.Warn("reveal call failed",
			slog.String("url", ref.URL),
			slog.Any("error", err),
		)
		return "", false
	}

	phone, ok := r.parser.ParseReveal(resp.Body)
	if !ok {
		slog.Warn("reveal response had no phone",
			slog.String("url", ref.URL),
		)
		return "", false
	}
	return phone, true
}
