package sink

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/elanleads/go-scrape-leads/models"
)

// Deduper wraps a Sink with a bounded in-run phone set so duplicates seen
// within the same run are skipped without a round trip to the store. The
// store's unique constraint remains the source of truth.
type Deduper struct {
	next Sink
	seen *lru.Cache[string, struct{}]
}

// NewDeduper wraps next. size bounds the remembered phone set.
func NewDeduper(next Sink, size int) (*Deduper, error) {
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Deduper{next: next, seen: seen}, nil
}

// Upsert short-circuits phones already submitted during this run.
func (d *Deduper) Upsert(ctx context.Context, lead *models.Lead) (Outcome, error) {
	if _, ok := d.seen.Get(lead.Phone); ok {
		return DuplicateSkipped, nil
	}

	outcome, err := d.next.Upsert(ctx, lead)
	if outcome == Inserted || outcome == DuplicateSkipped {
		d.seen.Add(lead.Phone, struct{}{})
	}
	return outcome, err
}

// Close closes the wrapped sink.
func (d *Deduper) Close() {
	d.next.Close()
}
