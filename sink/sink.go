// Package sink persists validated leads and enforces phone uniqueness.
package sink

import (
	"context"

	"github.com/elanleads/go-scrape-leads/models"
)

// Outcome classifies the result of an upsert.
type Outcome int

const (
	// Inserted means the lead was stored as a new row.
	Inserted Outcome = iota
	// DuplicateSkipped means a lead with the same phone already exists.
	// This is an expected outcome, not a failure.
	DuplicateSkipped
	// PersistError means the store rejected the lead for another reason.
	PersistError
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case DuplicateSkipped:
		return "duplicate_skipped"
	case PersistError:
		return "persist_error"
	default:
		return "unknown"
	}
}

// Sink accepts validated leads. Upsert never merges: a second lead with an
// already-stored phone yields DuplicateSkipped.
type Sink interface {
	Upsert(ctx context.Context, lead *models.Lead) (Outcome, error)
	Close()
}

// Null accepts every lead without storing it. Runs without a database rely
// on a Deduper wrapper for in-run phone uniqueness.
type Null struct{}

func (Null) Upsert(context.Context, *models.Lead) (Outcome, error) {
	return Inserted, nil
}

func (Null) Close() {}
