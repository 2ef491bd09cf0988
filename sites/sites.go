// Package sites isolates per-site markup quirks behind a single Parser
// interface so the crawl, retry, and validation core is written once.
package sites

import (
	"context"
	"fmt"
	"net/http"

	"github.com/elanleads/go-scrape-leads/models"
)

// Parser extracts listings from one classifieds site. Implementations must
// be safe for concurrent use; they hold no per-run state.
type Parser interface {
	// Site identifies the website this parser handles.
	Site() models.SiteID

	// ListingPageURL returns the catalog URL for a 1-based page index.
	ListingPageURL(page int) string

	// ListingRefs enumerates listing references from a catalog page, in
	// document order.
	ListingRefs(pageHTML []byte, page int) ([]models.ListingRef, error)

	// ParseListing extracts a raw record from a listing page. The phone
	// candidate is left empty when the site hides it behind the AJAX
	// reveal call; RevealToken is then populated via ExtractRevealToken.
	ParseListing(ref models.ListingRef, pageHTML []byte) (*models.RawRecord, error)

	// ExtractRevealToken finds the token the reveal endpoint expects.
	ExtractRevealToken(pageHTML []byte) (string, bool)

	// RevealRequest builds the secondary request that exchanges the token
	// for the seller's phone number.
	RevealRequest(ctx context.Context, ref models.ListingRef, token string) (*http.Request, error)

	// ParseReveal extracts the phone string from a reveal response body.
	ParseReveal(body []byte) (string, bool)

	// FallbackPhone scans the listing page itself for a phone number after
	// the reveal path has been exhausted.
	FallbackPhone(pageHTML []byte) (string, bool)
}

var registry = map[models.SiteID]Parser{
	models.SiteTezbazar: &Tezbazar{},
	models.SiteUnvan:    &Unvan{},
	models.SiteEmlak:    &Emlak{},
}

// ForSite returns the parser registered for id.
func ForSite(id models.SiteID) (Parser, error) {
	p, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("no parser registered for site %q", id)
	}
	return p, nil
}

// All lists the registered site IDs.
func All() []models.SiteID {
	out := make([]models.SiteID, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	return out
}
