package sites

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/elanleads/go-scrape-leads/models"
)

const (
	unvanBase    = "https://unvan.az"
	unvanCatalog = unvanBase + "/avtomobil"
)

// Unvan scrapes unvan.az auto listings. Phones are rendered directly in the
// markup as "(0XX) XXXXXXX", so there is no reveal step.
type Unvan struct{}

func (u *Unvan) Site() models.SiteID {
	return models.SiteUnvan
}

func (u *Unvan) ListingPageURL(page int) string {
	if page <= 1 {
		return unvanCatalog
	}
	return fmt.Sprintf("%s?start=%d", unvanCatalog, page)
}

var unvanListingPattern = regexp.MustCompile(`/[^/]+-\d{6}\.html$`)

func (u *Unvan) ListingRefs(pageHTML []byte, page int) ([]models.ListingRef, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse catalog page: %w", err)
	}

	seen := make(map[string]struct{})
	var refs []models.ListingRef
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !unvanListingPattern.MatchString(href) {
			return
		}
		abs := absoluteURL(unvanBase, href)
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		refs = append(refs, models.ListingRef{
			URL:  abs,
			Site: models.SiteUnvan,
			Page: page,
		})
	})
	return refs, nil
}

var unvanPhonePattern = regexp.MustCompile(`\(0(\d{2})\)\s*(\d{3})(\d{4})`)

func (u *Unvan) ParseListing(ref models.ListingRef, pageHTML []byte) (*models.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	rec := &models.RawRecord{
		Site:  models.SiteUnvan,
		URL:   ref.URL,
		Title: strings.TrimSpace(doc.Find("h1").First().Text()),
	}
	if rec.Title == "" {
		return nil, fmt.Errorf("listing page missing title: %s", ref.URL)
	}

	// Seller name sits next to the user glyph inside the contact block.
	doc.Find(".infocontact span.glyphicon-user").First().Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Parent().Text())
		name = strings.ReplaceAll(name, "(Bütün Elanları)", "")
		rec.SellerName = strings.TrimSpace(name)
	})

	rec.Price = strings.TrimSpace(doc.Find("span.pricecolor").First().Text())

	// Listing attributes are <p><b>key</b> value</p> rows.
	var details []string
	doc.Find("#openhalf p").Each(func(_ int, sel *goquery.Selection) {
		key := strings.TrimSpace(sel.Find("b").First().Text())
		if key == "" {
			return
		}
		value := strings.TrimSpace(strings.Replace(sel.Text(), key, "", 1))
		details = append(details, key+" "+value)
	})
	rec.Description = strings.Join(details, "\n")

	if phoneText := strings.TrimSpace(doc.Find("div.telzona #telshow").First().Text()); phoneText != "" {
		if m := unvanPhonePattern.FindStringSubmatch(phoneText); m != nil {
			rec.PhoneCandidate = m[1] + m[2] + m[3]
		} else {
			rec.PhoneCandidate = phoneText
		}
	}

	return rec, nil
}

// ExtractRevealToken always misses: unvan renders phones inline.
func (u *Unvan) ExtractRevealToken(pageHTML []byte) (string, bool) {
	return "", false
}

func (u *Unvan) RevealRequest(ctx context.Context, ref models.ListingRef, token string) (*http.Request, error) {
	return nil, fmt.Errorf("unvan.az has no reveal endpoint")
}

func (u *Unvan) ParseReveal(body []byte) (string, bool) {
	return "", false
}

func (u *Unvan) FallbackPhone(pageHTML []byte) (string, bool) {
	if m := unvanPhonePattern.FindSubmatch(pageHTML); m != nil {
		return string(m[1]) + string(m[2]) + string(m[3]), true
	}
	return scanFallbackPhone(pageHTML)
}
