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
	emlakBase    = "https://emlak.az"
	emlakCatalog = emlakBase + "/elanlar/?ann_type=1&sort_type=0"
)

// Emlak scrapes emlak.az sale listings. Phones sit inline in the seller
// box, occasionally several of them separated by commas; the first one is
// taken as the candidate.
type Emlak struct{}

func (e *Emlak) Site() models.SiteID {
	return models.SiteEmlak
}

func (e *Emlak) ListingPageURL(page int) string {
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf("%s&page=%d", emlakCatalog, page)
}

var emlakIDPattern = regexp.MustCompile(`/(\d{4,})-`)

func (e *Emlak) ListingRefs(pageHTML []byte, page int) ([]models.ListingRef, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse catalog page: %w", err)
	}

	var refs []models.ListingRef
	doc.Find("div.ticket h6.title a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" {
			return
		}
		abs := absoluteURL(emlakBase, href)
		ref := models.ListingRef{
			URL:  abs,
			Site: models.SiteEmlak,
			Page: page,
		}
		if m := emlakIDPattern.FindStringSubmatch(abs); m != nil {
			ref.ListingID = m[1]
		}
		refs = append(refs, ref)
	})
	return refs, nil
}

func (e *Emlak) ParseListing(ref models.ListingRef, pageHTML []byte) (*models.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	rec := &models.RawRecord{
		Site:      models.SiteEmlak,
		URL:       ref.URL,
		ListingID: ref.ListingID,
		Title:     strings.TrimSpace(doc.Find("h1.title").First().Text()),
	}
	if rec.Title == "" {
		rec.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if rec.Title == "" {
		return nil, fmt.Errorf("listing page missing title: %s", ref.URL)
	}

	rec.Price = strings.TrimSpace(doc.Find("div.price span.m").First().Text())
	rec.Description = strings.TrimSpace(doc.Find("div.desc").First().Text())

	// Attributes live in a <dl>: each <dd> holds a labelled value.
	var details []string
	doc.Find("dl.technical-characteristics dd").Each(func(_ int, sel *goquery.Selection) {
		key := strings.TrimSpace(sel.Find("span.label").First().Text())
		if key == "" {
			return
		}
		value := strings.TrimSpace(strings.Replace(sel.Text(), key, "", 1))
		switch {
		case strings.HasPrefix(key, "Otaq"):
			rec.RoomCount = digitRun.FindString(value)
		case strings.HasPrefix(key, "Sahə"):
			rec.Area = value
		case strings.HasPrefix(key, "Mərtəbə"):
			rec.Floor = value
		}
		details = append(details, key+" "+value)
	})
	if len(details) > 0 {
		if rec.Description != "" {
			rec.Description += "\n"
		}
		rec.Description += strings.Join(details, "\n")
	}

	box := doc.Find("div.seller-data div.silver-box").First()
	box.Find("p.name-seller").First().Contents().EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if goquery.NodeName(node) != "#text" {
			return true
		}
		if name := strings.TrimSpace(node.Text()); name != "" {
			rec.SellerName = name
			return false
		}
		return true
	})

	if phoneText := strings.TrimSpace(box.Find("p.phone").First().Text()); phoneText != "" {
		first, _, _ := strings.Cut(phoneText, ",")
		rec.PhoneCandidate = strings.TrimSpace(first)
	}

	return rec, nil
}

// ExtractRevealToken always misses: emlak renders phones inline.
func (e *Emlak) ExtractRevealToken(pageHTML []byte) (string, bool) {
	return "", false
}

func (e *Emlak) RevealRequest(ctx context.Context, ref models.ListingRef, token string) (*http.Request, error) {
	return nil, fmt.Errorf("emlak.az has no reveal endpoint")
}

func (e *Emlak) ParseReveal(body []byte) (string, bool) {
	return "", false
}

func (e *Emlak) FallbackPhone(pageHTML []byte) (string, bool) {
	return scanFallbackPhone(pageHTML)
}
