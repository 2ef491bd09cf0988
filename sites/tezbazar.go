package sites

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/elanleads/go-scrape-leads/models"
)

const (
	tezbazarBase     = "https://tezbazar.az"
	tezbazarCatalog  = tezbazarBase + "/dasinmaz-emlak-ev-elanlari"
	tezbazarAjax     = tezbazarBase + "/ajax.php"
	tezbazarCategory = "dasinmaz-emlak-ev-elanlari"
)

// Tezbazar scrapes tezbazar.az real-estate listings. Phones are hidden
// behind an AJAX "telshow" call keyed by a 32-char hash embedded in the
// listing page.
type Tezbazar struct{}

func (t *Tezbazar) Site() models.SiteID {
	return models.SiteTezbazar
}

// ListingPageURL paginates with a "start" offset that advances by 3 per
// catalog page.
func (t *Tezbazar) ListingPageURL(page int) string {
	if page <= 1 {
		return tezbazarCatalog
	}
	return fmt.Sprintf("%s/?start=%d", tezbazarCatalog, (page-1)*3)
}

var (
	tezbazarIDPattern = regexp.MustCompile(`-(\d+)\.html$`)
	digitRun          = regexp.MustCompile(`\d+`)
)

func (t *Tezbazar) ListingRefs(pageHTML []byte, page int) ([]models.ListingRef, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse catalog page: %w", err)
	}

	var refs []models.ListingRef
	doc.Find("div.nobj div.prodname a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.HasSuffix(href, ".html") {
			return
		}
		abs := absoluteURL(tezbazarBase, href)
		ref := models.ListingRef{
			URL:  abs,
			Site: models.SiteTezbazar,
			Page: page,
		}
		if m := tezbazarIDPattern.FindStringSubmatch(abs); m != nil {
			ref.ListingID = m[1]
		}
		refs = append(refs, ref)
	})
	return refs, nil
}

var (
	tezbazarRoomPattern  = regexp.MustCompile(`Otaq sayı:\s*(\d+)`)
	tezbazarAreaPattern  = regexp.MustCompile(`Sahəsi:\s*([\d.,]+\s*kv\.?m?\.?)`)
	tezbazarFloorPattern = regexp.MustCompile(`Mərtəbə:\s*([\d/]+)`)
)

func (t *Tezbazar) ParseListing(ref models.ListingRef, pageHTML []byte) (*models.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	rec := &models.RawRecord{
		Site:      models.SiteTezbazar,
		URL:       ref.URL,
		ListingID: ref.ListingID,
		Title:     strings.TrimSpace(doc.Find("h1").First().Text()),
	}
	if rec.Title == "" {
		return nil, fmt.Errorf("listing page missing title: %s", ref.URL)
	}

	if rec.ListingID == "" {
		code := doc.Find("span.open_idshow").First().Text()
		if m := digitRun.FindString(code); m != "" {
			rec.ListingID = m
		}
	}

	rec.Price = strings.TrimSpace(doc.Find("span.pricecolor").First().Text())
	rec.Description = strings.TrimSpace(doc.Find("p.infop100").First().Text())

	if m := tezbazarRoomPattern.FindStringSubmatch(rec.Description); m != nil {
		rec.RoomCount = m[1]
	}
	if m := tezbazarAreaPattern.FindStringSubmatch(rec.Description); m != nil {
		rec.Area = m[1]
	}
	if m := tezbazarFloorPattern.FindStringSubmatch(rec.Description); m != nil {
		rec.Floor = m[1]
	}

	contact := doc.Find("div.infocontact").First()
	contact.Find("a[href*='/user/']").First().Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Text())
		if i := strings.Index(name, "("); i >= 0 {
			name = strings.TrimSpace(name[:i])
		}
		rec.SellerName = name
	})
	contact.Find("span.glyphicon-map-marker").First().Each(func(_ int, sel *goquery.Selection) {
		rec.Location = strings.TrimSpace(sel.Parent().Text())
	})

	crumbs := doc.Find("div.breadcrumb2 a")
	if crumbs.Length() > 1 {
		rec.Category = strings.TrimSpace(crumbs.Last().Text())
	}

	rec.DatePosted = strings.TrimSpace(strings.TrimPrefix(
		strings.TrimSpace(doc.Find("span.viewsbb").First().Text()), "Tarix:"))

	doc.Find("div#picsopen a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if strings.Contains(href, "/uploads/") {
			rec.Images = append(rec.Images, absoluteURL(tezbazarBase, href))
		}
	})

	// Phone is sometimes rendered directly as an attribute on the tel zone.
	if tel, ok := doc.Find("div.telzona").First().Attr("tel"); ok && tel != "" {
		rec.PhoneCandidate = tel
	} else if token, ok := t.ExtractRevealToken(pageHTML); ok {
		rec.RevealToken = token
	}

	return rec, nil
}

// tokenStrategies are tried in order; each is a pure html -> token match.
var tokenStrategies = []*regexp.Regexp{
	regexp.MustCompile(`"h"\s*:\s*"([a-f0-9]{32})"`),
	regexp.MustCompile(`'h'\s*:\s*'([a-f0-9]{32})'`),
	regexp.MustCompile(`h\s*=\s*["']([a-f0-9]{32})["']`),
	regexp.MustCompile(`hash["']?\s*[=:]\s*["']([a-f0-9]{32})["']`),
}

var hexToken = regexp.MustCompile(`[a-f0-9]{32}`)

func (t *Tezbazar) ExtractRevealToken(pageHTML []byte) (string, bool) {
	for _, strategy := range tokenStrategies {
		if m := strategy.FindSubmatch(pageHTML); m != nil {
			return string(m[1]), true
		}
	}

	// Last resort: any 32-char hex string that appears near phone-related
	// markup or the ajax wiring.
	for _, loc := range hexToken.FindAllIndex(pageHTML, -1) {
		start := loc[0] - 100
		if start < 0 {
			start = 0
		}
		end := loc[1] + 100
		if end > len(pageHTML) {
			end = len(pageHTML)
		}
		window := strings.ToLower(string(pageHTML[start:end]))
		if strings.Contains(window, "tel") || strings.Contains(window, "phone") || strings.Contains(window, "ajax") {
			return string(pageHTML[loc[0]:loc[1]]), true
		}
	}
	return "", false
}

func (t *Tezbazar) RevealRequest(ctx context.Context, ref models.ListingRef, token string) (*http.Request, error) {
	if ref.ListingID == "" {
		return nil, fmt.Errorf("reveal request needs a listing id: %s", ref.URL)
	}

	form := url.Values{
		"act": {"telshow"},
		"id":  {ref.ListingID},
		"t":   {"product"},
		"h":   {token},
		"rf":  {tezbazarCategory},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tezbazarAjax,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build reveal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Origin", tezbazarBase)
	req.Header.Set("Referer", ref.URL)
	return req, nil
}

func (t *Tezbazar) ParseReveal(body []byte) (string, bool) {
	var payload struct {
		Tel string `json:"tel"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	return payload.Tel, payload.Tel != ""
}

// fallbackPhonePatterns cover phones left in plain markup when the reveal
// call yields nothing: "(0XX) XXXXXXX" display forms and bare digit runs.
var fallbackPhonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\((\d{3})\)\s*(\d{7})`),
	regexp.MustCompile(`\b(\d{10})\b`),
	regexp.MustCompile(`\b0(\d{2})\s*(\d{7})\b`),
}

func (t *Tezbazar) FallbackPhone(pageHTML []byte) (string, bool) {
	return scanFallbackPhone(pageHTML)
}

func scanFallbackPhone(pageHTML []byte) (string, bool) {
	for _, pattern := range fallbackPhonePatterns {
		m := pattern.FindSubmatch(pageHTML)
		if m == nil {
			continue
		}
		var b strings.Builder
		for _, group := range m[1:] {
			b.Write(group)
		}
		if b.Len() > 0 {
			return b.String(), true
		}
	}
	return "", false
}

func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return base + href
}
