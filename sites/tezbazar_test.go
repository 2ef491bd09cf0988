package sites

import (
	"context"
	"io"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elanleads/go-scrape-leads/models"
)

const tezbazarCatalogHTML = `
<html><body>
<div class="nobj">
  <div class="prodname"><a href="/menzil-satilir-123456.html">3 otaqlı mənzil</a></div>
</div>
<div class="nobj">
  <div class="prodname"><a href="https://tezbazar.az/heyet-evi-654321.html">Həyət evi</a></div>
</div>
<div class="nobj">
  <div class="prodname"><a href="/category/emlak">kateqoriya</a></div>
</div>
</body></html>`

const tezbazarListingHTML = `
<html><body>
<div class="breadcrumb2"><a href="/">Ana səhifə</a><a href="/emlak">Mənzillər</a></div>
<h1>3 otaqlı mənzil, Nərimanov</h1>
<span class="pricecolor">95 000 AZN</span>
<span class="open_idshow">Elanın nömrəsi: 123456</span>
<p class="infop100">Otaq sayı: 3 Sahəsi: 85 kv.m. Mərtəbə: 5/9 Təcili satılır.</p>
<div class="infocontact">
  <a href="/user/4242">Elvin (Bütün Elanları)</a>
  <span><span class="glyphicon-map-marker"></span>Bakı, Nərimanov</span>
</div>
<span class="viewsbb">Tarix: 20.08.2026</span>
<div id="picsopen">
  <a href="/uploads/full/photo1.jpg"><img src="/uploads/thumb/photo1.jpg"></a>
  <a href="/uploads/full/photo2.jpg"><img src="/uploads/thumb/photo2.jpg"></a>
</div>
<div class="telzona"></div>
<script>var payload = {"act":"telshow","h":"0123456789abcdef0123456789abcdef"};</script>
</body></html>`

func TestTezbazarListingRefs(t *testing.T) {
	var tz Tezbazar
	refs, err := tz.ListingRefs([]byte(tezbazarCatalogHTML), 2)
	require.NoError(t, err)
	require.Len(t, refs, 2, "non-.html links must be skipped")

	assert.Equal(t, "https://tezbazar.az/menzil-satilir-123456.html", refs[0].URL)
	assert.Equal(t, "123456", refs[0].ListingID)
	assert.Equal(t, models.SiteTezbazar, refs[0].Site)
	assert.Equal(t, 2, refs[0].Page)
	assert.Equal(t, "654321", refs[1].ListingID)
}

func TestTezbazarListingPageURL(t *testing.T) {
	var tz Tezbazar
	assert.Equal(t, "https://tezbazar.az/dasinmaz-emlak-ev-elanlari", tz.ListingPageURL(1))
	assert.Equal(t, "https://tezbazar.az/dasinmaz-emlak-ev-elanlari/?start=3", tz.ListingPageURL(2))
	assert.Equal(t, "https://tezbazar.az/dasinmaz-emlak-ev-elanlari/?start=9", tz.ListingPageURL(4))
}

func TestTezbazarParseListing(t *testing.T) {
	var tz Tezbazar
	ref := models.ListingRef{
		URL:       "https://tezbazar.az/menzil-satilir-123456.html",
		Site:      models.SiteTezbazar,
		ListingID: "123456",
	}

	rec, err := tz.ParseListing(ref, []byte(tezbazarListingHTML))
	require.NoError(t, err)

	assert.Equal(t, "3 otaqlı mənzil, Nərimanov", rec.Title)
	assert.Equal(t, "95 000 AZN", rec.Price)
	assert.Equal(t, "3", rec.RoomCount)
	assert.Equal(t, "85 kv.m.", rec.Area)
	assert.Equal(t, "5/9", rec.Floor)
	assert.Equal(t, "Elvin", rec.SellerName)
	assert.Equal(t, "Bakı, Nərimanov", rec.Location)
	assert.Equal(t, "Mənzillər", rec.Category)
	assert.Equal(t, "20.08.2026", rec.DatePosted)
	require.Len(t, rec.Images, 2)
	assert.Equal(t, "https://tezbazar.az/uploads/full/photo1.jpg", rec.Images[0])

	// Phone is hidden: the parser must surface the reveal token instead.
	assert.Empty(t, rec.PhoneCandidate)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", rec.RevealToken)
}

func TestTezbazarParseListingVisiblePhone(t *testing.T) {
	html := `<html><body><h1>Obyekt satılır</h1>
<div class="telzona" tel="0504787463"></div></body></html>`

	var tz Tezbazar
	rec, err := tz.ParseListing(models.ListingRef{URL: "https://tezbazar.az/x-1.html"}, []byte(html))
	require.NoError(t, err)
	assert.Equal(t, "0504787463", rec.PhoneCandidate)
	assert.Empty(t, rec.RevealToken)
}

func TestTezbazarParseListingMissingTitle(t *testing.T) {
	var tz Tezbazar
	_, err := tz.ParseListing(models.ListingRef{URL: "https://tezbazar.az/x-1.html"}, []byte("<html><body></body></html>"))
	require.Error(t, err)
}

func TestTezbazarExtractRevealToken(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
		ok   bool
	}{
		{
			name: "json style",
			html: `{"h": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}`,
			want: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			ok:   true,
		},
		{
			name: "single quoted",
			html: `data = {'h': 'bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb'}`,
			want: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			ok:   true,
		},
		{
			name: "assignment",
			html: `var h = "cccccccccccccccccccccccccccccccc";`,
			want: "cccccccccccccccccccccccccccccccc",
			ok:   true,
		},
		{
			name: "hash key",
			html: `hash: "dddddddddddddddddddddddddddddddd"`,
			want: "dddddddddddddddddddddddddddddddd",
			ok:   true,
		},
		{
			name: "context fallback near tel",
			html: `<div onclick="telshow(eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee)">Nömrəni göstər</div>`,
			want: "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee",
			ok:   true,
		},
		{
			name: "hex without context",
			html: `<meta content="ffffffffffffffffffffffffffffffff">`,
			ok:   false,
		},
		{
			name: "no token",
			html: `<html><body>nothing here</body></html>`,
			ok:   false,
		},
	}

	var tz Tezbazar
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tz.ExtractRevealToken([]byte(tt.html))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTezbazarRevealRequest(t *testing.T) {
	var tz Tezbazar
	ref := models.ListingRef{
		URL:       "https://tezbazar.az/menzil-satilir-123456.html",
		ListingID: "123456",
	}

	req, err := tz.RevealRequest(context.Background(), ref, "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "https://tezbazar.az/ajax.php", req.URL.String())
	assert.Equal(t, "XMLHttpRequest", req.Header.Get("X-Requested-With"))
	assert.Equal(t, ref.URL, req.Header.Get("Referer"))

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	form, err := url.ParseQuery(string(body))
	require.NoError(t, err)
	assert.Equal(t, "telshow", form.Get("act"))
	assert.Equal(t, "123456", form.Get("id"))
	assert.Equal(t, "product", form.Get("t"))
	assert.Equal(t, "0123456789abcdef0123456789abcdef", form.Get("h"))
}

func TestTezbazarRevealRequestNeedsID(t *testing.T) {
	var tz Tezbazar
	_, err := tz.RevealRequest(context.Background(), models.ListingRef{URL: "https://tezbazar.az/x.html"}, "token")
	require.Error(t, err)
}

func TestTezbazarParseReveal(t *testing.T) {
	var tz Tezbazar

	phone, ok := tz.ParseReveal([]byte(`{"tel": "(050) 478-74-63"}`))
	assert.True(t, ok)
	assert.Equal(t, "(050) 478-74-63", phone)

	_, ok = tz.ParseReveal([]byte(`{"tel": ""}`))
	assert.False(t, ok)

	_, ok = tz.ParseReveal([]byte(`<html>not json</html>`))
	assert.False(t, ok)
}

func TestTezbazarFallbackPhone(t *testing.T) {
	var tz Tezbazar

	phone, ok := tz.FallbackPhone([]byte(`call (050) 4787463 now`))
	assert.True(t, ok)
	assert.Equal(t, "0504787463", phone)

	phone, ok = tz.FallbackPhone([]byte(`tel: 0504787463`))
	assert.True(t, ok)
	assert.Equal(t, "0504787463", phone)

	_, ok = tz.FallbackPhone([]byte(`no numbers in sight`))
	assert.False(t, ok)
}
