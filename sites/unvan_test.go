package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elanleads/go-scrape-leads/models"
)

const unvanCatalogHTML = `
<html><body>
<a href="/bmw-320-satilir-123456.html">BMW 320</a>
<a href="/mercedes-w124-654321.html">Mercedes W124</a>
<a href="/bmw-320-satilir-123456.html">BMW 320 (şəkil)</a>
<a href="/avtomobil?start=2">Növbəti</a>
</body></html>`

const unvanListingHTML = `
<html><body>
<h1>BMW 320 satılır</h1>
<span class="pricecolor">15 500 AZN</span>
<div class="infocontact">
  <span><span class="glyphicon-user"></span>Rəşad (Bütün Elanları)</span>
  <div class="telzona"><div id="telshow">(050) 4787463</div></div>
</div>
<div id="openhalf">
  <p><b>Marka:</b> BMW</p>
  <p><b>Buraxılış ili:</b> 1998</p>
  <p>qeyri-strukturlu sətir</p>
</div>
</body></html>`

func TestUnvanListingRefs(t *testing.T) {
	var un Unvan
	refs, err := un.ListingRefs([]byte(unvanCatalogHTML), 1)
	require.NoError(t, err)
	require.Len(t, refs, 2, "duplicates and pagination links must be skipped")

	assert.Equal(t, "https://unvan.az/bmw-320-satilir-123456.html", refs[0].URL)
	assert.Equal(t, models.SiteUnvan, refs[0].Site)
	assert.Equal(t, "https://unvan.az/mercedes-w124-654321.html", refs[1].URL)
}

func TestUnvanParseListing(t *testing.T) {
	var un Unvan
	ref := models.ListingRef{URL: "https://unvan.az/bmw-320-satilir-123456.html", Site: models.SiteUnvan}

	rec, err := un.ParseListing(ref, []byte(unvanListingHTML))
	require.NoError(t, err)

	assert.Equal(t, "BMW 320 satılır", rec.Title)
	assert.Equal(t, "15 500 AZN", rec.Price)
	assert.Equal(t, "Rəşad", rec.SellerName)
	assert.Equal(t, "504787463", rec.PhoneCandidate)
	assert.Contains(t, rec.Description, "Marka: BMW")
	assert.Contains(t, rec.Description, "Buraxılış ili: 1998")
	assert.Empty(t, rec.RevealToken, "unvan has no reveal step")
}

func TestUnvanNoRevealSupport(t *testing.T) {
	var un Unvan

	_, ok := un.ExtractRevealToken([]byte(unvanListingHTML))
	assert.False(t, ok)

	_, err := un.RevealRequest(t.Context(), models.ListingRef{}, "token")
	require.Error(t, err)

	_, ok = un.ParseReveal([]byte(`{"tel":"x"}`))
	assert.False(t, ok)
}

func TestUnvanFallbackPhone(t *testing.T) {
	var un Unvan

	phone, ok := un.FallbackPhone([]byte(`əlaqə: (050) 4787463`))
	assert.True(t, ok)
	assert.Equal(t, "504787463", phone)

	_, ok = un.FallbackPhone([]byte(`no phone`))
	assert.False(t, ok)
}
