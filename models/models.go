// Package models defines data structures shared across the scraper.
package models

import "time"

// SiteID identifies a supported classifieds website.
type SiteID string

const (
	SiteTezbazar SiteID = "tezbazar.az"
	SiteUnvan    SiteID = "unvan.az"
	SiteEmlak    SiteID = "emlak.az"
)

// ListingRef points at a single listing discovered during pagination.
// It is created once by the enumerator and consumed once by the resolver.
type ListingRef struct {
	URL       string
	Site      SiteID
	ListingID string
	Page      int
}

// RawRecord is the site parser's view of a listing page. PhoneCandidate is
// empty when the site renders the phone only through the AJAX reveal call;
// in that case RevealToken carries the value the reveal endpoint expects.
type RawRecord struct {
	Site           SiteID   `json:"site"`
	URL            string   `json:"url"`
	ListingID      string   `json:"listing_id,omitempty"`
	Title          string   `json:"title"`
	Price          string   `json:"price"`
	Location       string   `json:"location"`
	Category       string   `json:"category"`
	RoomCount      string   `json:"room_count,omitempty"`
	Area           string   `json:"area,omitempty"`
	Floor          string   `json:"floor,omitempty"`
	SellerName     string   `json:"seller_name"`
	DatePosted     string   `json:"date_posted"`
	Description    string   `json:"description"`
	Images         []string `json:"images,omitempty"`
	PhoneCandidate string   `json:"phone_candidate,omitempty"`
	RevealToken    string   `json:"-"`
}

// Lead is the unit of persistence: one validated contact per listing.
// Phone is the normalized 9-digit number and is unique in the sink.
type Lead struct {
	Name      string    `csv:"name" json:"name"`
	Phone     string    `csv:"phone" json:"phone"`
	Website   string    `csv:"website" json:"website"`
	Link      string    `csv:"link" json:"link"`
	ScrapedAt time.Time `csv:"scraped_at" json:"scraped_at"`
	RawData   string    `csv:"raw_data" json:"raw_data"`
}

// InvalidSample records one rejected phone for the end-of-run report.
type InvalidSample struct {
	Raw    string
	Reason string
	URL    string
}

// CrawlStats is the end-of-run snapshot. It is owned by the controller's
// aggregation loop; worker goroutines never touch it.
type CrawlStats struct {
	PagesProcessed int
	ListingsFound  int
	ResolvedCount  int
	SkippedCount   int
	MissingPhone   int
	ValidCount     int
	InvalidCount   int
	InsertedCount  int
	DuplicateCount int
	PersistErrors  int
	InvalidSamples []InvalidSample
	StartTime      time.Time
	EndTime        time.Time
}
