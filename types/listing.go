package types

// Platform identifies one supported marketplace
type Platform string

const (
	PlatformAlibaba    Platform = "alibaba"
	PlatformIndiamart  Platform = "indiamart"
	PlatformTradeindia Platform = "tradeindia"
	PlatformAll        Platform = "all"
)

// AllPlatforms is the fixed set the adapter registry is keyed on
var AllPlatforms = []Platform{PlatformAlibaba, PlatformIndiamart, PlatformTradeindia}

// Listing quality classes assigned by the filter and consumed by backfill
const (
	QualityGood    = "good"
	QualityPartial = "partial"
	QualityBad     = "bad"
)

// ExternalListing is the canonical record of one marketplace item.
// Upserted into pg on (platform, url); url is the dedup key and always
// stored with query string and fragment stripped.
type ExternalListing struct {
	tableName struct{} `sql:"external_listings,alias:l"`

	Platform    Platform `json:"platform" sql:"platform,pk"`
	URL         string   `json:"url" sql:"url,pk"`
	Title       string   `json:"title"`
	Image       string   `json:"image,omitempty"`
	Description string   `json:"description,omitempty"`

	Price    string   `json:"price,omitempty"`
	PriceMin *float64 `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`
	Currency string   `json:"currency,omitempty"`

	Moq      string `json:"moq,omitempty"`
	MoqValue *int   `json:"moq_value,omitempty"`

	StoreName string   `json:"store_name,omitempty"`
	Rating    *float64 `json:"rating,omitempty"`
	Orders    *int     `json:"orders,omitempty"`

	Attributes map[string]string `json:"attributes,omitempty"`
	Categories []string          `json:"categories,omitempty" sql:",array"`
	Terms      []string          `json:"terms,omitempty" sql:",array"`

	Quality        string `json:"quality,omitempty"`
	Attempts       int    `json:"attempts,omitempty"`
	Skipped        bool   `json:"skipped,omitempty"`
	CrawlUpdatedAt int64  `json:"crawl_updated_at,omitempty"`
}

// Key returns the identity used for dedup and upserts
func (l *ExternalListing) Key() string {
	return string(l.Platform) + ";" + l.URL
}

// FetchOptions control one adapter call
type FetchOptions struct {
	Headless      bool `json:"headless"`
	ForceHeadless bool `json:"force_headless"`
	UpgradeImages bool `json:"upgrade_images"`
	Debug         bool `json:"debug"`
}

// QueryFilters are the caller-supplied numeric bounds.
// A nil listing field passes every bound: absence of a value is unknown,
// not a violation.
type QueryFilters struct {
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
	MinMoq   *int     `json:"min_moq,omitempty"`
	MaxMoq   *int     `json:"max_moq,omitempty"`
}

// SearchQuery is one aggregation request. Query, Platform, Filters and the
// headless flags form the cache identity; the rest are paging and
// cache-control fields zeroed out before the key is computed.
type SearchQuery struct {
	Query         string       `json:"query"`
	Platform      Platform     `json:"platform"`
	Filters       QueryFilters `json:"filters"`
	Offset        int          `json:"offset,omitempty"`
	Limit         int          `json:"limit,omitempty"`
	Headless      bool         `json:"headless"`
	ForceHeadless bool         `json:"force_headless"`
	Prefetch      bool         `json:"prefetch,omitempty"`
	NoCache       bool         `json:"no_cache,omitempty"`
	Debug         bool         `json:"debug,omitempty"`
}

// SearchMeta carries optional diagnostics back to the caller
type SearchMeta struct {
	CacheTier string             `json:"cache_tier,omitempty"`
	Degraded  []Platform         `json:"degraded,omitempty"`
	Durations map[string]float64 `json:"durations,omitempty"`
}

// SearchResult is the response payload of the live query path
type SearchResult struct {
	Items []*ExternalListing `json:"items"`
	Total int                `json:"total"`
	Meta  *SearchMeta        `json:"meta,omitempty"`
}
