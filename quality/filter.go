package quality

import (
	"log"
	"sort"
	"strings"

	"github.com/bulkmart/go-aggregator/normalize"
	"github.com/bulkmart/go-aggregator/types"
)

// Policy carries the tunable parts of the filter stage
type Policy struct {
	BannedTerms     []string
	GoodMinAttrs    int
	PartialMinAttrs int
}

// PolicyFromConfig builds the filter policy from the loaded env config
func PolicyFromConfig(cd *types.ConfigData) Policy {
	return Policy{
		BannedTerms:     cd.BannedTerms,
		GoodMinAttrs:    cd.Quality.GoodMinAttrs,
		PartialMinAttrs: cd.Quality.PartialMinAttrs,
	}
}

// FilterBatch runs the full filter chain on one merged adapter batch:
// banned-term exclusion, url dedup, numeric bounds, stable sort.
// The chain is idempotent: running it on its own output is a no-op.
func FilterBatch(items []*types.ExternalListing, filters types.QueryFilters, policy Policy) []*types.ExternalListing {
	out := ExcludeBanned(items, policy.BannedTerms)
	out = Dedup(out)
	out = ApplyBounds(out, filters)
	SortListings(out)
	return out
}

// ExcludeBanned rejects listings whose title or description match the
// banned-term policy (services, custom-order-only entries)
func ExcludeBanned(items []*types.ExternalListing, banned []string) []*types.ExternalListing {
	if len(banned) == 0 {
		return items
	}
	out := make([]*types.ExternalListing, 0, len(items))
	for _, l := range items {
		text := strings.ToLower(l.Title + " " + l.Description)
		rejected := false
		for _, term := range banned {
			if term != "" && strings.Contains(text, strings.ToLower(term)) {
				rejected = true
				break
			}
		}
		if rejected {
			log.Printf("FILTER_BANNED: (%s) dropped %s\n", l.Platform, l.URL)
			continue
		}
		out = append(out, l)
	}
	return out
}

// Dedup keeps the first occurrence per normalized-url key within a batch
func Dedup(items []*types.ExternalListing) []*types.ExternalListing {
	seen := make(map[string]bool, len(items))
	out := make([]*types.ExternalListing, 0, len(items))
	for _, l := range items {
		l.URL = normalize.CleanURL(l.URL)
		key := l.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}

// ApplyBounds enforces the caller-supplied numeric filters. A listing with
// a nil field always passes: absence of a value is evidence of unknown, not
// of violation.
func ApplyBounds(items []*types.ExternalListing, filters types.QueryFilters) []*types.ExternalListing {
	out := make([]*types.ExternalListing, 0, len(items))
	for _, l := range items {
		if filters.MinPrice != nil && l.PriceMin != nil && *l.PriceMin < *filters.MinPrice {
			continue
		}
		if filters.MaxPrice != nil && l.PriceMin != nil && *l.PriceMin > *filters.MaxPrice {
			continue
		}
		if filters.MinMoq != nil && l.MoqValue != nil && *l.MoqValue < *filters.MinMoq {
			continue
		}
		if filters.MaxMoq != nil && l.MoqValue != nil && *l.MoqValue > *filters.MaxMoq {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Classify grades a listing by how many detail attributes were scraped.
// Backfill schedules partial/bad listings for another pass.
func Classify(l *types.ExternalListing, policy Policy) string {
	n := len(l.Attributes)
	switch {
	case n >= policy.GoodMinAttrs:
		return types.QualityGood
	case n >= policy.PartialMinAttrs:
		return types.QualityPartial
	default:
		return types.QualityBad
	}
}

// ClassifyAll stamps the quality class onto every listing in place
func ClassifyAll(items []*types.ExternalListing, policy Policy) {
	for _, l := range items {
		l.Quality = Classify(l, policy)
	}
}

// SortListings orders by (lower-cased title, url) so repeated queries page
// through a stable ordering even as new data is upserted underneath
func SortListings(items []*types.ExternalListing) {
	sort.SliceStable(items, func(i, j int) bool {
		ti := strings.ToLower(items[i].Title)
		tj := strings.ToLower(items[j].Title)
		if ti != tj {
			return ti < tj
		}
		return items[i].URL < items[j].URL
	})
}
