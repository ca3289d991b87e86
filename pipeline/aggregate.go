package pipeline

import (
	"fmt"
	"log"
	"time"

	"github.com/bulkmart/go-aggregator/composable_error"
	"github.com/bulkmart/go-aggregator/dbs"
	"github.com/bulkmart/go-aggregator/quality"
	"github.com/bulkmart/go-aggregator/sources"
	"github.com/bulkmart/go-aggregator/types"
	"github.com/bulkmart/go-aggregator/utils"
)

// Cache tiers reported back in the response meta
const (
	TierEphemeral = "ephemeral"
	TierDurable   = "durable"
	TierLive      = "live"
)

// Aggregator owns the live query path: cache tiers, fan-out, filtering,
// and the write-behind persistence of fresh results.
type Aggregator struct {
	AppC   *types.Config
	Reg    sources.Registry
	Store  dbs.Store
	Policy quality.Policy
}

func NewAggregator(appC *types.Config) *Aggregator {
	return &Aggregator{
		AppC:   appC,
		Reg:    BuildRegistry(appC),
		Store:  dbs.NewPipelineStore(appC),
		Policy: quality.PolicyFromConfig(appC.ConfigData),
	}
}

// Aggregate runs one search query through the tiers. The returned workflow
// always carries the full filtered set; the caller pages it.
func (a *Aggregator) Aggregate(query *types.SearchQuery) *types.AggregationWorkflow {
	start := time.Now()
	workflow := &types.AggregationWorkflow{
		Query:     query,
		Status:    1,
		Durations: make(map[string]float64),
	}

	// 1. Build the cache identity from the query (paging excluded)
	cacheKey, err := utils.ConstructCacheId(query)
	if err != nil {
		err = composable_error.ComposeWith(err, "AGGREGATE", "could not build the cache identity")
		workflow.Fail(composable_error.GetCode(err), err.Error())
		return workflow
	}

	// 2. Ephemeral tier: redis hit serves the whole request
	if !query.NoCache {
		if items, ok := utils.ReadResultsFromCache(a.AppC, cacheKey); ok {
			workflow.Filtered = items
			workflow.Total = len(items)
			workflow.CacheTier = TierEphemeral
			workflow.Durations["total"] = utils.ComputeDuration(start)
			return workflow
		}

		// 3. Durable tier: snapshot of url order, hydrated from pg
		if items, ok := a.readSnapshot(query, cacheKey); ok {
			items = quality.FilterBatch(items, query.Filters, a.Policy)
			workflow.Filtered = items
			workflow.Total = len(items)
			workflow.CacheTier = TierDurable

			// Promote back into redis so the next request skips pg
			utils.ReturnErr("AGGREGATE_PROMOTEERR", cacheKey, utils.WriteResultsToCache(a.AppC, cacheKey, items))
			workflow.Durations["total"] = utils.ComputeDuration(start)
			return workflow
		}
	}

	// 4. Live tier: fan out to the platform adapters. Prefetch is a cheap
	// warm-up: smaller batch, no headless escalation.
	fetchStart := time.Now()
	opts := &types.FetchOptions{Headless: query.Headless, ForceHeadless: query.ForceHeadless, Debug: query.Debug}
	fetchLimit := a.fetchLimit(query)
	if query.Prefetch {
		opts.Headless = false
		opts.ForceHeadless = false
		fetchLimit = a.AppC.ConfigData.MaxPageSize
	}
	timeout := time.Duration(a.AppC.ConfigData.FetchTimeout*3) * time.Second
	raw, degraded := sources.FetchAll(a.Reg, query.Platform, query.Query, fetchLimit, opts, timeout)
	workflow.Raw = raw
	workflow.Degraded = degraded
	workflow.Durations["fetch"] = utils.ComputeDuration(fetchStart)
	a.emitFetchMetrics(query, raw, degraded, workflow.Durations["fetch"])

	if len(raw) == 0 {
		if len(degraded) > 0 {
			workflow.Fail("AGGREGATE_ALLDEGRADED", fmt.Sprintf("(%s, %s) every platform failed or timed out", query.Platform, query.Query))
		} else {
			workflow.CacheTier = TierLive
			workflow.Filtered = make([]*types.ExternalListing, 0)
		}
		workflow.Durations["total"] = utils.ComputeDuration(start)
		return workflow
	}

	// 5. Filter chain: banned terms, dedup, bounds, stable sort
	filtered := quality.FilterBatch(raw, query.Filters, a.Policy)
	quality.ClassifyAll(filtered, a.Policy)
	for _, l := range filtered {
		l.Terms = append(l.Terms, query.Query)
	}
	workflow.Filtered = filtered
	workflow.Total = len(filtered)
	workflow.CacheTier = TierLive

	// 6. Write the ephemeral tier before returning so an immediate repeat
	// of the same query is a hit
	utils.ReturnErr("AGGREGATE_CACHEERR", cacheKey, utils.WriteResultsToCache(a.AppC, cacheKey, filtered))

	// 7. Durable writes happen off the request path, on deep copies: the
	// upsert merge rewrites listing fields while the caller is still
	// serializing the response set
	go a.persist(query, cacheKey, cloneListings(filtered))

	workflow.Durations["total"] = utils.ComputeDuration(start)
	log.Printf("AGGREGATE_DONE: (%s, %s) raw %d, filtered %d, degraded %d, duration %.2fs\n",
		query.Platform, query.Query, len(raw), len(filtered), len(degraded), workflow.Durations["total"])
	return workflow
}

// readSnapshot hydrates the durable tier. Partial hydration is fine, the
// snapshot order is kept for whatever rows still exist.
func (a *Aggregator) readSnapshot(query *types.SearchQuery, cacheKey string) ([]*types.ExternalListing, bool) {
	snap, err := a.Store.GetSnapshot(cacheKey, a.AppC.ConfigData.SnapshotMaxAge)
	if err != nil {
		log.Printf("AGGREGATE_SNAPERR: (%s) %v\n", cacheKey, err)
		return nil, false
	}
	if snap == nil || len(snap.URLs) == 0 {
		return nil, false
	}
	items, err := a.Store.ListingsByURLs(snap.Platform, snap.URLs)
	if err != nil {
		log.Printf("AGGREGATE_HYDRATEERR: (%s) %v\n", cacheKey, err)
		return nil, false
	}
	if len(items) == 0 {
		return nil, false
	}
	log.Printf("AGGREGATE_SNAPHIT: (%s) %d/%d urls hydrated\n", cacheKey, len(items), len(snap.URLs))
	return items, true
}

func cloneListings(items []*types.ExternalListing) []*types.ExternalListing {
	out := make([]*types.ExternalListing, 0, len(items))
	for _, l := range items {
		c := *l
		c.Categories = append([]string(nil), l.Categories...)
		c.Terms = append([]string(nil), l.Terms...)
		if l.Attributes != nil {
			c.Attributes = make(map[string]string, len(l.Attributes))
			for k, v := range l.Attributes {
				c.Attributes[k] = v
			}
		}
		out = append(out, &c)
	}
	return out
}

// persist writes the durable tiers; a prefetch result is a shrunk batch,
// so it never overwrites the durable snapshot
func (a *Aggregator) persist(query *types.SearchQuery, cacheKey string, items []*types.ExternalListing) {
	if !query.Prefetch {
		urls := make([]string, 0, len(items))
		for _, l := range items {
			urls = append(urls, l.URL)
		}
		err := a.Store.PutSnapshot(&types.SearchSnapshot{
			ID:       cacheKey,
			Platform: query.Platform,
			Query:    query.Query,
			URLs:     urls,
		})
		utils.ReturnErr("AGGREGATE_SNAPWRITEERR", cacheKey, err)
	}

	added, err := a.Store.UpsertListings(items)
	utils.ReturnErr("AGGREGATE_UPSERTERR", cacheKey, err)
	if err == nil {
		log.Printf("AGGREGATE_PERSIST: (%s) %d listings upserted, %d new\n", cacheKey, len(items), added)
	}
}

// fetchLimit asks adapters for enough rows to survive filtering and serve
// a few pages, without unbounded pagination
func (a *Aggregator) fetchLimit(query *types.SearchQuery) int {
	limit := a.AppC.ConfigData.MaxPageSize * 2
	if query.Limit > limit {
		limit = query.Limit
	}
	return limit
}

func (a *Aggregator) emitFetchMetrics(query *types.SearchQuery, raw []*types.ExternalListing, degraded []types.Platform, duration float64) {
	sm := a.AppC.StatsManager
	if sm == nil || !sm.Init {
		return
	}
	perPlatform := make(map[types.Platform]int)
	for _, l := range raw {
		perPlatform[l.Platform]++
	}
	for platform, count := range perPlatform {
		sm.FetchMetricsChannel <- types.FetchMetrics{
			Platform:  platform,
			Strategy:  TierLive,
			Items:     count,
			Status:    200,
			TimeTaken: duration,
		}
	}
	for _, platform := range degraded {
		sm.FetchMetricsChannel <- types.FetchMetrics{
			Platform:  platform,
			Strategy:  TierLive,
			Blocked:   true,
			TimeTaken: duration,
		}
	}
}

// PageSlice applies offset/limit paging to a filtered set
func PageSlice(items []*types.ExternalListing, offset, limit int) []*types.ExternalListing {
	if offset >= len(items) {
		return []*types.ExternalListing{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
