package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bulkmart/go-aggregator/sources"
	"github.com/bulkmart/go-aggregator/types"
)

func seedPartialListings(store *mockStore, platform types.Platform, n int) {
	items := make([]*types.ExternalListing, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, &types.ExternalListing{
			Platform: platform,
			URL:      "https://example.com/partial/" + string(rune('a'+i)),
			Title:    "partial item",
			Quality:  types.QualityPartial,
		})
	}
	store.UpsertListings(items)
}

func TestBackfillPromotesQuality(t *testing.T) {
	appC := newTestConfig()
	appC.ConfigData.Backfill.BatchSize = 10
	store := newMockStore()
	// Enrich yields enough attributes to cross the good threshold
	adapter := &mockAdapter{platform: types.PlatformAlibaba, enrichAttrs: 3}
	agg := newTestAggregator(appC, store, adapter)
	seedPartialListings(store, types.PlatformAlibaba, 3)

	runner := NewBackfillRunner(appC, agg, false)
	err := runner.Run(types.PlatformAlibaba)
	assert.NoError(t, err)

	assert.Equal(t, 3, adapter.enriches)
	progress := store.backfill[types.PlatformAlibaba]
	assert.NotNil(t, progress)
	assert.Equal(t, 3, progress.Good)

	for _, l := range store.listings {
		assert.Equal(t, types.QualityGood, l.Quality)
		assert.Equal(t, 1, l.Attempts)
		assert.NotEmpty(t, l.Image)
	}
}

func TestBackfillRetryCeilingMarksSkipped(t *testing.T) {
	appC := newTestConfig()
	appC.ConfigData.Backfill.BatchSize = 10
	store := newMockStore()
	adapter := &mockAdapter{platform: types.PlatformAlibaba, enrichAttrs: 0}
	agg := newTestAggregator(appC, store, adapter)
	seedPartialListings(store, types.PlatformAlibaba, 1)

	// Listing already burned through its retries
	store.backfill[types.PlatformAlibaba] = &types.BackfillProgress{
		ID:       "backfill_alibaba",
		Platform: types.PlatformAlibaba,
		Attempts: map[string]int{"https://example.com/partial/a": appC.ConfigData.Backfill.RetryCeiling},
	}

	runner := NewBackfillRunner(appC, agg, false)
	err := runner.Run(types.PlatformAlibaba)
	assert.NoError(t, err)

	assert.Equal(t, 0, adapter.enriches)
	progress := store.backfill[types.PlatformAlibaba]
	assert.Equal(t, 1, progress.Skipped)

	for _, l := range store.listings {
		assert.True(t, l.Skipped)
	}
}

func TestBackfillAttemptCountsWithConcurrentWorkers(t *testing.T) {
	appC := newTestConfig()
	appC.ConfigData.Backfill.BatchSize = 8
	appC.ConfigData.Backfill.MaxConcurrency = 4
	store := newMockStore()
	adapter := &mockAdapter{platform: types.PlatformAlibaba, enrichAttrs: 3}
	agg := newTestAggregator(appC, store, adapter)
	seedPartialListings(store, types.PlatformAlibaba, 8)

	runner := NewBackfillRunner(appC, agg, false)
	assert.NoError(t, runner.Run(types.PlatformAlibaba))

	// Every listing was visited exactly once even with overlapping workers
	assert.Equal(t, 8, adapter.enriches)
	progress := store.backfill[types.PlatformAlibaba]
	assert.Len(t, progress.Attempts, 8)
	for url, n := range progress.Attempts {
		assert.Equal(t, 1, n, url)
	}
	for _, l := range store.listings {
		assert.Equal(t, 1, l.Attempts)
	}
}

func TestBackfillSkippedListingsStayRetired(t *testing.T) {
	appC := newTestConfig()
	appC.ConfigData.Backfill.BatchSize = 10
	store := newMockStore()
	adapter := &mockAdapter{platform: types.PlatformAlibaba, enrichAttrs: 0}
	agg := newTestAggregator(appC, store, adapter)
	seedPartialListings(store, types.PlatformAlibaba, 1)
	store.backfill[types.PlatformAlibaba] = &types.BackfillProgress{
		ID:       "backfill_alibaba",
		Platform: types.PlatformAlibaba,
		Attempts: map[string]int{"https://example.com/partial/a": appC.ConfigData.Backfill.RetryCeiling},
	}

	runner := NewBackfillRunner(appC, agg, false)
	assert.NoError(t, runner.Run(types.PlatformAlibaba))
	assert.Equal(t, 1, store.backfill[types.PlatformAlibaba].Skipped)

	// A live-path re-ingestion of the same url must not resurrect it
	store.UpsertListings([]*types.ExternalListing{{
		Platform: types.PlatformAlibaba,
		URL:      "https://example.com/partial/a",
		Title:    "partial item",
		Quality:  types.QualityPartial,
	}})
	l := store.listing("alibaba;https://example.com/partial/a")
	if assert.NotNil(t, l) {
		assert.True(t, l.Skipped)
	}

	// A second run sees an empty queue and never re-counts it
	second := NewBackfillRunner(appC, agg, false)
	assert.NoError(t, second.Run(types.PlatformAlibaba))
	assert.Equal(t, 0, adapter.enriches)
	assert.Equal(t, 1, store.backfill[types.PlatformAlibaba].Skipped)
}

func TestBackfillDryRunWritesNothing(t *testing.T) {
	appC := newTestConfig()
	appC.ConfigData.Backfill.BatchSize = 10
	store := newMockStore()
	adapter := &mockAdapter{platform: types.PlatformAlibaba, enrichAttrs: 3}
	agg := newTestAggregator(appC, store, adapter)
	seedPartialListings(store, types.PlatformAlibaba, 2)
	upsertsBefore := store.upserts

	runner := NewBackfillRunner(appC, agg, true)
	err := runner.Run(types.PlatformAlibaba)
	assert.NoError(t, err)

	// Detail pages were fetched but nothing was persisted
	assert.Equal(t, 2, adapter.enriches)
	assert.Equal(t, upsertsBefore, store.upserts)
	for _, l := range store.listings {
		assert.Equal(t, types.QualityPartial, l.Quality)
	}
}

func TestBackfillBlockHalvesConcurrency(t *testing.T) {
	appC := newTestConfig()
	appC.ConfigData.Backfill.BatchSize = 10
	appC.ConfigData.Backfill.MaxConcurrency = 4
	store := newMockStore()
	adapter := &mockAdapter{platform: types.PlatformAlibaba, enrichErr: sources.ErrBlocked}
	agg := newTestAggregator(appC, store, adapter)
	seedPartialListings(store, types.PlatformAlibaba, 2)

	runner := NewBackfillRunner(appC, agg, false)
	err := runner.Run(types.PlatformAlibaba)
	assert.NoError(t, err)

	assert.Equal(t, 2, runner.concurrency)
	progress := store.backfill[types.PlatformAlibaba]
	assert.Equal(t, 2, progress.Errors)
}

func TestBackfillUnknownPlatform(t *testing.T) {
	appC := newTestConfig()
	agg := newTestAggregator(appC, newMockStore())

	runner := NewBackfillRunner(appC, agg, false)
	err := runner.Run(types.Platform("ebay"))
	assert.Error(t, err)
}
