package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bulkmart/go-aggregator/types"
)

func floatPtr(v float64) *float64 { return &v }

func TestConstructCacheIdStable(t *testing.T) {
	q := &types.SearchQuery{Query: "cnc machine", Platform: "alibaba"}
	first, err := ConstructCacheId(q)
	assert.NoError(t, err)
	second, err := ConstructCacheId(q)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConstructCacheIdIgnoresPaging(t *testing.T) {
	base := &types.SearchQuery{Query: "cnc machine", Platform: "alibaba"}
	paged := &types.SearchQuery{Query: "cnc machine", Platform: "alibaba", Offset: 40, Limit: 20, Prefetch: true, NoCache: true, Debug: true}

	baseKey, err := ConstructCacheId(base)
	assert.NoError(t, err)
	pagedKey, err := ConstructCacheId(paged)
	assert.NoError(t, err)
	assert.Equal(t, baseKey, pagedKey)
}

func TestConstructCacheIdVariesOnFilters(t *testing.T) {
	plain := &types.SearchQuery{Query: "cnc machine", Platform: "alibaba"}
	filtered := &types.SearchQuery{
		Query:    "cnc machine",
		Platform: "alibaba",
		Filters:  types.QueryFilters{MinPrice: floatPtr(100)},
	}

	plainKey, err := ConstructCacheId(plain)
	assert.NoError(t, err)
	filteredKey, err := ConstructCacheId(filtered)
	assert.NoError(t, err)
	assert.NotEqual(t, plainKey, filteredKey)
}

func TestConstructCacheIdVariesOnHeadless(t *testing.T) {
	a, err := ConstructCacheId(&types.SearchQuery{Query: "pump", Platform: "alibaba"})
	assert.NoError(t, err)
	b, err := ConstructCacheId(&types.SearchQuery{Query: "pump", Platform: "alibaba", Headless: true})
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestConstructCacheIdVariesOnPlatform(t *testing.T) {
	a, err := ConstructCacheId(&types.SearchQuery{Query: "pump", Platform: "alibaba"})
	assert.NoError(t, err)
	b, err := ConstructCacheId(&types.SearchQuery{Query: "pump", Platform: "indiamart"})
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}
