package utils

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/bulkmart/go-aggregator/composable_error"
	"github.com/bulkmart/go-aggregator/dbs"
	"github.com/bulkmart/go-aggregator/types"
)

// Marshal struct to a JSON string but ensure that the process is repeatable
func canonicalJsonMarshal(q *types.SearchQuery) (string, error) {
	identity := *q
	identity.Offset = 0
	identity.Limit = 0
	identity.Prefetch = false
	identity.NoCache = false
	identity.Debug = false
	rBytes, _ := json.Marshal(&identity)
	r := make(map[string]interface{}, 0)
	if err := json.Unmarshal(rBytes, &r); err != nil {
		return "", composable_error.Newf("JSON_UNMARSHAL_FAILED", "Failed to unmarshal query object to a map: %v, %v", q, err)
	}
	rSortedKeys, err := json.Marshal(&r)
	if err != nil {
		return "", composable_error.Newf("JSON_MARSHAL_FAILED", "Failed to marshal query object: %s, %v", string(rBytes), err)
	}
	return string(rSortedKeys), nil
}

// ConstructCacheId builds a stable key from the query identity. Paging and
// cache-control fields are zeroed before hashing, so two requests for
// different pages of the same search share one key, and a prefetch warms
// the key its full query will hit.
func ConstructCacheId(q *types.SearchQuery) (string, error) {
	canonicalJson, err := canonicalJsonMarshal(q)
	if err != nil {
		return "", err
	}
	rHash := Md5Hash(canonicalJson)
	if q.Debug {
		log.Printf("CACHE_KEY_FIELDS: %s, CACHE_KEY_GENERATED: %s\n", canonicalJson, rHash)
	}
	return fmt.Sprintf("agg_search_%s", rHash), nil
}

// ReadResultsFromCache looks the query up in redis. A miss returns nil
// items and no error, the caller falls through to the live path.
func ReadResultsFromCache(appC *types.Config, cacheKey string) ([]*types.ExternalListing, bool) {
	if appC.RedisCache == nil {
		return nil, false
	}
	raw, err := dbs.RedisGet(appC.RedisCache, cacheKey)
	if err != nil {
		log.Printf("CACHE_READERR: (%s) %v\n", cacheKey, err)
		return nil, false
	}
	if raw == "" {
		return nil, false
	}

	var items []*types.ExternalListing
	if err = json.Unmarshal([]byte(raw), &items); err != nil {
		log.Printf("CACHE_READ_JSON_DECODE_ERROR: key: %s, error: %v\n", cacheKey, err)
		dbs.RedisDel(appC.RedisCache, cacheKey)
		return nil, false
	}
	log.Printf("CACHE_READ: (%s) %d items\n", cacheKey, len(items))
	return items, true
}

// WriteResultsToCache stores the filtered result set with the configured ttl
func WriteResultsToCache(appC *types.Config, cacheKey string, items []*types.ExternalListing) error {
	if appC.RedisCache == nil {
		return nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return composable_error.Newf("CACHE_WRITE_ENCODEERR", "key: %s, %v", cacheKey, err)
	}
	if err = dbs.RedisSetex(appC.RedisCache, cacheKey, appC.ConfigData.CacheTtl, string(raw)); err != nil {
		return composable_error.Newf("CACHE_WRITEERR", "key: %s, %v", cacheKey, err)
	}
	log.Printf("CACHE_WRITE: (%s) %d items, ttl %d secs\n", cacheKey, len(items), appC.ConfigData.CacheTtl)
	return nil
}
