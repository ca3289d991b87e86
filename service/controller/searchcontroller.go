package controller

import (
	"net/http"

	"github.com/labstack/echo"

	"github.com/bulkmart/go-aggregator/pipeline"
	"github.com/bulkmart/go-aggregator/types"
)

// Handle aggregation search requests
func GetSearchHandler(agg *pipeline.Aggregator) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		var query types.SearchQuery
		if err = c.Bind(&query); err != nil {
			return err
		}
		if query.Query == "" {
			return c.JSONPretty(http.StatusBadRequest, map[string]interface{}{"error": "query is required", "status": 0}, "  ")
		}
		normalizeQuery(&query, agg.AppC.ConfigData)

		// Prefetch warms the caches without holding the request open
		if query.Prefetch {
			go agg.Aggregate(&query)
			return c.JSONPretty(http.StatusAccepted, map[string]interface{}{"status": 1, "prefetch": true}, "  ")
		}

		workflow := agg.Aggregate(&query)
		if workflow.FailureType != nil {
			return c.JSONPretty(http.StatusBadGateway, map[string]interface{}{
				"error":  *workflow.FailureMessage,
				"code":   *workflow.FailureType,
				"status": 0,
			}, "  ")
		}

		result := types.SearchResult{
			Items: pipeline.PageSlice(workflow.Filtered, query.Offset, query.Limit),
			Total: workflow.Total,
			Meta: &types.SearchMeta{
				CacheTier: workflow.CacheTier,
				Degraded:  workflow.Degraded,
				Durations: workflow.Durations,
			},
		}
		return c.JSONPretty(http.StatusOK, result, "  ")
	}
}

// normalizeQuery fills defaults and clamps paging to the configured ceiling
func normalizeQuery(query *types.SearchQuery, cd *types.ConfigData) {
	if query.Platform == "" {
		query.Platform = types.PlatformAll
	}
	if query.Limit <= 0 || query.Limit > cd.MaxPageSize {
		query.Limit = cd.MaxPageSize
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
}
