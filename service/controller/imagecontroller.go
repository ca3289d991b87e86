package controller

import (
	"net/http"

	"github.com/labstack/echo"

	"github.com/bulkmart/go-aggregator/imagecache"
)

type imageCacheRequest struct {
	URLs []string `json:"urls"`
}

// Handle image cache warm-up requests
func GetImageCacheHandler(ic *imagecache.ImageCache) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		var req imageCacheRequest
		if err = c.Bind(&req); err != nil {
			return err
		}
		if len(req.URLs) == 0 {
			return c.JSONPretty(http.StatusBadRequest, map[string]interface{}{"error": "urls is required", "status": 0}, "  ")
		}
		cached := ic.EnsureAll(req.URLs)
		return c.JSONPretty(http.StatusOK, map[string]interface{}{
			"status":    1,
			"requested": len(req.URLs),
			"cached":    cached,
		}, "  ")
	}
}
