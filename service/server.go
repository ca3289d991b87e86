package service

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"

	"github.com/bulkmart/go-aggregator/imagecache"
	"github.com/bulkmart/go-aggregator/pipeline"
	"github.com/bulkmart/go-aggregator/service/controller"
	"github.com/bulkmart/go-aggregator/types"
	"github.com/bulkmart/go-aggregator/utils"
)

// Start web service (REST) for the aggregation query interface
func StartWebService(appC *types.Config, agg *pipeline.Aggregator) {
	router := echo.New()
	router.HideBanner = true
	router.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${remote_ip} | ${method} | ${uri} | ${status} | ${latency_human}\n",
	}))

	// Aggregation
	router.POST("/search", controller.GetSearchHandler(agg))

	// Image cache warm-up
	if appC.ConfigData.ImageCacheDir != "" {
		ic, err := imagecache.New(appC.ConfigData.ImageCacheDir)
		if err != nil {
			log.Printf("SERVICE_IMAGECACHEERR: %v\n", err)
		} else {
			router.POST("/images/cache", controller.GetImageCacheHandler(ic))
		}
	}

	router.GET("/admin/memstats", func(c echo.Context) (err error) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"heap_total":   utils.HumanReadable(memStats.TotalAlloc),
			"heap_in_use":  utils.HumanReadable(memStats.HeapInuse),
			"heap_alloc":   utils.HumanReadable(memStats.HeapAlloc),
			"heap_system":  utils.HumanReadable(memStats.HeapSys),
			"total_system": utils.HumanReadable(memStats.Sys),
			"stack_in_use": utils.HumanReadable(memStats.StackInuse),
			"stack_system": utils.HumanReadable(memStats.StackSys),
		})
	})

	router.GET("/health", func(c echo.Context) (err error) {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Start server
	go func() {
		if err := router.Start(":4310"); err != nil {
			router.Logger.Info("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with
	// a timeout of 10 seconds.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := router.Shutdown(ctx); err != nil {
		router.Logger.Fatal(err)
	}
}
