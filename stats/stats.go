package stats

import (
	"log"
	"time"

	influx "github.com/influxdata/influxdb/client/v2"

	"github.com/bulkmart/go-aggregator/types"
)

func InitializeStatsManagerClient(sm *types.StatsManager) {
	sm.BatchFetchMetrics = make(types.BatchFetchMetrics)
	sm.FetchMetricsChannel = make(chan types.FetchMetrics, 250)
	sm.RunSummaryChannel = make(chan types.RunSummary, 250)
	sm.LastFlushTime = time.Now()
	sm.Init = true
}

// CollectStats is the single consumer for all metric channels. It keeps
// per-batch aggregates in memory and flushes them to influx on a ticker.
func CollectStats(env string, sm *types.StatsManager, appC *types.Config) {
	influxTm := 600
	if env == "development" || env == "staging" {
		influxTm = 60
	}
	tickerInflux := time.NewTicker(time.Second * time.Duration(influxTm))

	for {
		select {

		// Channel to receive per-adapter fetch metrics
		case fm := <-sm.FetchMetricsChannel:
			initializeBatchFetchMetrics(sm, fm)
			aggregateFetchMetrics(sm, fm)
			writeFetchMetricsToDatadog(appC.StatsdClient, appC.ConfigData.Influx.FetchMetrics, &fm)

		// Channel to receive end-of-run summaries from batch workers
		case rs := <-sm.RunSummaryChannel:
			writeRunSummaryToInflux(rs, appC)

		// Flush cached fetch stats to influxdb on the ticker
		case <-tickerInflux.C:
			log.Println("STATS_1004: Flushing fetch stats to influxdb")
			flushFetchMetricsToDatabase(sm, appC)
			clearMetrics(sm)
		}
	}
}

func writeRunSummaryToInflux(rs types.RunSummary, appC *types.Config) {
	tags := map[string]string{
		"job":      rs.Job,
		"platform": rs.Platform,
	}

	fields := map[string]interface{}{
		"processed": rs.Processed,
		"added":     rs.Added,
		"errors":    rs.Errors,
		"skipped":   rs.Skipped,
		"blocked":   rs.Blocked,
		"duration":  rs.Duration,
	}

	measurement := appC.ConfigData.Influx.CoverageMetrics
	if rs.Job == "backfill" {
		measurement = appC.ConfigData.Influx.BackfillMetrics
	}
	writeDataToInfluxDB(measurement, tags, fields, time.Now(), appC)
}

func writeDataToInfluxDB(measurement string, tags map[string]string, fields map[string]interface{}, tm time.Time, appC *types.Config) {
	if measurement == "" || appC.ConfigData.Influx.Server == "" {
		return
	}

	// Make client
	config := influx.UDPConfig{Addr: appC.ConfigData.Influx.Server}
	c, err := influx.NewUDPClient(config)
	if err != nil {
		log.Println("ERROR: Error creating UDP client for influxdb: ", err.Error())
		return
	}
	defer c.Close()

	log.Printf("INFLUX_1001: Measurement: %s, tags: %v, fields: %v, InfluxUrl: %s\n", measurement, tags, fields, appC.ConfigData.Influx.Server)

	// Create a new point batch
	bp, _ := influx.NewBatchPoints(influx.BatchPointsConfig{
		Precision: "ns",
	})

	// Create a point and add to batch
	pt, err := influx.NewPoint(measurement, tags, fields, tm)
	if err != nil {
		log.Println("ERROR: Error creating influxdb point: ", err.Error())
		return
	}
	bp.AddPoint(pt)

	// Write the batch
	c.Write(bp)
}

func clearMetrics(sm *types.StatsManager) {
	log.Println("STATS_1401: Clearing fetch metrics")
	for key := range sm.BatchFetchMetrics {
		delete(sm.BatchFetchMetrics, key)
	}
	sm.LastFlushTime = time.Now()
}
