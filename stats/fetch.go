package stats

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/bulkmart/go-aggregator/types"
)

func fetchMetricsKey(fm types.FetchMetrics) string {
	return fmt.Sprintf("%s|%s|%d|%t", fm.Platform, fm.Strategy, fm.Status, fm.Blocked)
}

func initializeBatchFetchMetrics(sm *types.StatsManager, fm types.FetchMetrics) {
	key := fetchMetricsKey(fm)
	if _, ok := sm.BatchFetchMetrics[key]; !ok {
		sm.BatchFetchMetrics[key] = &types.FetchMetrics{
			Platform: fm.Platform,
			Strategy: fm.Strategy,
			Status:   fm.Status,
			Blocked:  fm.Blocked,
		}
	}
}

func aggregateFetchMetrics(sm *types.StatsManager, fm types.FetchMetrics) {
	batch := sm.BatchFetchMetrics[fetchMetricsKey(fm)]
	batch.Pages += fm.Pages
	batch.Items += fm.Items
	batch.TimeTaken += fm.TimeTaken
	batch.Value++
}

func flushFetchMetricsToDatabase(sm *types.StatsManager, appC *types.Config) {
	for _, batch := range sm.BatchFetchMetrics {
		tags := map[string]string{
			"platform": string(batch.Platform),
			"strategy": batch.Strategy,
			"status":   fmt.Sprintf("%d", batch.Status),
			"blocked":  fmt.Sprintf("%t", batch.Blocked),
		}
		fields := map[string]interface{}{
			"pages":      batch.Pages,
			"items":      batch.Items,
			"time_taken": batch.TimeTaken,
			"value":      batch.Value,
		}
		writeDataToInfluxDB(appC.ConfigData.Influx.FetchMetrics, tags, fields, time.Now(), appC)
	}
}

func writeFetchMetricsToDatadog(statsdClient *statsd.Client, metricName string, fm *types.FetchMetrics) {
	if statsdClient == nil || metricName == "" {
		return
	}

	tags := []string{
		fmt.Sprintf("platform:%s", fm.Platform),
		fmt.Sprintf("strategy:%s", fm.Strategy),
		fmt.Sprintf("status:%d", fm.Status),
		fmt.Sprintf("blocked:%t", fm.Blocked),
	}

	statsdClient.Distribution(fmt.Sprintf("%s.%s", metricName, "time_taken"), fm.TimeTaken, tags, 1)
	statsdClient.Distribution(fmt.Sprintf("%s.%s", metricName, "items"), float64(fm.Items), tags, 1)
	statsdClient.Incr(fmt.Sprintf("%s.%s", metricName, "value"), tags, 1)
}
