package types

import "time"

type (
	// FetchMetrics tracks one adapter call (platform level)
	FetchMetrics struct {
		Platform  Platform `json:"platform"`
		Strategy  string   `json:"strategy"`
		Pages     int      `json:"pages"`
		Items     int      `json:"items"`
		Blocked   bool     `json:"blocked"`
		Status    int      `json:"status"`
		TimeTaken float64  `json:"time_taken"`
		Value     int      `json:"value"`
	}

	// RunSummary is written to influx at the end of every batch run
	RunSummary struct {
		Job       string  `json:"job"`
		Platform  string  `json:"platform"`
		Processed int     `json:"processed"`
		Added     int     `json:"added"`
		Errors    int     `json:"errors"`
		Skipped   int     `json:"skipped"`
		Blocked   int     `json:"blocked"`
		Duration  float64 `json:"duration"`
	}

	BatchFetchMetrics map[string]*FetchMetrics

	// StatsManager fans metrics through channels to the collector goroutine,
	// which aggregates and flushes on a ticker
	StatsManager struct {
		Init                bool
		BatchFetchMetrics   BatchFetchMetrics
		FetchMetricsChannel chan FetchMetrics
		RunSummaryChannel   chan RunSummary
		LastFlushTime       time.Time
	}
)
