package types

// AggregationWorkflow carries one live query through the pipeline stages.
// FailureType/FailureMessage are only set when the whole request fails;
// per-platform degradation is reported through Meta instead.
type AggregationWorkflow struct {
	Query          *SearchQuery
	Raw            []*ExternalListing
	Filtered       []*ExternalListing
	Total          int
	CacheTier      string
	Degraded       []Platform
	Status         int
	FailureType    *string
	FailureMessage *string
	Durations      map[string]float64
}

// Fail marks the workflow failed with a code and message
func (w *AggregationWorkflow) Fail(code, message string) {
	w.Status = 0
	w.FailureType = &code
	w.FailureMessage = &message
}
