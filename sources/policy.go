package sources

import (
	"log"

	"github.com/bulkmart/go-aggregator/composable_error"
	"github.com/bulkmart/go-aggregator/types"
)

var errTimeout = composable_error.New("FETCH_TIMEOUT", "adapter call exceeded its deadline")

// ErrBlocked is returned when a platform serves a bot wall for the whole
// call; callers treat it as a block signal, not a transient failure
var ErrBlocked = composable_error.New("PLATFORM_BLOCKED", "platform returned a block marker or rate-limit status")

// StrategyFunc is one fetch path (static or rendered) of an adapter
type StrategyFunc func(query string, limit int, opts *types.FetchOptions) ([]*types.ExternalListing, bool)

// RunStrategies applies the escalation policy shared by all adapters:
// static first, rendered only when the static yield is below minHits and
// headless mode is allowed, keeping whichever path yielded more. Both
// strategies report whether the platform blocked the call.
func RunStrategies(platform types.Platform, static, rendered StrategyFunc, query string, limit int, minHits int, opts *types.FetchOptions) ([]*types.ExternalListing, error) {
	var staticItems []*types.ExternalListing
	blocked := false

	if !opts.ForceHeadless {
		staticItems, blocked = static(query, limit, opts)
		if len(staticItems) >= minHits || (!opts.Headless && !opts.ForceHeadless) {
			if len(staticItems) == 0 && blocked {
				return nil, ErrBlocked
			}
			return staticItems, nil
		}
	}

	if opts.Debug {
		log.Printf("SOURCES_ESCALATE: (%s, %s) static yield %d below %d, rendering\n", platform, query, len(staticItems), minHits)
	}
	renderedItems, renderBlocked := rendered(query, limit, opts)
	if len(renderedItems) > len(staticItems) {
		return renderedItems, nil
	}
	if len(staticItems) == 0 && (blocked || renderBlocked) {
		return nil, ErrBlocked
	}
	return staticItems, nil
}
