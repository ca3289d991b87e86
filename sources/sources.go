package sources

import (
	"log"
	"sync"
	"time"

	"github.com/bulkmart/go-aggregator/types"
)

// ProviderAdapter turns a free-text query into normalized listings for one
// marketplace. All platform-specific behavior (selectors, pagination
// ceilings, MOQ policy) lives behind this interface; the pipeline never
// branches on platform identity outside the registry.
type ProviderAdapter interface {
	Platform() types.Platform
	Fetch(query string, limit int, opts *types.FetchOptions) ([]*types.ExternalListing, error)
}

// DetailFetcher is implemented by adapters that can re-scrape a single
// listing's detail page to fill attributes the search card did not carry
type DetailFetcher interface {
	Enrich(l *types.ExternalListing, opts *types.FetchOptions) error
}

// Registry is the static platform -> adapter map
type Registry map[types.Platform]ProviderAdapter

// Adapters returns the adapters selected by a platform filter ("all" fans
// out to every registered platform)
func (r Registry) Adapters(platform types.Platform) []ProviderAdapter {
	if platform == types.PlatformAll || platform == "" {
		out := make([]ProviderAdapter, 0, len(r))
		for _, p := range types.AllPlatforms {
			if a, ok := r[p]; ok {
				out = append(out, a)
			}
		}
		return out
	}
	if a, ok := r[platform]; ok {
		return []ProviderAdapter{a}
	}
	return nil
}

type fetchResult struct {
	platform types.Platform
	items    []*types.ExternalListing
	err      error
}

// FetchAll runs the selected adapters in parallel, each bounded by its own
// timeout. A slow or failed adapter degrades that platform's contribution
// instead of failing the merged result; the degraded platforms are reported
// back for the response meta.
func FetchAll(reg Registry, platform types.Platform, query string, limit int, opts *types.FetchOptions, timeout time.Duration) (merged []*types.ExternalListing, degraded []types.Platform) {
	adapters := reg.Adapters(platform)
	if len(adapters) == 0 {
		return nil, nil
	}

	start := time.Now()
	outputCh := make(chan *fetchResult, len(adapters))
	var wg sync.WaitGroup

	for _, adapter := range adapters {
		wg.Add(1)
		go func(a ProviderAdapter) {
			defer wg.Done()

			done := make(chan *fetchResult, 1)
			go func() {
				items, err := a.Fetch(query, limit, opts)
				done <- &fetchResult{platform: a.Platform(), items: items, err: err}
			}()

			select {
			case res := <-done:
				outputCh <- res
			case <-time.After(timeout):
				log.Printf("FETCHALL_TIMEOUT: (%s, %s) adapter exceeded %.0fs\n", a.Platform(), query, timeout.Seconds())
				outputCh <- &fetchResult{platform: a.Platform(), err: errTimeout}
			}
		}(adapter)
	}
	wg.Wait()
	close(outputCh)

	merged = make([]*types.ExternalListing, 0)
	for res := range outputCh {
		if res.err != nil {
			log.Printf("FETCHALL_DEGRADED: (%s, %s) %v\n", res.platform, query, res.err)
			degraded = append(degraded, res.platform)
			continue
		}
		merged = append(merged, res.items...)
	}
	log.Printf("FETCHALL_DONE: (%s) platforms %d, items %d, degraded %d, duration %.2fs\n",
		query, len(adapters), len(merged), len(degraded), time.Since(start).Seconds())
	return merged, degraded
}
