package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bulkmart/go-aggregator/quality"
	"github.com/bulkmart/go-aggregator/sources"
	"github.com/bulkmart/go-aggregator/types"
)

// mockStore is an in-memory dbs.Store used across the pipeline tests
type mockStore struct {
	mu        sync.Mutex
	listings  map[string]*types.ExternalListing
	snapshots map[string]*types.SearchSnapshot
	coverage  *types.CoverageProgress
	backfill  map[types.Platform]*types.BackfillProgress
	upserts   int
}

func newMockStore() *mockStore {
	return &mockStore{
		listings:  make(map[string]*types.ExternalListing),
		snapshots: make(map[string]*types.SearchSnapshot),
		backfill:  make(map[types.Platform]*types.BackfillProgress),
	}
}

func (s *mockStore) UpsertListings(items []*types.ExternalListing) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	s.upserts++
	for _, l := range items {
		if existing, ok := s.listings[l.Key()]; ok {
			l.Categories = mergeStrings(existing.Categories, l.Categories)
			l.Terms = mergeStrings(existing.Terms, l.Terms)
			if l.Attempts == 0 {
				l.Attempts = existing.Attempts
			}
			if !l.Skipped {
				l.Skipped = existing.Skipped
			}
		} else {
			added++
		}
		clone := *l
		s.listings[l.Key()] = &clone
	}
	return added, nil
}

func (s *mockStore) CountListingsByCategory(leafKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, l := range s.listings {
		for _, c := range l.Categories {
			if c == leafKey {
				count++
				break
			}
		}
	}
	return count, nil
}

func (s *mockStore) ListingsByURLs(platform types.Platform, urls []string) ([]*types.ExternalListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.ExternalListing, 0, len(urls))
	for _, u := range urls {
		for _, l := range s.listings {
			if l.URL == u && (platform == types.PlatformAll || platform == "" || l.Platform == platform) {
				clone := *l
				out = append(out, &clone)
				break
			}
		}
	}
	return out, nil
}

func (s *mockStore) ListingsByQuality(platform types.Platform, qualities []string, offset, limit int) ([]*types.ExternalListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]*types.ExternalListing, 0)
	for _, l := range s.listings {
		if l.Platform != platform || l.Skipped {
			continue
		}
		for _, q := range qualities {
			if l.Quality == q {
				clone := *l
				matched = append(matched, &clone)
				break
			}
		}
	}
	quality.SortListings(matched)
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *mockStore) GetSnapshot(id string, maxAgeSecs int) (*types.SearchSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots[id], nil
}

func (s *mockStore) PutSnapshot(snap *types.SearchSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.ID] = snap
	return nil
}

func (s *mockStore) LoadCoverageProgress() (*types.CoverageProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coverage == nil {
		return &types.CoverageProgress{ID: "coverage", Cooldowns: make(map[string]int)}, nil
	}
	return s.coverage, nil
}

func (s *mockStore) SaveCoverageProgress(p *types.CoverageProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coverage = p
	return nil
}

func (s *mockStore) LoadBackfillProgress(platform types.Platform) (*types.BackfillProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.backfill[platform]; ok {
		return p, nil
	}
	return &types.BackfillProgress{ID: fmt.Sprintf("backfill_%s", platform), Platform: platform, Attempts: make(map[string]int)}, nil
}

func (s *mockStore) SaveBackfillProgress(p *types.BackfillProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backfill[p.Platform] = p
	return nil
}

func (s *mockStore) listingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listings)
}

func (s *mockStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

func (s *mockStore) listing(key string) *types.ExternalListing {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.listings[key]; ok {
		clone := *l
		return &clone
	}
	return nil
}

func mergeStrings(old, add []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(old)+len(add))
	for _, v := range append(append([]string{}, old...), add...) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// mockAdapter fabricates listings per query and can fail or enrich on demand
type mockAdapter struct {
	mu          sync.Mutex
	platform    types.Platform
	perQuery    int
	fetchErr    error
	enrichAttrs int
	enrichErr   error
	fetches     int
	enriches    int
}

func (m *mockAdapter) Platform() types.Platform {
	return m.platform
}

func (m *mockAdapter) Fetch(query string, limit int, opts *types.FetchOptions) ([]*types.ExternalListing, error) {
	m.mu.Lock()
	m.fetches++
	m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	n := m.perQuery
	if n > limit {
		n = limit
	}
	slug := strings.ReplaceAll(strings.ToLower(query), " ", "-")
	items := make([]*types.ExternalListing, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, &types.ExternalListing{
			Platform: m.platform,
			URL:      fmt.Sprintf("https://example.com/%s/%s/%d", m.platform, slug, i),
			Title:    fmt.Sprintf("%s item %d", query, i),
		})
	}
	return items, nil
}

func (m *mockAdapter) Enrich(l *types.ExternalListing, opts *types.FetchOptions) error {
	m.mu.Lock()
	m.enriches++
	m.mu.Unlock()
	if m.enrichErr != nil {
		return m.enrichErr
	}
	attrs := make(map[string]string, m.enrichAttrs)
	for i := 0; i < m.enrichAttrs; i++ {
		attrs[fmt.Sprintf("attr%d", i)] = "v"
	}
	l.Attributes = attrs
	l.Image = "https://example.com/image.jpg"
	return nil
}

var _ sources.ProviderAdapter = (*mockAdapter)(nil)
var _ sources.DetailFetcher = (*mockAdapter)(nil)

func newTestConfig() *types.Config {
	cd := &types.ConfigData{
		Env:             "test",
		MaxPageSize:     10,
		FetchTimeout:    2,
		HeadlessMinHits: 1,
		Quality:         types.QualityConfig{GoodMinAttrs: 3, PartialMinAttrs: 1},
		Coverage: types.CoverageConfig{
			Target:       2,
			CooldownRuns: 2,
			MaxCycles:    3,
			Concurrency:  2,
			BatchSize:    5,
		},
		Backfill: types.BackfillConfig{
			BatchSize:      2,
			MaxConcurrency: 2,
			RetryCeiling:   2,
			BlockCooldown:  0,
		},
		CacheTtl:       60,
		SnapshotMaxAge: 600,
	}
	return &types.Config{WorkerID: "test-worker", ConfigData: cd}
}

func newTestAggregator(appC *types.Config, store *mockStore, adapters ...*mockAdapter) *Aggregator {
	reg := sources.Registry{}
	for _, a := range adapters {
		reg[a.platform] = a
	}
	return &Aggregator{
		AppC:   appC,
		Reg:    reg,
		Store:  store,
		Policy: quality.PolicyFromConfig(appC.ConfigData),
	}
}
