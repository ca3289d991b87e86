package dbs

import (
	"context"
	"fmt"
	"log"
	"time"

	pg "github.com/go-pg/pg"
	"go.mongodb.org/mongo-driver/bson"
	mongo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bulkmart/go-aggregator/types"
)

// Store is the durable persistence surface shared by the live path, the
// coverage orchestrator and the backfill worker. Every write is an upsert
// keyed on stable identity, so concurrent writers are safe without locks.
type Store interface {
	UpsertListings(items []*types.ExternalListing) (int, error)
	CountListingsByCategory(leafKey string) (int, error)
	ListingsByURLs(platform types.Platform, urls []string) ([]*types.ExternalListing, error)
	ListingsByQuality(platform types.Platform, qualities []string, offset, limit int) ([]*types.ExternalListing, error)
	GetSnapshot(id string, maxAgeSecs int) (*types.SearchSnapshot, error)
	PutSnapshot(snap *types.SearchSnapshot) error
	LoadCoverageProgress() (*types.CoverageProgress, error)
	SaveCoverageProgress(p *types.CoverageProgress) error
	LoadBackfillProgress(platform types.Platform) (*types.BackfillProgress, error)
	SaveBackfillProgress(p *types.BackfillProgress) error
}

const (
	mongoDatabase       = "aggregator"
	snapshotsCollection = "search_snapshots"
	progressCollection  = "pipeline_progress"
	mongoOpTimeout      = 10 * time.Second
)

// PipelineStore keeps listings in postgres and snapshots/progress in mongo
type PipelineStore struct {
	PG    *pg.DB
	Mongo *mongo.Client
}

func NewPipelineStore(appC *types.Config) *PipelineStore {
	return &PipelineStore{PG: appC.PGListings, Mongo: appC.MongoClient}
}

// UpsertListings writes a batch keyed on (platform, url). Re-ingestion
// updates fields and merges category/term provenance instead of
// duplicating rows. Returns how many rows were new.
func (s *PipelineStore) UpsertListings(items []*types.ExternalListing) (added int, err error) {
	for _, l := range items {
		existing := &types.ExternalListing{}
		found := true
		err = s.PG.Model(existing).
			Where("platform = ?", l.Platform).
			Where("url = ?", l.URL).
			Select()
		if err != nil {
			if err != pg.ErrNoRows {
				return added, fmt.Errorf("STORE_SELECTERR: (%s) %v", l.URL, err)
			}
			found = false
		}

		if found {
			l.Categories = mergeSets(existing.Categories, l.Categories)
			l.Terms = mergeSets(existing.Terms, l.Terms)
			if len(l.Attributes) == 0 {
				l.Attributes = existing.Attributes
			}
			if l.Image == "" {
				l.Image = existing.Image
			}
			// Retry state is owned by backfill: caller-set values win,
			// a fresh live-path row never resets them
			if l.Attempts == 0 {
				l.Attempts = existing.Attempts
			}
			if !l.Skipped {
				l.Skipped = existing.Skipped
			}
		} else {
			added++
		}
		l.CrawlUpdatedAt = time.Now().Unix()

		_, err = s.PG.Model(l).
			OnConflict("(platform, url) DO UPDATE").
			Set("title = EXCLUDED.title, image = EXCLUDED.image, description = EXCLUDED.description, price = EXCLUDED.price, price_min = EXCLUDED.price_min, price_max = EXCLUDED.price_max, currency = EXCLUDED.currency, moq = EXCLUDED.moq, moq_value = EXCLUDED.moq_value, store_name = EXCLUDED.store_name, rating = EXCLUDED.rating, orders = EXCLUDED.orders, attributes = EXCLUDED.attributes, categories = EXCLUDED.categories, terms = EXCLUDED.terms, quality = EXCLUDED.quality, attempts = EXCLUDED.attempts, skipped = EXCLUDED.skipped, crawl_updated_at = EXCLUDED.crawl_updated_at").
			Insert()
		if err != nil {
			return added, fmt.Errorf("STORE_UPSERTERR: (%s) %v", l.URL, err)
		}
	}
	return added, nil
}

func (s *PipelineStore) CountListingsByCategory(leafKey string) (int, error) {
	count, err := s.PG.Model(&types.ExternalListing{}).
		Where("? = ANY(categories)", leafKey).
		Count()
	if err != nil {
		return 0, fmt.Errorf("STORE_COUNTERR: (%s) %v", leafKey, err)
	}
	return count, nil
}

// ListingsByURLs hydrates a snapshot page preserving the snapshot order
func (s *PipelineStore) ListingsByURLs(platform types.Platform, urls []string) ([]*types.ExternalListing, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	var rows []*types.ExternalListing
	q := s.PG.Model(&rows).Where("url in (?)", pg.In(urls))
	if platform != types.PlatformAll && platform != "" {
		q = q.Where("platform = ?", platform)
	}
	if err := q.Select(); err != nil && err != pg.ErrNoRows {
		return nil, fmt.Errorf("STORE_HYDRATEERR: %v", err)
	}

	byURL := make(map[string]*types.ExternalListing, len(rows))
	for _, l := range rows {
		byURL[l.URL] = l
	}
	out := make([]*types.ExternalListing, 0, len(urls))
	for _, u := range urls {
		if l, ok := byURL[u]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// ListingsByQuality pages through re-scrape candidates for backfill
func (s *PipelineStore) ListingsByQuality(platform types.Platform, qualities []string, offset, limit int) ([]*types.ExternalListing, error) {
	var rows []*types.ExternalListing
	err := s.PG.Model(&rows).
		Where("platform = ?", platform).
		Where("quality in (?)", pg.In(qualities)).
		Where("skipped is not true").
		Order("url ASC").
		Offset(offset).
		Limit(limit).
		Select()
	if err != nil && err != pg.ErrNoRows {
		return nil, fmt.Errorf("STORE_QUALITYSCANERR: (%s) %v", platform, err)
	}
	return rows, nil
}

func (s *PipelineStore) GetSnapshot(id string, maxAgeSecs int) (*types.SearchSnapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	snap := &types.SearchSnapshot{}
	err := s.snapshots().FindOne(ctx, bson.M{"_id": id}).Decode(snap)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("STORE_SNAPREADERR: (%s) %v", id, err)
	}

	age := time.Now().Unix() - snap.Timestamp
	if maxAgeSecs > 0 && age >= int64(maxAgeSecs) {
		log.Printf("STORE_SNAPSTALE: (%s) age %d secs\n", id, age)
		return nil, nil
	}
	return snap, nil
}

func (s *PipelineStore) PutSnapshot(snap *types.SearchSnapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	snap.Timestamp = time.Now().Unix()
	_, err := s.snapshots().ReplaceOne(ctx, bson.M{"_id": snap.ID}, snap, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("STORE_SNAPWRITEERR: (%s) %v", snap.ID, err)
	}
	return nil
}

func (s *PipelineStore) LoadCoverageProgress() (*types.CoverageProgress, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	p := &types.CoverageProgress{}
	err := s.progress().FindOne(ctx, bson.M{"_id": "coverage"}).Decode(p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return &types.CoverageProgress{ID: "coverage", Cooldowns: make(map[string]int)}, nil
		}
		return nil, fmt.Errorf("STORE_PROGRESSREADERR: %v", err)
	}
	if p.Cooldowns == nil {
		p.Cooldowns = make(map[string]int)
	}
	return p, nil
}

func (s *PipelineStore) SaveCoverageProgress(p *types.CoverageProgress) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	p.ID = "coverage"
	p.UpdatedAt = time.Now().Unix()
	_, err := s.progress().ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("STORE_PROGRESSWRITEERR: %v", err)
	}
	return nil
}

func (s *PipelineStore) LoadBackfillProgress(platform types.Platform) (*types.BackfillProgress, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	id := fmt.Sprintf("backfill_%s", platform)
	p := &types.BackfillProgress{}
	err := s.progress().FindOne(ctx, bson.M{"_id": id}).Decode(p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return &types.BackfillProgress{ID: id, Platform: platform, Attempts: make(map[string]int)}, nil
		}
		return nil, fmt.Errorf("STORE_PROGRESSREADERR: (%s) %v", id, err)
	}
	if p.Attempts == nil {
		p.Attempts = make(map[string]int)
	}
	return p, nil
}

func (s *PipelineStore) SaveBackfillProgress(p *types.BackfillProgress) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	_, err := s.progress().ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("STORE_PROGRESSWRITEERR: (%s) %v", p.ID, err)
	}
	return nil
}

func (s *PipelineStore) snapshots() *mongo.Collection {
	return s.Mongo.Database(mongoDatabase).Collection(snapshotsCollection)
}

func (s *PipelineStore) progress() *mongo.Collection {
	return s.Mongo.Database(mongoDatabase).Collection(progressCollection)
}

func mergeSets(old, new []string) []string {
	seen := make(map[string]bool, len(old)+len(new))
	out := make([]string, 0, len(old)+len(new))
	for _, v := range append(append([]string{}, old...), new...) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
