package pipeline

import (
	"log"
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/bulkmart/go-aggregator/composable_error"
	"github.com/bulkmart/go-aggregator/imagecache"
	"github.com/bulkmart/go-aggregator/quality"
	"github.com/bulkmart/go-aggregator/sources"
	"github.com/bulkmart/go-aggregator/types"
	"github.com/bulkmart/go-aggregator/utils"
)

// BackfillRunner re-scrapes partial and bad listings, promoting their
// quality class once detail pages yield the missing attributes. Listings
// that exhaust the retry ceiling are marked skipped and never revisited.
type BackfillRunner struct {
	AppC   *types.Config
	Agg    *Aggregator
	DryRun bool
	Images *imagecache.ImageCache

	concurrency int
	stopped     bool
	mu          sync.Mutex
}

func NewBackfillRunner(appC *types.Config, agg *Aggregator, dryRun bool) *BackfillRunner {
	b := &BackfillRunner{
		AppC:        appC,
		Agg:         agg,
		DryRun:      dryRun,
		concurrency: appC.ConfigData.Backfill.MaxConcurrency,
	}
	if dir := appC.ConfigData.ImageCacheDir; dir != "" {
		ic, err := imagecache.New(dir)
		if err != nil {
			log.Printf("BACKFILL_IMAGECACHEERR: %v\n", err)
		} else {
			b.Images = ic
		}
	}
	return b
}

// Stop requests a graceful stop after the current batch
func (b *BackfillRunner) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
	log.Println("BACKFILL_STOP: Stop requested, finishing current batch")
}

func (b *BackfillRunner) isStopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}

// Run drains the retry queue for one platform (or every platform in turn)
func (b *BackfillRunner) Run(platform types.Platform) error {
	platforms := []types.Platform{platform}
	if platform == types.PlatformAll || platform == "" {
		platforms = types.AllPlatforms
	}

	for _, p := range platforms {
		if b.isStopped() {
			return nil
		}
		if err := b.runPlatform(p); err != nil {
			return err
		}
	}
	return nil
}

func (b *BackfillRunner) runPlatform(platform types.Platform) error {
	cfg := b.AppC.ConfigData.Backfill
	start := time.Now()

	adapter, ok := b.Agg.Reg[platform].(sources.DetailFetcher)
	if !ok {
		return composable_error.Newf("BACKFILL_NOADAPTER", "no detail fetcher registered for %s", platform)
	}

	// 1. Resume from the persisted checkpoint
	progress, err := b.Agg.Store.LoadBackfillProgress(platform)
	if err != nil {
		return err
	}
	log.Printf("BACKFILL_RESUME: (%s) offset %d, %d attempt records\n", platform, progress.Offset, len(progress.Attempts))

	qualities := []string{types.QualityPartial, types.QualityBad}
	processed := 0
	for {
		if b.isStopped() {
			break
		}

		// 2. Page the next batch of re-scrape candidates
		batch, err := b.Agg.Store.ListingsByQuality(platform, qualities, progress.Offset, cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			// Queue drained: reset the cursor so the next run starts fresh
			progress.Offset = 0
			if !b.DryRun {
				if err = b.Agg.Store.SaveBackfillProgress(progress); err != nil {
					log.Printf("BACKFILL_CHECKPOINTERR: (%s) %v\n", platform, err)
				}
			}
			break
		}

		// 3. Process the batch under the current concurrency ceiling
		blockedInBatch := b.processBatch(adapter, batch, progress)

		// 4. Persist listings and checkpoint after every batch
		progress.Offset += len(batch)
		processed += len(batch)
		if !b.DryRun {
			if _, err = b.Agg.Store.UpsertListings(batch); err != nil {
				log.Printf("BACKFILL_UPSERTERR: (%s) %v\n", platform, err)
				progress.Errors++
			}
			if err = b.Agg.Store.SaveBackfillProgress(progress); err != nil {
				log.Printf("BACKFILL_CHECKPOINTERR: (%s) %v\n", platform, err)
			}
			b.cacheImages(batch)
		}

		// 5. Block-aware backoff: halve concurrency and cool down, else
		// creep back up toward the ceiling
		if blockedInBatch {
			b.throttle(platform, cfg.BlockCooldown)
		} else if b.concurrency < cfg.MaxConcurrency {
			b.concurrency++
		}
	}

	summary := types.RunSummary{
		Job:       "backfill",
		Platform:  string(platform),
		Processed: processed,
		Added:     progress.Good,
		Errors:    progress.Errors,
		Skipped:   progress.Skipped,
		Duration:  utils.ComputeDuration(start),
	}
	b.emitRunSummary(summary)
	log.Printf("BACKFILL_DONE: (%s) processed %d, good %d, partial %d, bad %d, skipped %d, errors %d, duration %.1fs\n",
		platform, summary.Processed, progress.Good, progress.Partial, progress.Bad, progress.Skipped, progress.Errors, summary.Duration)
	return nil
}

// processBatch re-scrapes one batch concurrently and reports whether any
// call hit a block wall
func (b *BackfillRunner) processBatch(adapter sources.DetailFetcher, batch []*types.ExternalListing, progress *types.BackfillProgress) (blocked bool) {
	cfg := b.AppC.ConfigData.Backfill
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, l := range batch {
		// Workers from earlier iterations update the map concurrently
		mu.Lock()
		attempts := progress.Attempts[l.URL]
		mu.Unlock()

		// Retry ceiling: give up on this listing for good
		if attempts >= cfg.RetryCeiling {
			l.Skipped = true
			progress.Skipped++
			if b.DryRun {
				log.Printf("BACKFILL_DRYRUN: would skip (%s) after %d attempts\n", l.URL, attempts)
			}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(l *types.ExternalListing) {
			defer wg.Done()
			defer func() { <-sem }()

			wasBlocked, err := b.enrichOne(adapter, l)

			mu.Lock()
			defer mu.Unlock()
			progress.Attempts[l.URL] = progress.Attempts[l.URL] + 1
			l.Attempts = progress.Attempts[l.URL]
			if wasBlocked {
				blocked = true
			}
			if err != nil {
				progress.Errors++
				return
			}
			switch l.Quality {
			case types.QualityGood:
				progress.Good++
			case types.QualityPartial:
				progress.Partial++
			default:
				progress.Bad++
			}
		}(l)
	}
	wg.Wait()
	return blocked
}

// enrichOne re-scrapes a single listing into a scratch copy and merges the
// non-empty results back, so a failed detail fetch never wipes known fields
func (b *BackfillRunner) enrichOne(adapter sources.DetailFetcher, l *types.ExternalListing) (blocked bool, err error) {
	scratch := &types.ExternalListing{}
	if err = copier.Copy(scratch, l); err != nil {
		return false, err
	}

	err = adapter.Enrich(scratch, &types.FetchOptions{Debug: b.DryRun})
	if err != nil {
		if composable_error.GetCode(err) == "PLATFORM_BLOCKED" {
			return true, err
		}
		return false, err
	}

	if b.DryRun {
		log.Printf("BACKFILL_DRYRUN: would update (%s) attrs %d -> %d\n", l.URL, len(l.Attributes), len(scratch.Attributes))
		return false, nil
	}

	if err = copier.CopyWithOption(l, scratch, copier.Option{IgnoreEmpty: true}); err != nil {
		return false, err
	}
	l.Quality = quality.Classify(l, b.Agg.Policy)
	return false, nil
}

// cacheImages mirrors the images of promoted listings, best effort
func (b *BackfillRunner) cacheImages(batch []*types.ExternalListing) {
	if b.Images == nil {
		return
	}
	urls := make([]string, 0, len(batch))
	for _, l := range batch {
		if l.Quality == types.QualityGood && l.Image != "" {
			urls = append(urls, l.Image)
		}
	}
	if len(urls) > 0 {
		b.Images.EnsureAll(urls)
	}
}

func (b *BackfillRunner) throttle(platform types.Platform, cooldownSecs int) {
	if b.concurrency > 1 {
		b.concurrency = b.concurrency / 2
	}
	log.Printf("BACKFILL_THROTTLE: (%s) block detected, concurrency %d, sleeping %d secs\n", platform, b.concurrency, cooldownSecs)
	for slept := 0; slept < cooldownSecs && !b.isStopped(); slept++ {
		time.Sleep(time.Second)
	}
}

func (b *BackfillRunner) emitRunSummary(summary types.RunSummary) {
	sm := b.AppC.StatsManager
	if sm == nil || !sm.Init {
		return
	}
	sm.RunSummaryChannel <- summary
}
