package pipeline

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jeffail/tunny"

	"github.com/bulkmart/go-aggregator/quality"
	"github.com/bulkmart/go-aggregator/sources"
	"github.com/bulkmart/go-aggregator/taxonomy"
	"github.com/bulkmart/go-aggregator/types"
	"github.com/bulkmart/go-aggregator/utils"
)

// CoverageRunner walks the taxonomy and tops up leaves that sit below the
// listing target. Progress is checkpointed after every leaf, so a restart
// resumes from the leaf after the last completed one.
type CoverageRunner struct {
	AppC *types.Config
	Agg  *Aggregator
	Tax  *taxonomy.Taxonomy

	rand    *rand.Rand
	stopped int32
}

type termJob struct {
	LeafKey string
	Term    string
}

type termResult struct {
	term    string
	added   int
	blocked bool
	err     error
}

func NewCoverageRunner(appC *types.Config, agg *Aggregator) (*CoverageRunner, error) {
	tax, err := taxonomy.Load(appC.ConfigData.TaxonomyFile)
	if err != nil {
		return nil, err
	}
	return &CoverageRunner{
		AppC: appC,
		Agg:  agg,
		Tax:  tax,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Stop requests a graceful stop: the current leaf finishes and its
// checkpoint is written before Run returns
func (c *CoverageRunner) Stop() {
	atomic.StoreInt32(&c.stopped, 1)
	log.Println("COVERAGE_STOP: Stop requested, finishing current leaf")
}

func (c *CoverageRunner) isStopped() bool {
	return atomic.LoadInt32(&c.stopped) == 1
}

// Run drives coverage cycles until every leaf meets the final target or
// the cycle ceiling is hit
func (c *CoverageRunner) Run() error {
	cfg := c.AppC.ConfigData.Coverage

	// 1. Create the bounded worker pool for term fetches
	pool := tunny.NewFunc(cfg.Concurrency, func(payload interface{}) interface{} {
		job := payload.(termJob)
		return c.fetchTerm(job)
	})
	defer pool.Close()
	c.AppC.TermPool = pool

	// 2. Resume from the persisted checkpoint
	progress, err := c.Agg.Store.LoadCoverageProgress()
	if err != nil {
		return err
	}
	log.Printf("COVERAGE_RESUME: stage %d, offset %d, %d cooldowns\n", progress.Stage, progress.Offset, len(progress.Cooldowns))

	for cycle := 0; cycle < cfg.MaxCycles; cycle++ {
		if c.isStopped() {
			return nil
		}

		target := c.stageTarget(progress.Stage)
		summary, allMet := c.runCycle(pool, progress, target)
		c.emitRunSummary(summary)

		if c.isStopped() {
			return nil
		}

		// 3. Stage advance: every leaf met this stage's target
		if allMet {
			if target >= cfg.Target {
				log.Printf("COVERAGE_DONE: final target %d met everywhere after %d cycles\n", cfg.Target, cycle+1)
				return nil
			}
			progress.Stage++
			progress.Offset = 0
			log.Printf("COVERAGE_STAGE: advancing to stage %d (target %d)\n", progress.Stage, c.stageTarget(progress.Stage))
		}
		if err := c.Agg.Store.SaveCoverageProgress(progress); err != nil {
			log.Printf("COVERAGE_CHECKPOINTERR: %v\n", err)
		}
	}
	log.Printf("COVERAGE_CEILING: stopping after %d cycles\n", cfg.MaxCycles)
	return nil
}

// runCycle walks every leaf once in rotated order
func (c *CoverageRunner) runCycle(pool *tunny.Pool, progress *types.CoverageProgress, target int) (summary types.RunSummary, allMet bool) {
	cfg := c.AppC.ConfigData.Coverage
	start := time.Now()
	summary = types.RunSummary{Job: "coverage", Platform: string(types.PlatformAll)}
	allMet = true

	leaves := c.Tax.Order(progress.Offset, cfg.Shuffle)
	for _, leaf := range leaves {
		if c.isStopped() {
			return summary, false
		}
		summary.Processed++

		// Cooldown: the leaf failed to grow recently, skip this run. It is
		// still below target, so it keeps blocking stage advancement.
		if runs := progress.Cooldowns[leaf.Key]; runs > 0 {
			progress.Cooldowns[leaf.Key] = runs - 1
			summary.Skipped++
			allMet = false
			c.checkpoint(progress)
			continue
		}

		count, err := c.Agg.Store.CountListingsByCategory(leaf.Key)
		if err != nil {
			// Best effort on store outage: count as zero and keep walking
			log.Printf("COVERAGE_COUNTERR: (%s) %v\n", leaf.Key, err)
			summary.Errors++
		}
		if count >= target {
			c.checkpoint(progress)
			continue
		}
		allMet = false

		added, blocked := c.topUpLeaf(pool, leaf, target, count, progress.Stage)
		summary.Added += added
		if blocked {
			summary.Blocked++
		}
		if added == 0 {
			// Exhausted the term pool without growth, back off this leaf
			progress.Cooldowns[leaf.Key] = cfg.CooldownRuns
			log.Printf("COVERAGE_COOLDOWN: (%s) no growth, cooling down for %d runs\n", leaf.Key, cfg.CooldownRuns)
		}
		c.checkpoint(progress)
	}

	progress.Offset = (progress.Offset + 1) % maxInt(len(leaves), 1)
	summary.Duration = utils.ComputeDuration(start)
	log.Printf("COVERAGE_CYCLE: processed %d, added %d, skipped %d, errors %d, duration %.1fs\n",
		summary.Processed, summary.Added, summary.Skipped, summary.Errors, summary.Duration)
	return summary, allMet
}

// topUpLeaf burns through the leaf's term pool in concurrency-sized waves
// until the target is met or the pool is exhausted
func (c *CoverageRunner) topUpLeaf(pool *tunny.Pool, leaf taxonomy.Leaf, target, count, stage int) (added int, blocked bool) {
	cfg := c.AppC.ConfigData.Coverage
	terms := TermsForLeaf(leaf, stage)

	// Perturbed fallback terms for leaves stuck below target
	base := leaf.QueryName()
	terms = append(terms, fmt.Sprintf("%s %s", base, RandomToken(c.rand)))

	utils.BatchProcessItems(terms, cfg.Concurrency, func(wave []string) error {
		// Remaining waves are skipped once the leaf is topped up
		if c.isStopped() || count+added >= target {
			return nil
		}

		results := make([]termResult, len(wave))
		var wg sync.WaitGroup
		for i, term := range wave {
			wg.Add(1)
			go func(i int, term string) {
				defer wg.Done()
				results[i] = pool.Process(termJob{LeafKey: leaf.Key, Term: term}).(termResult)
			}(i, term)
		}
		wg.Wait()

		for _, res := range results {
			if res.err != nil {
				log.Printf("COVERAGE_TERMERR: (%s, %s) %v\n", leaf.Key, res.term, res.err)
				continue
			}
			if res.blocked {
				blocked = true
			}
			added += res.added
		}
		return nil
	})
	if added > 0 {
		log.Printf("COVERAGE_TOPUP: (%s) %d -> %d listings (target %d)\n", leaf.Key, count, count+added, target)
	}
	return added, blocked
}

// fetchTerm runs one top-up query and upserts the results tagged with the
// leaf and term. Listings reached from multiple leaves accumulate every
// category tag through the store's set-union merge.
func (c *CoverageRunner) fetchTerm(job termJob) termResult {
	cfg := c.AppC.ConfigData.Coverage
	opts := &types.FetchOptions{Headless: true}
	timeout := time.Duration(c.AppC.ConfigData.FetchTimeout*3) * time.Second

	raw, degraded := sources.FetchAll(c.Agg.Reg, types.PlatformAll, job.Term, cfg.BatchSize, opts, timeout)
	res := termResult{term: job.Term, blocked: len(degraded) > 0}
	if len(raw) == 0 {
		return res
	}

	filtered := quality.FilterBatch(raw, types.QueryFilters{}, c.Agg.Policy)
	quality.ClassifyAll(filtered, c.Agg.Policy)
	for _, l := range filtered {
		l.Terms = []string{job.Term}
		l.Categories = []string{job.LeafKey}
	}

	added, err := c.Agg.Store.UpsertListings(filtered)
	if err != nil {
		res.err = err
		return res
	}
	res.added = added
	return res
}

// stageTarget returns the listing target for a stage index, clamped to the
// final target when the stage list runs out
func (c *CoverageRunner) stageTarget(stage int) int {
	cfg := c.AppC.ConfigData.Coverage
	if len(cfg.Stages) == 0 || stage >= len(cfg.Stages) {
		return cfg.Target
	}
	if cfg.Stages[stage] > cfg.Target {
		return cfg.Target
	}
	return cfg.Stages[stage]
}

func (c *CoverageRunner) checkpoint(progress *types.CoverageProgress) {
	if err := c.Agg.Store.SaveCoverageProgress(progress); err != nil {
		log.Printf("COVERAGE_CHECKPOINTERR: %v\n", err)
	}
}

func (c *CoverageRunner) emitRunSummary(summary types.RunSummary) {
	sm := c.AppC.StatsManager
	if sm == nil || !sm.Init {
		return
	}
	sm.RunSummaryChannel <- summary
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
