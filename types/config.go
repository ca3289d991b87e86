package types

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/Jeffail/tunny"
	pg "github.com/go-pg/pg"
	"github.com/gomodule/redigo/redis"
	mongo "go.mongodb.org/mongo-driver/mongo"
)

type (
	CliArgs struct {
		Env        string `json:"env"`
		Pprof      bool   `json:"pprof"`
		IsRestMode bool   `json:"rest"`
		IsCoverage bool   `json:"coverage"`
		IsBackfill bool   `json:"backfill"`
		IsTestMode bool   `json:"test"`
		Platform   string `json:"platform"`
		Query      string `json:"query"`
		DryRun     bool   `json:"dry_run"`
	}

	ConfigData struct {
		Args            *CliArgs       `json:"cli_args"`
		Env             string         `json:"env"`
		RedisCache      string         `json:"redis_cache"`
		MongoPipeline   string         `json:"mongo_pipeline"`
		PGListings      *PGListings    `json:"pg_listings"`
		Influx          InfluxConfig   `json:"influx"`
		TaxonomyFile    string         `json:"taxonomy_file"`
		ImageCacheDir   string         `json:"image_cache_dir"`
		CacheTtl        int            `json:"cache_ttl_secs"`
		SnapshotMaxAge  int            `json:"snapshot_max_age_secs"`
		MaxPageSize     int            `json:"max_page_size"`
		FetchTimeout    int            `json:"fetch_timeout_secs"`
		HeadlessMinHits int            `json:"headless_min_results"`
		BannedTerms     []string       `json:"banned_terms"`
		Quality         QualityConfig  `json:"quality"`
		Coverage        CoverageConfig `json:"coverage"`
		Backfill        BackfillConfig `json:"backfill"`
	}

	// QualityConfig holds the attribute-count thresholds that decide
	// whether a listing counts as fully scraped
	QualityConfig struct {
		GoodMinAttrs    int `json:"good_min_attrs"`
		PartialMinAttrs int `json:"partial_min_attrs"`
	}

	CoverageConfig struct {
		Target       int   `json:"target"`
		Stages       []int `json:"stages"`
		CooldownRuns int   `json:"cooldown_runs"`
		MaxCycles    int   `json:"max_cycles"`
		Concurrency  int   `json:"concurrency"`
		Shuffle      bool  `json:"shuffle"`
		BatchSize    int   `json:"batch_size"`
	}

	BackfillConfig struct {
		BatchSize      int `json:"batch_size"`
		MaxConcurrency int `json:"max_concurrency"`
		RetryCeiling   int `json:"retry_ceiling"`
		BlockCooldown  int `json:"block_cooldown_secs"`
	}

	Config struct {
		WorkerID     string `json:"worker_id"`
		RedisCache   *redis.Pool
		MongoClient  *mongo.Client
		PGListings   *pg.DB
		StatsdClient *statsd.Client
		StatsManager *StatsManager
		TermPool     *tunny.Pool
		ConfigData   *ConfigData
	}

	PGListings struct {
		User     string `json:"user"`
		Password string `json:"password"`
		Addr     string `json:"addr"`
		DB       string `json:"db"`
		PoolSize int    `json:"pool_size"`
	}

	InfluxConfig struct {
		Server          string `json:"server"`
		Database        string `json:"database"`
		FetchMetrics    string `json:"fetch_metrics"`
		CoverageMetrics string `json:"coverage_metrics"`
		BackfillMetrics string `json:"backfill_metrics"`
		Protocol        string `json:"protocol"`
	}
)

// ApplyDefaults fills knobs the env config file left unset
func (cd *ConfigData) ApplyDefaults() {
	if cd.CacheTtl == 0 {
		cd.CacheTtl = 15 * 60
	}
	if cd.SnapshotMaxAge == 0 {
		cd.SnapshotMaxAge = 6 * 60 * 60
	}
	if cd.MaxPageSize == 0 {
		cd.MaxPageSize = 50
	}
	if cd.FetchTimeout == 0 {
		cd.FetchTimeout = 45
	}
	if cd.HeadlessMinHits == 0 {
		cd.HeadlessMinHits = 10
	}
	if cd.Quality.GoodMinAttrs == 0 {
		cd.Quality.GoodMinAttrs = 10
	}
	if cd.Quality.PartialMinAttrs == 0 {
		cd.Quality.PartialMinAttrs = 1
	}
	if cd.Coverage.Target == 0 {
		cd.Coverage.Target = 8
	}
	if cd.Coverage.CooldownRuns == 0 {
		cd.Coverage.CooldownRuns = 3
	}
	if cd.Coverage.MaxCycles == 0 {
		cd.Coverage.MaxCycles = 10
	}
	if cd.Coverage.Concurrency == 0 {
		cd.Coverage.Concurrency = 4
	}
	if cd.Coverage.BatchSize == 0 {
		cd.Coverage.BatchSize = 20
	}
	if cd.Backfill.BatchSize == 0 {
		cd.Backfill.BatchSize = 10
	}
	if cd.Backfill.MaxConcurrency == 0 {
		cd.Backfill.MaxConcurrency = 4
	}
	if cd.Backfill.RetryCeiling == 0 {
		cd.Backfill.RetryCeiling = 3
	}
	if cd.Backfill.BlockCooldown == 0 {
		cd.Backfill.BlockCooldown = 120
	}
}
