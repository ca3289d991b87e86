package dbs

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	mongo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bulkmart/go-aggregator/stats"
	"github.com/bulkmart/go-aggregator/types"

	"github.com/DataDog/datadog-go/statsd"
	pg "github.com/go-pg/pg"
)

// ParseCliArgs will parse worker command line arguments
func ParseCliArgs() (cliArgs *types.CliArgs) {
	env := flag.String("env", "development", "Which environment the aggregation worker runs in")
	prof := flag.Bool("pprof", false, "Whether to run pprof on the server for debugging")
	rest := flag.Bool("rest", false, "Whether to expose aggregation as a REST service")
	coverage := flag.Bool("coverage", false, "Whether to run the taxonomy coverage orchestrator")
	backfill := flag.Bool("backfill", false, "Whether to run the quality backfill worker")
	test := flag.Bool("test", false, "Whether to run a single query in test mode")
	platform := flag.String("platform", "all", "Platform to aggregate from (alibaba/indiamart/tradeindia/all)")
	query := flag.String("query", "", "Query to run in test mode")
	dryRun := flag.Bool("dry-run", false, "Report backfill actions without writing")

	flag.Parse()
	cliArgs = &types.CliArgs{
		Env:        *env,
		Pprof:      *prof,
		IsRestMode: *rest,
		IsCoverage: *coverage,
		IsBackfill: *backfill,
		IsTestMode: *test,
		Platform:   *platform,
		Query:      *query,
		DryRun:     *dryRun,
	}
	return cliArgs
}

// LoadConfig will load appropriate config based on env
func LoadConfig(cliArgs *types.CliArgs) (appC *types.Config, err error) {
	env := cliArgs.Env
	log.Printf("CONFIG_LOAD: Loading %s configuration", env)
	configFile := fmt.Sprintf("config/%s.json", env)

	// 1. Read config file based on env
	file, err := os.Open(configFile)
	if err != nil {
		fmt.Printf("Failed to read config file: %v", err)
		return appC, err
	}

	// 2. Load config data accordingly
	var configData types.ConfigData
	data := json.NewDecoder(file)
	err = data.Decode(&configData)
	if err != nil {
		log.Printf("Failed to decode config data: %s\n", err)
		return appC, err
	}
	configData.Env = env
	configData.Args = cliArgs
	configData.ApplyDefaults()

	// 3. Env overrides beat the config file for deploy-time addresses
	if os.Getenv("REDIS_HOST_ADDR") != "" {
		configData.RedisCache = os.Getenv("REDIS_HOST_ADDR")
		log.Printf("ENV_LOAD: RedisCache: %s\n", configData.RedisCache)
	}
	if os.Getenv("MONGO_URI") != "" {
		configData.MongoPipeline = os.Getenv("MONGO_URI")
	}
	if os.Getenv("CACHE_TTL_SECS") != "" {
		if ttl, terr := strconv.Atoi(os.Getenv("CACHE_TTL_SECS")); terr == nil {
			configData.CacheTtl = ttl
		}
	}

	// 4. Initialize stats manager to track fetch and run metrics
	var statsdClient *statsd.Client
	var statsManager types.StatsManager
	stats.InitializeStatsManagerClient(&statsManager)

	datadoghost := os.Getenv("GLOBAL_DATADOG_HOST")
	if datadoghost != "" {
		statsdClient, err = statsd.New(datadoghost)
		if err != nil {
			return appC, fmt.Errorf("Creating statsd client failed with error %s", err)
		}
	}

	workerID := os.Getenv("WORKER_ID")
	if workerID == "" {
		workerID = fmt.Sprintf("aggregator-%d", os.Getpid())
	}

	appC = &types.Config{
		WorkerID:     workerID,
		StatsdClient: statsdClient,
		StatsManager: &statsManager,
		RedisCache:   NewRedisPool(configData.RedisCache),
		ConfigData:   &configData,
	}

	// 5. Connect to mongo-pipeline for snapshots and run progress
	if configData.MongoPipeline != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		mongoPipeline, merr := mongo.Connect(ctx, options.Client().ApplyURI(configData.MongoPipeline))
		if merr != nil {
			return appC, fmt.Errorf("DBS_MONGOPIPELINEERR: failed to connect to (%s): %v", configData.MongoPipeline, merr)
		}
		appC.MongoClient = mongoPipeline
	}

	// 6. Connect to the listings store
	if configData.PGListings != nil {
		pgAddr := configData.PGListings.Addr
		if os.Getenv("PG_LISTINGS_ADDR") != "" {
			pgAddr = os.Getenv("PG_LISTINGS_ADDR")
		}
		appC.PGListings = pg.Connect(&pg.Options{
			User:     configData.PGListings.User,
			Password: os.Getenv("PG_LISTINGS_PASS"),
			Database: configData.PGListings.DB,
			Addr:     pgAddr,
			PoolSize: configData.PGListings.PoolSize,
		})
	}

	if os.Getenv("INFLUXDB_ADDR") != "" {
		appC.ConfigData.Influx.Server = os.Getenv("INFLUXDB_ADDR")
	}

	go stats.CollectStats(env, &statsManager, appC)
	return appC, nil
}
