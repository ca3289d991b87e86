package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	_ "net/http/pprof"

	"github.com/bulkmart/go-aggregator/dbs"
	"github.com/bulkmart/go-aggregator/pipeline"
	"github.com/bulkmart/go-aggregator/service"
	"github.com/bulkmart/go-aggregator/types"
	"github.com/bulkmart/go-aggregator/utils"
)

// VERSION specifies the release version during deployments
const VERSION = "1.2.0"

func main() {

	log.Println("Starting go aggregator: ", VERSION)

	// Parse CLI args
	cliArgs := dbs.ParseCliArgs()

	if strings.Contains(cliArgs.Env, "development") {
		log.SetFlags(0)
	}

	// Load configurations
	appC, err := dbs.LoadConfig(cliArgs)
	if err != nil {
		log.Printf("Loading configuration failed with error: %s", err)
		os.Exit(1)
	}
	agg := pipeline.NewAggregator(appC)

	// Start profiler
	if cliArgs.Pprof == true {
		log.Println("Starting pprof on 0.0.0.0:6060")
		go func() {
			log.Println(http.ListenAndServe("0.0.0.0:6060", nil))
		}()
	}

	// If web service requested
	if cliArgs.IsRestMode {
		log.Printf("AGGJOB: Starting rest mode\n")
		go service.StartWebService(appC, agg)
	}

	// If the coverage orchestrator is requested: batch job, runs to completion
	if cliArgs.IsCoverage {
		log.Printf("AGGJOB: Starting coverage mode\n")
		runner, err := pipeline.NewCoverageRunner(appC, agg)
		if err != nil {
			log.Printf("COVERAGE_ERR: Quitting on err: %v\n", err)
			os.Exit(1)
		}
		stopOnInterrupt(runner.Stop)
		if err = runner.Run(); err != nil {
			log.Printf("COVERAGE_ERR: Quitting on err: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// If the quality backfill worker is requested: batch job, runs to completion
	if cliArgs.IsBackfill {
		log.Printf("AGGJOB: Starting backfill mode (%s, dry-run %t)\n", cliArgs.Platform, cliArgs.DryRun)
		runner := pipeline.NewBackfillRunner(appC, agg, cliArgs.DryRun)
		stopOnInterrupt(runner.Stop)
		if err := runner.Run(types.Platform(cliArgs.Platform)); err != nil {
			log.Printf("BACKFILL_ERR: Quitting on err: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// If test mode requested: run one query and print the results
	if cliArgs.IsTestMode {
		if cliArgs.Query == "" {
			log.Printf("AGGCLI_QUIT: no query sent\n")
			os.Exit(1)
		}
		query := &types.SearchQuery{
			Query:    cliArgs.Query,
			Platform: types.Platform(cliArgs.Platform),
			Limit:    appC.ConfigData.MaxPageSize,
			Headless: true,
			NoCache:  true,
			Debug:    true,
		}
		workflow := agg.Aggregate(query)
		if workflow.FailureType != nil {
			log.Printf("AGGCLI_ERR: (%s) %s\n", *workflow.FailureType, *workflow.FailureMessage)
			os.Exit(1)
		}
		utils.PrintListings(workflow.Filtered)
	}

	if !cliArgs.IsTestMode {
		sigInt := make(chan os.Signal, 1)
		signal.Notify(sigInt, os.Interrupt)
		for range sigInt {
			log.Println("AGGSERVICE_SIGINT: Received SigInt.. closing soon")
			time.Sleep(5 * time.Second)
			break
		}
	}

}

// stopOnInterrupt runs a graceful-stop callback on the first SIGINT
func stopOnInterrupt(stop func()) {
	sigInt := make(chan os.Signal, 1)
	signal.Notify(sigInt, os.Interrupt)
	go func() {
		<-sigInt
		stop()
	}()
}
