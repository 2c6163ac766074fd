package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gestaofrota/globus_backend/config"
	"github.com/gestaofrota/globus_backend/globussync"
	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
	"github.com/google/uuid"
)

// full-resync pulls a wide window from Globus for one or all domains,
// bypassing the scheduler's trailing window. Used after cache rebuilds
// or when the legacy side backfills history.
func main() {
	dominioFlag := flag.String("dominio", "", "Optional: resync only one domain (multas, manutencao, frota, acidentes). If empty, resyncs all.")
	from := flag.String("from", "", "Optional: window start (YYYY-MM-DD). Defaults to 2000-01-01.")
	to := flag.String("to", "", "Optional: window end (YYYY-MM-DD). Defaults to tomorrow.")
	chaves := flag.String("chaves", "", "Optional: comma-separated natural keys to limit the pull.")
	flag.Parse()

	ctx := context.Background()
	// Explicit connects (config no longer connects in init()).
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	config.ConnectGlobusWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	logger := config.GetLogger()

	inicio := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if strings.TrimSpace(*from) != "" {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(*from))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -from date: %v\n", err)
			os.Exit(1)
		}
		inicio = d.UTC()
	}
	fim := time.Now().UTC().AddDate(0, 0, 1)
	if strings.TrimSpace(*to) != "" {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(*to))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -to date: %v\n", err)
			os.Exit(1)
		}
		fim = d.UTC()
	}

	dominios := models.AllDominios()
	if strings.TrimSpace(*dominioFlag) != "" {
		d, ok := models.ParseDominio(*dominioFlag)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown domain %q\n", *dominioFlag)
			os.Exit(1)
		}
		dominios = []models.Dominio{d}
	}

	ctx = utils.SetUserNameInContext(ctx, "FullResync")
	ctx = utils.SetTriggeredByInContext(ctx, models.SyncTriggeredManual)
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())

	runTimeout := utils.DurationFromEnvSeconds("SYNC_RUN_TIMEOUT_SECONDS", 2*time.Hour)
	reader := globussync.NewGlobusReader(nil, logger)
	upserter := globussync.NewUpserter(nil, logger)
	guard := globussync.NewRedisScopeGuard(nil, runTimeout)
	orchestrator := globussync.NewOrchestrator(nil, reader, upserter, guard, logger)
	orchestrator.RunTimeout = runTimeout

	exitCode := 0
	for _, dominio := range dominios {
		scope := globussync.Scope{
			Dominio: dominio,
			Inicio:  inicio,
			Fim:     fim,
			Chaves:  utils.SplitAndTrim(*chaves),
		}
		fmt.Printf("Resyncing %s from=%s to=%s\n", dominio, inicio.Format("2006-01-02"), fim.Format("2006-01-02"))

		result, err := orchestrator.Sync(ctx, scope)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: sync failed (runId=%d status=%s): %v\n", dominio, result.RunId, result.Status, err)
			exitCode = 1
			continue
		}
		fmt.Printf("%s: runId=%d status=%s fetched=%d novos=%d atualizados=%d inalterados=%d rejeitados=%d (%dms)\n",
			dominio, result.RunId, result.Status, result.Fetched,
			result.Inserted, result.Updated, result.Unchanged, result.Failed, result.DurationMs)
	}
	os.Exit(exitCode)
}
