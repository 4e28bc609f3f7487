// Command sentinel runs the full monitoring daemon: ledger scanning, the
// periodic IL assessment loop, and protective unwinds.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vault-sentinel/internal/config"
	"vault-sentinel/internal/decode"
	"vault-sentinel/internal/ingest"
	"vault-sentinel/internal/ledger"
	"vault-sentinel/internal/monitor"
	"vault-sentinel/internal/observability"
	"vault-sentinel/internal/oracle"
	"vault-sentinel/internal/protect"
	"vault-sentinel/internal/storage"
	chstore "vault-sentinel/internal/storage/clickhouse"
	"vault-sentinel/internal/storage/memory"
	"vault-sentinel/internal/storage/migrations"
	pgstore "vault-sentinel/internal/storage/postgres"
)

func main() {
	config.LoadDotEnv()

	rpcEndpoint := flag.String("rpc-endpoint", config.Env("SENTINEL_RPC_ENDPOINT", ""), "Ledger state gateway JSON-RPC endpoint")
	wsEndpoint := flag.String("ws-endpoint", config.Env("SENTINEL_WS_ENDPOINT", ""), "Ledger WebSocket endpoint (empty to disable streaming)")
	oracleURL := flag.String("oracle-url", config.Env("SENTINEL_ORACLE_URL", ""), "Price oracle base URL")
	contractAddress := flag.String("contract-address", config.Env("SENTINEL_CONTRACT_ADDRESS", ""), "Vault contract address to watch")
	postgresDSN := flag.String("postgres-dsn", config.Env("SENTINEL_POSTGRES_DSN", ""), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", config.Env("SENTINEL_CLICKHOUSE_DSN", ""), "ClickHouse DSN for the assessment audit log (empty for in-memory)")
	useMemory := flag.Bool("use-memory", config.EnvBool("SENTINEL_USE_MEMORY", false), "Use in-memory vault storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", config.Env("SENTINEL_METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address (empty to disable)")
	monitorInterval := flag.Duration("monitor-interval", config.EnvDuration("SENTINEL_MONITOR_INTERVAL", monitor.DefaultInterval), "Assessment cycle interval")
	scanInterval := flag.Duration("scan-interval", config.EnvDuration("SENTINEL_SCAN_INTERVAL", 5*time.Minute), "Full ledger reconciliation interval")
	cacheTTL := flag.Duration("cache-ttl", config.EnvDuration("SENTINEL_CACHE_TTL", oracle.DefaultCacheTTL), "Snapshot cache TTL")
	staticPrices := flag.String("static-prices", config.Env("SENTINEL_STATIC_PRICES", ""), "Static USD estimates, e.g. SOL=150,USDC=1")
	symbolTablePath := flag.String("symbol-table", config.Env("SENTINEL_SYMBOL_TABLE", ""), "JSON file mapping policy id/asset name pairs to symbols")
	remediateUnresolved := flag.Bool("remediate-unresolved", config.EnvBool("SENTINEL_REMEDIATE_UNRESOLVED", false), "Allow automatic unwinds for vaults with unresolved symbols")
	remediateScriptOwned := flag.Bool("remediate-script-owned", config.EnvBool("SENTINEL_REMEDIATE_SCRIPT_OWNED", false), "Allow automatic unwinds for script-owned vaults")
	devLog := flag.Bool("dev-log", config.EnvBool("SENTINEL_DEV_LOG", false), "Use human-readable development logging")
	flag.Parse()

	logger := newLogger(*devLog)
	defer logger.Sync()

	if *rpcEndpoint == "" {
		logger.Fatal("missing required -rpc-endpoint")
	}
	if *oracleURL == "" {
		logger.Fatal("missing required -oracle-url")
	}
	if *contractAddress == "" {
		logger.Fatal("missing required -contract-address")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("missing -postgres-dsn (or pass -use-memory for in-memory storage)")
	}

	prices, err := config.ParseStaticPrices(*staticPrices)
	if err != nil {
		logger.Fatal("parse static prices", zap.Error(err))
	}
	symbols, err := config.LoadSymbolTable(*symbolTablePath)
	if err != nil {
		logger.Fatal("load symbol table", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Vault storage.
	var vaults storage.VaultStore = memory.NewVaultStore()
	if !*useMemory {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatal("connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatal("run postgres migrations", zap.Error(err))
		}
		vaults = pgstore.NewVaultStore(pool)
	}

	// Assessment audit log.
	var audit storage.AssessmentLogStore = memory.NewAssessmentLogStore()
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatal("run clickhouse migrations", zap.Error(err))
		}
		defer conn.Close()
		audit = chstore.NewAssessmentLogStore(conn)
	}

	decoder := decode.NewDecoder(symbols)
	rpc := ledger.NewHTTPClient(*rpcEndpoint)
	scanner := ingest.NewScanner(rpc, decoder, vaults, *contractAddress, logger.Named("scan"))

	source := oracle.NewSource(oracle.SourceOptions{
		API:          oracle.NewHTTPClient(*oracleURL),
		StaticPrices: prices,
		CacheTTL:     *cacheTTL,
		Logger:       logger.Named("oracle"),
	})

	executor := protect.NewExecutor(vaults,
		protect.NewSimulatedSettlement(logger.Named("settlement")),
		protect.Policy{
			RemediateUnresolvedSymbols: *remediateUnresolved,
			RemediateScriptOwned:       *remediateScriptOwned,
		},
		logger.Named("protect"))

	runner := monitor.New(monitor.Options{
		VaultStore: vaults,
		Source:     source,
		Executor:   executor,
		AuditLog:   audit,
		Interval:   *monitorInterval,
		Logger:     logger.Named("monitor"),
	})

	// Populate the registry before the first assessment cycle.
	if res, err := scanner.Scan(ctx); err != nil {
		logger.Fatal("initial ledger scan", zap.Error(err))
	} else {
		logger.Info("initial scan complete",
			zap.Int("records_seen", res.RecordsSeen),
			zap.Int("registered", res.Registered),
			zap.Int("decode_failures", res.DecodeFailures))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return runner.Run(gctx) })

	g.Go(func() error {
		ticker := time.NewTicker(*scanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if _, err := scanner.Scan(gctx); err != nil && gctx.Err() == nil {
					logger.Warn("periodic scan failed", zap.Error(err))
				}
			}
		}
	})

	if *wsEndpoint != "" {
		ws, err := ledger.NewWSClient(ctx, *wsEndpoint, nil, logger.Named("ws"))
		if err != nil {
			logger.Fatal("connect websocket", zap.Error(err))
		}
		defer ws.Close()
		watcher := ingest.NewWatcher(ws, decoder, vaults, *contractAddress, logger.Named("watch"))
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if *metricsAddr != "" {
		startMetricsServer(gctx, g, *metricsAddr, logger)
	}

	logger.Info("sentinel running",
		zap.String("contract_address", *contractAddress),
		zap.Duration("monitor_interval", *monitorInterval),
		zap.Bool("in_memory", *useMemory))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("sentinel stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		os.Exit(1)
	}
	return logger
}

func startMetricsServer(ctx context.Context, g *errgroup.Group, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	g.Go(func() error {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return ctx.Err()
	})
}
