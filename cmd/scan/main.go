// Command scan runs a single ledger reconciliation pass and exits.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"vault-sentinel/internal/config"
	"vault-sentinel/internal/decode"
	"vault-sentinel/internal/ingest"
	"vault-sentinel/internal/ledger"
	"vault-sentinel/internal/storage"
	"vault-sentinel/internal/storage/memory"
	"vault-sentinel/internal/storage/migrations"
	pgstore "vault-sentinel/internal/storage/postgres"
)

func main() {
	config.LoadDotEnv()

	rpcEndpoint := flag.String("rpc-endpoint", config.Env("SENTINEL_RPC_ENDPOINT", ""), "Ledger state gateway JSON-RPC endpoint")
	contractAddress := flag.String("contract-address", config.Env("SENTINEL_CONTRACT_ADDRESS", ""), "Vault contract address to scan")
	postgresDSN := flag.String("postgres-dsn", config.Env("SENTINEL_POSTGRES_DSN", ""), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", config.EnvBool("SENTINEL_USE_MEMORY", false), "Use in-memory vault storage (results are discarded on exit)")
	symbolTablePath := flag.String("symbol-table", config.Env("SENTINEL_SYMBOL_TABLE", ""), "JSON file mapping policy id/asset name pairs to symbols")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall scan timeout")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if *rpcEndpoint == "" {
		logger.Fatal("missing required -rpc-endpoint")
	}
	if *contractAddress == "" {
		logger.Fatal("missing required -contract-address")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("missing -postgres-dsn (or pass -use-memory)")
	}

	symbols, err := config.LoadSymbolTable(*symbolTablePath)
	if err != nil {
		logger.Fatal("load symbol table", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

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

	scanner := ingest.NewScanner(ledger.NewHTTPClient(*rpcEndpoint), decode.NewDecoder(symbols), vaults, *contractAddress, logger)
	res, err := scanner.Scan(ctx)
	if err != nil {
		logger.Fatal("scan failed", zap.Error(err))
	}

	logger.Info("scan complete",
		zap.Int("records_seen", res.RecordsSeen),
		zap.Int("decoded", res.Decoded),
		zap.Int("decode_failures", res.DecodeFailures),
		zap.Int("registered", res.Registered),
		zap.Int("pruned", res.Pruned))
}
