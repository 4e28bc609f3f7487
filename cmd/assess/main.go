// Command assess runs a one-shot dry-run assessment of every active vault
// and prints the results as JSON lines. No protection is executed and no
// vault state changes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"vault-sentinel/internal/config"
	"vault-sentinel/internal/decode"
	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/ilcalc"
	"vault-sentinel/internal/ingest"
	"vault-sentinel/internal/ledger"
	"vault-sentinel/internal/oracle"
	"vault-sentinel/internal/storage"
	"vault-sentinel/internal/storage/memory"
	pgstore "vault-sentinel/internal/storage/postgres"
)

func main() {
	config.LoadDotEnv()

	rpcEndpoint := flag.String("rpc-endpoint", config.Env("SENTINEL_RPC_ENDPOINT", ""), "Ledger state gateway JSON-RPC endpoint (used when no postgres store)")
	contractAddress := flag.String("contract-address", config.Env("SENTINEL_CONTRACT_ADDRESS", ""), "Vault contract address")
	oracleURL := flag.String("oracle-url", config.Env("SENTINEL_ORACLE_URL", ""), "Price oracle base URL")
	postgresDSN := flag.String("postgres-dsn", config.Env("SENTINEL_POSTGRES_DSN", ""), "PostgreSQL connection string with registered vaults")
	vaultID := flag.String("vault-id", "", "Assess only this vault (default: all active vaults)")
	staticPrices := flag.String("static-prices", config.Env("SENTINEL_STATIC_PRICES", ""), "Static USD estimates, e.g. SOL=150,USDC=1")
	symbolTablePath := flag.String("symbol-table", config.Env("SENTINEL_SYMBOL_TABLE", ""), "JSON file mapping policy id/asset name pairs to symbols")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall assessment timeout")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if *oracleURL == "" {
		logger.Fatal("missing required -oracle-url")
	}

	prices, err := config.ParseStaticPrices(*staticPrices)
	if err != nil {
		logger.Fatal("parse static prices", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	vaults, err := loadVaults(ctx, logger, *postgresDSN, *rpcEndpoint, *contractAddress, *symbolTablePath)
	if err != nil {
		logger.Fatal("load vaults", zap.Error(err))
	}

	var active []*domain.Vault
	if *vaultID != "" {
		v, err := vaults.GetByID(ctx, *vaultID)
		if err != nil {
			logger.Fatal("get vault", zap.String("vault_id", *vaultID), zap.Error(err))
		}
		active = []*domain.Vault{v}
	} else {
		active, err = vaults.ListByStatus(ctx, domain.StatusActive)
		if err != nil {
			logger.Fatal("list active vaults", zap.Error(err))
		}
	}
	if len(active) == 0 {
		logger.Info("no active vaults")
		return
	}

	source := oracle.NewSource(oracle.SourceOptions{
		API:          oracle.NewHTTPClient(*oracleURL),
		StaticPrices: prices,
		Logger:       logger,
	})

	enc := json.NewEncoder(os.Stdout)
	now := time.Now()
	failures := 0
	for _, v := range active {
		if !v.SymbolsResolved() {
			logger.Warn("skipping vault with unresolved symbols", zap.String("vault_id", v.VaultID))
			continue
		}
		snap, err := source.GetSnapshot(ctx, v.AssetASymbol, v.AssetBSymbol)
		if err != nil {
			logger.Warn("no snapshot", zap.String("vault_id", v.VaultID), zap.Error(err))
			failures++
			continue
		}
		a, err := ilcalc.Assess(v, snap, now)
		if err != nil {
			logger.Warn("assessment failed", zap.String("vault_id", v.VaultID), zap.Error(err))
			failures++
			continue
		}
		if err := enc.Encode(a); err != nil {
			logger.Fatal("write assessment", zap.Error(err))
		}
	}
	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d vaults could not be assessed\n", failures, len(active))
		os.Exit(1)
	}
}

// loadVaults prefers the persistent store; without one it scans the ledger
// into an in-memory store.
func loadVaults(ctx context.Context, logger *zap.Logger, postgresDSN, rpcEndpoint, contractAddress, symbolTablePath string) (storage.VaultStore, error) {
	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return pgstore.NewVaultStore(pool), nil
	}

	if rpcEndpoint == "" || contractAddress == "" {
		return nil, fmt.Errorf("need either -postgres-dsn or both -rpc-endpoint and -contract-address")
	}

	symbols, err := config.LoadSymbolTable(symbolTablePath)
	if err != nil {
		return nil, err
	}

	store := memory.NewVaultStore()
	scanner := ingest.NewScanner(ledger.NewHTTPClient(rpcEndpoint), decode.NewDecoder(symbols), store, contractAddress, logger)
	if _, err := scanner.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return store, nil
}
