// Package config supplies environment-backed defaults for the command-line
// binaries. Flags always win; the environment, optionally seeded from a .env
// file, fills in what the command line leaves unset.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"vault-sentinel/internal/decode"
	"vault-sentinel/internal/oracle"
)

// LoadDotEnv loads a .env file from the working directory when one exists.
// A missing file is not an error.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Env returns the environment value for key, or def when unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvBool returns the boolean environment value for key, or def when unset
// or unparsable.
func EnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// EnvDuration returns the duration environment value for key, or def when
// unset or unparsable.
func EnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// ParseStaticPrices parses a "SYMBOL=price,SYMBOL=price" list into the
// oracle's static USD table.
func ParseStaticPrices(s string) (oracle.StaticPrices, error) {
	prices := oracle.StaticPrices{}
	if strings.TrimSpace(s) == "" {
		return prices, nil
	}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		sym, val, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("malformed static price entry %q", entry)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || price <= 0 {
			return nil, fmt.Errorf("invalid price in static price entry %q", entry)
		}
		prices[strings.ToUpper(strings.TrimSpace(sym))] = price
	}
	return prices, nil
}

// LoadSymbolTable reads a JSON file mapping "<policy hex>/<asset name>"
// keys to asset info:
//
//	{"aabb/SOL": {"symbol": "SOL", "decimals": 9}}
//
// Both legs of a pool share one policy id, so each asset needs its own
// entry. An empty path yields an empty table.
func LoadSymbolTable(path string) (*decode.SymbolTable, error) {
	if path == "" {
		return decode.NewSymbolTable(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read symbol table: %w", err)
	}

	var raw map[string]struct {
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse symbol table: %w", err)
	}

	known := make(map[string]decode.AssetInfo, len(raw))
	for key, info := range raw {
		if !strings.Contains(key, "/") {
			return nil, fmt.Errorf("symbol table key %q is not <policy hex>/<asset name>", key)
		}
		if info.Symbol == "" {
			return nil, fmt.Errorf("symbol table entry %q has no symbol", key)
		}
		decimals := info.Decimals
		if decimals <= 0 {
			decimals = decode.DefaultDecimals
		}
		known[key] = decode.AssetInfo{Symbol: info.Symbol, Decimals: decimals}
	}
	return decode.NewSymbolTable(known), nil
}
