package decode

import (
	"strings"
	"unicode"

	"vault-sentinel/internal/domain"
)

// AssetInfo describes a known asset.
type AssetInfo struct {
	Symbol   string
	Decimals int
}

// SymbolTable resolves assets to display symbols. Both legs of a pool share
// one policy id, so entries are keyed by the (policy id, asset name) pair and
// each leg resolves independently. Resolution is best-effort and never
// fails: (1) known-asset lookup, (2) the embedded asset name when it is
// short and human-readable, (3) the UnknownSymbol sentinel.
type SymbolTable struct {
	known map[string]AssetInfo // keyed by "<policy hex>/<asset name>"
}

// DefaultDecimals is assumed when an asset's decimals are not registered.
const DefaultDecimals = 6

// maxReadableNameLen caps how long an embedded asset name may be before it
// is treated as opaque bytes rather than a human-readable ticker.
const maxReadableNameLen = 10

// NewSymbolTable creates a symbol table from a known-asset map keyed by
// "<policy hex>/<asset name>". The policy segment is matched
// case-insensitively; the asset name is matched byte for byte.
func NewSymbolTable(known map[string]AssetInfo) *SymbolTable {
	if known == nil {
		known = make(map[string]AssetInfo)
	}
	normalized := make(map[string]AssetInfo, len(known))
	for key, info := range known {
		policy, name, _ := strings.Cut(key, "/")
		normalized[assetKey(policy, []byte(name))] = info
	}
	return &SymbolTable{known: normalized}
}

func assetKey(policyHex string, assetName []byte) string {
	return strings.ToLower(policyHex) + "/" + string(assetName)
}

// Resolve resolves a (policy id, embedded asset name) pair to a symbol and
// base-unit decimals. The empty policy id is the ledger's native asset.
func (t *SymbolTable) Resolve(policyHex string, assetName []byte) (string, int) {
	if info, ok := t.known[assetKey(policyHex, assetName)]; ok {
		return info.Symbol, info.Decimals
	}

	if name := readableName(assetName); name != "" {
		return strings.ToUpper(name), DefaultDecimals
	}

	return domain.UnknownSymbol, DefaultDecimals
}

// readableName returns the asset name as a string when it is short and
// entirely printable ASCII, otherwise "".
func readableName(assetName []byte) string {
	if len(assetName) == 0 || len(assetName) > maxReadableNameLen {
		return ""
	}
	for _, b := range assetName {
		if b > unicode.MaxASCII || !unicode.IsPrint(rune(b)) {
			return ""
		}
	}
	return string(assetName)
}
