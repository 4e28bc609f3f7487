package domain

import "fmt"

// SnapshotSource identifies which tier of the price fallback chain
// produced a snapshot.
type SnapshotSource string

const (
	// SourceLive means the snapshot came from a successful oracle query.
	SourceLive SnapshotSource = "live"
	// SourceCached means the snapshot was served from the in-memory cache.
	SourceCached SnapshotSource = "cached"
	// SourceEstimated means the snapshot was synthesized from the static
	// USD price table because neither oracle nor cache could serve the pair.
	SourceEstimated SnapshotSource = "estimated"
)

// PoolSnapshot is a point-in-time price/reserve observation for one pair.
// Snapshots are immutable once created.
type PoolSnapshot struct {
	Pair       string         // "<assetA>/<assetB>"
	AssetA     string         // symbol of asset A
	AssetB     string         // symbol of asset B
	Price      float64        // asset B per asset A, always > 0
	PriceAUSD  float64        // USD price of one unit of asset A
	PriceBUSD  float64        // USD price of one unit of asset B
	ReserveA   float64        // pool reserve of asset A, display units
	ReserveB   float64        // pool reserve of asset B, display units
	TVL        float64        // total value locked, USD
	Volume24h  float64        // 24h volume, USD
	Timestamp  int64          // observation time, Unix milliseconds
	Source     SnapshotSource // live | cached | estimated
}

// PairKey builds the canonical cache/lookup key for an asset pair.
func PairKey(assetA, assetB string) string {
	return fmt.Sprintf("%s/%s", assetA, assetB)
}
