package oracle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/observability"
)

// DefaultCacheTTL is how long a cached snapshot stays usable.
const DefaultCacheTTL = 5 * time.Minute

// StaticPrices maps asset symbols to rough USD estimates. It backs the last
// fallback tier and is injected at construction so tests can swap it.
type StaticPrices map[string]float64

// Source produces pool snapshots with caching and layered fallback.
type Source struct {
	api    API
	cache  *snapshotCache
	static StaticPrices
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group
	now    func() time.Time
}

// SourceOptions configures a Source.
type SourceOptions struct {
	API          API          // required
	StaticPrices StaticPrices // per-symbol USD estimates for the last tier
	CacheTTL     time.Duration
	Logger       *zap.Logger
}

// NewSource creates a snapshot source.
func NewSource(opts SourceOptions) *Source {
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	static := opts.StaticPrices
	if static == nil {
		static = StaticPrices{}
	}

	return &Source{
		api:    opts.API,
		cache:  newSnapshotCache(),
		static: static,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// GetSnapshot returns a snapshot for the pair, resolving live → cached →
// estimated. Oracle errors are logged, not propagated; an error is returned
// only when every tier fails, so one unpriced pair never blocks the rest of
// the cycle.
func (s *Source) GetSnapshot(ctx context.Context, assetA, assetB string) (*domain.PoolSnapshot, error) {
	pairKey := domain.PairKey(assetA, assetB)

	// Concurrent refreshes for the same pair are de-duplicated: at most one
	// oracle call is in flight per pair key.
	v, err, _ := s.group.Do(pairKey, func() (interface{}, error) {
		return s.resolve(ctx, assetA, assetB, pairKey)
	})
	if err != nil {
		return nil, err
	}

	snap := v.(domain.PoolSnapshot)
	return &snap, nil
}

func (s *Source) resolve(ctx context.Context, assetA, assetB, pairKey string) (interface{}, error) {
	now := s.now()

	// Tier 1: live oracle query
	fetchStart := time.Now()
	data, err := s.api.FetchPair(ctx, assetA, assetB)
	observability.RecordOracleFetch(time.Since(fetchStart).Seconds(), err)
	if err == nil {
		snap := domain.PoolSnapshot{
			Pair:      pairKey,
			AssetA:    assetA,
			AssetB:    assetB,
			Price:     data.Price,
			PriceAUSD: data.PriceAUSD,
			PriceBUSD: data.PriceBUSD,
			ReserveA:  data.ReserveA,
			ReserveB:  data.ReserveB,
			TVL:       data.TVL,
			Volume24h: data.Volume24h,
			Timestamp: data.Timestamp,
			Source:    domain.SourceLive,
		}
		if snap.Timestamp == 0 {
			snap.Timestamp = now.UnixMilli()
		}
		s.cache.put(snap, now)
		return snap, nil
	}

	s.logger.Warn("oracle query failed, falling back",
		zap.String("pair", pairKey),
		zap.Error(err))

	// Tier 2: cached snapshot within TTL
	if cached, ok := s.cache.get(pairKey, s.ttl, now); ok {
		cached.Source = domain.SourceCached
		return cached, nil
	}

	// Tier 3: static estimate. The next cycle naturally retries the oracle.
	snap, ok := s.estimate(assetA, assetB, pairKey, now)
	if !ok {
		return domain.PoolSnapshot{}, fmt.Errorf("%w: no static estimate for %s", ErrUnavailable, pairKey)
	}

	s.logger.Warn("serving estimated snapshot from static price table",
		zap.String("pair", pairKey))
	return snap, nil
}

// estimate synthesizes a snapshot from the static USD table. It requires an
// estimate for both legs; reserves and volume are unknown and reported zero.
func (s *Source) estimate(assetA, assetB, pairKey string, now time.Time) (domain.PoolSnapshot, bool) {
	usdA, okA := s.static[assetA]
	usdB, okB := s.static[assetB]
	if !okA || !okB || usdA <= 0 || usdB <= 0 {
		return domain.PoolSnapshot{}, false
	}

	return domain.PoolSnapshot{
		Pair:      pairKey,
		AssetA:    assetA,
		AssetB:    assetB,
		Price:     usdA / usdB,
		PriceAUSD: usdA,
		PriceBUSD: usdB,
		Timestamp: now.UnixMilli(),
		Source:    domain.SourceEstimated,
	}, true
}
