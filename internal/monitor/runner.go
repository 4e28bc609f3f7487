// Package monitor drives the periodic assessment loop.
// Flow per cycle: list active vaults → snapshot each pair → assess IL →
// remediate breaches → append audit records.
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/ilcalc"
	"vault-sentinel/internal/observability"
	"vault-sentinel/internal/protect"
	"vault-sentinel/internal/storage"
)

const (
	// DefaultInterval is the spacing between cycle starts.
	DefaultInterval = 60 * time.Second

	defaultListRetries   = 3
	defaultListBaseDelay = 2 * time.Second
	defaultConcurrency   = 4
)

// SnapshotSource supplies one pool snapshot per asset pair.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, assetA, assetB string) (*domain.PoolSnapshot, error)
}

// Runner executes assessment cycles on a fixed interval.
type Runner struct {
	vaults   storage.VaultStore
	audit    storage.AssessmentLogStore
	source   SnapshotSource
	executor *protect.Executor

	interval      time.Duration
	listRetries   int
	listBaseDelay time.Duration
	concurrency   int
	logger        *zap.Logger
	now           func() time.Time
}

// Options for creating a Runner.
type Options struct {
	// Required
	VaultStore storage.VaultStore
	Source     SnapshotSource
	Executor   *protect.Executor

	// Optional; assessments are not persisted when nil.
	AuditLog storage.AssessmentLogStore

	Interval      time.Duration
	ListRetries   int
	ListBaseDelay time.Duration
	Concurrency   int
	Logger        *zap.Logger
}

// New creates a new Runner.
func New(opts Options) *Runner {
	r := &Runner{
		vaults:        opts.VaultStore,
		audit:         opts.AuditLog,
		source:        opts.Source,
		executor:      opts.Executor,
		interval:      opts.Interval,
		listRetries:   opts.ListRetries,
		listBaseDelay: opts.ListBaseDelay,
		concurrency:   opts.Concurrency,
		logger:        opts.Logger,
		now:           time.Now,
	}
	if r.interval <= 0 {
		r.interval = DefaultInterval
	}
	if r.listRetries <= 0 {
		r.listRetries = defaultListRetries
	}
	if r.listBaseDelay <= 0 {
		r.listBaseDelay = defaultListBaseDelay
	}
	if r.concurrency <= 0 {
		r.concurrency = defaultConcurrency
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// CycleResult summarizes one completed cycle.
type CycleResult struct {
	ActiveVaults int
	Evaluated    int
	Breaches     int
	Protected    int
	Errors       int
}

// Run executes cycles until the context is cancelled. The first cycle starts
// immediately; later cycles start on ticker fire, so cycle starts do not
// drift with cycle duration. Cancellation is observed between cycles and at
// every blocking call inside a cycle.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.cycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) cycle(ctx context.Context) {
	start := r.now()
	res, err := r.RunCycle(ctx)
	elapsed := r.now().Sub(start).Seconds()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		observability.RecordCycle("abandoned", elapsed)
		r.logger.Error("cycle abandoned", zap.Error(err))
		return
	}
	observability.RecordCycle("completed", elapsed)
	observability.DefaultMetrics.LastSuccessfulCycle.SetToCurrentTime()
	r.logger.Info("cycle completed",
		zap.Int("active_vaults", res.ActiveVaults),
		zap.Int("evaluated", res.Evaluated),
		zap.Int("breaches", res.Breaches),
		zap.Int("protected", res.Protected),
		zap.Int("errors", res.Errors),
		zap.Float64("duration_seconds", elapsed))
}

// RunCycle executes a single assessment cycle. A listing failure gets three
// retries with doubling backoff; if the initial attempt and every retry fail
// the cycle is abandoned and the caller waits for the next tick. Failures on
// individual vaults never stop the rest of the cycle.
func (r *Runner) RunCycle(ctx context.Context) (*CycleResult, error) {
	var active []*domain.Vault
	err := withRetry(ctx, r.listRetries, r.listBaseDelay, func(ctx context.Context) error {
		var listErr error
		active, listErr = r.vaults.ListByStatus(ctx, domain.StatusActive)
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("list active vaults: %w", err)
	}

	res := &CycleResult{ActiveVaults: len(active)}
	observability.DefaultMetrics.ActiveVaults.Set(float64(len(active)))
	if len(active) == 0 {
		return res, nil
	}

	results := make([]vaultOutcome, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, v := range active {
		g.Go(func() error {
			results[i] = r.evaluate(gctx, v)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, out := range results {
		if out.err != nil {
			res.Errors++
			continue
		}
		if out.skipped {
			continue
		}
		res.Evaluated++
		if out.breached {
			res.Breaches++
		}
		if out.protected {
			res.Protected++
		}
	}
	return res, nil
}

type vaultOutcome struct {
	skipped   bool
	breached  bool
	protected bool
	err       error
}

func (r *Runner) evaluate(ctx context.Context, v *domain.Vault) vaultOutcome {
	if !v.SymbolsResolved() {
		// No oracle pair to query; policy decides separately whether such
		// vaults may ever be auto-remediated.
		r.logger.Debug("skipping vault with unresolved symbols", zap.String("vault_id", v.VaultID))
		return vaultOutcome{skipped: true}
	}

	snap, err := r.source.GetSnapshot(ctx, v.AssetASymbol, v.AssetBSymbol)
	if err != nil {
		r.logger.Warn("no snapshot for vault",
			zap.String("vault_id", v.VaultID),
			zap.String("pair", domain.PairKey(v.AssetASymbol, v.AssetBSymbol)),
			zap.Error(err))
		return vaultOutcome{err: err}
	}
	observability.RecordSnapshot(string(snap.Source))

	a, err := ilcalc.Assess(v, snap, r.now())
	if err != nil {
		r.logger.Warn("assessment failed",
			zap.String("vault_id", v.VaultID),
			zap.Error(err))
		return vaultOutcome{err: err}
	}
	observability.RecordEvaluation(a.ShouldTriggerProtection)

	out := vaultOutcome{breached: a.ShouldTriggerProtection}
	if a.ShouldTriggerProtection {
		if err := r.executor.Protect(ctx, v, a); err != nil {
			observability.RecordRemediation("failed")
			r.logger.Error("remediation failed",
				zap.String("vault_id", v.VaultID),
				zap.Error(err))
			out.err = err
		} else if r.vaultProtected(ctx, v.VaultID) {
			observability.RecordRemediation("executed")
			out.protected = true
		} else {
			observability.RecordRemediation("skipped")
		}
	}

	if r.audit != nil {
		// Audit writes are best effort; a full log must not block protection.
		if err := r.audit.Append(ctx, a); err != nil {
			r.logger.Warn("audit append failed",
				zap.String("vault_id", v.VaultID),
				zap.Error(err))
		}
	}
	return out
}

func (r *Runner) vaultProtected(ctx context.Context, vaultID string) bool {
	v, err := r.vaults.GetByID(ctx, vaultID)
	return err == nil && v.Status == domain.StatusProtected
}
