package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/protect"
	"vault-sentinel/internal/storage/memory"
)

type flakyVaultStore struct {
	*memory.VaultStore
	failures int32 // remaining ListByStatus failures
	calls    int32
}

func (s *flakyVaultStore) ListByStatus(ctx context.Context, status domain.VaultStatus) ([]*domain.Vault, error) {
	atomic.AddInt32(&s.calls, 1)
	if atomic.AddInt32(&s.failures, -1) >= 0 {
		return nil, errors.New("store unavailable")
	}
	return s.VaultStore.ListByStatus(ctx, status)
}

type stubSource struct {
	snap *domain.PoolSnapshot
	err  map[string]error // by pair key
}

func (s *stubSource) GetSnapshot(ctx context.Context, assetA, assetB string) (*domain.PoolSnapshot, error) {
	if err, ok := s.err[domain.PairKey(assetA, assetB)]; ok {
		return nil, err
	}
	snap := *s.snap
	snap.Pair = domain.PairKey(assetA, assetB)
	return &snap, nil
}

func monitorVault(id string, pairA string, entry float64) *domain.Vault {
	return &domain.Vault{
		VaultID:                  id,
		OwnerKeyHash:             "abc",
		AssetASymbol:             pairA,
		AssetBSymbol:             "USDC",
		LPTokenAmount:            1000,
		EntryPrice:               entry,
		ILThresholdBps:           500,
		EmergencyWithdrawEnabled: true,
		OwnerOnCurve:             true,
		CreatedAt:                time.Now().UnixMilli(),
		Status:                   domain.StatusActive,
	}
}

func snapshot(price float64) *domain.PoolSnapshot {
	return &domain.PoolSnapshot{
		Price:     price,
		PriceAUSD: price,
		PriceBUSD: 1,
		Timestamp: time.Now().UnixMilli(),
		Source:    domain.SourceLive,
	}
}

func newTestRunner(t *testing.T, store *flakyVaultStore, source SnapshotSource) *Runner {
	t.Helper()
	exec := protect.NewExecutor(store, protect.NewSimulatedSettlement(nil), protect.Policy{}, nil)
	return New(Options{
		VaultStore:    store,
		Source:        source,
		Executor:      exec,
		AuditLog:      memory.NewAssessmentLogStore(),
		ListRetries:   3,
		ListBaseDelay: time.Millisecond,
	})
}

func TestRunCycleListRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	// The initial attempt and all three retries may fail before the cycle is
	// abandoned, so a store that recovers on the fourth call still succeeds.
	store := &flakyVaultStore{VaultStore: memory.NewVaultStore(), failures: 3}
	if err := store.Insert(ctx, monitorVault("tx1#0", "SOL", 100)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	r := newTestRunner(t, store, &stubSource{snap: snapshot(100)})
	res, err := r.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := atomic.LoadInt32(&store.calls); got != 4 {
		t.Errorf("ListByStatus called %d times, want 4", got)
	}
	if res.Evaluated != 1 {
		t.Errorf("Evaluated = %d, want 1", res.Evaluated)
	}
}

func TestRunCycleAbandonedAfterRetryBudget(t *testing.T) {
	store := &flakyVaultStore{VaultStore: memory.NewVaultStore(), failures: 99}
	r := newTestRunner(t, store, &stubSource{snap: snapshot(100)})

	_, err := r.RunCycle(context.Background())
	if err == nil {
		t.Fatal("RunCycle succeeded, want abandonment after exhausted retries")
	}
	if got := atomic.LoadInt32(&store.calls); got != 4 {
		t.Errorf("ListByStatus called %d times, want exactly 4 (initial attempt plus 3 retries)", got)
	}
}

func TestRunCycleIsolatesVaultFailures(t *testing.T) {
	ctx := context.Background()
	store := &flakyVaultStore{VaultStore: memory.NewVaultStore()}
	for _, v := range []*domain.Vault{
		monitorVault("tx1#0", "SOL", 100),
		monitorVault("tx2#0", "BROKEN", 100),
		monitorVault("tx3#0", "ETH", 100),
	} {
		if err := store.Insert(ctx, v); err != nil {
			t.Fatalf("Insert %s: %v", v.VaultID, err)
		}
	}

	source := &stubSource{
		snap: snapshot(100),
		err:  map[string]error{"BROKEN/USDC": errors.New("pair unlisted")},
	}
	r := newTestRunner(t, store, source)

	res, err := r.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.ActiveVaults != 3 {
		t.Errorf("ActiveVaults = %d, want 3", res.ActiveVaults)
	}
	if res.Evaluated != 2 {
		t.Errorf("Evaluated = %d, want 2 with one vault failing", res.Evaluated)
	}
	if res.Errors != 1 {
		t.Errorf("Errors = %d, want 1", res.Errors)
	}
}

func TestRunCycleProtectsBreachedVault(t *testing.T) {
	ctx := context.Background()
	store := &flakyVaultStore{VaultStore: memory.NewVaultStore()}
	// Entry 1, current 4: 20% IL over a 5% threshold.
	if err := store.Insert(ctx, monitorVault("tx1#0", "SOL", 1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	audit := memory.NewAssessmentLogStore()
	exec := protect.NewExecutor(store, protect.NewSimulatedSettlement(nil), protect.Policy{}, nil)
	r := New(Options{
		VaultStore:    store,
		Source:        &stubSource{snap: snapshot(4)},
		Executor:      exec,
		AuditLog:      audit,
		ListRetries:   3,
		ListBaseDelay: time.Millisecond,
	})

	res, err := r.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Breaches != 1 || res.Protected != 1 {
		t.Errorf("Breaches = %d, Protected = %d, want 1 and 1", res.Breaches, res.Protected)
	}

	v, err := store.GetByID(ctx, "tx1#0")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if v.Status != domain.StatusProtected {
		t.Errorf("Status = %s, want protected", v.Status)
	}

	history, err := audit.GetByVaultID(ctx, "tx1#0")
	if err != nil {
		t.Fatalf("GetByVaultID: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("audit history has %d entries, want 1", len(history))
	}
	if !history[0].ShouldTriggerProtection {
		t.Error("audited assessment not marked as a breach")
	}
}

func TestRunCycleSkipsUnresolvedSymbols(t *testing.T) {
	ctx := context.Background()
	store := &flakyVaultStore{VaultStore: memory.NewVaultStore()}
	v := monitorVault("tx1#0", domain.UnknownSymbol, 100)
	if err := store.Insert(ctx, v); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	r := newTestRunner(t, store, &stubSource{snap: snapshot(100)})
	res, err := r.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Evaluated != 0 || res.Errors != 0 {
		t.Errorf("Evaluated = %d, Errors = %d, want 0 and 0 for an unresolvable pair", res.Evaluated, res.Errors)
	}
}

func TestRunFirstCycleImmediateAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &flakyVaultStore{VaultStore: memory.NewVaultStore()}

	r := newTestRunner(t, store, &stubSource{snap: snapshot(100)})
	r.interval = time.Hour

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&store.calls) == 0 {
		select {
		case <-deadline:
			t.Fatal("first cycle did not start immediately")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
