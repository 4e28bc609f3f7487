package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"vault-sentinel/internal/decode"
	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/ledger"
	"vault-sentinel/internal/storage/memory"
)

type fakeStream struct {
	updates chan ledger.AccountUpdate
	subErr  error
}

func (f *fakeStream) SubscribeContract(ctx context.Context, filter ledger.ContractFilter) (<-chan ledger.AccountUpdate, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.updates, nil
}

func (f *fakeStream) Close() error { return nil }

func runWatcher(t *testing.T, stream *fakeStream, store *memory.VaultStore) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(stream, decode.NewDecoder(nil), store, testContract, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not stop after cancellation")
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not reached in time")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestWatcherRegistersStreamedVault(t *testing.T) {
	ctx := context.Background()
	stream := &fakeStream{updates: make(chan ledger.AccountUpdate, 4)}
	store := memory.NewVaultStore()
	stop := runWatcher(t, stream, store)
	defer stop()

	stream.updates <- ledger.AccountUpdate{Record: record(t, "tx1", vaultPayload(t, "sol", "usdc"))}

	waitFor(t, func() bool {
		_, err := store.GetByID(ctx, "tx1#0")
		return err == nil
	})

	v, err := store.GetByID(ctx, "tx1#0")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if v.Status != domain.StatusActive {
		t.Errorf("Status = %s, want active", v.Status)
	}
}

func TestWatcherMarksRemovedVaultWithdrawn(t *testing.T) {
	ctx := context.Background()
	stream := &fakeStream{updates: make(chan ledger.AccountUpdate, 4)}
	store := memory.NewVaultStore()
	stop := runWatcher(t, stream, store)
	defer stop()

	rec := record(t, "tx1", vaultPayload(t, "sol", "usdc"))
	stream.updates <- ledger.AccountUpdate{Record: rec}
	waitFor(t, func() bool {
		_, err := store.GetByID(ctx, "tx1#0")
		return err == nil
	})

	stream.updates <- ledger.AccountUpdate{Record: rec, Removed: true}
	waitFor(t, func() bool {
		v, err := store.GetByID(ctx, "tx1#0")
		return err == nil && v.Status == domain.StatusWithdrawn
	})
}

func TestWatcherSkipsMalformedAndContinues(t *testing.T) {
	ctx := context.Background()
	stream := &fakeStream{updates: make(chan ledger.AccountUpdate, 4)}
	store := memory.NewVaultStore()
	stop := runWatcher(t, stream, store)
	defer stop()

	stream.updates <- ledger.AccountUpdate{Record: record(t, "bad", nil)}
	stream.updates <- ledger.AccountUpdate{Record: record(t, "tx1", vaultPayload(t, "sol", "usdc"))}

	waitFor(t, func() bool {
		_, err := store.GetByID(ctx, "tx1#0")
		return err == nil
	})
	if _, err := store.GetByID(ctx, "bad#0"); err == nil {
		t.Error("malformed record was registered")
	}
}

func TestWatcherSubscribeFailure(t *testing.T) {
	stream := &fakeStream{subErr: errors.New("gateway down")}
	w := NewWatcher(stream, decode.NewDecoder(nil), memory.NewVaultStore(), testContract, nil)
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded, want subscribe error")
	}
}
