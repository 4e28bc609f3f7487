package ingest

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mr-tron/base58"

	"vault-sentinel/internal/decode"
	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/ledger"
	"vault-sentinel/internal/storage/memory"
)

const testContract = "VauLtC0ntractAddre55"

// vaultPayload builds a well-formed on-ledger vault value.
func vaultPayload(t *testing.T, nameA, nameB string) json.RawMessage {
	t.Helper()
	b := func(raw []byte) string {
		return fmt.Sprintf(`{"bytes":%q}`, hex.EncodeToString(raw))
	}
	i := func(n int64) string {
		return fmt.Sprintf(`{"int":%d}`, n)
	}
	pool := fmt.Sprintf(`{"constructor":0,"fields":[%s,%s,%s]}`,
		b([]byte{0xaa, 0xbb}), b([]byte(nameA)), b([]byte(nameB)))
	deposits := fmt.Sprintf(`{"constructor":0,"fields":[%s,%s]}`, i(1000), i(2000))
	policy := fmt.Sprintf(`{"constructor":0,"fields":[%s,{"constructor":1,"fields":[]}]}`, i(500))
	return json.RawMessage(fmt.Sprintf(`{"constructor":0,"fields":[%s,%s,%s,%s,%s,%s]}`,
		b([]byte{0xde, 0xad}), pool, deposits, i(5000), i(1_000_000), policy))
}

func record(t *testing.T, tx string, payload json.RawMessage) ledger.AccountRecord {
	t.Helper()
	return ledger.AccountRecord{
		Ref:       ledger.Ref{TxID: tx, Index: 0},
		Owner:     base58.Encode(append([]byte{0x01}, make([]byte, 31)...)),
		Payload:   payload,
		BlockTime: 1700000000000,
	}
}

type fakeLedger struct {
	records []ledger.AccountRecord
	err     error
}

func (f *fakeLedger) GetContractRecords(ctx context.Context, contractAddress string) ([]ledger.AccountRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeLedger) GetRecord(ctx context.Context, ref ledger.Ref) (*ledger.AccountRecord, error) {
	for _, rec := range f.records {
		if rec.Ref == ref {
			return &rec, nil
		}
	}
	return nil, nil
}

func TestScanRegistersNewVaults(t *testing.T) {
	ctx := context.Background()
	client := &fakeLedger{records: []ledger.AccountRecord{
		record(t, "tx1", vaultPayload(t, "sol", "usdc")),
		record(t, "tx2", vaultPayload(t, "eth", "usdc")),
	}}
	store := memory.NewVaultStore()
	s := NewScanner(client, decode.NewDecoder(nil), store, testContract, nil)

	res, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Registered != 2 {
		t.Errorf("Registered = %d, want 2", res.Registered)
	}

	v, err := store.GetByID(ctx, "tx1#0")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if v.AssetASymbol != "SOL" || v.AssetBSymbol != "USDC" {
		t.Errorf("symbols = %s/%s, want SOL/USDC", v.AssetASymbol, v.AssetBSymbol)
	}
	if v.Status != domain.StatusActive {
		t.Errorf("Status = %s, want active", v.Status)
	}
}

func TestScanIdempotent(t *testing.T) {
	ctx := context.Background()
	client := &fakeLedger{records: []ledger.AccountRecord{
		record(t, "tx1", vaultPayload(t, "sol", "usdc")),
	}}
	store := memory.NewVaultStore()
	s := NewScanner(client, decode.NewDecoder(nil), store, testContract, nil)

	if _, err := s.Scan(ctx); err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	res, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if res.Registered != 0 {
		t.Errorf("second scan Registered = %d, want 0", res.Registered)
	}
	if res.Pruned != 0 {
		t.Errorf("second scan Pruned = %d, want 0", res.Pruned)
	}
}

func TestScanSkipsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	client := &fakeLedger{records: []ledger.AccountRecord{
		record(t, "tx1", vaultPayload(t, "sol", "usdc")),
		record(t, "tx2", json.RawMessage(`{"int":42}`)),
		record(t, "tx3", nil),
	}}
	store := memory.NewVaultStore()
	s := NewScanner(client, decode.NewDecoder(nil), store, testContract, nil)

	res, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Registered != 1 {
		t.Errorf("Registered = %d, want 1", res.Registered)
	}
	if res.DecodeFailures != 2 {
		t.Errorf("DecodeFailures = %d, want 2", res.DecodeFailures)
	}
}

func TestScanPrunesMissingVaults(t *testing.T) {
	ctx := context.Background()
	client := &fakeLedger{records: []ledger.AccountRecord{
		record(t, "tx1", vaultPayload(t, "sol", "usdc")),
		record(t, "tx2", vaultPayload(t, "eth", "usdc")),
	}}
	store := memory.NewVaultStore()
	s := NewScanner(client, decode.NewDecoder(nil), store, testContract, nil)

	if _, err := s.Scan(ctx); err != nil {
		t.Fatalf("first Scan: %v", err)
	}

	// tx2's record was spent between scans.
	client.records = client.records[:1]
	res, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if res.Pruned != 1 {
		t.Errorf("Pruned = %d, want 1", res.Pruned)
	}

	v, err := store.GetByID(ctx, "tx2#0")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if v.Status != domain.StatusWithdrawn {
		t.Errorf("Status = %s, want withdrawn", v.Status)
	}

	kept, err := store.GetByID(ctx, "tx1#0")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if kept.Status != domain.StatusActive {
		t.Errorf("surviving vault Status = %s, want active", kept.Status)
	}
}
