// Package ingest keeps the vault registry in sync with the ledger.
// The Scanner does point-in-time reconciliation over a full contract read;
// the Watcher applies streamed account updates between scans.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"vault-sentinel/internal/decode"
	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/ledger"
	"vault-sentinel/internal/observability"
	"vault-sentinel/internal/storage"
)

// Scanner reconciles the vault store against the full set of account records
// at the vault contract address.
type Scanner struct {
	client          ledger.Client
	decoder         *decode.Decoder
	vaults          storage.VaultStore
	contractAddress string
	logger          *zap.Logger
}

func NewScanner(client ledger.Client, decoder *decode.Decoder, vaults storage.VaultStore, contractAddress string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		client:          client,
		decoder:         decoder,
		vaults:          vaults,
		contractAddress: contractAddress,
		logger:          logger,
	}
}

// ScanResult summarizes one reconciliation pass.
type ScanResult struct {
	RecordsSeen    int
	Decoded        int
	DecodeFailures int
	Registered     int
	Pruned         int
}

// Scan fetches every record at the contract address, registers vaults not
// yet in the store, and transitions actives that have disappeared from the
// ledger to withdrawn. Malformed records are counted and skipped; they never
// abort the pass.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	records, err := s.client.GetContractRecords(ctx, s.contractAddress)
	if err != nil {
		return nil, fmt.Errorf("fetch contract records: %w", err)
	}

	vaults, failures := s.decoder.DecodeBatch(records)
	for _, f := range failures {
		observability.RecordDecodeFailure(f.Reason)
		s.logger.Warn("undecodable account record", zap.String("ref", f.Ref), zap.Error(f.Err))
	}

	res := &ScanResult{
		RecordsSeen:    len(records),
		Decoded:        len(vaults),
		DecodeFailures: len(failures),
	}

	onLedger := make(map[string]bool, len(vaults))
	for _, v := range vaults {
		onLedger[v.VaultID] = true
		switch err := s.vaults.Insert(ctx, v); {
		case err == nil:
			res.Registered++
			observability.RecordVaultDiscovered()
			s.logger.Info("vault registered",
				zap.String("vault_id", v.VaultID),
				zap.String("pair", domain.PairKey(v.AssetASymbol, v.AssetBSymbol)))
		case errors.Is(err, storage.ErrDuplicateKey):
			// Already known; ledger records are immutable so there is
			// nothing to update.
		default:
			return res, fmt.Errorf("register vault %s: %w", v.VaultID, err)
		}
	}

	pruned, err := s.pruneMissing(ctx, onLedger)
	if err != nil {
		return res, err
	}
	res.Pruned = pruned
	return res, nil
}

// pruneMissing transitions active vaults that no longer appear on ledger to
// withdrawn. A spent record means the position was exited outside the
// sentinel's control.
func (s *Scanner) pruneMissing(ctx context.Context, onLedger map[string]bool) (int, error) {
	pruned := 0
	for _, status := range []domain.VaultStatus{domain.StatusActive, domain.StatusProtected} {
		live, err := s.vaults.ListByStatus(ctx, status)
		if err != nil {
			return pruned, fmt.Errorf("list %s vaults: %w", status, err)
		}
		for _, v := range live {
			if onLedger[v.VaultID] {
				continue
			}
			if err := s.vaults.UpdateStatus(ctx, v.VaultID, domain.StatusWithdrawn); err != nil {
				return pruned, fmt.Errorf("prune vault %s: %w", v.VaultID, err)
			}
			pruned++
			observability.RecordVaultPruned()
			s.logger.Info("vault withdrawn off-sentinel, pruned", zap.String("vault_id", v.VaultID))
		}
	}
	return pruned, nil
}
