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

// Watcher applies streamed account updates to the vault store so new vaults
// enter monitoring without waiting for the next full scan.
type Watcher struct {
	stream          ledger.StreamClient
	decoder         *decode.Decoder
	vaults          storage.VaultStore
	contractAddress string
	logger          *zap.Logger
}

func NewWatcher(stream ledger.StreamClient, decoder *decode.Decoder, vaults storage.VaultStore, contractAddress string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		stream:          stream,
		decoder:         decoder,
		vaults:          vaults,
		contractAddress: contractAddress,
		logger:          logger,
	}
}

// Run subscribes to contract updates and applies them until the context is
// cancelled or the stream closes. Undecodable payloads and store conflicts
// are logged and skipped.
func (w *Watcher) Run(ctx context.Context) error {
	updates, err := w.stream.SubscribeContract(ctx, ledger.ContractFilter{ContractAddress: w.contractAddress})
	if err != nil {
		return fmt.Errorf("subscribe contract %s: %w", w.contractAddress, err)
	}
	w.logger.Info("watching contract updates", zap.String("contract_address", w.contractAddress))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return errors.New("update stream closed")
			}
			w.apply(ctx, upd)
		}
	}
}

func (w *Watcher) apply(ctx context.Context, upd ledger.AccountUpdate) {
	if upd.Removed {
		w.markWithdrawn(ctx, upd.Record.Ref.String())
		return
	}

	v, err := w.decoder.DecodeVault(upd.Record)
	if err != nil {
		var dErr *decode.DecodeError
		if errors.As(err, &dErr) {
			observability.RecordDecodeFailure(dErr.Reason)
		}
		w.logger.Warn("undecodable streamed record",
			zap.String("ref", upd.Record.Ref.String()),
			zap.Error(err))
		return
	}

	switch err := w.vaults.Insert(ctx, v); {
	case err == nil:
		observability.RecordVaultDiscovered()
		w.logger.Info("vault registered from stream",
			zap.String("vault_id", v.VaultID),
			zap.String("pair", domain.PairKey(v.AssetASymbol, v.AssetBSymbol)))
	case errors.Is(err, storage.ErrDuplicateKey):
		// Redelivery after reconnect; already registered.
	default:
		w.logger.Error("register streamed vault failed",
			zap.String("vault_id", v.VaultID),
			zap.Error(err))
	}
}

func (w *Watcher) markWithdrawn(ctx context.Context, vaultID string) {
	switch err := w.vaults.UpdateStatus(ctx, vaultID, domain.StatusWithdrawn); {
	case err == nil:
		observability.RecordVaultPruned()
		w.logger.Info("vault record spent, marked withdrawn", zap.String("vault_id", vaultID))
	case errors.Is(err, storage.ErrNotFound):
		// Spend of a record we never registered; nothing to do.
	case errors.Is(err, storage.ErrInvalidTransition):
		// Already withdrawn.
	default:
		w.logger.Error("mark withdrawn failed", zap.String("vault_id", vaultID), zap.Error(err))
	}
}
