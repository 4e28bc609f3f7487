package storage

import (
	"context"

	"vault-sentinel/internal/domain"
)

// VaultStore provides access to vault storage. It is the single source of
// truth for vault status; only the scan/monitor/protect pipeline writes to it.
type VaultStore interface {
	// Insert adds a new vault. Returns ErrDuplicateKey if vault_id exists.
	Insert(ctx context.Context, v *domain.Vault) error

	// GetByID retrieves a vault by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, vaultID string) (*domain.Vault, error)

	// ListByStatus retrieves all vaults with the given status, ordered by
	// created_at ASC.
	ListByStatus(ctx context.Context, status domain.VaultStatus) ([]*domain.Vault, error)

	// ListByOwner retrieves all vaults for an owner key hash, ordered by
	// created_at ASC.
	ListByOwner(ctx context.Context, ownerKeyHash string) ([]*domain.Vault, error)

	// UpdateStatus transitions a vault to the given status. Returns
	// ErrNotFound if the vault does not exist and ErrInvalidTransition if
	// the change would violate the monotonic lifecycle. Vaults are never
	// deleted, only status-transitioned, to preserve audit history.
	UpdateStatus(ctx context.Context, vaultID string, next domain.VaultStatus) error

	// ApplyProtection marks a vault protected and reduces its recorded
	// LP token amount by the unwound quantity, atomically. Returns
	// ErrInvalidTransition unless the vault is currently active, and
	// ErrInvalidInput if unwound exceeds the recorded LP token amount.
	ApplyProtection(ctx context.Context, vaultID string, unwound uint64) error
}

// AssessmentLogStore is an append-only audit trail of completed assessments.
// Protection decisions never read from it; each cycle recomputes from the
// (entryPrice, currentPrice) pair.
type AssessmentLogStore interface {
	// Append records one completed assessment.
	Append(ctx context.Context, a *domain.ILAssessment) error

	// GetByVaultID retrieves the assessment history for a vault, ordered by
	// computed_at ASC.
	GetByVaultID(ctx context.Context, vaultID string) ([]*domain.ILAssessment, error)
}
