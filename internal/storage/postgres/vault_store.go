package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/observability"
	"vault-sentinel/internal/storage"
)

// VaultStore implements storage.VaultStore using PostgreSQL.
type VaultStore struct {
	pool *Pool
}

// NewVaultStore creates a new VaultStore.
func NewVaultStore(pool *Pool) *VaultStore {
	return &VaultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VaultStore = (*VaultStore)(nil)

func observe(operation string, start time.Time, err error) {
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), err)
}

const vaultColumns = `
	vault_id, owner_key_hash, pool_reference,
	asset_a_symbol, asset_b_symbol, asset_a_decimals, asset_b_decimals,
	deposit_amount_a, deposit_amount_b, lp_token_amount,
	entry_price, il_threshold_bps, emergency_withdraw_enabled, owner_on_curve,
	created_at, status, updated_at
`

// Insert adds a new vault. Returns ErrDuplicateKey if vault_id exists.
func (s *VaultStore) Insert(ctx context.Context, v *domain.Vault) (err error) {
	if v == nil || v.VaultID == "" || !v.Status.Valid() {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert", start, err) }(time.Now())

	query := `
		INSERT INTO vaults (` + vaultColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err = s.pool.Exec(ctx, query,
		v.VaultID,
		v.OwnerKeyHash,
		v.PoolReference,
		v.AssetASymbol,
		v.AssetBSymbol,
		v.AssetADecimals,
		v.AssetBDecimals,
		int64(v.DepositAmountA),
		int64(v.DepositAmountB),
		int64(v.LPTokenAmount),
		v.EntryPrice,
		v.ILThresholdBps,
		v.EmergencyWithdrawEnabled,
		v.OwnerOnCurve,
		v.CreatedAt,
		string(v.Status),
		v.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert vault: %w", err)
	}
	return nil
}

// GetByID retrieves a vault by its ID. Returns ErrNotFound if not exists.
func (s *VaultStore) GetByID(ctx context.Context, vaultID string) (v *domain.Vault, err error) {
	defer func(start time.Time) { observe("get_by_id", start, err) }(time.Now())

	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE vault_id = $1`

	row := s.pool.QueryRow(ctx, query, vaultID)
	v, err = scanVault(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get vault by id: %w", err)
	}
	return v, nil
}

// ListByStatus retrieves all vaults with the given status, ordered by created_at ASC.
func (s *VaultStore) ListByStatus(ctx context.Context, status domain.VaultStatus) (vaults []*domain.Vault, err error) {
	defer func(start time.Time) { observe("list_by_status", start, err) }(time.Now())

	query := `
		SELECT ` + vaultColumns + `
		FROM vaults
		WHERE status = $1
		ORDER BY created_at ASC, vault_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list vaults by status: %w", err)
	}
	defer rows.Close()

	return scanVaults(rows)
}

// ListByOwner retrieves all vaults for an owner key hash, ordered by created_at ASC.
func (s *VaultStore) ListByOwner(ctx context.Context, ownerKeyHash string) (vaults []*domain.Vault, err error) {
	defer func(start time.Time) { observe("list_by_owner", start, err) }(time.Now())

	query := `
		SELECT ` + vaultColumns + `
		FROM vaults
		WHERE owner_key_hash = $1
		ORDER BY created_at ASC, vault_id ASC
	`

	rows, err := s.pool.Query(ctx, query, ownerKeyHash)
	if err != nil {
		return nil, fmt.Errorf("list vaults by owner: %w", err)
	}
	defer rows.Close()

	return scanVaults(rows)
}

// UpdateStatus transitions a vault to the given status. The current status is
// read and checked under a row lock so concurrent transitions serialize.
func (s *VaultStore) UpdateStatus(ctx context.Context, vaultID string, next domain.VaultStatus) (err error) {
	if !next.Valid() {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("update_status", start, err) }(time.Now())

	return s.withTx(ctx, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx,
			`SELECT status FROM vaults WHERE vault_id = $1 FOR UPDATE`, vaultID,
		).Scan(&current)
		if err != nil {
			if isNotFoundError(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("lock vault: %w", err)
		}
		if !domain.VaultStatus(current).CanTransitionTo(next) {
			return storage.ErrInvalidTransition
		}

		_, err = tx.Exec(ctx,
			`UPDATE vaults SET status = $1, updated_at = $2 WHERE vault_id = $3`,
			string(next), time.Now().UnixMilli(), vaultID)
		if err != nil {
			return fmt.Errorf("update vault status: %w", err)
		}
		return nil
	})
}

// ApplyProtection marks a vault protected and reduces its LP token amount,
// atomically.
func (s *VaultStore) ApplyProtection(ctx context.Context, vaultID string, unwound uint64) (err error) {
	defer func(start time.Time) { observe("apply_protection", start, err) }(time.Now())

	return s.withTx(ctx, func(tx pgx.Tx) error {
		var current string
		var lpAmount int64
		err := tx.QueryRow(ctx,
			`SELECT status, lp_token_amount FROM vaults WHERE vault_id = $1 FOR UPDATE`, vaultID,
		).Scan(&current, &lpAmount)
		if err != nil {
			if isNotFoundError(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("lock vault: %w", err)
		}
		if !domain.VaultStatus(current).CanTransitionTo(domain.StatusProtected) {
			return storage.ErrInvalidTransition
		}
		if unwound > uint64(lpAmount) {
			return storage.ErrInvalidInput
		}

		_, err = tx.Exec(ctx,
			`UPDATE vaults SET status = $1, lp_token_amount = $2, updated_at = $3 WHERE vault_id = $4`,
			string(domain.StatusProtected), lpAmount-int64(unwound), time.Now().UnixMilli(), vaultID)
		if err != nil {
			return fmt.Errorf("apply protection: %w", err)
		}
		return nil
	})
}

// withTx runs fn inside a transaction, committing on nil and rolling back on
// error.
func (s *VaultStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// scanVault scans a single row into a Vault.
func scanVault(row pgx.Row) (*domain.Vault, error) {
	var v domain.Vault
	var statusStr string
	var depositA, depositB, lpAmount int64

	err := row.Scan(
		&v.VaultID,
		&v.OwnerKeyHash,
		&v.PoolReference,
		&v.AssetASymbol,
		&v.AssetBSymbol,
		&v.AssetADecimals,
		&v.AssetBDecimals,
		&depositA,
		&depositB,
		&lpAmount,
		&v.EntryPrice,
		&v.ILThresholdBps,
		&v.EmergencyWithdrawEnabled,
		&v.OwnerOnCurve,
		&v.CreatedAt,
		&statusStr,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.DepositAmountA = uint64(depositA)
	v.DepositAmountB = uint64(depositB)
	v.LPTokenAmount = uint64(lpAmount)
	v.Status = domain.VaultStatus(statusStr)
	return &v, nil
}

// scanVaults scans all rows into Vaults.
func scanVaults(rows pgx.Rows) ([]*domain.Vault, error) {
	var vaults []*domain.Vault
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vault row: %w", err)
		}
		vaults = append(vaults, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vault rows: %w", err)
	}
	return vaults, nil
}
