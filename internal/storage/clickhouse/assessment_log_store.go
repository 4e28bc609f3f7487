package clickhouse

import (
	"context"
	"fmt"
	"time"

	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/idhash"
	"vault-sentinel/internal/observability"
	"vault-sentinel/internal/storage"
)

// AssessmentLogStore implements storage.AssessmentLogStore using ClickHouse.
// The log is append-only; MergeTree ordering by (vault_id, computed_at) makes
// per-vault history reads cheap.
type AssessmentLogStore struct {
	conn *Conn
}

// NewAssessmentLogStore creates a new AssessmentLogStore.
func NewAssessmentLogStore(conn *Conn) *AssessmentLogStore {
	return &AssessmentLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AssessmentLogStore = (*AssessmentLogStore)(nil)

func observe(operation string, start time.Time, err error) {
	observability.RecordDBQuery("clickhouse", operation, time.Since(start).Seconds(), err)
}

// Append records one completed assessment.
func (s *AssessmentLogStore) Append(ctx context.Context, a *domain.ILAssessment) (err error) {
	defer func(start time.Time) { observe("append", start, err) }(time.Now())

	query := `
		INSERT INTO il_assessments (
			assessment_id, vault_id, entry_price, current_price,
			il_percentage, il_amount, lp_value, hold_value,
			should_trigger_protection, snapshot_source, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		idhash.ComputeAssessmentID(a),
		a.VaultID,
		a.EntryPrice,
		a.CurrentPrice,
		a.ILPercentage,
		a.ILAmount,
		a.LPValue,
		a.HoldValue,
		a.ShouldTriggerProtection,
		string(a.SnapshotSource),
		a.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("append assessment: %w", err)
	}
	return nil
}

// GetByVaultID retrieves the assessment history for a vault, ordered by
// computed_at ASC.
func (s *AssessmentLogStore) GetByVaultID(ctx context.Context, vaultID string) (out []*domain.ILAssessment, err error) {
	defer func(start time.Time) { observe("get_by_vault_id", start, err) }(time.Now())

	query := `
		SELECT vault_id, entry_price, current_price,
		       il_percentage, il_amount, lp_value, hold_value,
		       should_trigger_protection, snapshot_source, computed_at
		FROM il_assessments
		WHERE vault_id = ?
		ORDER BY computed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, vaultID)
	if err != nil {
		return nil, fmt.Errorf("get assessments by vault id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.ILAssessment
		var sourceStr string
		err := rows.Scan(
			&a.VaultID,
			&a.EntryPrice,
			&a.CurrentPrice,
			&a.ILPercentage,
			&a.ILAmount,
			&a.LPValue,
			&a.HoldValue,
			&a.ShouldTriggerProtection,
			&sourceStr,
			&a.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan assessment row: %w", err)
		}
		a.SnapshotSource = domain.SnapshotSource(sourceStr)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessment rows: %w", err)
	}
	return out, nil
}
