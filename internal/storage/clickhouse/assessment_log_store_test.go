package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-sentinel/internal/domain"
)

func testAssessment(vaultID string, computedAt int64, ilPct float64) *domain.ILAssessment {
	return &domain.ILAssessment{
		VaultID:                 vaultID,
		EntryPrice:              1.0,
		CurrentPrice:            4.0,
		ILPercentage:            ilPct,
		ILAmount:                400,
		LPValue:                 1600,
		HoldValue:               2000,
		ShouldTriggerProtection: ilPct > 5,
		SnapshotSource:          domain.SourceLive,
		ComputedAt:              computedAt,
	}
}

func TestAssessmentLogStore_AppendAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssessmentLogStore(conn)
	ctx := context.Background()

	a := testAssessment("tx1#0", 1700000000000, 20)
	require.NoError(t, store.Append(ctx, a))

	got, err := store.GetByVaultID(ctx, "tx1#0")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, a.VaultID, got[0].VaultID)
	assert.Equal(t, a.EntryPrice, got[0].EntryPrice)
	assert.Equal(t, a.CurrentPrice, got[0].CurrentPrice)
	assert.Equal(t, a.ILPercentage, got[0].ILPercentage)
	assert.Equal(t, a.ILAmount, got[0].ILAmount)
	assert.Equal(t, a.LPValue, got[0].LPValue)
	assert.Equal(t, a.HoldValue, got[0].HoldValue)
	assert.True(t, got[0].ShouldTriggerProtection)
	assert.Equal(t, domain.SourceLive, got[0].SnapshotSource)
	assert.Equal(t, a.ComputedAt, got[0].ComputedAt)
}

func TestAssessmentLogStore_HistoryOrdering(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssessmentLogStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testAssessment("tx1#0", 300, 3)))
	require.NoError(t, store.Append(ctx, testAssessment("tx1#0", 100, 1)))
	require.NoError(t, store.Append(ctx, testAssessment("tx1#0", 200, 2)))
	require.NoError(t, store.Append(ctx, testAssessment("tx2#0", 150, 9)))

	got, err := store.GetByVaultID(ctx, "tx1#0")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(100), got[0].ComputedAt)
	assert.Equal(t, int64(200), got[1].ComputedAt)
	assert.Equal(t, int64(300), got[2].ComputedAt)
}

func TestAssessmentLogStore_EmptyHistory(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssessmentLogStore(conn)
	got, err := store.GetByVaultID(context.Background(), "missing#0")
	require.NoError(t, err)
	assert.Empty(t, got)
}
