package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"vault-sentinel/internal/domain"
)

// ComputeAssessmentID computes a deterministic assessment_id using SHA256.
// Formula: SHA256(vault_id|computed_at|current_price|source)
// Returns hex-encoded hash (64 characters).
func ComputeAssessmentID(a *domain.ILAssessment) string {
	data := fmt.Sprintf("%s|%d|%g|%s",
		a.VaultID,
		a.ComputedAt,
		a.CurrentPrice,
		string(a.SnapshotSource),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
