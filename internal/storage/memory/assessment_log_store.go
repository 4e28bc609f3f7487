package memory

import (
	"context"
	"sort"
	"sync"

	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/storage"
)

// AssessmentLogStore is an in-memory implementation of storage.AssessmentLogStore.
type AssessmentLogStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.ILAssessment // keyed by vault_id
}

// NewAssessmentLogStore creates a new in-memory assessment log store.
func NewAssessmentLogStore() *AssessmentLogStore {
	return &AssessmentLogStore{
		data: make(map[string][]*domain.ILAssessment),
	}
}

// Append records one completed assessment.
func (s *AssessmentLogStore) Append(_ context.Context, a *domain.ILAssessment) error {
	if a == nil || a.VaultID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	assessmentCopy := *a
	s.data[a.VaultID] = append(s.data[a.VaultID], &assessmentCopy)
	return nil
}

// GetByVaultID retrieves the assessment history for a vault, ordered by computed_at ASC.
func (s *AssessmentLogStore) GetByVaultID(_ context.Context, vaultID string) ([]*domain.ILAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[vaultID]
	result := make([]*domain.ILAssessment, 0, len(history))
	for _, a := range history {
		assessmentCopy := *a
		result = append(result, &assessmentCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ComputedAt < result[j].ComputedAt
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.AssessmentLogStore = (*AssessmentLogStore)(nil)
