package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/storage"
)

// VaultStore is an in-memory implementation of storage.VaultStore.
type VaultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Vault // keyed by vault_id
}

// NewVaultStore creates a new in-memory vault store.
func NewVaultStore() *VaultStore {
	return &VaultStore{
		data: make(map[string]*domain.Vault),
	}
}

// Insert adds a new vault. Returns ErrDuplicateKey if vault_id exists.
func (s *VaultStore) Insert(_ context.Context, v *domain.Vault) error {
	if v == nil || v.VaultID == "" || !v.Status.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[v.VaultID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	vaultCopy := *v
	s.data[v.VaultID] = &vaultCopy
	return nil
}

// GetByID retrieves a vault by its ID. Returns ErrNotFound if not exists.
func (s *VaultStore) GetByID(_ context.Context, vaultID string) (*domain.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.data[vaultID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	vaultCopy := *v
	return &vaultCopy, nil
}

// ListByStatus retrieves all vaults with the given status, ordered by created_at ASC.
func (s *VaultStore) ListByStatus(_ context.Context, status domain.VaultStatus) ([]*domain.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Vault
	for _, v := range s.data {
		if v.Status == status {
			vaultCopy := *v
			result = append(result, &vaultCopy)
		}
	}

	sortVaults(result)
	return result, nil
}

// ListByOwner retrieves all vaults for an owner key hash, ordered by created_at ASC.
func (s *VaultStore) ListByOwner(_ context.Context, ownerKeyHash string) ([]*domain.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Vault
	for _, v := range s.data {
		if v.OwnerKeyHash == ownerKeyHash {
			vaultCopy := *v
			result = append(result, &vaultCopy)
		}
	}

	sortVaults(result)
	return result, nil
}

// UpdateStatus transitions a vault to the given status.
func (s *VaultStore) UpdateStatus(_ context.Context, vaultID string, next domain.VaultStatus) error {
	if !next.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.data[vaultID]
	if !exists {
		return storage.ErrNotFound
	}
	if !v.Status.CanTransitionTo(next) {
		return storage.ErrInvalidTransition
	}

	v.Status = next
	v.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// ApplyProtection marks a vault protected and reduces its LP token amount.
func (s *VaultStore) ApplyProtection(_ context.Context, vaultID string, unwound uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.data[vaultID]
	if !exists {
		return storage.ErrNotFound
	}
	if !v.Status.CanTransitionTo(domain.StatusProtected) {
		return storage.ErrInvalidTransition
	}
	if unwound > v.LPTokenAmount {
		return storage.ErrInvalidInput
	}

	v.LPTokenAmount -= unwound
	v.Status = domain.StatusProtected
	v.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// sortVaults orders vaults by created_at ASC, vault_id ASC for determinism.
func sortVaults(vaults []*domain.Vault) {
	sort.Slice(vaults, func(i, j int) bool {
		if vaults[i].CreatedAt != vaults[j].CreatedAt {
			return vaults[i].CreatedAt < vaults[j].CreatedAt
		}
		return vaults[i].VaultID < vaults[j].VaultID
	})
}

// Verify interface compliance at compile time.
var _ storage.VaultStore = (*VaultStore)(nil)
