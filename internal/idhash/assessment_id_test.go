package idhash

import (
	"testing"

	"vault-sentinel/internal/domain"
)

func testAssessment() *domain.ILAssessment {
	return &domain.ILAssessment{
		VaultID:        "tx1#0",
		CurrentPrice:   102.5,
		ComputedAt:     1700000000000,
		SnapshotSource: domain.SourceLive,
	}
}

func TestComputeAssessmentID(t *testing.T) {
	a := testAssessment()
	got := ComputeAssessmentID(a)
	if len(got) != 64 {
		t.Errorf("ComputeAssessmentID() length = %d, want 64", len(got))
	}

	if got2 := ComputeAssessmentID(a); got != got2 {
		t.Errorf("ComputeAssessmentID() not deterministic: %s != %s", got, got2)
	}
}

func TestComputeAssessmentID_DifferentInputs(t *testing.T) {
	base := ComputeAssessmentID(testAssessment())

	diffVault := testAssessment()
	diffVault.VaultID = "tx2#0"
	if ComputeAssessmentID(diffVault) == base {
		t.Error("Different vault_id should produce different hash")
	}

	diffTime := testAssessment()
	diffTime.ComputedAt = 1700000000001
	if ComputeAssessmentID(diffTime) == base {
		t.Error("Different computed_at should produce different hash")
	}

	diffSource := testAssessment()
	diffSource.SnapshotSource = domain.SourceCached
	if ComputeAssessmentID(diffSource) == base {
		t.Error("Different source should produce different hash")
	}
}
