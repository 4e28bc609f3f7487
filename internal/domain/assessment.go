package domain

// ILAssessment is the output of one impermanent-loss evaluation of one vault.
// Assessments are transient values recomputed every monitoring cycle; they are
// appended to the audit log but never read back to make a protection decision.
type ILAssessment struct {
	VaultID                 string         `json:"vault_id"`                  // vault under assessment
	EntryPrice              float64        `json:"entry_price"`               // asset B per asset A at deposit time
	CurrentPrice            float64        `json:"current_price"`             // asset B per asset A now
	ILPercentage            float64        `json:"il_percentage"`             // absolute loss percentage, >= 0
	ILAmount                float64        `json:"il_amount"`                 // holdValue - lpValue, USD
	LPValue                 float64        `json:"lp_value"`                  // current value of the LP position, USD
	HoldValue               float64        `json:"hold_value"`                // value of the original deposit at current USD prices
	ShouldTriggerProtection bool           `json:"should_trigger_protection"` // ILPercentage exceeded the vault threshold
	SnapshotSource          SnapshotSource `json:"snapshot_source"`           // confidence indicator for downstream consumers
	ComputedAt              int64          `json:"computed_at"`               // Unix timestamp in milliseconds
}
