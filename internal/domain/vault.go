package domain

// VaultStatus is the lifecycle state of a protected position.
type VaultStatus string

// Vault lifecycle states. Transitions are monotonic:
// active → protected → withdrawn, or active → withdrawn.
const (
	StatusActive    VaultStatus = "active"
	StatusProtected VaultStatus = "protected"
	StatusWithdrawn VaultStatus = "withdrawn"
)

// Valid reports whether s is a known vault status.
func (s VaultStatus) Valid() bool {
	switch s {
	case StatusActive, StatusProtected, StatusWithdrawn:
		return true
	}
	return false
}

// CanTransitionTo reports whether a status change from s to next is allowed.
// A vault is never resurrected: once protected it may only be withdrawn,
// once withdrawn it is terminal.
func (s VaultStatus) CanTransitionTo(next VaultStatus) bool {
	switch s {
	case StatusActive:
		return next == StatusProtected || next == StatusWithdrawn
	case StatusProtected:
		return next == StatusWithdrawn
	}
	return false
}

// UnknownSymbol is the sentinel used when an asset symbol cannot be resolved.
const UnknownSymbol = "UNKNOWN"

// Vault represents a liquidity position under protection.
// Corresponds to the vaults table in PostgreSQL.
type Vault struct {
	VaultID                  string      // PRIMARY KEY, "<tx_id>#<output_index>"
	OwnerKeyHash             string      // lower-case hex credential hash of the position owner
	PoolReference            string      // opaque pool/asset identifier
	AssetASymbol             string      // resolved symbol of asset A, UnknownSymbol if unresolved
	AssetBSymbol             string      // resolved symbol of asset B, UnknownSymbol if unresolved
	AssetADecimals           int         // base-unit decimals of asset A
	AssetBDecimals           int         // base-unit decimals of asset B
	DepositAmountA           uint64      // deposited amount of asset A, base units
	DepositAmountB           uint64      // deposited amount of asset B, base units
	LPTokenAmount            uint64      // LP tokens currently held, base units
	EntryPrice               float64     // asset B per asset A at deposit time
	ILThresholdBps           int64       // protection threshold, basis points (100 = 1%)
	EmergencyWithdrawEnabled bool        // owner opted into automatic remediation
	OwnerOnCurve             bool        // owner credential is a wallet key, not a script
	CreatedAt                int64       // Unix timestamp in milliseconds
	Status                   VaultStatus // active | protected | withdrawn
	UpdatedAt                int64       // last status/amount mutation timestamp (ms)
}

// SymbolsResolved reports whether both leg symbols resolved to something
// other than the UnknownSymbol sentinel.
func (v *Vault) SymbolsResolved() bool {
	return v.AssetASymbol != UnknownSymbol && v.AssetBSymbol != UnknownSymbol
}

// ThresholdPercent returns the protection threshold as a percentage.
func (v *Vault) ThresholdPercent() float64 {
	return float64(v.ILThresholdBps) / 100.0
}
