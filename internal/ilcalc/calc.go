// Package ilcalc computes impermanent loss for constant-product pools.
// All functions are pure and non-blocking; one assessment uses exactly one
// snapshot so the IL percentage and the USD figures always describe the same
// point in time.
package ilcalc

import (
	"errors"
	"fmt"
	"math"
	"time"

	"vault-sentinel/internal/domain"
)

// ErrInvalidEntryPrice is returned when a vault's stored entry price is zero
// or negative, so its protection policy cannot be evaluated. The vault is
// skipped for the cycle, not marked protected.
var ErrInvalidEntryPrice = errors.New("invalid entry price")

// LossFraction evaluates the closed-form constant-product IL curve
//
//	loss = 1 - 2*sqrt(r) / (1 + r),  r = currentPrice / entryPrice
//
// The curve is symmetric in r and 1/r and exactly zero at r = 1.
func LossFraction(priceRatio float64) float64 {
	if priceRatio == 1 {
		return 0
	}
	return 1 - (2*math.Sqrt(priceRatio))/(1+priceRatio)
}

// Assess evaluates one vault against one snapshot.
func Assess(v *domain.Vault, snap *domain.PoolSnapshot, computedAt time.Time) (*domain.ILAssessment, error) {
	if v.EntryPrice <= 0 || math.IsNaN(v.EntryPrice) || math.IsInf(v.EntryPrice, 0) {
		return nil, fmt.Errorf("%w: vault %s has entry price %f", ErrInvalidEntryPrice, v.VaultID, v.EntryPrice)
	}
	if snap.Price <= 0 {
		return nil, fmt.Errorf("snapshot for %s has non-positive price %f", snap.Pair, snap.Price)
	}

	priceRatio := snap.Price / v.EntryPrice
	lossFraction := LossFraction(priceRatio)
	ilPercentage := math.Abs(lossFraction) * 100

	// Value of the originally deposited amounts at current USD prices. This
	// is the "held instead of deposited" baseline from the standard IL
	// definition, not the deposit's value at entry time.
	holdValue := holdValueUSD(v, snap)
	lpValue := holdValue * (1 - lossFraction)
	ilAmount := holdValue - lpValue

	return &domain.ILAssessment{
		VaultID:                 v.VaultID,
		EntryPrice:              v.EntryPrice,
		CurrentPrice:            snap.Price,
		ILPercentage:            ilPercentage,
		ILAmount:                ilAmount,
		LPValue:                 lpValue,
		HoldValue:               holdValue,
		ShouldTriggerProtection: ilPercentage > v.ThresholdPercent(),
		SnapshotSource:          snap.Source,
		ComputedAt:              computedAt.UnixMilli(),
	}, nil
}

// holdValueUSD prices the original deposit amounts at the snapshot's USD leg
// prices. When the snapshot lacks explicit USD legs they are derived from
// TVL and reserves under the constant-product convention; if neither is
// available the USD figures degrade to zero while the IL percentage, which
// needs only the price ratio, stays meaningful.
func holdValueUSD(v *domain.Vault, snap *domain.PoolSnapshot) float64 {
	usdA, usdB := snap.PriceAUSD, snap.PriceBUSD

	if usdA <= 0 && usdB <= 0 && snap.TVL > 0 {
		denom := snap.ReserveA*snap.Price + snap.ReserveB
		if denom > 0 {
			usdB = snap.TVL / denom
			usdA = snap.Price * usdB
		}
	}
	if usdA <= 0 && usdB <= 0 {
		return 0
	}

	unitsA := float64(v.DepositAmountA) / math.Pow10(v.AssetADecimals)
	unitsB := float64(v.DepositAmountB) / math.Pow10(v.AssetBDecimals)
	return unitsA*usdA + unitsB*usdB
}
