// Package protect sizes and executes partial unwinds for vaults whose
// impermanent loss has breached their protection threshold.
package protect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/storage"
)

// maxExitPercentage caps any single protective exit at half the position.
// A full exit is never automatic; the rest stays deployed so the owner can
// decide on the remainder.
const maxExitPercentage = 50.0

// ExitPercentage sizes an exit proportionally to how far the IL overshoots
// the threshold: 10 points of exit per point of excess IL, capped at 50.
func ExitPercentage(ilPercentage, thresholdPercent float64) float64 {
	excess := ilPercentage - thresholdPercent
	if excess <= 0 {
		return 0
	}
	pct := excess * 10
	if pct > maxExitPercentage {
		return maxExitPercentage
	}
	return pct
}

// Policy gates which breached vaults the executor may act on.
type Policy struct {
	// RemediateUnresolvedSymbols permits automatic unwinds for vaults whose
	// asset symbols could not be resolved. Off by default: an unresolved
	// symbol usually means the pool metadata is wrong, and acting on wrong
	// metadata is worse than waiting for an operator.
	RemediateUnresolvedSymbols bool

	// RemediateScriptOwned permits automatic unwinds for vaults whose owner
	// key is not on the ed25519 curve. Such vaults are program-owned and
	// normally require manual handling.
	RemediateScriptOwned bool
}

// Executor turns breach assessments into settled partial unwinds.
type Executor struct {
	vaults     storage.VaultStore
	settlement Settlement
	policy     Policy
	logger     *zap.Logger
}

func NewExecutor(vaults storage.VaultStore, settlement Settlement, policy Policy, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{vaults: vaults, settlement: settlement, policy: policy, logger: logger}
}

// Eligible reports whether policy allows automatic remediation of the vault.
func (e *Executor) Eligible(v *domain.Vault) bool {
	if !v.EmergencyWithdrawEnabled {
		return false
	}
	if !v.SymbolsResolved() && !e.policy.RemediateUnresolvedSymbols {
		return false
	}
	if !v.OwnerOnCurve && !e.policy.RemediateScriptOwned {
		return false
	}
	return true
}

// Protect executes a partial unwind for a vault whose assessment breached
// its threshold. The vault's stored state changes only after the settlement
// layer acknowledges the instruction; a settlement failure leaves the vault
// active so the next cycle retries from fresh prices.
func (e *Executor) Protect(ctx context.Context, v *domain.Vault, a *domain.ILAssessment) error {
	if !a.ShouldTriggerProtection {
		return nil
	}
	if !e.Eligible(v) {
		e.logger.Info("breached vault not eligible for automatic remediation",
			zap.String("vault_id", v.VaultID),
			zap.Bool("emergency_withdraw_enabled", v.EmergencyWithdrawEnabled),
			zap.Bool("symbols_resolved", v.SymbolsResolved()),
			zap.Bool("owner_on_curve", v.OwnerOnCurve))
		return nil
	}

	exitPct := ExitPercentage(a.ILPercentage, v.ThresholdPercent())
	if exitPct <= 0 {
		return nil
	}
	tokens := uint64(float64(v.LPTokenAmount) * exitPct / 100)
	if tokens == 0 {
		e.logger.Warn("exit rounds to zero tokens, skipping",
			zap.String("vault_id", v.VaultID),
			zap.Uint64("lp_token_amount", v.LPTokenAmount),
			zap.Float64("exit_percentage", exitPct))
		return nil
	}

	instr := &UnwindInstruction{
		VaultID:        v.VaultID,
		OwnerKeyHash:   v.OwnerKeyHash,
		PoolReference:  v.PoolReference,
		TokensToUnwind: tokens,
		ExitPercentage: exitPct,
		ILPercentage:   a.ILPercentage,
	}
	if err := e.settlement.SubmitUnwind(ctx, instr); err != nil {
		return fmt.Errorf("%w: vault %s: %v", ErrRemediationFailed, v.VaultID, err)
	}

	if err := e.vaults.ApplyProtection(ctx, v.VaultID, tokens); err != nil {
		// The unwind settled but the record did not update. Surface loudly;
		// the stored LP amount is now stale until an operator reconciles.
		e.logger.Error("unwind settled but vault record update failed",
			zap.String("vault_id", v.VaultID),
			zap.Uint64("tokens_unwound", tokens),
			zap.Error(err))
		return fmt.Errorf("record protection for vault %s: %w", v.VaultID, err)
	}

	e.logger.Info("vault protected",
		zap.String("vault_id", v.VaultID),
		zap.Float64("il_percentage", a.ILPercentage),
		zap.Float64("exit_percentage", exitPct),
		zap.Uint64("tokens_unwound", tokens))
	return nil
}
