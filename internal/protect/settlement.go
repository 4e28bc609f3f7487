package protect

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrRemediationFailed is returned when a submitted unwind was not
// acknowledged by the settlement layer. The vault stays active and is
// re-evaluated on the next cycle.
var ErrRemediationFailed = errors.New("remediation failed")

// UnwindInstruction describes a partial exit from a vault's LP position.
type UnwindInstruction struct {
	VaultID        string
	OwnerKeyHash   string
	PoolReference  string
	TokensToUnwind uint64
	ExitPercentage float64
	ILPercentage   float64
}

// Settlement submits unwind instructions to the execution layer. SubmitUnwind
// must not return until the instruction is acknowledged or definitively
// failed; the caller records the protection only after a nil return.
type Settlement interface {
	SubmitUnwind(ctx context.Context, instr *UnwindInstruction) error
}

// SimulatedSettlement acknowledges every instruction without touching a
// chain. It records submissions so tests and dry runs can inspect them.
type SimulatedSettlement struct {
	logger *zap.Logger

	mu        sync.Mutex
	submitted []UnwindInstruction
}

func NewSimulatedSettlement(logger *zap.Logger) *SimulatedSettlement {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulatedSettlement{logger: logger}
}

func (s *SimulatedSettlement) SubmitUnwind(ctx context.Context, instr *UnwindInstruction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.submitted = append(s.submitted, *instr)
	s.mu.Unlock()

	s.logger.Info("simulated unwind acknowledged",
		zap.String("vault_id", instr.VaultID),
		zap.Uint64("tokens_to_unwind", instr.TokensToUnwind),
		zap.Float64("exit_percentage", instr.ExitPercentage))
	return nil
}

// Submitted returns a copy of every acknowledged instruction.
func (s *SimulatedSettlement) Submitted() []UnwindInstruction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UnwindInstruction, len(s.submitted))
	copy(out, s.submitted)
	return out
}

var _ Settlement = (*SimulatedSettlement)(nil)
