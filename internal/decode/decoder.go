package decode

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"vault-sentinel/internal/domain"
	"vault-sentinel/internal/ledger"
)

// Vault record field layout. The top-level value is a constructor (tag 0)
// with exactly six ordered fields:
//
//	0: bytes   owner key hash
//	1: constr  pool reference: [bytes policy id, bytes asset A name, bytes asset B name]
//	2: constr  deposit amounts: [int amount A, int amount B]
//	3: int     LP token amount
//	4: int     entry price, scaled by priceScale
//	5: constr  policy: [int IL threshold bps, bool emergency withdraw enabled]
const (
	vaultFieldCount = 6

	fieldOwner    = 0
	fieldPool     = 1
	fieldDeposits = 2
	fieldLPAmount = 3
	fieldEntry    = 4
	fieldPolicy   = 5
)

// priceScale is the fixed-point scale of the on-ledger entry price.
const priceScale = 1_000_000.0

// ErrNoPayload is returned for records that carry no tagged-record payload.
var ErrNoPayload = errors.New("record has no payload")

// DecodeError records a single failed decode. One malformed record never
// aborts decoding of the batch; the failure is surfaced alongside the
// successfully decoded vaults.
type DecodeError struct {
	Ref    string // originating record reference
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode record %s: %s: %v", e.Ref, e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder decodes raw account records into vault entities.
type Decoder struct {
	symbols *SymbolTable
}

// NewDecoder creates a decoder using the given symbol table.
func NewDecoder(symbols *SymbolTable) *Decoder {
	if symbols == nil {
		symbols = NewSymbolTable(nil)
	}
	return &Decoder{symbols: symbols}
}

// DecodeVault decodes one account record into a Vault. The decode is pure;
// the caller decides whether to persist the result.
func (d *Decoder) DecodeVault(rec ledger.AccountRecord) (*domain.Vault, error) {
	if len(rec.Payload) == 0 {
		return nil, d.fail(rec, "missing payload", ErrNoPayload)
	}

	root, err := ParseData(rec.Payload)
	if err != nil {
		return nil, d.fail(rec, "parse payload", err)
	}

	fields, err := root.asConstr(0, vaultFieldCount)
	if err != nil {
		return nil, d.fail(rec, "top-level record", err)
	}

	ownerBytes, err := fields[fieldOwner].asBytes()
	if err != nil {
		return nil, d.fail(rec, "owner field", err)
	}
	if len(ownerBytes) == 0 {
		return nil, d.fail(rec, "owner field", errors.New("empty owner key hash"))
	}

	poolFields, err := fields[fieldPool].asConstr(0, 3)
	if err != nil {
		return nil, d.fail(rec, "pool reference field", err)
	}
	policyID, err := poolFields[0].asBytes()
	if err != nil {
		return nil, d.fail(rec, "pool policy id", err)
	}
	nameA, err := poolFields[1].asBytes()
	if err != nil {
		return nil, d.fail(rec, "asset A name", err)
	}
	nameB, err := poolFields[2].asBytes()
	if err != nil {
		return nil, d.fail(rec, "asset B name", err)
	}

	depositFields, err := fields[fieldDeposits].asConstr(0, 2)
	if err != nil {
		return nil, d.fail(rec, "deposit amounts field", err)
	}
	depositA, err := depositFields[0].asInt()
	if err != nil {
		return nil, d.fail(rec, "deposit amount A", err)
	}
	depositB, err := depositFields[1].asInt()
	if err != nil {
		return nil, d.fail(rec, "deposit amount B", err)
	}
	if depositA < 0 || depositB < 0 {
		return nil, d.fail(rec, "deposit amounts", errors.New("negative amount"))
	}

	lpAmount, err := fields[fieldLPAmount].asInt()
	if err != nil {
		return nil, d.fail(rec, "lp token amount field", err)
	}
	if lpAmount < 0 {
		return nil, d.fail(rec, "lp token amount field", errors.New("negative amount"))
	}

	entryRaw, err := fields[fieldEntry].asInt()
	if err != nil {
		return nil, d.fail(rec, "entry price field", err)
	}

	policyFields, err := fields[fieldPolicy].asConstr(0, 2)
	if err != nil {
		return nil, d.fail(rec, "policy field", err)
	}
	thresholdBps, err := policyFields[0].asInt()
	if err != nil {
		return nil, d.fail(rec, "il threshold field", err)
	}
	if thresholdBps <= 0 {
		return nil, d.fail(rec, "il threshold field", errors.New("threshold must be positive"))
	}
	emergencyEnabled, err := policyFields[1].asBool()
	if err != nil {
		return nil, d.fail(rec, "emergency withdraw flag", err)
	}

	policyHex := hex.EncodeToString(policyID)
	symA, decA := d.symbols.Resolve(policyHex, nameA)
	symB, decB := d.symbols.Resolve(policyHex, nameB)

	return &domain.Vault{
		VaultID:                  rec.Ref.String(),
		OwnerKeyHash:             strings.ToLower(hex.EncodeToString(ownerBytes)),
		PoolReference:            policyHex,
		AssetASymbol:             symA,
		AssetBSymbol:             symB,
		AssetADecimals:           decA,
		AssetBDecimals:           decB,
		DepositAmountA:           uint64(depositA),
		DepositAmountB:           uint64(depositB),
		LPTokenAmount:            uint64(lpAmount),
		EntryPrice:               float64(entryRaw) / priceScale,
		ILThresholdBps:           thresholdBps,
		EmergencyWithdrawEnabled: emergencyEnabled,
		OwnerOnCurve:             IsOnCurve(rec.Owner),
		CreatedAt:                rec.BlockTime,
		Status:                   domain.StatusActive,
	}, nil
}

// DecodeBatch decodes a batch of records. Malformed records are skipped and
// reported; N good records always yield N vaults regardless of bad ones.
func (d *Decoder) DecodeBatch(records []ledger.AccountRecord) ([]*domain.Vault, []*DecodeError) {
	var vaults []*domain.Vault
	var failures []*DecodeError

	for _, rec := range records {
		v, err := d.DecodeVault(rec)
		if err != nil {
			var decErr *DecodeError
			if errors.As(err, &decErr) {
				failures = append(failures, decErr)
			} else {
				failures = append(failures, &DecodeError{Ref: rec.Ref.String(), Reason: "decode", Err: err})
			}
			continue
		}
		vaults = append(vaults, v)
	}

	return vaults, failures
}

func (d *Decoder) fail(rec ledger.AccountRecord, reason string, err error) error {
	return &DecodeError{Ref: rec.Ref.String(), Reason: reason, Err: err}
}

// IsOnCurve reports whether a base58 account-level credential is a valid
// ed25519 point, i.e. a wallet key rather than a derived script address.
// Script-owned vaults are assessed but flagged for manual review.
func IsOnCurve(owner string) bool {
	raw, err := base58.Decode(owner)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
