// Package ledger provides read-only access to the settlement ledger through
// the state gateway's JSON-RPC API: point-in-time fetches of the raw account
// records held at the vault contract address, plus a WebSocket stream of
// account updates. The package only moves opaque payloads; decoding them into
// vault records is the decode package's job.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTransient marks connectivity and timeout failures that exhausted the
// client's bounded retry budget. Callers retry these on their own schedule.
var ErrTransient = errors.New("transient ledger fetch failure")

// Client defines the ledger state gateway interface.
type Client interface {
	// GetContractRecords retrieves all account records currently held at
	// the given contract address.
	GetContractRecords(ctx context.Context, contractAddress string) ([]AccountRecord, error)

	// GetRecord retrieves a single account record by its reference.
	// Returns nil if the record is no longer on ledger.
	GetRecord(ctx context.Context, ref Ref) (*AccountRecord, error)
}

// AccountRecord is one raw account held at a contract address. The payload,
// when present, is the nested tagged-record value the decoder consumes.
type AccountRecord struct {
	Ref       Ref             // originating transaction id + output index
	Owner     string          // base58 account-level owner credential
	Payload   json.RawMessage // opaque nested tagged-record value, may be nil
	BlockTime int64           // ledger inclusion time, Unix milliseconds
}

// Ref identifies a record by transaction id and output index.
type Ref struct {
	TxID  string
	Index uint32
}

// String renders the reference in the canonical "<tx_id>#<index>" form used
// as a vault id.
func (r Ref) String() string {
	return fmt.Sprintf("%s#%d", r.TxID, r.Index)
}

// ParseRef parses a "<tx_id>#<index>" reference.
func ParseRef(s string) (Ref, error) {
	txID, idxStr, ok := strings.Cut(s, "#")
	if !ok || txID == "" {
		return Ref{}, fmt.Errorf("malformed record reference %q", s)
	}
	idx, err := strconv.ParseUint(idxStr, 10, 32)
	if err != nil {
		return Ref{}, fmt.Errorf("malformed record reference %q: %w", s, err)
	}
	return Ref{TxID: txID, Index: uint32(idx)}, nil
}
