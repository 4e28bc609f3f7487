package ledger

import "context"

// StreamClient defines the WebSocket subscription interface of the state
// gateway.
type StreamClient interface {
	// SubscribeContract subscribes to account updates at a contract address.
	SubscribeContract(ctx context.Context, filter ContractFilter) (<-chan AccountUpdate, error)

	// Close closes the WebSocket connection.
	Close() error
}

// ContractFilter defines the subscription filter for contract updates.
type ContractFilter struct {
	// ContractAddress selects the contract whose accounts are watched.
	ContractAddress string
}

// AccountUpdate is one streamed account change at the watched contract.
type AccountUpdate struct {
	Record  AccountRecord
	Removed bool // the record was spent/consumed and is no longer on ledger
}
