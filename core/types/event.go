package types

// Event is the flattened, transport-friendly form of a contract event. Typed
// events in core/events render themselves into this shape for the gateway
// stream and the retirement indexer.
type Event struct {
	Type       string            `json:"type"`
	Contract   string            `json:"contract,omitempty"`
	Ledger     uint32            `json:"ledger"`
	Attributes map[string]string `json:"attributes"`
}
