package types

// IntentScope tags every enclave-signed payload so a signature produced for
// one purpose can never be replayed for another. Values are protocol-fixed.
type IntentScope byte

const (
	// IntentProcessData tags signed timeline-entry responses.
	IntentProcessData IntentScope = 0
	// IntentWalletPK tags the wallet public key binding inside the bootstrap
	// policy-check transaction.
	IntentWalletPK IntentScope = 1
	// IntentTimelineEntry tags signed timeline-entry intents.
	IntentTimelineEntry IntentScope = 10
)

// IntentMessage wraps a payload with its scope and signing timestamp. The
// signature in ProcessedDataResponse covers the deterministic encoding of
// this envelope, not its JSON rendering.
type IntentMessage[T any] struct {
	Intent      IntentScope `json:"intent"`
	TimestampMS uint64      `json:"timestamp_ms"`
	Data        T           `json:"data"`
}

// ProcessDataRequest is the generic request wrapper for public endpoints.
type ProcessDataRequest[T any] struct {
	Payload T `json:"payload"`
}

// ProcessedDataResponse is the generic signed response wrapper: the intent
// message plus the enclave signature over its deterministic encoding.
type ProcessedDataResponse[T any] struct {
	Response  IntentMessage[T] `json:"response"`
	Signature HexBytes         `json:"signature"`
}
