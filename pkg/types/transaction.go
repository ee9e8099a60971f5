package types

// InputKind discriminates the variants of a policy-check transaction input.
type InputKind byte

const (
	// InputPure is an inline literal value.
	InputPure InputKind = 0
	// InputSharedObject references a shared on-chain object by ID and the
	// version at which it first became shared.
	InputSharedObject InputKind = 1
)

// CallInput is one ordered input of a policy-check transaction.
type CallInput struct {
	Kind InputKind

	// InputPure
	Value []byte

	// InputSharedObject
	ObjectID             Address
	InitialSharedVersion uint64
	Mutable              bool
}

// Pure builds an inline-value input.
func Pure(value []byte) CallInput {
	return CallInput{Kind: InputPure, Value: value}
}

// SharedObject builds a shared-object input.
func SharedObject(id Address, initialSharedVersion uint64, mutable bool) CallInput {
	return CallInput{
		Kind:                 InputSharedObject,
		ObjectID:             id,
		InitialSharedVersion: initialSharedVersion,
		Mutable:              mutable,
	}
}

// MoveCall is the single authorization call of a policy-check transaction.
// Arguments index into the transaction's input list; argument order is
// load-bearing, the policy contract rejects any deviation.
type MoveCall struct {
	Package   Address
	Module    string
	Function  string
	Arguments []uint16
}

// PolicyCheckTransaction describes the unsigned on-chain call a key server
// simulates against the policy ledger before releasing key material.
type PolicyCheckTransaction struct {
	Inputs []CallInput
	Call   MoveCall
}
