package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// AddressLength is the byte length of an on-chain address or object ID.
const AddressLength = 32

// Address identifies an on-chain object: a key-server object, the policy
// package, a policy object, or a principal derived from a public key.
type Address [AddressLength]byte

// AddressFromHex parses a 0x-prefixed (or bare) hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	var addr Address
	h := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(h) != AddressLength*2 {
		return addr, fmt.Errorf("invalid address %q: want %d hex chars, got %d", s, AddressLength*2, len(h))
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(addr[:], raw)
	return addr, nil
}

// AddressFromBytes copies raw into an Address, enforcing the exact length.
func AddressFromBytes(raw []byte) (Address, error) {
	var addr Address
	if len(raw) != AddressLength {
		return addr, fmt.Errorf("invalid address: want %d bytes, got %d", AddressLength, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	addr, err := AddressFromHex(s)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// HexBytes is a byte slice that marshals to/from plain hex in JSON. Used for
// scope identifiers and signatures on the wire.
type HexBytes []byte

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return fmt.Errorf("invalid hex value: %w", err)
	}
	*h = raw
	return nil
}

func (h HexBytes) String() string {
	return hex.EncodeToString(h)
}
