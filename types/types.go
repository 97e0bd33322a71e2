// Package types defines the core data types of the Gaia task
// lifecycle and verification protocol.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization where they cross the wire.
// Transport concerns (gRPC codec registration) are handled in the
// transport packages; persisted state uses JSON with exact numeric
// encoding (see Amount).
package types

import (
	"encoding/hex"
	"fmt"
)

// Address is an opaque 20-byte account identity. Proposers, funders,
// operators, validators and credit holders are all addressed this way.
type Address [20]byte

// ZeroAddress is the unset identity.
var ZeroAddress Address

// AddressFromHex parses a hex-encoded address, with or without a
// leading "0x".
func AddressFromHex(s string) (Address, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("invalid address %q: got %d bytes, want %d", s, len(b), len(a))
	}
	copy(a[:], b)
	return a, nil
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Hex returns the 0x-prefixed hex encoding.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// Less orders addresses bytewise. Used where ties must break
// deterministically (e.g., rounding-dust assignment).
func (a Address) Less(b Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// MarshalText encodes the address as hex, making Address usable as a
// JSON map key in persisted state.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText decodes a hex address.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := AddressFromHex(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Hash is a 32-byte cryptographic digest. Used for evidence hashes.
type Hash [32]byte

// IsZero reports whether the hash is unset.
func (h Hash) IsZero() bool { return h == Hash{} }

// Hex returns the 0x-prefixed hex encoding.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// MarshalText encodes the hash as hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText decodes a hex hash.
func (h *Hash) UnmarshalText(text []byte) error {
	s := string(text)
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != len(h) {
		return fmt.Errorf("invalid hash %q: got %d bytes, want %d", s, len(b), len(h))
	}
	copy(h[:], b)
	return nil
}
