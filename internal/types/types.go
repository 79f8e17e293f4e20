// Package types defines the small identifier and blob types shared across the
// ledger core, storage and RPC layers.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// AccountIDSize is the size of an account identifier in bytes.
const AccountIDSize = 20

// AssetIDSize is the size of an asset identifier in bytes.
const AssetIDSize = 20

// Hash256Size is the size of a 256-bit hash in bytes.
const Hash256Size = 32

// AccountID is a 160-bit identity derived from a public key (or, for ledger
// instances, from the factory's deterministic derivation).
type AccountID [AccountIDSize]byte

// AssetID is the opaque handle of a fungible asset. It has the same shape as
// an AccountID because assets are addressed entities in the source domain.
type AssetID [AssetIDSize]byte

// Hash256 is a 256-bit hash value.
type Hash256 [Hash256Size]byte

// Blob is an arbitrary byte payload.
type Blob []byte

// Hash256FromData computes the SHA-256 hash of data.
func Hash256FromData(data []byte) Hash256 {
	return Hash256(sha256.Sum256(data))
}

// String returns the hex representation of the hash.
func (h Hash256) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is all zeros.
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

// String returns the hex representation of the account ID.
func (a AccountID) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the account ID is all zeros.
func (a AccountID) IsZero() bool {
	return a == AccountID{}
}

// String returns the hex representation of the asset ID.
func (a AssetID) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the asset ID is all zeros.
func (a AssetID) IsZero() bool {
	return a == AssetID{}
}

// AccountIDFromHex parses a 40-character hex string into an AccountID.
func AccountIDFromHex(s string) (AccountID, error) {
	var id AccountID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid account id %q: %w", s, err)
	}
	if len(b) != AccountIDSize {
		return id, fmt.Errorf("invalid account id length: got %d bytes, want %d", len(b), AccountIDSize)
	}
	copy(id[:], b)
	return id, nil
}

// AssetIDFromHex parses a 40-character hex string into an AssetID.
func AssetIDFromHex(s string) (AssetID, error) {
	var id AssetID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid asset id %q: %w", s, err)
	}
	if len(b) != AssetIDSize {
		return id, fmt.Errorf("invalid asset id length: got %d bytes, want %d", len(b), AssetIDSize)
	}
	copy(id[:], b)
	return id, nil
}
