package testing

import (
	"crypto/sha512"
	"encoding/hex"

	"github.com/LeJamon/goflashd/internal/crypto"
	"github.com/LeJamon/goflashd/internal/types"
)

// Account represents a test account with keypair and identity information.
type Account struct {
	// Name is a human-readable identifier for the account (used for debugging).
	Name string

	// Seed is the seed bytes used to derive the keypair.
	Seed []byte

	// PublicKey is the compressed public key bytes.
	PublicKey []byte

	// PrivateKey is the private key bytes (32 bytes).
	PrivateKey []byte

	// ID is the 20-byte account identity derived from the public key.
	ID types.AccountID
}

// NewAccount creates a new test account with a deterministic keypair derived
// from the name. Using the same name will always produce the same account,
// making tests reproducible.
func NewAccount(name string) *Account {
	// Generate seed from name using SHA512-Half (first 16 bytes of SHA512)
	hash := sha512.Sum512([]byte(name))
	seed := hash[:16]

	kp, err := crypto.KeypairFromSeed(seed)
	if err != nil {
		panic("failed to derive keypair for account " + name + ": " + err.Error())
	}

	return &Account{
		Name:       name,
		Seed:       seed,
		PublicKey:  kp.PublicKey,
		PrivateKey: kp.PrivateKey,
		ID:         kp.ID,
	}
}

// AccountIDHex returns the account identity as a hex string.
func (a *Account) AccountIDHex() string {
	return hex.EncodeToString(a.ID[:])
}

// PublicKeyHex returns the public key as a hex string.
func (a *Account) PublicKeyHex() string {
	return hex.EncodeToString(a.PublicKey)
}

// String implements the Stringer interface for debugging.
func (a *Account) String() string {
	return a.Name + " (" + a.AccountIDHex() + ")"
}
