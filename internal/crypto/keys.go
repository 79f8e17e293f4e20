package crypto

import (
	"crypto/rand"
	"errors"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/LeJamon/goflashd/internal/types"
)

const (
	// SecretKeySize is the size of a secp256k1 secret key in bytes.
	SecretKeySize = 32

	// PublicKeySize is the size of a compressed secp256k1 public key in bytes.
	PublicKeySize = 33
)

var (
	// ErrRandomGeneration is returned when random number generation fails.
	ErrRandomGeneration = errors.New("failed to generate random bytes")

	// ErrInvalidSeed is returned when a seed cannot produce a valid key.
	ErrInvalidSeed = errors.New("seed does not derive a valid secp256k1 key")
)

// Keypair is a secp256k1 keypair together with its derived account ID.
type Keypair struct {
	PrivateKey []byte
	PublicKey  []byte
	ID         types.AccountID
}

// KeypairFromSeed derives a keypair deterministically from seed bytes.
// The seed is hashed to 32 bytes and interpreted as a scalar modulo the curve
// order; the all-zero scalar is rejected.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	scalar := Sha512Half(seed)
	priv := secp256k1.PrivKeyFromBytes(scalar[:])
	if priv.Key.IsZero() {
		return nil, ErrInvalidSeed
	}
	pub := priv.PubKey().SerializeCompressed()
	return &Keypair{
		PrivateKey: priv.Serialize(),
		PublicKey:  pub,
		ID:         CalcAccountID(pub),
	}, nil
}

// RandomBytes generates n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, ErrRandomGeneration
	}
	return b, nil
}

// RandomKeypair generates a fresh random keypair. Key material is validated
// against the curve order before use; invalid draws are regenerated.
func RandomKeypair() (*Keypair, error) {
	for {
		raw, err := RandomBytes(SecretKeySize)
		if err != nil {
			return nil, err
		}
		priv, _ := btcec.PrivKeyFromBytes(raw)
		if priv == nil || priv.Key.IsZero() {
			continue
		}
		pub := priv.PubKey().SerializeCompressed()
		return &Keypair{
			PrivateKey: priv.Serialize(),
			PublicKey:  pub,
			ID:         CalcAccountID(pub),
		}, nil
	}
}
