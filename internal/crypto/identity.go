// Package crypto provides the identity derivation used by the ledger: account
// IDs computed from public keys and deterministic instance IDs computed by the
// factory. It follows Bitcoin's RIPEMD160(SHA256(x)) construction to avoid
// length extension attacks while keeping identifiers at 160 bits.
package crypto

import (
	"crypto/sha256"
	"crypto/sha512"

	"github.com/decred/dcrd/crypto/ripemd160"

	"github.com/LeJamon/goflashd/internal/types"
)

// CalcAccountID computes the 160-bit account ID from a public key.
// The entire compressed public key, including the scheme prefix byte,
// is hashed.
func CalcAccountID(publicKey []byte) types.AccountID {
	return hash160(publicKey)
}

// CalcInstanceID computes the deterministic 160-bit identity of a ledger
// instance from its construction parameters. The derivation is domain-tagged
// so instance IDs can never collide with key-derived account IDs.
func CalcInstanceID(tag string, params ...[]byte) types.AccountID {
	size := len(tag)
	for _, p := range params {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, tag...)
	for _, p := range params {
		buf = append(buf, p...)
	}
	return hash160(buf)
}

// Sha512Half returns the first 32 bytes of the SHA-512 hash of msg.
func Sha512Half(msg []byte) types.Hash256 {
	h := sha512.Sum512(msg)
	var result types.Hash256
	copy(result[:], h[:32])
	return result
}

func hash160(data []byte) types.AccountID {
	sha := sha256.Sum256(data)
	r := ripemd160.New()
	r.Write(sha[:])
	sum := r.Sum(nil)

	var id types.AccountID
	copy(id[:], sum)
	return id
}
