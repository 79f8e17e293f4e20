package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeypairFromSeedDeterministic(t *testing.T) {
	a, err := KeypairFromSeed([]byte("alice"))
	require.NoError(t, err)
	b, err := KeypairFromSeed([]byte("alice"))
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)
	require.Equal(t, a.PublicKey, b.PublicKey)

	c, err := KeypairFromSeed([]byte("bob"))
	require.NoError(t, err)
	require.NotEqual(t, a.ID, c.ID)
}

func TestCalcAccountIDShape(t *testing.T) {
	kp, err := KeypairFromSeed([]byte("alice"))
	require.NoError(t, err)
	require.Len(t, kp.PublicKey, PublicKeySize)
	require.False(t, kp.ID.IsZero())
	require.Equal(t, kp.ID, CalcAccountID(kp.PublicKey))
}

func TestCalcInstanceIDDomainSeparated(t *testing.T) {
	a := CalcInstanceID("ledger", []byte{1, 2, 3})
	b := CalcInstanceID("other", []byte{1, 2, 3})
	require.NotEqual(t, a, b)

	// Same tag and params derive the same ID.
	require.Equal(t, a, CalcInstanceID("ledger", []byte{1, 2, 3}))
}

func TestRandomKeypair(t *testing.T) {
	a, err := RandomKeypair()
	require.NoError(t, err)
	b, err := RandomKeypair()
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}

func TestSha512Half(t *testing.T) {
	h := Sha512Half([]byte("flashd"))
	require.False(t, h.IsZero())
	require.Equal(t, h, Sha512Half([]byte("flashd")))
}
