package testing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goflashd/internal/types"
)

// RequireBalance asserts that an account has the expected credited balance.
func RequireBalance(t *testing.T, env *TestEnv, pool types.AccountID, assetID types.AssetID, acct *Account, expected uint64) {
	t.Helper()
	actual := env.Balance(pool, assetID, acct)
	require.Equal(t, expected, actual,
		"Account %s balance mismatch: expected %d, got %d", acct.Name, expected, actual)
}

// RequireReserves asserts the tracked reserve total for an asset.
func RequireReserves(t *testing.T, env *TestEnv, pool types.AccountID, assetID types.AssetID, expected uint64) {
	t.Helper()
	actual := env.Reserves(pool, assetID)
	require.Equal(t, expected, actual,
		"Reserve mismatch for asset %s: expected %d, got %d", assetID, expected, actual)
}

// RequireConservation asserts that the pool's tracked reserves equal the
// sum of credited balances and never exceed what the pool actually holds.
func RequireConservation(t *testing.T, env *TestEnv, pool types.AccountID, assetID types.AssetID, accounts ...*Account) {
	t.Helper()

	var sum uint64
	for _, acct := range accounts {
		sum += env.Balance(pool, assetID, acct)
	}

	reserves := env.Reserves(pool, assetID)
	require.Equal(t, reserves, sum,
		"Sum of balances %d does not match tracked reserves %d", sum, reserves)
	require.LessOrEqual(t, reserves, env.Holdings(pool, assetID),
		"Tracked reserves %d exceed pool holdings %d", reserves, env.Holdings(pool, assetID))
}

// AssertBalanceChange runs a function and asserts the expected balance change.
// The change can be positive (increase) or negative (decrease).
func AssertBalanceChange(t *testing.T, env *TestEnv, pool types.AccountID, assetID types.AssetID, acct *Account, expectedChange int64, fn func()) {
	t.Helper()
	before := env.Balance(pool, assetID, acct)
	fn()
	after := env.Balance(pool, assetID, acct)

	actualChange := int64(after) - int64(before)
	require.Equal(t, expectedChange, actualChange,
		"Account %s balance change mismatch: expected %d, got %d (before: %d, after: %d)",
		acct.Name, expectedChange, actualChange, before, after)
}

// AssertNoBalanceChange runs a function and asserts the balance stays the same.
func AssertNoBalanceChange(t *testing.T, env *TestEnv, pool types.AccountID, assetID types.AssetID, acct *Account, fn func()) {
	t.Helper()
	AssertBalanceChange(t, env, pool, assetID, acct, 0, fn)
}
