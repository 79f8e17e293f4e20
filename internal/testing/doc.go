// Package testing provides test infrastructure for settlement scenarios.
//
// The package provides:
//   - TestEnv: a settlement environment over an in-memory bank and state store
//   - Account: deterministic test accounts derived from names
//   - Borrowers: scripted flash-loan borrowers for callback scenarios
//   - Assertions: helpers for balance, reserve and conservation checks
//
// # Basic Usage
//
//	func TestTransfer(t *testing.T) {
//	    env := testenv.New(t)
//
//	    alice := testenv.NewAccount("alice")
//	    bob := testenv.NewAccount("bob")
//
//	    pool := env.Deploy(500)
//	    env.Fund(pool, testenv.TokenA, alice, 1000)
//
//	    env.Transfer(pool, testenv.TokenA, alice, bob, 400)
//	    testenv.RequireBalance(t, env, pool, testenv.TokenA, bob, 400)
//	}
//
// Account derivation is deterministic: the same name always produces the
// same identity, making tests reproducible.
package testing
