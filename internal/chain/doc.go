// Package chain provides the execution model shared by every ledger contract:
// addresses, 10^18 fixed-point amounts, the error taxonomy, a serialized
// transaction engine with journaled rollback, the native-currency bank, and
// the owner/pause/reentrancy capabilities contracts compose.
//
// Contracts are not safe for concurrent use on their own. All mutations must
// run inside Engine.Execute and all reads inside Engine.View; the engine lock
// gives each transaction exclusive access to every contract it touches.
package chain
