// Package builderservice implements the Commitment Builder for merkledrop.
//
// The module turns an ordered recipient list into a canonical merkle root,
// per-recipient membership proofs, and a write-once persisted artifact that
// the settlement watcher later replays against the vault.
package builderservice
