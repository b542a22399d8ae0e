// Package vaultservice implements the merkledrop settlement vault.
//
// The module owns deposit bookkeeping keyed by commitment root, the one-way
// claimed flags that prevent double withdrawal, role-gated administration,
// fee configuration, the pause switch, and the release watcher that drives
// scheduled settlement.
package vaultservice
