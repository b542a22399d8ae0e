package entities

import (
	"fmt"
	"math/bits"

	"merkledrop/internal/shared/chain"
)

// MaxFeeBps is the fee ceiling: 1000 basis points, 10%.
const MaxFeeBps uint64 = 1000

const feeDenominatorBps uint64 = 10000

// Deposit is one registered commitment with its unspent balance.
// RemainingAmount only ever decreases; the deposit is removed once it
// reaches zero or when an owner forces removal.
type Deposit struct {
	Root            chain.Digest
	Depositor       chain.Address
	RemainingAmount uint64
}

// FeeConfig is the owner-mutable fee setting applied at deposit time.
type FeeConfig struct {
	RateBps   uint64
	Recipient chain.Address
}

// FeeFor computes the fee on value at rateBps with truncating integer
// division. Never rounds. The product is taken in 128 bits so the fee stays
// exact for any uint64 value; the quotient fits uint64 because rateBps never
// exceeds the denominator.
func FeeFor(value uint64, rateBps uint64) uint64 {
	hi, lo := bits.Mul64(value, rateBps)
	fee, _ := bits.Div64(hi, lo, feeDenominatorBps)
	return fee
}

// WithdrawalKey flattens the (root, recipient, releaseTime) triple into one
// map key so the claimed check-and-set is a single atomic unit.
func WithdrawalKey(root chain.Digest, recipient chain.Address, releaseTime uint64) string {
	return fmt.Sprintf("%s|%s|%d", root.Hex(), recipient.Hex(), releaseTime)
}
