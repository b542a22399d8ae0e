package entities

import (
	"time"

	"merkledrop/internal/shared/chain"
)

// Recipient is one requested release entry: who gets paid, the gross amount
// asked for, and the unix-seconds release time.
type Recipient struct {
	Account     chain.Address
	Amount      uint64
	ReleaseTime uint64
}

// RecipientProof binds one leaf to its sibling path. Amount is the net
// amount after fee deduction, matching what the vault will actually pay.
type RecipientProof struct {
	Account     chain.Address  `json:"account"`
	Amount      uint64         `json:"amount"`
	ReleaseTime uint64         `json:"release_time"`
	Proof       []chain.Digest `json:"proof"`
}

// Artifact is the persisted record of one built commitment, keyed by root.
// Write-once: a second build that lands on the same root is a hard conflict.
type Artifact struct {
	Root             chain.Digest     `json:"root"`
	Proofs           []RecipientProof `json:"proofs"`
	TotalGrossAmount uint64           `json:"total_gross_amount"`
	FeeRateBps       uint64           `json:"fee_rate_bps"`
	CreatedAt        time.Time        `json:"created_at"`
}
