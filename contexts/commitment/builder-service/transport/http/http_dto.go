package http

// Builder boundary DTOs. The request shape follows the external depositor
// contract: camelCase keys, amounts in smallest units, dates in unix seconds.

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type WalletEntry struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
	Date    uint64 `json:"date"`
}

type BuildCommitmentRequest struct {
	UserAddress string        `json:"userAddress"`
	Wallets     []WalletEntry `json:"wallets"`
}

type BuildCommitmentResponse struct {
	DepositID     string `json:"depositId"`
	DepositAmount uint64 `json:"depositAmount"`
}

type RecipientProofDTO struct {
	Account     string   `json:"account"`
	Amount      uint64   `json:"amount"`
	ReleaseTime uint64   `json:"releaseTime"`
	Proof       []string `json:"proof"`
}

type ArtifactResponse struct {
	Root             string              `json:"root"`
	Proofs           []RecipientProofDTO `json:"proofs"`
	TotalGrossAmount uint64              `json:"totalGrossAmount"`
	FeeRateBps       uint64              `json:"feeRateBps"`
	CreatedAt        string              `json:"createdAt"`
}
