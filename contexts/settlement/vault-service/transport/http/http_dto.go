package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateDepositRequest struct {
	Root          string `json:"root"`
	Depositor     string `json:"depositor"`
	Value         uint64 `json:"value"`
	DeclaredTotal uint64 `json:"declared_total,omitempty"`
}

type DepositResponse struct {
	Root            string `json:"root"`
	Depositor       string `json:"depositor"`
	RemainingAmount uint64 `json:"remaining_amount"`
}

type EligibilityRequest struct {
	Root        string   `json:"root"`
	Recipient   string   `json:"recipient"`
	Amount      uint64   `json:"amount"`
	ReleaseTime uint64   `json:"release_time"`
	Proof       []string `json:"proof"`
}

type EligibilityResponse struct {
	Eligible bool `json:"eligible"`
}

type ExecuteWithdrawalRequest struct {
	Root        string   `json:"root"`
	Recipient   string   `json:"recipient"`
	Amount      uint64   `json:"amount"`
	ReleaseTime uint64   `json:"release_time"`
	Proof       []string `json:"proof"`
}

type HasWithdrawnResponse struct {
	Root        string `json:"root"`
	Recipient   string `json:"recipient"`
	ReleaseTime uint64 `json:"release_time"`
	Withdrawn   bool   `json:"withdrawn"`
}

type SetFeeRateRequest struct {
	RateBps uint64 `json:"rate_bps"`
}

type SetFeeRecipientRequest struct {
	Recipient string `json:"recipient"`
}

type SetPausedRequest struct {
	Paused bool `json:"paused"`
}

type ConfigResponse struct {
	FeeRateBps   uint64 `json:"fee_rate_bps"`
	FeeRecipient string `json:"fee_recipient"`
	Paused       bool   `json:"paused"`
}

type RoleRequest struct {
	Principal string `json:"principal"`
	Role      string `json:"role"`
}
