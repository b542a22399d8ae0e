package errors

import "errors"

var (
	ErrInvalidInput        = errors.New("vault input is invalid")
	ErrInvalidFeeRate      = errors.New("fee rate must be within (0, 1000] basis points")
	ErrVaultPaused         = errors.New("vault is paused")
	ErrUnauthorized        = errors.New("caller lacks the required role")
	ErrDepositNotFound     = errors.New("no active deposit for root")
	ErrDuplicateDeposit    = errors.New("deposit already registered for root")
	ErrAlreadyClaimed      = errors.New("withdrawal already claimed")
	ErrProofInvalid        = errors.New("membership proof does not verify against root")
	ErrNotYetReleasable    = errors.New("release time has not arrived")
	ErrInsufficientBalance = errors.New("deposit balance is below the requested amount")
	ErrTransferFailed      = errors.New("value transfer failed")
	ErrStorageIO           = errors.New("vault storage operation failed")
)
