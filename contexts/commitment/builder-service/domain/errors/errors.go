package errors

import "errors"

var (
	ErrEmptyRecipientList  = errors.New("recipient list is empty")
	ErrInvalidRecipient    = errors.New("recipient entry is malformed")
	ErrDuplicateCommitment = errors.New("commitment artifact already exists for root")
	ErrArtifactNotFound    = errors.New("commitment artifact not found")
)
