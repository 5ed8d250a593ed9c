package domain

import "errors"

// Error taxonomy shared by services, repositories and the HTTP layer.
// Repositories and services wrap these with fmt.Errorf("...: %w", err) so
// callers can classify with errors.Is.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrQuotaExceeded       = errors.New("quota exceeded")
	ErrPromptTooLong       = errors.New("prompt too long")
	ErrNotFound            = errors.New("not found")
	ErrOwnershipMismatch   = errors.New("ownership mismatch")
	ErrEmptyConversation   = errors.New("conversation has no messages")
	ErrNoRelevantDocuments = errors.New("no relevant documents found")
	ErrGenerationFailed    = errors.New("generation failed")
)
