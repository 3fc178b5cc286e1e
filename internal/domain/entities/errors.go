package entities

import "errors"

// Input errors. Rejected synchronously with a user-facing message.
var (
	ErrEmptyInput            = errors.New("no text extracted from document")
	ErrBlankQuestion         = errors.New("question must not be blank")
	ErrInsufficientDocuments = errors.New("at least two documents are required for comparison")
	ErrUnsupportedType       = errors.New("unsupported document type")
)

// Capability errors. Raised by external embedding/generation calls.
var (
	ErrGenerationTimeout = errors.New("generation timed out")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrEmbeddingFailed   = errors.New("embedding failed")
)

// ErrDuplicateDocument is returned when a document id is already attached to a session.
var ErrDuplicateDocument = errors.New("document id already present in session")

// IsInputError reports whether err should be surfaced as a caller mistake.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrBlankQuestion) ||
		errors.Is(err, ErrInsufficientDocuments) ||
		errors.Is(err, ErrUnsupportedType)
}
