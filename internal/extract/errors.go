package extract

import "errors"

// Stable error codes reported on the event stream. Capability and credential
// problems abort the remaining batch; a plain failure is per-document.
const (
	CodeCapabilityMissing  = "CAPABILITY_MISSING"
	CodeCredentialsMissing = "MISSING_CREDENTIALS"
	CodeFailure            = "OCR_FAILURE"
)

var (
	// ErrCapabilityMissing means no analyzer is wired at all.
	ErrCapabilityMissing = errors.New("document analysis capability not configured")
	// ErrCredentialsMissing means the analyzer exists but has no usable credentials.
	ErrCredentialsMissing = errors.New("document analysis credentials not set")
)

// CodeFor maps an analysis error to its stream code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrCapabilityMissing):
		return CodeCapabilityMissing
	case errors.Is(err, ErrCredentialsMissing):
		return CodeCredentialsMissing
	default:
		return CodeFailure
	}
}

// Fatal reports whether err should stop the remaining documents in a batch.
func Fatal(err error) bool {
	return errors.Is(err, ErrCapabilityMissing) || errors.Is(err, ErrCredentialsMissing)
}
