package press

import "errors"

// Submission failure taxonomy. Every error returned by App.SubmitPress
// wraps exactly one of these sentinels; the hub reports it only to the
// submitting client.
var (
	// ErrValidation marks malformed input, rejected before any I/O.
	ErrValidation = errors.New("invalid press submission")

	// ErrVerificationFailed marks a negative verdict from the
	// challenge oracle (or a missing token).
	ErrVerificationFailed = errors.New("verification failed")

	// ErrVerificationUnavailable marks an oracle timeout or transport
	// failure. Presses fail closed on this error.
	ErrVerificationUnavailable = errors.New("verification unavailable")

	// ErrPersistence marks a timeout or storage fault during the event
	// write or the tally upsert.
	ErrPersistence = errors.New("persistence failure")
)

// RejectionReason maps a submission error to the wire-level reason code
// surfaced to the submitting client.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "invalid_input"
	case errors.Is(err, ErrVerificationFailed):
		return "needs_verification"
	case errors.Is(err, ErrVerificationUnavailable):
		return "verification_unavailable"
	case errors.Is(err, ErrPersistence):
		return "storage_error"
	default:
		return "internal_error"
	}
}
