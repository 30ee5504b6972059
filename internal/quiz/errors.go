package quiz

import "errors"

// Error taxonomy for the session core. Handlers map these onto HTTP statuses
// with errors.Is; everything else is treated as an internal error.
var (
	// ErrInvalidPhase reports a transition attempted in the wrong phase.
	ErrInvalidPhase = errors.New("invalid session phase")

	// ErrInvalidAnswer reports an answer label that does not normalize to A-D.
	ErrInvalidAnswer = errors.New("answer must be one of A, B, C or D")

	// ErrSessionNotFound reports an unknown or already-ended session key.
	ErrSessionNotFound = errors.New("quiz session not found")

	// ErrGenerationParse reports that the question source failed or returned
	// data that could not be recovered into a valid question payload.
	ErrGenerationParse = errors.New("question source returned unusable data")

	// ErrFeedbackGeneration reports a feedback source failure that occurred
	// after scoring already committed. Score, total and difficulty in the
	// accompanying result are authoritative.
	ErrFeedbackGeneration = errors.New("feedback generation failed")

	// ErrWriteConflict reports a lost optimistic-lock race on a session write.
	ErrWriteConflict = errors.New("session was modified concurrently")
)
