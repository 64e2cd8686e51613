package domain

import "errors"

var (
	// ErrSessionNotFound is returned when an event references an unknown pin.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrParticipantNotFound is returned when a name has not joined the session.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrNoActiveRound is returned for answers that arrive outside an active round.
	ErrNoActiveRound = errors.New("no active round")
	// ErrInvalidPayload indicates a malformed or incomplete event payload.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrNotInstructor is returned when a non-instructor connection drives a round.
	ErrNotInstructor = errors.New("connection is not the session instructor")
	// ErrReportNotFound indicates no report was exported for the pin.
	ErrReportNotFound = errors.New("report not found")
)
