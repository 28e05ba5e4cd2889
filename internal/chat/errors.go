package chat

import "errors"

var (
	// ErrInvalidInput indicates a malformed turn: an empty message or
	// one that is nothing but control characters. Rejected at the
	// boundary before any session state is touched.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates the completion collaborator did not answer
	// within the request timeout. Retried with backoff.
	ErrTimeout = errors.New("completion timed out")

	// ErrRateLimited indicates the completion collaborator rejected the
	// call for quota reasons. Retried with backoff.
	ErrRateLimited = errors.New("completion rate limited")

	// ErrUnavailable indicates a non-transient completion outage. Not
	// retried; the turn degrades to the step's canned text.
	ErrUnavailable = errors.New("completion unavailable")

	// ErrAuth indicates the completion collaborator rejected our
	// credentials. Not retried and logged at Error, since no amount of
	// waiting fixes a bad key.
	ErrAuth = errors.New("completion authentication failed")
)
