package session

import "errors"

var (
	// ErrNotFound indicates no session exists for the conversation id.
	ErrNotFound = errors.New("session not found")

	// ErrBusy indicates another turn holds the conversation lock and
	// the wait timed out.
	ErrBusy = errors.New("session busy")

	// ErrInvalidID indicates a malformed conversation id.
	ErrInvalidID = errors.New("invalid conversation id")
)

// MaxIDLength bounds client-supplied conversation ids.
const MaxIDLength = 128
