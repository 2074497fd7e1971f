package domain

import "errors"

var (
	// ErrAlreadyInCall means the user is a participant of another live call.
	ErrAlreadyInCall = errors.New("user already in a call")
	// ErrNotFound means no session exists for the callId.
	ErrNotFound = errors.New("call not found")
	// ErrCallEnded means the session reached its terminal state.
	ErrCallEnded = errors.New("call has ended")
	// ErrUnauthorized means sender or target is not a participant of the call.
	// Envelopes failing this check are dropped and logged, never surfaced.
	ErrUnauthorized = errors.New("not a call participant")
	// ErrRoomFull means the call reached the configured mesh size limit.
	ErrRoomFull = errors.New("call is full")
)
