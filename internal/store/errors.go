package store

import "errors"

var (
	// ErrSessionNotFound indicates the session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadyFinished indicates a second terminal transition was attempted.
	ErrAlreadyFinished = errors.New("session already finished")
	// ErrSessionFinished indicates a progress write against a terminal session.
	ErrSessionFinished = errors.New("session is not running")
	// ErrSnapshotNotFound indicates no snapshot row exists for the source.
	ErrSnapshotNotFound = errors.New("activity snapshot not found")
)
