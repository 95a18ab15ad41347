package service

import "errors"

var (
	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("cinerag: client is closed")

	// ErrUnknownMood indicates a mood name that is not in the mood table.
	ErrUnknownMood = errors.New("unknown mood")
)
