package session

import "errors"

// Synchronous errors of the session surface. Top-level fetch failures are
// not represented here: the worker records them on the run and they
// surface through Progress.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrRunActive      = errors.New("a download run is already in progress")
	ErrEmptyResult    = errors.New("no completed downloads to archive")
	ErrUnknownSession = errors.New("unknown session")
	ErrUnknownItem    = errors.New("unknown item")
)
