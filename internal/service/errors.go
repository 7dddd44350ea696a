package service

import "errors"

// Error kinds surfaced by the replay/export operations. Handlers map these to
// HTTP statuses; everything else is wrapped context.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrNoFrames     = errors.New("no frames")
	ErrSinkCreate   = errors.New("sink creation failed")
	ErrSinkStart    = errors.New("sink start failed")
)
