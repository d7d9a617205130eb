package store

import "errors"

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrDuplicateKey      = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStatusConflict    = errors.New("record status changed concurrently")
	ErrConcurrentUpdate  = errors.New("record was updated concurrently too many times")
	ErrEmptyArtifact     = errors.New("record cannot be processed without a result artifact")
)
