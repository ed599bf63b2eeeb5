package xregistry

import "errors"

var (
	ErrUnknownAdapter   = errors.New("xregistry: unknown adapter")
	ErrAlreadyShutdown  = errors.New("xregistry: registry already shut down")
	ErrNilFactory       = errors.New("xregistry: nil factory")
	ErrInitFailed       = errors.New("xregistry: adapter init failed")
	ErrUnknownHandle    = errors.New("xregistry: unknown runtime handle")
)
