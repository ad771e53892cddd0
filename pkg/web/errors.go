package web

import "errors"

var (
	ErrInvalidConfig        = errors.New("web: invalid config")
	ErrServerAlreadyStarted = errors.New("web: server already started")
)
