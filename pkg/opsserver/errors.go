package opsserver

import "errors"

var (
	ErrStart          = errors.New("opsserver: failed to start")
	ErrShutdown       = errors.New("opsserver: failed to shutdown gracefully")
	ErrAlreadyRunning = errors.New("opsserver: already running")
)
