package mapsection

import "errors"

var (
	// Collaborator errors.
	ErrNoCache        = errors.New("mapsection: no result cache configured")
	ErrNoBackend      = errors.New("mapsection: no generation backend configured")
	ErrCacheClosed    = errors.New("mapsection: result cache closed")
	ErrBackendStopped = errors.New("mapsection: generation backend stopped")
	ErrEngineClosed   = errors.New("mapsection: engine closed")

	// Not found errors.
	ErrSectionNotFound = errors.New("mapsection: section not found")
	ErrJobNotFound     = errors.New("mapsection: job not found")

	// Usage errors.
	ErrLoaderStarted    = errors.New("mapsection: loader already started")
	ErrLoaderNotStarted = errors.New("mapsection: loader not started")
	ErrInvalidBlockSize = errors.New("mapsection: subdivision block size must be positive")
	ErrInvalidViewport  = errors.New("mapsection: viewport must have a positive size")
	ErrBufferShape      = errors.New("mapsection: buffer shape mismatch")
)
