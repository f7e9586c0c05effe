package core

import (
	"github.com/pkg/errors"
)

// Task-level failures never propagate past the dispatcher; only configuration
// errors abort a whole run.
var (
	// ErrMetadataNotFound indicates the manifest holds zero or more than one
	// entry for a requested file name.
	ErrMetadataNotFound = errors.New("metadata not found in manifest")

	// ErrFileNotFound indicates no candidate path resolved after all
	// discovery phases were exhausted.
	ErrFileNotFound = errors.New("file not found in any search location")

	// ErrSamplerUnavailable indicates progress introspection is not supported
	// in this environment. It is advisory; transfers proceed regardless.
	ErrSamplerUnavailable = errors.New("offset introspection unavailable")
)
