package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnknownRule is returned when a class is not registered.
	ErrUnknownRule = errors.New("unknown rule class")
	// ErrInvalidMode is returned for analysis modes other than full and diff.
	ErrInvalidMode = errors.New("invalid analysis mode")
	// ErrInvalidGeometry is returned for geometries the analyser cannot score.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrUnavailable is returned when a backing service is not configured.
	ErrUnavailable = errors.New("service unavailable")
)
