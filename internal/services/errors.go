package services

import "errors"

var (
	// ErrProfileExists is returned when creating a profile for a user who
	// already has one. One profile per user.
	ErrProfileExists = errors.New("learning profile already exists")

	// ErrInvalidEvent is returned for events that fail boundary validation.
	ErrInvalidEvent = errors.New("invalid behavior event")

	// ErrNotAuthenticated is returned when request context carries no user.
	ErrNotAuthenticated = errors.New("not authenticated")
)
