package store

import "errors"

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned when another account already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken is returned when another account already uses the username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrStatusChanged is returned when a compare-and-swap lost against a concurrent writer.
	ErrStatusChanged = errors.New("vps status changed concurrently")
	// ErrDuplicate is returned for other unique constraint violations.
	ErrDuplicate = errors.New("duplicate entity")
	// ErrInUse is returned when deleting an entity other rows still reference.
	ErrInUse = errors.New("entity still referenced")
)
