package service

import "errors"

var (
	// ErrExpired is returned when resolving a link whose expiry has passed.
	ErrExpired = errors.New("link expired")

	// ErrInvalidAlias rejects custom aliases outside [0-9A-Za-z_-]{1,64} or
	// equal to a reserved route name.
	ErrInvalidAlias = errors.New("invalid custom alias")

	// ErrInvalidExpiry rejects expiry_minutes that is not positive or too
	// large to represent.
	ErrInvalidExpiry = errors.New("expiry_minutes out of range")
)
