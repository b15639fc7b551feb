package domain

import (
	"crypto/subtle"
	"errors"
)

// ErrUnauthorized is returned when the caller token does not match the configured secret.
var ErrUnauthorized = errors.New("unauthorized")

// Authorize lets a request through only if a secret is configured and the
// supplied token equals it exactly. It performs no I/O.
func Authorize(token, secret string) error {
	if secret == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
