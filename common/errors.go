// Package common defines sentinel errors shared across layers.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound = errors.New("not found")

	// Verification errors (recovered locally with a user-visible reply).
	ErrMalformedSignature = errors.New("malformed signature")
	ErrClaimConflict      = errors.New("address already claimed")
	ErrNotOwner           = errors.New("not the owner of this address")

	// Transport errors. A send or delete the platform refused is an
	// expected condition and is never escalated.
	ErrTransportDenied = errors.New("transport denied")
)
