// Package common defines shared sentinel errors and small utilities used
// across ayudasync components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Lookup errors (vault credentials, mirror records).
	ErrNotFound           = errors.New("not found")
	ErrExpired            = errors.New("credential expired")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Persistence errors. The vault and the mutation queue swallow these and
	// degrade; the mirror store returns them to the caller.
	ErrStorageUnavailable = errors.New("local storage unavailable")

	// Transport errors.
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrReplayFailed       = errors.New("replay failed")
)
