package types

import "errors"

// Failure classes shared by the handshake and ratchet layers. Callers match
// them with errors.Is; concrete errors wrap one of these with detail.
var (
	// ErrValidation marks malformed or wrong-length key or payload material.
	ErrValidation = errors.New("validation error")

	// ErrAuthentication marks a failed Ed25519 signature or AEAD tag check.
	ErrAuthentication = errors.New("authentication failed")

	// ErrKeyExchange marks required pre-key material that is absent or
	// already consumed.
	ErrKeyExchange = errors.New("key exchange failed")

	// ErrTooManySkipped marks a message whose index is too far ahead of the
	// receiving chain.
	ErrTooManySkipped = errors.New("too many skipped messages")

	// ErrOutOfOrder marks a message below the receiving counter that cannot be
	// served from the skipped-key cache.
	ErrOutOfOrder = errors.New("message out of order")

	// ErrSessionCorrupt marks a session missing a root or chain key when one is
	// required. The session must be re-established with a fresh handshake.
	ErrSessionCorrupt = errors.New("session state corrupt")
)
