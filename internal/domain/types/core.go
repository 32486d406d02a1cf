package types

import "strconv"

// Username represents a relay-registered identity. It doubles as the contact
// id for per-contact session state.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// SignedPreKeyID uniquely identifies a signed pre-key.
type SignedPreKeyID uint32

// String returns the decimal form of the identifier.
func (id SignedPreKeyID) String() string { return strconv.FormatUint(uint64(id), 10) }

// OneTimePreKeyID uniquely identifies a one-time pre-key.
type OneTimePreKeyID uint32

// String returns the decimal form of the identifier.
func (id OneTimePreKeyID) String() string { return strconv.FormatUint(uint64(id), 10) }
