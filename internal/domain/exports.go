package domain

import (
	interfaces "silent/internal/domain/interfaces"
	types "silent/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username            = types.Username
	Account             = types.Account
	Fingerprint         = types.Fingerprint
	SignedPreKeyID      = types.SignedPreKeyID
	OneTimePreKeyID     = types.OneTimePreKeyID
	Identity            = types.Identity
	SignedPreKey        = types.SignedPreKey
	OneTimePreKeyPair   = types.OneTimePreKeyPair
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	PreKeyBundle        = types.PreKeyBundle
	PreKeyMessage       = types.PreKeyMessage
	Envelope            = types.Envelope
	EncryptedMessage    = types.EncryptedMessage
	DecryptedMessage    = types.DecryptedMessage
	RatchetHeader       = types.RatchetHeader
	Session             = types.Session
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	X25519KeyPair       = types.X25519KeyPair
	Ed25519Public       = types.Ed25519Public
	Ed25519Private      = types.Ed25519Private
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService   = interfaces.IdentityService
	PreKeyService     = interfaces.PreKeyService
	SessionService    = interfaces.SessionService
	MessageService    = interfaces.MessageService
	KeyDirectory      = interfaces.KeyDirectory
	TransportChannel  = interfaces.TransportChannel
	RelayClient       = interfaces.RelayClient
	MessageHandler    = interfaces.MessageHandler
	IdentityStore     = interfaces.IdentityStore
	PreKeyStore       = interfaces.PreKeyStore
	PreKeyBundleStore = interfaces.PreKeyBundleStore
	SessionStore      = interfaces.SessionStore
	SecureKeyStore    = interfaces.SecureKeyStore
	AccountStore      = interfaces.AccountStore
)

// Error classes re-exported for callers matching with errors.Is.
var (
	ErrValidation     = types.ErrValidation
	ErrAuthentication = types.ErrAuthentication
	ErrKeyExchange    = types.ErrKeyExchange
	ErrTooManySkipped = types.ErrTooManySkipped
	ErrOutOfOrder     = types.ErrOutOfOrder
	ErrSessionCorrupt = types.ErrSessionCorrupt
)

// NonceSize is the size of the per-message AEAD nonce.
const NonceSize = types.NonceSize

// ParseX25519Public validates and copies a 32-byte public key.
func ParseX25519Public(b []byte) (X25519Public, error) { return types.ParseX25519Public(b) }

// ParseEd25519Public validates and copies a 32-byte signing key.
func ParseEd25519Public(b []byte) (Ed25519Public, error) { return types.ParseEd25519Public(b) }
