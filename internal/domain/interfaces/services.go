package interfaces

import (
	"context"
	"time"

	domaintypes "silent/internal/domain/types"
)

// IdentityService creates, retrieves, and inspects your identity keys.
type IdentityService interface {
	GenerateIdentity(passphrase string) (
		domaintypes.Identity,
		domaintypes.Fingerprint,
		error,
	)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// PreKeyService generates and assembles your pre-key bundles.
type PreKeyService interface {
	GenerateAndStorePreKeys(passphrase string, count int) (
		domaintypes.X25519Public,
		[]domaintypes.X25519Public,
		error,
	)
	LoadPreKeyBundle(
		passphrase string,
		username domaintypes.Username,
	) (
		domaintypes.PreKeyBundle,
		error,
	)
}

// SessionService establishes sessions and runs the per-contact ratchet.
type SessionService interface {
	InitiateSession(
		ctx context.Context,
		passphrase string,
		peer domaintypes.Username,
	) (domaintypes.Session, error)
	GetSession(peer domaintypes.Username) (domaintypes.Session, bool, error)
	Encrypt(
		passphrase string,
		peer domaintypes.Username,
		plaintext []byte,
	) (domaintypes.EncryptedMessage, *domaintypes.PreKeyMessage, error)
	Decrypt(
		passphrase string,
		envelope domaintypes.Envelope,
	) ([]byte, error)
	CloseSession(peer domaintypes.Username) error
	Peers() ([]domaintypes.Username, error)
}

// MessageService encrypts, sends, fetches and decrypts messages.
type MessageService interface {
	SendMessage(
		ctx context.Context,
		passphrase string,
		from domaintypes.Username,
		to domaintypes.Username,
		plaintext []byte,
	) error
	ReceiveMessages(
		ctx context.Context,
		passphrase string,
		me domaintypes.Username,
		limit int,
	) ([]domaintypes.DecryptedMessage, error)
	Listen(
		ctx context.Context,
		passphrase string,
		me domaintypes.Username,
		interval time.Duration,
		onMessage MessageHandler,
	) error
}
