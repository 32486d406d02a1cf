package interfaces

import domaintypes "silent/internal/domain/types"

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// PreKeyStore manages signed and one-time pre-keys on disk.
type PreKeyStore interface {
	// Signed pre-key
	SaveSignedPreKey(spk domaintypes.SignedPreKey) error
	LoadSignedPreKey(id domaintypes.SignedPreKeyID) (domaintypes.SignedPreKey, bool, error)

	// One-time pre-keys
	SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error
	LoadOneTimePreKey(id domaintypes.OneTimePreKeyID) (domaintypes.OneTimePreKeyPair, bool, error)
	ConsumeOneTimePreKey(id domaintypes.OneTimePreKeyID) (domaintypes.OneTimePreKeyPair, bool, error)
	ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error)
	NextPreKeyID() (uint32, error)

	// Current signed pre-key selection
	SetCurrentSignedPreKeyID(id domaintypes.SignedPreKeyID) error
	CurrentSignedPreKeyID() (domaintypes.SignedPreKeyID, bool, error)
}

// PreKeyBundleStore caches the last bundle you registered.
type PreKeyBundleStore interface {
	SavePreKeyBundle(bundle domaintypes.PreKeyBundle) error
	LoadPreKeyBundle(username domaintypes.Username) (domaintypes.PreKeyBundle, bool, error)
}

// SessionStore persists X3DH handshake records.
type SessionStore interface {
	SaveSession(peer domaintypes.Username, session domaintypes.Session) error
	LoadSession(peer domaintypes.Username) (domaintypes.Session, bool, error)
	DeleteSession(peer domaintypes.Username) error
}

// SecureKeyStore durably keeps the encoded ratchet state of each contact.
// SaveState must not return before the write is durable.
type SecureKeyStore interface {
	SaveState(passphrase string, peer domaintypes.Username, blob []byte) error
	LoadState(passphrase string, peer domaintypes.Username) ([]byte, bool, error)
	DeleteState(peer domaintypes.Username) error
	Peers() ([]domaintypes.Username, error)

	// AcceptHandshake saves the state bootstrapped from a handshake and
	// remembers its ephemeral key; SeenHandshake reports whether an
	// ephemeral key was accepted before. Both survive DeleteState.
	AcceptHandshake(passphrase string, peer domaintypes.Username, ephemeral domaintypes.X25519Public, blob []byte) error
	SeenHandshake(peer domaintypes.Username, ephemeral domaintypes.X25519Public) (bool, error)
}
