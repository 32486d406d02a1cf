// Package store provides on-disk persistence for the client's key material.
//
// It contains concrete implementations of the domain storage interfaces.
// Small records are JSON files written atomically (temp file, fsync, rename);
// ratchet state lives in a bbolt database so every save is a durable
// transaction. All methods are concurrency-safe via internal locking. Stored
// files live under the configured home directory.
//
// The package includes stores for:
//   - Identity keys, sealed under the passphrase (IdentityFileStore)
//   - Signed and one-time pre-keys (PreKeyFileStore)
//   - The last registered pre-key bundle (BundleFileStore)
//   - X3DH handshake records (SessionFileStore)
//   - Encrypted Double Ratchet state per contact (RatchetStateDB)
//   - The username registered on each relay (AccountFileStore)
package store
