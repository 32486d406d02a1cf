// Package crypto exposes the minimal primitives used by silent.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie-Hellman (GenerateX25519,
//     GenerateX25519From, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519, VerifySignedPreKey)
//   - An expandable-output KDF built by iterating SHA-512 (KDF, KDFMessage,
//     KDFRatchet, X3DHSecret, InitialChainKey)
//   - Secret-box sealing with 24-byte nonces (Seal, Open)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Key types are the fixed-size arrays defined in internal/domain. Callers should
// treat returned secrets as sensitive and wipe them with memzero.Zero when
// practical.
package crypto
