// Package x3dh implements the X3DH key-agreement used to bootstrap a Double Ratchet
// session between two parties.
//
// # Overview
//
// X3DH lets an initiator derive a shared 32-byte secret with a responder who has
// published a pre-key bundle. The bundle contains:
//   - Identity key (X25519) and signing key (Ed25519)
//   - Signed pre-key (X25519) and its Ed25519 signature
//   - Zero or one one-time pre-key (X25519)
//
// # Flows
//
// Initiator:
//  1. Verify the signed pre-key signature.
//  2. Generate an ephemeral X25519 key pair.
//  3. Compute DH values (IKa·SPKb, EKa·IKb, EKa·SPKb[, EKa·OPKb]).
//  4. SHA-512 the concatenated DH outputs and keep 32 bytes as the shared secret.
//  5. Derive the initial chain key with the "chain-key" KDF label.
//
// Responder:
//  1. Receive the PreKeyMessage (initiator IK, ephemeral EK, SPK id[, OPK id]).
//  2. Look up the SPK and, if referenced, the OPK.
//  3. Compute the mirrored DH set (SPKb·IKa, IKb·EKa, SPKb·EKa[, OPKb·EKa]).
//  4. Hash the same transcript to the identical secret and chain key.
//
// # Errors
//
// A bad signature is domain.ErrAuthentication, a wrong-length signature or an
// invalid public key is domain.ErrValidation, and a missing pre-key on the
// responder side is domain.ErrKeyExchange.
//
// A handshake without a one-time pre-key is accepted. One-time pre-keys, when
// present, must be removed from the published bundle once used.
package x3dh
