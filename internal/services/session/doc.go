// Package session is the per-contact session manager.
//
// It runs the X3DH handshake in both roles, keeps one ratchet state per
// contact in a SecureKeyStore and serialises every operation on a contact.
// The responder side bootstraps lazily from the PreKeyMessage attached to the
// first envelope it can open.
package session
