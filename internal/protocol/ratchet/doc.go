// Package ratchet implements the Double Ratchet used after an X3DH handshake.
//
// A State keeps a root key and two message chains (send and receive). Every
// message advances its chain through a one-way KDF, so keys are forward secure.
// After RekeyInterval messages the next Encrypt generates a new ratchet key
// pair; the peer sees the new public key in the header and both sides mix the
// DH output into the root key, deriving fresh chains for both directions.
//
// Message keys for indices a message skips over are held in a bounded FIFO
// cache so that reordered messages can still be opened, including messages
// under a ratchet key that has since been superseded. A late message with no
// cached key is rejected with domain.ErrOutOfOrder.
//
// Encrypt and Decrypt are atomic: on any error the State is left as it was.
//
// Concurrency: State is NOT safe for concurrent use. Callers must serialise
// access per conversation.
package ratchet
