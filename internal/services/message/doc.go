// Package message sends and receives encrypted messages.
//
// Encryption and decryption are delegated to the session manager; this
// package moves the resulting envelopes through a TransportChannel and
// decides which failures drop an envelope and which leave it queued.
package message
