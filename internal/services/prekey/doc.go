// Package prekey manages signed pre-keys and one-time pre-keys for X3DH bootstrap.
//
// It rotates the current signed pre-key, assembles the bundle published to the
// key directory, and leaves one-time pre-key consumption to the session
// manager.
package prekey
