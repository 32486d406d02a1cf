package types

// Identity holds your long-term X25519 and Ed25519 keys. The X25519 pair is
// generated once per device and never rotated; the Ed25519 pair only signs
// signed pre-keys.
type Identity struct {
	XPub   X25519Public   `json:"xpub"`
	XPriv  X25519Private  `json:"xpriv"`
	EdPub  Ed25519Public  `json:"edpub"`
	EdPriv Ed25519Private `json:"edpriv"`
}
