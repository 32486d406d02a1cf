package types

import (
	"encoding/base64"
	"fmt"
)

const (
	// X25519KeySize is the size of Curve25519 public and private keys.
	X25519KeySize = 32
	// Ed25519PublicKeySize is the size of an Ed25519 public key.
	Ed25519PublicKeySize = 32
	// Ed25519PrivateKeySize is the size of an Ed25519 private key (seed||public).
	Ed25519PrivateKeySize = 64
	// Ed25519SignatureSize is the size of an Ed25519 signature.
	Ed25519SignatureSize = 64
)

// X25519Public is a Curve25519 public key.
type X25519Public [X25519KeySize]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is unset.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// MarshalText encodes the key as standard base64.
func (p X25519Public) MarshalText() ([]byte, error) { return marshalKey(p[:]) }

// UnmarshalText decodes a base64 key, rejecting anything that is not 32 bytes.
func (p *X25519Public) UnmarshalText(text []byte) error {
	raw, err := decodeKey("x25519 public key", text)
	if err != nil {
		return err
	}
	k, err := ParseX25519Public(raw)
	if err != nil {
		return err
	}
	*p = k
	return nil
}

// X25519Private is a Curve25519 private key.
type X25519Private [X25519KeySize]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k X25519Private) MarshalText() ([]byte, error) { return marshalKey(k[:]) }

// UnmarshalText decodes a base64 key, rejecting anything that is not 32 bytes.
func (k *X25519Private) UnmarshalText(text []byte) error {
	return unmarshalKey("x25519 private key", text, k[:])
}

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [Ed25519PublicKeySize]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// MarshalText encodes the key as standard base64.
func (p Ed25519Public) MarshalText() ([]byte, error) { return marshalKey(p[:]) }

// UnmarshalText decodes a base64 key, rejecting anything that is not 32 bytes.
func (p *Ed25519Public) UnmarshalText(text []byte) error {
	raw, err := decodeKey("ed25519 public key", text)
	if err != nil {
		return err
	}
	k, err := ParseEd25519Public(raw)
	if err != nil {
		return err
	}
	*p = k
	return nil
}

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [Ed25519PrivateKeySize]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k Ed25519Private) MarshalText() ([]byte, error) { return marshalKey(k[:]) }

// UnmarshalText decodes a base64 key, rejecting anything that is not 64 bytes.
func (k *Ed25519Private) UnmarshalText(text []byte) error {
	return unmarshalKey("ed25519 private key", text, k[:])
}

// X25519KeyPair is a Curve25519 Diffie-Hellman key pair.
type X25519KeyPair struct {
	Private X25519Private `json:"priv"`
	Public  X25519Public  `json:"pub"`
}

// ParseX25519Public copies b into a public key, failing with ErrValidation
// unless b is exactly 32 bytes.
func ParseX25519Public(b []byte) (X25519Public, error) {
	var out X25519Public
	if len(b) != X25519KeySize {
		return out, fmt.Errorf("%w: x25519 public key: want %d bytes, got %d",
			ErrValidation, X25519KeySize, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ParseEd25519Public copies b into a signing public key, failing with
// ErrValidation unless b is exactly 32 bytes.
func ParseEd25519Public(b []byte) (Ed25519Public, error) {
	var out Ed25519Public
	if len(b) != Ed25519PublicKeySize {
		return out, fmt.Errorf("%w: ed25519 public key: want %d bytes, got %d",
			ErrValidation, Ed25519PublicKeySize, len(b))
	}
	copy(out[:], b)
	return out, nil
}

func marshalKey(b []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
	base64.StdEncoding.Encode(out, b)
	return out, nil
}

func decodeKey(what string, text []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(raw, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrValidation, what, err)
	}
	return raw[:n], nil
}

func unmarshalKey(what string, text, dst []byte) error {
	raw, err := decodeKey(what, text)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("%w: %s: want %d bytes, got %d", ErrValidation, what, len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}
