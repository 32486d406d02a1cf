package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"silent/internal/domain"
)

// GenerateX25519 returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func GenerateX25519() (priv domain.X25519Private, pub domain.X25519Public, err error) {
	return GenerateX25519From(rand.Reader)
}

// GenerateX25519From is GenerateX25519 drawing randomness from r.
func GenerateX25519From(r io.Reader) (priv domain.X25519Private, pub domain.X25519Public, err error) {
	if _, err = io.ReadFull(r, priv[:]); err != nil {
		return
	}
	clamp(&priv)
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return
	}
	copy(pub[:], pb)
	return
}

// GenerateX25519KeyPair is GenerateX25519From returning a key pair value.
func GenerateX25519KeyPair(r io.Reader) (domain.X25519KeyPair, error) {
	priv, pub, err := GenerateX25519From(r)
	if err != nil {
		return domain.X25519KeyPair{}, err
	}
	return domain.X25519KeyPair{Private: priv, Public: pub}, nil
}

// DH computes X25519 Diffie-Hellman. A low-order peer key, which would yield
// an all-zero secret, is rejected as invalid key material.
func DH(priv domain.X25519Private, pub domain.X25519Public) (out [32]byte, err error) {
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, fmt.Errorf("%w: x25519: %v", domain.ErrValidation, err)
	}
	copy(out[:], secret)
	return out, nil
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
