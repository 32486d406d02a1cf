package crypto

import (
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"silent/internal/domain"
	"silent/internal/util/memzero"
)

// Seal encrypts plaintext under a 32-byte message key with a fresh 24-byte
// nonce drawn from r.
func Seal(r io.Reader, messageKey, plaintext []byte) (nonce, ciphertext []byte, err error) {
	if len(messageKey) != 32 {
		return nil, nil, fmt.Errorf("%w: message key: want 32 bytes, got %d",
			domain.ErrValidation, len(messageKey))
	}
	var n [domain.NonceSize]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, nil, fmt.Errorf("nonce: %w", err)
	}
	var k [32]byte
	copy(k[:], messageKey)
	ct := secretbox.Seal(nil, plaintext, &n, &k)
	memzero.Zero(k[:])
	return n[:], ct, nil
}

// Open authenticates and decrypts ciphertext. Tag failures are
// ErrAuthentication; a malformed nonce is ErrValidation.
func Open(messageKey, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != domain.NonceSize {
		return nil, fmt.Errorf("%w: nonce: want %d bytes, got %d",
			domain.ErrValidation, domain.NonceSize, len(nonce))
	}
	if len(messageKey) != 32 {
		return nil, fmt.Errorf("%w: message key: want 32 bytes, got %d",
			domain.ErrValidation, len(messageKey))
	}
	var (
		n [domain.NonceSize]byte
		k [32]byte
	)
	copy(n[:], nonce)
	copy(k[:], messageKey)
	pt, ok := secretbox.Open(nil, ciphertext, &n, &k)
	memzero.Zero(k[:])
	if !ok {
		return nil, fmt.Errorf("%w: message tag mismatch", domain.ErrAuthentication)
	}
	if pt == nil {
		pt = []byte{}
	}
	return pt, nil
}
