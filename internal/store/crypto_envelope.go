package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"silent/internal/util/memzero"
)

const (
	// The current supported version of the encrypted blob format stored on disk.
	keystoreFormatVersion = 1

	saltSize = 16
)

// ErrWrongPassphrase is returned when the passphrase is incorrect or the
// ciphertext has been modified.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

// scryptParams are the scrypt cost parameters recorded next to each blob.
type scryptParams struct {
	N, R, P int
}

// Tunables for scrypt key derivation.
var defaultScrypt = scryptParams{N: 1 << 15, R: 8, P: 1}

func (p scryptParams) deriveKey(passphrase string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, chacha20poly1305.KeySize)
}

// blob is the on-disk JSON structure holding the ciphertext and KDF parameters.
type blob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// encrypt derives a key from passphrase under a fresh salt and seals raw into
// a JSON blob. The salt doubles as associated data.
func encrypt(passphrase string, raw []byte, params scryptParams) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key, err := params.deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	ct, err := sealX(key, raw, salt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(blob{
		V:      keystoreFormatVersion,
		Salt:   salt,
		N:      params.N,
		R:      params.R,
		P:      params.P,
		Cipher: ct,
	})
}

// decrypt opens the JSON blob using a key derived from passphrase.
func decrypt(passphrase string, b []byte) ([]byte, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, err
	}
	if bl.V != keystoreFormatVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", bl.V)
	}
	key, err := scryptParams{N: bl.N, R: bl.R, P: bl.P}.deriveKey(passphrase, bl.Salt)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	return openX(key, bl.Cipher, bl.Salt)
}

// sealX encrypts with XChaCha20-Poly1305 under a random nonce, returning
// nonce||ciphertext.
func sealX(key, plaintext, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return aead.Seal(out, out, plaintext, ad), nil
}

// openX reverses sealX.
func openX(key, sealed, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrWrongPassphrase
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, ad)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
