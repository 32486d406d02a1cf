package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"silent/internal/domain"
)

// GenerateEd25519 returns a new Ed25519 signing key pair.
func GenerateEd25519() (priv domain.Ed25519Private, pub domain.Ed25519Public, err error) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return priv, pub, err
	}
	copy(priv[:], sk)
	copy(pub[:], pk)
	return priv, pub, nil
}

// SignEd25519 signs msg with priv and returns the signature.
func SignEd25519(priv domain.Ed25519Private, msg []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv[:]), msg)
}

// VerifyEd25519 verifies sig over msg with pub.
func VerifyEd25519(pub domain.Ed25519Public, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}

// VerifySignedPreKey checks the Ed25519 signature over a signed pre-key.
// A signature of the wrong length is ErrValidation; a bad one is
// ErrAuthentication.
func VerifySignedPreKey(signer domain.Ed25519Public, spk domain.X25519Public, sig []byte) error {
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signed pre-key signature: want %d bytes, got %d",
			domain.ErrValidation, ed25519.SignatureSize, len(sig))
	}
	if !VerifyEd25519(signer, spk.Slice(), sig) {
		return fmt.Errorf("%w: signed pre-key signature does not verify", domain.ErrAuthentication)
	}
	return nil
}
