package crypto

import (
	"crypto/sha512"
	"encoding/binary"

	"silent/internal/util/memzero"
)

// Domain-separation labels for the KDF.
const (
	LabelChainKey = "chain-key"
	LabelMessage  = "message-kdf"
	LabelRatchet  = "ratchet-kdf"
)

// KDF expands input into n bytes. Each SHA-512 block hashes the input, the
// label, everything produced so far and a 32-bit block counter; the result is
// truncated to n.
func KDF(input []byte, label string, n int) []byte {
	out := make([]byte, 0, n+sha512.Size)
	var ctr [4]byte
	for i := uint32(1); len(out) < n; i++ {
		h := sha512.New()
		h.Write(input)
		h.Write([]byte(label))
		h.Write(out)
		binary.BigEndian.PutUint32(ctr[:], i)
		h.Write(ctr[:])
		out = h.Sum(out)
	}
	memzero.Zero(out[n:])
	return out[:n:n]
}

// KDFMessage advances a chain key, returning the next chain key and the
// message key for the current position.
func KDFMessage(chainKey []byte) (next, messageKey []byte) {
	okm := KDF(chainKey, LabelMessage, 64)
	return okm[:32:32], okm[32:64:64]
}

// KDFRatchet mixes a DH output into the root key, returning the new root key
// and two chain keys.
func KDFRatchet(rootKey []byte, dhOut []byte) (root, a, b []byte) {
	in := make([]byte, 0, len(rootKey)+len(dhOut))
	in = append(in, rootKey...)
	in = append(in, dhOut...)
	okm := KDF(in, LabelRatchet, 96)
	memzero.Zero(in)
	return okm[:32:32], okm[32:64:64], okm[64:96:96]
}

// X3DHSecret hashes the concatenated DH outputs with SHA-512 and truncates to
// 32 bytes.
func X3DHSecret(dhConcat []byte) []byte {
	sum := sha512.Sum512(dhConcat)
	out := make([]byte, 32)
	copy(out, sum[:32])
	memzero.Zero(sum[:])
	return out
}

// InitialChainKey derives the first chain key from the X3DH shared secret.
func InitialChainKey(sharedSecret []byte) []byte {
	return KDF(sharedSecret, LabelChainKey, 32)
}
