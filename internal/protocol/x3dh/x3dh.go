package x3dh

import (
	"crypto/rand"
	"fmt"
	"io"

	"silent/internal/crypto"
	"silent/internal/domain"
	"silent/internal/util/memzero"
)

// InitiatorResult is the outcome of Initiate.
type InitiatorResult struct {
	SharedSecret    []byte
	InitialChainKey []byte

	// EphemeralKey is EK_A; it travels in the PreKeyMessage.
	EphemeralKey domain.X25519Public

	SignedPreKeyID domain.SignedPreKeyID
	// OneTimePreKeyID is nil when the bundle carried no one-time pre-key.
	OneTimePreKeyID *domain.OneTimePreKeyID

	PeerIdentityKey  domain.X25519Public
	PeerSignedPreKey domain.X25519Public
}

// ResponderResult is the outcome of Respond.
type ResponderResult struct {
	SharedSecret    []byte
	InitialChainKey []byte

	// SignedPreKey is the pair the initiator targeted; it becomes the
	// responder's first ratchet key pair.
	SignedPreKey domain.X25519KeyPair
}

// PreKeySource looks up the responder's private pre-key material. Lookups must
// not consume anything; the caller deletes a used one-time pre-key once the
// session is committed.
type PreKeySource interface {
	LoadSignedPreKey(id domain.SignedPreKeyID) (domain.SignedPreKey, bool, error)
	LoadOneTimePreKey(id domain.OneTimePreKeyID) (domain.OneTimePreKeyPair, bool, error)
}

// Initiate runs X3DH against a peer's bundle using randomness from crypto/rand.
func Initiate(local domain.Identity, bundle domain.PreKeyBundle) (InitiatorResult, error) {
	return InitiateWithRand(rand.Reader, local, bundle)
}

// InitiateWithRand runs X3DH as the initiator, drawing the ephemeral key from r.
//
// It verifies the signed pre-key signature, then derives
//
//	DH1 = DH(IK_A, SPK_B)  DH2 = DH(EK_A, IK_B)  DH3 = DH(EK_A, SPK_B)  [DH4 = DH(EK_A, OPK_B)]
//
// and hashes DH1||DH2||DH3[||DH4] to the shared secret. The first one-time
// pre-key in the bundle is used when present.
func InitiateWithRand(r io.Reader, local domain.Identity, bundle domain.PreKeyBundle) (InitiatorResult, error) {
	if err := crypto.VerifySignedPreKey(
		bundle.SigningKey,
		bundle.SignedPreKey,
		bundle.SignedPreKeySignature,
	); err != nil {
		return InitiatorResult{}, err
	}

	ephPriv, ephPub, err := crypto.GenerateX25519From(r)
	if err != nil {
		return InitiatorResult{}, fmt.Errorf("x3dh: ephemeral key: %w", err)
	}
	defer memzero.Zero(ephPriv[:])

	var opk *domain.OneTimePreKeyPublic
	if len(bundle.OneTimePreKeys) > 0 {
		opk = &bundle.OneTimePreKeys[0]
	}

	pairs := []dhPair{
		{local.XPriv, bundle.SignedPreKey}, // DH(IK_A, SPK_B)
		{ephPriv, bundle.IdentityKey},      // DH(EK_A, IK_B)
		{ephPriv, bundle.SignedPreKey},     // DH(EK_A, SPK_B)
	}
	if opk != nil {
		pairs = append(pairs, dhPair{ephPriv, opk.Pub}) // DH(EK_A, OPK_B)
	}
	secret, err := deriveSecret(pairs)
	if err != nil {
		return InitiatorResult{}, err
	}

	res := InitiatorResult{
		SharedSecret:     secret,
		InitialChainKey:  crypto.InitialChainKey(secret),
		EphemeralKey:     ephPub,
		SignedPreKeyID:   bundle.SignedPreKeyID,
		PeerIdentityKey:  bundle.IdentityKey,
		PeerSignedPreKey: bundle.SignedPreKey,
	}
	if opk != nil {
		id := opk.ID
		res.OneTimePreKeyID = &id
	}
	return res, nil
}

// Respond mirrors Initiate on the responder side:
//
//	DH1 = DH(SPK_B, IK_A)  DH2 = DH(IK_B, EK_A)  DH3 = DH(SPK_B, EK_A)  [DH4 = DH(OPK_B, EK_A)]
//
// A referenced pre-key that cannot be found is ErrKeyExchange.
func Respond(local domain.Identity, msg domain.PreKeyMessage, keys PreKeySource) (ResponderResult, error) {
	spk, ok, err := keys.LoadSignedPreKey(msg.SignedPreKeyID)
	if err != nil {
		return ResponderResult{}, err
	}
	if !ok {
		return ResponderResult{}, fmt.Errorf("%w: signed pre-key %s not found",
			domain.ErrKeyExchange, msg.SignedPreKeyID)
	}

	pairs := []dhPair{
		{spk.Priv, msg.InitiatorIdentityKey}, // DH(SPK_B, IK_A)
		{local.XPriv, msg.EphemeralKey},      // DH(IK_B, EK_A)
		{spk.Priv, msg.EphemeralKey},         // DH(SPK_B, EK_A)
	}
	if msg.OneTimePreKeyID != nil {
		opk, ok, err := keys.LoadOneTimePreKey(*msg.OneTimePreKeyID)
		if err != nil {
			return ResponderResult{}, err
		}
		if !ok {
			return ResponderResult{}, fmt.Errorf("%w: one-time pre-key %s not found or already used",
				domain.ErrKeyExchange, *msg.OneTimePreKeyID)
		}
		defer memzero.Zero(opk.Priv[:])
		pairs = append(pairs, dhPair{opk.Priv, msg.EphemeralKey}) // DH(OPK_B, EK_A)
	}
	secret, err := deriveSecret(pairs)
	if err != nil {
		return ResponderResult{}, err
	}
	return ResponderResult{
		SharedSecret:    secret,
		InitialChainKey: crypto.InitialChainKey(secret),
		SignedPreKey:    domain.X25519KeyPair{Private: spk.Priv, Public: spk.Pub},
	}, nil
}

type dhPair struct {
	priv domain.X25519Private
	pub  domain.X25519Public
}

func deriveSecret(pairs []dhPair) ([]byte, error) {
	dhConcat := make([]byte, 0, 32*len(pairs))
	defer func() { memzero.Zero(dhConcat) }()
	for i, p := range pairs {
		out, err := crypto.DH(p.priv, p.pub)
		if err != nil {
			return nil, fmt.Errorf("x3dh: DH%d: %w", i+1, err)
		}
		dhConcat = append(dhConcat, out[:]...)
		memzero.Zero(out[:])
	}
	return crypto.X3DHSecret(dhConcat), nil
}
