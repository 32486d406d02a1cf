package ratchet

import (
	"crypto/rand"
	"fmt"
	"io"

	"silent/internal/crypto"
	"silent/internal/domain"
	"silent/internal/util/memzero"
)

// RekeyInterval is the number of messages (sent or received) after which
// the next Encrypt performs a DH ratchet step.
const RekeyInterval = 5

// State is one contact's ratchet. It is not safe for concurrent use; callers
// serialise Encrypt and Decrypt per contact.
type State struct {
	RootKey           []byte
	SendingChainKey   []byte
	ReceivingChainKey []byte

	LocalDH  domain.X25519KeyPair
	RemoteDH *domain.X25519Public // nil until the first message arrives

	SendingMessageNumber   uint32
	ReceivingMessageNumber uint32
	MessagesSinceReset     uint32

	IsInitiator bool
	Skipped     *SkippedKeyCache
}

// NewInitiator creates the initiator's state from the X3DH outputs. It picks
// a fresh ratchet key pair and steps once against the responder's signed
// pre-key, which the responder mirrors on its first Decrypt.
func NewInitiator(rng io.Reader, sharedSecret, initialChainKey []byte, peerSignedPreKey domain.X25519Public) (*State, error) {
	if rng == nil {
		rng = rand.Reader
	}
	if err := checkKey("shared secret", sharedSecret); err != nil {
		return nil, err
	}
	if err := checkKey("initial chain key", initialChainKey); err != nil {
		return nil, err
	}
	local, err := crypto.GenerateX25519KeyPair(rng)
	if err != nil {
		return nil, fmt.Errorf("ratchet key: %w", err)
	}
	remote := peerSignedPreKey
	st := &State{
		RootKey:           clone(sharedSecret),
		SendingChainKey:   clone(initialChainKey),
		ReceivingChainKey: clone(initialChainKey),
		LocalDH:           local,
		RemoteDH:          &remote,
		IsInitiator:       true,
		Skipped:           NewSkippedKeyCache(),
	}
	if err := st.dhRatchetStep(); err != nil {
		return nil, err
	}
	return st, nil
}

// NewResponder creates the responder's state from the X3DH outputs. The
// signed pre-key pair the initiator targeted is the first local ratchet key.
func NewResponder(sharedSecret, initialChainKey []byte, signedPreKey domain.X25519KeyPair) (*State, error) {
	if err := checkKey("shared secret", sharedSecret); err != nil {
		return nil, err
	}
	if err := checkKey("initial chain key", initialChainKey); err != nil {
		return nil, err
	}
	return &State{
		RootKey:           clone(sharedSecret),
		SendingChainKey:   clone(initialChainKey),
		ReceivingChainKey: clone(initialChainKey),
		LocalDH:           signedPreKey,
		Skipped:           NewSkippedKeyCache(),
	}, nil
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	cp := *s
	cp.RootKey = clone(s.RootKey)
	cp.SendingChainKey = clone(s.SendingChainKey)
	cp.ReceivingChainKey = clone(s.ReceivingChainKey)
	if s.RemoteDH != nil {
		r := *s.RemoteDH
		cp.RemoteDH = &r
	}
	if s.Skipped != nil {
		cp.Skipped = s.Skipped.Clone()
	} else {
		cp.Skipped = NewSkippedKeyCache()
	}
	return &cp
}

// Wipe zeroes all key material held by s.
func (s *State) Wipe() {
	memzero.Zero(s.RootKey)
	memzero.Zero(s.SendingChainKey)
	memzero.Zero(s.ReceivingChainKey)
	memzero.Zero(s.LocalDH.Private[:])
	if s.Skipped != nil {
		s.Skipped.Wipe()
	}
}

func checkKey(name string, k []byte) error {
	if len(k) != 32 {
		return fmt.Errorf("%w: %s: want 32 bytes, got %d", domain.ErrValidation, name, len(k))
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
