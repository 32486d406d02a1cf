package ratchet

import (
	"crypto/rand"
	"fmt"
	"io"

	"silent/internal/crypto"
	"silent/internal/domain"
	"silent/internal/util/memzero"
)

// Encrypt seals plaintext for the peer and advances the sending chain. Once
// RekeyInterval messages have passed since the last DH step, a new local
// ratchet key is generated first.
//
// s is only modified when Encrypt succeeds.
func Encrypt(s *State, rng io.Reader, plaintext []byte) (domain.EncryptedMessage, error) {
	if rng == nil {
		rng = rand.Reader
	}
	next := s.Clone()

	if next.MessagesSinceReset >= RekeyInterval {
		kp, err := crypto.GenerateX25519KeyPair(rng)
		if err != nil {
			return domain.EncryptedMessage{}, fmt.Errorf("ratchet key: %w", err)
		}
		memzero.Zero(next.LocalDH.Private[:])
		next.LocalDH = kp
		if err := next.dhRatchetStep(); err != nil {
			return domain.EncryptedMessage{}, err
		}
		next.MessagesSinceReset = 0
	}

	if len(next.SendingChainKey) != 32 {
		return domain.EncryptedMessage{}, fmt.Errorf("%w: sending chain key missing", domain.ErrSessionCorrupt)
	}
	ck, mk := crypto.KDFMessage(next.SendingChainKey)
	memzero.Zero(next.SendingChainKey)
	next.SendingChainKey = ck

	nonce, ct, err := crypto.Seal(rng, mk, plaintext)
	memzero.Zero(mk)
	if err != nil {
		return domain.EncryptedMessage{}, err
	}

	msg := domain.EncryptedMessage{
		Header: domain.RatchetHeader{
			DHPub:        next.LocalDH.Public,
			MessageIndex: next.SendingMessageNumber,
		},
		Ciphertext: ct,
		Nonce:      nonce,
	}
	next.SendingMessageNumber++
	next.MessagesSinceReset++

	s.commit(next)
	return msg, nil
}

// Decrypt opens msg, stepping the DH ratchet when the header carries a new
// remote key and caching keys for any indices the message skips over. A key
// already cached for the exact (ratchet key, index) pair is used directly,
// without any DH step, even when that ratchet key has been superseded.
//
// s is only modified when Decrypt succeeds. A message whose index is behind
// the receiving counter and has no cached key is ErrOutOfOrder. So is a
// message under a superseded remote ratchet key with no cached key.
func Decrypt(s *State, msg domain.EncryptedMessage) ([]byte, error) {
	h := msg.Header
	if s.Skipped != nil {
		if mk, ok := s.Skipped.Peek(h.DHPub, h.MessageIndex); ok {
			pt, err := crypto.Open(mk, msg.Nonce, msg.Ciphertext)
			if err != nil {
				return nil, err
			}
			next := s.Clone()
			if used, ok := next.Skipped.Take(h.DHPub, h.MessageIndex); ok {
				memzero.Zero(used)
			}
			s.commit(next)
			return pt, nil
		}
		if s.RemoteDH != nil && h.DHPub != *s.RemoteDH && s.Skipped.HasDH(h.DHPub) {
			return nil, fmt.Errorf("%w: message %d under superseded ratchet key", domain.ErrOutOfOrder, h.MessageIndex)
		}
	}

	next := s.Clone()
	if next.RemoteDH == nil || h.DHPub != *next.RemoteDH {
		remote := h.DHPub
		next.RemoteDH = &remote
		if err := next.dhRatchetStep(); err != nil {
			return nil, err
		}
		next.MessagesSinceReset = 0
	}

	if len(next.ReceivingChainKey) != 32 {
		return nil, fmt.Errorf("%w: receiving chain key missing", domain.ErrSessionCorrupt)
	}

	switch {
	case h.MessageIndex > next.ReceivingMessageNumber:
		if gap := h.MessageIndex - next.ReceivingMessageNumber; gap > MaxSkip {
			return nil, fmt.Errorf("%w: gap of %d messages", domain.ErrTooManySkipped, gap)
		}
		for next.ReceivingMessageNumber < h.MessageIndex {
			ck, mk := crypto.KDFMessage(next.ReceivingChainKey)
			next.Skipped.Put(h.DHPub, next.ReceivingMessageNumber, mk)
			memzero.Zero(mk)
			memzero.Zero(next.ReceivingChainKey)
			next.ReceivingChainKey = ck
			next.ReceivingMessageNumber++
		}
	case h.MessageIndex < next.ReceivingMessageNumber:
		return nil, fmt.Errorf("%w: index %d, expected %d",
			domain.ErrOutOfOrder, h.MessageIndex, next.ReceivingMessageNumber)
	}

	ck, mk := crypto.KDFMessage(next.ReceivingChainKey)
	pt, err := crypto.Open(mk, msg.Nonce, msg.Ciphertext)
	memzero.Zero(mk)
	if err != nil {
		return nil, err
	}
	memzero.Zero(next.ReceivingChainKey)
	next.ReceivingChainKey = ck
	next.ReceivingMessageNumber++
	next.MessagesSinceReset++

	s.commit(next)
	return pt, nil
}

// dhRatchetStep mixes DH(local, remote) into the root key and replaces both
// chain keys. The initiator sends on the first derived chain and the
// responder on the second, so the two sides line up.
func (s *State) dhRatchetStep() error {
	if len(s.RootKey) != 32 {
		return fmt.Errorf("%w: root key missing", domain.ErrSessionCorrupt)
	}
	if s.RemoteDH == nil {
		return fmt.Errorf("%w: remote ratchet key missing", domain.ErrSessionCorrupt)
	}
	dh, err := crypto.DH(s.LocalDH.Private, *s.RemoteDH)
	if err != nil {
		return err
	}
	root, a, b := crypto.KDFRatchet(s.RootKey, dh[:])
	memzero.Zero(dh[:])

	memzero.Zero(s.RootKey)
	memzero.Zero(s.SendingChainKey)
	memzero.Zero(s.ReceivingChainKey)

	s.RootKey = root
	if s.IsInitiator {
		s.SendingChainKey, s.ReceivingChainKey = a, b
	} else {
		s.SendingChainKey, s.ReceivingChainKey = b, a
	}
	s.SendingMessageNumber = 0
	s.ReceivingMessageNumber = 0
	return nil
}

// commit replaces s with next and wipes the superseded key material.
func (s *State) commit(next *State) {
	s.Wipe()
	*s = *next
}
