package ratchet

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"silent/internal/domain"
)

const stateVersion = 1

type cborSkippedKey struct {
	DH    []byte
	Index uint32
	Key   []byte
}

// cborState is the persisted form of State.
type cborState struct {
	Version                uint8
	RootKey                []byte
	SendingChainKey        []byte
	ReceivingChainKey      []byte
	LocalPrivate           []byte
	LocalPublic            []byte
	RemotePublic           []byte
	SendingMessageNumber   uint32
	ReceivingMessageNumber uint32
	MessagesSinceReset     uint32
	IsInitiator            bool
	Skipped                []cborSkippedKey
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// MarshalBinary implements encoding.BinaryMarshaler. Skipped keys are written
// oldest first so that eviction order survives a reload.
func (s *State) MarshalBinary() ([]byte, error) {
	tmp := cborState{
		Version:                stateVersion,
		RootKey:                s.RootKey,
		SendingChainKey:        s.SendingChainKey,
		ReceivingChainKey:      s.ReceivingChainKey,
		LocalPrivate:           s.LocalDH.Private[:],
		LocalPublic:            s.LocalDH.Public[:],
		SendingMessageNumber:   s.SendingMessageNumber,
		ReceivingMessageNumber: s.ReceivingMessageNumber,
		MessagesSinceReset:     s.MessagesSinceReset,
		IsInitiator:            s.IsInitiator,
	}
	if s.RemoteDH != nil {
		tmp.RemotePublic = s.RemoteDH[:]
	}
	if s.Skipped != nil {
		for _, e := range s.Skipped.Entries() {
			dh := e.DH
			tmp.Skipped = append(tmp.Skipped, cborSkippedKey{DH: dh[:], Index: e.Index, Key: e.MessageKey})
		}
	}
	return encMode.Marshal(tmp)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Anything that does
// not decode to a well-formed state is ErrSessionCorrupt.
func (s *State) UnmarshalBinary(data []byte) error {
	var tmp cborState
	if err := cbor.Unmarshal(data, &tmp); err != nil {
		return fmt.Errorf("%w: decode: %v", domain.ErrSessionCorrupt, err)
	}
	if tmp.Version != stateVersion {
		return fmt.Errorf("%w: unknown state version %d", domain.ErrSessionCorrupt, tmp.Version)
	}
	if len(tmp.RootKey) != 32 {
		return fmt.Errorf("%w: root key", domain.ErrSessionCorrupt)
	}
	if !optionalKey(tmp.SendingChainKey) || !optionalKey(tmp.ReceivingChainKey) {
		return fmt.Errorf("%w: chain key length", domain.ErrSessionCorrupt)
	}
	if len(tmp.LocalPrivate) != 32 {
		return fmt.Errorf("%w: local ratchet key", domain.ErrSessionCorrupt)
	}
	localPub, err := domain.ParseX25519Public(tmp.LocalPublic)
	if err != nil {
		return fmt.Errorf("%w: local ratchet key: %v", domain.ErrSessionCorrupt, err)
	}
	if len(tmp.Skipped) > MaxSkip {
		return fmt.Errorf("%w: %d skipped keys", domain.ErrSessionCorrupt, len(tmp.Skipped))
	}

	st := State{
		RootKey:                tmp.RootKey,
		SendingChainKey:        tmp.SendingChainKey,
		ReceivingChainKey:      tmp.ReceivingChainKey,
		SendingMessageNumber:   tmp.SendingMessageNumber,
		ReceivingMessageNumber: tmp.ReceivingMessageNumber,
		MessagesSinceReset:     tmp.MessagesSinceReset,
		IsInitiator:            tmp.IsInitiator,
		Skipped:                NewSkippedKeyCache(),
	}
	copy(st.LocalDH.Private[:], tmp.LocalPrivate)
	st.LocalDH.Public = localPub
	if len(tmp.RemotePublic) != 0 {
		r, err := domain.ParseX25519Public(tmp.RemotePublic)
		if err != nil {
			return fmt.Errorf("%w: remote ratchet key: %v", domain.ErrSessionCorrupt, err)
		}
		st.RemoteDH = &r
	}
	for _, k := range tmp.Skipped {
		dh, err := domain.ParseX25519Public(k.DH)
		if err != nil || len(k.Key) != 32 {
			return fmt.Errorf("%w: skipped key entry", domain.ErrSessionCorrupt)
		}
		st.Skipped.Put(dh, k.Index, k.Key)
	}
	*s = st
	return nil
}

// Load decodes a persisted state.
func Load(data []byte) (*State, error) {
	s := new(State)
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return s, nil
}

func optionalKey(b []byte) bool { return len(b) == 0 || len(b) == 32 }
