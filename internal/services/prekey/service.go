package prekey

import (
	"errors"
	"time"

	"silent/internal/crypto"
	"silent/internal/domain"
)

// ErrNoSignedPreKey is returned when building a bundle before any signed
// pre-key was generated.
var ErrNoSignedPreKey = errors.New("no signed pre-key available; run init first")

// Service manages pre-key pairs and builds the public bundle.
type Service struct {
	ids domain.IdentityStore
	ps  domain.PreKeyStore
	bs  domain.PreKeyBundleStore
	now func() time.Time
}

// New returns a pre-key service.
func New(ids domain.IdentityStore, ps domain.PreKeyStore, bs domain.PreKeyBundleStore) *Service {
	return &Service{ids: ids, ps: ps, bs: bs, now: time.Now}
}

// GenerateAndStorePreKeys creates a signed pre-key, signed with the identity's
// Ed25519 key, and count one-time pre-keys. The new signed pre-key becomes
// current. Older signed pre-keys stay on disk so in-flight handshakes that
// reference them still complete.
func (s *Service) GenerateAndStorePreKeys(passphrase string, count int) (domain.X25519Public, []domain.X25519Public, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.X25519Public{}, nil, err
	}

	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.X25519Public{}, nil, err
	}
	spkID, err := s.ps.NextPreKeyID()
	if err != nil {
		return domain.X25519Public{}, nil, err
	}
	spk := domain.SignedPreKey{
		ID:        domain.SignedPreKeyID(spkID),
		Priv:      spkPriv,
		Pub:       spkPub,
		Signature: crypto.SignEd25519(id.EdPriv, spkPub[:]),
		CreatedAt: s.now().Unix(),
	}
	if err := s.ps.SaveSignedPreKey(spk); err != nil {
		return domain.X25519Public{}, nil, err
	}
	if err := s.ps.SetCurrentSignedPreKeyID(spk.ID); err != nil {
		return domain.X25519Public{}, nil, err
	}

	pairs := make([]domain.OneTimePreKeyPair, 0, count)
	publics := make([]domain.X25519Public, 0, count)
	for i := 0; i < count; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return domain.X25519Public{}, nil, err
		}
		n, err := s.ps.NextPreKeyID()
		if err != nil {
			return domain.X25519Public{}, nil, err
		}
		pairs = append(pairs, domain.OneTimePreKeyPair{ID: domain.OneTimePreKeyID(n), Priv: priv, Pub: pub})
		publics = append(publics, pub)
	}
	if err := s.ps.SaveOneTimePreKeys(pairs); err != nil {
		return domain.X25519Public{}, nil, err
	}
	return spkPub, publics, nil
}

// LoadPreKeyBundle builds the public bundle from the current signed pre-key
// and the remaining one-time pre-keys, caches it, and returns it.
func (s *Service) LoadPreKeyBundle(passphrase string, username domain.Username) (domain.PreKeyBundle, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	spkID, ok, err := s.ps.CurrentSignedPreKeyID()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, ErrNoSignedPreKey
	}
	spk, found, err := s.ps.LoadSignedPreKey(spkID)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !found {
		return domain.PreKeyBundle{}, ErrNoSignedPreKey
	}

	oneTime, err := s.ps.ListOneTimePreKeyPublics()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	b := domain.PreKeyBundle{
		Username:              username,
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        spk.ID,
		SignedPreKey:          spk.Pub,
		SignedPreKeySignature: spk.Signature,
		OneTimePreKeys:        oneTime,
	}
	if err := s.bs.SavePreKeyBundle(b); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return b, nil
}

// Compile-time assertion that Service implements domain.PreKeyService.
var _ domain.PreKeyService = (*Service)(nil)
