package store

import (
	"cmp"
	"path/filepath"
	"slices"
	"sync"

	"silent/internal/domain"
)

const (
	spkPairsFile   = "spk_pairs.json"
	opkPairsFile   = "opk_pairs.json"
	prekeyMetaFile = "prekey_meta.json"
)

// PreKeyFileStore persists signed and one-time pre-key pairs to disk.
type PreKeyFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewPreKeyFileStore returns a PreKeyFileStore rooted at dir.
func NewPreKeyFileStore(dir string) *PreKeyFileStore {
	return &PreKeyFileStore{dir: dir}
}

type prekeyMeta struct {
	Current *domain.SignedPreKeyID `json:"current_signed_pre_key_id,omitempty"`
	NextID  uint32                 `json:"next_id"`
}

// SaveSignedPreKey stores a signed pre-key by id.
func (s *PreKeyFileStore) SaveSignedPreKey(spk domain.SignedPreKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, spkPairsFile)
	m := map[domain.SignedPreKeyID]domain.SignedPreKey{}
	if err := readJSON(path, &m); err != nil {
		return err
	}
	m[spk.ID] = spk
	return writeJSON(path, m, 0o600)
}

// LoadSignedPreKey retrieves a signed pre-key by id.
func (s *PreKeyFileStore) LoadSignedPreKey(id domain.SignedPreKeyID) (domain.SignedPreKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[domain.SignedPreKeyID]domain.SignedPreKey{}
	if err := readJSON(filepath.Join(s.dir, spkPairsFile), &m); err != nil {
		return domain.SignedPreKey{}, false, err
	}
	spk, ok := m[id]
	return spk, ok, nil
}

func (s *PreKeyFileStore) loadOPKs() (map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair, error) {
	m := map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair{}
	if err := readJSON(filepath.Join(s.dir, opkPairsFile), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveOneTimePreKeys merges the provided one-time pre-key pairs into the store.
func (s *PreKeyFileStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadOPKs()
	if err != nil {
		return err
	}
	for _, p := range pairs {
		m[p.ID] = p
	}
	return writeJSON(filepath.Join(s.dir, opkPairsFile), m, 0o600)
}

// LoadOneTimePreKey returns a one-time pre-key without removing it.
func (s *PreKeyFileStore) LoadOneTimePreKey(id domain.OneTimePreKeyID) (domain.OneTimePreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadOPKs()
	if err != nil {
		return domain.OneTimePreKeyPair{}, false, err
	}
	p, ok := m[id]
	return p, ok, nil
}

// ConsumeOneTimePreKey removes and returns a single one-time pre-key by id.
func (s *PreKeyFileStore) ConsumeOneTimePreKey(id domain.OneTimePreKeyID) (domain.OneTimePreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadOPKs()
	if err != nil {
		return domain.OneTimePreKeyPair{}, false, err
	}
	p, ok := m[id]
	if !ok {
		return domain.OneTimePreKeyPair{}, false, nil
	}
	delete(m, id)
	if err := writeJSON(filepath.Join(s.dir, opkPairsFile), m, 0o600); err != nil {
		return domain.OneTimePreKeyPair{}, false, err
	}
	return p, true, nil
}

// ListOneTimePreKeyPublics exposes only the public halves for bundling,
// ordered by id.
func (s *PreKeyFileStore) ListOneTimePreKeyPublics() ([]domain.OneTimePreKeyPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadOPKs()
	if err != nil {
		return nil, err
	}
	out := make([]domain.OneTimePreKeyPublic, 0, len(m))
	for id, p := range m {
		out = append(out, domain.OneTimePreKeyPublic{ID: id, Pub: p.Pub})
	}
	slices.SortFunc(out, func(a, b domain.OneTimePreKeyPublic) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// NextPreKeyID allocates a pre-key id. Ids start at 1 and are never reused.
func (s *PreKeyFileStore) NextPreKeyID() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, prekeyMetaFile)
	var meta prekeyMeta
	if err := readJSON(path, &meta); err != nil {
		return 0, err
	}
	meta.NextID++
	if err := writeJSON(path, meta, 0o600); err != nil {
		return 0, err
	}
	return meta.NextID, nil
}

// SetCurrentSignedPreKeyID records which signed pre-key id is current.
func (s *PreKeyFileStore) SetCurrentSignedPreKeyID(id domain.SignedPreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, prekeyMetaFile)
	var meta prekeyMeta
	if err := readJSON(path, &meta); err != nil {
		return err
	}
	meta.Current = &id
	return writeJSON(path, meta, 0o600)
}

// CurrentSignedPreKeyID returns the recorded current signed pre-key id.
func (s *PreKeyFileStore) CurrentSignedPreKeyID() (domain.SignedPreKeyID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta prekeyMeta
	if err := readJSON(filepath.Join(s.dir, prekeyMetaFile), &meta); err != nil {
		return 0, false, err
	}
	if meta.Current == nil {
		return 0, false, nil
	}
	return *meta.Current, true, nil
}

// Compile-time assertion that PreKeyFileStore implements domain.PreKeyStore.
var _ domain.PreKeyStore = (*PreKeyFileStore)(nil)
