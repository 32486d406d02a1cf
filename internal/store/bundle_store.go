package store

import (
	"path/filepath"
	"sync"

	"silent/internal/domain"
)

const bundleFile = "bundle.json"

// BundleFileStore caches the last pre-key bundle you registered.
type BundleFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewBundleFileStore returns a BundleFileStore rooted at dir.
func NewBundleFileStore(dir string) *BundleFileStore {
	return &BundleFileStore{dir: dir}
}

// SavePreKeyBundle writes the bundle to disk.
func (s *BundleFileStore) SavePreKeyBundle(b domain.PreKeyBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(filepath.Join(s.dir, bundleFile), b, 0o600)
}

// LoadPreKeyBundle returns the cached bundle if it belongs to username.
func (s *BundleFileStore) LoadPreKeyBundle(username domain.Username) (domain.PreKeyBundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b domain.PreKeyBundle
	if err := readJSON(filepath.Join(s.dir, bundleFile), &b); err != nil {
		return domain.PreKeyBundle{}, false, err
	}
	if b.Username == "" || (username != "" && b.Username != username) {
		return domain.PreKeyBundle{}, false, nil
	}
	return b, true, nil
}

// Compile-time assertion that BundleFileStore implements domain.PreKeyBundleStore.
var _ domain.PreKeyBundleStore = (*BundleFileStore)(nil)
