package store

import (
	"path/filepath"
	"strings"
	"sync"

	"silent/internal/domain"
)

const accountsFile = "accounts.json"

// AccountFileStore persists the username registered on each relay.
type AccountFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewAccountFileStore returns an AccountFileStore rooted at dir.
func NewAccountFileStore(dir string) *AccountFileStore {
	return &AccountFileStore{dir: dir}
}

func (s *AccountFileStore) load() (map[string]domain.Account, error) {
	accounts := make(map[string]domain.Account)
	if err := readJSON(filepath.Join(s.dir, accountsFile), &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// SaveAccount stores or replaces the account for account.RelayURL.
func (s *AccountFileStore) SaveAccount(account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return err
	}
	accounts[accountKey(account.RelayURL)] = account
	return writeJSON(filepath.Join(s.dir, accountsFile), accounts, 0o600)
}

// LoadAccount retrieves the account registered on relayURL.
func (s *AccountFileStore) LoadAccount(relayURL string) (domain.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return domain.Account{}, false, err
	}
	account, ok := accounts[accountKey(relayURL)]
	return account, ok, nil
}

func accountKey(relayURL string) string {
	return strings.TrimRight(relayURL, "/")
}

// Compile-time assertion that AccountFileStore implements domain.AccountStore.
var _ domain.AccountStore = (*AccountFileStore)(nil)
