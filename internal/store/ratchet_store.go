package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"silent/internal/domain"
	"silent/internal/util/memzero"
)

const (
	ratchetDBFilename = "sessions.db"

	sessionsBucket   = "sessions"
	handshakesBucket = "handshakes"
	metaBucket       = "meta"
	saltKey          = "salt"
)

// RatchetStateDB keeps each contact's encoded ratchet state in a bbolt
// database. Values are sealed with XChaCha20-Poly1305 under a key derived
// from the passphrase and a per-database salt; the peer name is bound as
// associated data so blobs cannot be swapped between contacts.
//
// The handshakes bucket holds one sub-bucket per peer listing the ephemeral
// keys of every handshake accepted from that peer. It outlives DeleteState so
// a closed session cannot be revived by replaying its first envelope.
//
// SaveState returns only after bbolt has committed (and fsynced) the write.
type RatchetStateDB struct {
	db     *bolt.DB
	salt   []byte
	params scryptParams

	mu   sync.Mutex
	keys map[[sha256.Size]byte][]byte
}

// OpenRatchetStateDB opens (creating if needed) dir/sessions.db.
func OpenRatchetStateDB(dir string) (*RatchetStateDB, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, ratchetDBFilename), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", ratchetDBFilename, err)
	}
	s := &RatchetStateDB{
		db:     db,
		params: defaultScrypt,
		keys:   make(map[[sha256.Size]byte][]byte),
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(sessionsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(handshakesBucket)); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return err
		}
		if v := meta.Get([]byte(saltKey)); v != nil {
			s.salt = append([]byte(nil), v...)
			return nil
		}
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return err
		}
		s.salt = salt
		return meta.Put([]byte(saltKey), salt)
	}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close wipes cached keys and closes the database.
func (s *RatchetStateDB) Close() error {
	s.mu.Lock()
	for k, v := range s.keys {
		memzero.Zero(v)
		delete(s.keys, k)
	}
	s.mu.Unlock()
	return s.db.Close()
}

// key returns the sealing key for passphrase, deriving it once.
func (s *RatchetStateDB) key(passphrase string) ([]byte, error) {
	id := sha256.Sum256([]byte(passphrase))

	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[id]; ok {
		return k, nil
	}
	k, err := s.params.deriveKey(passphrase, s.salt)
	if err != nil {
		return nil, err
	}
	s.keys[id] = k
	return k, nil
}

// SaveState seals and stores blob for peer.
func (s *RatchetStateDB) SaveState(passphrase string, peer domain.Username, blob []byte) error {
	sealed, err := s.seal(passphrase, peer, blob)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).Put([]byte(peer), sealed)
	})
}

// AcceptHandshake stores blob as peer's state and records ephemeral as an
// accepted handshake, in one transaction.
func (s *RatchetStateDB) AcceptHandshake(passphrase string, peer domain.Username, ephemeral domain.X25519Public, blob []byte) error {
	sealed, err := s.seal(passphrase, peer, blob)
	if err != nil {
		return err
	}
	var stamp [8]byte
	binary.BigEndian.PutUint64(stamp[:], uint64(time.Now().Unix()))
	return s.db.Update(func(tx *bolt.Tx) error {
		seen, err := tx.Bucket([]byte(handshakesBucket)).CreateBucketIfNotExists([]byte(peer))
		if err != nil {
			return err
		}
		if err := seen.Put(ephemeral[:], stamp[:]); err != nil {
			return err
		}
		return tx.Bucket([]byte(sessionsBucket)).Put([]byte(peer), sealed)
	})
}

// SeenHandshake reports whether a handshake with this ephemeral key was
// already accepted from peer.
func (s *RatchetStateDB) SeenHandshake(peer domain.Username, ephemeral domain.X25519Public) (bool, error) {
	var seen bool
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(handshakesBucket)).Bucket([]byte(peer)); b != nil {
			seen = b.Get(ephemeral[:]) != nil
		}
		return nil
	})
	return seen, err
}

func (s *RatchetStateDB) seal(passphrase string, peer domain.Username, blob []byte) ([]byte, error) {
	k, err := s.key(passphrase)
	if err != nil {
		return nil, err
	}
	return sealX(k, blob, []byte(peer))
}

// LoadState returns the stored blob for peer; ok is false if none exists.
func (s *RatchetStateDB) LoadState(passphrase string, peer domain.Username) ([]byte, bool, error) {
	var sealed []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(sessionsBucket)).Get([]byte(peer)); v != nil {
			sealed = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, false, err
	}
	if sealed == nil {
		return nil, false, nil
	}
	k, err := s.key(passphrase)
	if err != nil {
		return nil, false, err
	}
	blob, err := openX(k, sealed, []byte(peer))
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

// DeleteState removes peer's state. Recorded handshakes are kept.
func (s *RatchetStateDB) DeleteState(peer domain.Username) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).Delete([]byte(peer))
	})
}

// Peers lists contacts that have stored state.
func (s *RatchetStateDB) Peers() ([]domain.Username, error) {
	var out []domain.Username
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).ForEach(func(k, _ []byte) error {
			out = append(out, domain.Username(k))
			return nil
		})
	})
	return out, err
}

// Compile-time assertion that RatchetStateDB implements domain.SecureKeyStore.
var _ domain.SecureKeyStore = (*RatchetStateDB)(nil)
