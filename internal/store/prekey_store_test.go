package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"silent/internal/domain"
	"silent/internal/store"
)

func TestPreKeyStore_SignedPreKey(t *testing.T) {
	require := require.New(t)
	s := store.NewPreKeyFileStore(t.TempDir())

	_, ok, err := s.CurrentSignedPreKeyID()
	require.NoError(err)
	require.False(ok)

	spk := domain.SignedPreKey{ID: 3, Priv: domain.X25519Private{1}, Pub: domain.X25519Public{2}, Signature: []byte{9, 9}}
	require.NoError(s.SaveSignedPreKey(spk))
	require.NoError(s.SetCurrentSignedPreKeyID(spk.ID))

	cur, ok, err := s.CurrentSignedPreKeyID()
	require.NoError(err)
	require.True(ok)
	require.Equal(spk.ID, cur)

	got, ok, err := s.LoadSignedPreKey(3)
	require.NoError(err)
	require.True(ok)
	require.Equal(spk, got)

	_, ok, err = s.LoadSignedPreKey(4)
	require.NoError(err)
	require.False(ok)
}

func TestPreKeyStore_OneTimePreKeys(t *testing.T) {
	require := require.New(t)
	s := store.NewPreKeyFileStore(t.TempDir())

	require.NoError(s.SaveOneTimePreKeys([]domain.OneTimePreKeyPair{
		{ID: 12, Pub: domain.X25519Public{12}},
		{ID: 2, Pub: domain.X25519Public{2}},
		{ID: 7, Pub: domain.X25519Public{7}},
	}))

	pubs, err := s.ListOneTimePreKeyPublics()
	require.NoError(err)
	require.Equal([]domain.OneTimePreKeyPublic{
		{ID: 2, Pub: domain.X25519Public{2}},
		{ID: 7, Pub: domain.X25519Public{7}},
		{ID: 12, Pub: domain.X25519Public{12}},
	}, pubs)

	// Loading does not consume.
	_, ok, err := s.LoadOneTimePreKey(7)
	require.NoError(err)
	require.True(ok)

	p, ok, err := s.ConsumeOneTimePreKey(7)
	require.NoError(err)
	require.True(ok)
	require.Equal(domain.OneTimePreKeyID(7), p.ID)

	_, ok, err = s.ConsumeOneTimePreKey(7)
	require.NoError(err)
	require.False(ok, "one-time pre-key consumed twice")

	pubs, err = s.ListOneTimePreKeyPublics()
	require.NoError(err)
	require.Len(pubs, 2)
}

func TestPreKeyStore_NextPreKeyID(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	s := store.NewPreKeyFileStore(dir)

	for want := uint32(1); want <= 3; want++ {
		id, err := s.NextPreKeyID()
		require.NoError(err)
		require.Equal(want, id)
	}
	require.NoError(s.SetCurrentSignedPreKeyID(1))

	// Ids survive a reopen.
	id, err := store.NewPreKeyFileStore(dir).NextPreKeyID()
	require.NoError(err)
	require.Equal(uint32(4), id)
}

func TestSessionStore_SaveLoadDelete(t *testing.T) {
	require := require.New(t)
	s := store.NewSessionFileStore(t.TempDir())

	opk := domain.OneTimePreKeyID(5)
	rec := domain.Session{PeerUsername: "bob", SignedPreKeyID: 1, OneTimePreKeyID: &opk, Pending: true}
	require.NoError(s.SaveSession("bob", rec))

	got, ok, err := s.LoadSession("bob")
	require.NoError(err)
	require.True(ok)
	require.Equal(rec, got)

	require.NoError(s.DeleteSession("bob"))
	_, ok, err = s.LoadSession("bob")
	require.NoError(err)
	require.False(ok)
	require.NoError(s.DeleteSession("bob"))
}

func TestBundleStore_UsernameScoped(t *testing.T) {
	require := require.New(t)
	s := store.NewBundleFileStore(t.TempDir())

	_, ok, err := s.LoadPreKeyBundle("alice")
	require.NoError(err)
	require.False(ok)

	b := domain.PreKeyBundle{Username: "alice", SignedPreKeyID: 1, SignedPreKeySignature: make([]byte, 64)}
	require.NoError(s.SavePreKeyBundle(b))

	got, ok, err := s.LoadPreKeyBundle("alice")
	require.NoError(err)
	require.True(ok)
	require.Equal(b, got)

	_, ok, err = s.LoadPreKeyBundle("carol")
	require.NoError(err)
	require.False(ok)
}
