package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"silent/internal/domain"
	"silent/internal/store"
)

func openStateDB(t *testing.T, dir string) *store.RatchetStateDB {
	t.Helper()
	db, err := store.OpenRatchetStateDB(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRatchetStateDB_SaveLoadDelete(t *testing.T) {
	require := require.New(t)
	db := openStateDB(t, t.TempDir())

	_, ok, err := db.LoadState("pw", "bob")
	require.NoError(err)
	require.False(ok)

	require.NoError(db.SaveState("pw", "bob", []byte("state-v1")))
	require.NoError(db.SaveState("pw", "bob", []byte("state-v2")))

	got, ok, err := db.LoadState("pw", "bob")
	require.NoError(err)
	require.True(ok)
	require.Equal([]byte("state-v2"), got)

	peers, err := db.Peers()
	require.NoError(err)
	require.Equal([]domain.Username{"bob"}, peers)

	require.NoError(db.DeleteState("bob"))
	_, ok, err = db.LoadState("pw", "bob")
	require.NoError(err)
	require.False(ok)
}

func TestRatchetStateDB_WrongPassphrase(t *testing.T) {
	require := require.New(t)
	db := openStateDB(t, t.TempDir())

	require.NoError(db.SaveState("pw", "bob", []byte("secret")))
	_, _, err := db.LoadState("other", "bob")
	require.ErrorIs(err, store.ErrWrongPassphrase)
}

func TestRatchetStateDB_SurvivesReopen(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	db, err := store.OpenRatchetStateDB(dir)
	require.NoError(err)
	require.NoError(db.SaveState("pw", "carol", []byte{1, 2, 3}))
	require.NoError(db.Close())

	db = openStateDB(t, dir)
	got, ok, err := db.LoadState("pw", "carol")
	require.NoError(err)
	require.True(ok)
	require.Equal([]byte{1, 2, 3}, got)
}

func TestRatchetStateDB_Handshakes(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	db, err := store.OpenRatchetStateDB(dir)
	require.NoError(err)

	eph := domain.X25519Public{7}
	seen, err := db.SeenHandshake("bob", eph)
	require.NoError(err)
	require.False(seen)

	require.NoError(db.AcceptHandshake("pw", "bob", eph, []byte("bootstrapped")))
	got, ok, err := db.LoadState("pw", "bob")
	require.NoError(err)
	require.True(ok)
	require.Equal([]byte("bootstrapped"), got)

	// Recorded per peer, and kept when the state is deleted.
	require.NoError(db.DeleteState("bob"))
	seen, err = db.SeenHandshake("bob", eph)
	require.NoError(err)
	require.True(seen)
	seen, err = db.SeenHandshake("carol", eph)
	require.NoError(err)
	require.False(seen)

	require.NoError(db.Close())
	db = openStateDB(t, dir)
	seen, err = db.SeenHandshake("bob", eph)
	require.NoError(err)
	require.True(seen)
}
