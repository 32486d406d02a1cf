package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"silent/internal/domain"
	"silent/internal/services/identity"
	"silent/internal/services/prekey"
	"silent/internal/services/session"
	"silent/internal/store"
)

const pass = "Tr0ub4dor&3-horse"

// directory is an in-memory KeyDirectory that hands out one one-time pre-key
// per fetch, like the relay does.
type directory struct {
	mu      sync.Mutex
	bundles map[domain.Username]domain.PreKeyBundle
}

func newDirectory() *directory {
	return &directory{bundles: make(map[domain.Username]domain.PreKeyBundle)}
}

func (d *directory) PublishBundle(_ context.Context, b domain.PreKeyBundle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bundles[b.Username] = b
	return nil
}

func (d *directory) FetchBundle(_ context.Context, user domain.Username) (domain.PreKeyBundle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.bundles[user]
	if !ok {
		return domain.PreKeyBundle{}, fmt.Errorf("no bundle for %s", user)
	}
	if len(b.OneTimePreKeys) > 0 {
		stored := b
		stored.OneTimePreKeys = append([]domain.OneTimePreKeyPublic(nil), b.OneTimePreKeys[1:]...)
		d.bundles[user] = stored
		b.OneTimePreKeys = []domain.OneTimePreKeyPublic{b.OneTimePreKeys[0]}
	}
	return b, nil
}

func (d *directory) ConsumeOneTimePreKey(_ context.Context, user domain.Username, id domain.OneTimePreKeyID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.bundles[user]
	kept := b.OneTimePreKeys[:0:0]
	for _, k := range b.OneTimePreKeys {
		if k.ID != id {
			kept = append(kept, k)
		}
	}
	b.OneTimePreKeys = kept
	d.bundles[user] = b
	return nil
}

type party struct {
	name    domain.Username
	home    string
	dir     *directory
	prekeys *store.PreKeyFileStore
	states  *store.RatchetStateDB
	svc     *session.Service
}

func newParty(t *testing.T, name domain.Username, dir *directory) *party {
	t.Helper()
	p := &party{name: name, home: t.TempDir(), dir: dir}

	ids := store.NewIdentityFileStore(p.home)
	if _, _, err := identity.New(ids).GenerateIdentity(pass); err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	p.prekeys = store.NewPreKeyFileStore(p.home)
	pks := prekey.New(ids, p.prekeys, store.NewBundleFileStore(p.home))
	if _, _, err := pks.GenerateAndStorePreKeys(pass, 3); err != nil {
		t.Fatalf("generate pre-keys: %v", err)
	}
	b, err := pks.LoadPreKeyBundle(pass, name)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	if err := dir.PublishBundle(context.Background(), b); err != nil {
		t.Fatalf("publish: %v", err)
	}
	p.open(t)
	return p
}

// open (re)creates the service over the party's home directory.
func (p *party) open(t *testing.T) {
	t.Helper()
	states, err := store.OpenRatchetStateDB(p.home)
	if err != nil {
		t.Fatalf("open state db: %v", err)
	}
	t.Cleanup(func() { _ = states.Close() })
	p.states = states
	p.svc = session.New(
		store.NewIdentityFileStore(p.home),
		p.prekeys,
		store.NewSessionFileStore(p.home),
		states,
		p.dir,
	)
}

func (p *party) restart(t *testing.T) {
	t.Helper()
	if err := p.states.Close(); err != nil {
		t.Fatalf("close state db: %v", err)
	}
	p.open(t)
}

func (p *party) seal(t *testing.T, to domain.Username, text string) domain.Envelope {
	t.Helper()
	msg, pre, err := p.svc.Encrypt(pass, to, []byte(text))
	if err != nil {
		t.Fatalf("%s encrypt: %v", p.name, err)
	}
	return domain.Envelope{From: p.name, To: to, Message: msg, PreKey: pre}
}

func (p *party) recv(t *testing.T, env domain.Envelope) string {
	t.Helper()
	pt, err := p.svc.Decrypt(pass, env)
	if err != nil {
		t.Fatalf("%s decrypt: %v", p.name, err)
	}
	return string(pt)
}

func TestSession_HandshakeAndConversation(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	dir := newDirectory()
	alice := newParty(t, "alice", dir)
	bob := newParty(t, "bob", dir)

	rec, err := alice.svc.InitiateSession(ctx, pass, "bob")
	require.NoError(err)
	require.True(rec.Pending)
	require.NotNil(rec.OneTimePreKeyID)
	opk := *rec.OneTimePreKeyID

	// The directory retired the one-time pre-key used.
	b, err := dir.FetchBundle(ctx, "bob")
	require.NoError(err)
	for _, k := range b.OneTimePreKeys {
		require.NotEqual(opk, k.ID)
	}

	env := alice.seal(t, "bob", "hi bob")
	require.NotNil(env.PreKey)
	require.Equal(rec.EphemeralKey, env.PreKey.EphemeralKey)
	require.Equal("hi bob", bob.recv(t, env))

	// Bob used up the private half.
	_, ok, err := bob.prekeys.LoadOneTimePreKey(opk)
	require.NoError(err)
	require.False(ok)

	bobRec, ok, err := bob.svc.GetSession("alice")
	require.NoError(err)
	require.True(ok)
	require.False(bobRec.Pending)
	require.Equal(rec.InitiatorKey, bobRec.PeerIdentityKey)

	peers, err := bob.svc.Peers()
	require.NoError(err)
	require.Equal([]domain.Username{"alice"}, peers)

	reply := bob.seal(t, "alice", "hi alice")
	require.Nil(reply.PreKey)
	require.Equal("hi alice", alice.recv(t, reply))

	rec, _, err = alice.svc.GetSession("bob")
	require.NoError(err)
	require.False(rec.Pending)
	require.Nil(alice.seal(t, "bob", "no more handshake").PreKey)

	for i := 0; i < 12; i++ {
		text := fmt.Sprintf("ping %d", i)
		require.Equal(text, bob.recv(t, alice.seal(t, "bob", text)))
		text = fmt.Sprintf("pong %d", i)
		require.Equal(text, alice.recv(t, bob.seal(t, "alice", text)))
	}
}

func TestSession_FirstEnvelopeLost(t *testing.T) {
	require := require.New(t)
	dir := newDirectory()
	alice := newParty(t, "alice", dir)
	bob := newParty(t, "bob", dir)

	_, err := alice.svc.InitiateSession(context.Background(), pass, "bob")
	require.NoError(err)

	first := alice.seal(t, "bob", "one")
	second := alice.seal(t, "bob", "two")
	require.NotNil(second.PreKey)

	require.Equal("two", bob.recv(t, second))
	require.Equal("one", bob.recv(t, first))
}

func TestSession_NoSession(t *testing.T) {
	dir := newDirectory()
	alice := newParty(t, "alice", dir)
	bob := newParty(t, "bob", dir)

	_, _, err := alice.svc.Encrypt(pass, "bob", []byte("x"))
	require.ErrorIs(t, err, session.ErrNoSession)

	_, err = alice.svc.InitiateSession(context.Background(), pass, "bob")
	require.NoError(t, err)
	env := alice.seal(t, "bob", "x")
	env.PreKey = nil
	_, err = bob.svc.Decrypt(pass, env)
	require.ErrorIs(t, err, session.ErrNoSession)
}

func TestSession_ReplayRejected(t *testing.T) {
	dir := newDirectory()
	alice := newParty(t, "alice", dir)
	bob := newParty(t, "bob", dir)

	_, err := alice.svc.InitiateSession(context.Background(), pass, "bob")
	require.NoError(t, err)
	env := alice.seal(t, "bob", "once")
	require.Equal(t, "once", bob.recv(t, env))

	_, err = bob.svc.Decrypt(pass, env)
	require.ErrorIs(t, err, domain.ErrOutOfOrder)
}

func TestSession_IdentityChangeRejected(t *testing.T) {
	require := require.New(t)
	dir := newDirectory()
	alice := newParty(t, "alice", dir)
	bob := newParty(t, "bob", dir)
	mallory := newParty(t, "mallory", dir)

	_, err := alice.svc.InitiateSession(context.Background(), pass, "bob")
	require.NoError(err)
	require.Equal("hello", bob.recv(t, alice.seal(t, "bob", "hello")))

	_, err = mallory.svc.InitiateSession(context.Background(), pass, "bob")
	require.NoError(err)
	forged := mallory.seal(t, "bob", "it's alice, honest")
	forged.From = "alice"

	_, err = bob.svc.Decrypt(pass, forged)
	require.ErrorIs(err, domain.ErrAuthentication)
	require.Contains(err.Error(), "identity key")

	// The real session is untouched.
	require.Equal("still here", bob.recv(t, alice.seal(t, "bob", "still here")))
}

func TestSession_Reinitiate(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	dir := newDirectory()
	alice := newParty(t, "alice", dir)
	bob := newParty(t, "bob", dir)

	_, err := alice.svc.InitiateSession(ctx, pass, "bob")
	require.NoError(err)
	require.Equal("a", bob.recv(t, alice.seal(t, "bob", "a")))
	require.Equal("b", alice.recv(t, bob.seal(t, "alice", "b")))

	// Alice lost her state and starts over.
	require.NoError(alice.svc.CloseSession("bob"))
	_, _, err = alice.svc.Encrypt(pass, "bob", []byte("x"))
	require.ErrorIs(err, session.ErrNoSession)

	rec, err := alice.svc.InitiateSession(ctx, pass, "bob")
	require.NoError(err)
	require.Equal("fresh start", bob.recv(t, alice.seal(t, "bob", "fresh start")))

	bobRec, _, err := bob.svc.GetSession("alice")
	require.NoError(err)
	require.Equal(rec.EphemeralKey, bobRec.EphemeralKey)

	require.Equal("welcome back", alice.recv(t, bob.seal(t, "alice", "welcome back")))
}

func TestSession_OldHandshakeNotReplayable(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	dir := newDirectory()
	alice := newParty(t, "alice", dir)
	bob := newParty(t, "bob", dir)

	// With no one-time pre-keys left, nothing in X3DH itself stops a reused
	// handshake.
	for i := 0; i < 3; i++ {
		_, err := dir.FetchBundle(ctx, "bob")
		require.NoError(err)
	}

	first, err := alice.svc.InitiateSession(ctx, pass, "bob")
	require.NoError(err)
	require.Nil(first.OneTimePreKeyID)
	old := alice.seal(t, "bob", "first handshake")
	require.Equal("first handshake", bob.recv(t, old))

	require.NoError(alice.svc.CloseSession("bob"))
	_, err = alice.svc.InitiateSession(ctx, pass, "bob")
	require.NoError(err)
	require.Equal("second handshake", bob.recv(t, alice.seal(t, "bob", "second handshake")))

	_, err = bob.svc.Decrypt(pass, old)
	require.ErrorIs(err, domain.ErrKeyExchange)

	// The live session is untouched.
	require.Equal("still second", bob.recv(t, alice.seal(t, "bob", "still second")))
	require.Equal("ack", alice.recv(t, bob.seal(t, "alice", "ack")))

	// Closing the session does not make the old handshake acceptable again.
	require.NoError(bob.svc.CloseSession("alice"))
	_, err = bob.svc.Decrypt(pass, old)
	require.ErrorIs(err, domain.ErrKeyExchange)
	_, ok, err := bob.svc.GetSession("alice")
	require.NoError(err)
	require.False(ok)
	peers, err := bob.svc.Peers()
	require.NoError(err)
	require.Empty(peers)
}

func TestSession_SurvivesRestart(t *testing.T) {
	require := require.New(t)
	dir := newDirectory()
	alice := newParty(t, "alice", dir)
	bob := newParty(t, "bob", dir)

	_, err := alice.svc.InitiateSession(context.Background(), pass, "bob")
	require.NoError(err)
	pending := alice.seal(t, "bob", "before")
	require.Equal("before", bob.recv(t, pending))

	alice.restart(t)
	bob.restart(t)

	require.Equal("after", bob.recv(t, alice.seal(t, "bob", "after")))
	require.Equal("reply", alice.recv(t, bob.seal(t, "alice", "reply")))
}

func TestSession_WrongPassphrase(t *testing.T) {
	dir := newDirectory()
	alice := newParty(t, "alice", dir)
	newParty(t, "bob", dir)

	_, err := alice.svc.InitiateSession(context.Background(), pass, "bob")
	require.NoError(t, err)
	_, _, err = alice.svc.Encrypt("not-the-passphrase", "bob", []byte("x"))
	require.ErrorIs(t, err, store.ErrWrongPassphrase)
	require.False(t, errors.Is(err, domain.ErrAuthentication))
}

func TestSession_ConcurrentEncryptSerialised(t *testing.T) {
	dir := newDirectory()
	alice := newParty(t, "alice", dir)
	newParty(t, "bob", dir)

	_, err := alice.svc.InitiateSession(context.Background(), pass, "bob")
	require.NoError(t, err)

	const n = 16
	headers := make([]domain.RatchetHeader, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			msg, _, err := alice.svc.Encrypt(pass, "bob", []byte("x"))
			headers[i] = msg.Header
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[domain.RatchetHeader]bool, n)
	for _, h := range headers {
		require.False(t, seen[h], "duplicate header %+v", h)
		seen[h] = true
	}
}
