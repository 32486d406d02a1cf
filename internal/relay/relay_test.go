package relay_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"silent/internal/crypto"
	"silent/internal/domain"
	"silent/internal/relay"
)

func newRelay(t *testing.T) (*relay.HTTP, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(relay.NewServer(nil))
	t.Cleanup(srv.Close)
	return relay.NewHTTP(srv.URL+"/", srv.Client()), srv
}

func signedBundle(t *testing.T, user domain.Username, opks int) domain.PreKeyBundle {
	t.Helper()
	_, ik, err := crypto.GenerateX25519()
	require.NoError(t, err)
	edPriv, edPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	_, spk, err := crypto.GenerateX25519()
	require.NoError(t, err)

	b := domain.PreKeyBundle{
		Username:              user,
		IdentityKey:           ik,
		SigningKey:            edPub,
		SignedPreKeyID:        1,
		SignedPreKey:          spk,
		SignedPreKeySignature: crypto.SignEd25519(edPriv, spk[:]),
	}
	for i := 0; i < opks; i++ {
		_, pub, err := crypto.GenerateX25519()
		require.NoError(t, err)
		b.OneTimePreKeys = append(b.OneTimePreKeys, domain.OneTimePreKeyPublic{
			ID:  domain.OneTimePreKeyID(i + 2),
			Pub: pub,
		})
	}
	return b
}

func TestRelay_BundleLifecycle(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	c, _ := newRelay(t)

	_, err := c.FetchBundle(ctx, "bob")
	require.ErrorIs(err, relay.ErrNotFound)

	b := signedBundle(t, "bob", 2)
	require.NoError(c.PublishBundle(ctx, b))

	got, err := c.FetchBundle(ctx, "bob")
	require.NoError(err)
	require.Equal(b.IdentityKey, got.IdentityKey)
	require.Equal(b.SignedPreKey, got.SignedPreKey)
	require.Equal(b.SignedPreKeySignature, got.SignedPreKeySignature)
	require.Len(got.OneTimePreKeys, 1)
	require.Equal(b.OneTimePreKeys[0], got.OneTimePreKeys[0])

	// Each fetch hands out a different one-time pre-key.
	got, err = c.FetchBundle(ctx, "bob")
	require.NoError(err)
	require.Len(got.OneTimePreKeys, 1)
	require.Equal(b.OneTimePreKeys[1].ID, got.OneTimePreKeys[0].ID)

	// Retiring an already handed out key is a no-op.
	require.NoError(c.ConsumeOneTimePreKey(ctx, "bob", b.OneTimePreKeys[0].ID))

	got, err = c.FetchBundle(ctx, "bob")
	require.NoError(err)
	require.Empty(got.OneTimePreKeys)
	require.Equal(b.SignedPreKey, got.SignedPreKey)
}

func TestRelay_ConcurrentFetchesGetDistinctPreKeys(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	c, _ := newRelay(t)

	const n = 8
	require.NoError(c.PublishBundle(ctx, signedBundle(t, "bob", n)))

	var (
		mu   sync.Mutex
		seen = make(map[domain.OneTimePreKeyID]bool)
	)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			got, err := c.FetchBundle(ctx, "bob")
			if err != nil {
				return err
			}
			if len(got.OneTimePreKeys) != 1 {
				return fmt.Errorf("got %d one-time pre-keys", len(got.OneTimePreKeys))
			}
			mu.Lock()
			defer mu.Unlock()
			id := got.OneTimePreKeys[0].ID
			if seen[id] {
				return fmt.Errorf("one-time pre-key %s handed out twice", id)
			}
			seen[id] = true
			return nil
		})
	}
	require.NoError(g.Wait())
	require.Len(seen, n)
}

func TestRelay_RejectsBadSignature(t *testing.T) {
	c, _ := newRelay(t)
	b := signedBundle(t, "bob", 0)
	b.SignedPreKeySignature[0] ^= 1

	err := c.PublishBundle(context.Background(), b)
	require.Error(t, err)
	require.Contains(t, err.Error(), "400")
}

func TestRelay_Mailbox(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	c, _ := newRelay(t)

	envs, err := c.FetchMessages(ctx, "bob", 0)
	require.NoError(err)
	require.Empty(envs)

	for i := 0; i < 3; i++ {
		require.NoError(c.SendMessage(ctx, domain.Envelope{
			From:    "alice",
			To:      "bob",
			Message: domain.EncryptedMessage{Ciphertext: []byte{byte(i)}},
		}))
	}

	envs, err = c.FetchMessages(ctx, "bob", 2)
	require.NoError(err)
	require.Len(envs, 2)
	require.Equal([]byte{0}, envs[0].Message.Ciphertext)
	require.Equal([]byte{1}, envs[1].Message.Ciphertext)
	require.NotEmpty(envs[0].ID)
	require.NotEqual(envs[0].ID, envs[1].ID)
	require.NotZero(envs[0].Timestamp)

	require.NoError(c.AckMessages(ctx, "bob", 2))
	envs, err = c.FetchMessages(ctx, "bob", 0)
	require.NoError(err)
	require.Len(envs, 1)
	require.Equal([]byte{2}, envs[0].Message.Ciphertext)

	// Acking past the end clears the queue.
	require.NoError(c.AckMessages(ctx, "bob", 10))
	envs, err = c.FetchMessages(ctx, "bob", 0)
	require.NoError(err)
	require.Empty(envs)
}

func TestRelay_PreKeyMessageSurvivesTransport(t *testing.T) {
	ctx := context.Background()
	c, _ := newRelay(t)

	opk := domain.OneTimePreKeyID(9)
	pre := &domain.PreKeyMessage{
		InitiatorIdentityKey: domain.X25519Public{1},
		EphemeralKey:         domain.X25519Public{2},
		SignedPreKeyID:       3,
		OneTimePreKeyID:      &opk,
	}
	require.NoError(t, c.SendMessage(ctx, domain.Envelope{From: "alice", To: "bob", PreKey: pre}))

	envs, err := c.FetchMessages(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	require.Equal(t, pre, envs[0].PreKey)
}

func TestRelay_HealthAndMetrics(t *testing.T) {
	c, srv := newRelay(t)
	require.NoError(t, c.SendMessage(context.Background(), domain.Envelope{From: "alice", To: "bob"}))

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "silent_relay_messages_queued_total 1"))
}

func TestRelay_BadRequests(t *testing.T) {
	_, srv := newRelay(t)
	cl := srv.Client()

	resp, err := cl.Get(srv.URL + "/msg/bob?limit=-1")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = cl.Post(srv.URL+"/msg/bob", "application/json", strings.NewReader(`{"to":"carol"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = cl.Post(srv.URL+"/prekey/nobody/consume", "application/json", strings.NewReader(`{"id":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
