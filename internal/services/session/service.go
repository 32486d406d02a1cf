package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/puzpuzpuz/xsync/v3"

	"silent/internal/domain"
	"silent/internal/protocol/ratchet"
	"silent/internal/protocol/x3dh"
	"silent/internal/services/identity"
)

// ErrNoSession is returned when there is no ratchet state for a peer and the
// envelope carries no handshake to bootstrap one.
var ErrNoSession = errors.New("no session with peer; run start-session first")

// Service is the per-contact session manager.
//
// It runs X3DH, owns each contact's ratchet state and serialises every
// Encrypt and Decrypt on the same contact. Each call loads the encoded state,
// applies one ratchet operation and durably saves the result before
// returning, so the next call on that contact always sees the committed
// state. Different contacts proceed in parallel.
type Service struct {
	ids      domain.IdentityStore
	prekeys  domain.PreKeyStore
	sessions domain.SessionStore
	states   domain.SecureKeyStore
	dir      domain.KeyDirectory

	rng   io.Reader
	log   slog.Logger
	now   func() time.Time
	locks *xsync.MapOf[domain.Username, *sync.Mutex]
}

// Option configures a Service.
type Option func(*Service)

// WithRand sets the randomness source for ephemeral and ratchet keys and
// nonces.
func WithRand(r io.Reader) Option {
	return func(s *Service) { s.rng = r }
}

// WithLogger sets the service logger.
func WithLogger(l slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New constructs a session Service.
func New(
	ids domain.IdentityStore,
	prekeys domain.PreKeyStore,
	sessions domain.SessionStore,
	states domain.SecureKeyStore,
	dir domain.KeyDirectory,
	opts ...Option,
) *Service {
	s := &Service{
		ids:      ids,
		prekeys:  prekeys,
		sessions: sessions,
		states:   states,
		dir:      dir,
		rng:      rand.Reader,
		log:      slog.Disabled,
		now:      time.Now,
		locks:    xsync.NewMapOf[domain.Username, *sync.Mutex](),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// lock serialises operations on peer and returns the unlock func.
func (s *Service) lock(peer domain.Username) func() {
	mu, _ := s.locks.LoadOrCompute(peer, func() *sync.Mutex { return new(sync.Mutex) })
	mu.Lock()
	return mu.Unlock
}

// InitiateSession runs X3DH against the peer's published bundle and stores a
// fresh initiator ratchet state, replacing any previous session. The
// handshake record stays pending, and outbound envelopes repeat the
// PreKeyMessage, until the peer's first reply decrypts.
func (s *Service) InitiateSession(ctx context.Context, passphrase string, peer domain.Username) (domain.Session, error) {
	unlock := s.lock(peer)
	defer unlock()

	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.Session{}, err
	}
	bundle, err := s.dir.FetchBundle(ctx, peer)
	if err != nil {
		return domain.Session{}, fmt.Errorf("fetch bundle for %q: %w", peer, err)
	}

	res, err := x3dh.InitiateWithRand(s.rng, id, bundle)
	if err != nil {
		return domain.Session{}, fmt.Errorf("x3dh with %q: %w", peer, err)
	}
	st, err := ratchet.NewInitiator(s.rng, res.SharedSecret, res.InitialChainKey, res.PeerSignedPreKey)
	if err != nil {
		return domain.Session{}, err
	}
	defer st.Wipe()
	if err := s.saveState(passphrase, peer, st); err != nil {
		return domain.Session{}, err
	}

	rec := domain.Session{
		PeerUsername:     peer,
		PeerIdentityKey:  res.PeerIdentityKey,
		PeerSignedPreKey: res.PeerSignedPreKey,
		CreatedUTC:       s.now().Unix(),
		SignedPreKeyID:   res.SignedPreKeyID,
		OneTimePreKeyID:  res.OneTimePreKeyID,
		EphemeralKey:     res.EphemeralKey,
		InitiatorKey:     id.XPub,
		Pending:          true,
	}
	if err := s.sessions.SaveSession(peer, rec); err != nil {
		return domain.Session{}, err
	}

	if res.OneTimePreKeyID != nil {
		if err := s.dir.ConsumeOneTimePreKey(ctx, peer, *res.OneTimePreKeyID); err != nil {
			s.log.Warnf("Unable to retire one-time pre-key %s of %s: %v",
				*res.OneTimePreKeyID, peer, err)
		}
	}
	s.log.Infof("Started session with %s (identity %s, signed pre-key %s, one-time pre-key %v)",
		peer, identity.Fingerprint(res.PeerIdentityKey), res.SignedPreKeyID, res.OneTimePreKeyID != nil)
	return rec, nil
}

// GetSession retrieves the handshake record for peer.
func (s *Service) GetSession(peer domain.Username) (domain.Session, bool, error) {
	return s.sessions.LoadSession(peer)
}

// Encrypt seals plaintext for peer. While the handshake is pending, the
// PreKeyMessage to attach to the envelope is returned as well.
func (s *Service) Encrypt(passphrase string, peer domain.Username, plaintext []byte) (domain.EncryptedMessage, *domain.PreKeyMessage, error) {
	unlock := s.lock(peer)
	defer unlock()

	st, ok, err := s.loadState(passphrase, peer)
	if err != nil {
		return domain.EncryptedMessage{}, nil, err
	}
	if !ok {
		return domain.EncryptedMessage{}, nil, fmt.Errorf("encrypt to %q: %w", peer, ErrNoSession)
	}
	defer st.Wipe()

	prevDH := st.LocalDH.Public
	msg, err := ratchet.Encrypt(st, s.rng, plaintext)
	if err != nil {
		return domain.EncryptedMessage{}, nil, fmt.Errorf("encrypt to %q: %w", peer, err)
	}
	if err := s.saveState(passphrase, peer, st); err != nil {
		return domain.EncryptedMessage{}, nil, err
	}
	if msg.Header.DHPub != prevDH {
		s.log.Debugf("Sending ratchet step with %s", peer)
	}

	var pre *domain.PreKeyMessage
	rec, ok, err := s.sessions.LoadSession(peer)
	if err != nil {
		return domain.EncryptedMessage{}, nil, err
	}
	if ok && rec.Pending {
		pre = rec.PreKeyMessage()
	}
	return msg, pre, nil
}

// Decrypt opens an envelope from env.From.
//
// Without local state for the sender, the envelope's PreKeyMessage is used to
// bootstrap a responder session. With existing state the PreKeyMessage is
// ignored, unless decryption fails and it names a handshake other than the
// one already accepted; the peer then re-initiated, and a fresh responder
// session replaces the old one if it opens the message. The sender's identity
// key must match the one on record.
func (s *Service) Decrypt(passphrase string, env domain.Envelope) ([]byte, error) {
	peer := env.From
	unlock := s.lock(peer)
	defer unlock()

	rec, haveRec, err := s.sessions.LoadSession(peer)
	if err != nil {
		return nil, err
	}

	st, haveState, err := s.loadState(passphrase, peer)
	switch {
	case err != nil && !errors.Is(err, domain.ErrSessionCorrupt):
		return nil, err
	case err != nil:
		if env.PreKey == nil {
			return nil, fmt.Errorf("decrypt from %q: %w", peer, err)
		}
		s.log.Warnf("Discarding corrupt session with %s: %v", peer, err)
	case haveState:
		defer st.Wipe()
		prevRemote := st.RemoteDH
		pt, err := ratchet.Decrypt(st, env.Message)
		if err == nil {
			if err := s.saveState(passphrase, peer, st); err != nil {
				return nil, err
			}
			if prevRemote == nil || *prevRemote != *st.RemoteDH {
				s.log.Debugf("Receiving ratchet step with %s", peer)
			}
			if haveRec && rec.Pending {
				rec.Pending = false
				if err := s.sessions.SaveSession(peer, rec); err != nil {
					return nil, err
				}
				s.log.Infof("Session with %s confirmed", peer)
			}
			return pt, nil
		}
		if env.PreKey == nil || (haveRec && env.PreKey.EphemeralKey == rec.EphemeralKey) {
			return nil, fmt.Errorf("decrypt from %q: %w", peer, err)
		}
		s.log.Debugf("Message from %s failed under current session (%v); trying new handshake", peer, err)
	}

	if env.PreKey == nil {
		return nil, fmt.Errorf("decrypt from %q: %w", peer, ErrNoSession)
	}
	return s.respond(passphrase, env, rec, haveRec)
}

// respond bootstraps a responder session from env.PreKey and decrypts env
// with it. Nothing is stored unless the message opens. A handshake is
// accepted at most once, even after CloseSession.
func (s *Service) respond(passphrase string, env domain.Envelope, rec domain.Session, haveRec bool) ([]byte, error) {
	peer := env.From
	pre := *env.PreKey

	if haveRec && !rec.PeerIdentityKey.IsZero() && rec.PeerIdentityKey != pre.InitiatorIdentityKey {
		return nil, fmt.Errorf("%w: identity key of %q changed (was %s, now %s)",
			domain.ErrAuthentication, peer,
			identity.Fingerprint(rec.PeerIdentityKey), identity.Fingerprint(pre.InitiatorIdentityKey))
	}

	seen, err := s.states.SeenHandshake(peer, pre.EphemeralKey)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, fmt.Errorf("%w: handshake from %q was already accepted", domain.ErrKeyExchange, peer)
	}

	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	res, err := x3dh.Respond(id, pre, s.prekeys)
	if err != nil {
		return nil, fmt.Errorf("x3dh from %q: %w", peer, err)
	}
	st, err := ratchet.NewResponder(res.SharedSecret, res.InitialChainKey, res.SignedPreKey)
	if err != nil {
		return nil, err
	}
	defer st.Wipe()

	pt, err := ratchet.Decrypt(st, env.Message)
	if err != nil {
		return nil, fmt.Errorf("decrypt from %q: %w", peer, err)
	}
	blob, err := st.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := s.states.AcceptHandshake(passphrase, peer, pre.EphemeralKey, blob); err != nil {
		return nil, fmt.Errorf("save session state for %q: %w", peer, err)
	}
	if pre.OneTimePreKeyID != nil {
		if _, _, err := s.prekeys.ConsumeOneTimePreKey(*pre.OneTimePreKeyID); err != nil {
			return nil, err
		}
	}
	newRec := domain.Session{
		PeerUsername:    peer,
		PeerIdentityKey: pre.InitiatorIdentityKey,
		CreatedUTC:      s.now().Unix(),
		SignedPreKeyID:  pre.SignedPreKeyID,
		OneTimePreKeyID: pre.OneTimePreKeyID,
		EphemeralKey:    pre.EphemeralKey,
		InitiatorKey:    pre.InitiatorIdentityKey,
	}
	if err := s.sessions.SaveSession(peer, newRec); err != nil {
		return nil, err
	}
	s.log.Infof("Accepted session from %s (identity %s, signed pre-key %s)",
		peer, identity.Fingerprint(pre.InitiatorIdentityKey), pre.SignedPreKeyID)
	return pt, nil
}

// Peers lists contacts with a stored ratchet state.
func (s *Service) Peers() ([]domain.Username, error) {
	return s.states.Peers()
}

// CloseSession forgets the ratchet state and handshake record for peer.
// Handshakes already accepted from peer stay refused.
func (s *Service) CloseSession(peer domain.Username) error {
	unlock := s.lock(peer)
	defer unlock()

	if err := s.states.DeleteState(peer); err != nil {
		return err
	}
	if err := s.sessions.DeleteSession(peer); err != nil {
		return err
	}
	s.log.Infof("Closed session with %s", peer)
	return nil
}

func (s *Service) loadState(passphrase string, peer domain.Username) (*ratchet.State, bool, error) {
	blob, ok, err := s.states.LoadState(passphrase, peer)
	if err != nil || !ok {
		return nil, ok, err
	}
	st, err := ratchet.Load(blob)
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func (s *Service) saveState(passphrase string, peer domain.Username, st *ratchet.State) error {
	blob, err := st.MarshalBinary()
	if err != nil {
		return err
	}
	if err := s.states.SaveState(passphrase, peer, blob); err != nil {
		return fmt.Errorf("save session state for %q: %w", peer, err)
	}
	return nil
}

// Compile-time assertion that Service implements domain.SessionService.
var _ domain.SessionService = (*Service)(nil)
