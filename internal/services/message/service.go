package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"

	"silent/internal/domain"
	"silent/internal/services/session"
)

// DefaultPollInterval is how often Listen polls the relay when no interval is
// given.
const DefaultPollInterval = 2 * time.Second

// Service sends and receives messages over the relay.
//
// High-level flow:
//   - Send: encrypt with the contact's ratchet (the session manager attaches
//     the handshake while it is pending) and post the envelope.
//   - Receive: fetch envelopes, decrypt them in order, then ack everything
//     that was handled. Envelopes that can never be opened are dropped and
//     logged so they do not block the queue.
type Service struct {
	sessions domain.SessionService
	relay    domain.TransportChannel
	log      slog.Logger
	now      func() time.Time
}

// New constructs a message Service. A nil logger disables logging.
func New(sessions domain.SessionService, relay domain.TransportChannel, log slog.Logger) *Service {
	if log == nil {
		log = slog.Disabled
	}
	return &Service{sessions: sessions, relay: relay, log: log, now: time.Now}
}

// SendMessage encrypts plaintext for to and posts it.
func (s *Service) SendMessage(
	ctx context.Context,
	passphrase string,
	from domain.Username,
	to domain.Username,
	plaintext []byte,
) error {
	msg, pre, err := s.sessions.Encrypt(passphrase, to, plaintext)
	if err != nil {
		return err
	}
	env := domain.Envelope{
		From:      from,
		To:        to,
		Message:   msg,
		PreKey:    pre, // present until the peer has answered
		Timestamp: s.now().Unix(),
	}
	if err := s.relay.SendMessage(ctx, env); err != nil {
		return fmt.Errorf("send to %q: %w", to, err)
	}
	s.log.Debugf("Sent message %d to %s", msg.Header.MessageIndex, to)
	return nil
}

// ReceiveMessages fetches up to limit queued envelopes and decrypts them in
// order.
//
// Envelopes that fail for a reason retrying cannot fix (bad keys, forged or
// replayed ciphertext, no session) are logged and dropped. Any other failure,
// such as a storage error, stops processing and leaves that envelope and
// the rest queued. Everything handled before the stop is acked.
func (s *Service) ReceiveMessages(
	ctx context.Context,
	passphrase string,
	me domain.Username,
	limit int,
) ([]domain.DecryptedMessage, error) {
	envs, err := s.relay.FetchMessages(ctx, me, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DecryptedMessage, 0, len(envs))
	consumed := 0
	var stopErr error

	for _, env := range envs {
		plain, err := s.sessions.Decrypt(passphrase, env)
		if err != nil {
			if !isPermanent(err) {
				stopErr = err
				break
			}
			s.log.Warnf("Dropping message from %s: %v", env.From, err)
			consumed++
			continue
		}
		out = append(out, domain.DecryptedMessage{
			From:      env.From,
			To:        env.To,
			Plaintext: plain,
			Timestamp: env.Timestamp,
		})
		consumed++
	}

	// Ack only what we handled. If zero, do nothing.
	if consumed > 0 {
		if err := s.relay.AckMessages(ctx, me, consumed); err != nil {
			return out, fmt.Errorf("ack %d messages: %w", consumed, err)
		}
	}
	return out, stopErr
}

// Listen polls the relay until ctx is cancelled, handing each decrypted
// message to onMessage. Errors from a poll are logged and the next poll
// proceeds.
func (s *Service) Listen(
	ctx context.Context,
	passphrase string,
	me domain.Username,
	interval time.Duration,
	onMessage domain.MessageHandler,
) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		msgs, err := s.ReceiveMessages(ctx, passphrase, me, 0)
		for _, m := range msgs {
			onMessage(m.From, m)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Errorf("Receive messages: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// isPermanent reports whether err means the envelope can never be opened.
func isPermanent(err error) bool {
	for _, target := range []error{
		domain.ErrValidation,
		domain.ErrAuthentication,
		domain.ErrKeyExchange,
		domain.ErrTooManySkipped,
		domain.ErrOutOfOrder,
		session.ErrNoSession,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
