package interfaces

import (
	"context"

	domaintypes "silent/internal/domain/types"
)

// KeyDirectory publishes and serves pre-key bundles.
type KeyDirectory interface {
	PublishBundle(ctx context.Context, bundle domaintypes.PreKeyBundle) error
	FetchBundle(ctx context.Context, username domaintypes.Username) (domaintypes.PreKeyBundle, error)
	// ConsumeOneTimePreKey removes a one-time pre-key from the published
	// bundle once a handshake has used it.
	ConsumeOneTimePreKey(
		ctx context.Context,
		username domaintypes.Username,
		id domaintypes.OneTimePreKeyID,
	) error
}

// TransportChannel moves opaque envelopes between contacts.
type TransportChannel interface {
	SendMessage(ctx context.Context, envelope domaintypes.Envelope) error
	FetchMessages(
		ctx context.Context,
		username domaintypes.Username,
		limit int,
	) ([]domaintypes.Envelope, error)
	AckMessages(ctx context.Context, username domaintypes.Username, count int) error
}

// RelayClient is how we talk to the central relay server, all with context.
type RelayClient interface {
	KeyDirectory
	TransportChannel
}

// MessageHandler is the inbound delivery callback.
type MessageHandler func(from domaintypes.Username, msg domaintypes.DecryptedMessage)
