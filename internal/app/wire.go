package app

import (
	"errors"
	"io"
	"net/http"

	"github.com/decred/slog"

	"silent/internal/domain"
	"silent/internal/entropy"
	"silent/internal/relay"
	identitysvc "silent/internal/services/identity"
	messagesvc "silent/internal/services/message"
	prekeysvc "silent/internal/services/prekey"
	sessionsvc "silent/internal/services/session"
	"silent/internal/store"
)

// Options holds runtime wiring options for building the app.
type Options struct {
	Home   string    // config directory, e.g. $HOME/.silent
	Config *Config   // nil means Default()
	Stdout io.Writer // log output besides the log file; nil for none
	HTTP   *http.Client
}

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Identity domain.IdentityService
	Prekey   domain.PreKeyService
	Sessions domain.SessionService
	Messages domain.MessageService
	Relay    domain.RelayClient
	RelayURL string
	Accounts domain.AccountStore
	Entropy  *entropy.Source
	Logs     *LogBackend
	Log      slog.Logger

	states *store.RatchetStateDB
}

// NewWire constructs the dependency graph from opts. Close releases it.
func NewWire(opts Options) (*Wire, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = Default()
	}

	logs, err := NewLogBackend(cfg.Logging.File, cfg.Logging.Level, opts.Stdout)
	if err != nil {
		return nil, err
	}

	// File-based stores
	identityStore := store.NewIdentityFileStore(opts.Home)
	prekeyStore := store.NewPreKeyFileStore(opts.Home)
	bundleStore := store.NewBundleFileStore(opts.Home)
	sessionStore := store.NewSessionFileStore(opts.Home)
	states, err := store.OpenRatchetStateDB(opts.Home)
	if err != nil {
		logs.Close()
		return nil, err
	}

	// Ensure an HTTP client is available for outbound calls
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Relay.Timeout}
	}
	rc := relay.NewHTTP(cfg.Relay.URL, httpClient)

	rng := entropy.New(cfg.Entropy.source(), logs.Logger(SubsysEntropy))

	// High-level services
	sessionSvc := sessionsvc.New(identityStore, prekeyStore, sessionStore, states, rc,
		sessionsvc.WithRand(rng),
		sessionsvc.WithLogger(logs.Logger(SubsysSession)),
	)

	return &Wire{
		Identity: identitysvc.New(identityStore),
		Prekey:   prekeysvc.New(identityStore, prekeyStore, bundleStore),
		Sessions: sessionSvc,
		Messages: messagesvc.New(sessionSvc, rc, logs.Logger(SubsysMessage)),
		Relay:    rc,
		RelayURL: cfg.Relay.URL,
		Accounts: store.NewAccountFileStore(opts.Home),
		Entropy:  rng,
		Logs:     logs,
		Log:      logs.Logger(SubsysApp),
		states:   states,
	}, nil
}

// Close releases the state database and the log file.
func (w *Wire) Close() error {
	return errors.Join(w.states.Close(), w.Logs.Close())
}
