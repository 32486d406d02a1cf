package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"silent/internal/crypto"
	"silent/internal/util/memzero"
)

const (
	// MaxTimeout caps how long Read may wait on the enhancer.
	MaxTimeout = 2 * time.Second

	// DefaultRefresh is how long a server seed is mixed in before a new one
	// is requested.
	DefaultRefresh = 10 * time.Minute

	seedSize   = 32
	minSeedLen = 16
	mixLabel   = "entropy-mix"
)

var errFallback = errors.New("enhancer returned fallback entropy")

// Config configures the optional network seed enhancer. A zero Config
// disables it.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Refresh time.Duration
	Purpose string
}

// Source is an io.Reader of random bytes. Output always comes from
// crypto/rand; when an enhancer is configured, a server-provided seed is
// expanded and XORed over it. Enhancer failures are logged and otherwise
// ignored.
type Source struct {
	cfg    Config
	client *http.Client
	log    slog.Logger

	mu          sync.Mutex
	seed        []byte
	lastAttempt time.Time
	counter     uint64
	now         func() time.Time
}

// New returns a Source. log may be nil.
func New(cfg Config, log slog.Logger) *Source {
	if cfg.Timeout <= 0 || cfg.Timeout > MaxTimeout {
		cfg.Timeout = MaxTimeout
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = DefaultRefresh
	}
	if cfg.Purpose == "" {
		cfg.Purpose = "general"
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if log == nil {
		log = slog.Disabled
	}
	return &Source{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
		now:    time.Now,
	}
}

// Local returns a Source with no enhancer.
func Local() *Source { return New(Config{}, nil) }

// Enabled reports whether an enhancer URL is configured.
func (s *Source) Enabled() bool { return s.cfg.URL != "" }

// Seeded reports whether a server seed is currently being mixed in.
func (s *Source) Seeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed != nil
}

// Read fills p from crypto/rand, mixing in the server seed when one is
// available. It only fails if crypto/rand does.
func (s *Source) Read(p []byte) (int, error) {
	if _, err := io.ReadFull(rand.Reader, p); err != nil {
		return 0, err
	}
	if !s.Enabled() || len(p) == 0 {
		return len(p), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.now().Sub(s.lastAttempt) >= s.cfg.Refresh {
		s.refresh()
	}
	if s.seed == nil {
		return len(p), nil
	}

	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], s.counter)
	s.counter++
	in := append(append([]byte(nil), s.seed...), ctr[:]...)
	mask := crypto.KDF(in, mixLabel, len(p))
	for i := range p {
		p[i] ^= mask[i]
	}
	memzero.Zero(in)
	memzero.Zero(mask)
	return len(p), nil
}

// refresh fetches a new seed. Must be called with mu held.
func (s *Source) refresh() {
	s.lastAttempt = s.now()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	seed, err := s.fetchSeed(ctx)
	if err != nil {
		s.log.Debugf("Entropy enhancer unavailable, using local randomness: %v", err)
		return
	}
	if s.seed != nil {
		memzero.Zero(s.seed)
	}
	s.seed = seed
	s.counter = 0
	s.log.Debugf("Refreshed enhancer seed (%d bytes)", len(seed))
}

type seedRequest struct {
	Size          int    `json:"size"`
	ClientEntropy string `json:"clientEntropy"`
	Purpose       string `json:"purpose"`
}

type seedResponse struct {
	Seed      string `json:"seed"`
	RequestID string `json:"requestId"`
	Fallback  bool   `json:"fallback"`
}

func (s *Source) fetchSeed(ctx context.Context) ([]byte, error) {
	client := make([]byte, seedSize)
	if _, err := io.ReadFull(rand.Reader, client); err != nil {
		return nil, err
	}
	body, err := json.Marshal(seedRequest{
		Size:          seedSize,
		ClientEntropy: hex.EncodeToString(client),
		Purpose:       s.cfg.Purpose,
	})
	memzero.Zero(client)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL+"/api/get-seed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if s.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("get-seed: %s", resp.Status)
	}

	var out seedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&out); err != nil {
		return nil, fmt.Errorf("get-seed: decode: %w", err)
	}
	if out.Fallback {
		return nil, errFallback
	}
	seed, err := hex.DecodeString(out.Seed)
	if err != nil {
		return nil, fmt.Errorf("get-seed: seed: %w", err)
	}
	if len(seed) < minSeedLen {
		return nil, fmt.Errorf("get-seed: seed too short (%d bytes)", len(seed))
	}
	return seed, nil
}
