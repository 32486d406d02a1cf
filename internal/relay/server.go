package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"silent/internal/crypto"
	"silent/internal/domain"
)

const (
	// MaxQueue is the most envelopes held for one recipient.
	MaxQueue = 1000

	maxBodySize = 1 << 20
)

// Server is an in-memory relay: a key directory plus one mailbox per user.
// It only ever sees public bundles and ciphertext.
type Server struct {
	log    slog.Logger
	router *mux.Router
	now    func() time.Time

	mu      sync.Mutex
	bundles map[domain.Username]domain.PreKeyBundle
	queues  map[domain.Username][]domain.Envelope

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	queued   prometheus.Counter
	acked    prometheus.Counter
	consumed prometheus.Counter
}

// NewServer returns a relay with empty state. A nil logger disables logging.
func NewServer(log slog.Logger) *Server {
	if log == nil {
		log = slog.Disabled
	}
	s := &Server{
		log:      log,
		now:      time.Now,
		bundles:  make(map[domain.Username]domain.PreKeyBundle),
		queues:   make(map[domain.Username][]domain.Envelope),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "silent_relay_requests_total",
				Help: "Number of requests by route and status code",
			},
			[]string{"route", "code"},
		),
		queued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "silent_relay_messages_queued_total",
				Help: "Number of envelopes accepted for delivery",
			},
		),
		acked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "silent_relay_messages_acked_total",
				Help: "Number of envelopes removed by recipient acks",
			},
		),
		consumed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "silent_relay_prekeys_consumed_total",
				Help: "Number of one-time pre-keys retired",
			},
		),
	}
	s.registry.MustRegister(s.requests, s.queued, s.acked, s.consumed)

	r := mux.NewRouter()
	r.Use(s.accessLog)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/prekey/{user}", s.handleFetchBundle).Methods(http.MethodGet)
	r.HandleFunc("/prekey/{user}/consume", s.handleConsume).Methods(http.MethodPost)
	r.HandleFunc("/msg/{user}", s.handleEnqueue).Methods(http.MethodPost)
	r.HandleFunc("/msg/{user}", s.handleFetchMessages).Methods(http.MethodGet)
	r.HandleFunc("/msg/{user}/ack", s.handleAck).Methods(http.MethodPost)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var b domain.PreKeyBundle
	if err := decodeBody(w, r, &b); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if b.Username == "" || b.IdentityKey.IsZero() {
		writeError(w, http.StatusBadRequest, errors.New("bundle needs a username and identity key"))
		return
	}
	if err := crypto.VerifySignedPreKey(b.SigningKey, b.SignedPreKey, b.SignedPreKeySignature); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.bundles[b.Username] = b
	s.mu.Unlock()

	s.log.Infof("Registered bundle for %s (signed pre-key %s, %d one-time pre-keys)",
		b.Username, b.SignedPreKeyID, len(b.OneTimePreKeys))
	w.WriteHeader(http.StatusOK)
}

// handleFetchBundle returns the user's bundle with at most one one-time
// pre-key. That key is removed from the directory as it is handed out, so no
// two initiators receive the same one.
func (s *Server) handleFetchBundle(w http.ResponseWriter, r *http.Request) {
	user := domain.Username(mux.Vars(r)["user"])

	s.mu.Lock()
	b, ok := s.bundles[user]
	if ok && len(b.OneTimePreKeys) > 0 {
		stored := b
		stored.OneTimePreKeys = b.OneTimePreKeys[1:]
		s.bundles[user] = stored
		b.OneTimePreKeys = b.OneTimePreKeys[:1:1]
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no bundle for %q", user))
		return
	}
	if len(b.OneTimePreKeys) > 0 {
		s.consumed.Inc()
		s.log.Debugf("Handed out one-time pre-key %s of %s", b.OneTimePreKeys[0].ID, user)
	}
	writeJSON(w, b)
}

type consumeRequest struct {
	ID domain.OneTimePreKeyID `json:"id"`
}

func (s *Server) handleConsume(w http.ResponseWriter, r *http.Request) {
	user := domain.Username(mux.Vars(r)["user"])
	var req consumeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	b, ok := s.bundles[user]
	removed := false
	if ok {
		kept := make([]domain.OneTimePreKeyPublic, 0, len(b.OneTimePreKeys))
		for _, k := range b.OneTimePreKeys {
			if k.ID == req.ID {
				removed = true
				continue
			}
			kept = append(kept, k)
		}
		b.OneTimePreKeys = kept
		s.bundles[user] = b
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no bundle for %q", user))
		return
	}
	if removed {
		s.log.Debugf("Retired one-time pre-key %s of %s", req.ID, user)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	user := domain.Username(mux.Vars(r)["user"])
	var env domain.Envelope
	if err := decodeBody(w, r, &env); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if env.To == "" {
		env.To = user
	}
	if env.To != user {
		writeError(w, http.StatusBadRequest, fmt.Errorf("envelope addressed to %q posted to %q", env.To, user))
		return
	}
	if env.ID == "" {
		env.ID = uuid.New().String()
	}
	if env.Timestamp == 0 {
		env.Timestamp = s.now().Unix()
	}

	s.mu.Lock()
	if len(s.queues[user]) >= MaxQueue {
		s.mu.Unlock()
		writeError(w, http.StatusInsufficientStorage, fmt.Errorf("mailbox of %q is full", user))
		return
	}
	s.queues[user] = append(s.queues[user], env)
	s.mu.Unlock()

	s.queued.Inc()
	s.log.Debugf("Queued message %s from %s to %s", env.ID, env.From, user)
	writeJSON(w, struct {
		ID string `json:"id"`
	}{env.ID})
}

// handleFetchMessages returns up to limit queued envelopes, oldest first.
// A missing or zero limit returns them all.
func (s *Server) handleFetchMessages(w http.ResponseWriter, r *http.Request) {
	user := domain.Username(mux.Vars(r)["user"])
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("bad limit %q", v))
			return
		}
		limit = n
	}

	s.mu.Lock()
	q := s.queues[user]
	if limit > 0 && limit < len(q) {
		q = q[:limit]
	}
	out := append(make([]domain.Envelope, 0, len(q)), q...)
	s.mu.Unlock()

	writeJSON(w, out)
}

type ackRequest struct {
	Count int `json:"count"`
}

// handleAck drops the first count envelopes. A count beyond the queue length
// clears it.
func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	user := domain.Username(mux.Vars(r)["user"])
	var req ackRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Count < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad count %d", req.Count))
		return
	}

	s.mu.Lock()
	q := s.queues[user]
	n := min(req.Count, len(q))
	if n == len(q) {
		delete(s.queues, user)
	} else {
		s.queues[user] = append([]domain.Envelope(nil), q[n:]...)
	}
	s.mu.Unlock()

	s.acked.Add(float64(n))
	w.WriteHeader(http.StatusOK)
}

// statusRecorder captures the status code and size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.log.Debugf("%s %s from %s: %d, %d bytes in %v",
			r.Method, r.URL.Path, r.RemoteAddr, rec.status, rec.bytes, time.Since(start))
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}
