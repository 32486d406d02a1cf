package entropy_test

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"silent/internal/entropy"
)

func seedServer(t *testing.T, hits *atomic.Int32, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLocalSource(t *testing.T) {
	require := require.New(t)
	s := entropy.Local()
	require.False(s.Enabled())

	a := make([]byte, 64)
	b := make([]byte, 64)
	n, err := s.Read(a)
	require.NoError(err)
	require.Equal(64, n)
	_, err = s.Read(b)
	require.NoError(err)
	require.NotEqual(a, b)
	require.False(s.Seeded())
}

func TestEnhancerSeedMixedIn(t *testing.T) {
	require := require.New(t)
	var hits atomic.Int32

	srv := seedServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(http.MethodPost, r.Method)
		require.Equal("/api/get-seed", r.URL.Path)
		require.Equal("k3y", r.Header.Get("X-API-Key"))
		require.NotEmpty(r.Header.Get("X-Request-ID"))

		var req struct {
			Size          int    `json:"size"`
			ClientEntropy string `json:"clientEntropy"`
			Purpose       string `json:"purpose"`
		}
		require.NoError(json.NewDecoder(r.Body).Decode(&req))
		require.Equal(32, req.Size)
		require.Equal("ratchet", req.Purpose)
		ce, err := hex.DecodeString(req.ClientEntropy)
		require.NoError(err)
		require.Len(ce, 32)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"seed":      hex.EncodeToString(bytes.Repeat([]byte{0x5a}, 32)),
			"requestId": "r-1",
		})
	})

	s := entropy.New(entropy.Config{URL: srv.URL, APIKey: "k3y", Purpose: "ratchet"}, nil)
	a := make([]byte, 32)
	b := make([]byte, 32)
	_, err := s.Read(a)
	require.NoError(err)
	_, err = s.Read(b)
	require.NoError(err)

	require.True(s.Seeded())
	require.NotEqual(a, b)
	require.EqualValues(1, hits.Load(), "seed should be cached until the refresh interval")
}

func TestEnhancerFailuresFallBack(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"fallback": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"seed": "00", "fallback": true})
		},
		"bad hex": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"seed": "zz"})
		},
		"short seed": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"seed": "abcd"})
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			var hits atomic.Int32
			srv := seedServer(t, &hits, h)

			s := entropy.New(entropy.Config{URL: srv.URL}, nil)
			p := make([]byte, 48)
			n, err := s.Read(p)
			require.NoError(err)
			require.Equal(48, n)
			require.False(s.Seeded())
			require.EqualValues(1, hits.Load())
		})
	}
}

func TestEnhancerDeadline(t *testing.T) {
	require := require.New(t)
	var hits atomic.Int32
	srv := seedServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	s := entropy.New(entropy.Config{URL: srv.URL, Timeout: 100 * time.Millisecond}, nil)
	start := time.Now()
	_, err := s.Read(make([]byte, 32))
	require.NoError(err)
	require.Less(time.Since(start), 2*time.Second)
	require.False(s.Seeded())
}

func TestEnhancerUnreachable(t *testing.T) {
	require := require.New(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := entropy.New(entropy.Config{URL: url}, nil)
	_, err := s.Read(make([]byte, 16))
	require.NoError(err)
	require.False(s.Seeded())
}
