package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"silent/internal/domain"
)

// ErrNotFound is returned when the relay has no bundle for a user.
var ErrNotFound = errors.New("not found on relay")

// HTTP is the relay client. It implements domain.RelayClient.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a client for the relay at base. A nil client means
// http.DefaultClient.
func NewHTTP(base string, c *http.Client) *HTTP {
	if c == nil {
		c = http.DefaultClient
	}
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: c}
}

// PublishBundle registers our bundle, replacing any earlier one.
func (c *HTTP) PublishBundle(ctx context.Context, b domain.PreKeyBundle) error {
	return c.post(ctx, "/register", b, nil)
}

// FetchBundle returns username's bundle with at most one one-time pre-key.
func (c *HTTP) FetchBundle(ctx context.Context, username domain.Username) (domain.PreKeyBundle, error) {
	var out domain.PreKeyBundle
	if err := c.get(ctx, "/prekey/"+url.PathEscape(username.String()), &out); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return out, nil
}

// ConsumeOneTimePreKey retires a one-time pre-key from username's bundle.
func (c *HTTP) ConsumeOneTimePreKey(ctx context.Context, username domain.Username, id domain.OneTimePreKeyID) error {
	return c.post(ctx, "/prekey/"+url.PathEscape(username.String())+"/consume", consumeRequest{ID: id}, nil)
}

// SendMessage queues env for env.To.
func (c *HTTP) SendMessage(ctx context.Context, env domain.Envelope) error {
	// env.PreKey will be serialised if non-nil
	return c.post(ctx, "/msg/"+url.PathEscape(env.To.String()), env, nil)
}

// FetchMessages returns up to limit queued envelopes for username; limit 0
// means all of them.
func (c *HTTP) FetchMessages(ctx context.Context, username domain.Username, limit int) ([]domain.Envelope, error) {
	path := "/msg/" + url.PathEscape(username.String())
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var envs []domain.Envelope
	if err := c.get(ctx, path, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// AckMessages drops the first count queued envelopes for username.
func (c *HTTP) AckMessages(ctx context.Context, username domain.Username, count int) error {
	return c.post(ctx, "/msg/"+url.PathEscape(username.String())+"/ack", ackRequest{Count: count}, nil)
}

func (c *HTTP) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTP) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTP) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e errorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		err := fmt.Errorf("relay %s %s: %s: %s", req.Method, req.URL, resp.Status, msg)
		if resp.StatusCode == http.StatusNotFound {
			err = fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return err
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var _ domain.RelayClient = (*HTTP)(nil)
