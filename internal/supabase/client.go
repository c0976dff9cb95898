package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/suPer8Hu/medirec/internal/backend"
	"github.com/suPer8Hu/medirec/internal/logger"
)

// Client talks to a Supabase project: GoTrue for auth, PostgREST for rows and
// Storage for files. It owns the signed-in session the way the browser SDK
// does, persisting it through a SessionStore and announcing every change on
// its event hub.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	log     *logger.Logger
	store   backend.SessionStore
	now     func() time.Time

	hub backend.EventHub

	mu        sync.Mutex
	session   *backend.Session
	loaded    bool
	refreshMu sync.Mutex
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithSessionStore(s backend.SessionStore) Option {
	return func(c *Client) { c.store = s }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL, anonKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logger.Nop(),
		store:   backend.NewMemorySessionStore(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("service", "Supabase")
	return c
}

// Close releases every session-change subscription.
func (c *Client) Close() {
	c.hub.Close()
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader, bearer string) (*http.Request, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.anonKey)
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, q url.Values, payload any, bearer string) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, q, body, bearer)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// send runs req and decodes a 2xx JSON body into out (if non-nil). Any other
// outcome becomes a *backend.ProviderError.
func (c *Client) send(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &backend.ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return providerError(op, resp.StatusCode, body)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &backend.ProviderError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// providerError reads the error shapes of GoTrue, PostgREST and Storage.
func providerError(op string, status int, body []byte) error {
	pe := &backend.ProviderError{Op: op, Status: status}
	if gjson.ValidBytes(body) {
		r := gjson.ParseBytes(body)
		for _, k := range []string{"error_code", "code"} {
			if v := r.Get(k); v.Type == gjson.String && v.Str != "" {
				pe.Code = v.Str
				break
			}
		}
		for _, k := range []string{"message", "msg", "error_description", "error"} {
			if v := r.Get(k); v.Type == gjson.String && v.Str != "" {
				pe.Message = v.Str
				break
			}
		}
	}
	if pe.Message == "" {
		pe.Message = strings.TrimSpace(string(body))
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(status)
	}
	return pe
}

func statusOf(err error) int {
	var pe *backend.ProviderError
	if errors.As(err, &pe) {
		return pe.Status
	}
	return 0
}

func codeOf(err error) string {
	var pe *backend.ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
