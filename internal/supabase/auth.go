package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/suPer8Hu/medirec/internal/backend"
)

// refreshMargin is how close to expiry a session gets refreshed.
const refreshMargin = 60 * time.Second

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *userResponse `json:"user"`
}

// signUpResponse is a token response when the project auto-confirms, or a bare
// user object when email confirmation is pending.
type signUpResponse struct {
	tokenResponse
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (t tokenResponse) session(now time.Time) (*backend.Session, error) {
	s := &backend.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	if t.User != nil {
		s.UserID = t.User.ID
		s.Email = t.User.Email
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}

	if s.UserID == "" || s.ExpiresAt.IsZero() {
		sub, exp, email := tokenClaims(t.AccessToken)
		if s.UserID == "" {
			s.UserID = sub
		}
		if s.ExpiresAt.IsZero() {
			s.ExpiresAt = exp
		}
		if s.Email == "" {
			s.Email = email
		}
	}
	if !s.Valid() {
		return nil, errors.New("token response has no user id")
	}
	return s, nil
}

// tokenClaims reads sub/exp/email without verifying the signature; the token
// came straight from the auth server over TLS and is only used for routing.
func tokenClaims(token string) (sub string, exp time.Time, email string) {
	if token == "" {
		return "", time.Time{}, ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", time.Time{}, ""
	}
	sub, _ = claims.GetSubject()
	if e, err := claims.GetExpirationTime(); err == nil && e != nil {
		exp = e.Time
	}
	email, _ = claims["email"].(string)
	return sub, exp, email
}

func (c *Client) Subscribe() (<-chan backend.SessionEvent, func()) {
	return c.hub.Subscribe()
}

// CurrentSession returns the persisted session, refreshing it first when it
// is about to expire. It returns (nil, nil) when no one is signed in.
func (c *Client) CurrentSession(ctx context.Context) (*backend.Session, error) {
	s, err := c.loadSession(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	if s.ExpiresWithin(c.now(), refreshMargin) && s.RefreshToken != "" {
		return c.refresh(ctx)
	}
	return s, nil
}

func (c *Client) loadSession(ctx context.Context) (*backend.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		s, err := c.store.Load(ctx)
		if err != nil {
			return nil, &backend.ProviderError{Op: "load session", Err: err}
		}
		if s.Valid() {
			c.session = s
		}
		c.loaded = true
	}
	if c.session == nil {
		return nil, nil
	}
	cp := *c.session
	return &cp, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	q := url.Values{"grant_type": {"password"}}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/v1/token", q,
		map[string]string{"email": email, "password": password}, "")
	if err != nil {
		return nil, err
	}
	var tr tokenResponse
	if err := c.send(req, "sign in", &tr); err != nil {
		return nil, err
	}
	s, err := tr.session(c.now())
	if err != nil {
		return nil, &backend.ProviderError{Op: "sign in", Err: err}
	}
	c.setSession(ctx, s, backend.EventSignedIn)
	return s, nil
}

// SignUp registers a new account. When the project auto-confirms e-mail the
// user is signed in right away; otherwise only the user is returned.
func (c *Client) SignUp(ctx context.Context, email, password string) (*backend.User, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/v1/signup", nil,
		map[string]string{"email": email, "password": password}, "")
	if err != nil {
		return nil, err
	}
	var sr signUpResponse
	if err := c.send(req, "sign up", &sr); err != nil {
		return nil, err
	}

	if sr.AccessToken != "" {
		s, err := sr.tokenResponse.session(c.now())
		if err != nil {
			return nil, &backend.ProviderError{Op: "sign up", Err: err}
		}
		c.setSession(ctx, s, backend.EventSignedIn)
		return &backend.User{ID: s.UserID, Email: s.Email}, nil
	}

	u := &backend.User{ID: sr.ID, Email: sr.Email}
	if sr.User != nil && u.ID == "" {
		u.ID, u.Email = sr.User.ID, sr.User.Email
	}
	if u.ID == "" {
		return nil, &backend.ProviderError{Op: "sign up", Err: errors.New("response has no user")}
	}
	return u, nil
}

// SignOut revokes the session remotely and always clears it locally. A session
// the server no longer knows is not an error.
func (c *Client) SignOut(ctx context.Context) error {
	s, _ := c.loadSession(ctx)

	var remoteErr error
	if s != nil && s.AccessToken != "" {
		req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, s.AccessToken)
		if err != nil {
			remoteErr = err
		} else if err := c.send(req, "sign out", nil); err != nil {
			switch statusOf(err) {
			case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			default:
				remoteErr = err
			}
		}
	}

	c.clearSession(ctx)
	return remoteErr
}

// refresh exchanges the refresh token. A rejected token signs the user out.
func (c *Client) refresh(ctx context.Context) (*backend.Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	cur, err := c.loadSession(ctx)
	if err != nil || cur == nil {
		return nil, err
	}
	// another caller may have refreshed while we waited
	if !cur.ExpiresWithin(c.now(), refreshMargin) {
		return cur, nil
	}

	q := url.Values{"grant_type": {"refresh_token"}}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/v1/token", q,
		map[string]string{"refresh_token": cur.RefreshToken}, "")
	if err != nil {
		return nil, err
	}
	var tr tokenResponse
	if err := c.send(req, "refresh session", &tr); err != nil {
		if st := statusOf(err); st >= 400 && st < 500 {
			c.log.Warn("refresh token rejected, signing out", "status", st, "code", codeOf(err))
			c.clearSession(ctx)
			return nil, nil
		}
		return nil, err
	}
	s, err := tr.session(c.now())
	if err != nil {
		return nil, &backend.ProviderError{Op: "refresh session", Err: err}
	}
	c.setSession(ctx, s, backend.EventTokenRefreshed)
	return s, nil
}

// StartAutoRefresh refreshes the session shortly before it expires until ctx
// is done.
func (c *Client) StartAutoRefresh(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 30 * time.Second
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := c.CurrentSession(ctx); err != nil && ctx.Err() == nil {
					c.log.Warn("auto refresh failed", "err", err)
				}
			}
		}
	}()
}

func (c *Client) setSession(ctx context.Context, s *backend.Session, kind backend.EventKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *s
	c.session = &cp
	c.loaded = true
	if err := c.store.Save(ctx, &cp); err != nil {
		c.log.Warn("persist session failed", "err", err)
	}
	ev := cp
	c.hub.Publish(backend.SessionEvent{Kind: kind, Session: &ev})
}

func (c *Client) clearSession(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.loaded = true
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn("clear persisted session failed", "err", err)
	}
	c.hub.Publish(backend.SessionEvent{Kind: backend.EventSignedOut})
}
