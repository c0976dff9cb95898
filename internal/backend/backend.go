package backend

import (
	"context"
	"io"
	"time"

	"github.com/suPer8Hu/medirec/internal/models"
)

// Session is the auth provider's proof of a signed-in user.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
}

func (s *Session) Valid() bool {
	return s != nil && s.UserID != ""
}

// ExpiresWithin reports whether the session expires in less than d.
// A zero ExpiresAt never expires.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return s.ExpiresAt.Sub(now) < d
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// SessionEvent carries the new session, or nil when the user signed out.
type SessionEvent struct {
	Kind    EventKind
	Session *Session
}

type AuthProvider interface {
	CurrentSession(ctx context.Context) (*Session, error)
	// Subscribe returns a channel of session changes in emission order and a
	// func that releases the subscription and closes the channel.
	Subscribe() (<-chan SessionEvent, func())
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context) error
}

type ProfileStore interface {
	// GetProfile returns ErrNotFound when no row exists for id.
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	InsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)
	UpsertProfile(ctx context.Context, id, username string) error
	UpdateAvatarURL(ctx context.Context, id, avatarURL string) error
}

type HistoryStore interface {
	InsertPrediction(ctx context.Context, p *models.Prediction) error
	// ListPredictions returns the user's predictions, newest first.
	ListPredictions(ctx context.Context, userID string) ([]models.Prediction, error)
}

type FileStore interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) error
	PublicURL(path string) string
}

// SessionStore persists the current session between process restarts.
// Load returns (nil, nil) when nothing is stored.
type SessionStore interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}
