package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/medirec/internal/backend"
	"github.com/suPer8Hu/medirec/internal/logger"
	"github.com/suPer8Hu/medirec/internal/models"
	"github.com/suPer8Hu/medirec/internal/session"
	"github.com/suPer8Hu/medirec/internal/symptoms"
)

var (
	ErrNoSymptoms        = errors.New("select at least one symptom")
	ErrUnknownSymptom    = errors.New("unknown symptom")
	ErrUnauthenticated   = errors.New("not signed in")
	ErrEmptyUpload       = errors.New("select an image to upload")
	ErrInvalidUsername   = errors.New("username must be 1-64 characters")
	ErrMissingCredential = errors.New("email and password required")
)

type Predictor interface {
	Predict(ctx context.Context, symptoms []string) (*models.Prediction, error)
}

// Notifier hears about every saved prediction. Optional.
type Notifier interface {
	PublishPrediction(ctx context.Context, p *models.Prediction) error
}

// SessionView is the part of the session mirror the use cases read.
type SessionView interface {
	Snapshot() session.Snapshot
	RefreshProfile(ctx context.Context) error
}

type Deps struct {
	Predictor Predictor
	Auth      backend.AuthProvider
	Profiles  backend.ProfileStore
	History   backend.HistoryStore
	Avatars   backend.FileStore
	Session   SessionView
	Notifier  Notifier
	Log       *logger.Logger
}

type Service struct {
	predictor Predictor
	auth      backend.AuthProvider
	profiles  backend.ProfileStore
	history   backend.HistoryStore
	avatars   backend.FileStore
	session   SessionView
	notifier  Notifier
	log       *logger.Logger

	newObjectID func() string
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		predictor:   d.Predictor,
		auth:        d.Auth,
		profiles:    d.Profiles,
		history:     d.History,
		avatars:     d.Avatars,
		session:     d.Session,
		notifier:    d.Notifier,
		log:         log.With("service", "App"),
		newObjectID: func() string { return ulid.Make().String() },
	}
}

// Outcome is a prediction plus what happened when saving it. A failed save
// does not hide the prediction.
type Outcome struct {
	Prediction *models.Prediction `json:"prediction"`
	Saved      bool               `json:"saved"`
	SaveErr    error              `json:"-"`
}

// Predict validates the selection, asks for a prediction and, when someone is
// signed in, records it in their history.
func (s *Service) Predict(ctx context.Context, ids []string) (*Outcome, error) {
	sel := symptoms.NewSelection()
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			sel.Add(id)
		}
	}
	if sel.Len() == 0 {
		return nil, ErrNoSymptoms
	}
	if unknown := sel.Unknown(); len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymptom, strings.Join(unknown, ", "))
	}

	rec, err := s.predictor.Predict(ctx, sel.List())
	if err != nil {
		return nil, err
	}
	out := &Outcome{Prediction: rec}

	uid := s.session.Snapshot().UserID()
	if uid == "" {
		return out, nil
	}
	rec.UserID = uid
	if err := s.history.InsertPrediction(ctx, rec); err != nil {
		s.log.Warn("save prediction failed", "user_id", uid, "prediction_id", rec.ID, "err", err)
		out.SaveErr = err
		return out, nil
	}
	out.Saved = true

	if s.notifier != nil {
		if err := s.notifier.PublishPrediction(ctx, rec); err != nil {
			s.log.Warn("publish prediction event failed", "prediction_id", rec.ID, "err", err)
		}
	}
	return out, nil
}

func (s *Service) currentUser() (string, error) {
	uid := s.session.Snapshot().UserID()
	if uid == "" {
		return "", ErrUnauthenticated
	}
	return uid, nil
}

func (s *Service) History(ctx context.Context) ([]models.Prediction, error) {
	uid, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	return s.history.ListPredictions(ctx, uid)
}

type ProfilePage struct {
	Profile     *models.Profile     `json:"profile"`
	Predictions []models.Prediction `json:"predictions"`
	// HistoryErr is set when the profile loaded but the history did not.
	HistoryErr error `json:"-"`
}

// ProfilePage loads the profile row and the history side by side.
func (s *Service) ProfilePage(ctx context.Context) (*ProfilePage, error) {
	uid, err := s.currentUser()
	if err != nil {
		return nil, err
	}

	page := &ProfilePage{Predictions: []models.Prediction{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.profiles.GetProfile(gctx, uid)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		page.Profile = p
		return nil
	})
	g.Go(func() error {
		rows, err := s.history.ListPredictions(gctx, uid)
		if err != nil {
			page.HistoryErr = err
			return nil
		}
		page.Predictions = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Service) UpdateUsername(ctx context.Context, username string) error {
	uid, err := s.currentUser()
	if err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 64 {
		return ErrInvalidUsername
	}
	if err := s.profiles.UpsertProfile(ctx, uid, username); err != nil {
		return err
	}
	return s.session.RefreshProfile(ctx)
}

// UploadAvatar stores the image as <uid>-<ulid>.<ext>, points the profile at
// its public URL and returns that URL.
func (s *Service) UploadAvatar(ctx context.Context, filename string, r io.Reader, contentType string) (string, error) {
	uid, err := s.currentUser()
	if err != nil {
		return "", err
	}
	if r == nil || filename == "" {
		return "", ErrEmptyUpload
	}

	key := uid + "-" + s.newObjectID()
	if ext := strings.TrimPrefix(path.Ext(filename), "."); ext != "" {
		key += "." + strings.ToLower(ext)
	}

	if err := s.avatars.Upload(ctx, key, r, contentType); err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	publicURL := s.avatars.PublicURL(key)
	if err := s.profiles.UpdateAvatarURL(ctx, uid, publicURL); err != nil {
		return "", fmt.Errorf("update avatar url: %w", err)
	}
	if err := s.session.RefreshProfile(ctx); err != nil {
		return publicURL, err
	}
	return publicURL, nil
}

// SignUp creates the account and saves the chosen username on its profile.
// An auto-confirmed sign-up signs in straight away, so the session mirror may
// already have created an empty profile row; the username is upserted over it.
// A failed save leaves the account usable and the username settable later.
func (s *Service) SignUp(ctx context.Context, email, password, username string) (*backend.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingCredential
	}
	u, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return u, nil
	}
	if err := s.profiles.UpsertProfile(ctx, u.ID, username); err != nil {
		s.log.Warn("save username after sign up failed", "user_id", u.ID, "err", err)
		return u, nil
	}
	if err := s.session.RefreshProfile(ctx); err != nil {
		s.log.Warn("refresh profile after sign up failed", "user_id", u.ID, "err", err)
	}
	return u, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingCredential
	}
	return s.auth.SignIn(ctx, email, password)
}

func (s *Service) SignOut(ctx context.Context) error {
	return s.auth.SignOut(ctx)
}

// Snapshot is the mirrored session state.
func (s *Service) Snapshot() session.Snapshot {
	return s.session.Snapshot()
}
