package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/medirec/internal/backend"
	"github.com/suPer8Hu/medirec/internal/models"
	"github.com/suPer8Hu/medirec/internal/session"
)

type fakePredictor struct {
	got []string
	err error
}

func (f *fakePredictor) Predict(ctx context.Context, symptoms []string) (*models.Prediction, error) {
	f.got = append([]string(nil), symptoms...)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Prediction{ID: "p1", Symptoms: symptoms, PredictedDisease: "Flu", Medications: []string{}, Diet: []string{}, Workout: []string{}, Precautions: []string{}}, nil
}

type fakeView struct {
	mu        sync.Mutex
	snap      session.Snapshot
	refreshes int
}

func signedIn(uid string) *fakeView {
	return &fakeView{snap: session.Snapshot{State: session.StateAuthenticated, Session: &backend.Session{UserID: uid}}}
}

func (f *fakeView) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeView) RefreshProfile(ctx context.Context) error {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	return nil
}

type fakeRows struct {
	mu         sync.Mutex
	profiles   map[string]models.Profile
	history    []models.Prediction
	insertErr  error
	historyErr error
}

func newFakeRows() *fakeRows { return &fakeRows{profiles: map[string]models.Profile{}} }

func (f *fakeRows) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return &p, nil
}

var errDuplicateProfile = errors.New("duplicate key value violates unique constraint \"profiles_pkey\"")

func (f *fakeRows) InsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[p.ID]; ok {
		return nil, errDuplicateProfile
	}
	f.profiles[p.ID] = *p
	cp := *p
	return &cp, nil
}

func (f *fakeRows) UpsertProfile(ctx context.Context, id, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profiles[id]
	p.ID, p.Username = id, username
	f.profiles[id] = p
	return nil
}

func (f *fakeRows) UpdateAvatarURL(ctx context.Context, id, u string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return backend.ErrNotFound
	}
	p.AvatarURL = u
	f.profiles[id] = p
	return nil
}

func (f *fakeRows) InsertPrediction(ctx context.Context, p *models.Prediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.history = append([]models.Prediction{*p}, f.history...)
	return nil
}

func (f *fakeRows) ListPredictions(ctx context.Context, userID string) ([]models.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	out := []models.Prediction{}
	for _, p := range f.history {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeFiles struct {
	key, contentType string
	body             []byte
}

func (f *fakeFiles) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	b, err := io.ReadAll(r)
	f.key, f.contentType, f.body = key, contentType, b
	return err
}

func (f *fakeFiles) PublicURL(key string) string { return "https://cdn.test/" + key }

type fakeNotifier struct{ ids []string }

func (f *fakeNotifier) PublishPrediction(ctx context.Context, p *models.Prediction) error {
	f.ids = append(f.ids, p.ID)
	return nil
}

type fakeAuth struct {
	backend.EventHub
	signUpUser *backend.User
	onSignUp   func(u *backend.User)
	signedOut  bool
}

func (f *fakeAuth) CurrentSession(ctx context.Context) (*backend.Session, error) { return nil, nil }
func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	return &backend.Session{UserID: "u1", Email: email}, nil
}
func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*backend.User, error) {
	if f.onSignUp != nil {
		f.onSignUp(f.signUpUser)
	}
	return f.signUpUser, nil
}
func (f *fakeAuth) SignOut(ctx context.Context) error {
	f.signedOut = true
	return nil
}

type fixture struct {
	svc      *Service
	pred     *fakePredictor
	view     *fakeView
	rows     *fakeRows
	files    *fakeFiles
	notifier *fakeNotifier
	auth     *fakeAuth
}

func newFixture(view *fakeView) *fixture {
	f := &fixture{
		pred:     &fakePredictor{},
		view:     view,
		rows:     newFakeRows(),
		files:    &fakeFiles{},
		notifier: &fakeNotifier{},
		auth:     &fakeAuth{},
	}
	f.svc = NewService(Deps{
		Predictor: f.pred,
		Auth:      f.auth,
		Profiles:  f.rows,
		History:   f.rows,
		Avatars:   f.files,
		Session:   view,
		Notifier:  f.notifier,
	})
	f.svc.newObjectID = func() string { return "01HZZZZZZZZZZZZZZZZZZZZZZZ" }
	return f
}

func TestPredict_RejectsBeforeCallingOut(t *testing.T) {
	f := newFixture(signedIn("u1"))

	_, err := f.svc.Predict(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSymptoms)
	_, err = f.svc.Predict(context.Background(), []string{" ", ""})
	assert.ErrorIs(t, err, ErrNoSymptoms)

	_, err = f.svc.Predict(context.Background(), []string{"constipation", "made_up"})
	assert.ErrorIs(t, err, ErrUnknownSymptom)
	assert.Contains(t, err.Error(), "made_up")
	assert.Nil(t, f.pred.got)
}

func TestPredict_SignedInSavesAndNotifies(t *testing.T) {
	f := newFixture(signedIn("u1"))

	out, err := f.svc.Predict(context.Background(), []string{"back_pain", "constipation", "back_pain"})
	require.NoError(t, err)
	assert.Equal(t, []string{"back_pain", "constipation"}, f.pred.got)
	assert.True(t, out.Saved)
	assert.NoError(t, out.SaveErr)
	assert.Equal(t, "u1", out.Prediction.UserID)

	hist, err := f.svc.History(context.Background())
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "p1", hist[0].ID)
	assert.Equal(t, []string{"p1"}, f.notifier.ids)
}

func TestPredict_AnonymousIsNotSaved(t *testing.T) {
	f := newFixture(&fakeView{snap: session.Snapshot{State: session.StateUnauthenticated}})

	out, err := f.svc.Predict(context.Background(), []string{"constipation"})
	require.NoError(t, err)
	assert.False(t, out.Saved)
	assert.Equal(t, "", out.Prediction.UserID)
	assert.Empty(t, f.rows.history)
	assert.Empty(t, f.notifier.ids)
}

func TestPredict_SaveFailureStillReturnsPrediction(t *testing.T) {
	f := newFixture(signedIn("u1"))
	f.rows.insertErr = errors.New("row level security")

	out, err := f.svc.Predict(context.Background(), []string{"constipation"})
	require.NoError(t, err)
	require.NotNil(t, out.Prediction)
	assert.False(t, out.Saved)
	assert.EqualError(t, out.SaveErr, "row level security")
	assert.Empty(t, f.notifier.ids)
}

func TestPredict_PredictorErrorPropagates(t *testing.T) {
	f := newFixture(signedIn("u1"))
	boom := errors.New("boom")
	f.pred.err = boom

	_, err := f.svc.Predict(context.Background(), []string{"constipation"})
	assert.ErrorIs(t, err, boom)
}

func TestHistory_RequiresSession(t *testing.T) {
	f := newFixture(&fakeView{})
	_, err := f.svc.History(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestProfilePage(t *testing.T) {
	f := newFixture(signedIn("u1"))
	f.rows.profiles["u1"] = models.Profile{ID: "u1", Username: "ada"}
	f.rows.history = []models.Prediction{{ID: "p9", UserID: "u1"}, {ID: "px", UserID: "u2"}}

	page, err := f.svc.ProfilePage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada", page.Profile.Username)
	require.Len(t, page.Predictions, 1)
	assert.Equal(t, "p9", page.Predictions[0].ID)
}

func TestProfilePage_HistoryFailureKeepsProfile(t *testing.T) {
	f := newFixture(signedIn("u1"))
	f.rows.profiles["u1"] = models.Profile{ID: "u1"}
	f.rows.historyErr = errors.New("timeout")

	page, err := f.svc.ProfilePage(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, page.Profile)
	assert.Empty(t, page.Predictions)
	assert.Error(t, page.HistoryErr)
}

func TestProfilePage_MissingProfile(t *testing.T) {
	f := newFixture(signedIn("u1"))
	_, err := f.svc.ProfilePage(context.Background())
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestUpdateUsername_RefreshesMirror(t *testing.T) {
	f := newFixture(signedIn("u1"))

	require.NoError(t, f.svc.UpdateUsername(context.Background(), "  ada "))
	assert.Equal(t, "ada", f.rows.profiles["u1"].Username)
	assert.Equal(t, 1, f.view.refreshes)

	assert.ErrorIs(t, f.svc.UpdateUsername(context.Background(), "   "), ErrInvalidUsername)
	assert.ErrorIs(t, f.svc.UpdateUsername(context.Background(), strings.Repeat("x", 65)), ErrInvalidUsername)
}

func TestUploadAvatar(t *testing.T) {
	f := newFixture(signedIn("u1"))
	f.rows.profiles["u1"] = models.Profile{ID: "u1"}

	u, err := f.svc.UploadAvatar(context.Background(), "Me.PNG", bytes.NewReader([]byte("img")), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "u1-01HZZZZZZZZZZZZZZZZZZZZZZZ.png", f.files.key)
	assert.Equal(t, "image/png", f.files.contentType)
	assert.Equal(t, "img", string(f.files.body))
	assert.Equal(t, "https://cdn.test/u1-01HZZZZZZZZZZZZZZZZZZZZZZZ.png", u)
	assert.Equal(t, u, f.rows.profiles["u1"].AvatarURL)
	assert.Equal(t, 1, f.view.refreshes)
}

func TestUploadAvatar_Validation(t *testing.T) {
	f := newFixture(signedIn("u1"))
	_, err := f.svc.UploadAvatar(context.Background(), "", nil, "")
	assert.ErrorIs(t, err, ErrEmptyUpload)

	anon := newFixture(&fakeView{})
	_, err = anon.svc.UploadAvatar(context.Background(), "a.png", bytes.NewReader(nil), "image/png")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSignUp_CreatesProfileWithUsername(t *testing.T) {
	f := newFixture(&fakeView{})
	f.auth.signUpUser = &backend.User{ID: "new", Email: "a@b.c"}

	u, err := f.svc.SignUp(context.Background(), "a@b.c", "pw", " ada ")
	require.NoError(t, err)
	assert.Equal(t, "new", u.ID)
	assert.Equal(t, "ada", f.rows.profiles["new"].Username)
	assert.Equal(t, 1, f.view.refreshes)

	_, err = f.svc.SignUp(context.Background(), "", "pw", "x")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestSignUp_AutoConfirmKeepsUsernameOverEmptyProfile(t *testing.T) {
	f := newFixture(&fakeView{})
	f.auth.signUpUser = &backend.User{ID: "new", Email: "a@b.c"}
	// an auto-confirmed sign-up signs in, and the mirror creates the empty row
	// before SignUp returns
	f.auth.onSignUp = func(u *backend.User) {
		_, err := f.rows.InsertProfile(context.Background(), &models.Profile{ID: u.ID})
		require.NoError(t, err)
	}

	_, err := f.svc.SignUp(context.Background(), "a@b.c", "pw", "ada")
	require.NoError(t, err)
	assert.Equal(t, "ada", f.rows.profiles["new"].Username)
	assert.Equal(t, 1, f.view.refreshes)
}

func TestSignUp_BlankUsernameLeavesProfileToMirror(t *testing.T) {
	f := newFixture(&fakeView{})
	f.auth.signUpUser = &backend.User{ID: "new", Email: "a@b.c"}

	_, err := f.svc.SignUp(context.Background(), "a@b.c", "pw", "  ")
	require.NoError(t, err)
	_, ok := f.rows.profiles["new"]
	assert.False(t, ok)
	assert.Equal(t, 0, f.view.refreshes)
}

func TestSignInAndOutDelegate(t *testing.T) {
	f := newFixture(&fakeView{})
	s, err := f.svc.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)

	require.NoError(t, f.svc.SignOut(context.Background()))
	assert.True(t, f.auth.signedOut)
}
