package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/suPer8Hu/medirec/internal/backend"
	"github.com/suPer8Hu/medirec/internal/session"
	"github.com/suPer8Hu/medirec/internal/store/sqlstore"
)

func openSQLRepo(t *testing.T) *sqlstore.Repo {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// the mirror writes from its own goroutine
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, sqlstore.Migrate(db))
	return sqlstore.NewRepo(db)
}

// The mirror creates an empty profile on SIGNED_IN while SignUp is still
// running; the primary key rejects a second insert, so the username has to
// land through an upsert.
func TestSignUp_AutoConfirmWithMirrorAndSQLStore(t *testing.T) {
	repo := openSQLRepo(t)
	auth := &fakeAuth{signUpUser: &backend.User{ID: "u-new", Email: "a@b.c"}}
	auth.onSignUp = func(u *backend.User) {
		auth.Publish(backend.SessionEvent{
			Kind:    backend.EventSignedIn,
			Session: &backend.Session{UserID: u.ID, Email: u.Email, AccessToken: "tok"},
		})
	}

	mirror := session.New(auth, repo, nil)
	require.NoError(t, mirror.Start(context.Background()))
	defer mirror.Close()

	svc := NewService(Deps{
		Predictor: &fakePredictor{},
		Auth:      auth,
		Profiles:  repo,
		History:   repo,
		Avatars:   &fakeFiles{},
		Session:   mirror,
	})

	_, err := svc.SignUp(context.Background(), "a@b.c", "pw", "ada")
	require.NoError(t, err)

	p, err := repo.GetProfile(context.Background(), "u-new")
	require.NoError(t, err)
	assert.Equal(t, "ada", p.Username)

	assert.Eventually(t, func() bool {
		snap := mirror.Snapshot()
		return snap.State == session.StateAuthenticated && snap.Profile != nil && snap.Profile.Username == "ada"
	}, 2*time.Second, 10*time.Millisecond)
}
