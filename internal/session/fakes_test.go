package session

import (
	"context"
	"errors"
	"sync"

	"github.com/suPer8Hu/medirec/internal/backend"
	"github.com/suPer8Hu/medirec/internal/models"
)

type fakeAuth struct {
	backend.EventHub

	mu      sync.Mutex
	current *backend.Session
	err     error
	gate    chan struct{} // when set, CurrentSession waits for it
}

func (f *fakeAuth) CurrentSession(ctx context.Context) (*backend.Session, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.err
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*backend.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAuth) SignOut(ctx context.Context) error { return nil }

func (f *fakeAuth) emit(s *backend.Session) {
	kind := backend.EventSignedIn
	if s == nil {
		kind = backend.EventSignedOut
	}
	f.Publish(backend.SessionEvent{Kind: kind, Session: s})
}

type fakeProfiles struct {
	mu        sync.Mutex
	rows      map[string]models.Profile
	getErr    error
	insertErr error
	inserts   int
	// gated uids block GetProfile until the gate closes, ignoring cancellation,
	// to model a response that arrives late
	gates    map[string]chan struct{}
	returned map[string]chan struct{}
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		rows:     map[string]models.Profile{},
		gates:    map[string]chan struct{}{},
		returned: map[string]chan struct{}{},
	}
}

func (f *fakeProfiles) gate(uid string) (release func(), returned <-chan struct{}) {
	g := make(chan struct{})
	r := make(chan struct{})
	f.mu.Lock()
	f.gates[uid] = g
	f.returned[uid] = r
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(g) }) }, r
}

func (f *fakeProfiles) insertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts
}

func (f *fakeProfiles) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	g, r := f.gates[id], f.returned[id]
	f.mu.Unlock()
	if g != nil {
		<-g
		defer close(r)
		f.mu.Lock()
		delete(f.gates, id)
		delete(f.returned, id)
		f.mu.Unlock()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.rows[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProfiles) InsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if _, ok := f.rows[p.ID]; ok {
		return nil, errors.New("duplicate key")
	}
	f.inserts++
	f.rows[p.ID] = *p
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) UpsertProfile(ctx context.Context, id, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.rows[id]
	p.ID = id
	p.Username = username
	f.rows[id] = p
	return nil
}

func (f *fakeProfiles) UpdateAvatarURL(ctx context.Context, id, avatarURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return backend.ErrNotFound
	}
	p.AvatarURL = avatarURL
	f.rows[id] = p
	return nil
}

func (f *fakeProfiles) put(p models.Profile) {
	f.mu.Lock()
	f.rows[p.ID] = p
	f.mu.Unlock()
}
