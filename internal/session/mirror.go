package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/suPer8Hu/medirec/internal/backend"
	"github.com/suPer8Hu/medirec/internal/logger"
	"github.com/suPer8Hu/medirec/internal/models"
)

var ErrClosed = errors.New("session mirror closed")

type State int

const (
	StateInitializing State = iota
	StateUnauthenticated
	StateProfileLoading
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateProfileLoading:
		return "profile_loading"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is one consistent view of who is signed in. Session is nil unless
// State is StateProfileLoading or StateAuthenticated; Profile may be nil even
// when authenticated if it could not be loaded.
type Snapshot struct {
	State   State
	Session *backend.Session
	Profile *models.Profile
}

func (s Snapshot) IsLoading() bool {
	return s.State == StateInitializing || s.State == StateProfileLoading
}

func (s Snapshot) UserID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.UserID
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{State: s.State}
	if s.Session != nil {
		cp := *s.Session
		out.Session = &cp
	}
	if s.Profile != nil {
		cp := *s.Profile
		out.Profile = &cp
	}
	return out
}

type bootResult struct {
	gen     uint64
	session *backend.Session
	err     error
}

type fetchResult struct {
	gen     uint64
	uid     string
	profile *models.Profile
	err     error
}

// Mirror keeps a local copy of the provider's session and the matching
// profile row. All transitions happen on one goroutine, in event order; a
// newer event cancels and discards any profile fetch still in flight.
type Mirror struct {
	auth     backend.AuthProvider
	profiles backend.ProfileStore
	log      *logger.Logger

	mu        sync.RWMutex
	snap      Snapshot
	watchers  map[int]chan Snapshot
	nextWatch int
	started   bool
	closed    bool

	booted      chan bootResult
	fetched     chan fetchResult
	refreshReqs chan chan struct{}

	cancel      context.CancelFunc
	unsubscribe func()
	done        chan struct{}
	helpers     sync.WaitGroup
	closeOnce   sync.Once
}

func New(auth backend.AuthProvider, profiles backend.ProfileStore, log *logger.Logger) *Mirror {
	if log == nil {
		log = logger.Nop()
	}
	return &Mirror{
		auth:        auth,
		profiles:    profiles,
		log:         log.With("component", "SessionMirror"),
		snap:        Snapshot{State: StateInitializing},
		watchers:    make(map[int]chan Snapshot),
		booted:      make(chan bootResult),
		fetched:     make(chan fetchResult),
		refreshReqs: make(chan chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start subscribes to session changes and resolves the current session in
// the background. The mirror runs until Close or until ctx is done.
func (m *Mirror) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.started {
		return errors.New("session mirror already started")
	}

	// subscribe before the one-shot query so no change can slip between them
	events, unsubscribe := m.auth.Subscribe()
	loopCtx, cancel := context.WithCancel(ctx)

	m.started = true
	m.unsubscribe = unsubscribe
	m.cancel = cancel
	go m.run(loopCtx, events)
	return nil
}

// Close stops the loop, cancels in-flight fetches, releases the provider
// subscription and closes every watcher channel.
func (m *Mirror) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		started := m.started
		m.closed = true
		m.mu.Unlock()

		if started {
			m.cancel()
			<-m.done
			m.helpers.Wait()
			m.unsubscribe()
		} else {
			close(m.done)
		}

		m.mu.Lock()
		for id, ch := range m.watchers {
			close(ch)
			delete(m.watchers, id)
		}
		m.mu.Unlock()
	})
}

func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.clone()
}

// Watch delivers the current snapshot immediately and then one per transition.
// Delivery is latest-wins: a consumer that falls behind receives the newest
// snapshot, not a backlog. The channel is closed by cancel or Close.
func (m *Mirror) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := m.nextWatch
	m.nextWatch++
	m.watchers[id] = ch
	ch <- m.snap.clone()
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.watchers[id]; ok {
				close(c)
				delete(m.watchers, id)
			}
		})
	}
}

// RefreshProfile re-runs the profile fetch for the signed-in user and waits
// until it lands or a newer session event supersedes it. It does nothing when
// no one is signed in.
func (m *Mirror) RefreshProfile(ctx context.Context) error {
	if !m.Snapshot().Session.Valid() {
		return nil
	}
	done := make(chan struct{})
	select {
	case m.refreshReqs <- done:
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mirror) set(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = s.clone()
	for _, ch := range m.watchers {
		offerLatest(ch, m.snap.clone())
	}
}

func offerLatest(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

func (m *Mirror) run(ctx context.Context, events <-chan backend.SessionEvent) {
	defer close(m.done)

	var (
		gen         uint64 = 1
		fetchCancel context.CancelFunc
		waiters     []chan struct{}
	)

	release := func() {
		for _, w := range waiters {
			close(w)
		}
		waiters = nil
	}
	supersede := func() {
		gen++
		if fetchCancel != nil {
			fetchCancel()
			fetchCancel = nil
		}
		release()
	}
	startFetch := func(uid string) {
		fctx, cancel := context.WithCancel(ctx)
		fetchCancel = cancel
		g := gen
		m.helpers.Add(1)
		go func() {
			defer m.helpers.Done()
			p, err := LoadOrCreateProfile(fctx, m.profiles, uid)
			select {
			case m.fetched <- fetchResult{gen: g, uid: uid, profile: p, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	defer func() {
		if fetchCancel != nil {
			fetchCancel()
		}
		release()
	}()

	m.helpers.Add(1)
	go func(g uint64) {
		defer m.helpers.Done()
		s, err := m.auth.CurrentSession(ctx)
		select {
		case m.booted <- bootResult{gen: g, session: s, err: err}:
		case <-ctx.Done():
		}
	}(gen)

	for {
		select {
		case <-ctx.Done():
			return

		case r := <-m.booted:
			if r.gen != gen {
				m.log.Debug("initial session superseded by event")
				continue
			}
			if r.err != nil {
				m.log.Warn("initial session lookup failed", "err", r.err)
				m.set(Snapshot{State: StateUnauthenticated})
				continue
			}
			if !r.session.Valid() {
				m.set(Snapshot{State: StateUnauthenticated})
				continue
			}
			m.set(Snapshot{State: StateProfileLoading, Session: r.session})
			startFetch(r.session.UserID)

		case ev, ok := <-events:
			if !ok {
				m.log.Warn("session event stream closed")
				events = nil
				continue
			}
			supersede()
			if !ev.Session.Valid() {
				if ev.Session != nil {
					m.log.Warn("ignoring session without user id", "event", ev.Kind)
				}
				m.set(Snapshot{State: StateUnauthenticated})
				continue
			}
			m.log.Debug("session changed", "event", ev.Kind, "user_id", ev.Session.UserID)
			m.set(Snapshot{State: StateProfileLoading, Session: ev.Session})
			startFetch(ev.Session.UserID)

		case r := <-m.fetched:
			cur := m.Snapshot()
			if r.gen != gen || r.uid != cur.UserID() {
				m.log.Debug("dropping stale profile fetch", "user_id", r.uid)
				continue
			}
			fetchCancel()
			fetchCancel = nil
			profile := r.profile
			if r.err != nil {
				m.log.Warn("profile unavailable", "user_id", r.uid, "err", r.err)
				profile = nil
			}
			m.set(Snapshot{State: StateAuthenticated, Session: cur.Session, Profile: profile})
			release()

		case w := <-m.refreshReqs:
			cur := m.Snapshot()
			if !cur.Session.Valid() {
				close(w)
				continue
			}
			supersede()
			waiters = append(waiters, w)
			startFetch(cur.Session.UserID)
		}
	}
}
