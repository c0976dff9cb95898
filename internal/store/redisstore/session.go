package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suPer8Hu/medirec/internal/backend"
)

// DefaultTTL bounds how long a persisted session outlives its process. The
// refresh token stays usable long after the access token expires.
const DefaultTTL = 30 * 24 * time.Hour

func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// SessionStore keeps the auth session under one key so a restarted process
// resumes where it left off.
type SessionStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client, key string, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SessionStore{rdb: rdb, key: key, ttl: ttl}
}

func (s *SessionStore) Load(ctx context.Context) (*backend.Session, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeSession(raw)
}

func (s *SessionStore) Save(ctx context.Context, sess *backend.Session) error {
	if sess == nil {
		return s.Clear(ctx)
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key, raw, s.ttl).Err()
}

func (s *SessionStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

// decodeSession treats an unreadable value as no session; the user signs in
// again instead of the process failing to start.
func decodeSession(raw []byte) (*backend.Session, error) {
	var sess backend.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, nil
	}
	if !sess.Valid() {
		return nil, nil
	}
	return &sess, nil
}
