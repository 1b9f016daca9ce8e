package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type redisStateStore struct {
	rdb    goredis.UniversalClient
	prefix string
	log    *logger.Logger
}

// NewRedisStateStore keeps states as expiring keys; GETDEL makes the
// consume step single-use.
func NewRedisStateStore(rdb goredis.UniversalClient, prefix string, baseLog *logger.Logger) StateStore {
	if prefix == "" {
		prefix = "cognivue:oauth_state:"
	}
	return &redisStateStore{rdb: rdb, prefix: prefix, log: baseLog.With("repo", "OAuthStateStore", "backend", "redis")}
}

func (s *redisStateStore) key(state string) string {
	return s.prefix + hashState(state)
}

func (s *redisStateStore) Save(ctx context.Context, state, nonce string, ttl time.Duration) error {
	if state == "" {
		return fmt.Errorf("empty state")
	}
	ok, err := s.rdb.SetNX(ctx, s.key(state), nonce, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return fmt.Errorf("oauth state collision")
	}
	return nil
}

func (s *redisStateStore) Consume(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", ErrStateNotFound
	}
	nonce, err := s.rdb.GetDel(ctx, s.key(state)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis getdel: %w", err)
	}
	return nonce, nil
}
