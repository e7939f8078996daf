package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

const redisKeyPrefix = "session:"

// RedisStore keeps session state in Redis without expiry so that several
// API processes can share conversations.
type RedisStore struct {
	rdb *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client) *RedisStore {
	if rdb == nil {
		panic("session: redis client cannot be nil")
	}
	return &RedisStore{rdb: rdb}
}

// DialRedis parses a redis:// URL and verifies the server answers a ping.
func DialRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, oops.In("session").Wrapf(err, "parse redis url")
	}
	opts.DialTimeout = 5 * time.Second
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, oops.In("session").Wrapf(err, "redis ping")
	}
	return rdb, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (State, bool, error) {
	if strings.TrimSpace(id) == "" {
		return State{}, false, ErrMissingID
	}
	data, err := s.rdb.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, oops.In("session").With("conversation_id", id).Wrapf(err, "load state")
	}
	state, err := decodeState(data)
	if err != nil {
		return State{}, false, oops.In("session").With("conversation_id", id).Wrap(err)
	}
	return state, true, nil
}

func (s *RedisStore) CreateIfAbsent(ctx context.Context, id string) (State, error) {
	if strings.TrimSpace(id) == "" {
		return State{}, ErrMissingID
	}
	fresh, err := json.Marshal(State{})
	if err != nil {
		return State{}, oops.In("session").Wrapf(err, "encode state")
	}
	created, err := s.rdb.SetNX(ctx, redisKey(id), fresh, 0).Result()
	if err != nil {
		return State{}, oops.In("session").With("conversation_id", id).Wrapf(err, "create state")
	}
	if created {
		return State{}, nil
	}
	state, ok, err := s.Get(ctx, id)
	if err != nil {
		return State{}, err
	}
	if !ok {
		// deleted between SETNX and GET; treat as new
		return State{}, nil
	}
	return state, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, state State) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	data, err := json.Marshal(state)
	if err != nil {
		return oops.In("session").Wrapf(err, "encode state")
	}
	if err := s.rdb.Set(ctx, redisKey(id), data, 0).Err(); err != nil {
		return oops.In("session").With("conversation_id", id).Wrapf(err, "persist state")
	}
	return nil
}

func decodeState(data []byte) (State, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, oops.Wrapf(err, "decode state")
	}
	return state, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}
