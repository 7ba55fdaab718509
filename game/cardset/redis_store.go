package cardset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/service"
)

const (
	redisKeyPrefix = "memorymatch:cardset:"
	redisIndexKey  = "memorymatch:cardsets"
)

func redisKey(name string) string {
	return redisKeyPrefix + name
}

// RedisStore keeps card set documents as JSON strings in Redis
type RedisStore struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewRedisStore wraps an existing client
func NewRedisStore(rdb *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		rdb:    rdb,
		logger: logger.With("component", "cardset", "backend", "redis"),
	}
}

// NewRedisStoreFromURL connects to redisURL and checks the connection
func NewRedisStoreFromURL(ctx context.Context, redisURL string, logger *slog.Logger) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis URL required for redis card set store")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(rdb, logger), nil
}

// Get loads a card set by name
func (s *RedisStore) Get(ctx context.Context, name string) (*engine.CardSet, error) {
	data, err := s.rdb.Get(ctx, redisKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %q", ErrCardSetNotFound, name)
		}
		return nil, fmt.Errorf("redis get card set: %w", err)
	}

	var set engine.CardSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse card set %s: %w", name, err)
	}
	set.Name = name
	return &set, nil
}

// Create stores the document with SETNX so a taken name is never overwritten
func (s *RedisStore) Create(ctx context.Context, set *engine.CardSet) error {
	if err := engine.ValidateCardSet(set); err != nil {
		return err
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal card set: %w", err)
	}

	created, err := s.rdb.SetNX(ctx, redisKey(set.Name), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx card set: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: %q", ErrCardSetExists, set.Name)
	}
	if err := s.rdb.SAdd(ctx, redisIndexKey, set.Name).Err(); err != nil {
		return fmt.Errorf("redis index card set: %w", err)
	}

	s.logger.Info("card set created", "name", set.Name, "images", len(set.Images))
	return nil
}

// List returns every indexed card set, sorted by name
func (s *RedisStore) List(ctx context.Context) ([]*service.CardSetInfo, error) {
	names, err := s.rdb.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list card sets: %w", err)
	}
	sort.Strings(names)

	infos := make([]*service.CardSetInfo, 0, len(names))
	for _, name := range names {
		set, err := s.Get(ctx, name)
		if err != nil {
			if errors.Is(err, ErrCardSetNotFound) {
				// Document expired or was removed behind our back
				s.rdb.SRem(ctx, redisIndexKey, name)
				continue
			}
			s.logger.Warn("skipping card set", "name", name, "error", err)
			continue
		}
		infos = append(infos, service.NewCardSetInfo(set))
	}
	return infos, nil
}

// Delete removes a card set document and its index entry
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	pipe := s.rdb.TxPipeline()
	del := pipe.Del(ctx, redisKey(name))
	pipe.SRem(ctx, redisIndexKey, name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete card set: %w", err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %q", ErrCardSetNotFound, name)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
