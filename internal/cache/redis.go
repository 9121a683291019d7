package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	normalized := strings.TrimSpace(prefix)
	if normalized == "" {
		normalized = "attendance:cache"
	}
	return &RedisStore{
		client: client,
		prefix: normalized,
	}
}

func (s *RedisStore) Get(ctx context.Context, namespace, key string) (Entry, bool, error) {
	namespace, key, err := normalizeIdentity(namespace, key)
	if err != nil {
		return Entry{}, false, err
	}
	raw, err := s.client.HGet(ctx, s.namespaceKey(namespace), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("cache get: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, true, nil
}

func (s *RedisStore) Put(ctx context.Context, namespace, key string, entry Entry) error {
	namespace, key, err := normalizeIdentity(namespace, key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.client.HSet(ctx, s.namespaceKey(namespace), key, raw).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	if err := s.client.SAdd(ctx, s.indexKey(), namespace).Err(); err != nil {
		return fmt.Errorf("cache index put: %w", err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.namespaceKey(namespace)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Namespaces(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache namespaces: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisStore) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := s.client.Del(ctx, s.namespaceKey(namespace)).Err(); err != nil {
		return fmt.Errorf("cache delete namespace: %w", err)
	}
	if err := s.client.SRem(ctx, s.indexKey(), namespace).Err(); err != nil {
		return fmt.Errorf("cache index delete: %w", err)
	}
	return nil
}

func (s *RedisStore) namespaceKey(namespace string) string {
	return s.prefix + ":ns:" + namespace
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":namespaces"
}
