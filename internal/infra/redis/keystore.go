package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// KeyStore is a namespaced string key store. Two stores with different names
// on the same Client never see each other's keys.
type KeyStore struct {
	rdb       *redis.Client
	namespace string
	name      string
}

// NewKeyStore creates a key store called name.
func NewKeyStore(client *Client, name string) *KeyStore {
	return &KeyStore{rdb: client.rdb, namespace: client.namespace, name: name}
}

func (s *KeyStore) key(k string) string {
	return storeKey(s.namespace, s.name, k)
}

// Get returns the value stored under key.
func (s *KeyStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s failed: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key without expiry.
func (s *KeyStore) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %s failed: %w", key, err)
	}
	return nil
}

// Remove deletes keys. Missing keys are ignored.
func (s *KeyStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}

// Clear deletes every key of this store.
func (s *KeyStore) Clear(ctx context.Context) error {
	var cursor uint64
	pattern := storePattern(s.namespace, s.name)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("del failed: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
