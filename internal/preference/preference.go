package preference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
)

// KeyCurrentViewer stores the handle of the last chosen viewer.
const KeyCurrentViewer = "currentUser"

// Store is a small persistent key/value store for client preferences.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// FileStore keeps preferences in a JSON object on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore uses the JSON file at path, creating its directory if needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preference dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	prefs := map[string]string{}
	if len(data) == 0 {
		return prefs, nil
	}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return prefs, nil
}

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := prefs[key]
	return v, ok, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, err := s.load()
	if err != nil {
		return err
	}
	prefs[key] = value

	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// RedisStore keeps preferences in a Redis hash.
type RedisStore struct {
	client *redis.Client
	hash   string
}

// NewRedisStore stores preferences under hash.
func NewRedisStore(client *redis.Client, hash string) *RedisStore {
	return &RedisStore{client: client, hash: hash}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get preference from redis: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return fmt.Errorf("failed to set preference in redis: %w", err)
	}
	return nil
}
