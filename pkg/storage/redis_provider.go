package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
)

// RedisProviderConfig contains configuration for the Redis provider
type RedisProviderConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	// Timeout bounds each Redis round trip. Zero means five seconds.
	Timeout time.Duration
}

// RedisProvider implements StorageProvider on Redis so several hosts can
// share one run log. Keys:
//
//	<prefix>logs       list of JSON LogEntry, RPUSH per append
//	<prefix>status     JSON RunStatus, replaced with SET
//	<prefix>artifacts  hash of artifact name to content
type RedisProvider struct {
	client    *redis.Client
	logs      *RedisLogStore
	artifacts *RedisArtifactStore
}

// NewRedisProvider creates a Redis backed provider
func NewRedisProvider(config RedisProviderConfig) (*RedisProvider, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return newRedisProviderWithClient(client, config.KeyPrefix, config.Timeout), nil
}

func newRedisProviderWithClient(client *redis.Client, prefix string, timeout time.Duration) *RedisProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	base := redisKeys{client: client, prefix: prefix, timeout: timeout}
	return &RedisProvider{
		client:    client,
		logs:      &RedisLogStore{redisKeys: base},
		artifacts: &RedisArtifactStore{redisKeys: base},
	}
}

// Initialize checks the connection
func (p *RedisProvider) Initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.logs.timeout)
	defer cancel()
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// Close closes the client
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// GetLogStore returns the run log and status store
func (p *RedisProvider) GetLogStore() LogStore {
	return p.logs
}

// GetArtifactStore returns the output artifact store
func (p *RedisProvider) GetArtifactStore() ArtifactStore {
	return p.artifacts
}

type redisKeys struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

func (k redisKeys) key(name string) string {
	return k.prefix + name
}

func (k redisKeys) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), k.timeout)
}

// RedisLogStore implements LogStore on a Redis list and string key
type RedisLogStore struct {
	redisKeys
}

// AppendEntry pushes the encoded entry onto the log list
func (s *RedisLogStore) AppendEntry(entry models.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.client.RPush(ctx, s.key("logs"), data).Err(); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// ReadEntries returns the last limit entries
func (s *RedisLogStore) ReadEntries(limit int) ([]models.LogEntry, error) {
	if limit <= 0 {
		return []models.LogEntry{}, nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	raw, err := s.client.LRange(ctx, s.key("logs"), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read run log: %w", err)
	}
	entries := make([]models.LogEntry, 0, len(raw))
	for _, item := range raw {
		var entry models.LogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// WriteStatus replaces the status key
func (s *RedisLogStore) WriteStatus(status models.RunStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.client.Set(ctx, s.key("status"), data, 0).Err(); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

// ReadStatus loads the status key
func (s *RedisLogStore) ReadStatus() (models.RunStatus, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	data, err := s.client.Get(ctx, s.key("status")).Result()
	if errors.Is(err, redis.Nil) {
		return models.RunStatus{}, false, nil
	}
	if err != nil {
		return models.RunStatus{}, false, fmt.Errorf("read status: %w", err)
	}
	var status models.RunStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return models.RunStatus{}, false, fmt.Errorf("parse status: %w", err)
	}
	return status, true, nil
}

// Truncate deletes the log list
func (s *RedisLogStore) Truncate() error {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.client.Del(ctx, s.key("logs")).Err(); err != nil {
		return fmt.Errorf("truncate run log: %w", err)
	}
	return nil
}

// RedisArtifactStore implements ArtifactStore on a Redis hash
type RedisArtifactStore struct {
	redisKeys
}

// Save stores the artifact in the hash
func (s *RedisArtifactStore) Save(name, content string) (string, error) {
	if err := ValidateArtifactName(name); err != nil {
		return "", err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.client.HSet(ctx, s.key("artifacts"), name, content).Err(); err != nil {
		return "", fmt.Errorf("save artifact %s: %w", name, err)
	}
	return "redis://" + s.key("artifacts") + "/" + name, nil
}

// Read returns the artifact content
func (s *RedisArtifactStore) Read(name string) (string, error) {
	if err := ValidateArtifactName(name); err != nil {
		return "", err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	content, err := s.client.HGet(ctx, s.key("artifacts"), name).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", name, err)
	}
	return content, nil
}

// List returns the artifact names, sorted
func (s *RedisArtifactStore) List() ([]string, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	names, err := s.client.HKeys(ctx, s.key("artifacts")).Result()
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Clear deletes the artifact hash
func (s *RedisArtifactStore) Clear() error {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.client.Del(ctx, s.key("artifacts")).Err(); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	return nil
}
