// Package redisstore keeps documents as JSON strings in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mrlokans/healthbook/internal/config"
	"github.com/mrlokans/healthbook/internal/docstore"
)

type Store struct {
	client *redis.Client
	prefix string
}

// Connect opens a client from configuration and verifies the server answers.
func Connect(cfg config.Store) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// New creates a Redis-backed document store. Keys are namespaced with prefix.
func New(client *redis.Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
	}
}

func (s *Store) key(collection, key string) string {
	return s.prefix + collection + "/" + key
}

func (s *Store) WriteDocument(ctx context.Context, collection, key string, value any) error {
	if err := docstore.Validate(collection, key); err != nil {
		return &docstore.Error{Op: "write", Collection: collection, Key: key, Err: err}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return &docstore.Error{Op: "encode", Collection: collection, Key: key, Err: err}
	}

	if err := s.client.Set(ctx, s.key(collection, key), data, 0).Err(); err != nil {
		return &docstore.Error{Op: "write", Collection: collection, Key: key, Err: err}
	}
	return nil
}

// Read decodes a stored document into dst. It reports false if the document does not exist.
// Documents are write-only for the application; Read serves tests and operators.
func (s *Store) Read(ctx context.Context, collection, key string, dst any) (bool, error) {
	val, err := s.client.Get(ctx, s.key(collection, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, &docstore.Error{Op: "read", Collection: collection, Key: key, Err: err}
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return false, &docstore.Error{Op: "decode", Collection: collection, Key: key, Err: err}
	}
	return true, nil
}

// Ping checks that the server answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
