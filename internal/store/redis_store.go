package store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements DocumentStore on Redis. A document is a hash at
// key "<project>:<collection>:<docID>", so the project id namespaces every
// key and field-level merges map directly onto HSET.
type RedisStore struct {
	client    *redis.Client
	projectID string
	logger    *zap.Logger
}

// NewRedisStore connects to the store and verifies liveness with a ping.
// With the emulator flag set the address is redirected to the emulator
// host and authentication is skipped.
func NewRedisStore(ctx context.Context, cfg Config, logger *zap.Logger) (*RedisStore, error) {
	password := ""
	if !cfg.UseEmulator && cfg.CredentialsPath != "" {
		data, err := os.ReadFile(cfg.CredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		password = strings.TrimSpace(string(data))
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.address(),
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to store at %s: %w", cfg.address(), err)
	}

	logger.Info("Connected to state store",
		zap.String("addr", cfg.address()),
		zap.String("project_id", cfg.ProjectID),
		zap.Bool("emulator", cfg.UseEmulator))

	return &RedisStore{
		client:    client,
		projectID: cfg.ProjectID,
		logger:    logger,
	}, nil
}

func (s *RedisStore) key(collection, docID string) string {
	return fmt.Sprintf("%s:%s:%s", s.projectID, collection, docID)
}

// Set replaces the document at collection/docID
func (s *RedisStore) Set(ctx context.Context, collection, docID string, doc Document) error {
	key := s.key(collection, docID)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]interface{}(doc))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write document %s: %w", key, err)
	}
	return nil
}

// Merge upserts only the given fields of the document
func (s *RedisStore) Merge(ctx context.Context, collection, docID string, fields Document) error {
	key := s.key(collection, docID)
	if err := s.client.HSet(ctx, key, map[string]interface{}(fields)).Err(); err != nil {
		return fmt.Errorf("failed to merge document %s: %w", key, err)
	}
	return nil
}

// Get retrieves a document; ErrNotFound when it does not exist
func (s *RedisStore) Get(ctx context.Context, collection, docID string) (Document, error) {
	key := s.key(collection, docID)
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	doc := make(Document, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	return doc, nil
}

// Delete removes a document; deleting a missing document is not an error
func (s *RedisStore) Delete(ctx context.Context, collection, docID string) error {
	key := s.key(collection, docID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return nil
}

// List returns every document in the collection
func (s *RedisStore) List(ctx context.Context, collection string) ([]Document, error) {
	pattern := fmt.Sprintf("%s:%s:*", s.projectID, collection)

	var docs []Document
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		fields, err := s.client.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read document %s: %w", iter.Val(), err)
		}
		if len(fields) == 0 {
			// Deleted between SCAN and HGETALL
			continue
		}
		doc := make(Document, len(fields))
		for k, v := range fields {
			doc[k] = v
		}
		docs = append(docs, doc)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan collection %s: %w", collection, err)
	}
	return docs, nil
}

// Ping checks the store connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
