package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// TranscriptStore implements ports.TranscriptStore using a Redis list per
// flow, so multiple workspace replicas share one conversation history.
type TranscriptStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*TranscriptStore)

// WithTTL sets the expiration refreshed on every append. Zero keeps
// transcripts forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *TranscriptStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for transcripts.
func WithPrefix(prefix string) Option {
	return func(s *TranscriptStore) {
		s.prefix = prefix
	}
}

// New creates a Redis transcript store with its own client.
func New(address, password string, db int, opts ...Option) *TranscriptStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis transcript store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *TranscriptStore {
	store := &TranscriptStore{
		client: client,
		prefix: "canvasflow:transcript:",
		ttl:    0,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *TranscriptStore) key(flowID string) string {
	return s.prefix + flowID
}

// Append pushes entries onto the end of the flow's transcript list.
func (s *TranscriptStore) Append(ctx context.Context, flowID string, entries ...domain.TranscriptEntry) error {
	if len(entries) == 0 {
		return nil
	}

	values := make([]any, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal transcript entry: %w", err)
		}
		values = append(values, data)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.key(flowID), values...)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(flowID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to redis: %w", err)
	}
	return nil
}

// Load returns the flow's transcript in append order.
func (s *TranscriptStore) Load(ctx context.Context, flowID string) ([]domain.TranscriptEntry, error) {
	raw, err := s.client.LRange(ctx, s.key(flowID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}
	if len(raw) == 0 {
		return nil, domain.ErrFlowNotFound
	}

	entries := make([]domain.TranscriptEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.TranscriptEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transcript entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Clear removes the flow's transcript.
func (s *TranscriptStore) Clear(ctx context.Context, flowID string) error {
	return s.client.Del(ctx, s.key(flowID)).Err()
}

// Close closes the redis client.
func (s *TranscriptStore) Close() error {
	return s.client.Close()
}
