package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasflow/canvasflow/pkg/adapters/redis"
	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/ports"
)

func transcriptEntry(content string) domain.TranscriptEntry {
	return domain.TranscriptEntry{
		Role:    domain.RoleAnswer,
		Content: content,
		At:      time.Now().UTC(),
	}
}

func newTestStore(t *testing.T, opts ...redis.Option) (*redis.TranscriptStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	store := redis.NewFromClient(client, opts...)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisTranscriptStore_Contract(t *testing.T) {
	store, _ := newTestStore(t)
	ports.RunTranscriptStoreContract(t, store)
}

func TestRedisTranscriptStore_TTL(t *testing.T) {
	store, mr := newTestStore(t, redis.WithTTL(time.Minute), redis.WithPrefix("test:transcript:"))
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "flow-1", transcriptEntry("first")))
	assert.True(t, mr.Exists("test:transcript:flow-1"))
	assert.Equal(t, time.Minute, mr.TTL("test:transcript:flow-1"))

	// Each append refreshes the expiration window.
	mr.FastForward(30 * time.Second)
	require.NoError(t, store.Append(ctx, "flow-1", transcriptEntry("second")))
	assert.Equal(t, time.Minute, mr.TTL("test:transcript:flow-1"))

	mr.FastForward(2 * time.Minute)
	_, err := store.Load(ctx, "flow-1")
	assert.Error(t, err)
}
