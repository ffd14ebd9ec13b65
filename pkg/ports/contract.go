package ports

import (
	"context"
	"testing"
	"time"

	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTranscriptStoreContract runs a suite of tests verifying that a
// TranscriptStore implementation adheres to the interface contract.
func RunTranscriptStoreContract(t *testing.T, store TranscriptStore) {
	ctx := context.Background()
	flowID := "contract-test-flow-" + time.Now().Format("20060102150405")

	t.Run("Append and Load", func(t *testing.T) {
		ask := domain.TranscriptEntry{
			Role:   domain.RoleAsk,
			Inputs: map[string]any{domain.KeyUserInput: "hello"},
			At:     time.Now().UTC(),
		}
		answer := domain.TranscriptEntry{
			Role:    domain.RoleAnswer,
			Content: "hi there",
			At:      time.Now().UTC(),
		}

		require.NoError(t, store.Append(ctx, flowID, ask))
		require.NoError(t, store.Append(ctx, flowID, answer))

		entries, err := store.Load(ctx, flowID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, domain.RoleAsk, entries[0].Role)
		assert.Equal(t, "hello", entries[0].Inputs[domain.KeyUserInput])
		assert.Equal(t, domain.RoleAnswer, entries[1].Role)
		assert.Equal(t, "hi there", entries[1].Content)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+flowID)
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, flowID, domain.TranscriptEntry{
			Role: domain.RoleDivider, At: time.Now().UTC(),
		}))

		require.NoError(t, store.Clear(ctx, flowID))

		_, err := store.Load(ctx, flowID)
		assert.ErrorIs(t, err, domain.ErrFlowNotFound, "Load after Clear should return ErrFlowNotFound")
	})
}
