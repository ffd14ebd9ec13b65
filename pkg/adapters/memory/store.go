package memory

import (
	"context"
	"sync"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// TranscriptStore implements ports.TranscriptStore in memory.
// Safe for concurrent use.
type TranscriptStore struct {
	mu   sync.RWMutex
	data map[string][]domain.TranscriptEntry
}

// NewTranscriptStore creates an empty in-memory transcript store.
func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{
		data: make(map[string][]domain.TranscriptEntry),
	}
}

// Append adds entries to the end of the flow's transcript.
func (s *TranscriptStore) Append(ctx context.Context, flowID string, entries ...domain.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[flowID] = append(s.data[flowID], entries...)
	return nil
}

// Load returns a copy of the flow's transcript so callers cannot mutate
// store state through the returned slice.
func (s *TranscriptStore) Load(ctx context.Context, flowID string) ([]domain.TranscriptEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.data[flowID]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	out := make([]domain.TranscriptEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Clear removes the flow's transcript.
func (s *TranscriptStore) Clear(ctx context.Context, flowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, flowID)
	return nil
}
