package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// FlowService implements ports.FlowService and ports.FlowLoader in memory.
// It backs tests and the CLI's offline mode, with scriptable build and
// suggestion outcomes.
type FlowService struct {
	mu          sync.RWMutex
	flows       map[string]*domain.Flow
	saves       int
	buildErr    error
	suggestions []string
}

// NewFlowService creates an empty in-memory flow service.
func NewFlowService() *FlowService {
	return &FlowService{
		flows: make(map[string]*domain.Flow),
	}
}

// SaveFlow stores a deep copy of the flow and stamps it with the save time.
func (s *FlowService) SaveFlow(ctx context.Context, flow *domain.Flow) (time.Time, error) {
	now := time.Now().UTC()
	cp := flow.Clone()
	cp.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[cp.ID] = cp
	s.saves++
	return now, nil
}

// BuildFlow returns the scripted build outcome (nil unless SetBuildError was
// called).
func (s *FlowService) BuildFlow(ctx context.Context, flow *domain.Flow) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildErr
}

// Suggestions returns the scripted follow-up questions.
func (s *FlowService) Suggestions(ctx context.Context, flowID, lastAnswer string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.suggestions))
	copy(out, s.suggestions)
	return out, nil
}

// LoadFlow returns a copy of a previously saved flow.
func (s *FlowService) LoadFlow(ctx context.Context, id string) (*domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flow, ok := s.flows[id]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	return flow.Clone(), nil
}

// ListFlows returns the ids of saved flows in stable order.
func (s *FlowService) ListFlows(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.flows))
	for id := range s.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Saves reports how many SaveFlow calls succeeded.
func (s *FlowService) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// SetBuildError scripts the outcome of subsequent BuildFlow calls.
func (s *FlowService) SetBuildError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildErr = err
}

// SetSuggestions scripts the follow-up questions returned by Suggestions.
func (s *FlowService) SetSuggestions(qs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions = qs
}
