package debug

import (
	"context"
	"errors"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// appendEntryLocked appends an entry. Caller holds s.mu.
func (s *Session) appendEntryLocked(e domain.TranscriptEntry) {
	s.transcript = append(s.transcript, e)
}

// answerLocked returns the current turn's answer entry, or nil when the
// transcript does not end in an open turn. Caller holds s.mu.
func (s *Session) answerLocked() *domain.TranscriptEntry {
	for i := len(s.transcript) - 1; i >= 0; i-- {
		switch s.transcript[i].Role {
		case domain.RoleAnswer:
			return &s.transcript[i]
		case domain.RoleDivider:
			return nil
		}
	}
	return nil
}

func (s *Session) appendAnswer(delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.answerLocked(); e != nil {
		e.Content += delta
	}
}

func (s *Session) appendReasoning(delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.answerLocked(); e != nil {
		e.Reasoning += delta
	}
}

func (s *Session) setAnswer(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.answerLocked(); e != nil {
		e.Content = content
	}
}

// Answer returns the current turn's streamed answer text.
func (s *Session) Answer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.answerLocked(); e != nil {
		return e.Content
	}
	return ""
}

// LoadHistory seeds the transcript from the persisted conversation history,
// if a transcript store is configured. A flow with no history is not an
// error. Call before the first run; entries already present win.
func (s *Session) LoadHistory(ctx context.Context) error {
	if s.transcripts == nil {
		return nil
	}
	entries, err := s.transcripts.Load(ctx, s.store.FlowID())
	if errors.Is(err, domain.ErrFlowNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.transcript) > 0 {
		return nil
	}
	s.transcript = entries
	s.flushed = len(entries)
	return nil
}

// ClearHistory drops the in-memory transcript and the persisted history.
func (s *Session) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	s.transcript = nil
	s.flushed = 0
	s.mu.Unlock()
	if s.transcripts == nil {
		return nil
	}
	return s.transcripts.Clear(ctx, s.store.FlowID())
}
