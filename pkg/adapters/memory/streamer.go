package memory

import (
	"context"
	"sync"
	"time"

	"github.com/canvasflow/canvasflow/pkg/ports"
)

// Streamer implements ports.RunStreamer with scripted event turns. The
// first Run plays the first turn; each Resume plays the next. Tests and the
// CLI's offline mode use it in place of the remote engine.
type Streamer struct {
	mu      sync.Mutex
	turns   [][]ports.RunEvent
	next    int
	delay   time.Duration
	runs    []ports.RunRequest
	resumes []ports.ResumeRequest
}

// NewStreamer creates a streamer that plays the given turns in order.
func NewStreamer(turns ...[]ports.RunEvent) *Streamer {
	return &Streamer{turns: turns}
}

// SetDelay inserts a pause before each emitted event, approximating a live
// stream.
func (s *Streamer) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Run records the request and plays the next scripted turn.
func (s *Streamer) Run(ctx context.Context, req ports.RunRequest) (<-chan ports.RunEvent, error) {
	s.mu.Lock()
	s.runs = append(s.runs, req)
	s.mu.Unlock()
	return s.play(ctx), nil
}

// Resume records the request and plays the next scripted turn. An abort
// notification gets an immediately closed stream.
func (s *Streamer) Resume(ctx context.Context, req ports.ResumeRequest) (<-chan ports.RunEvent, error) {
	s.mu.Lock()
	s.resumes = append(s.resumes, req)
	s.mu.Unlock()

	if req.EventType == ports.ResumeAbort {
		ch := make(chan ports.RunEvent)
		close(ch)
		return ch, nil
	}
	return s.play(ctx), nil
}

func (s *Streamer) play(ctx context.Context) <-chan ports.RunEvent {
	s.mu.Lock()
	var turn []ports.RunEvent
	if s.next < len(s.turns) {
		turn = s.turns[s.next]
		s.next++
	}
	delay := s.delay
	s.mu.Unlock()

	ch := make(chan ports.RunEvent)
	go func() {
		defer close(ch)
		for _, evt := range turn {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// Runs returns the recorded run requests.
func (s *Streamer) Runs() []ports.RunRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.RunRequest, len(s.runs))
	copy(out, s.runs)
	return out
}

// Resumes returns the recorded resume requests.
func (s *Streamer) Resumes() []ports.ResumeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.ResumeRequest, len(s.resumes))
	copy(out, s.resumes)
	return out
}
