package debug

import (
	"context"
	"time"

	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/ports"
)

// OnEvent folds one protocol event into the session. It is the single
// dispatch point for the stream consumer and is exported so scripted
// streamers and tests can drive the state machine directly.
func (s *Session) OnEvent(ctx context.Context, evt ports.RunEvent) {
	s.mu.Lock()
	if s.status == domain.SessionIdle {
		s.mu.Unlock()
		return
	}
	if evt.ID != "" {
		s.turnID = evt.ID
	}
	s.mu.Unlock()

	if evt.Code != domain.CodeOK {
		s.fail(ctx, evt)
		return
	}

	if evt.WorkflowStep != nil && evt.WorkflowStep.Node != nil {
		s.applyNodeStep(ctx, evt)
	}

	if s.sinkEvent(evt) {
		if delta := evt.ContentDelta(); delta != "" {
			s.appendAnswer(delta)
		}
		if delta := evt.ReasoningDelta(); delta != "" {
			s.appendReasoning(delta)
		}
	}

	switch evt.TopFinish() {
	case domain.FinishInterrupt:
		s.handleInterrupt(ctx, evt)
	case domain.FinishStop:
		s.end(ctx)
	}
}

// fail handles a non-zero protocol code. A content-audit rejection replaces
// the entire streamed answer with the moderation message; any other failure
// keeps what already streamed and records the message. Both end the session.
func (s *Session) fail(ctx context.Context, evt ports.RunEvent) {
	if evt.Code == domain.CodeContentAudit {
		s.setAnswer(evt.Message)
	} else if evt.Message != "" {
		s.appendAnswer(evt.Message)
	}
	s.logger.Warn("run failed", "flow", s.store.FlowID(),
		"code", evt.Code, "message", evt.Message)
	s.cancelRunningNodes(ctx)
	s.end(ctx)
}

// sinkEvent reports whether the event's streamed text belongs on the
// transcript: content addressed to a sink node, or content with no node
// attribution at all.
func (s *Session) sinkEvent(evt ports.RunEvent) bool {
	if evt.WorkflowStep == nil || evt.WorkflowStep.Node == nil {
		return true
	}
	n := s.store.Node(evt.WorkflowStep.Node.ID)
	return n != nil && n.IsSink()
}

// applyNodeStep advances one node's per-run state machine. While the node
// streams it stays running and accumulates partial text; a finish reason
// freezes the step payload into the node's debug result.
func (s *Session) applyNodeStep(ctx context.Context, evt ports.RunEvent) {
	step := evt.WorkflowStep.Node
	prev := s.store.Node(step.ID)
	if prev == nil {
		s.logger.Warn("step for unknown node ignored",
			"flow", s.store.FlowID(), "node", step.ID)
		return
	}

	if step.FinishReason == nil {
		entered := prev.Status != domain.NodeRunning
		_ = s.store.Annotate(step.ID, func(n *domain.Node) {
			n.Status = domain.NodeRunning
			if n.Debug == nil {
				n.Debug = &domain.DebugResult{}
			}
			n.Debug.Answer += evt.ContentDelta()
			n.Debug.Reasoning += evt.ReasoningDelta()
		})
		s.mu.Lock()
		s.activeNode = step.ID
		s.mu.Unlock()
		if entered {
			s.emitNodeStatus(ctx, step.ID, prev.Type, domain.NodeRunning)
		}
		return
	}

	status := domain.NodeSuccess
	if *step.FinishReason == ports.NodeFinishFailed {
		status = domain.NodeFailed
	}
	_ = s.store.Annotate(step.ID, func(n *domain.Node) {
		n.Status = status
		if n.Debug == nil {
			n.Debug = &domain.DebugResult{}
		}
		n.Debug.ElapsedSeconds = step.ExecutedTime
		if step.Usage != nil {
			n.Debug.TotalTokens = step.Usage.TotalTokens
		}
		n.Debug.Inputs = step.Inputs
		n.Debug.Outputs = step.Outputs
		n.Debug.ErrorOutputs = step.ErrorOutputs
		if status == domain.NodeFailed {
			n.Debug.FailReason = evt.Message
		}
		if step.Ext != nil {
			n.Debug.RawOutput = step.Ext.RawOutput
			n.Debug.AnswerMode = step.Ext.AnswerMode
		}
		n.Debug.Answer += evt.ContentDelta()
		n.Debug.Reasoning += evt.ReasoningDelta()
	})
	s.emitNodeStatus(ctx, step.ID, prev.Type, status)
}

// handleInterrupt pauses the session, recording the event id the resume
// endpoint needs plus the interrupting node's prompt and reply options.
func (s *Session) handleInterrupt(ctx context.Context, evt ports.RunEvent) {
	state := &domain.InterruptState{}
	if evt.EventData != nil {
		state.EventID = evt.EventData.EventID
		state.NeedReply = evt.EventData.NeedReply
		if v := evt.EventData.Value; v != nil {
			state.Content = v.Content
			state.ContentType = v.Type
			for _, o := range v.Option {
				state.Options = append(state.Options, domain.ReplyOption{
					ID: o.ID, Label: o.Label, Value: o.Value,
				})
			}
		}
	}

	s.mu.Lock()
	state.NodeID = s.activeNode
	s.status = domain.SessionInterrupted
	s.interrupt = state
	s.mu.Unlock()

	if s.hooks.OnInterrupt != nil {
		s.hooks.OnInterrupt(ctx, &domain.InterruptEvent{
			Timestamp: time.Now(),
			FlowID:    s.store.FlowID(),
			State:     state,
		})
	}
	if !s.autonomous && s.hooks.OnFocusNode != nil && state.NodeID != "" {
		s.hooks.OnFocusNode(ctx, state.NodeID)
	}
	s.emitSession(ctx, domain.SessionInterrupted, false)
}
