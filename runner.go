package canvasflow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// Runner drives an interactive debug run over provided IO. This allows for
// easy testing and integration with different frontends (CLI, TUI, etc).
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer

	// Poll is the interval at which streamed answer text is flushed to the
	// output. Zero means a sensible default.
	Poll time.Duration
}

// ContentRenderer transforms answer text before outputting it. This allows
// for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner with no IO attached. Callers set Input and
// Output explicitly (use os.Stdin / os.Stdout).
func NewRunner() *Runner {
	return &Runner{}
}

// Run starts a debug run with the given inputs and loops until the session
// ends: streamed answer text is echoed as it arrives, and interrupts
// prompt the user for a reply ("ignore" skips, "exit" aborts).
func (r *Runner) Run(ctx context.Context, w *Workspace, inputs map[string]any) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lineReader := bufio.NewReader(r.Input)

	poll := r.Poll
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}

	if !r.Headless {
		fmt.Fprintf(r.Output, "--- debugging %s ---\n", w.FlowID())
	}

	if err := w.Run(ctx, inputs); err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	printed := 0
	flush := func() {
		answer := w.Answer()
		if len(answer) > printed {
			fmt.Fprint(r.Output, answer[printed:])
			printed = len(answer)
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Abort(context.WithoutCancel(ctx))
			return ctx.Err()
		case <-time.After(poll):
		}
		flush()

		switch w.SessionStatus() {
		case domain.SessionRunning:
			continue

		case domain.SessionInterrupted:
			state := w.Interrupt()
			if state == nil {
				continue
			}
			if err := r.prompt(ctx, w, lineReader, state); err != nil {
				return err
			}
			printed = 0

		case domain.SessionIdle:
			flush()
			if final := w.Answer(); final != "" && r.Renderer != nil {
				if rendered, err := r.Renderer(final); err == nil {
					fmt.Fprintf(r.Output, "\r%s", strings.TrimSpace(rendered))
				}
			}
			fmt.Fprintln(r.Output)
			return nil
		}
	}
}

// prompt shows the interrupt question and feeds the user's reply back into
// the session.
func (r *Runner) prompt(ctx context.Context, w *Workspace, lineReader *bufio.Reader, state *domain.InterruptState) error {
	if state.Content != "" {
		fmt.Fprintln(r.Output, "\n"+state.Content)
	}
	for _, opt := range state.Options {
		fmt.Fprintf(r.Output, "  [%s] %s\n", opt.ID, opt.Label)
	}
	if !state.NeedReply {
		return w.Ignore(ctx)
	}

	fmt.Fprint(r.Output, "> ")
	text, err := lineReader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return w.Abort(ctx)
		}
		return fmt.Errorf("input error: %w", err)
	}
	text = strings.TrimSpace(text)

	switch text {
	case "exit", "quit":
		fmt.Fprintln(r.Output, "Bye!")
		return w.Abort(ctx)
	case "ignore":
		return w.Ignore(ctx)
	default:
		// An option id counts as picking that option's value.
		for _, opt := range state.Options {
			if text == opt.ID {
				return w.Resume(ctx, opt.Value)
			}
		}
		return w.Resume(ctx, text)
	}
}
