package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// NewRenderer returns a function that renders markdown answer text using
// glamour, auto-detecting light/dark background.
func NewRenderer() func(string) (string, error) {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// FormatTranscript renders a conversation history for terminal display:
// ask turns dimmed, answers as markdown, dividers as a rule.
func FormatTranscript(entries []domain.TranscriptEntry) string {
	p := termenv.ColorProfile()
	render := NewRenderer()

	var b strings.Builder
	for _, e := range entries {
		switch e.Role {
		case domain.RoleAsk:
			content := e.Content
			if content == "" {
				if v, ok := e.Inputs[domain.KeyUserInput].(string); ok {
					content = v
				}
			}
			ask := termenv.String("> " + content).Foreground(p.Color("#818cf8"))
			fmt.Fprintln(&b, ask)
		case domain.RoleAnswer:
			if out, err := render(e.Content); err == nil {
				b.WriteString(out)
			} else {
				fmt.Fprintln(&b, e.Content)
			}
		case domain.RoleDivider:
			rule := termenv.String(strings.Repeat("-", 40)).Faint()
			fmt.Fprintln(&b, rule)
		}
	}
	return b.String()
}
