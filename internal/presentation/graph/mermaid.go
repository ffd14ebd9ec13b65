// Package graph renders flow topology as Mermaid flowchart syntax, for
// documentation exports and quick terminal inspection of a canvas.
package graph

import (
	"fmt"
	"strings"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// Overlay carries per-run state to visualize on top of the topology.
type Overlay struct {
	Statuses map[string]domain.NodeStatus
}

// GenerateMermaid produces a Mermaid flowchart from the flow's nodes and
// edges. Node shapes follow semantics:
//   - start / iteration-start: ((circle))
//   - end: (((double circle)))
//   - branch / intent: {rhombus}
//   - code / plugin: [[subroutine]]
//   - message: [/parallelogram/]
//   - everything else: [rectangle]
//
// Iteration bodies render as nested subgraphs. Exception edges are dotted;
// other named ports label their arrow. Overlay statuses style nodes by
// run outcome.
func GenerateMermaid(nodes []*domain.Node, edges []domain.Edge, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	byParent := make(map[string][]*domain.Node)
	for _, n := range nodes {
		byParent[n.ParentID] = append(byParent[n.ParentID], n)
	}

	for _, n := range byParent[""] {
		writeNode(&sb, n, "    ")
		if n.Type == domain.NodeTypeIteration {
			sb.WriteString(fmt.Sprintf("    subgraph %s_body[\"%s body\"]\n", mermaidID(n.ID), title(n)))
			for _, child := range byParent[n.ID] {
				writeNode(&sb, child, "        ")
			}
			sb.WriteString("    end\n")
		}
	}

	for _, e := range edges {
		sb.WriteString(fmt.Sprintf("    %s %s %s\n",
			mermaidID(e.Source), arrow(e), mermaidID(e.Target)))
	}

	if overlay != nil && len(overlay.Statuses) > 0 {
		sb.WriteString("\n    %% Run overlay\n")
		sb.WriteString("    classDef running fill:#fff9c4,stroke:#f9a825,stroke-width:3px,color:#000;\n")
		sb.WriteString("    classDef success fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#c62828,stroke-width:3px,color:#000;\n")
		sb.WriteString("    classDef cancelled fill:#eceff1,stroke:#607d8b,stroke-width:2px,color:#000;\n")
		for _, n := range nodes {
			status, ok := overlay.Statuses[n.ID]
			if !ok {
				continue
			}
			switch status {
			case domain.NodeRunning, domain.NodeSuccess, domain.NodeFailed, domain.NodeCancelled:
				sb.WriteString(fmt.Sprintf("    class %s %s;\n", mermaidID(n.ID), status))
			}
		}
	}

	return sb.String()
}

// StatusOverlay collects the current transient statuses of a node set into
// an overlay. Nodes without run state are left out.
func StatusOverlay(nodes []*domain.Node) *Overlay {
	o := &Overlay{Statuses: make(map[string]domain.NodeStatus)}
	for _, n := range nodes {
		if n.Status != "" && n.Status != domain.NodeIdle {
			o.Statuses[n.ID] = n.Status
		}
	}
	if len(o.Statuses) == 0 {
		return nil
	}
	return o
}

func writeNode(sb *strings.Builder, n *domain.Node, indent string) {
	opener, closer := "[", "]"
	switch n.Type {
	case domain.NodeTypeStart, domain.NodeTypeIterationStart:
		opener, closer = "((", "))"
	case domain.NodeTypeEnd:
		opener, closer = "(((", ")))"
	case domain.NodeTypeBranch, domain.NodeTypeIntent:
		opener, closer = "{", "}"
	case domain.NodeTypeCode, domain.NodeTypePlugin:
		opener, closer = "[[", "]]"
	case domain.NodeTypeMessage:
		opener, closer = "[/", "/]"
	}
	sb.WriteString(fmt.Sprintf("%s%s%s\"%s\"%s\n", indent, mermaidID(n.ID), opener, title(n), closer))
}

func arrow(e domain.Edge) string {
	if e.SourcePort == domain.PortException {
		return "-. \"exception\" .->"
	}
	if e.SourcePort != "" {
		label := strings.ReplaceAll(e.SourcePort, "\"", "'")
		return fmt.Sprintf("-- \"%s\" -->", label)
	}
	return "-->"
}

func title(n *domain.Node) string {
	t := n.Title
	if t == "" {
		t = n.Type
	}
	return strings.ReplaceAll(t, "\"", "'")
}

func mermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
