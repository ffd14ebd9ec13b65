package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/canvasflow/canvasflow"
	"github.com/canvasflow/canvasflow/pkg/domain"
)

// runWait bounds how long a run_flow/resume_run call blocks before
// reporting the session as still running.
const runWait = 2 * time.Minute

// RunResponse is the unified result of a run, resume or ignore tool call.
type RunResponse struct {
	Status    domain.SessionStatus   `json:"status" jsonschema_description:"Session state after the call"`
	Answer    string                 `json:"answer,omitempty" jsonschema_description:"Streamed answer text of the latest turn"`
	Interrupt *domain.InterruptState `json:"interrupt,omitempty" jsonschema_description:"Pause state when the run awaits a reply"`
	Nodes     []NodeResult           `json:"nodes,omitempty" jsonschema_description:"Per-node execution results"`
}

// NodeResult is one node's outcome in a run.
type NodeResult struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Status  domain.NodeStatus `json:"status"`
	Elapsed float64           `json:"elapsed_seconds,omitempty"`
	Fail    string            `json:"fail_reason,omitempty"`
}

// Server wraps a workspace and exposes it as an MCP server, so agent hosts
// can edit, validate and debug flows over stdio or SSE.
type Server struct {
	ws        *canvasflow.Workspace
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server over the given workspace.
func NewServer(ws *canvasflow.Workspace) *Server {
	s := &Server{
		ws:        ws,
		mcpServer: server.NewMCPServer("canvasflow-mcp", strings.TrimSpace(canvasflow.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: run_flow
	runTool := mcp.NewTool("run_flow",
		mcp.WithDescription("Start a debug run of the flow and wait for it to end or pause on a question."),
		mcp.WithString("inputs", mcp.Description("JSON object mapping start-node variable names to values")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRun))

	// TOOL: resume_run
	resumeTool := mcp.NewTool("resume_run",
		mcp.WithDescription("Answer the question an interrupted run is paused on."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Reply content")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(resumeTool, mcp.NewStructuredToolHandler(s.handleResume))

	// TOOL: abort_run
	s.mcpServer.AddTool(mcp.NewTool("abort_run",
		mcp.WithDescription("Abandon the current debug run."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.ws.Abort(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("abort failed: %v", err)), nil
		}
		return mcp.NewToolResultText("aborted"), nil
	})

	// TOOL: validate_flow
	s.mcpServer.AddTool(mcp.NewTool("validate_flow",
		mcp.WithDescription("Validate every node of the flow and report failures."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.ws.CheckAll(); err != nil {
			return mcp.NewToolResultText(err.Error()), nil
		}
		return mcp.NewToolResultText("all nodes valid"), nil
	})

	// TOOL: undo
	s.mcpServer.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the most recent graph edit."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.ws.Undo(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("undone"), nil
	})

	// TOOL: get_transcript
	s.mcpServer.AddTool(mcp.NewTool("get_transcript",
		mcp.WithDescription("Get the debug conversation history."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.ws.Transcript())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunResponse, error) {
	inputs := make(map[string]any)
	if inputsStr, ok := args["inputs"].(string); ok && inputsStr != "" {
		if err := json.Unmarshal([]byte(inputsStr), &inputs); err != nil {
			return RunResponse{}, fmt.Errorf("invalid inputs: %w", err)
		}
	}
	if err := s.ws.Run(ctx, inputs); err != nil {
		return RunResponse{}, fmt.Errorf("run failed: %w", err)
	}
	return s.await(ctx), nil
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunResponse, error) {
	content, _ := args["content"].(string)
	if err := s.ws.Resume(ctx, content); err != nil {
		return RunResponse{}, fmt.Errorf("resume failed: %w", err)
	}
	return s.await(ctx), nil
}

// await blocks until the session leaves the running state, then snapshots
// the outcome.
func (s *Server) await(ctx context.Context) RunResponse {
	deadline := time.Now().Add(runWait)
	for s.ws.SessionStatus() == domain.SessionRunning && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return s.snapshot()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return s.snapshot()
}

func (s *Server) snapshot() RunResponse {
	resp := RunResponse{
		Status:    s.ws.SessionStatus(),
		Answer:    s.ws.Answer(),
		Interrupt: s.ws.Interrupt(),
	}
	for _, n := range s.ws.Nodes() {
		if n.Status == "" || n.Status == domain.NodeIdle {
			continue
		}
		nr := NodeResult{ID: n.ID, Type: n.Type, Status: n.Status}
		if n.Debug != nil {
			nr.Elapsed = n.Debug.ElapsedSeconds
			nr.Fail = n.Debug.FailReason
		}
		resp.Nodes = append(resp.Nodes, nr)
	}
	return resp
}

func (s *Server) registerResources() {
	// EXPOSE: canvasflow://flow
	s.mcpServer.AddResource(mcp.NewResource("canvasflow://flow", "Current Flow Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.ws.Flow())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal flow: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "canvasflow://flow",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
