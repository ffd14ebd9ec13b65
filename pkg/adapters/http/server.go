package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/canvasflow/canvasflow"
	"github.com/canvasflow/canvasflow/pkg/domain"
)

// Server exposes one workspace over HTTP: graph edits, undo, validation,
// publish, and debug runs with server-sent event updates.
type Server struct {
	ws      *canvasflow.Workspace
	streams *StreamManager
	logger  *slog.Logger
}

// NewHandler creates the HTTP handler for a workspace. The stream manager
// may be shared with BroadcastHooks so editor clients see live updates.
func NewHandler(ws *canvasflow.Workspace, streams *StreamManager, logger *slog.Logger) http.Handler {
	if streams == nil {
		streams = NewStreamManager()
	}
	s := &Server{ws: ws, streams: streams, logger: logger}

	r := chi.NewRouter()
	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)

	r.Route("/api", func(r chi.Router) {
		r.Get("/flow", s.getFlow)
		r.Post("/flow/save", s.saveFlow)
		r.Post("/flow/publish", s.publishFlow)
		r.Post("/flow/undo", s.undo)
		r.Post("/flow/validate", s.validateAll)

		r.Post("/nodes", s.addNode)
		r.Delete("/nodes/{id}", s.deleteNode)
		r.Post("/nodes/{id}/rename", s.renameNode)
		r.Post("/nodes/{id}/bind", s.bindInput)
		r.Post("/nodes/{id}/check", s.checkNode)
		r.Get("/nodes/{id}/references", s.references)

		r.Post("/edges", s.connect)
		r.Delete("/edges/{id}", s.disconnect)

		r.Post("/run", s.run)
		r.Post("/resume", s.resume)
		r.Post("/ignore", s.ignore)
		r.Post("/abort", s.abort)
		r.Get("/session", s.getSession)
		r.Get("/transcript", s.getTranscript)
		r.Get("/suggestions", s.getSuggestions)

		r.Get("/events", s.subscribeEvents)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    status,
		"message": err.Error(),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		return false
	}
	return true
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"app":     "canvasflow-http",
		"version": canvasflow.Version,
		"flow":    s.ws.FlowID(),
	})
}

func (s *Server) getFlow(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ws.Flow())
}

func (s *Server) saveFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Save(r.Context()); err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, map[string]any{"saved_at": s.ws.LastSaved()})
}

func (s *Server) publishFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Publish(r.Context()); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, map[string]any{"publishable": s.ws.Publishable()})
}

func (s *Server) undo(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Undo(); err != nil {
		if errors.Is(err, domain.ErrNothingToUndo) {
			s.writeError(w, http.StatusConflict, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, map[string]any{"depth": s.ws.UndoDepth()})
}

func (s *Server) validateAll(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.CheckAll(); err != nil {
		s.writeJSON(w, map[string]any{"valid": false, "detail": err.Error()})
		return
	}
	s.writeJSON(w, map[string]any{"valid": true})
}

func (s *Server) addNode(w http.ResponseWriter, r *http.Request) {
	var node domain.Node
	if !s.decode(w, r, &node) {
		return
	}
	id := s.ws.AddNode(&node)
	s.writeJSON(w, map[string]string{"id": id})
}

func (s *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.DeleteNode(chi.URLParam(r, "id")); err != nil {
		s.nodeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) renameNode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.ws.RenameNode(chi.URLParam(r, "id"), body.Title); err != nil {
		s.nodeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bindInput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		InputID string         `json:"input_id"`
		Binding domain.Binding `json:"binding"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.ws.BindInput(chi.URLParam(r, "id"), body.InputID, body.Binding); err != nil {
		s.nodeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pass := s.ws.CheckNode(id)
	s.writeJSON(w, map[string]any{"valid": pass, "node": s.ws.Node(id)})
}

func (s *Server) references(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ws.LegalReferences(chi.URLParam(r, "id")))
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	var edge domain.Edge
	if !s.decode(w, r, &edge) {
		return
	}
	if err := s.ws.Connect(edge); err != nil {
		s.nodeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Disconnect(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Inputs map[string]any `json:"inputs"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.ws.Run(r.Context(), body.Inputs); err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.ws.Resume(r.Context(), body.Content); err != nil {
		s.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) ignore(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Ignore(r.Context()); err != nil {
		s.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) abort(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Abort(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"status":    s.ws.SessionStatus(),
		"interrupt": s.ws.Interrupt(),
	})
}

func (s *Server) getTranscript(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ws.Transcript())
}

func (s *Server) getSuggestions(w http.ResponseWriter, r *http.Request) {
	qs, err := s.ws.Suggestions(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, map[string]any{"suggestions": qs})
}

func (s *Server) nodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNodeNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeError(w, http.StatusBadRequest, err)
}

func (s *Server) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNoInterrupt) {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeError(w, http.StatusBadGateway, err)
}

// subscribeEvents streams workspace lifecycle events as SSE.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(s.ws.FlowID())
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
