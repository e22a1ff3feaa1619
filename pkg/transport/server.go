// pkg/transport/server.go
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"toolgate/pkg/fault"
	"toolgate/pkg/identity"
	"toolgate/pkg/session"
	"toolgate/pkg/tools"
)

// Message is one client-to-server tool invocation, correlated to an open
// stream by the session_id query parameter.
type Message struct {
	ID   string         `json:"id"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Server pairs the long-lived event stream with the message-post channel
// for one tool server. Identity is verified and bound exactly once, at
// stream open; every invocation on that stream inherits it.
type Server struct {
	verifier  *session.Verifier
	reg       Registry
	tools     *tools.Registry
	heartbeat time.Duration
	log       *zap.SugaredLogger
}

func NewServer(verifier *session.Verifier, reg Registry, tr *tools.Registry, log *zap.SugaredLogger) *Server {
	return &Server{
		verifier:  verifier,
		reg:       reg,
		tools:     tr,
		heartbeat: 25 * time.Second,
		log:       log,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/sse", s.handleSSE)
	r.Post("/message", s.handleMessage)
	r.Get("/tools", s.handleTools)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	tenantID, err := s.verifier.Verify(session.TokenFromRequest(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	ctx := identity.Bind(r.Context(), identity.Identity{TenantID: tenantID})
	ctx, cancel := context.WithCancel(ctx)
	st := newStream(uuid.NewString(), tenantID, ctx, cancel)
	s.reg.Register(st)
	defer func() {
		s.reg.Deregister(st.id)
		st.close()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Handshake: tell the client where to post messages for this stream.
	writeSSEEvent(w, "endpoint", "/message?session_id="+st.id)
	flusher.Flush()
	s.log.Infow("stream open", "session", st.id, "tenant", tenantID)

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("stream closed", "session", st.id)
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev := <-st.events:
			writeSSEEvent(w, ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("session_id")
	st, ok := s.reg.Lookup(sid)
	if !ok {
		writeError(w, http.StatusNotFound, fault.ErrNoActiveTransport)
		return
	}
	var msg Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad json: %w", err))
		return
	}
	if msg.Tool == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("tool required"))
		return
	}
	// Results are delivered on the stream, never in this response. Tool
	// calls on one stream may complete out of arrival order.
	go s.dispatch(st, msg)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "id": msg.ID})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if _, err := s.verifier.Verify(session.TokenFromRequest(r)); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"tools": s.tools.Descriptors()})
}

// dispatch runs one tool call under the stream's identity-bound context.
// Taxonomy errors become structured error events; only the stream itself
// erroring terminates the stream.
func (s *Server) dispatch(st *Stream, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Errorw("tool panic", "session", st.id, "tool", msg.Tool, "err", rec)
			_ = st.Send(Event{Name: "result", Data: map[string]any{
				"id": msg.ID, "tool": msg.Tool,
				"error": map[string]any{"code": "internal_error"},
			}})
		}
	}()
	result, err := s.tools.Invoke(st.Context(), st.tenantID, msg.Tool, msg.Args)
	if st.Context().Err() != nil {
		// Stream closed while the call was in flight; discard.
		return
	}
	payload := map[string]any{"id": msg.ID, "tool": msg.Tool}
	if err != nil {
		s.log.Warnw("tool failed", "session", st.id, "tool", msg.Tool, "err", err)
		payload["error"] = fault.Payload(err)
	} else {
		payload["result"] = result
	}
	if err := st.Send(Event{Name: "result", Data: payload}); err != nil {
		s.log.Debugw("result dropped", "session", st.id, "tool", msg.Tool)
	}
}

func writeSSEEvent(w http.ResponseWriter, name string, data any) {
	var body string
	if s, ok := data.(string); ok {
		body = s
	} else {
		b, _ := json.Marshal(data)
		body = string(b)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": fault.Slug(err), "detail": err.Error()})
}
