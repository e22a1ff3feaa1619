// internal/orchestrator/service.go
package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"toolgate/pkg/session"
	"toolgate/pkg/tools"
)

// ToolServer is one downstream tool server the orchestrator can hand a
// model. Audience is the claim its verifier expects; Endpoint is where its
// event stream lives.
type ToolServer struct {
	Name     string `json:"name"`
	Audience string `json:"audience"`
	Endpoint string `json:"endpoint"`
}

// LLM is the opaque model boundary. The orchestrator hands it the user
// message plus the tool catalog; how it plans and invokes tools is not this
// service's business.
type LLM interface {
	Complete(ctx context.Context, message string, catalog []tools.Descriptor) (string, error)
}

// Service mints session tokens scoped to one tool server per request. The
// audience claim is the isolation boundary: a books token opens no stream
// on the comms server.
type Service struct {
	issuer  *session.Issuer
	servers map[string]ToolServer
	llm     LLM
	log     *zap.SugaredLogger
}

func New(issuer *session.Issuer, servers []ToolServer, llm LLM, log *zap.SugaredLogger) *Service {
	byName := map[string]ToolServer{}
	for _, s := range servers {
		byName[s.Name] = s
	}
	return &Service{issuer: issuer, servers: byName, llm: llm, log: log}
}

func (s *Service) Routes(r chi.Router) {
	r.Get("/v1/servers", s.handleServers)
	r.Post("/v1/sessions", s.handleMintSession)
	r.Post("/v1/chat", s.handleChat)
}

func (s *Service) handleServers(w http.ResponseWriter, r *http.Request) {
	out := make([]ToolServer, 0, len(s.servers))
	for _, sv := range s.servers {
		out = append(out, sv)
	}
	writeJSON(w, map[string]any{"servers": out}, http.StatusOK)
}

// handleMintSession issues one short-lived token letting the named tenant
// open a stream on one named tool server.
func (s *Service) handleMintSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID string `json:"tenant_id"`
		Server   string `json:"server"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if body.TenantID == "" || body.Server == "" {
		http.Error(w, "tenant_id and server required", http.StatusBadRequest)
		return
	}
	sv, ok := s.servers[body.Server]
	if !ok {
		http.Error(w, "unknown server", http.StatusNotFound)
		return
	}
	tok, err := s.issuer.Mint(body.TenantID, sv.Audience)
	if err != nil {
		s.log.Errorw("mint", "err", err)
		http.Error(w, "mint failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"token":    tok,
		"endpoint": sv.Endpoint,
		"audience": sv.Audience,
	}, http.StatusOK)
}

// handleChat is the inbound chat boundary. The model reply is returned as-is;
// tool traffic happens over the tool servers' streams, not here.
func (s *Service) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID string `json:"tenant_id"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if body.TenantID == "" || body.Message == "" {
		http.Error(w, "tenant_id and message required", http.StatusBadRequest)
		return
	}
	if s.llm == nil {
		http.Error(w, "no model configured", http.StatusServiceUnavailable)
		return
	}
	reply, err := s.llm.Complete(r.Context(), body.Message, nil)
	if err != nil {
		s.log.Errorw("chat", "err", err)
		http.Error(w, "model error", http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]any{"reply": reply}, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
