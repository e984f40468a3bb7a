// Package gateway serves the local read/resolve HTTP surface a UI talks
// to: pending approvals, resolution, status and session export.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AgentGate/AgentGate/internal/export"
	"github.com/AgentGate/AgentGate/internal/session"
	"github.com/AgentGate/AgentGate/internal/store"
)

// Server is the local control API over one session.
type Server struct {
	session *session.Session
	token   string
	httpSrv *http.Server
}

// New creates a gateway server. Token may be empty for unauthenticated
// loopback use.
func New(sess *session.Session, token string) *Server {
	return &Server{session: sess, token: token}
}

// Handler builds the API mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("/api/v1/approvals", s.requireAuth(s.handleApprovals))
	mux.HandleFunc("/api/v1/approvals/resolve", s.requireAuth(s.handleResolve))
	mux.HandleFunc("/api/v1/actions", s.requireAuth(s.handleActions))
	mux.HandleFunc("/api/v1/export", s.requireAuth(s.handleExport))
	return mux
}

// ListenAndServe blocks serving the API on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("Gateway listening", "addr", addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown() error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Close()
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type statusResponse struct {
	Agents           int                 `json:"agents"`
	Tasks            int                 `json:"tasks"`
	Messages         int                 `json:"messages"`
	Actions          int                 `json:"actions"`
	PendingApprovals int                 `json:"pendingApprovals"`
	WorkflowHash     string              `json:"workflowHash,omitempty"`
	Metrics          store.MetricsTotals `json:"metrics"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st := s.session.Store()
	writeJSON(w, statusResponse{
		Agents:           len(st.Agents()),
		Tasks:            len(st.Tasks()),
		Messages:         len(st.Messages()),
		Actions:          len(st.Actions()),
		PendingApprovals: len(s.session.Gate().Pending()),
		WorkflowHash:     st.WorkflowHash(),
		Metrics:          st.MetricsTotals(),
	})
}

type pendingApproval struct {
	store.ApprovalRequest
	RemainingSeconds int `json:"remainingSeconds"`
}

func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	now := time.Now()
	pending := s.session.Gate().Pending()
	out := make([]pendingApproval, 0, len(pending))
	for _, req := range pending {
		out = append(out, pendingApproval{
			ApprovalRequest:  req,
			RemainingSeconds: req.RemainingSeconds(now),
		})
	}
	writeJSON(w, out)
}

type resolveRequest struct {
	ID       string `json:"id"`
	Decision string `json:"decision"` // approved or rejected
	Reason   string `json:"reason,omitempty"`
	Trust    bool   `json:"trust,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	var err error
	switch req.Decision {
	case "approved":
		err = s.session.Gate().Approve(r.Context(), req.ID, req.Trust)
	case "rejected":
		err = s.session.Gate().Reject(r.Context(), req.ID, req.Reason)
	default:
		http.Error(w, "decision must be approved or rejected", http.StatusBadRequest)
		return
	}
	if err != nil {
		// The request stays pending; the caller can retry.
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.session.Store().Actions())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(export.BuildMarkdown(s.session.Store().Snapshot())))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Gateway response encode failed", "error", err)
	}
}
