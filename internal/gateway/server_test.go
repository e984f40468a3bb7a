package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AgentGate/AgentGate/internal/backend"
	"github.com/AgentGate/AgentGate/internal/config"
	"github.com/AgentGate/AgentGate/internal/session"
	"github.com/AgentGate/AgentGate/internal/store"
	"github.com/AgentGate/AgentGate/internal/transport"
)

func testSession(t *testing.T) (*session.Session, *transport.Bus) {
	t.Helper()
	home := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Home = home
	cfg.Paths.Preferences = filepath.Join(home, "preferences.json")
	cfg.Transport.Kind = "bus"
	cfg.Audit.Enabled = false

	bus := transport.NewBus()
	s, err := session.New(cfg, session.Options{Transport: bus, Client: backend.Nop{}})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, bus
}

func eventually(t *testing.T, what string, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStatusEndpoint(t *testing.T) {
	sess, bus := testSession(t)
	srv := httptest.NewServer(New(sess, "").Handler())
	defer srv.Close()

	bus.Publish("agent_status_update", []byte(`{"agent": {"id": "ag-1", "status": "running"}}`))
	eventually(t, "agent", func() bool { return len(sess.Store().Agents()) == 1 })

	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Agents           int `json:"agents"`
		PendingApprovals int `json:"pendingApprovals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Agents != 1 || body.PendingApprovals != 0 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	sess, _ := testSession(t)
	srv := httptest.NewServer(New(sess, "secret").Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", resp.StatusCode)
	}
}

func TestApprovalsAndResolve(t *testing.T) {
	sess, bus := testSession(t)
	srv := httptest.NewServer(New(sess, "").Handler())
	defer srv.Close()

	bus.Publish("permission_required", []byte(`{"actionId": "a1", "workflowHash": "wf-1",
		"type": "file_write", "reason": "needs approval",
		"scope": {"type": "filesystem", "path": "/srv", "risk": "high"}}`))
	eventually(t, "pending approval", func() bool { return len(sess.Gate().Pending()) == 1 })

	resp, err := http.Get(srv.URL + "/api/v1/approvals")
	if err != nil {
		t.Fatal(err)
	}
	var pending []struct {
		ID               string `json:"id"`
		RemainingSeconds int    `json:"remainingSeconds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pending); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	resp.Body.Close()
	if len(pending) != 1 || pending[0].ID != "a1" {
		t.Fatalf("pending = %+v", pending)
	}
	if pending[0].RemainingSeconds <= 0 || pending[0].RemainingSeconds > 300 {
		t.Fatalf("remainingSeconds = %d", pending[0].RemainingSeconds)
	}

	body, _ := json.Marshal(map[string]any{"id": "a1", "decision": "approved", "trust": true})
	resp, err = http.Post(srv.URL+"/api/v1/approvals/resolve", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status = %d", resp.StatusCode)
	}
	req, _ := sess.Store().Approval("a1")
	if req.Status != store.ApprovalApproved {
		t.Fatalf("approval status = %q", req.Status)
	}
}

func TestResolveValidation(t *testing.T) {
	sess, _ := testSession(t)
	srv := httptest.NewServer(New(sess, "").Handler())
	defer srv.Close()

	resp, _ := http.Post(srv.URL+"/api/v1/approvals/resolve", "application/json", strings.NewReader(`{"id": ""}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty id status = %d, want 400", resp.StatusCode)
	}

	resp, _ = http.Post(srv.URL+"/api/v1/approvals/resolve", "application/json", strings.NewReader(`{"id": "x", "decision": "maybe"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad decision status = %d, want 400", resp.StatusCode)
	}

	// Unknown approval id surfaces as a gateway error, not a crash.
	resp, _ = http.Post(srv.URL+"/api/v1/approvals/resolve", "application/json", strings.NewReader(`{"id": "ghost", "decision": "approved"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("unknown id status = %d, want 502", resp.StatusCode)
	}
}

func TestExportEndpoint(t *testing.T) {
	sess, _ := testSession(t)
	srv := httptest.NewServer(New(sess, "").Handler())
	defer srv.Close()

	sess.SendMessage("export me")

	resp, err := http.Get(srv.URL + "/api/v1/export")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("content type = %q", ct)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "export me") {
		t.Fatal("export missing message content")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	sess, _ := testSession(t)
	srv := httptest.NewServer(New(sess, "").Handler())
	defer srv.Close()

	resp, _ := http.Post(srv.URL+"/api/v1/status", "application/json", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d, want 405", resp.StatusCode)
	}
	resp, _ = http.Get(srv.URL + "/api/v1/approvals/resolve")
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET resolve = %d, want 405", resp.StatusCode)
	}
}
