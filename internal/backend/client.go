// Package backend holds the outbound boundary to the agent backend. The
// backend is the sole executor of approved actions; this process only
// observes, reconciles and gates.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Decision values accepted by ResolveApproval.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Client is the outbound call surface to the agent backend.
type Client interface {
	// SetWorkflowHash informs the backend of the adopted workflow hash so
	// subsequent backend-originated events reuse the same identifier.
	SetWorkflowHash(ctx context.Context, hash string) error
	// ResolveApproval reports an approval decision. Reason accompanies
	// rejections; trust asks the backend to skip re-prompting for the
	// same action class within the workflow.
	ResolveApproval(ctx context.Context, approvalID, decision, reason string, trust bool) error
	StopCurrentTask(ctx context.Context) error
	PauseAgent(ctx context.Context, agentID string) error
	ResumeAgent(ctx context.Context, agentID string) error
	CancelAgent(ctx context.Context, agentID string) error
}

// HTTPClient talks to the backend's local control API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTP creates a backend client for the given base URL. Token may be
// empty when the backend runs without auth.
func NewHTTP(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("call %s: status %d: %s", path, resp.StatusCode, string(msg))
	}
	return nil
}

// SetWorkflowHash implements Client.
func (c *HTTPClient) SetWorkflowHash(ctx context.Context, hash string) error {
	return c.post(ctx, "/api/v1/workflow/hash", map[string]string{"hash": hash})
}

// ResolveApproval implements Client.
func (c *HTTPClient) ResolveApproval(ctx context.Context, approvalID, decision, reason string, trust bool) error {
	return c.post(ctx, "/api/v1/approvals/"+url.PathEscape(approvalID)+"/resolve", map[string]any{
		"decision": decision,
		"reason":   reason,
		"trust":    trust,
	})
}

// StopCurrentTask implements Client.
func (c *HTTPClient) StopCurrentTask(ctx context.Context) error {
	return c.post(ctx, "/api/v1/tasks/stop", struct{}{})
}

// PauseAgent implements Client.
func (c *HTTPClient) PauseAgent(ctx context.Context, agentID string) error {
	return c.post(ctx, "/api/v1/agents/"+url.PathEscape(agentID)+"/pause", struct{}{})
}

// ResumeAgent implements Client.
func (c *HTTPClient) ResumeAgent(ctx context.Context, agentID string) error {
	return c.post(ctx, "/api/v1/agents/"+url.PathEscape(agentID)+"/resume", struct{}{})
}

// CancelAgent implements Client.
func (c *HTTPClient) CancelAgent(ctx context.Context, agentID string) error {
	return c.post(ctx, "/api/v1/agents/"+url.PathEscape(agentID)+"/cancel", struct{}{})
}

// Nop is a Client that accepts every call. Used for offline runs and tests.
type Nop struct{}

func (Nop) SetWorkflowHash(context.Context, string) error                       { return nil }
func (Nop) ResolveApproval(context.Context, string, string, string, bool) error { return nil }
func (Nop) StopCurrentTask(context.Context) error                               { return nil }
func (Nop) PauseAgent(context.Context, string) error                            { return nil }
func (Nop) ResumeAgent(context.Context, string) error                           { return nil }
func (Nop) CancelAgent(context.Context, string) error                           { return nil }
