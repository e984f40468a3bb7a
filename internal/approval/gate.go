// Package approval gates risky agent actions behind human decisions and
// memoizes trust so repeated, already-accepted action classes stop
// prompting within the same workflow.
package approval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AgentGate/AgentGate/internal/backend"
	"github.com/AgentGate/AgentGate/internal/events"
	"github.com/AgentGate/AgentGate/internal/policy"
	"github.com/AgentGate/AgentGate/internal/store"
)

// Notifier is told about queue changes. Implementations must be fast or
// hand off internally; they run on the dispatch path.
type Notifier interface {
	ApprovalPending(req store.ApprovalRequest)
	ApprovalResolved(req store.ApprovalRequest)
}

// Recorder persists the approval audit trail. All calls are best-effort.
type Recorder interface {
	RecordApproval(req store.ApprovalRequest) error
	ResolveApproval(approvalID string, st store.ApprovalStatus, reason string, at time.Time) error
}

// PreflightFunc is an optional synchronous local confirmation shown before
// a high-risk request enters the queue. Returning false declines.
type PreflightFunc func(req store.ApprovalRequest) bool

// Gate manages the pending-approval queue and its resolution state machine.
type Gate struct {
	store     *store.Store
	client    backend.Client
	engine    policy.Engine
	notifier  Notifier
	recorder  Recorder
	preflight PreflightFunc

	// DefaultTimeoutSeconds applies to requests that carry no budget of
	// their own. Zero disables the default.
	DefaultTimeoutSeconds int
}

// Option configures a Gate.
type Option func(*Gate)

// WithNotifier attaches a queue notifier.
func WithNotifier(n Notifier) Option { return func(g *Gate) { g.notifier = n } }

// WithRecorder attaches an audit recorder.
func WithRecorder(r Recorder) Option { return func(g *Gate) { g.recorder = r } }

// WithPreflight attaches the synchronous pre-flight confirmation.
func WithPreflight(f PreflightFunc) Option { return func(g *Gate) { g.preflight = f } }

// WithDefaultTimeout sets the default approval budget in seconds.
func WithDefaultTimeout(seconds int) Option {
	return func(g *Gate) { g.DefaultTimeoutSeconds = seconds }
}

// NewGate creates an approval gate. Engine may be nil, which uses the
// default policy posture.
func NewGate(st *store.Store, client backend.Client, engine policy.Engine, opts ...Option) *Gate {
	g := &Gate{store: st, client: client, engine: engine}
	if g.engine == nil {
		g.engine = policy.NewDefaultEngine()
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Signature derives a fingerprint of an action's type and scope, used to
// recognize "the same kind of action" for trust matching when the backend
// did not supply one.
func Signature(actionType string, scope events.ActionScope) string {
	h := sha256.Sum256([]byte(actionType + "|" + scope.Type + "|" + scope.Path))
	return hex.EncodeToString(h[:16])
}

// HandlePermission processes a permission_required event: trust hits
// auto-approve without ever entering the visible queue, the optional
// pre-flight may resolve immediately, everything else queues pending.
func (g *Gate) HandlePermission(ctx context.Context, ev events.PermissionRequired) {
	if ev.ActionID == "" {
		return
	}
	hash := ev.WorkflowHash
	if hash == "" {
		hash = g.store.WorkflowHash()
	}
	sig := ev.ActionSignature
	if sig == "" {
		sig = Signature(ev.Type, ev.Scope)
	}

	decision := g.engine.Evaluate(policy.Context{
		ActionID:     ev.ActionID,
		Type:         ev.Type,
		Scope:        ev.Scope,
		RiskLevel:    ev.RiskLevel,
		WorkflowHash: hash,
	})

	req := store.ApprovalRequest{
		ID:              ev.ActionID,
		ActionID:        ev.ActionID,
		Type:            requestType(ev),
		RiskLevel:       decision.RiskLevel,
		Description:     requestDescription(ev),
		Scope:           ev.Scope,
		Status:          store.ApprovalPending,
		WorkflowHash:    hash,
		ActionSignature: sig,
		TimeoutSeconds:  ev.TimeoutSeconds,
		CreatedAt:       time.Now(),
	}
	if req.TimeoutSeconds == 0 {
		req.TimeoutSeconds = g.DefaultTimeoutSeconds
	}

	// Trust hit: resolve approved without a visible pending entry.
	if g.store.Trusted(hash, sig) {
		req.AutoApproved = true
		req.Status = store.ApprovalApproved
		now := time.Now()
		req.ApprovedAt = &now
		g.store.AddApproval(req)
		g.record(req)
		g.resolveBackend(ctx, req.ID, backend.DecisionApproved, "", false)
		slog.Info("Permission auto-approved by trust", "action", ev.ActionID, "workflow", hash)
		return
	}

	if decision.AutoApprove {
		req.AutoApproved = true
		req.Status = store.ApprovalApproved
		now := time.Now()
		req.ApprovedAt = &now
		g.store.AddApproval(req)
		g.record(req)
		g.resolveBackend(ctx, req.ID, backend.DecisionApproved, "", false)
		slog.Info("Permission auto-approved by policy", "action", ev.ActionID, "reason", decision.Reason)
		return
	}

	if !g.store.AddApproval(req) {
		// Re-delivered event for a request already tracked.
		return
	}
	g.record(req)

	// Optional blocking pre-flight. A decline resolves through the same
	// Reject path so the audit trail is identical either way.
	if decision.RequirePreflight && g.preflight != nil {
		if g.preflight(req) {
			if err := g.Approve(ctx, req.ID, false); err != nil {
				slog.Warn("Pre-flight approve failed", "id", req.ID, "error", err)
			}
		} else {
			if err := g.Reject(ctx, req.ID, "declined at pre-flight confirmation"); err != nil {
				slog.Warn("Pre-flight reject failed", "id", req.ID, "error", err)
			}
		}
		return
	}

	if g.notifier != nil {
		g.notifier.ApprovalPending(req)
	}
	slog.Info("Approval pending", "id", req.ID, "risk", req.RiskLevel, "scope", ev.Scope.Type)
}

// Approve resolves a pending request as approved. With trust set, a trust
// record is stored for the request's (workflowHash, actionSignature) so
// matching future requests auto-approve within that workflow.
//
// The backend round trip happens first: on failure the request stays
// pending so the user can retry.
func (g *Gate) Approve(ctx context.Context, id string, trust bool) error {
	req, ok := g.store.Approval(id)
	if !ok {
		return fmt.Errorf("no approval with id %s", id)
	}
	if req.Status != store.ApprovalPending {
		return nil
	}
	if err := g.client.ResolveApproval(ctx, id, backend.DecisionApproved, "", trust); err != nil {
		return fmt.Errorf("resolve approval %s: %w", id, err)
	}
	resolved, changed := g.store.ResolveApproval(id, store.ApprovalApproved, "", time.Now())
	if !changed {
		return nil
	}
	if trust && resolved.WorkflowHash != "" && resolved.ActionSignature != "" {
		g.store.AddTrust(resolved.WorkflowHash, resolved.ActionSignature)
	}
	g.resolveRecord(resolved, "")
	if g.notifier != nil {
		g.notifier.ApprovalResolved(resolved)
	}
	slog.Info("Approval granted", "id", id, "trust", trust)
	return nil
}

// Reject resolves a pending request as rejected. The optional reason is
// attached to the request and forwarded to the backend so it can adapt.
func (g *Gate) Reject(ctx context.Context, id, reason string) error {
	req, ok := g.store.Approval(id)
	if !ok {
		return fmt.Errorf("no approval with id %s", id)
	}
	if req.Status != store.ApprovalPending {
		return nil
	}
	if err := g.client.ResolveApproval(ctx, id, backend.DecisionRejected, reason, false); err != nil {
		return fmt.Errorf("resolve approval %s: %w", id, err)
	}
	resolved, changed := g.store.ResolveApproval(id, store.ApprovalRejected, reason, time.Now())
	if !changed {
		return nil
	}
	g.resolveRecord(resolved, reason)
	if g.notifier != nil {
		g.notifier.ApprovalResolved(resolved)
	}
	slog.Info("Approval rejected", "id", id, "reason", reason)
	return nil
}

// Sweep expires pending requests past their budget. Called periodically and
// before presenting the queue.
func (g *Gate) Sweep(now time.Time) []store.ApprovalRequest {
	expired := g.store.ExpireApprovals(now)
	for _, req := range expired {
		g.resolveRecord(req, "timeout")
		if g.notifier != nil {
			g.notifier.ApprovalResolved(req)
		}
		slog.Info("Approval timed out", "id", req.ID)
	}
	return expired
}

// Pending returns the queue oldest-first after expiring stale entries.
func (g *Gate) Pending() []store.ApprovalRequest {
	now := time.Now()
	g.Sweep(now)
	return g.store.PendingApprovals(now)
}

func (g *Gate) record(req store.ApprovalRequest) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.RecordApproval(req); err != nil {
		slog.Warn("Audit record failed", "id", req.ID, "error", err)
	}
}

func (g *Gate) resolveRecord(req store.ApprovalRequest, reason string) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.ResolveApproval(req.ID, req.Status, reason, time.Now()); err != nil {
		slog.Warn("Audit resolve failed", "id", req.ID, "error", err)
	}
}

// resolveBackend reports an auto-approval; failures are logged and
// non-fatal since the local decision already stands.
func (g *Gate) resolveBackend(ctx context.Context, id, decision, reason string, trust bool) {
	go func() {
		if err := g.client.ResolveApproval(ctx, id, decision, reason, trust); err != nil {
			slog.Warn("Backend resolve failed", "id", id, "error", err)
		}
	}()
}

func requestType(ev events.PermissionRequired) string {
	if ev.Type != "" {
		return ev.Type
	}
	if ev.Scope.Type != "" {
		return ev.Scope.Type
	}
	return "action"
}

func requestDescription(ev events.PermissionRequired) string {
	switch {
	case ev.Reason != "":
		return ev.Reason
	case ev.Title != "":
		return ev.Title
	default:
		return fmt.Sprintf("Action %s requires approval", ev.ActionID)
	}
}

// Details formats a request's scope for display surfaces.
func Details(req store.ApprovalRequest) string {
	b, _ := json.Marshal(req.Scope)
	return string(b)
}
