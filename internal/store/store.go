// Package store is the single authoritative collection of session state.
// Every entity is mutated only through named operations on Store; readers
// get copies, never live references into internals. Collections are
// replaced copy-on-write so a reader holding a view mid-dispatch never
// observes a partially-updated collection.
package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/AgentGate/AgentGate/internal/actionlog"
	"github.com/AgentGate/AgentGate/internal/events"
)

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

// Approval lifecycle states. Transitions are monotonic:
// pending -> approved | rejected | timeout, never backward.
const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalTimeout  ApprovalStatus = "timeout"
)

// ApprovalRequest is one gated action awaiting (or past) a human decision.
// Resolved requests stay in the collection as the audit trail; they only
// leave the pending view.
type ApprovalRequest struct {
	ID              string              `json:"id"`
	ActionID        string              `json:"actionId,omitempty"`
	Type            string              `json:"type"`
	RiskLevel       string              `json:"riskLevel"`
	Description     string              `json:"description"`
	Details         json.RawMessage     `json:"details,omitempty"`
	Scope           events.ActionScope  `json:"scope,omitempty"`
	Status          ApprovalStatus      `json:"status"`
	WorkflowHash    string              `json:"workflowHash,omitempty"`
	ActionSignature string              `json:"actionSignature,omitempty"`
	AutoApproved    bool                `json:"autoApproved,omitempty"`
	TimeoutSeconds  int                 `json:"timeoutSeconds,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	ApprovedAt      *time.Time          `json:"approvedAt,omitempty"`
	RejectedAt      *time.Time          `json:"rejectedAt,omitempty"`
	RejectionReason string              `json:"rejectionReason,omitempty"`
}

// RemainingSeconds reports the approval budget left at now. Returns -1 when
// the request has no timeout.
func (r ApprovalRequest) RemainingSeconds(now time.Time) int {
	if r.TimeoutSeconds <= 0 {
		return -1
	}
	remaining := r.TimeoutSeconds - int(now.Sub(r.CreatedAt)/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether a pending request has outlived its budget.
func (r ApprovalRequest) Expired(now time.Time) bool {
	return r.Status == ApprovalPending && r.TimeoutSeconds > 0 &&
		now.Sub(r.CreatedAt) > time.Duration(r.TimeoutSeconds)*time.Second
}

// Message is one conversational turn.
type Message struct {
	ID          string         `json:"id"`
	Role        string         `json:"role"`
	Content     string         `json:"content"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Attachments []string       `json:"attachments,omitempty"`
	Streaming   bool           `json:"streaming,omitempty"`
}

// WorkflowContext correlates events belonging to one logical task thread.
// At most one context is active at a time; a new plan replaces it outright.
type WorkflowContext struct {
	Hash        string `json:"hash"`
	Description string `json:"description"`
	EntryPoint  string `json:"entryPoint"`
}

// MetricsTotals is the derived aggregate over all metrics events.
type MetricsTotals struct {
	Tokens     int64   `json:"tokens"`
	CostUSD    float64 `json:"costUsd"`
	DurationMs int64   `json:"durationMs"`
	Events     int     `json:"events"`
}

type trustKey struct {
	workflowHash    string
	actionSignature string
}

// Store holds all session collections. Construct one per session with New;
// it is an explicit instance, never a package global, so independent
// sessions (and tests) cannot interfere.
type Store struct {
	mu sync.RWMutex

	messages    []Message
	fileOps     []events.FileOperation
	termCmds    []events.TerminalCommand
	toolExecs   []events.ToolExecution
	screenshots []events.Screenshot

	agents map[string]events.Agent
	tasks  map[string]events.Task

	approvals []ApprovalRequest
	actions   []actionlog.Entry
	plan      *events.Plan
	workflow  *WorkflowContext
	trust     map[trustKey]time.Time

	metrics []events.Metrics
}

// New creates an empty session store.
func New() *Store {
	return &Store{
		agents: make(map[string]events.Agent),
		tasks:  make(map[string]events.Task),
		trust:  make(map[trustKey]time.Time),
	}
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// AddMessage appends a conversational turn.
func (s *Store) AddMessage(m Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = appendCopy(s.messages, m)
}

// AppendToMessage appends streamed content to the message with the given id.
func (s *Store) AppendToMessage(id, chunk string, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	for i := range out {
		if out[i].ID == id {
			out[i].Content += chunk
			out[i].Streaming = !done
			break
		}
	}
	s.messages = out
}

// DeleteMessage removes a message. Only ever called on explicit user action.
func (s *Store) DeleteMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		if m.ID != id {
			out = append(out, m)
		}
	}
	s.messages = out
}

// Messages returns a copy of all messages.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ---------------------------------------------------------------------------
// Operation logs (append-only; every event is a distinct occurrence)
// ---------------------------------------------------------------------------

// AddFileOperation appends a file operation record.
func (s *Store) AddFileOperation(op events.FileOperation) {
	if op.Timestamp.IsZero() {
		op.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileOps = appendCopy(s.fileOps, op)
}

// AddTerminalCommand appends a terminal command record.
func (s *Store) AddTerminalCommand(cmd events.TerminalCommand) {
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.termCmds = appendCopy(s.termCmds, cmd)
}

// AddToolExecution appends a tool execution record.
func (s *Store) AddToolExecution(exec events.ToolExecution) {
	if exec.Timestamp.IsZero() {
		exec.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolExecs = appendCopy(s.toolExecs, exec)
}

// AddScreenshot appends a screenshot record.
func (s *Store) AddScreenshot(shot events.Screenshot) {
	if shot.Timestamp.IsZero() {
		shot.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshots = appendCopy(s.screenshots, shot)
}

// FileOperations returns a copy of the file operation log.
func (s *Store) FileOperations() []events.FileOperation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.FileOperation, len(s.fileOps))
	copy(out, s.fileOps)
	return out
}

// TerminalCommands returns a copy of the terminal command log.
func (s *Store) TerminalCommands() []events.TerminalCommand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.TerminalCommand, len(s.termCmds))
	copy(out, s.termCmds)
	return out
}

// ToolExecutions returns a copy of the tool execution log.
func (s *Store) ToolExecutions() []events.ToolExecution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.ToolExecution, len(s.toolExecs))
	copy(out, s.toolExecs)
	return out
}

// Screenshots returns a copy of the screenshot log.
func (s *Store) Screenshots() []events.Screenshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.Screenshot, len(s.screenshots))
	copy(out, s.screenshots)
	return out
}

// ---------------------------------------------------------------------------
// Agents and tasks (keyed upserts)
// ---------------------------------------------------------------------------

// UpsertAgent inserts or replaces an agent record by id.
func (s *Store) UpsertAgent(a events.Agent) {
	if a.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]events.Agent, len(s.agents)+1)
	for k, v := range s.agents {
		next[k] = v
	}
	next[a.ID] = a
	s.agents = next
}

// Agents returns a copy of all agent records.
func (s *Store) Agents() []events.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	return out
}

// Agent returns the agent with the given id.
func (s *Store) Agent(id string) (events.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	return a, ok
}

// UpsertTask inserts or replaces a task record by id.
func (s *Store) UpsertTask(t events.Task) {
	if t.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]events.Task, len(s.tasks)+1)
	for k, v := range s.tasks {
		next[k] = v
	}
	next[t.ID] = t
	s.tasks = next
}

// Tasks returns a copy of all task records.
func (s *Store) Tasks() []events.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

// ---------------------------------------------------------------------------
// Approvals
// ---------------------------------------------------------------------------

// AddApproval inserts a pending approval request. Re-delivery of an id that
// already exists is a no-op, which keeps at-least-once transports safe.
func (s *Store) AddApproval(req ApprovalRequest) bool {
	if req.ID == "" {
		return false
	}
	if req.Status == "" {
		req.Status = ApprovalPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.approvals {
		if s.approvals[i].ID == req.ID {
			return false
		}
	}
	s.approvals = appendCopy(s.approvals, req)
	return true
}

// ResolveApproval moves a pending request to a terminal status. Resolving an
// already-terminal request is a no-op so replayed resolution events are
// harmless; the first terminal state and its timestamp are preserved.
func (s *Store) ResolveApproval(id string, st ApprovalStatus, reason string, at time.Time) (ApprovalRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ApprovalRequest, len(s.approvals))
	copy(out, s.approvals)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		if out[i].Status != ApprovalPending {
			return out[i], false
		}
		out[i].Status = st
		switch st {
		case ApprovalApproved:
			t := at
			out[i].ApprovedAt = &t
		case ApprovalRejected:
			t := at
			out[i].RejectedAt = &t
			out[i].RejectionReason = reason
		}
		s.approvals = out
		return out[i], true
	}
	return ApprovalRequest{}, false
}

// ExpireApprovals transitions every pending request past its budget to
// timeout and returns the expired requests.
func (s *Store) ExpireApprovals(now time.Time) []ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []ApprovalRequest
	out := make([]ApprovalRequest, len(s.approvals))
	copy(out, s.approvals)
	for i := range out {
		if out[i].Expired(now) {
			out[i].Status = ApprovalTimeout
			expired = append(expired, out[i])
		}
	}
	if len(expired) > 0 {
		s.approvals = out
	}
	return expired
}

// Approval returns the request with the given id.
func (s *Store) Approval(id string) (ApprovalRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.approvals {
		if r.ID == id {
			return r, true
		}
	}
	return ApprovalRequest{}, false
}

// PendingApprovals returns the pending queue oldest-first. Requests past
// their budget are excluded here and reaped by ExpireApprovals.
func (s *Store) PendingApprovals(now time.Time) []ApprovalRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ApprovalRequest
	for _, r := range s.approvals {
		if r.Status == ApprovalPending && !r.Expired(now) {
			out = append(out, r)
		}
	}
	sortApprovalsByAge(out)
	return out
}

// Approvals returns the full audit trail, pending and terminal alike.
func (s *Store) Approvals() []ApprovalRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ApprovalRequest, len(s.approvals))
	copy(out, s.approvals)
	return out
}

func sortApprovalsByAge(reqs []ApprovalRequest) {
	for i := 1; i < len(reqs); i++ {
		for j := i; j > 0 && reqs[j].CreatedAt.Before(reqs[j-1].CreatedAt); j-- {
			reqs[j], reqs[j-1] = reqs[j-1], reqs[j]
		}
	}
}

// ---------------------------------------------------------------------------
// Trust memoization
// ---------------------------------------------------------------------------

// AddTrust memoizes an approval for (workflowHash, actionSignature). Future
// matching permission requests auto-approve within that workflow only.
func (s *Store) AddTrust(workflowHash, actionSignature string) {
	if workflowHash == "" || actionSignature == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[trustKey]time.Time, len(s.trust)+1)
	for k, v := range s.trust {
		next[k] = v
	}
	next[trustKey{workflowHash, actionSignature}] = time.Now()
	s.trust = next
}

// Trusted reports whether the signature was previously approved with trust
// under the same workflow.
func (s *Store) Trusted(workflowHash, actionSignature string) bool {
	if workflowHash == "" || actionSignature == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.trust[trustKey{workflowHash, actionSignature}]
	return ok
}

// ---------------------------------------------------------------------------
// Action log, plan, workflow context
// ---------------------------------------------------------------------------

// UpsertAction merges an action fragment into the log. Fragments without an
// identity are dropped silently.
func (s *Store) UpsertAction(frag events.ActionFragment) bool {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	next, applied := actionlog.Upsert(s.actions, frag, now)
	if applied {
		s.actions = next
	}
	return applied
}

// Actions returns a copy of the action log.
func (s *Store) Actions() []actionlog.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]actionlog.Entry, len(s.actions))
	copy(out, s.actions)
	return out
}

// SetPlan replaces the active plan.
func (s *Store) SetPlan(p events.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan := p
	plan.Steps = make([]events.PlanStep, len(p.Steps))
	copy(plan.Steps, p.Steps)
	s.plan = &plan
}

// Plan returns a copy of the active plan, if any.
func (s *Store) Plan() (events.Plan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan == nil {
		return events.Plan{}, false
	}
	plan := *s.plan
	plan.Steps = make([]events.PlanStep, len(s.plan.Steps))
	copy(plan.Steps, s.plan.Steps)
	return plan, true
}

// SetWorkflowContext replaces the active workflow context. Contexts are
// replaced, not merged, when a new plan supersedes the old one.
func (s *Store) SetWorkflowContext(ctx WorkflowContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := ctx
	s.workflow = &c
}

// WorkflowContext returns the active workflow context, if any.
func (s *Store) WorkflowContext() (WorkflowContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.workflow == nil {
		return WorkflowContext{}, false
	}
	return *s.workflow, true
}

// WorkflowHash returns the active workflow hash or "".
func (s *Store) WorkflowHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.workflow == nil {
		return ""
	}
	return s.workflow.Hash
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// AddMetrics appends a metrics event. Events lacking a workflow hash are
// stamped with the active one so they correlate across the task thread.
func (s *Store) AddMetrics(m events.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.WorkflowHash == "" && s.workflow != nil {
		m.WorkflowHash = s.workflow.Hash
	}
	s.metrics = appendCopy(s.metrics, m)
}

// MetricsTotals aggregates all metrics events on read.
func (s *Store) MetricsTotals() MetricsTotals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var t MetricsTotals
	for _, m := range s.metrics {
		if m.Tokens != nil {
			t.Tokens += *m.Tokens
		}
		if m.CostUSD != nil {
			t.CostUSD += *m.CostUSD
		}
		if m.DurationMs != nil {
			t.DurationMs += *m.DurationMs
		}
		t.Events++
	}
	return t
}

func appendCopy[T any](in []T, v T) []T {
	out := make([]T, len(in), len(in)+1)
	copy(out, in)
	return append(out, v)
}
