package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/AgentGate/AgentGate/internal/actionlog"
	"github.com/AgentGate/AgentGate/internal/dispatch"
	"github.com/AgentGate/AgentGate/internal/events"
	"github.com/AgentGate/AgentGate/internal/store"
)

// routes maps every inbound channel to its handler. Handlers resolve the
// live store through Session accessors on each event, never through a
// reference captured at subscribe time, so a hot-swapped store is current.
func (s *Session) routes() map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		events.ChannelFileOperation:      s.handleFileOperation,
		events.ChannelTerminalCommand:    s.handleTerminalCommand,
		events.ChannelToolExecution:      s.handleToolExecution,
		events.ChannelScreenshot:         s.handleScreenshot,
		events.ChannelPlanUpdate:         s.handlePlanUpdate,
		events.ChannelActionUpdate:       s.handleActionUpdate,
		events.ChannelPermissionRequired: s.handlePermissionRequired,
		events.ChannelMetrics:            s.handleMetrics,
		events.ChannelAgentStatusUpdate:  s.handleAgentStatus,
		events.ChannelAgentSpawned:       s.handleAgentSpawned,
		events.ChannelTaskProgress:       s.handleTask,
		events.ChannelTaskCompleted:      s.handleTask,
		events.ChannelTaskFailed:         s.handleTask,
		events.ChannelApprovalRequired:   s.handleApprovalRequired,
		events.ChannelApprovalGranted:    s.handleApprovalGranted,
		events.ChannelApprovalDenied:     s.handleApprovalDenied,
		events.ChannelApprovalRequest:    s.handleApprovalRequest,
		events.ChannelGoalProgress:       s.handleReserved(events.ChannelGoalProgress),
		events.ChannelStepCompleted:      s.handleReserved(events.ChannelStepCompleted),
		events.ChannelGoalCompleted:      s.handleReserved(events.ChannelGoalCompleted),
	}
}

func (s *Session) handleFileOperation(ctx context.Context, payload []byte) {
	op, err := events.DecodeFileOperation(payload)
	if err != nil {
		slog.Warn("Bad file_operation event", "error", err)
		return
	}
	s.Store().AddFileOperation(op)
	s.journalOp(op.ID, "file_operation", op.FilePath, op.Success)
}

func (s *Session) handleTerminalCommand(ctx context.Context, payload []byte) {
	cmd, err := events.DecodeTerminalCommand(payload)
	if err != nil {
		slog.Warn("Bad terminal_command event", "error", err)
		return
	}
	s.Store().AddTerminalCommand(cmd)
	ok := cmd.ExitCode == nil || *cmd.ExitCode == 0
	s.journalOp(cmd.ID, "terminal_command", cmd.Command, ok)
}

func (s *Session) handleToolExecution(ctx context.Context, payload []byte) {
	exec, err := events.DecodeToolExecution(payload)
	if err != nil {
		slog.Warn("Bad tool_execution event", "error", err)
		return
	}
	s.Store().AddToolExecution(exec)
	s.journalOp(exec.ID, "tool_execution", exec.ToolName, exec.Success)
}

func (s *Session) handleScreenshot(ctx context.Context, payload []byte) {
	shot, err := events.DecodeScreenshot(payload)
	if err != nil {
		slog.Warn("Bad screenshot event", "error", err)
		return
	}
	s.Store().AddScreenshot(shot)
}

// handlePlanUpdate installs the plan, adopts (or derives) its workflow
// hash and folds every step into the action log.
func (s *Session) handlePlanUpdate(ctx context.Context, payload []byte) {
	plan, err := events.DecodePlan(payload)
	if err != nil {
		slog.Warn("Bad plan_update event", "error", err)
		return
	}
	hash := s.Correlator().AdoptPlan(ctx, plan)
	st := s.Store()
	st.SetPlan(plan)
	for _, step := range plan.Steps {
		st.UpsertAction(actionlog.FromPlanStep(step, hash))
	}
	slog.Info("Plan updated", "plan", plan.ID, "steps", len(plan.Steps), "workflow", hash)
}

func (s *Session) handleActionUpdate(ctx context.Context, payload []byte) {
	frag, err := events.DecodeActionFragment(payload)
	if err != nil {
		slog.Warn("Bad action_update event", "error", err)
		return
	}
	if frag.WorkflowHash != "" {
		s.Correlator().AdoptHash(ctx, frag.WorkflowHash)
	} else {
		frag.WorkflowHash = s.Store().WorkflowHash()
	}
	if !s.Store().UpsertAction(frag) {
		// No identity, nothing to upsert.
		slog.Debug("Dropped action_update without identity")
	}
}

// handlePermissionRequired records the gated action in the log and routes
// the request through the approval gate, which may auto-approve on trust.
func (s *Session) handlePermissionRequired(ctx context.Context, payload []byte) {
	req, err := events.DecodePermissionRequired(payload)
	if err != nil {
		slog.Warn("Bad permission_required event", "error", err)
		return
	}
	if req.WorkflowHash != "" {
		s.Correlator().AdoptHash(ctx, req.WorkflowHash)
	} else {
		req.WorkflowHash = s.Store().WorkflowHash()
	}
	s.Store().UpsertAction(actionlog.FromPermission(req))
	s.Gate().HandlePermission(ctx, req)
}

func (s *Session) handleMetrics(ctx context.Context, payload []byte) {
	m, err := events.DecodeMetrics(payload)
	if err != nil {
		slog.Warn("Bad metrics event", "error", err)
		return
	}
	if m.WorkflowHash != "" {
		s.Correlator().AdoptHash(ctx, m.WorkflowHash)
	}
	s.Store().AddMetrics(m)
}

func (s *Session) handleAgentStatus(ctx context.Context, payload []byte) {
	agent, err := events.DecodeAgent(payload)
	if err != nil {
		slog.Warn("Bad agent_status_update event", "error", err)
		return
	}
	s.Store().UpsertAgent(agent)
}

func (s *Session) handleAgentSpawned(ctx context.Context, payload []byte) {
	spawned, err := events.DecodeAgentSpawned(payload)
	if err != nil {
		slog.Warn("Bad agent_spawned event", "error", err)
		return
	}
	if spawned.AgentID == "" {
		return
	}
	s.Store().UpsertAgent(events.Agent{
		ID:          spawned.AgentID,
		Name:        spawned.AgentID,
		Status:      "idle",
		CurrentGoal: spawned.Goal,
	})
	slog.Info("Agent spawned", "agent", spawned.AgentID, "goal", spawned.Goal)
}

func (s *Session) handleTask(ctx context.Context, payload []byte) {
	task, err := events.DecodeTask(payload)
	if err != nil {
		slog.Warn("Bad task event", "error", err)
		return
	}
	s.Store().UpsertTask(task)
}

// handleApprovalRequired mirrors a backend-created approval record into the
// pending queue. Re-delivery is a no-op.
func (s *Session) handleApprovalRequired(ctx context.Context, payload []byte) {
	a, err := events.DecodeApproval(payload)
	if err != nil {
		slog.Warn("Bad approval_required event", "error", err)
		return
	}
	s.addApprovalRecord(a)
}

func (s *Session) handleApprovalRequest(ctx context.Context, payload []byte) {
	a, err := events.DecodeApprovalRequest(payload)
	if err != nil {
		slog.Warn("Bad approval_request event", "error", err)
		return
	}
	s.addApprovalRecord(a)
}

func (s *Session) addApprovalRecord(a events.Approval) {
	if a.ID == "" {
		return
	}
	req := store.ApprovalRequest{
		ID:             a.ID,
		Type:           a.Type,
		RiskLevel:      a.RiskLevel,
		Description:    a.Description,
		Details:        a.Details,
		Status:         store.ApprovalPending,
		TimeoutSeconds: a.TimeoutSeconds,
		CreatedAt:      a.CreatedAt,
		WorkflowHash:   s.Store().WorkflowHash(),
	}
	if s.Store().AddApproval(req) {
		slog.Info("Approval recorded", "id", a.ID, "risk", a.RiskLevel)
	}
}

// handleApprovalGranted/Denied replay backend-side resolutions. A second
// resolution of an already-terminal request is a no-op.
func (s *Session) handleApprovalGranted(ctx context.Context, payload []byte) {
	s.resolveFromBackend(payload, store.ApprovalApproved)
}

func (s *Session) handleApprovalDenied(ctx context.Context, payload []byte) {
	s.resolveFromBackend(payload, store.ApprovalRejected)
}

func (s *Session) resolveFromBackend(payload []byte, st store.ApprovalStatus) {
	a, err := events.DecodeApproval(payload)
	if err != nil {
		slog.Warn("Bad approval resolution event", "error", err)
		return
	}
	if a.ID == "" {
		return
	}
	if _, changed := s.Store().ResolveApproval(a.ID, st, a.RejectionReason, time.Now()); changed {
		slog.Info("Approval resolved by backend", "id", a.ID, "status", st)
	}
}

// handleReserved logs reserved channels without store effect.
func (s *Session) handleReserved(channel string) dispatch.Handler {
	return func(ctx context.Context, payload []byte) {
		slog.Debug("Reserved channel event", "channel", channel, "bytes", len(payload))
	}
}

func (s *Session) journalOp(id, kind, summary string, success bool) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordOperation(id, kind, summary, success, s.Store().WorkflowHash()); err != nil {
		slog.Warn("Audit operation record failed", "kind", kind, "error", err)
	}
}
