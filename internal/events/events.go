// Package events defines the inbound wire contract: channel names and
// payload shapes emitted by the agent backend. Field names mirror the
// backend's JSON exactly (camelCase).
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound channel names.
const (
	ChannelFileOperation      = "file_operation"
	ChannelTerminalCommand    = "terminal_command"
	ChannelToolExecution      = "tool_execution"
	ChannelScreenshot         = "screenshot"
	ChannelPlanUpdate         = "plan_update"
	ChannelActionUpdate       = "action_update"
	ChannelPermissionRequired = "permission_required"
	ChannelMetrics            = "metrics"
	ChannelAgentStatusUpdate  = "agent_status_update"
	ChannelAgentSpawned       = "agent_spawned"
	ChannelTaskProgress       = "task_progress"
	ChannelTaskCompleted      = "task_completed"
	ChannelTaskFailed         = "task_failed"
	ChannelApprovalRequired   = "approval_required"
	ChannelApprovalGranted    = "approval_granted"
	ChannelApprovalDenied     = "approval_denied"
	ChannelApprovalRequest    = "approval_request"

	// Reserved channels: subscribed and logged, no store effect yet.
	ChannelGoalProgress  = "goal_progress"
	ChannelStepCompleted = "step_completed"
	ChannelGoalCompleted = "goal_completed"
)

// Channels lists every channel this subsystem subscribes to.
func Channels() []string {
	return []string{
		ChannelFileOperation, ChannelTerminalCommand, ChannelToolExecution,
		ChannelScreenshot, ChannelPlanUpdate, ChannelActionUpdate,
		ChannelPermissionRequired, ChannelMetrics, ChannelAgentStatusUpdate,
		ChannelAgentSpawned, ChannelTaskProgress, ChannelTaskCompleted,
		ChannelTaskFailed, ChannelApprovalRequired, ChannelApprovalGranted,
		ChannelApprovalDenied, ChannelApprovalRequest,
		ChannelGoalProgress, ChannelStepCompleted, ChannelGoalCompleted,
	}
}

// FileOperation is one file read/write/create/delete performed by the agent.
type FileOperation struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	FilePath   string    `json:"filePath"`
	OldContent *string   `json:"oldContent,omitempty"`
	NewContent *string   `json:"newContent,omitempty"`
	SizeBytes  *int64    `json:"sizeBytes,omitempty"`
	Success    bool      `json:"success"`
	Error      *string   `json:"error,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	AgentID    string    `json:"agentId,omitempty"`
	GoalID     string    `json:"goalId,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// TerminalCommand is one shell command executed by the agent.
type TerminalCommand struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	Cwd        string    `json:"cwd,omitempty"`
	ExitCode   *int      `json:"exitCode,omitempty"`
	Stdout     *string   `json:"stdout,omitempty"`
	Stderr     *string   `json:"stderr,omitempty"`
	DurationMs *int64    `json:"duration,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	AgentID    string    `json:"agentId,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// ToolExecution is one tool call made by the agent.
type ToolExecution struct {
	ID         string          `json:"id"`
	ToolName   string          `json:"toolName"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      *string         `json:"error,omitempty"`
	DurationMs int64           `json:"duration"`
	Success    bool            `json:"success"`
	Timestamp  time.Time       `json:"timestamp,omitempty"`
}

// Screenshot is a capture taken during agent computer use.
type Screenshot struct {
	ID          string    `json:"id"`
	ImageBase64 string    `json:"imageBase64"`
	Action      *string   `json:"action,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// ActionScope describes what an action touches and how risky it is.
type ActionScope struct {
	Type string `json:"type"` // filesystem, browser, terminal, network, system
	Risk string `json:"risk,omitempty"`
	Path string `json:"path,omitempty"`
}

// ActionFragment is a partial view of one logical action. Different event
// sources key the same action differently: a plan introduces ID, a later
// permission_required references it by ActionID. Optional fields are
// pointers so an absent field can be told apart from a zero value.
type ActionFragment struct {
	ID               string          `json:"id,omitempty"`
	ActionID         string          `json:"actionId,omitempty"`
	WorkflowHash     string          `json:"workflowHash,omitempty"`
	Type             *string         `json:"type,omitempty"`
	Title            *string         `json:"title,omitempty"`
	Description      *string         `json:"description,omitempty"`
	Status           *string         `json:"status,omitempty"`
	RequiresApproval *bool           `json:"requiresApproval,omitempty"`
	Scope            *ActionScope    `json:"scope,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
	Error            *string         `json:"error,omitempty"`
}

// PlanStep is one step of an agent plan.
type PlanStep struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
	ParentID    string  `json:"parentId,omitempty"`
	Result      *string `json:"result,omitempty"`
}

// Plan is the agent's current plan for a task thread.
type Plan struct {
	ID           string     `json:"id"`
	Description  string     `json:"description"`
	WorkflowHash string     `json:"workflowHash,omitempty"`
	EntryPoint   string     `json:"entryPoint,omitempty"`
	Steps        []PlanStep `json:"steps"`
	CreatedAt    time.Time  `json:"createdAt,omitempty"`
}

// PermissionRequired asks for human approval before the backend runs an action.
type PermissionRequired struct {
	ActionID        string       `json:"actionId"`
	WorkflowHash    string       `json:"workflowHash,omitempty"`
	Reason          string       `json:"reason,omitempty"`
	Title           string       `json:"title,omitempty"`
	Scope           ActionScope  `json:"scope"`
	RiskLevel       string       `json:"riskLevel,omitempty"`
	ActionSignature string       `json:"actionSignature,omitempty"`
	Type            string       `json:"type,omitempty"`
	TimeoutSeconds  int          `json:"timeoutSeconds,omitempty"`
}

// Metrics carries token/cost/duration counters for an action or workflow.
type Metrics struct {
	WorkflowHash     string   `json:"workflowHash,omitempty"`
	ActionID         string   `json:"actionId,omitempty"`
	Tokens           *int64   `json:"tokens,omitempty"`
	CostUSD          *float64 `json:"costUsd,omitempty"`
	DurationMs       *int64   `json:"durationMs,omitempty"`
	CompletionReason string   `json:"completionReason,omitempty"`
}

// ResourceUsage is optional agent resource telemetry.
type ResourceUsage struct {
	CPUPercent float64 `json:"cpuPercent"`
	MemoryMB   float64 `json:"memoryMb"`
}

// Agent is the reported state of one agent.
type Agent struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Status        string         `json:"status"` // idle, running, paused, completed, failed
	CurrentGoal   string         `json:"currentGoal,omitempty"`
	CurrentStep   string         `json:"currentStep,omitempty"`
	Progress      float64        `json:"progress"`
	ResourceUsage *ResourceUsage `json:"resourceUsage,omitempty"`
}

// Task is the reported state of one background task.
type Task struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"` // queued, running, paused, completed, failed, cancelled
	Progress    float64 `json:"progress"`
	Priority    int     `json:"priority"`
	Description string  `json:"description,omitempty"`
}

// Approval is the backend's view of an approval record, delivered on the
// approval_required/granted/denied channels.
type Approval struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Description     string          `json:"description"`
	Impact          string          `json:"impact,omitempty"`
	RiskLevel       string          `json:"riskLevel"`
	Status          string          `json:"status,omitempty"`
	Details         json.RawMessage `json:"details,omitempty"`
	CreatedAt       time.Time       `json:"createdAt,omitempty"`
	TimeoutSeconds  int             `json:"timeoutSeconds,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
}

// AgentSpawned announces a newly spawned agent.
type AgentSpawned struct {
	AgentID string `json:"agent_id"`
	Goal    string `json:"goal,omitempty"`
}

// Payload wrappers. The backend nests most payloads under a single key,
// e.g. file_operation events arrive as {"operation": {...}}.

func unwrap(data []byte, key string, v any) error {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return fmt.Errorf("decode %s envelope: %w", key, err)
	}
	inner, ok := outer[key]
	if !ok {
		// Tolerate flat payloads from older backends.
		inner = data
	}
	if err := json.Unmarshal(inner, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", key, err)
	}
	return nil
}

// DecodeFileOperation unwraps a file_operation event.
func DecodeFileOperation(data []byte) (FileOperation, error) {
	var op FileOperation
	err := unwrap(data, "operation", &op)
	return op, err
}

// DecodeTerminalCommand unwraps a terminal_command event.
func DecodeTerminalCommand(data []byte) (TerminalCommand, error) {
	var cmd TerminalCommand
	err := unwrap(data, "command", &cmd)
	return cmd, err
}

// DecodeToolExecution unwraps a tool_execution event.
func DecodeToolExecution(data []byte) (ToolExecution, error) {
	var exec ToolExecution
	err := unwrap(data, "execution", &exec)
	return exec, err
}

// DecodeScreenshot unwraps a screenshot event.
func DecodeScreenshot(data []byte) (Screenshot, error) {
	var shot Screenshot
	err := unwrap(data, "screenshot", &shot)
	return shot, err
}

// DecodePlan unwraps a plan_update event.
func DecodePlan(data []byte) (Plan, error) {
	var plan Plan
	err := unwrap(data, "plan", &plan)
	return plan, err
}

// DecodeActionFragment unwraps an action_update event.
func DecodeActionFragment(data []byte) (ActionFragment, error) {
	var frag ActionFragment
	err := unwrap(data, "action", &frag)
	return frag, err
}

// DecodePermissionRequired decodes a permission_required event (flat payload).
func DecodePermissionRequired(data []byte) (PermissionRequired, error) {
	var req PermissionRequired
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("decode permission_required: %w", err)
	}
	return req, nil
}

// DecodeMetrics unwraps a metrics event.
func DecodeMetrics(data []byte) (Metrics, error) {
	var m Metrics
	err := unwrap(data, "metrics", &m)
	return m, err
}

// DecodeAgent unwraps an agent_status_update event.
func DecodeAgent(data []byte) (Agent, error) {
	var a Agent
	err := unwrap(data, "agent", &a)
	return a, err
}

// DecodeAgentSpawned decodes an agent_spawned event (flat payload).
func DecodeAgentSpawned(data []byte) (AgentSpawned, error) {
	var s AgentSpawned
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("decode agent_spawned: %w", err)
	}
	return s, nil
}

// DecodeTask unwraps a task_progress/task_completed/task_failed event.
func DecodeTask(data []byte) (Task, error) {
	var t Task
	err := unwrap(data, "task", &t)
	return t, err
}

// DecodeApproval unwraps an approval_required/granted/denied event.
func DecodeApproval(data []byte) (Approval, error) {
	var a Approval
	err := unwrap(data, "approval", &a)
	return a, err
}

// DecodeApprovalRequest decodes an approval_request event (flat payload).
func DecodeApprovalRequest(data []byte) (Approval, error) {
	var a Approval
	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("decode approval_request: %w", err)
	}
	return a, nil
}
