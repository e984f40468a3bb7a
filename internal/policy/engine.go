// Package policy classifies permission requests by risk and scope.
package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/AgentGate/AgentGate/internal/events"
)

// Risk levels, ordered.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Scope types an action may touch.
const (
	ScopeFilesystem = "filesystem"
	ScopeBrowser    = "browser"
	ScopeTerminal   = "terminal"
	ScopeNetwork    = "network"
	ScopeSystem     = "system"
)

// Context holds information about a pending permission request.
type Context struct {
	ActionID     string
	Type         string
	Scope        events.ActionScope
	RiskLevel    string
	WorkflowHash string
}

// Decision is the result of a policy evaluation.
type Decision struct {
	// AutoApprove short-circuits the queue without a human decision.
	AutoApprove bool
	// RequirePreflight asks for an immediate blocking local confirmation
	// before the request enters the pending queue.
	RequirePreflight bool
	RiskLevel        string
	Reason           string
	Ts               time.Time
}

// Engine evaluates whether a permission request should interrupt the user.
type Engine interface {
	Evaluate(ctx Context) Decision
}

// DefaultEngine is the v1 policy implementation.
type DefaultEngine struct {
	// MaxAutoRisk is the highest risk level approved without asking.
	// Empty means nothing auto-approves.
	MaxAutoRisk string
	// PreflightEnabled turns on the synchronous pre-flight confirmation
	// for high-risk filesystem/browser requests.
	PreflightEnabled bool
}

// NewDefaultEngine creates a policy engine with the default posture:
// nothing auto-approves, no pre-flight interruptions.
func NewDefaultEngine() *DefaultEngine {
	return &DefaultEngine{}
}

var riskRank = map[string]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// NormalizeRisk maps an upstream risk string onto the known levels,
// defaulting unknown input to medium. The scope's own risk field wins over
// the event-level field when both are present.
func NormalizeRisk(eventRisk string, scope events.ActionScope) string {
	for _, candidate := range []string{scope.Risk, eventRisk} {
		r := strings.ToLower(strings.TrimSpace(candidate))
		if _, ok := riskRank[r]; ok {
			return r
		}
	}
	return RiskMedium
}

// Evaluate classifies the request.
func (e *DefaultEngine) Evaluate(ctx Context) Decision {
	d := Decision{
		RiskLevel: NormalizeRisk(ctx.RiskLevel, ctx.Scope),
		Ts:        time.Now(),
	}

	if max, ok := riskRank[e.MaxAutoRisk]; ok && riskRank[d.RiskLevel] <= max {
		d.AutoApprove = true
		d.Reason = fmt.Sprintf("risk_%s_auto_approved", d.RiskLevel)
		return d
	}

	if e.PreflightEnabled && riskRank[d.RiskLevel] >= riskRank[RiskHigh] {
		switch ctx.Scope.Type {
		case ScopeFilesystem, ScopeBrowser:
			d.RequirePreflight = true
			d.Reason = fmt.Sprintf("risk_%s_%s_preflight", d.RiskLevel, ctx.Scope.Type)
			return d
		}
	}

	d.Reason = fmt.Sprintf("risk_%s_requires_approval", d.RiskLevel)
	return d
}
