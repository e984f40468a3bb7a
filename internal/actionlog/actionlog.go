// Package actionlog merges partial action fragments into single log entries.
//
// The backend describes one logical action through several differently-keyed
// events over its lifetime: a plan_update introduces it by id, an
// action_update or permission_required may reference it by actionId only,
// and delivery is at-least-once and unordered. Upsert makes replays and
// cross-keyed fragments converge onto one entry.
package actionlog

import (
	"encoding/json"
	"time"

	"github.com/AgentGate/AgentGate/internal/events"
	"github.com/AgentGate/AgentGate/internal/status"
)

// TypeGeneric is the fallback entry type for fragments that carry none.
const TypeGeneric = "action"

// Entry is one merged action record. Identity is ID or ActionID; either may
// be the join key depending on which event introduced the action first.
type Entry struct {
	ID               string              `json:"id"`
	ActionID         string              `json:"actionId,omitempty"`
	WorkflowHash     string              `json:"workflowHash,omitempty"`
	Type             string              `json:"type"`
	Title            string              `json:"title,omitempty"`
	Description      string              `json:"description,omitempty"`
	Status           status.Status       `json:"status"`
	RequiresApproval bool                `json:"requiresApproval,omitempty"`
	Scope            *events.ActionScope `json:"scope,omitempty"`
	Metadata         map[string]any      `json:"metadata,omitempty"`
	Result           json.RawMessage     `json:"result,omitempty"`
	Error            string              `json:"error,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// Upsert merges a fragment into the entry list and returns the new list.
// The input slice is never mutated; callers keep copy-on-write semantics.
//
// A fragment without any identity is dropped (applied=false). Merges are
// right-biased but null-safe: a set incoming field wins, an absent one
// leaves the existing value untouched, so fields never regress to unknown.
// Replaying an identical fragment any number of times converges to one entry.
func Upsert(entries []Entry, frag events.ActionFragment, now time.Time) (out []Entry, applied bool) {
	join := frag.ID
	if join == "" {
		join = frag.ActionID
	}
	if join == "" {
		return entries, false
	}

	idx := -1
	for i := range entries {
		if entries[i].ID == join {
			idx = i
			break
		}
		if frag.ActionID != "" && entries[i].ActionID == frag.ActionID {
			idx = i
			break
		}
	}

	if idx < 0 {
		out = make([]Entry, len(entries), len(entries)+1)
		copy(out, entries)
		return append(out, newEntry(join, frag, now)), true
	}

	out = make([]Entry, len(entries))
	copy(out, entries)
	out[idx] = merge(out[idx], frag, now)
	return out, true
}

func newEntry(id string, frag events.ActionFragment, now time.Time) Entry {
	e := Entry{
		ID:        id,
		ActionID:  frag.ActionID,
		Type:      TypeGeneric,
		Status:    status.Pending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return merge(e, frag, now)
}

func merge(e Entry, frag events.ActionFragment, now time.Time) Entry {
	if frag.ActionID != "" {
		e.ActionID = frag.ActionID
	}
	if frag.WorkflowHash != "" {
		e.WorkflowHash = frag.WorkflowHash
	}
	if frag.Type != nil {
		e.Type = *frag.Type
	}
	if frag.Title != nil {
		e.Title = *frag.Title
	}
	if frag.Description != nil {
		e.Description = *frag.Description
	}
	if frag.Status != nil {
		e.Status = status.Normalize(*frag.Status)
	}
	if frag.RequiresApproval != nil {
		e.RequiresApproval = *frag.RequiresApproval
	}
	if frag.Scope != nil {
		scope := *frag.Scope
		e.Scope = &scope
	}
	if frag.Metadata != nil {
		e.Metadata = frag.Metadata
	}
	if frag.Result != nil {
		e.Result = frag.Result
	}
	if frag.Error != nil {
		e.Error = *frag.Error
	}
	e.UpdatedAt = now
	return e
}

// FromPlanStep converts a plan step into an action fragment so plan entries
// land in the same log as action updates.
func FromPlanStep(step events.PlanStep, workflowHash string) events.ActionFragment {
	frag := events.ActionFragment{
		ID:           step.ID,
		WorkflowHash: workflowHash,
		Title:        &step.Title,
	}
	planType := "plan_step"
	frag.Type = &planType
	if step.Description != "" {
		desc := step.Description
		frag.Description = &desc
	}
	if step.Status != "" {
		st := step.Status
		frag.Status = &st
	}
	if step.Result != nil {
		frag.Result = json.RawMessage(quoteJSON(*step.Result))
	}
	return frag
}

// FromPermission converts a permission_required event into a fragment that
// introduces (or annotates) the action awaiting approval.
func FromPermission(req events.PermissionRequired) events.ActionFragment {
	frag := events.ActionFragment{
		ActionID:     req.ActionID,
		WorkflowHash: req.WorkflowHash,
	}
	requires := true
	frag.RequiresApproval = &requires
	scope := req.Scope
	frag.Scope = &scope
	if req.Type != "" {
		t := req.Type
		frag.Type = &t
	}
	if req.Title != "" {
		title := req.Title
		frag.Title = &title
	}
	if req.Reason != "" {
		reason := req.Reason
		frag.Description = &reason
	}
	blocked := string(status.Blocked)
	frag.Status = &blocked
	return frag
}

func quoteJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
