package actionlog

import (
	"testing"
	"time"

	"github.com/AgentGate/AgentGate/internal/events"
	"github.com/AgentGate/AgentGate/internal/status"
)

func strptr(s string) *string { return &s }

func TestUpsertInsertsWithDefaults(t *testing.T) {
	now := time.Now()
	out, applied := Upsert(nil, events.ActionFragment{ID: "a1"}, now)
	if !applied {
		t.Fatal("fragment with an id should apply")
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(out))
	}
	e := out[0]
	if e.ID != "a1" || e.Type != TypeGeneric || e.Status != status.Pending {
		t.Fatalf("unexpected defaults: %+v", e)
	}
}

func TestUpsertDropsIdentitylessFragment(t *testing.T) {
	out, applied := Upsert(nil, events.ActionFragment{Title: strptr("orphan")}, time.Now())
	if applied || len(out) != 0 {
		t.Fatalf("identityless fragment must be dropped, got applied=%v len=%d", applied, len(out))
	}
}

func TestUpsertReplayConverges(t *testing.T) {
	now := time.Now()
	frag := events.ActionFragment{ID: "a1", Title: strptr("read file")}
	var entries []Entry
	for i := 0; i < 3; i++ {
		entries, _ = Upsert(entries, frag, now)
	}
	if len(entries) != 1 {
		t.Fatalf("replays must converge to one entry, got %d", len(entries))
	}
}

func TestUpsertCrossKeyedFragmentsMerge(t *testing.T) {
	now := time.Now()
	entries, _ := Upsert(nil, events.ActionFragment{ActionID: "x", Title: strptr("by actionId")}, now)
	entries, _ = Upsert(entries, events.ActionFragment{ID: "x", Status: strptr("running")}, now)
	if len(entries) != 1 {
		t.Fatalf("fragments keyed by actionId then id must merge, got %d entries", len(entries))
	}
	e := entries[0]
	if e.Title != "by actionId" || e.Status != status.Running {
		t.Fatalf("merge lost fields: %+v", e)
	}
}

func TestUpsertMatchesOnSharedActionID(t *testing.T) {
	now := time.Now()
	entries, _ := Upsert(nil, events.ActionFragment{ID: "plan-1", ActionID: "act-1"}, now)
	entries, _ = Upsert(entries, events.ActionFragment{ActionID: "act-1", Status: strptr("success")}, now)
	if len(entries) != 1 {
		t.Fatalf("shared actionId must join, got %d entries", len(entries))
	}
	if entries[0].Status != status.Success {
		t.Fatalf("status = %q, want success", entries[0].Status)
	}
}

func TestMergeIsNullSafeAndRightBiased(t *testing.T) {
	now := time.Now()
	entries, _ := Upsert(nil, events.ActionFragment{
		ID:          "a1",
		Title:       strptr("first title"),
		Description: strptr("first description"),
		Status:      strptr("running"),
	}, now)

	// Incoming fragment only sets status: other fields must not regress.
	entries, _ = Upsert(entries, events.ActionFragment{ID: "a1", Status: strptr("success")}, now)
	e := entries[0]
	if e.Title != "first title" || e.Description != "first description" {
		t.Fatalf("absent fields regressed: %+v", e)
	}
	if e.Status != status.Success {
		t.Fatalf("set field should win, status = %q", e.Status)
	}

	// A set empty string is still a set value and wins.
	entries, _ = Upsert(entries, events.ActionFragment{ID: "a1", Title: strptr("")}, now)
	if entries[0].Title != "" {
		t.Fatalf("explicit empty title should win, got %q", entries[0].Title)
	}
}

func TestUpsertCopyOnWrite(t *testing.T) {
	now := time.Now()
	orig, _ := Upsert(nil, events.ActionFragment{ID: "a1", Title: strptr("before")}, now)
	updated, _ := Upsert(orig, events.ActionFragment{ID: "a1", Title: strptr("after")}, now)
	if orig[0].Title != "before" {
		t.Fatal("input slice was mutated")
	}
	if updated[0].Title != "after" {
		t.Fatal("output slice missed the update")
	}
}

func TestFromPlanStep(t *testing.T) {
	frag := FromPlanStep(events.PlanStep{
		ID:          "s1",
		Title:       "install deps",
		Description: "npm install",
		Status:      "running",
	}, "wfhash")
	entries, _ := Upsert(nil, frag, time.Now())
	e := entries[0]
	if e.Type != "plan_step" || e.WorkflowHash != "wfhash" || e.Status != status.Running {
		t.Fatalf("plan step conversion wrong: %+v", e)
	}
}

func TestFromPermissionBlocksEntry(t *testing.T) {
	frag := FromPermission(events.PermissionRequired{
		ActionID: "act-9",
		Type:     "file_write",
		Reason:   "writes outside workspace",
		Scope:    events.ActionScope{Type: "filesystem", Path: "/etc/hosts"},
	})
	entries, _ := Upsert(nil, frag, time.Now())
	e := entries[0]
	if !e.RequiresApproval || e.Status != status.Blocked {
		t.Fatalf("permission entry should be blocked and approval-gated: %+v", e)
	}
	if e.Scope == nil || e.Scope.Path != "/etc/hosts" {
		t.Fatalf("scope not carried: %+v", e.Scope)
	}
}
