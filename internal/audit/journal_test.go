package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/AgentGate/AgentGate/internal/store"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j, path
}

func request(id, workflow string) store.ApprovalRequest {
	return store.ApprovalRequest{
		ID:           id,
		ActionID:     id,
		Type:         "file_write",
		RiskLevel:    "high",
		Description:  "writes outside the workspace",
		Status:       store.ApprovalPending,
		WorkflowHash: workflow,
		CreatedAt:    time.Now(),
	}
}

func TestRecordAndResolveApproval(t *testing.T) {
	j, _ := openTestJournal(t)

	if err := j.RecordApproval(request("ap-1", "wf-1")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.ResolveApproval("ap-1", store.ApprovalApproved, "", time.Now()); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	rows, err := j.ApprovalsByWorkflow("wf-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != "approved" || rows[0].RiskLevel != "high" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestRecordApprovalIsIdempotent(t *testing.T) {
	j, _ := openTestJournal(t)

	if err := j.RecordApproval(request("ap-1", "wf-1")); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordApproval(request("ap-1", "wf-1")); err != nil {
		t.Fatalf("re-record must be a no-op, got %v", err)
	}
	rows, _ := j.ApprovalsByWorkflow("wf-1")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}

func TestResolveOnlyTouchesPendingRows(t *testing.T) {
	j, _ := openTestJournal(t)
	_ = j.RecordApproval(request("ap-1", "wf-1"))
	_ = j.ResolveApproval("ap-1", store.ApprovalRejected, "too risky", time.Now())

	// A replayed resolution must not rewrite the terminal row.
	_ = j.ResolveApproval("ap-1", store.ApprovalApproved, "", time.Now())

	rows, _ := j.ApprovalsByWorkflow("wf-1")
	if rows[0].Status != "rejected" || rows[0].Reason != "too risky" {
		t.Fatalf("terminal row was rewritten: %+v", rows[0])
	}
}

func TestReopenMarksStalePendingAsTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = j.RecordApproval(request("stale", "wf-1"))
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	// A new process can never resolve requests from a dead session.
	j2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j2.Close()

	rows, _ := j2.ApprovalsByWorkflow("wf-1")
	if len(rows) != 1 || rows[0].Status != "timeout" {
		t.Fatalf("stale pending not timed out: %+v", rows)
	}
}

func TestRecordOperation(t *testing.T) {
	j, _ := openTestJournal(t)
	if err := j.RecordOperation("op-1", "file_operation", "write pkg/io.go", true, "wf-1"); err != nil {
		t.Fatalf("record operation: %v", err)
	}
}
