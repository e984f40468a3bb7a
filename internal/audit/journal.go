// Package audit keeps an append-only SQLite journal of approval lifecycle
// and operation records. The journal is observational: session state is
// rebuilt from the live event stream, never from here.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AgentGate/AgentGate/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS approvals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	approval_id TEXT UNIQUE NOT NULL,
	action_id TEXT,
	workflow_hash TEXT,
	type TEXT,
	risk_level TEXT,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	auto_approved BOOLEAN NOT NULL DEFAULT 0,
	reason TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	resolved_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status);
CREATE INDEX IF NOT EXISTS idx_approvals_workflow ON approvals(workflow_hash);

CREATE TABLE IF NOT EXISTS operations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	op_id TEXT,
	kind TEXT NOT NULL,
	summary TEXT,
	success BOOLEAN NOT NULL DEFAULT 1,
	workflow_hash TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_operations_kind ON operations(kind);
`

// Journal records approval and operation history in SQLite.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at dbPath. Pending approvals left by
// a previous process are marked timeout; they can never be resolved now.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}
	// Best-effort migrations for older journals (no-op if columns exist).
	_, _ = db.Exec(`ALTER TABLE approvals ADD COLUMN auto_approved BOOLEAN NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE operations ADD COLUMN workflow_hash TEXT`)
	_, _ = db.Exec(`UPDATE approvals SET status = 'timeout', resolved_at = CURRENT_TIMESTAMP WHERE status = 'pending'`)
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordApproval inserts an approval request row. Re-recording the same
// approval id is a no-op.
func (j *Journal) RecordApproval(req store.ApprovalRequest) error {
	_, err := j.db.Exec(`
		INSERT INTO approvals (approval_id, action_id, workflow_hash, type, risk_level, description, status, auto_approved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(approval_id) DO NOTHING`,
		req.ID, req.ActionID, req.WorkflowHash, req.Type, req.RiskLevel,
		req.Description, string(req.Status), req.AutoApproved, req.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record approval: %w", err)
	}
	return nil
}

// ResolveApproval stamps the terminal status onto an approval row.
func (j *Journal) ResolveApproval(approvalID string, st store.ApprovalStatus, reason string, at time.Time) error {
	_, err := j.db.Exec(`
		UPDATE approvals SET status = ?, reason = ?, resolved_at = ?
		WHERE approval_id = ? AND status = 'pending'`,
		string(st), reason, at.UTC(), approvalID,
	)
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	return nil
}

// RecordOperation appends one operation record.
func (j *Journal) RecordOperation(opID, kind, summary string, success bool, workflowHash string) error {
	_, err := j.db.Exec(`
		INSERT INTO operations (op_id, kind, summary, success, workflow_hash)
		VALUES (?, ?, ?, ?, ?)`,
		opID, kind, summary, success, workflowHash,
	)
	if err != nil {
		return fmt.Errorf("record operation: %w", err)
	}
	return nil
}

// ApprovalRow is one journal row for inspection and tests.
type ApprovalRow struct {
	ApprovalID string
	Status     string
	RiskLevel  string
	Reason     string
}

// ApprovalsByWorkflow returns journal rows for a workflow hash, oldest first.
func (j *Journal) ApprovalsByWorkflow(hash string) ([]ApprovalRow, error) {
	rows, err := j.db.Query(`
		SELECT approval_id, status, COALESCE(risk_level, ''), COALESCE(reason, '')
		FROM approvals WHERE workflow_hash = ? ORDER BY id`, hash)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	defer rows.Close()
	var out []ApprovalRow
	for rows.Next() {
		var r ApprovalRow
		if err := rows.Scan(&r.ApprovalID, &r.Status, &r.RiskLevel, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan approval row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
