package store

import (
	"time"

	"github.com/AgentGate/AgentGate/internal/events"
)

// Snapshot is the full-session export surface: all messages and operation
// logs plus an export timestamp. Round-trip re-import is not supported.
type Snapshot struct {
	ExportedAt       time.Time                `json:"exportedAt"`
	Messages         []Message                `json:"messages"`
	FileOperations   []events.FileOperation   `json:"fileOperations"`
	TerminalCommands []events.TerminalCommand `json:"terminalCommands"`
	ToolExecutions   []events.ToolExecution   `json:"toolExecutions"`
	Screenshots      []events.Screenshot      `json:"screenshots"`
}

// Snapshot captures the session for export. Preferences are deliberately
// excluded; the persisted tier never mixes with the volatile one.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		ExportedAt:       time.Now(),
		Messages:         s.Messages(),
		FileOperations:   s.FileOperations(),
		TerminalCommands: s.TerminalCommands(),
		ToolExecutions:   s.ToolExecutions(),
		Screenshots:      s.Screenshots(),
	}
}
