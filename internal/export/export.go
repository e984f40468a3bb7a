// Package export renders a full-session snapshot as a human-readable
// markdown document. Exports are one-way; re-import is not supported.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AgentGate/AgentGate/internal/store"
)

// BuildMarkdown renders a session snapshot.
func BuildMarkdown(snap store.Snapshot) string {
	var b strings.Builder
	b.WriteString("# Agent Session Export\n\n")
	b.WriteString(fmt.Sprintf("Exported: %s\n\n", snap.ExportedAt.UTC().Format(time.RFC3339)))

	b.WriteString("## Conversation\n\n")
	if len(snap.Messages) == 0 {
		b.WriteString("_No messages._\n\n")
	}
	for _, m := range snap.Messages {
		b.WriteString(fmt.Sprintf("### %s - %s\n\n", roleHeading(m.Role), m.Timestamp.UTC().Format(time.RFC3339)))
		b.WriteString(strings.TrimSpace(m.Content) + "\n\n")
	}

	b.WriteString("## File Operations\n\n")
	if len(snap.FileOperations) == 0 {
		b.WriteString("_None._\n\n")
	}
	for _, op := range snap.FileOperations {
		b.WriteString(fmt.Sprintf("- [%s] `%s` %s (%s)\n", okMark(op.Success), op.FilePath, op.Type, op.Timestamp.UTC().Format(time.RFC3339)))
	}
	if len(snap.FileOperations) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Terminal Commands\n\n")
	if len(snap.TerminalCommands) == 0 {
		b.WriteString("_None._\n\n")
	}
	for _, cmd := range snap.TerminalCommands {
		exit := ""
		if cmd.ExitCode != nil {
			exit = fmt.Sprintf(" (exit %d)", *cmd.ExitCode)
		}
		b.WriteString(fmt.Sprintf("- `%s`%s\n", cmd.Command, exit))
	}
	if len(snap.TerminalCommands) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Tool Executions\n\n")
	if len(snap.ToolExecutions) == 0 {
		b.WriteString("_None._\n\n")
	}
	for _, exec := range snap.ToolExecutions {
		b.WriteString(fmt.Sprintf("- [%s] %s (%dms)\n", okMark(exec.Success), exec.ToolName, exec.DurationMs))
	}
	if len(snap.ToolExecutions) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("## Screenshots\n\n%d captured during this session.\n", len(snap.Screenshots)))
	return b.String()
}

// WriteFile renders the snapshot and writes it to path, creating parent
// directories as needed.
func WriteFile(path string, snap store.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(BuildMarkdown(snap)), 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func roleHeading(role string) string {
	switch role {
	case "user":
		return "You"
	case "assistant":
		return "Agent"
	default:
		if role == "" {
			return "Event"
		}
		return strings.ToUpper(role[:1]) + role[1:]
	}
}

func okMark(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
