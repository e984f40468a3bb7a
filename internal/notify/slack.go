// Package notify pushes approval queue changes to external channels.
package notify

import (
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/AgentGate/AgentGate/internal/store"
)

// Slack posts approval prompts and resolutions to one Slack channel.
type Slack struct {
	client    *slack.Client
	channelID string
}

// NewSlack creates a Slack notifier.
func NewSlack(botToken, channelID string) *Slack {
	return &Slack{client: slack.New(botToken), channelID: channelID}
}

// ApprovalPending posts a prompt for a newly queued request. Posting runs
// in a goroutine; the notifier sits on the dispatch path.
func (s *Slack) ApprovalPending(req store.ApprovalRequest) {
	attachment := slack.Attachment{
		Color: riskColor(req.RiskLevel),
		Title: fmt.Sprintf("Approval required: %s", req.Type),
		Text:  req.Description,
		Fields: []slack.AttachmentField{
			{Title: "ID", Value: req.ID, Short: true},
			{Title: "Risk", Value: req.RiskLevel, Short: true},
			{Title: "Scope", Value: req.Scope.Type, Short: true},
		},
	}
	go func() {
		_, _, err := s.client.PostMessage(s.channelID, slack.MsgOptionAttachments(attachment))
		if err != nil {
			slog.Warn("Slack approval prompt failed", "id", req.ID, "error", err)
		}
	}()
}

// ApprovalResolved posts the outcome of a request.
func (s *Slack) ApprovalResolved(req store.ApprovalRequest) {
	text := fmt.Sprintf("Approval %s: %s", req.ID, req.Status)
	if req.RejectionReason != "" {
		text += " (" + req.RejectionReason + ")"
	}
	go func() {
		_, _, err := s.client.PostMessage(s.channelID, slack.MsgOptionText(text, false))
		if err != nil {
			slog.Warn("Slack resolution notice failed", "id", req.ID, "error", err)
		}
	}()
}

func riskColor(risk string) string {
	switch risk {
	case "critical", "high":
		return "danger"
	case "medium":
		return "warning"
	default:
		return "good"
	}
}
