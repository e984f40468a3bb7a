// Package config provides configuration types and loading for agentgate.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Transport TransportConfig `json:"transport"`
	Backend   BackendConfig   `json:"backend"`
	Approval  ApprovalConfig  `json:"approval"`
	Notify    NotifyConfig    `json:"notify"`
	Gateway   GatewayConfig   `json:"gateway"`
	Audit     AuditConfig     `json:"audit"`
}

// PathsConfig groups filesystem locations.
type PathsConfig struct {
	Home        string `json:"home" envconfig:"HOME_DIR"`
	Preferences string `json:"preferences" envconfig:"PREFERENCES_PATH"`
}

// TransportConfig selects and configures the inbound event transport.
type TransportConfig struct {
	// Kind is "kafka" or "bus".
	Kind        string `json:"kind" envconfig:"TRANSPORT"`
	Brokers     string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	TopicPrefix string `json:"topicPrefix" envconfig:"KAFKA_TOPIC_PREFIX"`
	GroupID     string `json:"groupId" envconfig:"KAFKA_GROUP_ID"`
}

// BackendConfig configures outbound calls to the agent backend.
type BackendConfig struct {
	BaseURL        string `json:"baseUrl" envconfig:"BACKEND_URL"`
	Token          string `json:"token" envconfig:"BACKEND_TOKEN"`
	TimeoutSeconds int    `json:"timeoutSeconds" envconfig:"BACKEND_TIMEOUT_SECONDS"`
}

// Timeout returns the backend call timeout as a duration.
func (c BackendConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ApprovalConfig tunes the approval gate.
type ApprovalConfig struct {
	// TimeoutSeconds is the default budget for requests without one.
	TimeoutSeconds int `json:"timeoutSeconds" envconfig:"APPROVAL_TIMEOUT_SECONDS"`
	// MaxAutoRisk auto-approves requests at or below this risk level.
	// Empty means never auto-approve on risk alone.
	MaxAutoRisk string `json:"maxAutoRisk" envconfig:"APPROVAL_MAX_AUTO_RISK"`
	// PreflightEnabled turns on the blocking local confirmation for
	// high-risk filesystem/browser requests.
	PreflightEnabled bool `json:"preflightEnabled" envconfig:"APPROVAL_PREFLIGHT"`
}

// NotifyConfig configures approval notifications.
type NotifyConfig struct {
	SlackEnabled bool   `json:"slackEnabled" envconfig:"SLACK_ENABLED"`
	SlackToken   string `json:"slackToken" envconfig:"SLACK_TOKEN"`
	SlackChannel string `json:"slackChannel" envconfig:"SLACK_CHANNEL"`
}

// GatewayConfig configures the local read/resolve HTTP surface.
type GatewayConfig struct {
	Enabled    bool   `json:"enabled" envconfig:"GATEWAY_ENABLED"`
	ListenAddr string `json:"listenAddr" envconfig:"GATEWAY_ADDR"`
	Token      string `json:"token" envconfig:"GATEWAY_TOKEN"`
}

// AuditConfig configures the SQLite audit journal.
type AuditConfig struct {
	Enabled bool   `json:"enabled" envconfig:"AUDIT_ENABLED"`
	DBPath  string `json:"dbPath" envconfig:"AUDIT_DB_PATH"`
}
