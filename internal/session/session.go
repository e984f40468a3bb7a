// Package session wires the store, transport, listener registry, workflow
// correlator and approval gate into one consuming surface with a clean
// teardown contract.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/AgentGate/AgentGate/internal/approval"
	"github.com/AgentGate/AgentGate/internal/audit"
	"github.com/AgentGate/AgentGate/internal/backend"
	"github.com/AgentGate/AgentGate/internal/config"
	"github.com/AgentGate/AgentGate/internal/dispatch"
	"github.com/AgentGate/AgentGate/internal/events"
	"github.com/AgentGate/AgentGate/internal/notify"
	"github.com/AgentGate/AgentGate/internal/policy"
	"github.com/AgentGate/AgentGate/internal/store"
	"github.com/AgentGate/AgentGate/internal/transport"
	"github.com/AgentGate/AgentGate/internal/workflow"
)

// Session is one consuming surface over the agent event stream. Each
// Session owns an explicit store instance; independent sessions never
// share state.
type Session struct {
	cfg config.Config

	mu         sync.RWMutex
	store      *store.Store
	gate       *approval.Gate
	correlator *workflow.Correlator

	transport transport.Transport
	registry  *dispatch.Registry
	client    backend.Client
	journal   *audit.Journal
	sweeper   *cron.Cron

	prefs store.Preferences
}

// Options overrides session collaborators, mainly for embedding and tests.
type Options struct {
	Transport transport.Transport
	Client    backend.Client
	Journal   *audit.Journal
	Preflight approval.PreflightFunc
}

// New assembles a session from configuration.
func New(cfg config.Config, opts Options) (*Session, error) {
	s := &Session{cfg: cfg}

	s.transport = opts.Transport
	if s.transport == nil {
		switch cfg.Transport.Kind {
		case "bus":
			s.transport = transport.NewBus()
		case "kafka", "":
			s.transport = transport.NewKafka(cfg.Transport.Brokers, cfg.Transport.TopicPrefix, cfg.Transport.GroupID)
		default:
			return nil, fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
		}
	}

	s.client = opts.Client
	if s.client == nil {
		if cfg.Backend.BaseURL == "" {
			s.client = backend.Nop{}
		} else {
			s.client = backend.NewHTTP(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout())
		}
	}

	s.journal = opts.Journal
	if s.journal == nil && cfg.Audit.Enabled && cfg.Audit.DBPath != "" {
		journal, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open audit journal: %w", err)
		}
		s.journal = journal
	}

	prefs, err := store.LoadPreferences(cfg.Paths.Preferences)
	if err != nil {
		slog.Warn("Preferences unreadable, using defaults", "error", err)
	}
	s.prefs = prefs

	s.rebuild(opts.Preflight)
	s.registry = dispatch.New(s.transport)
	return s, nil
}

// rebuild installs a fresh volatile store and the components bound to it.
// Session state is rebuilt from zero purely from the live event stream.
func (s *Session) rebuild(preflight approval.PreflightFunc) {
	st := store.New()
	gateOpts := []approval.Option{
		approval.WithDefaultTimeout(s.cfg.Approval.TimeoutSeconds),
	}
	if s.journal != nil {
		gateOpts = append(gateOpts, approval.WithRecorder(s.journal))
	}
	if s.cfg.Notify.SlackEnabled && s.cfg.Notify.SlackToken != "" {
		gateOpts = append(gateOpts, approval.WithNotifier(notify.NewSlack(s.cfg.Notify.SlackToken, s.cfg.Notify.SlackChannel)))
	}
	if preflight != nil {
		gateOpts = append(gateOpts, approval.WithPreflight(preflight))
	}
	engine := policyEngine(s.cfg.Approval)

	s.mu.Lock()
	s.store = st
	s.gate = approval.NewGate(st, s.client, engine, gateOpts...)
	s.correlator = workflow.New(st, s.client)
	s.mu.Unlock()
}

// Store returns the live store handle. Handlers and other long-lived
// consumers must call this on every access instead of capturing the
// reference, so a swapped store is always picked up.
func (s *Session) Store() *store.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Gate returns the live approval gate.
func (s *Session) Gate() *approval.Gate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gate
}

// Correlator returns the live workflow correlator.
func (s *Session) Correlator() *workflow.Correlator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.correlator
}

// Start subscribes every event channel and begins the approval timeout
// sweep. Subscription failures abort startup; a partially subscribed
// session would silently miss events.
func (s *Session) Start(ctx context.Context) error {
	for channel, handler := range s.routes() {
		if err := s.registry.Subscribe(ctx, channel, handler); err != nil {
			closeErr := s.registry.Close()
			return errors.Join(fmt.Errorf("start session: %w", err), closeErr)
		}
	}

	// Recompute approval timeouts at least once per second while
	// requests are pending.
	s.sweeper = cron.New()
	if _, err := s.sweeper.AddFunc("@every 1s", func() {
		s.Gate().Sweep(time.Now())
	}); err != nil {
		return fmt.Errorf("schedule approval sweep: %w", err)
	}
	s.sweeper.Start()

	slog.Info("Session started", "transport", s.cfg.Transport.Kind, "channels", len(events.Channels()))
	return nil
}

// Close tears down subscriptions, the sweeper, the transport and the audit
// journal. Every teardown step runs even when earlier ones fail.
func (s *Session) Close() error {
	var errs []error
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if err := s.registry.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := store.SavePreferences(s.cfg.Paths.Preferences, s.Preferences()); err != nil {
		errs = append(errs, err)
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendMessage records an outgoing user turn.
func (s *Session) SendMessage(content string) store.Message {
	m := store.Message{
		ID:        uuid.NewString(),
		Role:      "user",
		Content:   content,
		Timestamp: time.Now(),
	}
	s.Store().AddMessage(m)
	return m
}

// Preferences returns the persisted UI preference tier.
func (s *Session) Preferences() store.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// SetPreferences replaces the persisted UI preference tier.
func (s *Session) SetPreferences(p store.Preferences) {
	s.mu.Lock()
	s.prefs = p
	s.mu.Unlock()
}

// StopCurrentTask asks the backend to stop the running task.
func (s *Session) StopCurrentTask(ctx context.Context) error {
	return s.client.StopCurrentTask(ctx)
}

// PauseAgent asks the backend to pause an agent.
func (s *Session) PauseAgent(ctx context.Context, agentID string) error {
	return s.client.PauseAgent(ctx, agentID)
}

// ResumeAgent asks the backend to resume an agent.
func (s *Session) ResumeAgent(ctx context.Context, agentID string) error {
	return s.client.ResumeAgent(ctx, agentID)
}

// CancelAgent asks the backend to cancel an agent.
func (s *Session) CancelAgent(ctx context.Context, agentID string) error {
	return s.client.CancelAgent(ctx, agentID)
}

func policyEngine(cfg config.ApprovalConfig) policy.Engine {
	return &policy.DefaultEngine{
		MaxAutoRisk:      cfg.MaxAutoRisk,
		PreflightEnabled: cfg.PreflightEnabled,
	}
}
