// Package workflow derives and adopts the stable hash correlating every
// event of one logical task thread.
package workflow

import (
	"context"
	"crypto"
	"encoding/hex"
	"hash/fnv"
	"log/slog"

	_ "crypto/sha256" // register SHA-256

	"github.com/AgentGate/AgentGate/internal/backend"
	"github.com/AgentGate/AgentGate/internal/events"
	"github.com/AgentGate/AgentGate/internal/store"
)

// Derive computes the workflow hash for a plan that arrived without one:
// the SHA-256 hex digest of entryPoint + "::" + description. Identical
// inputs always yield the identical hash, so correlation survives
// reconnects and replays. If SHA-256 is not linked into the binary the
// digest falls back to FNV-64a, which keeps correlation continuity but not
// collision resistance.
func Derive(entryPoint, description string) string {
	input := entryPoint + "::" + description
	if crypto.SHA256.Available() {
		h := crypto.SHA256.New()
		h.Write([]byte(input))
		return hex.EncodeToString(h.Sum(nil))
	}
	slog.Warn("SHA-256 unavailable, falling back to FNV-64a workflow hash")
	h := fnv.New64a()
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))
}

// Correlator adopts workflow hashes into the store and hands them back to
// the backend so both sides label the thread identically.
type Correlator struct {
	store  *store.Store
	client backend.Client
}

// New creates a correlator. Client may be backend.Nop for offline runs.
func New(st *store.Store, client backend.Client) *Correlator {
	return &Correlator{store: st, client: client}
}

// AdoptPlan installs the workflow context for a plan, deriving the hash
// when the plan lacks one, and returns the adopted hash. The backend
// handshake runs asynchronously and never blocks event dispatch.
func (c *Correlator) AdoptPlan(ctx context.Context, plan events.Plan) string {
	hash := plan.WorkflowHash
	if hash == "" {
		hash = Derive(plan.EntryPoint, plan.Description)
	}
	c.adopt(ctx, store.WorkflowContext{
		Hash:        hash,
		Description: plan.Description,
		EntryPoint:  plan.EntryPoint,
	})
	return hash
}

// AdoptHash installs an explicitly provided hash, keeping any existing
// description and entry point if the context hash is unchanged.
func (c *Correlator) AdoptHash(ctx context.Context, hash string) {
	if hash == "" {
		return
	}
	if cur, ok := c.store.WorkflowContext(); ok && cur.Hash == hash {
		return
	}
	c.adopt(ctx, store.WorkflowContext{Hash: hash})
}

func (c *Correlator) adopt(ctx context.Context, wc store.WorkflowContext) {
	c.store.SetWorkflowContext(wc)
	go func() {
		if err := c.client.SetWorkflowHash(ctx, wc.Hash); err != nil {
			// Local correlation is intact; the backend just risks
			// mislabeling subsequent events.
			slog.Warn("Workflow hash handshake failed", "hash", wc.Hash, "error", err)
		}
	}()
}
