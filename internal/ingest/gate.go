package ingest

import (
	"strings"

	"github.com/spacesedan/toxiflow/internal/models"
)

type GateState int

const (
	GateNotChecked GateState = iota
	GateAllowed
	GateDenied
	GateBlockedAtRuntime
)

// SafetyGate decides whether scraping a container may run at all, and stops
// it mid-stream when the first fetched item shows the container is not
// public. Consent comes from an explicit flag or an environment-level opt-in,
// both resolved at construction so the decision is deterministic.
type SafetyGate struct {
	allowFlag bool
	envOptIn  bool
	state     GateState
}

func NewSafetyGate(allowFlag, envOptIn bool) *SafetyGate {
	return &SafetyGate{allowFlag: allowFlag, envOptIn: envOptIn, state: GateNotChecked}
}

// Authorize moves the gate out of GateNotChecked. Without consent the gate
// denies before any network call is made; denial is a normal outcome, not an
// error.
func (g *SafetyGate) Authorize() bool {
	if g.allowFlag || g.envOptIn {
		g.state = GateAllowed
		return true
	}
	g.state = GateDenied
	return false
}

// CheckVisibility inspects the first fetched post of a container. A
// non-public visibility indicator blocks the rest of the ingestion; nothing
// fetched so far may be persisted. An absent indicator counts as public:
// some upstream versions omit the field entirely.
func (g *SafetyGate) CheckVisibility(post models.PostData) bool {
	if g.state != GateAllowed {
		return false
	}

	visibility := strings.ToLower(strings.TrimSpace(post.SubredditType))
	if visibility == "" || visibility == "public" {
		return true
	}

	g.state = GateBlockedAtRuntime
	return false
}

func (g *SafetyGate) State() GateState { return g.state }
