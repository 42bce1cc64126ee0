// Package consent blocks message submission until the guest has agreed
// to the privacy policy once for their identity.
package consent

import (
	"context"
	"sync"
)

// State of the gate. There is no way back from Allowed.
type State int

const (
	Blocked State = iota
	Allowed
)

func (s State) String() string {
	if s == Allowed {
		return "allowed"
	}
	return "blocked"
}

// Recorder persists consent; identity.Store satisfies it.
type Recorder interface {
	HasConsent(ctx context.Context) bool
	GrantConsent(ctx context.Context)
}

// InputSurface is the part of the panel the gate controls.
type InputSurface interface {
	SetInputEnabled(enabled bool)
	SetConsentPrompt(visible bool)
}

// Gate is the two-state consent machine.
type Gate struct {
	mu        sync.Mutex
	state     State
	recorder  Recorder
	input     InputSurface
	onAllowed []func()
}

// NewGate starts Allowed when consent was already recorded, Blocked
// otherwise, and applies that state to the input surface immediately.
func NewGate(ctx context.Context, recorder Recorder, input InputSurface) *Gate {
	g := &Gate{recorder: recorder, input: input, state: Blocked}
	if recorder.HasConsent(ctx) {
		g.state = Allowed
	}
	g.apply(g.state)
	return g
}

// OnAllowed registers fn to run after the Blocked to Allowed transition.
func (g *Gate) OnAllowed(fn func()) {
	g.mu.Lock()
	g.onAllowed = append(g.onAllowed, fn)
	g.mu.Unlock()
}

// Accept records the guest's explicit agreement. It reports whether this
// call performed the transition.
func (g *Gate) Accept(ctx context.Context) bool {
	g.mu.Lock()
	if g.state == Allowed {
		g.mu.Unlock()
		return false
	}
	g.recorder.GrantConsent(ctx)
	g.state = Allowed
	hooks := append([]func(){}, g.onAllowed...)
	g.mu.Unlock()

	g.apply(Allowed)
	for _, fn := range hooks {
		fn()
	}
	return true
}

// Allowed reports whether outbound messages may be built.
func (g *Gate) Allowed() bool {
	return g.State() == Allowed
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) apply(state State) {
	if g.input == nil {
		return
	}
	allowed := state == Allowed
	g.input.SetConsentPrompt(!allowed)
	g.input.SetInputEnabled(allowed)
}
