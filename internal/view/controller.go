// Package view keeps the visible state of the chat panel and pushes a
// fresh snapshot to the host renderer on every change.
package view

import (
	"sync"

	"github.com/nocturn-hq/concierge-widget/internal/config"
	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
)

// Surface is implemented by the host. Render is called with the
// controller lock held, in change order, and must not call back into it.
type Surface interface {
	Render(Snapshot)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(Snapshot)

func (f SurfaceFunc) Render(s Snapshot) { f(s) }

// Snapshot is an immutable copy of the panel state.
type Snapshot struct {
	Turns         []chat.Turn
	Typing        bool
	Status        chat.Status
	InputEnabled  bool
	PanelOpen     bool
	ConsentPrompt bool
	Degraded      bool

	Title       string
	AccentColor string
	PrivacyURL  string

	// ScrollIndex is the turn the transcript is pinned to, -1 when empty.
	ScrollIndex int
}

// Controller owns the transcript and the panel flags.
type Controller struct {
	mu       sync.Mutex
	state    Snapshot
	greeting string
	greeted  bool
	surface  Surface
}

// NewController starts closed, offline, with input disabled until the
// consent gate says otherwise. A nil surface discards renders.
func NewController(cfg config.WidgetConfig, surface Surface) *Controller {
	if surface == nil {
		surface = SurfaceFunc(func(Snapshot) {})
	}
	return &Controller{
		greeting: cfg.Greeting,
		surface:  surface,
		state: Snapshot{
			Status:      chat.StatusOnline,
			Title:       cfg.Title,
			AccentColor: cfg.AccentColor,
			PrivacyURL:  cfg.PrivacyURL,
			ScrollIndex: -1,
		},
	}
}

// AppendTurn adds a turn and scrolls to it.
func (c *Controller) AppendTurn(role chat.Role, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(chat.Turn{Role: role, Text: text})
	c.renderLocked()
}

func (c *Controller) SetTyping(visible bool) {
	c.update(func(s *Snapshot) { s.Typing = visible })
}

func (c *Controller) SetStatus(status chat.Status) {
	c.update(func(s *Snapshot) { s.Status = status })
}

func (c *Controller) SetInputEnabled(enabled bool) {
	c.update(func(s *Snapshot) { s.InputEnabled = enabled })
}

func (c *Controller) SetConsentPrompt(visible bool) {
	c.update(func(s *Snapshot) { s.ConsentPrompt = visible })
}

func (c *Controller) SetDegraded(degraded bool) {
	c.update(func(s *Snapshot) { s.Degraded = degraded })
}

// Open shows the panel. The greeting is added the first time the panel
// opens on an empty transcript and never again for this controller.
// It reports whether the panel was closed before.
func (c *Controller) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.PanelOpen {
		return false
	}
	c.state.PanelOpen = true
	if !c.greeted && len(c.state.Turns) == 0 && c.greeting != "" {
		c.appendLocked(chat.Turn{Role: chat.RoleAI, Text: c.greeting})
	}
	c.greeted = true
	c.renderLocked()
	return true
}

// Close hides the panel; the transcript is kept.
func (c *Controller) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.PanelOpen {
		return false
	}
	c.state.PanelOpen = false
	c.renderLocked()
	return true
}

func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.PanelOpen
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

func (c *Controller) update(fn func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.state
	fn(&c.state)
	if sameFlags(before, c.state) {
		return
	}
	c.renderLocked()
}

func (c *Controller) appendLocked(turn chat.Turn) {
	c.state.Turns = append(c.state.Turns, turn)
	c.state.ScrollIndex = len(c.state.Turns) - 1
}

func (c *Controller) renderLocked() {
	c.surface.Render(c.copyLocked())
}

func (c *Controller) copyLocked() Snapshot {
	s := c.state
	s.Turns = append([]chat.Turn(nil), c.state.Turns...)
	return s
}

func sameFlags(a, b Snapshot) bool {
	return a.Typing == b.Typing &&
		a.Status == b.Status &&
		a.InputEnabled == b.InputEnabled &&
		a.ConsentPrompt == b.ConsentPrompt &&
		a.Degraded == b.Degraded
}
