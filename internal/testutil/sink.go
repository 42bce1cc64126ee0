package testutil

import (
	"sync"

	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
	"github.com/nocturn-hq/concierge-widget/internal/transport"
)

// RecordingSink records everything the transport pushes toward the view.
type RecordingSink struct {
	mu       sync.Mutex
	turns    []chat.Turn
	typing   []bool
	statuses []chat.Status
}

var _ transport.Sink = (*RecordingSink)(nil)

func (s *RecordingSink) AppendTurn(role chat.Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, chat.Turn{Role: role, Text: text})
}

func (s *RecordingSink) SetTyping(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = append(s.typing, visible)
}

func (s *RecordingSink) SetStatus(status chat.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *RecordingSink) Turns() []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Turn(nil), s.turns...)
}

// Typing returns every typing change in order.
func (s *RecordingSink) Typing() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.typing...)
}

// TypingVisible is the last typing value, false if never set.
func (s *RecordingSink) TypingVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.typing) == 0 {
		return false
	}
	return s.typing[len(s.typing)-1]
}

func (s *RecordingSink) Status() chat.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return chat.StatusOnline
	}
	return s.statuses[len(s.statuses)-1]
}

// Consent is a switchable consent flag.
type Consent struct {
	mu      sync.Mutex
	allowed bool
}

func NewConsent(allowed bool) *Consent {
	return &Consent{allowed: allowed}
}

func (c *Consent) Allowed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allowed
}

func (c *Consent) Set(allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowed = allowed
}
