package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
)

var (
	ErrPropertyRequired = errors.New("property id is required")
	ErrSessionRequired  = errors.New("session id is required")
	ErrSessionNotFound  = errors.New("session not found")
	ErrPropertyMismatch = errors.New("session belongs to another property")
)

// Service is the in-memory guest ledger: one conversation per session id.
type Service struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	messages      map[string][]chat.Message
}

func NewService() *Service {
	return &Service{
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
	}
}

// EnsureConversation returns the session's conversation, starting one on
// first contact. A session stays bound to the property it started with.
func (s *Service) EnsureConversation(_ context.Context, propertyID, sessionID string) (chat.Conversation, error) {
	if propertyID == "" {
		return chat.Conversation{}, ErrPropertyRequired
	}
	if sessionID == "" {
		return chat.Conversation{}, ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[sessionID]; ok {
		if conv.PropertyID != propertyID {
			return chat.Conversation{}, ErrPropertyMismatch
		}
		return conv, nil
	}

	conv := chat.Conversation{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		PropertyID: propertyID,
		StartedAt:  time.Now().UTC(),
	}
	s.conversations[sessionID] = conv
	s.messages[sessionID] = make([]chat.Message, 0, 16)
	return conv, nil
}

// Record appends a message to the session's conversation.
func (s *Service) Record(_ context.Context, message chat.Message) error {
	if message.SessionID == "" {
		return ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[message.SessionID]
	if !ok {
		return ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	message.ConversationID = conv.ID
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return nil
}

func (s *Service) GetConversation(_ context.Context, sessionID string) (chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[sessionID]
	if !ok {
		return chat.Conversation{}, ErrSessionNotFound
	}
	return conv, nil
}

// LoadTranscript returns a copy of the stored messages for the session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
