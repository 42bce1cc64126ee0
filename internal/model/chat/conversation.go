package chat

import "time"

// Conversation groups the messages of one guest session at one property.
type Conversation struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	PropertyID string    `json:"property_id"`
	StartedAt  time.Time `json:"started_at"`
}

// Message is a stored transcript entry on the backend side.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SessionID      string    `json:"session_id"`
	Role           Role      `json:"role"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}
