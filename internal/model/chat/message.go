package chat

// Role identifies who authored a turn in the visible transcript.
type Role string

const (
	RoleGuest Role = "guest"
	RoleAI    Role = "ai"
)

// Turn is one entry of the visible transcript. Order is append order.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// OutboundMessage is built per send and travels over either channel.
type OutboundMessage struct {
	Message    string `json:"message"`
	SessionID  string `json:"session_id"`
	PropertyID string `json:"property_id"`
}

// Frame types sent by the backend over the duplex channel.
const (
	FrameAIResponse = "ai_response"
	FrameTyping     = "typing"
	FrameError      = "error"
)

// Frame is a structured server frame on the duplex channel.
type Frame struct {
	Type     string `json:"type"`
	Response string `json:"response,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// ConversationReply is the body of the request/response endpoint.
// Only Response is relied upon; the rest is decoded for hosts that care.
type ConversationReply struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id,omitempty"`
	Mode           string `json:"mode,omitempty"`
	IsAfterHours   bool   `json:"is_after_hours,omitempty"`
	ResponseTimeMs int    `json:"response_time_ms,omitempty"`
	LeadCreated    bool   `json:"lead_created,omitempty"`
}

// Guest-facing copy used whenever a failure has to surface in the transcript.
const (
	TextNoResponse     = "Sorry, I could not process your request."
	TextFrameError     = "Sorry, something went wrong. Please try again."
	TextFallbackFailed = "Sorry, I'm having trouble connecting. Please try again shortly."
)
