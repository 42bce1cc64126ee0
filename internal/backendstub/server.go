// Package backendstub is a local stand-in for the concierge backend. It
// speaks the same duplex and request/response contract the widget uses.
package backendstub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
	"github.com/nocturn-hq/concierge-widget/internal/model/property"
	chatservice "github.com/nocturn-hq/concierge-widget/internal/service/chat"
	"github.com/nocturn-hq/concierge-widget/pkg/utils"
)

// Server holds the stub's handlers and their dependencies.
type Server struct {
	properties property.Store
	ledger     *chatservice.Service
	responder  Responder
	registry   *Registry
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
}

type Option func(*Server)

func WithResponder(r Responder) Option {
	return func(s *Server) {
		s.responder = r
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger.With().Str("component", "backendstub").Logger()
	}
}

func New(properties property.Store, ledger *chatservice.Service, opts ...Option) *Server {
	s := &Server{
		properties: properties,
		ledger:     ledger,
		responder:  EchoResponder{},
		registry:   NewRegistry(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRouter mounts the stub under /api/v1 with the usual middleware.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/v1", s.RegisterRoutes)

	return r
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/properties", s.handleListProperties)
	r.Post("/conversations", s.handleConversation)
	r.Get("/ws/chat", s.handleChannel)
}

// Registry exposes the live sockets, mainly for tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Close drops every open socket.
func (s *Server) Close() {
	s.registry.CloseAll()
}

type conversationRequest struct {
	PropertyID string `json:"property_id"`
	Message    string `json:"message"`
	SessionID  string `json:"session_id"`
}

type conversationResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	Mode           string `json:"mode"`
	IsAfterHours   bool   `json:"is_after_hours"`
	ResponseTimeMs int    `json:"response_time_ms"`
	LeadCreated    bool   `json:"lead_created"`
}

func (s *Server) handleListProperties(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, s.properties.List())
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.PropertyID == "" {
		utils.RespondError(w, http.StatusBadRequest, "property_id is required")
		return
	}

	prop, ok := s.properties.FindByID(req.PropertyID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "Property not found")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	started := time.Now()
	text, conv, err := s.reply(r.Context(), prop, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, chatservice.ErrPropertyMismatch) {
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error().Err(err).Str("session_id", req.SessionID).Msg("failed to answer conversation")
		utils.RespondError(w, http.StatusInternalServerError, "failed to generate response")
		return
	}

	utils.RespondJSON(w, http.StatusOK, conversationResponse{
		Response:       text,
		ConversationID: conv.ID,
		Mode:           "ai",
		ResponseTimeMs: int(time.Since(started).Milliseconds()),
	})
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	propertyID := query.Get("property_id")
	sessionID := query.Get("session_id")
	if propertyID == "" || sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "property_id and session_id are required")
		return
	}

	prop, ok := s.properties.FindByID(propertyID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "Property not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	logger := s.logger.With().Str("session_id", sessionID).Logger()
	s.registry.Add(sessionID, conn)
	defer func() {
		s.registry.Remove(sessionID, conn)
		_ = conn.Close()
	}()
	logger.Info().Str("property_id", propertyID).Msg("guest channel opened")

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("guest channel read failed")
			}
			return
		}

		var msg chat.OutboundMessage
		if err := json.Unmarshal(data, &msg); err != nil || strings.TrimSpace(msg.Message) == "" {
			if err := writeFrame(conn, chat.Frame{Type: chat.FrameError, Detail: "invalid message"}); err != nil {
				return
			}
			continue
		}

		if err := writeFrame(conn, chat.Frame{Type: chat.FrameTyping}); err != nil {
			return
		}

		text, _, err := s.reply(ctx, prop, sessionID, strings.TrimSpace(msg.Message))
		frame := chat.Frame{Type: chat.FrameAIResponse, Response: text}
		if err != nil {
			logger.Error().Err(err).Msg("failed to answer guest message")
			frame = chat.Frame{Type: chat.FrameError, Detail: err.Error()}
		}
		if err := writeFrame(conn, frame); err != nil {
			return
		}
	}
}

// reply records the guest message, asks the responder and records the answer.
func (s *Server) reply(ctx context.Context, prop property.Property, sessionID, text string) (string, chat.Conversation, error) {
	conv, err := s.ledger.EnsureConversation(ctx, prop.ID, sessionID)
	if err != nil {
		return "", chat.Conversation{}, err
	}

	history, err := s.ledger.LoadTranscript(ctx, sessionID)
	if err != nil {
		return "", conv, fmt.Errorf("load transcript: %w", err)
	}

	if err := s.ledger.Record(ctx, chat.Message{SessionID: sessionID, Role: chat.RoleGuest, Text: text}); err != nil {
		return "", conv, fmt.Errorf("record guest message: %w", err)
	}

	answer, err := s.responder.Respond(ctx, prop, history, text)
	if err != nil {
		return "", conv, fmt.Errorf("generate response: %w", err)
	}

	if err := s.ledger.Record(ctx, chat.Message{SessionID: sessionID, Role: chat.RoleAI, Text: answer}); err != nil {
		return "", conv, fmt.Errorf("record ai message: %w", err)
	}
	return answer, conv, nil
}

func writeFrame(conn *websocket.Conn, frame chat.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
