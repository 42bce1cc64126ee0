package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
)

// Fallback performs one request/response exchange when the duplex
// channel is not connected.
type Fallback interface {
	Converse(ctx context.Context, msg chat.OutboundMessage) (*chat.ConversationReply, error)
}

// HTTPFallback posts to the backend's conversation endpoint.
type HTTPFallback struct {
	endpoint   string
	httpClient *http.Client
}

var _ Fallback = (*HTTPFallback)(nil)

// NewHTTPFallback fails only when baseURL cannot be turned into an endpoint.
func NewHTTPFallback(baseURL string, timeout time.Duration) (*HTTPFallback, error) {
	endpoint, err := ConversationURL(baseURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFallback{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type conversationRequest struct {
	PropertyID string `json:"property_id"`
	Message    string `json:"message"`
	SessionID  string `json:"session_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func (f *HTTPFallback) Converse(ctx context.Context, msg chat.OutboundMessage) (*chat.ConversationReply, error) {
	body, err := json.Marshal(conversationRequest{
		PropertyID: msg.PropertyID,
		Message:    msg.Message,
		SessionID:  msg.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("conversation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil {
			if detail := firstNonEmpty(errResp.Detail, errResp.Error); detail != "" {
				return nil, fmt.Errorf("backend error (status %d): %s", resp.StatusCode, detail)
			}
		}
		return nil, fmt.Errorf("backend error: status %d", resp.StatusCode)
	}

	var reply chat.ConversationReply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode conversation response: %w", err)
	}
	return &reply, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
