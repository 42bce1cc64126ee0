package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	channelPath      = "/api/v1/ws/chat"
	conversationPath = "/api/v1/conversations"
)

// Conn is the subset of *websocket.Conn the manager uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens a duplex channel to target.
type DialFunc func(ctx context.Context, target string) (Conn, error)

// GorillaDialer dials with gorilla/websocket.
func GorillaDialer(handshakeTimeout time.Duration) DialFunc {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	return func(ctx context.Context, target string) (Conn, error) {
		conn, resp, err := dialer.DialContext(ctx, target, nil)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("websocket dial failed with status %s: %w", resp.Status, err)
			}
			return nil, fmt.Errorf("websocket dial failed: %w", err)
		}
		return conn, nil
	}
}

// ChannelURL derives the duplex endpoint from the backend base address,
// upgrading http to ws and https to wss.
func ChannelURL(baseURL, propertyID, sessionID string) (string, error) {
	u, err := parseBase(baseURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q for duplex channel", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + channelPath
	q := url.Values{}
	q.Set("property_id", propertyID)
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ConversationURL is the fixed request/response endpoint.
func ConversationURL(baseURL string) (string, error) {
	u, err := parseBase(baseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q for conversation endpoint", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + conversationPath
	return u.String(), nil
}

func parseBase(baseURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid backend address %q: %w", baseURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid backend address %q: missing host", baseURL)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// channel wraps one open Conn. gorilla connections allow a single
// concurrent writer, so writes are serialized.
type channel struct {
	conn      Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newChannel(conn Conn) *channel {
	return &channel{conn: conn, done: make(chan struct{})}
}

func (c *channel) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return c.write(websocket.TextMessage, data)
}

func (c *channel) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

func (c *channel) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// isNormalClose reports closes that are not worth a warning.
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
