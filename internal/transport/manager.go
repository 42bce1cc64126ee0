// Package transport owns the duplex channel to the concierge backend and
// the request/response fallback used whenever that channel is not open.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
)

var (
	// ErrConsentRequired is returned when messaging is attempted before consent.
	ErrConsentRequired = errors.New("consent required before messaging")
	// ErrDisposed is returned after Dispose.
	ErrDisposed = errors.New("transport disposed")
)

// Sink receives everything the manager wants the guest to see.
// SetStatus is called with the manager lock held and must not call back into it.
type Sink interface {
	AppendTurn(role chat.Role, text string)
	SetTyping(visible bool)
	SetStatus(status chat.Status)
}

// ConsentChecker reports whether messaging is currently permitted.
type ConsentChecker interface {
	Allowed() bool
}

// Options configure a Manager.
type Options struct {
	BaseURL        string
	PropertyID     string
	SessionID      string
	ReconnectDelay time.Duration
	PingInterval   time.Duration

	Dial     DialFunc
	Fallback Fallback
	Clock    Clock
	Logger   zerolog.Logger
}

// DefaultOptions returns the production timing with the gorilla dialer and
// the system clock. Callers fill in the addressing fields.
func DefaultOptions() Options {
	return Options{
		ReconnectDelay: 5 * time.Second,
		PingInterval:   30 * time.Second,
		Dial:           GorillaDialer(10 * time.Second),
		Clock:          SystemClock{},
		Logger:         zerolog.Nop(),
	}
}

// Manager keeps at most one duplex channel open, reconnects after a close
// while the panel is open, and routes sends over whichever path is usable.
type Manager struct {
	opts    Options
	consent ConsentChecker
	sink    Sink
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        chat.ConnState
	channel      *channel
	panelOpen    bool
	reconnect    Timer
	reconnectSeq uint64
	disposed     bool

	wg sync.WaitGroup
}

// NewManager wires a manager. A missing fallback is built from BaseURL; if
// that fails every send surfaces the connection failure turn.
func NewManager(opts Options, consent ConsentChecker, sink Sink) *Manager {
	defaults := DefaultOptions()
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaults.ReconnectDelay
	}
	if opts.Dial == nil {
		opts.Dial = defaults.Dial
	}
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}

	logger := opts.Logger.With().Str("component", "transport").Logger()
	if opts.Fallback == nil {
		fb, err := NewHTTPFallback(opts.BaseURL, 0)
		if err != nil {
			logger.Warn().Err(err).Msg("request/response fallback unavailable")
		} else {
			opts.Fallback = fb
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:    opts,
		consent: consent,
		sink:    sink,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// State returns the current channel state.
func (m *Manager) State() chat.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ReconnectPending reports whether a reconnect timer is armed.
func (m *Manager) ReconnectPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnect != nil
}

// Connect starts a dial unless one is already in progress or open.
// It never blocks on the network.
func (m *Manager) Connect() error {
	return m.connect(false)
}

// connect checks the panel under the same lock as the dial when called
// from the reconnect timer.
func (m *Manager) connect(requirePanelOpen bool) error {
	if !m.consent.Allowed() {
		return ErrConsentRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return ErrDisposed
	}
	if requirePanelOpen && !m.panelOpen {
		return nil
	}
	if m.state != chat.StateDisconnected {
		return nil
	}
	m.stopReconnectLocked()

	target, err := ChannelURL(m.opts.BaseURL, m.opts.PropertyID, m.opts.SessionID)
	if err != nil {
		m.logger.Warn().Err(err).Msg("duplex channel cannot be created, using request/response only")
		m.sink.SetStatus(chat.StatusOnline)
		return nil
	}

	m.state = chat.StateConnecting
	m.wg.Add(1)
	go m.dial(target)
	return nil
}

func (m *Manager) dial(target string) {
	defer m.wg.Done()

	m.logger.Debug().Str("url", target).Msg("dialing duplex channel")
	conn, err := m.opts.Dial(m.ctx, target)
	if err != nil {
		m.logger.Warn().Err(err).Msg("duplex channel error")
		m.closed(nil)
		return
	}

	m.mu.Lock()
	if m.disposed || m.state != chat.StateConnecting {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	ch := newChannel(conn)
	m.channel = ch
	m.state = chat.StateConnected
	m.sink.SetStatus(chat.StatusConnected)
	m.wg.Add(1)
	go m.readLoop(ch)
	if m.opts.PingInterval > 0 {
		m.wg.Add(1)
		go m.pingLoop(ch)
	}
	m.mu.Unlock()

	m.logger.Info().Str("session_id", m.opts.SessionID).Msg("duplex channel connected")
}

// readLoop is the only reader, so frames reach the sink in receive order.
func (m *Manager) readLoop(ch *channel) {
	defer m.wg.Done()

	for {
		_, data, err := ch.conn.ReadMessage()
		if err != nil {
			select {
			case <-ch.done:
				m.logger.Debug().Msg("duplex channel closed locally")
			default:
				if isNormalClose(err) {
					m.logger.Info().Err(err).Msg("duplex channel closed by server")
				} else {
					m.logger.Warn().Err(err).Msg("duplex channel error")
				}
			}
			ch.close()
			m.closed(ch)
			return
		}
		m.handleFrame(data)
	}
}

func (m *Manager) pingLoop(ch *channel) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ch.done:
			return
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if err := ch.write(websocket.PingMessage, nil); err != nil {
				m.logger.Debug().Err(err).Msg("keep-alive ping failed")
				return
			}
		}
	}
}

// handleFrame hides typing first, whatever the frame turns out to be.
// Anything that is not a JSON object is shown as raw text.
func (m *Manager) handleFrame(data []byte) {
	m.sink.SetTyping(false)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		m.sink.AppendTurn(chat.RoleAI, string(data))
		return
	}

	var kind string
	_ = json.Unmarshal(fields["type"], &kind)

	switch kind {
	case chat.FrameAIResponse:
		m.sink.AppendTurn(chat.RoleAI, replyText(frameText(fields["response"])))
	case chat.FrameTyping:
		m.sink.SetTyping(true)
	case chat.FrameError:
		m.logger.Warn().RawJSON("detail", detailJSON(fields["detail"])).Msg("backend reported an error")
		m.sink.AppendTurn(chat.RoleAI, chat.TextFrameError)
	default:
		m.logger.Debug().Str("type", kind).Msg("ignoring unknown frame")
	}
}

// frameText reads a response field. Strings are used as-is and non-zero
// numbers by their literal; everything else counts as no response.
func frameText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if f, err := n.Float64(); err == nil && f != 0 {
			return n.String()
		}
	}
	return ""
}

func detailJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}

// closed handles both a failed dial (ch == nil) and the end of an open
// channel. Stale notifications from a replaced channel are ignored.
func (m *Manager) closed(ch *channel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch == nil {
		if m.state != chat.StateConnecting {
			return
		}
	} else if m.channel != ch {
		return
	}

	m.channel = nil
	m.state = chat.StateDisconnected
	m.sink.SetStatus(chat.StatusOnline)

	if m.disposed || !m.panelOpen || !m.consent.Allowed() {
		return
	}
	m.scheduleReconnectLocked()
}

func (m *Manager) scheduleReconnectLocked() {
	if m.reconnect != nil {
		return
	}
	m.reconnectSeq++
	seq := m.reconnectSeq
	m.reconnect = m.opts.Clock.AfterFunc(m.opts.ReconnectDelay, func() {
		m.fireReconnect(seq)
	})
	m.logger.Debug().Dur("delay", m.opts.ReconnectDelay).Msg("reconnect scheduled")
}

func (m *Manager) fireReconnect(seq uint64) {
	m.mu.Lock()
	if m.reconnect == nil || m.reconnectSeq != seq {
		m.mu.Unlock()
		return
	}
	m.reconnect = nil
	m.mu.Unlock()

	if err := m.connect(true); err != nil {
		m.logger.Debug().Err(err).Msg("reconnect skipped")
	}
}

func (m *Manager) stopReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.reconnectSeq++
}

// PanelOpened records that the guest can see the panel.
func (m *Manager) PanelOpened() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panelOpen = true
}

// PanelClosed cancels any pending reconnect. An open channel stays open.
func (m *Manager) PanelClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panelOpen = false
	m.stopReconnectLocked()
}

// Send delivers text over the open channel, or through one fallback call.
// Transport failures never come back as errors; they surface as a turn.
func (m *Manager) Send(ctx context.Context, text string) error {
	if !m.consent.Allowed() {
		return ErrConsentRequired
	}

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	ch := m.channel
	if m.state != chat.StateConnected {
		ch = nil
	}
	m.mu.Unlock()

	msg := chat.OutboundMessage{
		Message:    text,
		SessionID:  m.opts.SessionID,
		PropertyID: m.opts.PropertyID,
	}

	if ch != nil {
		err := ch.writeJSON(msg)
		if err == nil {
			return nil
		}
		m.logger.Warn().Err(err).Msg("duplex write failed, resending via request/response")
		ch.close()
	}

	m.converse(ctx, msg)
	return nil
}

func (m *Manager) converse(ctx context.Context, msg chat.OutboundMessage) {
	if m.opts.Fallback == nil {
		m.sink.SetTyping(false)
		m.sink.AppendTurn(chat.RoleAI, chat.TextFallbackFailed)
		return
	}

	reply, err := m.opts.Fallback.Converse(ctx, msg)
	m.sink.SetTyping(false)
	if err != nil {
		m.logger.Warn().Err(err).Msg("request/response fallback failed")
		m.sink.AppendTurn(chat.RoleAI, chat.TextFallbackFailed)
		return
	}
	m.sink.AppendTurn(chat.RoleAI, replyText(reply.Response))
}

// Dispose stops the reconnect timer, closes the channel and waits for the
// manager's goroutines. Later Connect and Send calls return ErrDisposed.
func (m *Manager) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	m.stopReconnectLocked()
	ch := m.channel
	m.channel = nil
	m.state = chat.StateDisconnected
	m.mu.Unlock()

	m.cancel()
	if ch != nil {
		ch.close()
	}
	m.wg.Wait()
}

func replyText(response string) string {
	if response == "" {
		return chat.TextNoResponse
	}
	return response
}
