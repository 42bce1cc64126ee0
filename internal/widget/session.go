// Package widget assembles the guest chat session: identity, consent,
// transport and view, mounted by New and unmounted by Dispose.
package widget

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/nocturn-hq/concierge-widget/internal/config"
	"github.com/nocturn-hq/concierge-widget/internal/consent"
	"github.com/nocturn-hq/concierge-widget/internal/identity"
	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
	"github.com/nocturn-hq/concierge-widget/internal/transport"
	"github.com/nocturn-hq/concierge-widget/internal/view"
)

var (
	ErrConsentRequired = transport.ErrConsentRequired
	ErrDisposed        = transport.ErrDisposed
)

// Session is one mounted widget.
type Session struct {
	cfg       config.Config
	logger    zerolog.Logger
	store     *identity.Store
	gate      *consent.Gate
	view      *view.Controller
	transport *transport.Manager
	sessionID string

	disposed    atomic.Bool
	disposeOnce sync.Once
}

// New mounts a session. A missing tenant id is fatal and nothing is built.
// Storage problems never are: the identity then lives in memory.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With().Str("component", "widget").Logger()

	v := view.NewController(cfg.Widget, o.surface)

	backend := o.storage
	if !o.storageSet {
		opened, err := identity.OpenStorage(ctx, cfg.Storage)
		if err != nil {
			logger.Warn().Err(err).Str("driver", cfg.Storage.Driver).Msg("identity storage unavailable")
		} else {
			backend = opened
		}
	}

	store := identity.Open(ctx, backend,
		identity.WithLogger(o.logger),
		identity.WithDegradedHook(func(err error) {
			v.SetDegraded(true)
			if o.onDegraded != nil {
				o.onDegraded(err)
			}
		}),
	)
	sessionID := store.GetOrCreateSessionID(ctx)
	gate := consent.NewGate(ctx, store, v)

	topts := transport.Options{
		BaseURL:        cfg.Widget.APIURL,
		PropertyID:     cfg.Widget.PropertyID,
		SessionID:      sessionID,
		ReconnectDelay: cfg.Transport.ReconnectDelay,
		PingInterval:   cfg.Transport.PingInterval,
		Dial:           o.dial,
		Fallback:       o.fallback,
		Clock:          o.clock,
		Logger:         o.logger,
	}
	if topts.Dial == nil {
		topts.Dial = transport.GorillaDialer(cfg.Transport.DialTimeout)
	}
	if topts.Fallback == nil {
		fb, err := transport.NewHTTPFallback(cfg.Widget.APIURL, cfg.Transport.HTTPTimeout)
		if err != nil {
			logger.Warn().Err(err).Msg("request/response fallback unavailable")
		} else {
			topts.Fallback = fb
		}
	}
	mgr := transport.NewManager(topts, gate, v)

	gate.OnAllowed(func() {
		if err := mgr.Connect(); err != nil {
			logger.Debug().Err(err).Msg("connect after consent skipped")
		}
	})

	logger.Info().
		Str("session_id", sessionID).
		Str("property_id", cfg.Widget.PropertyID).
		Bool("consent", gate.Allowed()).
		Bool("degraded", store.Degraded()).
		Msg("widget mounted")

	return &Session{
		cfg:       *cfg,
		logger:    logger,
		store:     store,
		gate:      gate,
		view:      v,
		transport: mgr,
		sessionID: sessionID,
	}, nil
}

// OpenPanel shows the panel and connects if consent is already given.
func (s *Session) OpenPanel() {
	if !s.view.Open() {
		return
	}
	s.transport.PanelOpened()
	if s.gate.Allowed() {
		if err := s.transport.Connect(); err != nil {
			s.logger.Debug().Err(err).Msg("connect on open skipped")
		}
	}
}

// ClosePanel hides the panel and cancels any pending reconnect.
func (s *Session) ClosePanel() {
	if s.view.Close() {
		s.transport.PanelClosed()
	}
}

// TogglePanel flips the panel and reports whether it is now open.
func (s *Session) TogglePanel() bool {
	if s.view.IsOpen() {
		s.ClosePanel()
		return false
	}
	s.OpenPanel()
	return true
}

// AcceptConsent records the guest's agreement. It reports whether consent
// was newly given.
func (s *Session) AcceptConsent(ctx context.Context) bool {
	return s.gate.Accept(ctx)
}

// Submit sends the guest's text. Blank input is ignored. Delivery problems
// show up in the transcript, not as errors; the only errors are
// ErrConsentRequired and ErrDisposed. Over the fallback path Submit blocks
// until the reply arrives.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if s.disposed.Load() {
		return ErrDisposed
	}
	if !s.gate.Allowed() {
		return ErrConsentRequired
	}

	s.view.AppendTurn(chat.RoleGuest, text)
	s.view.SetTyping(true)
	return s.transport.Send(ctx, text)
}

func (s *Session) Snapshot() view.Snapshot {
	return s.view.Snapshot()
}

func (s *Session) SessionID() string {
	return s.sessionID
}

func (s *Session) ConsentGiven() bool {
	return s.gate.Allowed()
}

// Degraded reports whether the identity is held only in memory.
func (s *Session) Degraded() bool {
	return s.store.Degraded()
}

// State returns the duplex channel state.
func (s *Session) State() chat.ConnState {
	return s.transport.State()
}

// Dispose unmounts the session: timers stop, the channel closes and the
// storage backend is released.
func (s *Session) Dispose() {
	s.disposeOnce.Do(func() {
		s.disposed.Store(true)
		s.transport.Dispose()
		if err := s.store.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close identity storage")
		}
		s.logger.Info().Str("session_id", s.sessionID).Msg("widget unmounted")
	})
}
