package widget

import (
	"github.com/rs/zerolog"

	"github.com/nocturn-hq/concierge-widget/internal/identity"
	"github.com/nocturn-hq/concierge-widget/internal/transport"
	"github.com/nocturn-hq/concierge-widget/internal/view"
)

type options struct {
	storage    identity.Storage
	storageSet bool
	dial       transport.DialFunc
	fallback   transport.Fallback
	clock      transport.Clock
	surface    view.Surface
	logger     zerolog.Logger
	onDegraded func(error)
}

// Option customizes a Session.
type Option func(*options)

// WithStorage replaces the backend selected by the storage config. The
// session closes it on Dispose. A nil storage means no durable storage.
func WithStorage(storage identity.Storage) Option {
	return func(o *options) {
		o.storage = storage
		o.storageSet = true
	}
}

func WithDialer(dial transport.DialFunc) Option {
	return func(o *options) {
		o.dial = dial
	}
}

func WithFallback(fallback transport.Fallback) Option {
	return func(o *options) {
		o.fallback = fallback
	}
}

func WithClock(clock transport.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithSurface sets the host renderer that receives every snapshot.
func WithSurface(surface view.Surface) Option {
	return func(o *options) {
		o.surface = surface
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDegradedHook is told once when identity storage falls back to memory.
func WithDegradedHook(fn func(error)) Option {
	return func(o *options) {
		o.onDegraded = fn
	}
}
