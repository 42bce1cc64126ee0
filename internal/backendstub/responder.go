package backendstub

import (
	"context"
	"fmt"

	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
	"github.com/nocturn-hq/concierge-widget/internal/model/property"
)

// Responder produces the concierge reply for one guest message.
type Responder interface {
	Respond(ctx context.Context, prop property.Property, history []chat.Message, text string) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, prop property.Property, history []chat.Message, text string) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, prop property.Property, history []chat.Message, text string) (string, error) {
	return f(ctx, prop, history, text)
}

// EchoResponder acknowledges the message on behalf of the property.
type EchoResponder struct{}

func (EchoResponder) Respond(_ context.Context, prop property.Property, _ []chat.Message, text string) (string, error) {
	return fmt.Sprintf("Thanks for reaching out to %s. You said: %q. A member of our team will follow up shortly.", prop.Name, text), nil
}
