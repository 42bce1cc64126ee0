package testutil

import (
	"context"
	"sync"

	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
	"github.com/nocturn-hq/concierge-widget/internal/transport"
)

// FakeFallback answers request/response calls from a canned reply or error.
type FakeFallback struct {
	mu    sync.Mutex
	reply chat.ConversationReply
	err   error
	calls []chat.OutboundMessage
}

var _ transport.Fallback = (*FakeFallback)(nil)

func NewFakeFallback(response string) *FakeFallback {
	return &FakeFallback{reply: chat.ConversationReply{Response: response}}
}

func (f *FakeFallback) Reply(response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = chat.ConversationReply{Response: response}
	f.err = nil
}

func (f *FakeFallback) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeFallback) Converse(_ context.Context, msg chat.OutboundMessage) (*chat.ConversationReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if f.err != nil {
		return nil, f.err
	}
	reply := f.reply
	return &reply, nil
}

func (f *FakeFallback) Calls() []chat.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.OutboundMessage(nil), f.calls...)
}
