package consent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocturn-hq/concierge-widget/internal/identity"
)

type fakeInput struct {
	enabled      bool
	promptShown  bool
	enableCalls  int
	disableCalls int
}

func (f *fakeInput) SetInputEnabled(enabled bool) {
	f.enabled = enabled
	if enabled {
		f.enableCalls++
	} else {
		f.disableCalls++
	}
}

func (f *fakeInput) SetConsentPrompt(visible bool) { f.promptShown = visible }

func TestGateStartsBlockedWithoutConsent(t *testing.T) {
	ctx := context.Background()
	store := identity.Open(ctx, identity.NewMemoryStorage())
	input := &fakeInput{enabled: true}

	gate := NewGate(ctx, store, input)

	assert.Equal(t, Blocked, gate.State())
	assert.False(t, gate.Allowed())
	assert.False(t, input.enabled)
	assert.True(t, input.promptShown)
}

func TestGateAcceptTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	store := identity.Open(ctx, identity.NewMemoryStorage())
	input := &fakeInput{}
	gate := NewGate(ctx, store, input)

	var connects int
	gate.OnAllowed(func() {
		// Input is already enabled and consent persisted when hooks run.
		assert.True(t, input.enabled)
		assert.True(t, store.HasConsent(ctx))
		connects++
	})

	require.True(t, gate.Accept(ctx))
	assert.False(t, gate.Accept(ctx))

	assert.Equal(t, Allowed, gate.State())
	assert.Equal(t, 1, connects)
	assert.True(t, input.enabled)
	assert.False(t, input.promptShown)
	assert.Equal(t, 1, input.enableCalls)
}

func TestGateRemembersConsentAcrossReloads(t *testing.T) {
	ctx := context.Background()
	backend := identity.NewMemoryStorage()

	first := NewGate(ctx, identity.Open(ctx, backend), &fakeInput{})
	first.Accept(ctx)

	input := &fakeInput{}
	reloaded := NewGate(ctx, identity.Open(ctx, backend), input)

	assert.True(t, reloaded.Allowed())
	assert.True(t, input.enabled)
	assert.False(t, input.promptShown)
}

func TestGateWithoutInputSurface(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(ctx, identity.Open(ctx, identity.NewMemoryStorage()), nil)

	assert.True(t, gate.Accept(ctx))
	assert.Equal(t, "allowed", gate.State().String())
}
