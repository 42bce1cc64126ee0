package widget_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocturn-hq/concierge-widget/internal/config"
	"github.com/nocturn-hq/concierge-widget/internal/identity"
	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
	"github.com/nocturn-hq/concierge-widget/internal/testutil"
	"github.com/nocturn-hq/concierge-widget/internal/widget"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fixture struct {
	storage  *identity.MemoryStorage
	dialer   *testutil.FakeDialer
	fallback *testutil.FakeFallback
	clock    *testutil.ManualClock
	surface  *testutil.RecordingSurface
}

func newFixture(conns ...*testutil.FakeConn) *fixture {
	return &fixture{
		storage:  identity.NewMemoryStorage(),
		dialer:   testutil.NewFakeDialer(conns...),
		fallback: testutil.NewFakeFallback("We have late checkout until 1pm."),
		clock:    testutil.NewManualClock(),
		surface:  &testutil.RecordingSurface{},
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Widget.PropertyID = "prop-1"
	cfg.Widget.APIURL = "http://backend.test"
	cfg.Widget.Greeting = "Hi there!"
	cfg.Transport.PingInterval = 0
	return cfg
}

func (f *fixture) mount(t *testing.T) *widget.Session {
	t.Helper()
	s, err := widget.New(context.Background(), testConfig(),
		widget.WithStorage(f.storage),
		widget.WithDialer(f.dialer.Dial),
		widget.WithFallback(f.fallback),
		widget.WithClock(f.clock),
		widget.WithSurface(f.surface),
	)
	require.NoError(t, err)
	t.Cleanup(s.Dispose)
	return s
}

func TestNewRequiresProperty(t *testing.T) {
	cfg := testConfig()
	cfg.Widget.PropertyID = ""
	surface := &testutil.RecordingSurface{}

	s, err := widget.New(context.Background(), cfg, widget.WithSurface(surface))
	require.ErrorIs(t, err, config.ErrTenantRequired)
	assert.Nil(t, s)
	assert.Zero(t, surface.Count())
}

func TestSessionIDStableAcrossMounts(t *testing.T) {
	f := newFixture()
	first := f.mount(t)
	second := f.mount(t)

	assert.NotEmpty(t, first.SessionID())
	assert.Equal(t, first.SessionID(), second.SessionID())
}

func TestSubmitBlockedUntilConsent(t *testing.T) {
	f := newFixture()
	s := f.mount(t)
	s.OpenPanel()

	snap := s.Snapshot()
	assert.False(t, snap.InputEnabled)
	assert.True(t, snap.ConsentPrompt)

	require.ErrorIs(t, s.Submit(context.Background(), "hello"), widget.ErrConsentRequired)
	assert.Equal(t, []chat.Turn{{Role: chat.RoleAI, Text: "Hi there!"}}, s.Snapshot().Turns)
	assert.Zero(t, f.dialer.Attempts())
	assert.Empty(t, f.fallback.Calls())
}

func TestAcceptConsentEnablesInputAndConnects(t *testing.T) {
	f := newFixture(testutil.NewFakeConn())
	s := f.mount(t)
	s.OpenPanel()

	require.True(t, s.AcceptConsent(context.Background()))
	require.False(t, s.AcceptConsent(context.Background()))

	snap := s.Snapshot()
	assert.True(t, snap.InputEnabled)
	assert.False(t, snap.ConsentPrompt)
	require.Eventually(t, func() bool { return s.State() == chat.StateConnected }, waitFor, tick)
	assert.Equal(t, chat.StatusConnected, s.Snapshot().Status)
	assert.Equal(t, 1, f.dialer.Attempts())

	v, ok, err := f.storage.Get(context.Background(), identity.KeyConsent)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestConsentPersistsAcrossMounts(t *testing.T) {
	f := newFixture()
	first := f.mount(t)
	first.AcceptConsent(context.Background())
	first.Dispose()

	second := f.mount(t)
	assert.True(t, second.ConsentGiven())
	assert.True(t, second.Snapshot().InputEnabled)
	assert.False(t, second.Snapshot().ConsentPrompt)
}

func TestOpenPanelWithConsentConnects(t *testing.T) {
	f := newFixture(testutil.NewFakeConn())
	require.NoError(t, f.storage.Set(context.Background(), identity.KeyConsent, "true"))

	s := f.mount(t)
	assert.Zero(t, f.dialer.Attempts())

	s.OpenPanel()
	require.Eventually(t, func() bool { return s.State() == chat.StateConnected }, waitFor, tick)
}

func TestSubmitOverOpenChannel(t *testing.T) {
	conn := testutil.NewFakeConn()
	f := newFixture(conn)
	s := f.mount(t)
	s.OpenPanel()
	s.AcceptConsent(context.Background())
	require.Eventually(t, func() bool { return s.State() == chat.StateConnected }, waitFor, tick)

	require.NoError(t, s.Submit(context.Background(), "  Is the pool heated?  "))

	snap := s.Snapshot()
	assert.Equal(t, chat.Turn{Role: chat.RoleGuest, Text: "Is the pool heated?"}, snap.Turns[len(snap.Turns)-1])
	assert.True(t, snap.Typing)

	written := conn.Written()
	require.Len(t, written, 1)
	var msg chat.OutboundMessage
	require.NoError(t, json.Unmarshal(written[0], &msg))
	assert.Equal(t, s.SessionID(), msg.SessionID)
	assert.Equal(t, "prop-1", msg.PropertyID)
	assert.Empty(t, f.fallback.Calls())

	conn.Push(`{"type":"ai_response","response":"Yes, to 28 degrees."}`)
	require.Eventually(t, func() bool {
		turns := s.Snapshot().Turns
		return turns[len(turns)-1].Text == "Yes, to 28 degrees."
	}, waitFor, tick)
	assert.False(t, s.Snapshot().Typing)
}

func TestSubmitFallsBackWhenChannelNeverOpens(t *testing.T) {
	f := newFixture()
	s := f.mount(t)
	s.OpenPanel()
	s.AcceptConsent(context.Background())

	require.NoError(t, s.Submit(context.Background(), "late checkout?"))

	turns := s.Snapshot().Turns
	require.Len(t, turns, 3)
	assert.Equal(t, chat.Turn{Role: chat.RoleGuest, Text: "late checkout?"}, turns[1])
	assert.Equal(t, chat.Turn{Role: chat.RoleAI, Text: "We have late checkout until 1pm."}, turns[2])
	assert.False(t, s.Snapshot().Typing)
	assert.Len(t, f.fallback.Calls(), 1)
}

func TestSubmitIgnoresBlankInput(t *testing.T) {
	f := newFixture()
	s := f.mount(t)
	s.AcceptConsent(context.Background())

	require.NoError(t, s.Submit(context.Background(), "   "))
	assert.Empty(t, s.Snapshot().Turns)
	assert.Empty(t, f.fallback.Calls())
}

func TestGreetingOncePerMount(t *testing.T) {
	f := newFixture()
	s := f.mount(t)

	assert.True(t, s.TogglePanel())
	assert.False(t, s.TogglePanel())
	assert.True(t, s.TogglePanel())

	assert.Equal(t, []chat.Turn{{Role: chat.RoleAI, Text: "Hi there!"}}, s.Snapshot().Turns)
}

func TestClosingPanelCancelsReconnect(t *testing.T) {
	conn := testutil.NewFakeConn()
	f := newFixture(conn)
	s := f.mount(t)
	s.OpenPanel()
	s.AcceptConsent(context.Background())
	require.Eventually(t, func() bool { return s.State() == chat.StateConnected }, waitFor, tick)

	conn.ServerClose(nil)
	require.Eventually(t, func() bool { return f.clock.Pending() == 1 }, waitFor, tick)

	s.ClosePanel()
	assert.Zero(t, f.clock.Pending())
	f.clock.Advance(10 * time.Second)
	assert.Equal(t, 1, f.dialer.Attempts())
	assert.Equal(t, chat.StatusOnline, s.Snapshot().Status)
}

func TestDegradedStorageStillWorks(t *testing.T) {
	var causes []error
	cfg := testConfig()

	s, err := widget.New(context.Background(), cfg,
		widget.WithStorage(brokenStorage{}),
		widget.WithFallback(testutil.NewFakeFallback("ok")),
		widget.WithDialer(testutil.NewFakeDialer().Dial),
		widget.WithClock(testutil.NewManualClock()),
		widget.WithDegradedHook(func(err error) { causes = append(causes, err) }),
	)
	require.NoError(t, err)
	defer s.Dispose()

	assert.True(t, s.Degraded())
	assert.True(t, s.Snapshot().Degraded)
	assert.Len(t, causes, 1)
	assert.NotEmpty(t, s.SessionID())

	require.True(t, s.AcceptConsent(context.Background()))
	require.NoError(t, s.Submit(context.Background(), "hello"))
	assert.Equal(t, "ok", s.Snapshot().Turns[len(s.Snapshot().Turns)-1].Text)
}

func TestDisposeRejectsFurtherSubmits(t *testing.T) {
	f := newFixture()
	s := f.mount(t)
	s.AcceptConsent(context.Background())

	s.Dispose()
	s.Dispose()
	require.ErrorIs(t, s.Submit(context.Background(), "hello"), widget.ErrDisposed)
}

type brokenStorage struct{}

func (brokenStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("storage disabled")
}

func (brokenStorage) Set(context.Context, string, string) error {
	return errors.New("storage disabled")
}

func (brokenStorage) Close() error { return nil }
