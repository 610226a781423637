package connection

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/loopdash/pkg/clock"
	"github.com/go-go-golems/loopdash/pkg/protocol"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var errFakeClosed = errors.New("fake conn closed")

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

var _ Conn = (*fakeConn)(nil)

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case b := <-c.in:
		return b, nil
	case <-c.closed:
		return nil, errFakeClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errFakeClosed
	default:
	}
	c.out <- append([]byte(nil), data...)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// serverSays simulates a server frame.
func (c *fakeConn) serverSays(t *testing.T, frame string) {
	t.Helper()
	c.in <- []byte(frame)
}

func (c *fakeConn) nextSent(t *testing.T) protocol.ClientMessage {
	t.Helper()
	select {
	case b := <-c.out:
		var msg protocol.ClientMessage
		require.NoError(t, json.Unmarshal(b, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client frame")
		return protocol.ClientMessage{}
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	fail  bool
	conns chan *fakeConn
	urls  []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) setFail(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = v
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	fail := d.fail
	d.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

type mutableToken struct {
	mu  sync.Mutex
	tok string
}

func (m *mutableToken) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tok, nil
}

func (m *mutableToken) set(tok string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = tok
}

type harness struct {
	m      *Manager
	dialer *fakeDialer
	clk    *clock.Fake
	token    *mutableToken
	envs     chan protocol.Envelope
	rejected chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		dialer: newFakeDialer(),
		clk:    clock.NewFake(time.Unix(0, 0)),
		token:  &mutableToken{tok: "secret"},
		envs:     make(chan protocol.Envelope, 64),
		rejected: make(chan struct{}, 8),
	}
	h.m = NewManager(Options{
		Endpoint:    "ws://example.test/api/ws",
		Dialer:      h.dialer,
		Credentials: h.token,
		Clock:       h.clk,
		OnEnvelope:  func(e protocol.Envelope) { h.envs <- e },
		OnAuthRejected: func() {
			h.rejected <- struct{}{}
		},
	})
	t.Cleanup(h.m.Close)
	return h
}

func (h *harness) waitState(t *testing.T, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.m.State() == s }, 2*time.Second, 5*time.Millisecond,
		"want state %s, have %s", s, h.m.State())
}

func (h *harness) waitTimers(t *testing.T, want ...time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := h.clk.Pending()
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond, "pending timers %v", h.clk.Pending())
}

// connect drives a manager to Subscribed and returns the live transport.
func (h *harness) connect(t *testing.T) *fakeConn {
	t.Helper()
	h.m.SetEnabled(true)
	c := h.dialer.next(t)
	auth := c.nextSent(t)
	require.Equal(t, protocol.Auth("secret"), auth)
	c.serverSays(t, `{"type":"auth_ok"}`)
	h.waitState(t, StateSubscribed)
	return c
}

func TestManager_AuthFirstThenFullSubscription(t *testing.T) {
	h := newHarness(t)
	h.m.SetSubscriptions([]string{"beta", " alpha", "beta"})

	c := h.connect(t)
	require.Equal(t, protocol.Subscribe([]string{"alpha", "beta"}), c.nextSent(t))
	h.dialer.mu.Lock()
	require.Equal(t, "ws://example.test/api/ws", h.dialer.urls[0])
	h.dialer.mu.Unlock()
	require.Equal(t, 0, h.m.Attempt())
}

func TestManager_NoSubscribeFrameForEmptySet(t *testing.T) {
	h := newHarness(t)
	c := h.connect(t)

	h.m.SetSubscriptions([]string{"x"})
	require.Equal(t, protocol.Subscribe([]string{"x"}), c.nextSent(t), "first frame after auth must be the delta, not an empty subscribe")
}

func TestManager_DeltaReconciliation(t *testing.T) {
	h := newHarness(t)
	h.m.SetSubscriptions([]string{"a"})
	c := h.connect(t)
	require.Equal(t, protocol.Subscribe([]string{"a"}), c.nextSent(t))

	h.m.SetSubscriptions([]string{"a", "c", "b"})
	require.Equal(t, protocol.Subscribe([]string{"b", "c"}), c.nextSent(t))

	h.m.SetSubscriptions([]string{"c", "d"})
	require.Equal(t, protocol.Subscribe([]string{"d"}), c.nextSent(t))
	require.Equal(t, protocol.Unsubscribe([]string{"a", "b"}), c.nextSent(t))

	// unchanged set sends nothing; the next frame observed is the later change
	h.m.SetSubscriptions([]string{"d", "c"})
	h.m.SetSubscriptions([]string{"d"})
	require.Equal(t, protocol.Unsubscribe([]string{"c"}), c.nextSent(t))
	require.Equal(t, []string{"d"}, h.m.Desired())
}

func TestManager_NoReconciliationBeforeSubscribed(t *testing.T) {
	h := newHarness(t)
	h.m.SetEnabled(true)
	c := h.dialer.next(t)
	require.Equal(t, protocol.ActionAuth, c.nextSent(t).Action)
	h.waitState(t, StateAuthPending)

	h.m.SetSubscriptions([]string{"a"})
	h.m.SetSubscriptions([]string{"a", "b"})

	c.serverSays(t, `{"type":"auth_ok"}`)
	require.Equal(t, protocol.Subscribe([]string{"a", "b"}), c.nextSent(t))
}

func TestManager_ForwardsEnvelopesInOrderAndSwallowsGarbage(t *testing.T) {
	h := newHarness(t)
	c := h.connect(t)

	c.serverSays(t, `{"type":"log_append","project":"p","data":{"lines":"one"}}`)
	c.serverSays(t, `this is not json`)
	c.serverSays(t, `{"type":"future_kind","project":"p"}`)
	c.serverSays(t, `{"type":"log_append","project":"p","data":{"lines":"two"}}`)

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case e := <-h.envs:
			got = append(got, string(e.Type)+":"+string(e.Data))
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for envelope")
		}
	}
	require.Equal(t, []string{
		`log_append:{"lines":"one"}`,
		`future_kind:`,
		`log_append:{"lines":"two"}`,
	}, got)
	require.Equal(t, StateSubscribed, h.m.State())
}

func TestManager_AuthRejectionReconnectsOnSchedule(t *testing.T) {
	h := newHarness(t)
	h.m.SetEnabled(true)
	c := h.dialer.next(t)
	c.nextSent(t)

	c.serverSays(t, `{"type":"error","message":"Invalid access token"}`)
	h.waitState(t, StateReconnecting)
	h.waitTimers(t, time.Second)
	require.True(t, c.isClosed())
	require.Empty(t, h.envs, "auth rejection is consumed, not forwarded")

	h.token.set("rotated")
	h.clk.Advance(time.Second)
	c2 := h.dialer.next(t)
	require.Equal(t, protocol.Auth("rotated"), c2.nextSent(t), "credential is re-read on reconnect")
}

func TestManager_AuthRejectionRunsRenewHook(t *testing.T) {
	h := newHarness(t)
	h.m.SetEnabled(true)
	c := h.dialer.next(t)
	c.nextSent(t)

	c.serverSays(t, `{"type":"error","message":"Unknown action"}`)
	c.serverSays(t, `{"type":"error","message":"Invalid access token"}`)
	select {
	case <-h.rejected:
	case <-time.After(2 * time.Second):
		t.Fatal("renew hook not called")
	}
	require.Len(t, h.rejected, 0, "hook runs once per rejection")
	h.waitTimers(t, time.Second)

	// the hook stores the renewed token; the scheduled redial picks it up
	h.token.set("renewed")
	h.clk.Advance(time.Second)
	c2 := h.dialer.next(t)
	require.Equal(t, protocol.Auth("renewed"), c2.nextSent(t))
	c2.serverSays(t, `{"type":"auth_ok"}`)
	h.waitState(t, StateSubscribed)
	require.Len(t, h.rejected, 0)
}

func TestManager_BackoffEscalatesAndResetsOnAuth(t *testing.T) {
	h := newHarness(t)
	h.dialer.setFail(true)
	h.m.SetEnabled(true)

	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for i, d := range want {
		h.waitTimers(t, d*time.Second)
		require.Equal(t, i+1, h.m.Attempt())
		h.clk.Advance(d * time.Second)
	}
	h.waitTimers(t, 30*time.Second)

	h.dialer.setFail(false)
	h.clk.Advance(30 * time.Second)
	c := h.dialer.next(t)
	c.nextSent(t)
	c.serverSays(t, `{"type":"auth_ok"}`)
	h.waitState(t, StateSubscribed)
	require.Equal(t, 0, h.m.Attempt())

	// a later drop starts over at the first delay
	_ = c.Close()
	h.waitState(t, StateReconnecting)
	h.waitTimers(t, time.Second)
}

func TestManager_DisableCancelsPendingReconnect(t *testing.T) {
	h := newHarness(t)
	c := h.connect(t)
	_ = c.Close()
	h.waitTimers(t, time.Second)

	h.m.SetEnabled(false)
	require.Equal(t, StateDisconnected, h.m.State())
	require.Empty(t, h.clk.Pending())

	dials := h.dialer.dialCount()
	h.clk.Advance(time.Minute)
	require.Equal(t, dials, h.dialer.dialCount())
}

func TestManager_ReconnectSkipsBackoff(t *testing.T) {
	h := newHarness(t)
	h.dialer.setFail(true)
	h.m.SetEnabled(true)
	h.waitTimers(t, time.Second)
	h.clk.Advance(time.Second)
	h.waitTimers(t, 2*time.Second)

	h.dialer.setFail(false)
	h.m.Reconnect()
	require.Empty(t, h.clk.Pending(), "pending retry is cancelled")
	require.Equal(t, 0, h.m.Attempt())
	c := h.dialer.next(t)
	require.Equal(t, protocol.Auth("secret"), c.nextSent(t))
	c.serverSays(t, `{"type":"auth_ok"}`)
	h.waitState(t, StateSubscribed)

	// an open transport is replaced
	h.m.Reconnect()
	require.Eventually(t, c.isClosed, 2*time.Second, 5*time.Millisecond)
	c2 := h.dialer.next(t)
	require.Equal(t, protocol.Auth("secret"), c2.nextSent(t))
}

func TestManager_ReconnectWhileDisabledIsNoop(t *testing.T) {
	h := newHarness(t)
	h.m.Reconnect()
	require.Equal(t, StateDisconnected, h.m.State())
	require.Equal(t, 0, h.dialer.dialCount())
}

func TestManager_MissingCredentialStaysDisconnected(t *testing.T) {
	h := newHarness(t)
	h.token.set("")
	h.m.SetEnabled(true)
	require.Equal(t, StateDisconnected, h.m.State())
	require.Equal(t, 0, h.dialer.dialCount())

	h.token.set("secret")
	h.m.CredentialsChanged()
	c := h.dialer.next(t)
	require.Equal(t, protocol.Auth("secret"), c.nextSent(t))

	h.token.set("")
	h.m.CredentialsChanged()
	require.Equal(t, StateDisconnected, h.m.State())
	require.True(t, c.isClosed())
}

func TestManager_SendRequiresOpenTransport(t *testing.T) {
	h := newHarness(t)
	require.False(t, h.m.Send(protocol.Ping()))

	c := h.connect(t)
	require.True(t, h.m.Send(protocol.Ping()))
	require.Equal(t, protocol.ActionPing, c.nextSent(t).Action)

	require.False(t, h.m.Send(protocol.Subscribe(nil)), "invalid messages are not sent")
}

func TestManager_StaleTransportIsIgnored(t *testing.T) {
	h := newHarness(t)
	c := h.connect(t)
	_ = c.Close()
	h.waitState(t, StateReconnecting)
	h.clk.Advance(time.Second)
	c2 := h.dialer.next(t)
	c2.nextSent(t)

	// frames on the old transport can never arrive; frames on the new one do
	c2.serverSays(t, `{"type":"auth_ok"}`)
	h.waitState(t, StateSubscribed)
	c2.serverSays(t, `{"type":"status_changed","project":"p","data":{"status":"running"}}`)
	select {
	case e := <-h.envs:
		require.Equal(t, protocol.EventStatusChanged, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestManager_CloseIsTerminal(t *testing.T) {
	h := newHarness(t)
	c := h.connect(t)
	var states []State
	var mu sync.Mutex
	h.m.mu.Lock()
	h.m.onState = func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}
	h.m.mu.Unlock()

	h.m.Close()
	require.Equal(t, StateClosed, h.m.State())
	require.True(t, c.isClosed())

	h.m.SetEnabled(true)
	require.Equal(t, StateClosed, h.m.State())
	require.Equal(t, 1, h.dialer.dialCount())
	mu.Lock()
	require.Equal(t, []State{StateClosed}, states)
	mu.Unlock()
}

func TestManager_PingWhileSubscribed(t *testing.T) {
	h := newHarness(t)
	h.m.pingInterval = 10 * time.Second
	c := h.connect(t)
	h.waitTimers(t, 10*time.Second)
	h.clk.Advance(10 * time.Second)
	require.Equal(t, protocol.ActionPing, c.nextSent(t).Action)
	h.waitTimers(t, 10*time.Second)
}

func TestReconnectDelay(t *testing.T) {
	for attempt, want := range []time.Duration{1, 2, 4, 8, 16, 30, 30, 30} {
		require.Equal(t, want*time.Second, ReconnectDelay(nil, attempt))
	}
	require.Equal(t, time.Second, ReconnectDelay(DefaultSchedule, -1))
}
