// Package connection owns the authenticated push channel: one transport at a
// time, an auth handshake as the first frame, subscription reconciliation and
// a fixed reconnect back-off.
//
// All state lives behind a single mutex. Callbacks (envelopes and state
// changes) run after the mutex is released, on the goroutine that produced
// them, so a callback may call back into the Manager.
package connection

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/go-go-golems/loopdash/pkg/clock"
	"github.com/go-go-golems/loopdash/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// CredentialSource yields the current access token. It is consulted on every
// connect so rotated or removed credentials take effect on the next cycle.
type CredentialSource interface {
	Token() (string, error)
}

// StaticToken is a fixed credential, mostly for tests and one-shot commands.
type StaticToken string

func (s StaticToken) Token() (string, error) { return string(s), nil }

type Options struct {
	Endpoint    string
	Dialer      Dialer
	Credentials CredentialSource
	Clock       clock.Clock
	// Schedule defaults to DefaultSchedule.
	Schedule []time.Duration
	// PingInterval enables application-level pings while subscribed.
	PingInterval time.Duration

	OnEnvelope    func(protocol.Envelope)
	OnStateChange func(State)

	// OnAuthRejected runs after the server rejected the token, before the
	// reconnect fires. It is the hook for renewing the credential.
	OnAuthRejected func()
}

type Manager struct {
	endpoint     string
	dialer       Dialer
	creds        CredentialSource
	clock        clock.Clock
	schedule     []time.Duration
	pingInterval time.Duration
	onEnvelope   func(protocol.Envelope)
	onState      func(State)
	onRejected   func()

	mu      sync.Mutex
	state   State
	enabled bool
	attempt int
	// gen tags the current transport, dial and timers; anything carrying an
	// older value is stale and must not touch state.
	gen     uint64
	conn    Conn
	cancel  context.CancelFunc
	timer   clock.Timer
	ping    clock.Timer
	desired map[string]struct{}
	sent    map[string]struct{}
	pending []func()
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		endpoint:     opts.Endpoint,
		dialer:       opts.Dialer,
		creds:        opts.Credentials,
		clock:        opts.Clock,
		schedule:     opts.Schedule,
		pingInterval: opts.PingInterval,
		onEnvelope:   opts.OnEnvelope,
		onState:      opts.OnStateChange,
		onRejected:   opts.OnAuthRejected,
		state:        StateDisconnected,
		desired:      map[string]struct{}{},
		sent:         map[string]struct{}{},
	}
	if m.dialer == nil {
		m.dialer = WebsocketDialer{}
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if len(m.schedule) == 0 {
		m.schedule = DefaultSchedule
	}
	if m.creds == nil {
		m.creds = StaticToken("")
	}
	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempt is the number of reconnect cycles since the last successful auth.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Desired returns the sorted desired subscription set.
func (m *Manager) Desired() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.desired)
}

// SetEnabled starts or stops the connection cycle.
func (m *Manager) SetEnabled(enabled bool) {
	m.locked(func() {
		if m.state == StateClosed || m.enabled == enabled {
			return
		}
		m.enabled = enabled
		if !enabled {
			m.dropLocked()
			m.attempt = 0
			m.setStateLocked(StateDisconnected)
			return
		}
		m.connectLocked()
	})
}

// CredentialsChanged re-evaluates the credential. A removed token tears the
// connection down; a token appearing while idle starts a connect.
func (m *Manager) CredentialsChanged() {
	token, err := m.creds.Token()
	m.locked(func() {
		if m.state == StateClosed || !m.enabled {
			return
		}
		if err != nil || token == "" {
			m.dropLocked()
			m.attempt = 0
			m.setStateLocked(StateDisconnected)
			return
		}
		if m.state == StateDisconnected {
			m.connectLocked()
		}
	})
}

// Reconnect drops the current transport and dials again right away, skipping
// any pending back-off delay.
func (m *Manager) Reconnect() {
	m.locked(func() {
		if m.state == StateClosed || !m.enabled {
			return
		}
		m.attempt = 0
		m.connectLocked()
	})
}

// SetSubscriptions replaces the desired set. While subscribed, the difference
// to what the server already has is sent as at most one subscribe and one
// unsubscribe frame.
func (m *Manager) SetSubscriptions(ids []string) {
	m.locked(func() {
		desired := make(map[string]struct{})
		for _, id := range protocol.NormalizeProjects(ids) {
			desired[id] = struct{}{}
		}
		m.desired = desired
		if m.state == StateSubscribed {
			m.reconcileLocked()
		}
	})
}

// Send writes msg if a transport is open. There is no queue: false means the
// message was dropped.
func (m *Manager) Send(msg protocol.ClientMessage) bool {
	if err := protocol.ValidateClientMessage(msg); err != nil {
		log.Debug().Err(err).Msg("refusing to send invalid client message")
		return false
	}
	ok := false
	m.locked(func() {
		if m.conn == nil || !m.state.Open() {
			return
		}
		ok = m.writeLocked(msg)
	})
	return ok
}

// Close tears everything down permanently.
func (m *Manager) Close() {
	m.locked(func() {
		if m.state == StateClosed {
			return
		}
		m.enabled = false
		m.dropLocked()
		m.setStateLocked(StateClosed)
	})
}

// locked runs fn under the mutex and then fires the callbacks fn queued.
func (m *Manager) locked(fn func()) {
	m.mu.Lock()
	fn()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	log.Debug().Str("from", m.state.String()).Str("to", s.String()).Int("attempt", m.attempt).Msg("push channel state")
	m.state = s
	if m.onState != nil {
		cb := m.onState
		m.pending = append(m.pending, func() { cb(s) })
	}
}

func (m *Manager) connectLocked() {
	token, err := m.creds.Token()
	if err != nil || token == "" {
		if err != nil {
			log.Warn().Err(err).Msg("credential unavailable; not connecting")
		}
		m.dropLocked()
		m.setStateLocked(StateDisconnected)
		return
	}

	m.dropLocked()
	gen := m.gen
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.setStateLocked(StateConnecting)
	go m.dial(ctx, gen, token)
}

func (m *Manager) dial(ctx context.Context, gen uint64, token string) {
	conn, err := m.dialer.Dial(ctx, m.endpoint)
	m.locked(func() {
		if gen != m.gen {
			if conn != nil {
				_ = conn.Close()
			}
			return
		}
		if err != nil {
			log.Debug().Err(err).Str("endpoint", m.endpoint).Msg("push channel dial failed")
			m.scheduleReconnectLocked()
			return
		}
		m.conn = conn
		m.setStateLocked(StateAuthPending)
		if !m.writeLocked(protocol.Auth(token)) {
			m.dropLocked()
			m.scheduleReconnectLocked()
			return
		}
		go m.readLoop(gen, conn)
	})
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.locked(func() {
				if gen != m.gen {
					return
				}
				log.Debug().Err(err).Msg("push channel closed")
				m.dropLocked()
				m.scheduleReconnectLocked()
			})
			return
		}
		m.handle(gen, data)
	}
}

func (m *Manager) handle(gen uint64, data []byte) {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		log.Debug().Err(err).Int("bytes", len(data)).Msg("dropping malformed push frame")
		return
	}
	m.locked(func() {
		if gen != m.gen {
			return
		}
		switch {
		case env.Type == protocol.EventAuthOK:
			m.attempt = 0
			m.sent = map[string]struct{}{}
			m.setStateLocked(StateSubscribed)
			m.reconcileLocked()
			m.schedulePingLocked()
		case env.IsAuthRejection():
			log.Warn().Msg("push channel rejected the access token")
			m.dropLocked()
			m.scheduleReconnectLocked()
			if m.onRejected != nil {
				m.pending = append(m.pending, m.onRejected)
			}
		default:
			if m.onEnvelope != nil {
				cb := m.onEnvelope
				m.pending = append(m.pending, func() { cb(env) })
			}
		}
	})
}

func (m *Manager) reconcileLocked() {
	var add, remove []string
	for id := range m.desired {
		if _, ok := m.sent[id]; !ok {
			add = append(add, id)
		}
	}
	for id := range m.sent {
		if _, ok := m.desired[id]; !ok {
			remove = append(remove, id)
		}
	}
	sort.Strings(add)
	sort.Strings(remove)

	if len(add) > 0 && m.writeLocked(protocol.Subscribe(add)) {
		for _, id := range add {
			m.sent[id] = struct{}{}
		}
	}
	if len(remove) > 0 && m.writeLocked(protocol.Unsubscribe(remove)) {
		for _, id := range remove {
			delete(m.sent, id)
		}
	}
}

func (m *Manager) scheduleReconnectLocked() {
	if !m.enabled || m.state == StateClosed {
		m.setStateLocked(StateDisconnected)
		return
	}
	delay := ReconnectDelay(m.schedule, m.attempt)
	m.attempt++
	gen := m.gen
	log.Info().Dur("delay", delay).Int("attempt", m.attempt).Msg("push channel reconnecting")
	m.setStateLocked(StateReconnecting)
	m.timer = m.clock.AfterFunc(delay, func() {
		m.locked(func() {
			if gen != m.gen || !m.enabled || m.state != StateReconnecting {
				return
			}
			m.timer = nil
			m.connectLocked()
		})
	})
}

func (m *Manager) schedulePingLocked() {
	if m.pingInterval <= 0 {
		return
	}
	gen := m.gen
	m.ping = m.clock.AfterFunc(m.pingInterval, func() {
		m.locked(func() {
			if gen != m.gen || m.state != StateSubscribed {
				return
			}
			m.writeLocked(protocol.Ping())
			m.schedulePingLocked()
		})
	})
}

// dropLocked invalidates the current generation and releases the transport,
// the in-flight dial and any timers.
func (m *Manager) dropLocked() {
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.ping != nil {
		m.ping.Stop()
		m.ping = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.sent = map[string]struct{}{}
}

func (m *Manager) writeLocked(msg protocol.ClientMessage) bool {
	if m.conn == nil {
		return false
	}
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("action", string(msg.Action)).Msg("encode client message")
		return false
	}
	if err := m.conn.WriteMessage(b); err != nil {
		log.Debug().Err(err).Str("action", string(msg.Action)).Msg("push channel write failed")
		return false
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
