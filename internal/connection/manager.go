package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/looplab/fsm"

	"github.com/quickcheckhq/realtime/internal/dispatch"
)

// Connection state machine states.
const (
	stateIdle          = "idle"
	stateConnecting    = "connecting"
	stateConnected     = "connected"
	stateAuthenticated = "authenticated"
	stateReconnecting  = "reconnecting"
)

// State machine transitions.
const (
	evDial     = "dial"
	evOpen     = "open"
	evAuthOK   = "auth_ok"
	evDrop     = "drop"
	evShutdown = "shutdown"
)

// Manager owns the push connection: handshake, heartbeat, backoff
// reconnection and endpoint tracking. Construct one per process and pass
// it to consumers; there is no package-level instance.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger
	clock  clock.Clock
	bus    *dispatch.Bus
	status *dispatch.Registry[State]

	newClient func(ClientConfig, *slog.Logger) Client
	clientID  string

	mu             sync.Mutex
	sm             *fsm.FSM
	client         Client
	stop           chan struct{} // closes per-connection goroutines
	gen            int           // connection generation, guards stale callbacks
	token          string
	endpoint       string
	attempts       int
	delay          time.Duration
	reconnectTimer *clock.Timer
	state          State
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock sets the clock used for backoff, heartbeat and endpoint timers.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithClientFactory sets the transport client constructor.
func WithClientFactory(f func(ClientConfig, *slog.Logger) Client) ManagerOption {
	return func(m *Manager) {
		m.newClient = f
	}
}

// NewManager creates a Connection Manager publishing into the given bus.
func NewManager(cfg ManagerConfig, bus *dispatch.Bus, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	m := &Manager{
		cfg:       cfg,
		logger:    logger,
		clock:     clock.New(),
		bus:       bus,
		status:    dispatch.NewRegistry[State](logger),
		newClient: NewClient,
		clientID:  uuid.NewString(),
		token:     cfg.Token,
		delay:     cfg.ReconnectBaseDelay,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.sm = fsm.NewFSM(stateIdle, fsm.Events{
		{Name: evDial, Src: []string{stateIdle, stateReconnecting}, Dst: stateConnecting},
		{Name: evOpen, Src: []string{stateConnecting}, Dst: stateConnected},
		{Name: evAuthOK, Src: []string{stateConnected}, Dst: stateAuthenticated},
		{Name: evDrop, Src: []string{stateConnecting, stateConnected, stateAuthenticated}, Dst: stateReconnecting},
		{Name: evShutdown, Src: []string{stateConnecting, stateConnected, stateAuthenticated, stateReconnecting}, Dst: stateIdle},
	}, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			m.logger.Debug("connection state", "from", e.Src, "to", e.Dst)
		},
	})

	// Seed the registry so OnStatus subscribers always get an immediate
	// replay of the current state.
	m.status.Set(State{})

	return m
}

// OnStatus registers a connection state callback. The callback is invoked
// once immediately with the current state, then on every transition.
func (m *Manager) OnStatus(fn func(State)) func() {
	return m.status.Subscribe(fn)
}

// State returns a snapshot of the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect establishes the push connection and starts the handshake.
// No-op when already connected or authenticated. An empty token is a
// fatal input error and is never retried.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.sm.Current() {
	case stateConnected, stateAuthenticated:
		m.mu.Unlock()
		return nil
	}

	if m.token == "" {
		m.state.LastError = ErrMissingToken.Error()
		m.state.Reconnecting = false
		st := m.state
		m.mu.Unlock()
		m.status.Set(st)
		return ErrMissingToken
	}

	// Tear down any stale socket before dialing.
	m.teardownLocked()

	endpoint, err := m.resolveEndpoint()
	if err != nil {
		m.state.LastError = err.Error()
		st := m.state
		m.mu.Unlock()
		m.status.Set(st)
		return fmt.Errorf("resolve endpoint: %w", err)
	}
	m.endpoint = endpoint
	m.transition(evDial)

	cl := m.newClient(ClientConfig{
		URL:          endpoint,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.BufferSize,
	}, m.logger.With("component", "ws"))
	m.mu.Unlock()

	if err := cl.Connect(ctx); err != nil {
		m.logger.Warn("connection open failed", "endpoint", endpoint, "error", err)
		m.handleOpenFailure(err)
		return err
	}

	m.mu.Lock()
	m.client = cl
	m.gen++
	gen := m.gen
	m.stop = make(chan struct{})
	stop := m.stop
	m.transition(evOpen)
	m.state.Connected = true
	m.state.Authenticated = false
	m.state.Reconnecting = false
	m.state.LastError = ""
	m.state.LastConnectedAt = m.clock.Now()
	m.attempts = 0
	m.delay = m.cfg.ReconnectBaseDelay
	st := m.state
	m.mu.Unlock()

	m.status.Set(st)
	m.logger.Info("connected", "endpoint", endpoint)

	go m.readLoop(cl, gen, stop)
	go m.heartbeatLoop(cl, stop)
	go m.endpointLoop(stop)

	if err := m.sendAuthenticate(cl); err != nil {
		m.logger.Warn("authenticate send failed", "error", err)
	}

	return nil
}

// Disconnect tears the connection down and synchronously clears all
// pending timers so nothing can resurrect it.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.teardownLocked()
	m.transition(evShutdown)
	m.attempts = 0
	m.delay = m.cfg.ReconnectBaseDelay
	m.state = State{LastConnectedAt: m.state.LastConnectedAt}
	st := m.state
	m.mu.Unlock()

	m.status.Set(st)
	m.logger.Info("disconnected")
}

// Reconnect resets the retry budget and dials again.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.Disconnect()
	return m.Connect(ctx)
}

// Reauthenticate sends a fresh handshake with a new token over the
// existing socket. Used after an auth_error; the transport stays up.
func (m *Manager) Reauthenticate(token string) error {
	if token == "" {
		return ErrMissingToken
	}

	m.mu.Lock()
	m.token = token
	cl := m.client
	m.mu.Unlock()

	if cl == nil {
		return ErrNotConnected
	}
	return m.sendAuthenticate(cl)
}

// teardownLocked stops per-connection goroutines, cancels any pending
// reconnect timer and closes the socket. Caller holds m.mu.
func (m *Manager) teardownLocked() {
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.gen++
}

func (m *Manager) resolveEndpoint() (string, error) {
	if m.cfg.Resolver != nil {
		return m.cfg.Resolver()
	}
	if m.cfg.Endpoint == "" {
		return "", errors.New("no endpoint configured")
	}
	return m.cfg.Endpoint, nil
}

// transition drives the state machine; invalid transitions are logged
// and ignored rather than propagated.
func (m *Manager) transition(ev string) {
	if err := m.sm.Event(context.Background(), ev); err != nil {
		m.logger.Debug("state transition skipped", "event", ev, "error", err)
	}
}

func (m *Manager) sendAuthenticate(cl Client) error {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	msg := authenticateMsg{
		Type:  "authenticate",
		Token: token,
		UserInfo: userInfo{
			Name:      m.cfg.ClientName,
			Page:      m.cfg.ClientPage,
			UserAgent: m.cfg.UserAgent,
			ClientID:  m.clientID,
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal authenticate: %w", err)
	}
	return cl.Send(data)
}

// handleOpenFailure records a failed dial and schedules a retry.
// Open failures are transport errors, so they always back off.
func (m *Manager) handleOpenFailure(err error) {
	m.mu.Lock()
	m.state.Connected = false
	m.state.Authenticated = false
	m.state.LastError = err.Error()
	m.transition(evDrop)
	m.state.Reconnecting = true
	m.scheduleReconnectLocked()
	st := m.state
	m.mu.Unlock()

	m.status.Set(st)
}

// scheduleReconnectLocked arms the backoff timer. At most one timer is
// pending at any instant. Caller holds m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.reconnectTimer != nil {
		return
	}

	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.logger.Error("reconnect attempts exhausted", "attempts", m.attempts)
		m.state.Reconnecting = false
		m.state.LastError = ErrReconnectExhausted.Error()
		m.transition(evShutdown)
		return
	}

	m.attempts++
	delay := m.delay
	m.delay *= 2
	if m.delay > m.cfg.ReconnectMaxDelay {
		m.delay = m.cfg.ReconnectMaxDelay
	}

	attempt := m.attempts
	m.logger.Info("scheduling reconnect", "attempt", attempt, "delay", delay)

	m.reconnectTimer = m.clock.AfterFunc(delay, func() {
		m.mu.Lock()
		m.reconnectTimer = nil
		m.mu.Unlock()

		if err := m.Connect(context.Background()); err != nil {
			m.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
		}
	})
}

// readLoop drains the transport channels for one connection generation.
func (m *Manager) readLoop(cl Client, gen int, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case err := <-cl.Errors():
			m.handleDrop(gen, err)
			return

		case msg, ok := <-cl.Messages():
			if !ok {
				return
			}
			m.handleMessage(msg)
		}
	}
}

// handleDrop reacts to a transport close or error. Graceful closes go to
// idle; everything else backs off and retries.
func (m *Manager) handleDrop(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.gen++
	m.state.Connected = false
	m.state.Authenticated = false
	m.state.LastError = err.Error()

	if isGracefulClose(err) {
		m.logger.Info("connection closed", "reason", err)
		m.transition(evShutdown)
		m.state.Reconnecting = false
		st := m.state
		m.mu.Unlock()
		m.status.Set(st)
		return
	}

	m.logger.Warn("connection lost", "error", err)
	m.transition(evDrop)
	m.state.Reconnecting = true
	m.scheduleReconnectLocked()
	st := m.state
	m.mu.Unlock()

	m.status.Set(st)
}

func isGracefulClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
	)
}

// handleMessage updates protocol state and fans the message out.
func (m *Manager) handleMessage(msg TimestampedMessage) {
	var env messageEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		m.logger.Warn("unparseable push message", "error", err)
		return
	}

	switch env.Type {
	case dispatch.KindAuthenticated:
		m.handleAuthenticated(msg.Data)
	case dispatch.KindAuthError:
		m.handleAuthError(msg.Data)
	case dispatch.KindHeartbeat:
		m.handleHeartbeat(msg.Data)
	}

	m.bus.Publish(dispatch.Event{
		Kind:       env.Type,
		Data:       msg.Data,
		ReceivedAt: msg.ReceivedAt,
	})
}

func (m *Manager) handleAuthenticated(data []byte) {
	var wire authenticatedWire
	if err := json.Unmarshal(data, &wire); err != nil {
		m.logger.Warn("unparseable authenticated reply", "error", err)
		return
	}

	m.mu.Lock()
	m.transition(evAuthOK)
	m.state.Authenticated = true
	m.state.LastError = ""
	m.state.ConnectedClients = len(wire.ConnectedClients)
	m.attempts = 0
	m.delay = m.cfg.ReconnectBaseDelay
	st := m.state
	m.mu.Unlock()

	m.status.Set(st)
	m.logger.Info("authenticated", "connected_clients", st.ConnectedClients)
}

// handleAuthError flags the rejection but keeps the socket up; callers
// may retry with a fresh token via Reauthenticate.
func (m *Manager) handleAuthError(data []byte) {
	var wire authErrorWire
	if err := json.Unmarshal(data, &wire); err != nil {
		m.logger.Warn("unparseable auth_error reply", "error", err)
		return
	}

	m.mu.Lock()
	m.state.Authenticated = false
	m.state.LastError = wire.Message
	st := m.state
	m.mu.Unlock()

	m.status.Set(st)
	m.logger.Warn("authentication rejected", "message", wire.Message)
}

func (m *Manager) handleHeartbeat(data []byte) {
	var wire heartbeatWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return
	}

	m.mu.Lock()
	m.state.ConnectedClients = wire.ServerStats.ConnectedClients
	st := m.state
	m.mu.Unlock()

	m.status.Set(st)
}

// heartbeatLoop sends an application-level ping on a fixed cadence. A
// missing pong is not a disconnect trigger; the transport's own
// close/error events are authoritative.
func (m *Manager) heartbeatLoop(cl Client, stop chan struct{}) {
	t := m.clock.Ticker(m.cfg.HeartbeatInterval)
	defer t.Stop()

	ping, _ := json.Marshal(pingMsg{Type: "ping"})

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := cl.Send(ping); err != nil {
				m.logger.Debug("ping send failed", "error", err)
			}
		}
	}
}

// endpointLoop periodically re-resolves the endpoint and reconnects when
// it moves while connected.
func (m *Manager) endpointLoop(stop chan struct{}) {
	if m.cfg.Resolver == nil || m.cfg.EndpointCheckInterval <= 0 {
		return
	}

	t := m.clock.Ticker(m.cfg.EndpointCheckInterval)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			next, err := m.cfg.Resolver()
			if err != nil {
				m.logger.Debug("endpoint resolution failed", "error", err)
				continue
			}

			m.mu.Lock()
			changed := m.state.Connected && next != m.endpoint
			m.mu.Unlock()

			if changed {
				m.logger.Info("endpoint changed, reconnecting", "endpoint", next)
				if err := m.Reconnect(context.Background()); err != nil {
					m.logger.Warn("reconnect after endpoint change failed", "error", err)
				}
				return
			}
		}
	}
}

func (cfg *ManagerConfig) applyDefaults() {
	d := DefaultManagerConfig()
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = d.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = d.ReconnectMaxDelay
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = d.HeartbeatInterval
	}
	if cfg.EndpointCheckInterval == 0 {
		cfg.EndpointCheckInterval = d.EndpointCheckInterval
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = d.WriteTimeout
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = d.BufferSize
	}
}
