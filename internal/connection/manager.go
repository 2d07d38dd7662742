package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/rickgao/vi-monitor/internal/metrics"
)

// Manager owns the streaming connection and its reconnect loop.
type Manager struct {
	cfg     ManagerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	// newClient is replaced in tests.
	newClient func(ClientConfig, *slog.Logger) Client

	mu         sync.RWMutex
	state      State
	client     Client
	session    Session
	linkErr    chan error // per session; a failed Send ends the session
	reconnects int
	lastErr    error
	running    bool
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultManagerConfig().ReconnectDelay
	}

	return &Manager{
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With("component", "connection"),
		newClient: NewClient,
	}
}

// Run connects and serves sessions until ctx is cancelled. Connection
// failures are retried forever with a fixed delay. Run returns nil on
// cancellation.
func (m *Manager) Run(ctx context.Context, h Handler) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("connection manager already running")
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		m.setState(StateDisconnected)
	}()

	bo := backoff.NewConstantBackOff(m.cfg.ReconnectDelay)
	established := 0
	attempt := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		m.setState(StateConnecting)
		attempt++

		c := m.newClient(m.cfg.Client, m.logger)
		if err := c.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.recordError(err)
			wait := bo.NextBackOff()
			m.logger.Warn("connect failed",
				"attempt", attempt,
				"retry_in", wait,
				"error", err,
			)
			if !m.wait(ctx, wait) {
				return nil
			}
			continue
		}

		bo.Reset()
		attempt = 0
		sess := Session{
			ID:          uuid.New(),
			Reconnect:   established > 0,
			ConnectedAt: time.Now(),
		}
		established++

		err := m.serve(ctx, c, sess, h)
		m.detach(c)

		if ctx.Err() != nil {
			m.logger.Info("connection closed", "session_id", sess.ID)
			return nil
		}

		m.recordError(err)
		wait := bo.NextBackOff()
		m.logger.Warn("connection lost, reconnecting",
			"session_id", sess.ID,
			"retry_in", wait,
			"error", err,
		)
		if !m.wait(ctx, wait) {
			return nil
		}
	}
}

// serve runs one session until the link breaks or ctx is cancelled.
func (m *Manager) serve(ctx context.Context, c Client, sess Session, h Handler) error {
	linkErr := m.attach(c, sess)

	log := m.logger.With("session_id", sess.ID)
	log.Info("connected", "reconnect", sess.Reconnect)

	if err := h.OnConnected(ctx, sess); err != nil {
		return fmt.Errorf("session setup: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-c.Messages():
			h.OnFrame(Frame{Data: msg.Data, ReceivedAt: msg.ReceivedAt, SessionID: sess.ID})

		case err := <-c.Errors():
			m.drain(c, sess, h)
			return err

		case err := <-linkErr:
			return err
		}
	}
}

// drain delivers frames that were read before the link failed.
func (m *Manager) drain(c Client, sess Session, h Handler) {
	for {
		select {
		case msg := <-c.Messages():
			h.OnFrame(Frame{Data: msg.Data, ReceivedAt: msg.ReceivedAt, SessionID: sess.ID})
		default:
			return
		}
	}
}

func (m *Manager) attach(c Client, sess Session) chan error {
	linkErr := make(chan error, 1)

	m.mu.Lock()
	m.client = c
	m.session = sess
	m.linkErr = linkErr
	m.state = StateConnected
	if sess.Reconnect {
		m.reconnects++
	}
	m.mu.Unlock()

	m.metrics.SetConnected(true)
	if sess.Reconnect {
		m.metrics.Reconnected()
	}
	return linkErr
}

func (m *Manager) detach(c Client) {
	m.mu.Lock()
	m.client = nil
	m.linkErr = nil
	m.state = StateReconnecting
	m.mu.Unlock()

	m.metrics.SetConnected(false)

	if err := c.Close(); err != nil {
		m.logger.Debug("close connection", "error", err)
	}
}

func (m *Manager) wait(ctx context.Context, d time.Duration) bool {
	m.setState(StateReconnecting)
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) recordError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// Send writes one command on the current session. It returns
// ErrNotConnected between sessions. A write failure ends the session.
func (m *Manager) Send(data []byte) error {
	m.mu.RLock()
	c, linkErr, state := m.client, m.linkErr, m.state
	m.mu.RUnlock()

	if c == nil || state != StateConnected {
		return ErrNotConnected
	}

	if err := c.Send(data); err != nil {
		select {
		case linkErr <- err:
		default:
		}
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Status returns a snapshot of the connection state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		State:      m.state.String(),
		Reconnects: m.reconnects,
	}
	if m.state == StateConnected {
		st.SessionID = m.session.ID.String()
		st.ConnectedAt = m.session.ConnectedAt
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
