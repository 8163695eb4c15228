// Package client owns the consumer-facing connection manager.
//
// Ownership boundary:
// - one reusable reliable connection with reconnect-on-failure
// - a lazily-dialed, reused lossy sender
//
// Call never retries on its own: whether the underlying command is safe
// to reissue is the caller's knowledge, not the transport's.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hostwire/hostwire/internal/command"
)

// ErrConnection wraps every transport-level Call failure, keeping it
// distinguishable from an application-level error response.
var ErrConnection = errors.New("client: connection error")

// CallError is an application-level error response from the host. The
// request was delivered and answered; the command itself failed.
type CallError struct {
	Message string
}

func (e *CallError) Error() string {
	return "client: command failed: " + e.Message
}

const DefaultTimeout = 5 * time.Second

type Config struct {
	// ReliableAddr is the TCP call endpoint.
	ReliableAddr string

	// LossyAddr is the UDP cast endpoint.
	LossyAddr string

	// Timeout bounds dialing and each call round trip.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	c.ReliableAddr = strings.TrimSpace(c.ReliableAddr)
	c.LossyAddr = strings.TrimSpace(c.LossyAddr)
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Manager holds both client-side transports. Safe for concurrent use;
// calls are serialized onto the single reliable connection to keep one
// request in flight per connection.
type Manager struct {
	cfg Config

	mu   sync.Mutex
	conn net.Conn
	dec  *json.Decoder

	lossyMu sync.Mutex
	lossy   net.Conn
}

func New(cfg Config) *Manager {
	return &Manager{cfg: cfg.withDefaults()}
}

// Call issues one command over the reliable transport and blocks for
// its response. Transport failures wrap ErrConnection and tear the
// connection down for reconnect on the next Call; an error response
// from the host is returned as *CallError with the connection intact.
func (m *Manager) Call(ctx context.Context, name string, params map[string]any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureConn(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	payload, err := json.Marshal(command.Request{Type: name, Params: params})
	if err != nil {
		return nil, fmt.Errorf("client: marshal %s: %w", name, err)
	}

	deadline := m.callDeadline(ctx)
	_ = m.conn.SetWriteDeadline(deadline)
	if _, err := m.conn.Write(payload); err != nil {
		m.teardown()
		return nil, fmt.Errorf("%w: write: %v", ErrConnection, err)
	}

	// The response may arrive across many reads; the streaming decoder
	// accumulates until one complete document is framed.
	_ = m.conn.SetReadDeadline(deadline)
	var resp command.Response
	if err := m.dec.Decode(&resp); err != nil {
		m.teardown()
		return nil, fmt.Errorf("%w: read: %v", ErrConnection, err)
	}

	if resp.Status != command.StatusSuccess {
		return nil, &CallError{Message: resp.Message}
	}
	return resp.Result, nil
}

// Cast sends one command over the lossy transport, fire-and-forget.
// Failures are logged and swallowed; no delivery may be assumed.
func (m *Manager) Cast(name string, params map[string]any) {
	payload, err := json.Marshal(command.Request{Type: name, Params: params})
	if err != nil {
		log.Warn().Str("command", name).Err(err).Msg("cast marshal failed")
		return
	}

	m.lossyMu.Lock()
	defer m.lossyMu.Unlock()

	if m.lossy == nil {
		conn, err := net.DialTimeout("udp", m.cfg.LossyAddr, m.cfg.Timeout)
		if err != nil {
			log.Warn().Str("addr", m.cfg.LossyAddr).Err(err).Msg("cast dial failed")
			return
		}
		m.lossy = conn
	}

	if _, err := m.lossy.Write(payload); err != nil {
		log.Warn().Str("command", name).Err(err).Msg("cast send failed")
		_ = m.lossy.Close()
		m.lossy = nil
	}
}

// Close releases both transports.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.teardown()
	m.mu.Unlock()

	m.lossyMu.Lock()
	defer m.lossyMu.Unlock()
	if m.lossy != nil {
		err := m.lossy.Close()
		m.lossy = nil
		return err
	}
	return nil
}

// callDeadline bounds one round trip: the configured timeout, tightened
// by the context deadline when the caller set an earlier one.
func (m *Manager) callDeadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(m.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

// ensureConn dials the reliable endpoint if no live connection is held.
// Callers hold m.mu.
func (m *Manager) ensureConn(ctx context.Context) error {
	if m.conn != nil {
		return nil
	}
	if m.cfg.ReliableAddr == "" {
		return errors.New("reliable addr required")
	}
	dialer := net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", m.cfg.ReliableAddr)
	if err != nil {
		return err
	}
	m.conn = conn
	m.dec = json.NewDecoder(conn)
	return nil
}

// teardown drops the reliable connection so the next Call redials.
// Callers hold m.mu.
func (m *Manager) teardown() {
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
		m.dec = nil
	}
}
