// Package stream owns the reliable channel listener.
//
// Ownership boundary:
// - TCP accept loop and per-connection round-trip framing
// - exactly-one-response-per-request delivery on the owning connection
//
// A connection goroutine is the only waiter on its own submitted
// command; a stalled peer can never hold up another connection.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hostwire/hostwire/internal/command"
	"github.com/hostwire/hostwire/internal/observability"
	"github.com/hostwire/hostwire/internal/serializer"
)

var ErrNotListening = errors.New("stream: not listening")

const (
	DefaultReadTimeout  = 5 * time.Minute
	DefaultWriteTimeout = 10 * time.Second
)

type Config struct {
	Addr string

	// ReadTimeout bounds one full request frame, idle time included. A
	// peer that stalls past it is disconnected rather than leaked.
	ReadTimeout time.Duration

	// WriteTimeout bounds flushing one response.
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = ":9000"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// Server accepts reliable connections and frames one request/response
// pair per round trip.
type Server struct {
	cfg  Config
	reg  *command.Registry
	exec *serializer.Serializer

	ln          net.Listener
	clientCount atomic.Int64
}

func New(cfg Config, reg *command.Registry, exec *serializer.Serializer) *Server {
	return &Server{cfg: cfg.withDefaults(), reg: reg, exec: exec}
}

// Listen binds the configured address. Split from Serve so callers can
// read the bound address before any connection is accepted.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("stream: listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ActiveConnections reports currently connected reliable clients.
func (s *Server) ActiveConnections() int64 {
	return s.clientCount.Load()
}

// Serve blocks on the accept loop until ctx is cancelled or the
// listener fails.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		return ErrNotListening
	}
	log.Info().Str("addr", s.ln.Addr().String()).Msg("stream listening")

	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream: accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

// handleConn runs one connection's round trips until close, timeout or
// error. Failures here are scoped to this connection alone.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	unhook := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer unhook()
	remote := conn.RemoteAddr().String()
	active := s.clientCount.Add(1)
	log.Info().Str("remote", remote).Int64("active_clients", active).Msg("stream client connected")
	defer func() {
		remaining := s.clientCount.Add(-1)
		log.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("stream client disconnected")
	}()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		resp, fatal, ok := s.roundTrip(ctx, conn, dec, remote)
		if !ok {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := enc.Encode(resp); err != nil {
			log.Warn().Str("remote", remote).Err(err).Msg("stream write failed")
			return
		}
		if fatal {
			return
		}
	}
}

// roundTrip reads and executes one request. It reports the response to
// write, whether the connection must close after writing it, and whether
// there is anything to write at all.
func (s *Server) roundTrip(ctx context.Context, conn net.Conn, dec *json.Decoder, remote string) (resp command.Response, fatal bool, ok bool) {
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	var req command.Request
	if err := dec.Decode(&req); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return command.Response{}, false, false
		case isTimeout(err):
			log.Info().Str("remote", remote).Msg("stream read timed out")
			return command.Response{}, false, false
		case isClosed(err):
			return command.Response{}, false, false
		default:
			// Frame sync cannot be trusted after a decode error, so the
			// connection closes once the error response is flushed.
			log.Warn().Str("remote", remote).Err(err).Msg("stream malformed request")
			return command.Failure("malformed request: " + err.Error()), true, true
		}
	}

	desc, err := s.reg.Classify(req.Type)
	if err != nil {
		log.Warn().Str("remote", remote).Str("command", req.Type).Msg("stream unknown command")
		return command.Failure(err.Error()), false, true
	}

	start := time.Now()
	done := make(chan serializer.Result, 1)
	task := serializer.Task{
		Command: command.Command{
			Name:      desc.Name,
			Params:    req.Params,
			Transport: command.TransportReliable,
		},
		Handler: desc.Handler,
		Done:    func(r serializer.Result) { done <- r },
	}
	if err := s.exec.Submit(ctx, task); err != nil {
		return command.Failure("submit failed: " + err.Error()), true, true
	}
	observability.RecordQueueDepth(s.exec.Depth())

	// Only this connection's goroutine blocks here. If the server shuts
	// down first the task may still run; its buffered result is simply
	// never read, matching the discard-on-orphan contract.
	select {
	case res := <-done:
		observability.RecordCommand(command.TransportReliable.String(), desc.Name, res.Err, time.Since(start))
		if res.Err != nil {
			return command.Failure(res.Err.Error()), false, true
		}
		return command.Success(res.Value), false, true
	case <-ctx.Done():
		return command.Response{}, false, false
	}
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
