// Package datagram owns the lossy channel listener.
//
// Ownership boundary:
// - the single UDP receive loop
// - transport-eligibility enforcement before any submission
//
// Every failure on this path is swallowed after logging: there is no
// response channel to report on, and one bad packet must never halt the
// loop. Loss is a designed-for condition; only commands whose repeated
// application converges belong here, and the registry tier is what says
// so.
package datagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hostwire/hostwire/internal/command"
	"github.com/hostwire/hostwire/internal/observability"
	"github.com/hostwire/hostwire/internal/serializer"
)

var ErrNotListening = errors.New("datagram: not listening")

const DefaultMaxPacket = 64 * 1024

type Config struct {
	Addr string

	// MaxPacket caps the receive buffer; one complete JSON command must
	// fit in one datagram.
	MaxPacket int

	// RateLimit caps sustained datagrams per second before parsing;
	// zero disables the limiter. Excess traffic is dropped, which is
	// already this transport's contract.
	RateLimit float64
	RateBurst int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = ":9001"
	}
	if c.MaxPacket <= 0 {
		c.MaxPacket = DefaultMaxPacket
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	return c
}

// Server runs the single lossy receive loop.
type Server struct {
	cfg     Config
	reg     *command.Registry
	exec    *serializer.Serializer
	pc      net.PacketConn
	limiter *rate.Limiter
}

func New(cfg Config, reg *command.Registry, exec *serializer.Serializer) *Server {
	cfg = cfg.withDefaults()
	s := &Server{cfg: cfg, reg: reg, exec: exec}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return s
}

// Listen binds the configured address. Split from Serve so callers can
// read the bound address before traffic arrives.
func (s *Server) Listen() error {
	pc, err := net.ListenPacket("udp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("datagram: listen %s: %w", s.cfg.Addr, err)
	}
	s.pc = pc
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.pc == nil {
		return nil
	}
	return s.pc.LocalAddr()
}

// Serve blocks on the receive loop until ctx is cancelled or the socket
// fails. Per-datagram failures never exit the loop.
func (s *Server) Serve(ctx context.Context) error {
	if s.pc == nil {
		return ErrNotListening
	}
	log.Info().Str("addr", s.pc.LocalAddr().String()).Msg("datagram listening")

	go func() {
		<-ctx.Done()
		_ = s.pc.Close()
	}()

	buf := make([]byte, s.cfg.MaxPacket)
	for {
		n, addr, err := s.pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("datagram: read: %w", err)
		}
		s.handlePacket(buf[:n], addr)
	}
}

func (s *Server) handlePacket(payload []byte, addr net.Addr) {
	if s.limiter != nil && !s.limiter.Allow() {
		observability.RecordDroppedDatagram("rate_limited")
		return
	}

	var req command.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		observability.RecordDroppedDatagram("malformed")
		log.Warn().Str("remote", addr.String()).Err(err).Msg("datagram dropped malformed packet")
		return
	}

	desc, err := s.reg.Classify(req.Type)
	if err != nil {
		observability.RecordDroppedDatagram("unknown_command")
		log.Warn().Str("remote", addr.String()).Str("command", req.Type).Msg("datagram dropped unknown command")
		return
	}

	if desc.Tier != command.LossyEligible {
		observability.RecordUnsafeRejection(desc.Name)
		log.Warn().
			Str("remote", addr.String()).
			Str("command", desc.Name).
			Str("tier", desc.Tier.String()).
			Msg("datagram rejected unsafe command")
		return
	}

	name := desc.Name
	start := time.Now()
	task := serializer.Task{
		Command: command.Command{
			Name:      name,
			Params:    req.Params,
			Transport: command.TransportLossy,
		},
		Handler: desc.Handler,
		// No response path exists; the responder only records outcome.
		Done: func(res serializer.Result) {
			observability.RecordCommand(command.TransportLossy.String(), name, res.Err, time.Since(start))
		},
	}
	if err := s.exec.TrySubmit(task); err != nil {
		observability.RecordDroppedDatagram("queue_full")
		log.Warn().Str("command", name).Err(err).Msg("datagram dropped on full queue")
		return
	}
	observability.RecordQueueDepth(s.exec.Depth())
}
