package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hostwire/hostwire/internal/command"
	"github.com/hostwire/hostwire/internal/config"
	"github.com/hostwire/hostwire/internal/datagram"
	"github.com/hostwire/hostwire/internal/logging"
	"github.com/hostwire/hostwire/internal/observability"
	"github.com/hostwire/hostwire/internal/serializer"
	"github.com/hostwire/hostwire/internal/session"
	"github.com/hostwire/hostwire/internal/stream"
)

func main() {
	cfgPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hostwired: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "hostwired: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.NewMemory()
	reg := command.NewRegistry()
	if err := session.Catalog(reg, sess); err != nil {
		return err
	}

	exec := serializer.New(cfg.Serializer.QueueSize)
	go exec.Run(ctx)

	streamSrv := stream.New(stream.Config{
		Addr:         cfg.Reliable.Addr,
		ReadTimeout:  time.Duration(cfg.Reliable.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Reliable.WriteTimeoutSeconds) * time.Second,
	}, reg, exec)
	if err := streamSrv.Listen(); err != nil {
		return err
	}

	dgramSrv := datagram.New(datagram.Config{
		Addr:      cfg.Lossy.Addr,
		MaxPacket: cfg.Lossy.MaxPacket,
		RateLimit: cfg.Lossy.RateLimit,
		RateBurst: cfg.Lossy.RateBurst,
	}, reg, exec)
	if err := dgramSrv.Listen(); err != nil {
		return err
	}

	obs := observability.NewServer(cfg.NodeID, cfg.Observability.Addr, cfg.Observability.CorsOrigins, func() map[string]any {
		return map[string]any{
			"queue_depth":        exec.Depth(),
			"active_connections": streamSrv.ActiveConnections(),
			"commands":           reg.Names(),
			"tracks":             sess.TrackCount(),
		}
	})

	errCh := make(chan error, 3)
	go func() { errCh <- streamSrv.Serve(ctx) }()
	go func() { errCh <- dgramSrv.Serve(ctx) }()
	go func() { errCh <- obs.Serve() }()

	log.Info().Str("node", cfg.NodeID).Msg("hostwired running")

	select {
	case <-ctx.Done():
		log.Info().Msg("hostwired shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}
