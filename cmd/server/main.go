package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/voxwire/voxwire/internal/adapter/driven/gateway/ws"
	handler "github.com/voxwire/voxwire/internal/adapter/driving/http"
	"github.com/voxwire/voxwire/internal/core/service"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	ringTimeout := flag.Duration("ring-timeout", 30*time.Second, "how long an unanswered call rings")
	maxPeers := flag.Int("max-peers", 8, "maximum participants per call")
	iceServers := flag.String("ice-servers", "stun:stun.l.google.com:19302", "comma-separated STUN/TURN URLs handed to clients")
	flag.Parse()

	w := zerolog.ConsoleWriter{Out: os.Stdout}
	l := zerolog.New(w).With().Timestamp().Caller().Logger()
	zlog.Logger = l

	cfg := service.Config{
		RingTimeout: *ringTimeout,
		MaxPeers:    *maxPeers,
		ICEServers:  strings.Split(*iceServers, ","),
	}

	hub := ws.NewHub()
	registry := service.NewRegistry(cfg)
	rooms := service.NewRoomCoordinator(hub, cfg)
	callService := service.NewCallService(registry, rooms, hub, cfg)
	router := service.NewRouter(registry, hub)
	presence := service.NewPresence(hub)

	h := handler.NewHandler(callService, router, presence, registry, hub)

	srv := &http.Server{
		Addr:    *addr,
		Handler: h.NewRouter(),
	}

	go func() {
		l.Info().
			Str("addr", *addr).
			Dur("ring_timeout", cfg.RingTimeout).
			Int("max_peers", cfg.MaxPeers).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	l.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	hub.Stop()
	l.Info().Msg("Server exited")
}
