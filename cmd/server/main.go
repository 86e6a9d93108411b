package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"squadpick/internal/app"
	"squadpick/internal/config"
	"squadpick/internal/events"
	"squadpick/internal/gateway"
	"squadpick/internal/roomstore"
	"squadpick/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("LOG_LEVEL") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	log.Info().
		Str("port", cfg.Server.Port).
		Int("max_members", cfg.Room.MaxMembers).
		Int("target_picks", cfg.Room.TargetPicksPerMember).
		Int("turn_duration_sec", cfg.Room.TurnDurationSeconds).
		Msg("starting squadpick server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()

	store := roomstore.NewMemoryStore(clock, roomstore.DefaultConfig())
	go store.Reap(ctx)

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	sinks := []events.Publisher{cm}

	if cfg.NATS.URL != "" {
		np, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			log.Fatal().Err(err).Str("nats_url", cfg.NATS.URL).Msg("failed to connect to NATS")
		}
		defer np.Close()
		sinks = append(sinks, np)
		log.Info().Str("nats_url", cfg.NATS.URL).Msg("mirroring room events to NATS")
	}

	roomApp := app.New(app.Config{
		MaxMembers:   cfg.Room.MaxMembers,
		TargetPicks:  cfg.Room.TargetPicksPerMember,
		TurnDuration: time.Duration(cfg.Room.TurnDurationSeconds) * time.Second,
		RoomTTL:      time.Duration(cfg.Room.RoomTTLSeconds) * time.Second,
	}, store, clock, sinks...)

	sched := scheduler.New(clock, roomApp.HandleTurnTimeout)
	defer sched.Stop()
	roomApp.SetTimer(sched)

	cm.SetRouter(gateway.NewCommandRouter(roomApp, cm))
	go cm.Start(ctx)

	mux := http.NewServeMux()
	gateway.NewHandler(cm, roomApp).RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections write indefinitely
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	log.Info().Msg("squadpick server shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
