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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Jam/internal/adapters/http"
	"github.com/dkeye/Jam/internal/adapters/fanout"
	sig "github.com/dkeye/Jam/internal/adapters/signal"
	"github.com/dkeye/Jam/internal/adapters/store"
	"github.com/dkeye/Jam/internal/app"
	"github.com/dkeye/Jam/internal/app/orch"
	"github.com/dkeye/Jam/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load local .env (dev only)
	_ = godotenv.Load()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	recordings, closeStore, err := store.Open(ctx, store.Options{
		Backend:  cfg.Recordings.Backend,
		PGURL:    cfg.Recordings.PGURL,
		Table:    cfg.Recordings.Table,
		MaxConns: cfg.Recordings.MaxConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("recordings store")
	}
	defer closeStore()

	reg := app.NewRegistry()
	rooms := app.NewRoomManager(reg)
	o := orch.New(reg, rooms, recordings, orch.Settings{
		RosterOnJoin: cfg.Relay.RosterOnJoin,
		ProbePeriod:  cfg.LatencyPeriod,
		StoreTimeout: cfg.Recordings.Timeout,
		MaxInflight:  cfg.Recordings.MaxInflight,
	})

	if cfg.Redis.Addr != "" {
		bus, err := fanout.NewRedisBus(ctx, fanout.RedisOptions{
			Addr:   cfg.Redis.Addr,
			DB:     cfg.Redis.DB,
			Prefix: cfg.Redis.Channel,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect")
		}
		defer bus.Close()
		o.Bus = bus
	}

	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		o.Run(ctx)
	}()

	ctrl := sig.NewSignalWSController(o, sig.Options{
		ReadLimit:  cfg.ReadLimit,
		SendBuffer: cfg.SendBuffer,
		Limiter:    sig.NewRoomRateLimiter(cfg.Limits.JoinBurst, cfg.Limits.JoinWindow),
	})
	r := router.SetupRouter(ctx, cfg, o, ctrl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router.WithCORS(r, cfg.CORSAllow),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Bool("tls", cfg.TLS.Enabled).Msg("Jam server started")
		var err error
		if cfg.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-orchDone
	log.Info().Msg("Server exited gracefully")
}
