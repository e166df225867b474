package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"yacht-twin/monitor/internal/auth"
	"yacht-twin/monitor/internal/config"
	"yacht-twin/monitor/internal/domain"
	"yacht-twin/monitor/internal/logging"
	"yacht-twin/monitor/internal/pipeline"
	"yacht-twin/monitor/internal/store"
	"yacht-twin/monitor/internal/surrogate"
	transport "yacht-twin/monitor/internal/transport/http"
	"yacht-twin/monitor/internal/twin"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogPretty)
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file loaded, using process environment")
	}

	sessionID := uuid.NewString()
	logger = logger.With().Str("session_id", sessionID).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		noiseSrc  rand.Source
		normalSrc rand.Source
	)
	if cfg.RandomSeed > 0 {
		noiseSrc = rand.NewPCG(cfg.RandomSeed, 1)
		normalSrc = rand.NewPCG(cfg.RandomSeed, 2)
	}

	state := twin.NewState(domain.DefaultParameters(), cfg.HistorySize)
	model := surrogate.NewModel(surrogate.NewGaussianNoise(cfg.NoiseStdDev, noiseSrc))

	dbSize, stateSize := 0, 0
	if cfg.PersistEnabled {
		dbSize = cfg.DBChannelSize
	}
	if cfg.RedisEnabled {
		stateSize = cfg.StateChannelSize
	}
	dispatcher := pipeline.NewDispatcher(dbSize, stateSize, cfg.AlertChannelSize, cfg.StreamChannelSize)

	var (
		timescale *store.TimescaleStore
		redis     *store.RedisStore
		archive   transport.HistoryArchive
		sinks     pipeline.AlertSinks
		keys      auth.KeyLookup
	)

	if cfg.PersistEnabled {
		ts, err := store.NewTimescaleStore(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to timescaledb")
		}
		defer ts.Close()
		timescale = ts
		archive = ts
		sinks.Recorder = ts
		logger.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("timescaledb connected")
	}

	if cfg.RedisEnabled {
		rs, err := store.NewRedisStore(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rs.Close()
		redis = rs
		sinks.Deduper = rs
		sinks.Publisher = rs
		keys = rs
		logger.Info().Str("addr", cfg.RedisAddr).Msg("redis connected")
	}

	var authenticator *auth.Authenticator
	if cfg.AuthEnabled {
		authenticator = auth.NewAuthenticator(cfg, keys)
	}

	loop := pipeline.NewTelemetryLoop(state, model, pipeline.LoopOptions{
		Interval: time.Duration(cfg.TickIntervalMS) * time.Millisecond,
		Process: twin.OUProcess{
			Theta: cfg.OUTheta,
			Sigma: cfg.OUSigma,
			Dt:    twin.DefaultDt,
			Min:   cfg.SpeedMin,
			Max:   cfg.SpeedMax,
		},
		Normal:    distuv.Normal{Mu: 0, Sigma: 1, Src: normalSrc},
		Sink:      dispatcher,
		SessionID: sessionID,
	}, logger)

	hub := transport.NewHub(dispatcher.StreamChan, state.History, logger)
	server := transport.NewServer(state, model, transport.ServerOptions{
		Hub:       hub,
		Archive:   archive,
		Auth:      authenticator,
		SessionID: sessionID,
	}, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// Loop owns the dispatcher; workers drain and exit once it is closed.
	g.Go(func() error {
		defer dispatcher.Close()
		return loop.Run(gCtx)
	})

	if timescale != nil {
		for i := 0; i < cfg.DBWriterWorkers; i++ {
			w := pipeline.NewDBWriter(dispatcher.DBChan, timescale, cfg.DBBatchSize, cfg.DBFlushIntervalMS, logger)
			g.Go(func() error { return w.Run(gCtx) })
		}
	}

	if redis != nil {
		for i := 0; i < cfg.StateWriterWorkers; i++ {
			w := pipeline.NewStateWriter(dispatcher.StateChan, redis, logger)
			g.Go(func() error { return w.Run(gCtx) })
		}
	}

	dedupTTL := time.Duration(cfg.AlertDedupSeconds) * time.Second
	for i := 0; i < cfg.AlertWorkers; i++ {
		e := pipeline.NewAlertEvaluator(dispatcher.AlertChan, sinks, dedupTTL, logger)
		g.Go(func() error { return e.Run(gCtx) })
	}

	g.Go(func() error { return hub.Run(gCtx) })
	g.Go(func() error { return server.Run(gCtx, cfg.HTTPPort) })

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	logger.Info().
		Str("port", cfg.HTTPPort).
		Bool("persist", cfg.PersistEnabled).
		Bool("redis", cfg.RedisEnabled).
		Bool("auth", cfg.AuthEnabled).
		Dur("tick", time.Duration(cfg.TickIntervalMS)*time.Millisecond).
		Msg("hull twin started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("twin exited with error")
		os.Exit(1)
	}

	logger.Info().Msg("twin shut down gracefully")
}
