package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/config"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/engine"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/hub"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/logging"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/publisher"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/relay"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/roster"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Time allowed for in-flight requests at shutdown
const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scoreboard server",
		Long: `Run the HTTP server: admin write API, public snapshot, SSE and WebSocket
event streams.

MODE=primary (default) owns the match state. MODE=relay serves read-only
replicas that fan out events mirrored by a primary through a Redis stream.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts.Config)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := logging.NewLogger("main")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"mode":    cfg.Server.Mode,
		"backend": cfg.Store.Backend,
		"stream":  cfg.Stream.Enabled,
	}).Info("starting livescore")

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		var err error
		redisClient, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			return WrapExitError(ExitCommandError, "redis unavailable", err)
		}
		defer redisClient.Close()
		log.WithField("addr", cfg.Redis.URL).Info("connected to redis")
	}

	st, err := store.New(cfg.Store, redisClient)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	h := hub.NewHub()
	g, gctx := errgroup.WithContext(ctx)

	var handler *handlers.Handler
	if cfg.Server.Mode == config.ModeRelay {
		handler = handlers.NewHandler(gctx, store.NewView(st), nil, h)

		consumer := relay.NewStreamConsumer(redisClient, h, cfg.Stream)
		g.Go(func() error { return consumer.Start(gctx) })
	} else {
		publishers := []engine.Publisher{h}

		var mirror *publisher.StreamPublisher
		if cfg.Stream.Enabled {
			mirror = publisher.NewStreamPublisher(redisClient, cfg.Stream.Name)
			publishers = append(publishers, mirror)
		}

		eng := engine.New(st, publishers)
		eng.Load(ctx)

		if cfg.RosterFile != "" {
			if err := seedRoster(ctx, cfg.RosterFile, eng); err != nil {
				return WrapExitError(ExitCommandError, "failed to seed roster", err)
			}
		}

		handler = handlers.NewHandler(gctx, eng, eng, h)
		if mirror != nil {
			handler.RegisterMetrics("stream", mirror.Stats)
			g.Go(func() error { return mirror.Run(gctx) })
		}
	}

	g.Go(func() error {
		h.Run(gctx)
		return nil
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handlers.NewRouter(handler, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		log.WithField("addr", cfg.Server.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	log.Info("shutdown complete")
	return nil
}

func seedRoster(ctx context.Context, path string, eng *engine.Engine) error {
	seed, err := roster.Load(path)
	if err != nil {
		return err
	}
	_, err = seed.Apply(ctx, eng)
	return err
}
