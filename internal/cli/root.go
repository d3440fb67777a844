package cli

import (
	"context"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/config"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/logging"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the configuration loaded for every command.
type RootOptions struct {
	LogLevel  string
	LogFormat string

	Config *config.Config
}

// NewRootCommand creates the root command. Running it without a subcommand
// starts the server.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "livescore",
		Short: "Live cricket scoreboard server",
		Long: `Live cricket scoreboard: an admin API records matches ball by ball and
every change is pushed to viewers over server-sent events and WebSocket.

Configuration is read from the environment (and a .env file when present).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts.Config)
		},
	}

	// Global flags override LOG_LEVEL and LOG_FORMAT
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json)")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))

	return cmd
}

func loadConfig(opts *RootOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	logging.Configure(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	opts.Config = cfg
	return nil
}

// connectRedis opens and pings a Redis client
func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.URL, err)
	}
	return client, nil
}

// openStore opens the configured store for one-shot commands. The returned
// cleanup closes the store and any Redis client it needed.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	var redisClient *redis.Client
	if cfg.Store.Backend == config.BackendRedis {
		var err error
		redisClient, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open store", err)
		}
	}

	st, err := store.New(cfg.Store, redisClient)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	cleanup := func() {
		st.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}
	return st, cleanup, nil
}
