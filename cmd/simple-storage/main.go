package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-storage/pkg/simplestorage/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Env holds process settings that sit outside the service configuration.
type Env struct {
	EnvPrefix       string        `env:"SIMPLE_STORAGE_ENV_PREFIX" env-default:""`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	LogFormat       string        `env:"LOG_FORMAT" env-default:"text"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if err := NewRootCommand().Execute(); err != nil {
		slog.Error("Command failed", "err", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	env := &Env{}

	rootCmd := &cobra.Command{
		Use:   "simple-storage",
		Short: "Tenant-scoped attachment and temporary file storage",
		Long: `Simple Storage keeps file metadata and blob content consistent.

The serve command runs the expiry cleanup scheduler together with health,
readiness and metrics endpoints. Configuration is read from the environment
(and a .env file in the working directory when present).`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cleanenv.ReadEnv(env); err != nil {
				return fmt.Errorf("failed to read environment: %w", err)
			}
			logger, err := newLogger(env.LogLevel, env.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.AddCommand(NewServeCommand(env))
	rootCmd.AddCommand(NewCleanupCommand(env))
	rootCmd.AddCommand(NewMigrateCommand(env))

	return rootCmd
}

func loadConfig(env *Env, opts ...config.Option) (*config.ServerConfig, error) {
	opts = append([]config.Option{config.WithEnv(env.EnvPrefix)}, opts...)
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: use text or json", format)
	}
}
