package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "techcert",
		Short: "Technician certification exam server",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), traineeCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `techcert --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addStoreFlags registers the flags every command needs to reach the store.
func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "techcert.db", "SQLite database path")
	f.String("app-id", "default-app-id", "Namespace for the trainee and result collections")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

// setupLogging installs the default slog logger. An unknown level means info.
func setupLogging(v *viper.Viper) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(v.GetString("log-format"), "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// configDirs are searched in order for techcert.{yaml,toml,json}.
var configDirs = []string{".", "$HOME/.config/techcert", "/etc/techcert", "/data"}

// loadConfig layers flags over TECHCERT_* variables over the config file.
func loadConfig(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		slog.Warn("failed to bind flags", "command", cmd.Name(), "error", err)
	}
	v.SetEnvPrefix("TECHCERT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("techcert")
	for _, dir := range configDirs {
		v.AddConfigPath(dir)
	}
	var notFound viper.ConfigFileNotFoundError
	switch err := v.ReadInConfig(); {
	case err == nil:
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	case !errors.As(err, &notFound):
		slog.Warn("ignoring unreadable config file", "error", err)
	}
	return v
}
