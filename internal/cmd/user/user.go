// Package user parses user command flags and composes the service entrypoint.
package user

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/dkapsis/pms/internal/platform/cmd"
	server "github.com/dkapsis/pms/internal/services/users/app"
)

// Config holds user command configuration.
type Config struct {
	HTTPAddr string `env:"PMS_USER_HTTP_ADDR" envDefault:":8081"`
	DBPath   string `env:"PMS_USER_DB_PATH"   envDefault:"user.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "user HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "user SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the user app and serves it until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceUser, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr: cfg.HTTPAddr,
			DBPath:   cfg.DBPath,
		}); err != nil {
			return fmt.Errorf("serve user: %w", err)
		}
		return nil
	})
}
