// Package team parses team command flags and composes the service entrypoint.
package team

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/dkapsis/pms/internal/platform/cmd"
	server "github.com/dkapsis/pms/internal/services/teams/app"
)

// Config holds team command configuration.
type Config struct {
	HTTPAddr string `env:"PMS_TEAM_HTTP_ADDR" envDefault:":8082"`
	DBPath   string `env:"PMS_TEAM_DB_PATH"   envDefault:"team.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "team HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "team SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the team app and serves it until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTeam, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr: cfg.HTTPAddr,
			DBPath:   cfg.DBPath,
		}); err != nil {
			return fmt.Errorf("serve team: %w", err)
		}
		return nil
	})
}
