// Package task parses task command flags and composes the service entrypoint.
package task

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/dkapsis/pms/internal/platform/cmd"
	"github.com/dkapsis/pms/internal/platform/discovery"
	server "github.com/dkapsis/pms/internal/services/tasks/app"
)

// Config holds task command configuration.
type Config struct {
	HTTPAddr    string `env:"PMS_TASK_HTTP_ADDR"  envDefault:":8083"`
	DBPath      string `env:"PMS_TASK_DB_PATH"    envDefault:"task.db"`
	FilesDir    string `env:"PMS_TASK_FILES_DIR"  envDefault:"task-files"`
	UserBaseURL string `env:"PMS_USER_BASE_URL"`
	TeamBaseURL string `env:"PMS_TEAM_BASE_URL"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "task HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "task SQLite database path")
	fs.StringVar(&cfg.FilesDir, "files-dir", cfg.FilesDir, "attachment files directory")
	fs.StringVar(&cfg.UserBaseURL, "user-base-url", cfg.UserBaseURL, "user service base URL")
	fs.StringVar(&cfg.TeamBaseURL, "team-base-url", cfg.TeamBaseURL, "team service base URL")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.UserBaseURL = discovery.OrDefaultHTTPBaseURL(cfg.UserBaseURL, discovery.ServiceUser)
	cfg.TeamBaseURL = discovery.OrDefaultHTTPBaseURL(cfg.TeamBaseURL, discovery.ServiceTeam)
	return cfg, nil
}

// Run builds the task app and serves it until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTask, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:    cfg.HTTPAddr,
			DBPath:      cfg.DBPath,
			FilesDir:    cfg.FilesDir,
			UserBaseURL: cfg.UserBaseURL,
			TeamBaseURL: cfg.TeamBaseURL,
		}); err != nil {
			return fmt.Errorf("serve task: %w", err)
		}
		return nil
	})
}
