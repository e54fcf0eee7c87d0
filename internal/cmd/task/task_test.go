package task

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("task", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8083" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.UserBaseURL != "http://user:8081" {
		t.Fatalf("expected default user base URL, got %q", cfg.UserBaseURL)
	}
	if cfg.TeamBaseURL != "http://team:8082" {
		t.Fatalf("expected default team base URL, got %q", cfg.TeamBaseURL)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("PMS_TASK_HTTP_ADDR", "env-addr")
	t.Setenv("PMS_TASK_DB_PATH", "env-db")

	fs := flag.NewFlagSet("task", flag.ContinueOnError)
	args := []string{
		"-http-addr", "flag-addr",
		"-files-dir", "flag-files",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-addr" {
		t.Fatalf("expected flag to beat env, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "env-db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
	if cfg.FilesDir != "flag-files" {
		t.Fatalf("expected flag files dir, got %q", cfg.FilesDir)
	}
}
