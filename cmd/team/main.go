// Package main starts the team service and handles termination.
//
// The process owns teams and memberships and serves as the team directory
// for the task service, including leader resolution.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	teamcmd "github.com/dkapsis/pms/internal/cmd/team"
)

func main() {
	cfg, err := teamcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[TEAM] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := teamcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
