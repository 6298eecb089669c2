package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/scorekeeper/cmd/scorekeeper/commands"
)

// Build metadata, stamped with -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	commands.SetupLogging(os.Stderr, os.Getenv(commands.LogLevelEnv))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx, version, commit, buildDate)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("scorekeeper failed")
		os.Exit(1)
	}
}
