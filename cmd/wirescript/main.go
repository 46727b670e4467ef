package main

import (
	"os"

	"github.com/danmuck/wirescript/internal/observability"
)

func main() {
	logger := observability.InitLogger("wirescript")
	if err := newRootCmd().Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
