package main

import (
	"os"

	"waterfall-mcp/internal/config"
	"waterfall-mcp/internal/logging"
	"waterfall-mcp/internal/mcpserver"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fallback := logging.New(logging.DefaultConfig())
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// stdout carries the MCP protocol.
	cfg.Log.Output = os.Stderr
	logger := logging.NewWithComponent(cfg.Log, "mcp")

	if err := mcpserver.New(cfg, logger).ServeStdio(); err != nil {
		logger.Fatal().Err(err).Msg("Server error")
	}
}
