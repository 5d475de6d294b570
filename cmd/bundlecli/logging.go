package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/term"
)

func setupLogging(level string) {
	useColor := term.IsTerminal(int(os.Stderr.Fd()))
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, parseLevel(level), useColor)))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	case "crit":
		return log.LevelCrit
	}
	return log.LevelInfo
}
