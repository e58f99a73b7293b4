package main

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logDir      = "logs"
	logFileName = "csf-player.log"
	maxLogSize  = 10 * 1024 * 1024 // bytes, lumberjack rotates past this
	maxLogFiles = 3

	logLevelEnv = "CSF_LOG_LEVEL"
)

// levelOff is above every level slog emits
const levelOff = slog.Level(100)

// setupLogging routes slog to a rotating file under logs/ when debug is set
// The terminal owns stdout/stderr during playback, so logging is discarded otherwise
func setupLogging(debug bool, level string) io.Closer {
	if !debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: levelOff})))
		log.SetOutput(io.Discard)
		return nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: levelOff})))
		return nil
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, logFileName),
		MaxSize:    maxLogSize / (1024 * 1024),
		MaxBackups: maxLogFiles,
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
	logger = logger.With(slog.Int("pid", os.Getpid()))
	slog.SetDefault(logger)

	return w
}

// resolveLevel prefers the flag value, then the environment, then debug
func resolveLevel(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		return v
	}
	return "debug"
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
