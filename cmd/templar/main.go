package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/amenyxia/templar/pkg/store"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `templar %s (%s, %s)

Usage: templar [flags] <command>

Commands:
  generate   render all templates against the data file
  check      compile all templates and report diagnostics

Flags:
`, Version, Commit, BuildDate)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "./templar.json", "path to the config file")
	flag.Usage = usage
	flag.Parse()

	config, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var logLevel slog.Level
	switch strings.ToLower(config.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch flag.Arg(0) {
	case "generate":
		err = withStore(config, logger, func(st *store.Store) error {
			return runGenerate(ctx, config, logger, st)
		})
	case "check":
		err = runCheck(config, logger)
	case "":
		usage()
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("Command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

// withStore opens the cache database, runs fn against a ready Store, and
// tears everything down afterwards.
func withStore(config *Config, logger *slog.Logger, fn func(*store.Store) error) error {
	db, err := initDB(config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	if err = store.SetupSchema(db); err != nil {
		return fmt.Errorf("failed to setup store schema: %w", err)
	}

	st, err := store.New(db)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()
	st.SetLogger(logger)

	return fn(st)
}
