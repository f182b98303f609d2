// Package main is the entry point for the bisondb command-line tool, a
// thin wrapper over internal/engine for scripting and ad-hoc inspection
// of a database directory from the shell.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/bisondb/bison/internal/config"
	"github.com/bisondb/bison/internal/engine"
	"github.com/bisondb/bison/internal/logging"
)

const version = "0.1.0"

// cli exposes the internal/engine operations as one subcommand each (all
// but ClearCache, which has no subcommand), reading its target directory
// and logging preferences from a config file plus flag overrides.
//
//nolint:lll // for readability
var cli struct {
	Config string `default:""                                                   help:"Path to a YAML config file."`
	Root   string `help:"Database directory (overrides the config file's root)."`

	LogLevel string `name:"log-level"  default:""        help:"Log level: 'debug', 'info', 'warn', 'error'."`
	LogFmt   string `name:"log-format" default:"console" help:"Log format: 'console', 'text', 'json'."      enum:"console,text,json"`

	Version bool `default:"false" help:"Print version to stdout and exit."`

	Collections collectionsCmd `cmd:"" help:"List collection names."`
	CreateColl  createCollCmd  `cmd:"" name:"create-collection" help:"Create an empty collection."`
	DropColl    dropCollCmd    `cmd:"" name:"drop-collection"   help:"Drop a collection and its file."`
	DropAll     dropAllCmd     `cmd:"" name:"drop-all"          help:"Drop every collection."`
	Insert      insertCmd      `cmd:"" help:"Insert one document given as a JSON object."`
	InsertFile  insertFileCmd  `cmd:"" name:"insert-file"       help:"Insert every document from a JSON array file."`
	Find        findCmd        `cmd:"" help:"Find documents matching an optional JSON filter."`
	Update      updateCmd      `cmd:"" help:"Apply a JSON update expression to matching documents."`
	Write       writeCmd       `cmd:"" help:"Flush one collection to disk."`
	WriteAll    writeAllCmd    `cmd:"" name:"write-all"         help:"Flush every dirty collection to disk."`
	RecentLogs  recentLogsCmd  `cmd:"" name:"recent-logs"       help:"Print the most recently retained log records."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("bisondb"),
		kong.Description("Embedded JSON document database CLI."),
		kong.UsageOnError(),
	)

	if cli.Version {
		fmt.Fprintln(os.Stdout, "bisondb", version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		slog.Default().Error("failed to load configuration", logging.Error(err))
		os.Exit(1)
	}

	logger := setupLogger(cfg)

	setGOMAXPROCS(logger)

	e, err := engine.Open(cfg.Root, cfg.SourceDocument, engine.WithLogger(logger), engine.WithCacheEnabled(cfg.CacheEnabled))
	if err != nil {
		logger.Error("failed to open database", logging.Error(err))
		os.Exit(1)
	}
	defer e.Close()

	background := context.Background()

	if err := ctx.Run(&runContext{engine: e, cfg: cfg, log: logger, ctx: background}); err != nil {
		logger.Error("command failed", logging.Error(err))
		os.Exit(1)
	}
}

// runContext is threaded into every subcommand's Run method by kong's
// bindings.
type runContext struct {
	engine *engine.Engine
	cfg    config.Config
	log    *slog.Logger
	ctx    context.Context
}

func loadConfig() (config.Config, error) {
	cfg := config.Defaults()

	if cli.Config != "" {
		loaded, err := config.Load(cli.Config)
		if err != nil {
			return config.Config{}, err
		}

		cfg = loaded
	}

	if cli.Root != "" {
		cfg.Root = cli.Root
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

func setupLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo

	levelName := cfg.LogLevel
	if cli.LogLevel != "" {
		levelName = cli.LogLevel
	}

	if levelName != "" {
		_ = level.UnmarshalText([]byte(levelName))
	}

	h := logging.NewHandler(os.Stderr, &logging.NewHandlerOpts{
		Base:              cli.LogFmt,
		Level:             level,
		RecentEntriesSize: cfg.RecentLogEntries,
	})

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}
