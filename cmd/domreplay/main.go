// CLAUDE:SUMMARY CLI entry point for domreplay: record an HTML file or a live URL, list and export stored sessions.
// Command domreplay records documents into session-replay streams.
//
// Usage:
//
//	domreplay -html page.html                  # record a static file (stdout sink)
//	domreplay -url https://example.com         # record a live page until interrupted
//	domreplay -config domreplay.yaml           # record the pages of a YAML config
//	domreplay -db replay.db -sessions          # list stored sessions
//	domreplay -db replay.db -export <session>  # print a stored session as JSON lines
//
// -db adds a SQLite sink to any recording; -replica prints the tree a player
// would rebuild from the recorded (or exported) stream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/hazyhaar/domreplay"
	"github.com/hazyhaar/domreplay/internal/idgen"
)

func main() {
	configPath := flag.String("config", "", "path to domreplay.yaml config file")
	htmlPath := flag.String("html", "", "record a static HTML file and exit")
	singleURL := flag.String("url", "", "record a single live URL")
	dbPath := flag.String("db", "", "SQLite session store (adds a sqlite sink when recording)")
	exportID := flag.String("export", "", "print the batches of a stored session and exit (needs -db)")
	listSessions := flag.Bool("sessions", false, "list stored sessions and exit (needs -db)")
	printReplica := flag.Bool("replica", false, "print the replayed tree when done")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		configPath: *configPath,
		htmlPath:   *htmlPath,
		url:        *singleURL,
		db:         *dbPath,
		export:     *exportID,
		sessions:   *listSessions,
		replica:    *printReplica,
	}
	if err := run(ctx, logger, opts); err != nil {
		logger.Error("domreplay: fatal", "error", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	htmlPath   string
	url        string
	db         string
	export     string
	sessions   bool
	replica    bool
}

var pageIDs = idgen.Prefixed("page-", idgen.Default)

var errUsage = errors.New("usage: domreplay -html <file> | -url <url> | -config <file> | -db <file> -sessions | -db <file> -export <session>")

func run(ctx context.Context, logger *slog.Logger, o options) error {
	switch {
	case o.sessions || o.export != "":
		if o.db == "" {
			return errUsage
		}
		return runStore(ctx, logger, o)
	case o.htmlPath != "":
		return runHTML(ctx, logger, o)
	case o.url != "" || o.configPath != "":
		return runLive(ctx, logger, o)
	}
	fmt.Fprintln(os.Stderr, errUsage)
	os.Exit(2)
	return nil
}

func loadConfig(o options) (*domreplay.Config, error) {
	if o.configPath == "" {
		return domreplay.DefaultConfig(), nil
	}
	cfg, err := domreplay.LoadConfigFile(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openSinks opens the configured sinks plus the -db store and -replica.
func openSinks(cfg *domreplay.Config, o options, logger *slog.Logger) (*domreplay.Outputs, error) {
	specs := cfg.Sinks
	if o.db != "" {
		specs = append(specs, domreplay.SinkConfig{Type: "sqlite", Path: o.db})
	}
	if o.replica {
		specs = append(specs, domreplay.SinkConfig{Type: "replica"})
	}
	return domreplay.OpenSinks(specs, os.Stdout, logger)
}

func runHTML(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(o.htmlPath)
	if err != nil {
		return fmt.Errorf("read html: %w", err)
	}
	abs, err := filepath.Abs(o.htmlPath)
	if err != nil {
		return err
	}
	out, err := openSinks(cfg, o, logger)
	if err != nil {
		return err
	}
	defer out.Sink.Close()

	id, err := domreplay.RecordHTML(ctx, string(src), "file://"+abs, cfg.Scope(), out.Sink, domreplay.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.Info("domreplay: recorded file", "path", abs, "session", id)
	return printReplica(out.Replica)
}

func runLive(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	if o.url != "" {
		cfg.Pages = []domreplay.PageConfig{{ID: pageIDs(), URL: o.url}}
	}
	if len(cfg.Pages) == 0 {
		return fmt.Errorf("config %s: no pages", o.configPath)
	}
	out, err := openSinks(cfg, o, logger)
	if err != nil {
		return err
	}
	defer out.Sink.Close()

	var wg sync.WaitGroup
	errs := make([]error, len(cfg.Pages))
	for i, page := range cfg.Pages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := domreplay.RecordPage(ctx, cfg, page, out.Sink, logger); err != nil {
				logger.Error("domreplay: record page", "page", page.ID, "url", page.URL, "error", err)
				errs[i] = err
			}
		}()
	}
	wg.Wait()

	if err := printReplica(out.Replica); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func runStore(ctx context.Context, logger *slog.Logger, o options) error {
	store, err := domreplay.OpenStore(o.db, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	enc := json.NewEncoder(os.Stdout)
	if o.sessions {
		sessions, err := store.Sessions(ctx)
		if err != nil {
			return err
		}
		for _, s := range sessions {
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
		return nil
	}

	batches, err := store.Batches(ctx, o.export)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		return fmt.Errorf("session %s: not found", o.export)
	}
	var replica *domreplay.Replica
	if o.replica {
		replica = domreplay.NewReplica()
	}
	for _, b := range batches {
		if err := enc.Encode(b); err != nil {
			return err
		}
		if replica != nil {
			if err := replica.Send(ctx, b); err != nil {
				return fmt.Errorf("replay: %w", err)
			}
		}
	}
	return printReplica(replica)
}

// printReplica writes the replayed tree to stderr, keeping stdout for
// JSON lines.
func printReplica(r *domreplay.Replica) error {
	if r == nil {
		return nil
	}
	enc := json.NewEncoder(os.Stderr)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Session string `json:"session"`
		Applied int    `json:"applied"`
		Meta    any    `json:"meta"`
		Tree    any    `json:"tree"`
	}{r.SessionID(), r.Applied(), r.Meta(), r.Snapshot()})
}
