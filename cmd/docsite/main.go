package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/dgallion1/docsite/internal/api"
	"github.com/dgallion1/docsite/internal/config"
	"github.com/dgallion1/docsite/internal/highlight"
	"github.com/dgallion1/docsite/internal/pipeline"
	"github.com/dgallion1/docsite/internal/query"
	"github.com/dgallion1/docsite/internal/watch"
)

type options struct {
	watch     bool
	serve     bool
	noAnchors bool
	verbose   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run builds the site once, or keeps rebuilding it with --watch/--serve.
// The exit code is 1 when a one-shot build reports any problem.
func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	opts, err := parseFlags(args, &cfg, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: level}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hl := highlight.New(cfg.HighlightStyle)
	exec := query.NewService(query.Config{
		SrcDir:      cfg.SrcDir,
		ModelsDir:   cfg.ModelsDir,
		DataFile:    cfg.QueryDataFile,
		RowLimit:    cfg.QueryRowLimit,
		Timeout:     cfg.QueryTimeout,
		BusyTimeout: cfg.QueryBusyTimeout,
	}, hl, log)
	defer exec.Close()

	b := pipeline.NewBuilder(cfg, exec, hl, log)
	b.Start(ctx)
	defer b.Stop()

	report, err := b.Build(ctx)
	if err != nil {
		log.Error("build failed", "error", err)
		return 1
	}
	report.Print(stderr)

	if !opts.watch && !opts.serve {
		if !report.OK() {
			log.Error("build has errors", "errors", len(report.Errors), "failed", len(report.Failed))
			return 1
		}
		return 0
	}

	watcher := watch.New(b, watch.Paths{
		SrcDir:     cfg.SrcDir,
		ModelsDir:  cfg.ModelsDir,
		LayoutsDir: cfg.LayoutsDir,
		SiteFiles:  []string{cfg.ContentsFile, cfg.BlogFile},
	}, watch.Options{Debounce: cfg.WatchDebounce, Logger: log})

	watchErr := make(chan error, 1)
	go func() { watchErr <- watcher.Run(ctx) }()

	var httpServer *http.Server
	if opts.serve {
		httpServer = &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      api.NewServer(b, watcher, log, cfg),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info("serving docs", "port", cfg.Port, "base_url", cfg.BaseURL)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("server error", "error", err)
				cancel()
			}
		}()
	}

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	case err := <-watchErr:
		if err != nil {
			log.Error("watch failed", "error", err)
		}
	}
	log.Info("shutting down...")
	cancel()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}
	return 0
}

// parseFlags applies command line overrides on top of the environment.
func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("docsite", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVarP(&opts.watch, "watch", "w", false, "Rebuild when sources change")
	fs.BoolVarP(&opts.serve, "serve", "s", false, "Serve the built site and rebuild on change")
	fs.BoolVar(&opts.noAnchors, "no-anchors", false, "Skip validation of #anchor links")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug messages")
	fs.StringVar(&cfg.SrcDir, "src", cfg.SrcDir, "Source directory")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory")
	fs.StringVar(&cfg.ModelsDir, "models", cfg.ModelsDir, "Directory of shared model files")
	fs.StringVar(&cfg.LayoutsDir, "layouts", cfg.LayoutsDir, "Directory of page layouts")
	fs.StringVar(&cfg.ContentsFile, "contents", cfg.ContentsFile, "Table of contents file")
	fs.StringVar(&cfg.BlogFile, "blog", cfg.BlogFile, "Blog registry file")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "URL prefix of the published site")
	fs.StringVarP(&cfg.Port, "port", "p", cfg.Port, "Port of the development server")
	fs.IntVar(&cfg.WorkerCount, "workers", cfg.WorkerCount, "Documents built in parallel")
	fs.StringSliceVar(&cfg.AbsoluteLinkAllowList, "allow-absolute", cfg.AbsoluteLinkAllowList, "Site-rooted link prefixes accepted without checking")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.noAnchors {
		cfg.ValidateAnchors = false
	}
	if cfg.WorkerCount <= 0 {
		return opts, fmt.Errorf("--workers must be positive")
	}
	return opts, nil
}
