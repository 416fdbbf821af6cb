// Command docgraph runs the pipeline over a directory of block files and
// checks stored QA and KG sidecars.
//
//	docgraph run   -in outputs/blocks -pdf-dir inputs [-workers 2] [-force]
//	docgraph check [-min-match-rate 0.98] [doc_id ...]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/docgraph/internal/app"
	"github.com/dgallion1/docgraph/internal/config"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: docgraph <run|check> [flags]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML config file")
	verbose := fs.Bool("v", false, "debug logging")

	var run func(context.Context, *app.App, config.Config, *slog.Logger) error
	switch cmd {
	case "run":
		opts := &batchOptions{}
		fs.StringVar(&opts.inDir, "in", "outputs/blocks", "directory of input block files")
		fs.StringVar(&opts.pdfDir, "pdf-dir", "inputs", "directory holding {stem}.pdf sources")
		fs.IntVar(&opts.workers, "workers", 2, "documents processed in parallel")
		fs.BoolVar(&opts.force, "force", false, "reprocess documents already in the catalog")
		run = opts.run
	case "check":
		opts := &checkOptions{}
		fs.Float64Var(&opts.minMatchRate, "min-match-rate", 0, "minimum source_match_rate (default from config)")
		run = func(ctx context.Context, a *app.App, cfg config.Config, log *slog.Logger) error {
			opts.docIDs = fs.Args()
			return opts.run(ctx, a, cfg, log)
		}
	default:
		usage()
	}
	fs.Parse(args)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.LoadAuto(*configPath)
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	err = run(ctx, a, cfg, log)
	if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
		log.Warn("close clients", "error", cerr)
	}
	if err != nil {
		log.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}
