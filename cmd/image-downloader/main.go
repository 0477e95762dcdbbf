package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/vertextoedge/image-downloader/internal/adapter/filesystem"
	"github.com/vertextoedge/image-downloader/internal/adapter/httpfetch"
	"github.com/vertextoedge/image-downloader/internal/adapter/sqlite"
	"github.com/vertextoedge/image-downloader/internal/config"
	"github.com/vertextoedge/image-downloader/internal/domain"
	"github.com/vertextoedge/image-downloader/internal/domain/event"
	"github.com/vertextoedge/image-downloader/internal/logger"
	"github.com/vertextoedge/image-downloader/internal/service/batch"
	"github.com/vertextoedge/image-downloader/internal/service/saver"
	"github.com/vertextoedge/image-downloader/internal/service/selector"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one download run and returns the process exit code
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("image-downloader", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: image-downloader <path> [flags]\n\n")
		flags.PrintDefaults()
	}
	verbose := flags.BoolP("verbose", "v", false, "Log every saved image and created directory")
	configPath := flags.StringP("config", "c", "", "Path to configuration file")
	flags.IntP("workers", "w", 8, "Number of concurrent downloads (1-64)")
	flags.StringP("output", "o", "", "Output root directory")
	flags.BoolP("yes", "y", false, "Download every URL list without prompting")
	flags.Bool("history", false, "Record the run in the history database")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	root, err := rootArg(flags)
	if errors.Is(err, domain.ErrNoPath) {
		fmt.Fprintln(stdout, "No PATH provided!")
		return 0
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	if err := logger.InitWriter(cfg.Logging.LogLevel(), cfg.Logging.Format, stderr); err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Debug("starting image-downloader",
		zap.String("version", version),
		zap.String("path", root),
		zap.String("output", cfg.Output.RootDir),
		zap.Int("workers", cfg.Download.Workers),
	)

	lists, err := batch.Discover(root)
	if err != nil {
		zapLogger.Error("failed to read path", zap.Error(err))
		return 1
	}
	if len(lists) == 0 {
		zapLogger.Info("no url lists found", zap.String("path", root))
		return 0
	}

	sel := selector.New(stdin, stdout, selector.Options{
		AssumeYes: cfg.Prompt.AssumeYes,
		Echo:      !isTerminal(stdin),
	})
	selected, err := sel.Select(lists)
	if err != nil {
		if errors.Is(err, domain.ErrNoInput) {
			zapLogger.Error("no answer on standard input")
		} else {
			zapLogger.Error("file selection failed", zap.Error(err))
		}
		return 1
	}

	dispatcher := event.NewInMemoryDispatcher()
	dispatcher.Subscribe(event.NewLoggingHandler(zapLogger, *verbose))

	fsManager := filesystem.NewManager(cfg.Output.RootDir)

	if cfg.History.Enabled {
		// The default history database lives in the output root
		created, err := fsManager.EnsureDir(fsManager.RootDir())
		if err != nil {
			zapLogger.Error("failed to create output root", zap.Error(err))
			return 1
		}
		if created {
			if err := dispatcher.Dispatch(event.NewOutputDirCreated(fsManager.RootDir())); err != nil {
				zapLogger.Warn("event handler failed", zap.Error(err))
			}
		}

		store, err := sqlite.Open(cfg.History.Path)
		if err != nil {
			zapLogger.Error("failed to open history database",
				zap.String("path", cfg.History.Path),
				zap.Error(err))
			return 1
		}
		defer store.Close()
		dispatcher.Subscribe(event.NewHistoryHandler(store))
	}

	blacklist := domain.NewBlacklist(cfg.Download.Blacklist...)
	zapLogger.Debug("blacklist loaded", zap.Int("entries", blacklist.Len()))

	fetcher := httpfetch.New(&httpfetch.Config{
		Timeout:         cfg.Download.GetTimeout(),
		UserAgent:       cfg.Download.UserAgent,
		MaxBytes:        cfg.Download.MaxBytes,
		MaxConnsPerHost: cfg.Download.Workers,
	}, blacklist)

	imageSaver := saver.New(&saver.Config{
		JPEGQuality: cfg.Output.JPEGQuality,
	}, fsManager, dispatcher, logger.Named("saver"))

	orchestrator := batch.New(&batch.Config{
		Workers:          cfg.Download.Workers,
		TempFileMaxAge:   cfg.Output.GetTempMaxAge(),
		ProgressInterval: batch.DefaultConfig().ProgressInterval,
	}, fetcher, imageSaver, fsManager, dispatcher, logger.Named("batch"))

	stats, err := orchestrator.Run(ctx, root, selected)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			zapLogger.Warn("interrupted, partial results kept",
				zap.Int("saved", stats.Saved),
				zap.Int("total", stats.Total))
			return 130
		}
		zapLogger.Error("run failed", zap.Error(err))
		return 1
	}

	return 0
}

func rootArg(flags *pflag.FlagSet) (string, error) {
	if flags.NArg() == 0 || flags.Arg(0) == "" {
		return "", domain.ErrNoPath
	}
	return flags.Arg(0), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
