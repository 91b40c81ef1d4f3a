package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/txn-engine/internal/config"
	"github.com/example/txn-engine/internal/engine"
	"github.com/example/txn-engine/internal/telemetry"
	"github.com/example/txn-engine/pkg/audit"
)

const usage = `usage: engine [flags] <transactions-file>

Reads transactions from the file, writes one account snapshot per client to
stdout and lists skipped transactions on stderr.

Settings come from the environment (APP_ENV, ENGINE_*, DATABASE_URL,
OTEL_EXPORTER_OTLP_ENDPOINT) or the YAML file named by ENGINE_CONFIG.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("engine", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	workers := fs.Int("workers", 0, "number of client shards (overrides ENGINE_WORKERS)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}
	if *workers > 0 {
		cfg.Workers = *workers
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(stderr, "configuration error: %v\n", err)
			return 1
		}
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := process(ctx, cfg, fs.Arg(0), stdout, stderr, logger); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func process(ctx context.Context, cfg *config.Config, path string, stdout, stderr io.Writer, logger *slog.Logger) error {
	runID := uuid.New()

	importer, closeInput, err := openImporter(cfg.InputFormat, path)
	if err != nil {
		return err
	}
	defer closeInput()

	sinks, err := openSinks(ctx, cfg, runID, stdout, logger)
	if err != nil {
		return err
	}
	defer sinks.close()

	mp, shutdownMetrics, err := telemetry.Init(ctx, cfg.OTLPEndpoint, "")
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := shutdownMetrics(shutdownCtx); serr != nil {
			logger.Warn("failed to flush metrics", "error", serr)
		}
	}()

	recorder, err := telemetry.NewRecorder(mp)
	if err != nil {
		return err
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithDiagnostics(stderr),
		engine.WithRecorder(recorder),
		engine.WithWorkers(cfg.Workers),
		engine.WithRunID(runID),
	}

	var auditor *audit.TransactionAuditor
	if cfg.Audit {
		var auditSink io.Writer
		if cfg.AuditPath != "" {
			file, ferr := os.OpenFile(cfg.AuditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if ferr != nil {
				return fmt.Errorf("open audit log: %w", ferr)
			}
			defer file.Close()
			auditSink = file
		}
		auditor = audit.NewTransactionAuditor(audit.NewChainLogger(), auditSink)
		opts = append(opts, engine.WithAuditor(auditor))
	}

	_, runErr := engine.New(importer, sinks.exporter, opts...).Run(ctx)

	if auditor != nil {
		// entries of a failed run are still flushed
		if err := auditor.Close(); err != nil && runErr == nil {
			return err
		}
		head, n := auditor.Head()
		logger.Info("audit chain closed", "run_id", runID.String(), "head", head, "entries", n)
	}
	return runErr
}
