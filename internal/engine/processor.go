// Package engine drives transactions from an Importer through the client
// ledger and writes the resulting account snapshots to an Exporter.
//
// Transactions that break a business rule are collected and reported after
// the input is consumed; they never stop the run. Import, export and
// cancellation failures are fatal.
package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/example/txn-engine/internal/ledger"
	"github.com/example/txn-engine/internal/model"
)

// Recorder receives per-transaction and per-run counts.
type Recorder interface {
	TransactionProcessed(ctx context.Context, t model.TransactionType, outcome model.Outcome)
	ClientsExported(ctx context.Context, n int)
}

// Auditor receives the pass/fail outcome of every transaction. It must be safe
// for concurrent use when the processor runs with more than one worker.
type Auditor interface {
	Audit(runID uuid.UUID, tx model.Transaction, outcome model.Outcome, cause error)
}

type nopRecorder struct{}

func (nopRecorder) TransactionProcessed(context.Context, model.TransactionType, model.Outcome) {}
func (nopRecorder) ClientsExported(context.Context, int)                                    {}

type nopAuditor struct{}

func (nopAuditor) Audit(uuid.UUID, model.Transaction, model.Outcome, error) {}

// Report summarises a run.
type Report struct {
	RunID   uuid.UUID
	Records int
	Clients int
	// Errors holds the skipped transactions in input order.
	Errors []*ProcessingError
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithDiagnostics sets where skipped transactions are listed, one per line.
// Defaults to os.Stderr.
func WithDiagnostics(w io.Writer) Option {
	return func(p *Processor) { p.diagnostics = w }
}

func WithRecorder(r Recorder) Option {
	return func(p *Processor) { p.recorder = r }
}

func WithAuditor(a Auditor) Option {
	return func(p *Processor) { p.auditor = a }
}

// WithWorkers partitions clients across n shards. Values below 2 keep the
// sequential path.
func WithWorkers(n int) Option {
	return func(p *Processor) { p.workers = n }
}

// WithRunID overrides the generated run id.
func WithRunID(id uuid.UUID) Option {
	return func(p *Processor) { p.runID = id }
}

// Processor is single use: create one per input.
type Processor struct {
	importer    Importer
	exporter    Exporter
	logger      *slog.Logger
	diagnostics io.Writer
	recorder    Recorder
	auditor     Auditor
	workers     int
	runID       uuid.UUID
}

// New creates a processor reading from importer and writing to exporter.
func New(importer Importer, exporter Exporter, opts ...Option) *Processor {
	p := &Processor{
		importer:    importer,
		exporter:    exporter,
		logger:      slog.Default(),
		diagnostics: os.Stderr,
		recorder:    nopRecorder{},
		auditor:     nopAuditor{},
		workers:     1,
		runID:       uuid.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes the whole input, reports skipped transactions and exports one
// snapshot per client. The returned error, if any, is a fatal *ProcessingError;
// the report is still returned with whatever was counted before the failure.
func (p *Processor) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	logger := p.logger.With("run_id", p.runID.String())
	logger.Info("processing started", "workers", p.workers)

	var (
		report *Report
		err    error
	)
	if p.workers > 1 {
		report, err = p.runSharded(ctx)
	} else {
		report, err = p.runSequential(ctx)
	}
	if err != nil {
		logger.Error("processing aborted", "error", err, "records", report.Records)
		return report, err
	}

	logger.Info("processing finished",
		"records", report.Records,
		"clients", report.Clients,
		"errors", len(report.Errors),
		"duration", time.Since(start),
	)
	return report, nil
}

func (p *Processor) runSequential(ctx context.Context) (*Report, error) {
	report := &Report{RunID: p.runID}
	led := ledger.New()

	for {
		if err := ctx.Err(); err != nil {
			return report, &ProcessingError{Kind: KindCanceled, Err: err}
		}

		tx, err := p.importer.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, &ProcessingError{Kind: KindImport, Err: err}
		}
		report.Records++

		// created before dispatch so rejected clients are still exported
		entry := led.GetOrCreate(tx.ClientID)
		outcome, perr := apply(entry, tx)
		p.observe(ctx, tx, outcome, perr)
		if perr != nil {
			report.Errors = append(report.Errors, perr)
		}
	}

	p.validate(led)
	p.writeDiagnostics(report.Errors)

	snapshots := led.Snapshots()
	report.Clients = len(snapshots)
	if err := p.export(ctx, snapshots); err != nil {
		return report, err
	}
	return report, nil
}

func (p *Processor) observe(ctx context.Context, tx model.Transaction, outcome model.Outcome, perr *ProcessingError) {
	p.recorder.TransactionProcessed(ctx, tx.Type, outcome)
	var cause error
	if perr != nil {
		cause = perr
	}
	p.auditor.Audit(p.runID, tx, outcome, cause)
}

// validate logs any ledger invariant that no longer holds. Findings are
// warnings only and never change the exported state.
func (p *Processor) validate(led *ledger.Ledger) {
	for _, result := range ledger.NewValidator(led).ComprehensiveValidation() {
		p.logger.Warn("ledger validation failed",
			"run_id", p.runID.String(),
			"client", result.ClientID,
			"check", result.ValidationType,
			"message", result.Message,
		)
	}
}

func (p *Processor) writeDiagnostics(errs []*ProcessingError) {
	if len(errs) == 0 {
		return
	}

	w := bufio.NewWriter(p.diagnostics)
	for _, perr := range errs {
		if _, err := w.WriteString(perr.Error() + "\n"); err != nil {
			break
		}
	}
	if err := w.Flush(); err != nil {
		p.logger.Warn("failed to write diagnostics", "error", err)
	}
}

func (p *Processor) export(ctx context.Context, snapshots []model.Snapshot) error {
	for _, snapshot := range snapshots {
		if err := p.exporter.Export(ctx, snapshot); err != nil {
			return &ProcessingError{Kind: KindExport, ClientID: snapshot.ClientID, Err: err}
		}
	}
	if err := p.exporter.Flush(ctx); err != nil {
		return &ProcessingError{Kind: KindExport, Err: err}
	}

	p.recorder.ClientsExported(ctx, len(snapshots))
	return nil
}
