package engine

import (
	"context"
	"errors"
	"io"
	"sort"

	"github.com/sourcegraph/conc"

	"github.com/example/txn-engine/internal/ledger"
	"github.com/example/txn-engine/internal/model"
)

const shardBuffer = 256

type sequenced struct {
	seq int
	tx  model.Transaction
}

// shard owns a private ledger for the clients routed to it. Only its own
// goroutine touches the ledger until the run's WaitGroup has returned.
type shard struct {
	in     chan sequenced
	ledger *ledger.Ledger
	errs   []*ProcessingError
}

func (p *Processor) runShard(ctx context.Context, s *shard) {
	for item := range s.in {
		entry := s.ledger.GetOrCreate(item.tx.ClientID)
		outcome, perr := apply(entry, item.tx)
		p.observe(ctx, item.tx, outcome, perr)
		if perr != nil {
			perr.seq = item.seq
			s.errs = append(s.errs, perr)
		}
	}
}

// runSharded routes each client to shard client%n. Per-client order is kept
// because a client always lands on the same shard and each shard consumes its
// queue in order.
func (p *Processor) runSharded(ctx context.Context) (*Report, error) {
	report := &Report{RunID: p.runID}

	shards := make([]*shard, p.workers)
	for i := range shards {
		shards[i] = &shard{
			in:     make(chan sequenced, shardBuffer),
			ledger: ledger.New(),
		}
	}

	var wg conc.WaitGroup
	for _, s := range shards {
		wg.Go(func() { p.runShard(ctx, s) })
	}

	seen := make(map[model.ClientID]struct{})
	var order []model.ClientID

	readErr := p.dispatch(ctx, shards, seen, &order, report)
	for _, s := range shards {
		close(s.in)
	}
	wg.Wait()
	if readErr != nil {
		return report, readErr
	}

	var errs []*ProcessingError
	for _, s := range shards {
		p.validate(s.ledger)
		errs = append(errs, s.errs...)
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].seq < errs[j].seq })
	report.Errors = errs
	p.writeDiagnostics(report.Errors)

	snapshots := make([]model.Snapshot, 0, len(order))
	for _, id := range order {
		entry, ok := shards[int(id)%len(shards)].ledger.Get(id)
		if !ok {
			continue
		}
		snapshots = append(snapshots, entry.State.Snapshot())
	}
	report.Clients = len(snapshots)
	if err := p.export(ctx, snapshots); err != nil {
		return report, err
	}
	return report, nil
}

func (p *Processor) dispatch(ctx context.Context, shards []*shard, seen map[model.ClientID]struct{}, order *[]model.ClientID, report *Report) error {
	for seq := 0; ; seq++ {
		if err := ctx.Err(); err != nil {
			return &ProcessingError{Kind: KindCanceled, Err: err}
		}

		tx, err := p.importer.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &ProcessingError{Kind: KindImport, Err: err}
		}
		report.Records++

		if _, ok := seen[tx.ClientID]; !ok {
			seen[tx.ClientID] = struct{}{}
			*order = append(*order, tx.ClientID)
		}
		shards[int(tx.ClientID)%len(shards)].in <- sequenced{seq: seq, tx: tx}
	}
}
