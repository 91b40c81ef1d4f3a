package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	apimetric "go.opentelemetry.io/otel/metric"

	"github.com/example/txn-engine/internal/model"
)

const meterName = "github.com/example/txn-engine/internal/engine"

// Recorder counts processed transactions by type and outcome, and exported
// clients.
type Recorder struct {
	processed apimetric.Int64Counter
	exported  apimetric.Int64Counter
}

func NewRecorder(mp apimetric.MeterProvider) (*Recorder, error) {
	meter := mp.Meter(meterName)

	processed, err := meter.Int64Counter("engine.transactions.processed",
		apimetric.WithDescription("Transactions read from the input, by type and outcome"),
		apimetric.WithUnit("{transaction}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create processed counter: %w", err)
	}

	exported, err := meter.Int64Counter("engine.clients.exported",
		apimetric.WithDescription("Client snapshots written to the exporter"),
		apimetric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create exported counter: %w", err)
	}

	return &Recorder{processed: processed, exported: exported}, nil
}

func (r *Recorder) TransactionProcessed(ctx context.Context, t model.TransactionType, outcome model.Outcome) {
	r.processed.Add(ctx, 1, apimetric.WithAttributes(
		attribute.String("type", string(t)),
		attribute.String("outcome", string(outcome)),
	))
}

func (r *Recorder) ClientsExported(ctx context.Context, n int) {
	r.exported.Add(ctx, int64(n))
}
