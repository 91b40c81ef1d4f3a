package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/example/txn-engine/internal/model"
)

var snapshotHeader = []string{"client", "available", "held", "total", "locked"}

// Exporter writes one CSV row per client snapshot. The header is written
// exactly once, even when there are no rows.
type Exporter struct {
	writer        *csv.Writer
	headerWritten bool
}

func NewExporter(w io.Writer) *Exporter {
	return &Exporter{writer: csv.NewWriter(w)}
}

func (e *Exporter) writeHeader() error {
	if e.headerWritten {
		return nil
	}
	e.headerWritten = true
	if err := e.writer.Write(snapshotHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	return nil
}

func (e *Exporter) Export(_ context.Context, s model.Snapshot) error {
	if err := e.writeHeader(); err != nil {
		return err
	}

	row := []string{
		s.ClientID.String(),
		model.FormatAmount(s.Available),
		model.FormatAmount(s.Held),
		model.FormatAmount(s.Total),
		strconv.FormatBool(s.Locked),
	}
	if err := e.writer.Write(row); err != nil {
		return fmt.Errorf("error serializing state for client %s: %w", s.ClientID, err)
	}
	return nil
}

func (e *Exporter) Flush(context.Context) error {
	if err := e.writeHeader(); err != nil {
		return err
	}
	e.writer.Flush()
	if err := e.writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
