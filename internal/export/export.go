// Package export copies the seeded data set to external systems.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"txdash/internal/core"
	applog "txdash/internal/log"
	"txdash/internal/storage"
)

// Sink receives a full snapshot of the transactions.
type Sink interface {
	Write(ctx context.Context, txs []core.Transaction) error
	String() string
}

var ErrUnknownSink = errors.New("unknown sink")

// ParseSink builds a sink from "kind:target":
//
//	jsonfile:/tmp/out.json
//	es8:http://localhost:9200
//	sheets:<spreadsheet id>
func ParseSink(ctx context.Context, uri string, logger *applog.Logger) (Sink, error) {
	kind, target, ok := strings.Cut(strings.TrimSpace(uri), ":")
	if !ok || target == "" {
		return nil, fmt.Errorf("%w: %q (want kind:target)", ErrUnknownSink, uri)
	}

	switch kind {
	case "jsonfile":
		return &JSONFileSink{Path: target}, nil
	case "es8":
		return NewElasticsearchSink(ElasticsearchConfig{Addresses: strings.Split(target, ",")}, logger)
	case "sheets":
		return NewSheetsSinkFromEnv(ctx, target)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, kind)
	}
}

// Exporter reads every transaction from a store and hands it to a sink.
type Exporter struct {
	store  storage.Store
	logger *applog.Logger
}

func NewExporter(store storage.Store, logger *applog.Logger) *Exporter {
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentExport)
	}
	return &Exporter{store: store, logger: logger.WithComponent(applog.ComponentExport)}
}

// Export writes the whole data set, newest first, and returns the record count.
func (e *Exporter) Export(ctx context.Context, sink Sink) (int, error) {
	start := time.Now()

	txs, err := e.store.FindPage(ctx, core.Filter{}, core.Page{})
	if err != nil {
		return 0, fmt.Errorf("read transactions: %w", err)
	}
	if err := sink.Write(ctx, txs); err != nil {
		return 0, fmt.Errorf("write %s: %w", sink, err)
	}

	e.logger.InfoContext(ctx, "Export completed",
		applog.FieldOperation, applog.OpExport,
		applog.FieldSink, sink.String(),
		applog.FieldRecords, len(txs),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return len(txs), nil
}
