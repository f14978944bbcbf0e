package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"txdash/internal/core"
	applog "txdash/internal/log"
)

const (
	defaultESIndex = "transactions"
	esFlushBytes   = 1 << 20
)

// ElasticsearchConfig configures the bulk indexer sink.
type ElasticsearchConfig struct {
	Addresses []string
	Index     string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport  http.RoundTripper
	MaxRetries int
}

// ElasticsearchSink bulk-indexes transactions keyed by their id, so repeated
// exports overwrite instead of duplicating.
type ElasticsearchSink struct {
	client *elasticsearch.Client
	index  string
	logger *applog.Logger
}

func NewElasticsearchSink(cfg ElasticsearchConfig, logger *applog.Logger) (*ElasticsearchSink, error) {
	if cfg.Index == "" {
		cfg.Index = defaultESIndex
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentExport)
	}

	retryBackoff := backoff.NewExponentialBackOff()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     cfg.Addresses,
		Transport:     cfg.Transport,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	return &ElasticsearchSink{
		client: client,
		index:  cfg.Index,
		logger: logger.WithComponent(applog.ComponentExport),
	}, nil
}

func (s *ElasticsearchSink) String() string { return "es8:" + s.index }

func (s *ElasticsearchSink) Write(ctx context.Context, txs []core.Transaction) error {
	if err := s.ensureIndex(ctx); err != nil {
		return err
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         s.index,
		Client:        s.client,
		NumWorkers:    2,
		FlushBytes:    esFlushBytes,
		FlushInterval: 5 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("bulk indexer: %w", err)
	}

	var failed atomic.Int64
	for _, t := range txs {
		data, err := json.Marshal(t)
		if err != nil {
			_ = bi.Close(ctx)
			return fmt.Errorf("encode transaction %d: %w", t.ID, err)
		}

		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: strconv.FormatInt(t.ID, 10),
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				failed.Add(1)
				if err != nil {
					s.logger.ErrorContext(ctx, "Failed to index transaction",
						"document_id", item.DocumentID, applog.FieldError, err)
					return
				}
				s.logger.ErrorContext(ctx, "Failed to index transaction",
					"document_id", item.DocumentID,
					"type", res.Error.Type,
					"reason", res.Error.Reason)
			},
		})
		if err != nil {
			_ = bi.Close(ctx)
			return fmt.Errorf("queue transaction %d: %w", t.ID, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("flush bulk indexer: %w", err)
	}

	stats := bi.Stats()
	if n := failed.Load(); n > 0 || stats.NumFailed > 0 {
		return fmt.Errorf("failed indexing %d of %d documents", max(n, int64(stats.NumFailed)), len(txs))
	}
	s.logger.InfoContext(ctx, "Indexed transactions",
		"index", s.index,
		applog.FieldRecords, stats.NumFlushed)
	return nil
}

// ensureIndex creates the index unless it already exists.
func (s *ElasticsearchSink) ensureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = s.client.Indices.Create(s.index, s.client.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", s.index, res.Status())
	}
	return nil
}
